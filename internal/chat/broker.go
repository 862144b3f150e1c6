package chat

import (
	"sync"

	"github.com/rs/zerolog"

	"github.com/linkchat/linkchat-server/internal/store"
)

// DefaultSinkBuffer is the per-subscription queue size used when the
// configured value is zero or negative.
const DefaultSinkBuffer = 64

// Subscription is one live attachment to a room's message feed.
// Messages arrive on Messages() in append order. If the subscriber
// falls behind and its queue overflows, the broker disconnects it and
// closes Lost(); the gap is recoverable via the message log.
type Subscription struct {
	roomID string

	ch       chan *store.Message
	lost     chan struct{}
	lostOnce sync.Once
}

// Messages returns the delivery channel for this subscription.
func (s *Subscription) Messages() <-chan *store.Message {
	return s.ch
}

// Lost is closed when the broker disconnects the subscription on
// overflow. Messages already queued remain readable.
func (s *Subscription) Lost() <-chan struct{} {
	return s.lost
}

func (s *Subscription) markLost() {
	s.lostOnce.Do(func() { close(s.lost) })
}

// Broker fans out newly appended messages to every live subscription
// attached to the message's room. It holds no history: a message
// published before attachment is only recoverable via the log.
type Broker struct {
	buf int
	log *zerolog.Logger

	mu    sync.Mutex
	rooms map[string]map[*Subscription]struct{}
}

// NewBroker builds a broker with the given per-subscription queue size.
func NewBroker(sinkBuffer int, logger *zerolog.Logger) *Broker {
	if sinkBuffer <= 0 {
		sinkBuffer = DefaultSinkBuffer
	}
	return &Broker{
		buf:   sinkBuffer,
		log:   logger,
		rooms: make(map[string]map[*Subscription]struct{}),
	}
}

// Attach registers a new subscription for the room. Messages published
// after Attach returns are guaranteed to be delivered or to trip the
// overflow disconnect; nothing published earlier is replayed.
func (b *Broker) Attach(roomID string) *Subscription {
	sub := &Subscription{
		roomID: roomID,
		ch:     make(chan *store.Message, b.buf),
		lost:   make(chan struct{}),
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	subs, ok := b.rooms[roomID]
	if !ok {
		subs = make(map[*Subscription]struct{})
		b.rooms[roomID] = subs
	}
	subs[sub] = struct{}{}

	return sub
}

// Detach removes the subscription. Idempotent and safe to call from a
// different goroutine than Attach.
func (b *Broker) Detach(sub *Subscription) {
	if sub == nil {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.remove(sub)
}

// Publish delivers msg to every subscription currently attached to its
// room. Delivery to each subscription is independent: a full queue
// disconnects that subscriber without blocking or failing the others.
//
// Callers must serialize Publish per room with the append that produced
// msg so that delivery order matches durable order; the message log
// owns that lock.
func (b *Broker) Publish(msg *store.Message) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for sub := range b.rooms[msg.RoomID] {
		select {
		case sub.ch <- msg:
		default:
			// Slow consumer: disconnect rather than block or drop silently.
			b.remove(sub)
			sub.markLost()
			if b.log != nil {
				b.log.Warn().
					Str("room_id", msg.RoomID).
					Msg("subscription queue overflow, disconnecting sink")
			}
		}
	}
}

// Subscribers returns the number of live subscriptions for a room.
func (b *Broker) Subscribers(roomID string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.rooms[roomID])
}

// remove deletes sub and drops the room entry on last detach.
// Caller holds b.mu.
func (b *Broker) remove(sub *Subscription) {
	subs, ok := b.rooms[sub.roomID]
	if !ok {
		return
	}
	delete(subs, sub)
	if len(subs) == 0 {
		delete(b.rooms, sub.roomID)
	}
}
