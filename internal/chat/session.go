package chat

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/linkchat/linkchat-server/internal/store"
)

// SessionState describes where a session is in its lifecycle.
type SessionState int32

const (
	// StateInitializing means the session is constructed but idle.
	StateInitializing SessionState = iota
	// StateBackfillLoading means the session is attached and fetching
	// the backlog; live deliveries are buffered, not yet applied.
	StateBackfillLoading
	// StateLive means the backlog is merged and sink deliveries are
	// applied directly as they arrive.
	StateLive
	// StateReconnecting means live delivery was interrupted; the session
	// will re-enter backfill from its watermark.
	StateReconnecting
	// StateClosed is terminal; no further deliveries occur.
	StateClosed
)

func (s SessionState) String() string {
	switch s {
	case StateInitializing:
		return "initializing"
	case StateBackfillLoading:
		return "backfill_loading"
	case StateLive:
		return "live"
	case StateReconnecting:
		return "reconnecting"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// SessionHandlers receive a session's ordered view of a room.
//
// OnBacklog delivers each successful backfill merge (the initial one
// and the gap fetch after every reconnect) as one ordered batch.
// OnMessage delivers live messages after the merge. OnError reports
// transient failures the session is recovering from; it never means
// the session stopped.
type SessionHandlers struct {
	OnBacklog func(messages []*store.Message)
	OnMessage func(msg *store.Message)
	OnError   func(err error)
}

// Session bridges a point-in-time backlog fetch with the open-ended
// live feed for one room, without gaps or duplicates. It attaches to
// the broker before fetching the backlog and de-duplicates by message
// id when merging, so a message appended during the fetch window is
// seen exactly once.
type Session struct {
	roomID     string
	log        *Log
	broker     *Broker
	backoffMin time.Duration
	backoffMax time.Duration

	mu        sync.Mutex
	state     SessionState
	watermark store.Cursor
	started   bool
	cancel    context.CancelFunc

	done chan struct{}
}

func newSession(roomID string, log *Log, broker *Broker, backoffMin, backoffMax time.Duration) *Session {
	if backoffMin <= 0 {
		backoffMin = 100 * time.Millisecond
	}
	if backoffMax < backoffMin {
		backoffMax = 5 * time.Second
	}
	return &Session{
		roomID:     roomID,
		log:        log,
		broker:     broker,
		backoffMin: backoffMin,
		backoffMax: backoffMax,
		state:      StateInitializing,
		done:       make(chan struct{}),
	}
}

// RoomID returns the room this session observes.
func (s *Session) RoomID() string {
	return s.roomID
}

// State returns the current lifecycle state.
func (s *Session) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Watermark returns the highest order-key the session has incorporated.
func (s *Session) Watermark() store.Cursor {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.watermark
}

// Done is closed once the session reaches StateClosed.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Subscribe starts the session. Handlers are invoked from a single
// goroutine, so deliveries are ordered. The session runs until ctx is
// cancelled or Close is called, retrying backfill with backoff on
// store unavailability and on lost subscriptions.
func (s *Session) Subscribe(ctx context.Context, h SessionHandlers) error {
	if h.OnBacklog == nil {
		h.OnBacklog = func([]*store.Message) {}
	}
	if h.OnMessage == nil {
		h.OnMessage = func(*store.Message) {}
	}
	if h.OnError == nil {
		h.OnError = func(error) {}
	}

	s.mu.Lock()
	if s.state == StateClosed {
		s.mu.Unlock()
		return errors.New("session closed")
	}
	if s.started {
		s.mu.Unlock()
		return errors.New("session already subscribed")
	}
	s.started = true
	ctx, s.cancel = context.WithCancel(ctx)
	s.mu.Unlock()

	go s.run(ctx, h)
	return nil
}

// Close stops the session and detaches its subscription. Idempotent
// and safe to call from any goroutine, including handlers.
func (s *Session) Close() {
	s.mu.Lock()
	cancel := s.cancel
	if !s.started && s.state != StateClosed {
		s.state = StateClosed
		close(s.done)
	}
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
}

func (s *Session) run(ctx context.Context, h SessionHandlers) {
	defer close(s.done)
	defer s.setState(StateClosed)

	backoff := s.backoffMin
	for {
		sub, merged, err := s.sync(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			h.OnError(err)
			if !sleep(ctx, backoff) {
				return
			}
			backoff = backoff * 2
			if backoff > s.backoffMax {
				backoff = s.backoffMax
			}
			continue
		}
		backoff = s.backoffMin

		h.OnBacklog(merged)
		s.setState(StateLive)

		err = s.live(ctx, sub, h)
		s.broker.Detach(sub)
		if ctx.Err() != nil {
			return
		}

		h.OnError(err)
		s.setState(StateReconnecting)
	}
}

// sync performs one attach-then-backfill cycle and returns the live
// subscription together with the merged, de-duplicated backlog.
func (s *Session) sync(ctx context.Context) (*Subscription, []*store.Message, error) {
	s.setState(StateBackfillLoading)

	// Attach before the fetch: a message appended between fetch and a
	// later attach would be lost. Anything received during the fetch is
	// buffered by the sink and merged below.
	sub := s.broker.Attach(s.roomID)

	backlog, err := s.log.ListSince(ctx, s.roomID, s.Watermark())
	if err != nil {
		s.broker.Detach(sub)
		return nil, nil, err
	}

	merged := make([]*store.Message, 0, len(backlog))
	seen := make(map[int64]struct{}, len(backlog))
	for _, msg := range backlog {
		seen[msg.ID] = struct{}{}
		merged = append(merged, msg)
	}

	// Merge what the sink buffered during the fetch. A message present
	// in both sets keeps its backfill copy.
	for {
		select {
		case msg := <-sub.Messages():
			if _, dup := seen[msg.ID]; dup {
				continue
			}
			seen[msg.ID] = struct{}{}
			merged = append(merged, msg)
		default:
			if len(merged) > 0 {
				s.advance(store.CursorOf(merged[len(merged)-1]))
			}
			return sub, merged, nil
		}
	}
}

// live forwards sink deliveries until the context is cancelled or the
// broker disconnects the subscription.
func (s *Session) live(ctx context.Context, sub *Subscription, h SessionHandlers) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-sub.Lost():
			// Queued messages are not drained here; the reconnect
			// backfill from the watermark re-covers them exactly once.
			return ErrSubscriptionLost
		case msg := <-sub.Messages():
			// A publish can land after its message was already picked up
			// by the backfill fetch; the watermark identifies the
			// duplicate, which must not reach the handler twice.
			if !s.advance(store.CursorOf(msg)) {
				continue
			}
			h.OnMessage(msg)
		}
	}
}

func (s *Session) setState(state SessionState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateClosed {
		return
	}
	s.state = state
}

// advance moves the watermark forward, never backward, and reports
// whether it moved. A cursor at or behind the watermark identifies a
// message the session has already incorporated.
func (s *Session) advance(c store.Cursor) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.watermark.Before(c) {
		s.watermark = c
		return true
	}
	return false
}

func sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
