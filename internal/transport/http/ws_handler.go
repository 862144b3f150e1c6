package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	stdhttp "net/http"
	"strings"
	"sync"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/linkchat/linkchat-server/internal/chat"
	"github.com/linkchat/linkchat-server/internal/proto"
	"github.com/linkchat/linkchat-server/internal/store"
)

// WSHandler upgrades HTTP connections and bridges them to room sessions.
type WSHandler struct {
	svc *chat.Service
	log *zerolog.Logger
}

// NewWSHandler builds a new WebSocket handler.
func NewWSHandler(svc *chat.Service, logger *zerolog.Logger) stdhttp.Handler {
	return &WSHandler{svc: svc, log: logger}
}

// wsClient is the per-connection state: the declared username, the
// outbound event queue drained by the write loop, and one session per
// joined room.
type wsClient struct {
	id       string
	username string
	out      chan proto.Outbound

	mu       sync.Mutex
	sessions map[string]*chat.Session
}

func newWSClient() *wsClient {
	return &wsClient{
		id:       uuid.NewString(),
		out:      make(chan proto.Outbound, 64),
		sessions: make(map[string]*chat.Session),
	}
}

// send queues an outbound envelope, giving up when the connection is
// shutting down. Session callbacks block here rather than dropping, so
// per-connection delivery stays ordered.
func (c *wsClient) send(ctx context.Context, ev proto.Outbound) {
	select {
	case c.out <- ev:
	case <-ctx.Done():
	}
}

func (c *wsClient) session(roomID string) (*chat.Session, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	sess, ok := c.sessions[roomID]
	return sess, ok
}

func (c *wsClient) addSession(roomID string, sess *chat.Session) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sessions[roomID] = sess
}

func (c *wsClient) removeSession(roomID string) (*chat.Session, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	sess, ok := c.sessions[roomID]
	if ok {
		delete(c.sessions, roomID)
	}
	return sess, ok
}

func (c *wsClient) closeAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for roomID, sess := range c.sessions {
		sess.Close()
		delete(c.sessions, roomID)
	}
}

func (h *WSHandler) ServeHTTP(w stdhttp.ResponseWriter, r *stdhttp.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		h.log.Error().Err(err).Msg("ws accept error")
		return
	}
	defer conn.Close(websocket.StatusInternalError, "internal error")

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	client := newWSClient()
	defer client.closeAll()

	errCh := make(chan error, 2)
	go func() {
		errCh <- h.readLoop(ctx, conn, client)
	}()
	go func() {
		errCh <- h.writeLoop(ctx, conn, client)
	}()

	err = <-errCh
	cancel() // stop the other goroutine
	<-errCh

	status := websocket.StatusNormalClosure
	reason := "closing"
	if err != nil && !errors.Is(err, context.Canceled) {
		if errors.Is(err, io.EOF) {
			err = nil
		}
		if s := websocket.CloseStatus(err); s != 0 {
			status = s
		}
		if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway {
			err = nil
		}
		if err != nil {
			if status == websocket.StatusNormalClosure {
				status = websocket.StatusInternalError
			}
			reason = err.Error()
			h.log.Warn().Err(err).Str("client_id", client.id).Msg("ws connection closed with error")
		}
	}

	conn.Close(status, reason)
}

func (h *WSHandler) readLoop(ctx context.Context, conn *websocket.Conn, client *wsClient) error {
	for {
		var inbound proto.Inbound
		if err := wsjson.Read(ctx, conn, &inbound); err != nil {
			return err
		}
		if err := h.handleInbound(ctx, client, inbound); err != nil {
			return err
		}
	}
}

func (h *WSHandler) writeLoop(ctx context.Context, conn *websocket.Conn, client *wsClient) error {
	for {
		select {
		case ev := <-client.out:
			if err := wsjson.Write(ctx, conn, ev); err != nil {
				h.log.Error().Err(err).Str("client_id", client.id).Msg("write ws event")
				return err
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (h *WSHandler) handleInbound(ctx context.Context, client *wsClient, inbound proto.Inbound) error {
	switch inbound.Type {
	case proto.InboundTypeHello:
		var data proto.HelloData
		if err := json.Unmarshal(inbound.Data, &data); err != nil {
			client.send(ctx, badEnvelope(err))
			return nil
		}
		client.username = strings.TrimSpace(data.User)

	case proto.InboundTypeCreate:
		var data proto.CreateData
		if err := json.Unmarshal(inbound.Data, &data); err != nil {
			client.send(ctx, badEnvelope(err))
			return nil
		}
		room, err := h.svc.CreateRoom(ctx, data.Name)
		if err != nil {
			client.send(ctx, errorOutbound(err, "", ""))
			return nil
		}
		client.send(ctx, proto.Outbound{
			Type:  proto.OutboundTypeEvent,
			Event: proto.EventRoomCreated,
			Data:  toEventRoom(room),
		})

	case proto.InboundTypeJoin:
		var data proto.JoinData
		if err := json.Unmarshal(inbound.Data, &data); err != nil {
			client.send(ctx, badEnvelope(err))
			return nil
		}
		h.handleJoin(ctx, client, data.Room)

	case proto.InboundTypeLeave:
		var data proto.JoinData
		if err := json.Unmarshal(inbound.Data, &data); err != nil {
			client.send(ctx, badEnvelope(err))
			return nil
		}
		if sess, ok := client.removeSession(data.Room); ok {
			sess.Close()
		}
		client.send(ctx, proto.Outbound{
			Type:  proto.OutboundTypeEvent,
			Event: proto.EventLeft,
			Data:  proto.JoinData{Room: data.Room},
		})

	case proto.InboundTypeMsg:
		var data proto.MsgData
		if err := json.Unmarshal(inbound.Data, &data); err != nil {
			client.send(ctx, badEnvelope(err))
			return nil
		}
		// No local echo: the sender sees the message through its own
		// live session, in the same order as everyone else.
		if _, err := h.svc.SendMessage(ctx, data.Room, client.username, data.Text); err != nil {
			client.send(ctx, errorOutbound(err, data.Room, data.Text))
		}

	default:
		client.send(ctx, proto.Outbound{
			Type:  proto.OutboundTypeError,
			Error: &proto.Error{Code: chat.ErrCodeInvalidInput, Msg: "unknown message type"},
		})
	}

	return nil
}

func (h *WSHandler) handleJoin(ctx context.Context, client *wsClient, roomID string) {
	room, err := h.svc.JoinRoom(ctx, roomID)
	if err != nil {
		client.send(ctx, errorOutbound(err, roomID, ""))
		return
	}
	if _, joined := client.session(room.ID); joined {
		client.send(ctx, proto.Outbound{
			Type:  proto.OutboundTypeError,
			Error: &proto.Error{Code: chat.ErrCodeInvalidInput, Msg: "already joined", Room: room.ID},
		})
		return
	}

	client.send(ctx, proto.Outbound{
		Type:  proto.OutboundTypeEvent,
		Event: proto.EventJoined,
		Data:  toEventRoom(room),
	})

	sess := h.svc.OpenSession(room.ID)
	handlers := chat.SessionHandlers{
		OnBacklog: func(messages []*store.Message) {
			client.send(ctx, historyOutbound(room.ID, messages))
		},
		OnMessage: func(msg *store.Message) {
			client.send(ctx, messageOutbound(msg))
		},
		OnError: func(err error) {
			// Transient by contract: the session is already recovering.
			h.log.Warn().Err(err).
				Str("client_id", client.id).
				Str("room_id", room.ID).
				Msg("session recovering")
		},
	}
	if err := sess.Subscribe(ctx, handlers); err != nil {
		client.send(ctx, errorOutbound(err, room.ID, ""))
		return
	}
	client.addSession(room.ID, sess)
}

func badEnvelope(err error) proto.Outbound {
	return proto.Outbound{
		Type:  proto.OutboundTypeError,
		Error: &proto.Error{Code: chat.ErrCodeInvalidInput, Msg: "bad payload: " + err.Error()},
	}
}
