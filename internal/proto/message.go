package proto

import "encoding/json"

// Inbound is the envelope for messages coming from the client.
type Inbound struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

const (
	ProtocolVersion = 1

	InboundTypeHello  = "hello"
	InboundTypeCreate = "create"
	InboundTypeJoin   = "join"
	InboundTypeLeave  = "leave"
	InboundTypeMsg    = "msg"

	OutboundTypeEvent = "event"
	OutboundTypeError = "error"

	EventRoomCreated = "room_created"
	EventJoined      = "joined"
	EventLeft        = "left"
	EventHistory     = "history"
	EventMessageName = "message"
)

// HelloData is sent by the client to introduce itself.
type HelloData struct {
	User     string `json:"user"`
	Protocol int    `json:"protocol,omitempty"`
}

// CreateData requests a new room. A blank name gets the server default.
type CreateData struct {
	Name string `json:"name,omitempty"`
}

// JoinData requests to join a room by its shareable token.
type JoinData struct {
	Room string `json:"room"`
}

// MsgData is a chat message from the client.
type MsgData struct {
	Room string `json:"room"`
	Text string `json:"text"`
}

// Outbound is the envelope for messages sent to the client.
type Outbound struct {
	Type  string `json:"type"`
	Event string `json:"event,omitempty"`
	Data  any    `json:"data,omitempty"`
	Error *Error `json:"error,omitempty"`
}

// EventRoom describes a room in room_created and joined events.
type EventRoom struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	CreatedAt int64  `json:"created_at"`
}

// EventMessage is one chat message on the wire.
type EventMessage struct {
	ID       int64  `json:"id"`
	Room     string `json:"room"`
	Username string `json:"username"`
	Content  string `json:"content"`
	TS       int64  `json:"ts"`
}

// EventHistoryData delivers the merged backlog for a room. Sent when a
// join completes its first backfill and again after each reconnect.
type EventHistoryData struct {
	Room     string         `json:"room"`
	Messages []EventMessage `json:"messages"`
}

// Error describes a protocol-level error response. Content carries the
// rejected message text on a failed send so the client can restore it.
type Error struct {
	Code    string `json:"code"`
	Msg     string `json:"msg"`
	Room    string `json:"room,omitempty"`
	Content string `json:"content,omitempty"`
}
