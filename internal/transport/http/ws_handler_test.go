package http

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/linkchat/linkchat-server/internal/chat"
	"github.com/linkchat/linkchat-server/internal/proto"
)

func TestWSCreateJoinSendReceive(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	srv := newTestServer(t)
	conn := dialWS(t, ctx, srv)

	sendWS(t, ctx, conn, proto.InboundTypeHello, proto.HelloData{User: "alice"})

	sendWS(t, ctx, conn, proto.InboundTypeCreate, proto.CreateData{})
	var room proto.EventRoom
	decodeInto(t, readEvent(t, ctx, conn, proto.EventRoomCreated), &room)
	if room.Name != chat.DefaultRoomName {
		t.Fatalf("expected default room name, got %q", room.Name)
	}
	if _, err := uuid.Parse(room.ID); err != nil {
		t.Fatalf("room id is not a uuid: %v", err)
	}

	sendWS(t, ctx, conn, proto.InboundTypeJoin, proto.JoinData{Room: room.ID})

	var joined proto.EventRoom
	decodeInto(t, readEvent(t, ctx, conn, proto.EventJoined), &joined)
	if joined.ID != room.ID {
		t.Fatalf("joined wrong room: %+v", joined)
	}

	var history proto.EventHistoryData
	decodeInto(t, readEvent(t, ctx, conn, proto.EventHistory), &history)
	if history.Room != room.ID || len(history.Messages) != 0 {
		t.Fatalf("expected empty history, got %+v", history)
	}

	// The sender's own message comes back through the live feed.
	sendWS(t, ctx, conn, proto.InboundTypeMsg, proto.MsgData{Room: room.ID, Text: "yo"})

	var msg proto.EventMessage
	decodeInto(t, readEvent(t, ctx, conn, proto.EventMessageName), &msg)
	if msg.Username != "alice" || msg.Content != "yo" || msg.Room != room.ID {
		t.Fatalf("unexpected message event: %+v", msg)
	}
	if msg.ID == 0 {
		t.Fatal("expected store-assigned message id")
	}
}

func TestWSWhitespaceSendRejectedAndContentPreserved(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	srv := newTestServer(t)
	conn := dialWS(t, ctx, srv)

	sendWS(t, ctx, conn, proto.InboundTypeHello, proto.HelloData{User: "x"})
	sendWS(t, ctx, conn, proto.InboundTypeCreate, proto.CreateData{Name: "general"})
	var room proto.EventRoom
	decodeInto(t, readEvent(t, ctx, conn, proto.EventRoomCreated), &room)

	sendWS(t, ctx, conn, proto.InboundTypeMsg, proto.MsgData{Room: room.ID, Text: "   "})

	env := readWS(t, ctx, conn)
	if env.Type != proto.OutboundTypeError || env.Error == nil {
		t.Fatalf("expected error envelope, got %+v", env)
	}
	if env.Error.Code != chat.ErrCodeInvalidInput {
		t.Fatalf("expected invalid_input, got %q", env.Error.Code)
	}
	// The rejected text rides along so the client can restore the input.
	if env.Error.Content != "   " {
		t.Fatalf("expected preserved content, got %q", env.Error.Content)
	}
}

func TestWSJoinErrors(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	srv := newTestServer(t)
	conn := dialWS(t, ctx, srv)

	sendWS(t, ctx, conn, proto.InboundTypeHello, proto.HelloData{User: "x"})

	sendWS(t, ctx, conn, proto.InboundTypeJoin, proto.JoinData{Room: uuid.NewString()})
	env := readWS(t, ctx, conn)
	if env.Error == nil || env.Error.Code != chat.ErrCodeRoomNotFound {
		t.Fatalf("expected room_not_found, got %+v", env)
	}

	sendWS(t, ctx, conn, proto.InboundTypeJoin, proto.JoinData{Room: "??"})
	env = readWS(t, ctx, conn)
	if env.Error == nil || env.Error.Code != chat.ErrCodeInvalidInput {
		t.Fatalf("expected invalid_input, got %+v", env)
	}
}

func TestWSTwoClientsShareRoom(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	srv := newTestServer(t)

	alice := dialWS(t, ctx, srv)
	sendWS(t, ctx, alice, proto.InboundTypeHello, proto.HelloData{User: "alice"})
	sendWS(t, ctx, alice, proto.InboundTypeCreate, proto.CreateData{Name: "shared"})
	var room proto.EventRoom
	decodeInto(t, readEvent(t, ctx, alice, proto.EventRoomCreated), &room)

	sendWS(t, ctx, alice, proto.InboundTypeJoin, proto.JoinData{Room: room.ID})
	readEvent(t, ctx, alice, proto.EventJoined)
	readEvent(t, ctx, alice, proto.EventHistory)

	sendWS(t, ctx, alice, proto.InboundTypeMsg, proto.MsgData{Room: room.ID, Text: "hi"})
	var first proto.EventMessage
	decodeInto(t, readEvent(t, ctx, alice, proto.EventMessageName), &first)

	// Bob joins through the shared token after the fact and gets the
	// backlog, then live traffic.
	bob := dialWS(t, ctx, srv)
	sendWS(t, ctx, bob, proto.InboundTypeHello, proto.HelloData{User: "bob"})
	sendWS(t, ctx, bob, proto.InboundTypeJoin, proto.JoinData{Room: room.ID})
	readEvent(t, ctx, bob, proto.EventJoined)

	var history proto.EventHistoryData
	decodeInto(t, readEvent(t, ctx, bob, proto.EventHistory), &history)
	if len(history.Messages) != 1 || history.Messages[0].Username != "alice" || history.Messages[0].Content != "hi" {
		t.Fatalf("unexpected backlog for bob: %+v", history)
	}

	sendWS(t, ctx, bob, proto.InboundTypeMsg, proto.MsgData{Room: room.ID, Text: "yo"})

	var toAlice, toBob proto.EventMessage
	decodeInto(t, readEvent(t, ctx, alice, proto.EventMessageName), &toAlice)
	decodeInto(t, readEvent(t, ctx, bob, proto.EventMessageName), &toBob)
	for _, got := range []proto.EventMessage{toAlice, toBob} {
		if got.Username != "bob" || got.Content != "yo" {
			t.Fatalf("unexpected fan-out message: %+v", got)
		}
	}
}

func TestWSLeaveStopsDelivery(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	srv := newTestServer(t)
	conn := dialWS(t, ctx, srv)

	sendWS(t, ctx, conn, proto.InboundTypeHello, proto.HelloData{User: "alice"})
	sendWS(t, ctx, conn, proto.InboundTypeCreate, proto.CreateData{Name: "general"})
	var room proto.EventRoom
	decodeInto(t, readEvent(t, ctx, conn, proto.EventRoomCreated), &room)

	sendWS(t, ctx, conn, proto.InboundTypeJoin, proto.JoinData{Room: room.ID})
	readEvent(t, ctx, conn, proto.EventJoined)
	readEvent(t, ctx, conn, proto.EventHistory)

	sendWS(t, ctx, conn, proto.InboundTypeLeave, proto.JoinData{Room: room.ID})
	readEvent(t, ctx, conn, proto.EventLeft)

	// A message sent after leaving is appended but no longer delivered
	// to this connection; the next envelope it sees is its own error.
	sendWS(t, ctx, conn, proto.InboundTypeMsg, proto.MsgData{Room: room.ID, Text: "into the void"})
	sendWS(t, ctx, conn, proto.InboundTypeMsg, proto.MsgData{Room: room.ID, Text: " "})

	env := readWS(t, ctx, conn)
	if env.Type != proto.OutboundTypeError || env.Error == nil || env.Error.Code != chat.ErrCodeInvalidInput {
		t.Fatalf("expected only the whitespace rejection, got %+v", env)
	}
}
