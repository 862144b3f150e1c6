package http

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/rs/zerolog"

	"github.com/linkchat/linkchat-server/internal/chat"
	"github.com/linkchat/linkchat-server/internal/config"
	"github.com/linkchat/linkchat-server/internal/proto"
	"github.com/linkchat/linkchat-server/internal/store/sqlite"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	st, err := sqlite.New(":memory:")
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	logger := zerolog.Nop()
	broker := chat.NewBroker(8, &logger)
	svc := chat.NewService(st, broker, chat.ServiceOptions{
		SessionBackoffMin: 10 * time.Millisecond,
		SessionBackoffMax: 50 * time.Millisecond,
	}, &logger)

	srv := httptest.NewServer(NewServer(svc, config.Default(), &logger).Handler)
	t.Cleanup(srv.Close)
	return srv
}

func dialWS(t *testing.T, ctx context.Context, srv *httptest.Server) *websocket.Conn {
	t.Helper()

	url := "ws" + srv.URL[len("http"):] + "/ws"
	conn, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		t.Fatalf("ws dial failed: %v", err)
	}
	t.Cleanup(func() { conn.Close(websocket.StatusNormalClosure, "test done") })
	return conn
}

func sendWS(t *testing.T, ctx context.Context, conn *websocket.Conn, msgType string, payload any) {
	t.Helper()

	data, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal %s payload: %v", msgType, err)
	}
	if err := wsjson.Write(ctx, conn, proto.Inbound{Type: msgType, Data: data}); err != nil {
		t.Fatalf("write %s: %v", msgType, err)
	}
}

// outboundEnvelope mirrors proto.Outbound with raw data for decoding.
type outboundEnvelope struct {
	Type  string          `json:"type"`
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
	Error *proto.Error    `json:"error"`
}

func readWS(t *testing.T, ctx context.Context, conn *websocket.Conn) outboundEnvelope {
	t.Helper()

	var env outboundEnvelope
	if err := wsjson.Read(ctx, conn, &env); err != nil {
		t.Fatalf("read outbound: %v", err)
	}
	return env
}

func readEvent(t *testing.T, ctx context.Context, conn *websocket.Conn, event string) json.RawMessage {
	t.Helper()

	env := readWS(t, ctx, conn)
	if env.Type != proto.OutboundTypeEvent || env.Event != event {
		t.Fatalf("expected %s event, got %+v", event, env)
	}
	return env.Data
}

func decodeInto(t *testing.T, raw json.RawMessage, v any) {
	t.Helper()
	if err := json.Unmarshal(raw, v); err != nil {
		t.Fatalf("decode event data: %v", err)
	}
}
