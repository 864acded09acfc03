package http

import (
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	"caretoplay/internal/app"
	"caretoplay/internal/infra/memory"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

type wireMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type wireSnapshot struct {
	Machine string          `json:"machine"`
	ID      string          `json:"id"`
	State   string          `json:"state"`
	Context json.RawMessage `json:"context"`
}

func newTestServer(t *testing.T) (*httptest.Server, *memory.SessionStore, *memory.Stats) {
	t.Helper()
	store := memory.NewQuizSetStore()
	stats := memory.NewStats()
	backend := app.NewQuizSetService(store, stats, nil, zerolog.Nop())
	sessions := memory.NewSessionStore()
	play := app.NewPlayService(sessions, app.PlayConfig{
		Backend:      backend,
		Caches:       memory.NewDeviceCaches(),
		ShareBaseURL: "https://caretoplay.test",
		Logger:       zerolog.Nop(),
	})
	router := NewRouter(NewAPIHandler(backend, zerolog.Nop()), NewWSHandler(play, zerolog.Nop()), nil)
	server := httptest.NewServer(router)
	t.Cleanup(server.Close)
	return server, sessions, stats
}

func dial(t *testing.T, server *httptest.Server, query string) *websocket.Conn {
	t.Helper()
	u := "ws" + server.URL[len("http"):] + "/ws?" + query
	conn, _, err := websocket.DefaultDialer.Dial(u, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readNext(t *testing.T, conn *websocket.Conn) wireMessage {
	t.Helper()
	var msg wireMessage
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read json: %v", err)
	}
	return msg
}

// readUntil reads messages until match returns true.
func readUntil(t *testing.T, conn *websocket.Conn, match func(wireMessage) bool) wireMessage {
	t.Helper()
	for i := 0; i < 50; i++ {
		msg := readNext(t, conn)
		if match(msg) {
			return msg
		}
	}
	t.Fatalf("expected message not received")
	return wireMessage{}
}

func stateOf(machine, state string) func(wireMessage) bool {
	return func(msg wireMessage) bool {
		if msg.Type != app.MessageState {
			return false
		}
		var snap wireSnapshot
		if err := json.Unmarshal(msg.Payload, &snap); err != nil {
			return false
		}
		return snap.Machine == machine && snap.State == state
	}
}

func TestWebSocketNewQuizSetFlow(t *testing.T) {
	server, sessions, stats := newTestServer(t)
	conn := dial(t, server, "deviceId=d1&quizSetKey=new")

	first := readNext(t, conn)
	if first.Type != "session" {
		t.Fatalf("expected session message first, got %s", first.Type)
	}
	var session sessionPayload
	if err := json.Unmarshal(first.Payload, &session); err != nil {
		t.Fatalf("decode session: %v", err)
	}
	if session.DeviceID != "d1" || session.SessionID == "" {
		t.Fatalf("unexpected session payload %+v", session)
	}

	readUntil(t, conn, stateOf("quizSet", "newQuizSet"))
	readUntil(t, conn, stateOf("form", "inputting"))

	change := map[string]any{
		"type":    "event",
		"payload": map[string]any{"type": "change", "field": "name", "value": "Alice"},
	}
	if err := conn.WriteJSON(change); err != nil {
		t.Fatalf("write change: %v", err)
	}
	msg := readUntil(t, conn, func(msg wireMessage) bool {
		if !stateOf("form", "inputting")(msg) {
			return false
		}
		var snap wireSnapshot
		_ = json.Unmarshal(msg.Payload, &snap)
		var ctx struct {
			Values map[string]string `json:"fieldValues"`
		}
		_ = json.Unmarshal(snap.Context, &ctx)
		return ctx.Values["name"] == "Alice"
	})
	if msg.Type != app.MessageState {
		t.Fatalf("expected state message, got %s", msg.Type)
	}

	if got := stats.Count("stats/overview/visitCount"); got != 1 {
		t.Fatalf("expected one overview visit, got %d", got)
	}

	_ = conn.Close()
	deadline := time.Now().Add(2 * time.Second)
	for sessions.Len() > 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if sessions.Len() != 0 {
		t.Fatalf("expected session closed after disconnect")
	}
}

func TestWebSocketRejectsBadMessages(t *testing.T) {
	server, _, _ := newTestServer(t)
	conn := dial(t, server, "deviceId=d2&quizSetKey=new")
	readUntil(t, conn, func(msg wireMessage) bool { return msg.Type == "session" })

	if err := conn.WriteJSON(map[string]any{"type": "bogus"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	readUntil(t, conn, func(msg wireMessage) bool { return msg.Type == "error" })

	if err := conn.WriteJSON(map[string]any{"type": "event", "payload": map[string]any{}}); err != nil {
		t.Fatalf("write: %v", err)
	}
	msg := readUntil(t, conn, func(msg wireMessage) bool { return msg.Type == "error" })
	var payload errorPayload
	_ = json.Unmarshal(msg.Payload, &payload)
	if payload.Message != "invalid event payload" {
		t.Fatalf("unexpected error message %q", payload.Message)
	}
}

func TestWebSocketInvalidQuizSetKey(t *testing.T) {
	server, sessions, _ := newTestServer(t)
	conn := dial(t, server, "quizSetKey=not-a-key!")
	msg := readNext(t, conn)
	if msg.Type != "error" {
		t.Fatalf("expected error, got %s", msg.Type)
	}
	if sessions.Len() != 0 {
		t.Fatalf("expected no session opened")
	}
}
