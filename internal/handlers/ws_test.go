package handlers

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/krishahir26/antibridge/internal/relay"
)

func wsServer(t *testing.T) (*httptest.Server, *fakeBridge) {
	t.Helper()
	h, fb := testHandlers(t)
	mux := http.NewServeMux()
	h.RegisterRoutes(mux, nil)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, fb
}

func dialWS(t *testing.T, srv *httptest.Server, path string) *websocket.Conn {
	t.Helper()
	url := strings.Replace(srv.URL, "http", "ws", 1) + path
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", path, err)
	}
	t.Cleanup(func() { conn.Close() })
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	return conn
}

func readEnvelope(t *testing.T, conn *websocket.Conn) relay.Envelope {
	t.Helper()
	var env relay.Envelope
	if err := conn.ReadJSON(&env); err != nil {
		t.Fatalf("read: %v", err)
	}
	return env
}

func register(t *testing.T, conn *websocket.Conn) {
	t.Helper()
	if err := conn.WriteJSON(map[string]any{"type": "register"}); err != nil {
		t.Fatalf("register: %v", err)
	}
	env := readEnvelope(t, conn)
	if env.Type != "registered" {
		t.Fatalf("first reply = %q, want registered", env.Type)
	}
}

func TestWSSessionRegisterAndReplay(t *testing.T) {
	srv, fb := wsServer(t)
	fb.store.Append("assistant", "earlier answer", "<p>earlier answer</p>")

	conn := dialWS(t, srv, "/ws/sess-1")
	register(t, conn)

	env := readEnvelope(t, conn)
	if env.Type != "chat_complete" {
		t.Fatalf("replay type = %q, want chat_complete", env.Type)
	}
	if env.Data["source"] != "history" || env.Data["content"] != "earlier answer" {
		t.Errorf("replay data = %v", env.Data)
	}

	if got := fb.hub.SessionClientCount("sess-1"); got != 1 {
		t.Errorf("session clients = %d, want 1", got)
	}
}

func TestWSProvisionalPeerIgnored(t *testing.T) {
	srv, fb := wsServer(t)
	conn := dialWS(t, srv, "/ws/sess-1")

	// No register: domain messages must be dropped, not routed.
	conn.WriteJSON(map[string]any{"type": "send_message", "data": map[string]any{"text": "hi"}})
	time.Sleep(100 * time.Millisecond)

	fb.mu.Lock()
	sent := len(fb.sentTexts)
	fb.mu.Unlock()
	if sent != 0 {
		t.Errorf("provisional peer message was routed (%d sends)", sent)
	}
	if fb.hub.PeerCount() != 0 {
		t.Errorf("provisional peer counted as registered")
	}
}

func TestWSSendMessage(t *testing.T) {
	srv, fb := wsServer(t)
	fb.sendMethod = "scripted"

	conn := dialWS(t, srv, "/ws/sess-1")
	register(t, conn)

	conn.WriteJSON(map[string]any{"type": "send_message", "data": map[string]any{"text": "do the thing"}})

	env := readEnvelope(t, conn)
	if env.Type != "message_sent" || env.Data["method"] != "scripted" {
		t.Fatalf("reply = %+v", env)
	}

	fb.mu.Lock()
	defer fb.mu.Unlock()
	if len(fb.sentTexts) != 1 || fb.sentTexts[0] != "do the thing" {
		t.Errorf("sent = %v", fb.sentTexts)
	}
}

func TestWSSendMessageEmptyText(t *testing.T) {
	srv, _ := wsServer(t)
	conn := dialWS(t, srv, "/ws/sess-1")
	register(t, conn)

	conn.WriteJSON(map[string]any{"type": "send_message", "data": map[string]any{"text": "  "}})

	env := readEnvelope(t, conn)
	if env.Type != "error" {
		t.Errorf("reply type = %q, want error", env.Type)
	}
}

func TestWSAutomationFanOut(t *testing.T) {
	srv, fb := wsServer(t)

	client := dialWS(t, srv, "/ws/sess-1")
	register(t, client)

	automation := dialWS(t, srv, "/ws/bridge")
	register(t, automation)

	automation.WriteJSON(map[string]any{
		"type": "ai_messages",
		"data": map[string]any{
			"messages": []any{
				map[string]any{"text": "partial thought", "isComplete": false},
				map[string]any{"text": "final answer", "html": "<p>final answer</p>", "isComplete": true},
			},
		},
	})

	env := readEnvelope(t, client)
	if env.Type != "chat_update" {
		t.Fatalf("first fan-out = %q, want chat_update", env.Type)
	}
	env = readEnvelope(t, client)
	if env.Type != "chat_complete" || env.Data["content"] != "final answer" {
		t.Fatalf("second fan-out = %+v", env)
	}

	// Completed messages land in the transcript.
	deadline := time.Now().Add(time.Second)
	for {
		entries, _ := fb.store.Recent(10)
		if len(entries) == 1 && entries[0].Text == "final answer" {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("history = %+v", entries)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestWSExtensionAck(t *testing.T) {
	srv, fb := wsServer(t)

	ext := dialWS(t, srv, "/ws/extension")
	register(t, ext)

	errCh := make(chan error, 1)
	go func() {
		errCh <- fb.hub.ForwardOutbound("hello", 2*time.Second)
	}()

	env := readEnvelope(t, ext)
	if env.Type != "send_chat" {
		t.Fatalf("forwarded type = %q, want send_chat", env.Type)
	}
	ext.WriteJSON(map[string]any{"type": "ack", "data": map[string]any{"ok": true}})

	select {
	case err := <-errCh:
		if err != nil {
			t.Errorf("ForwardOutbound() error = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("ForwardOutbound did not resolve")
	}
}

func TestWSPing(t *testing.T) {
	srv, _ := wsServer(t)
	conn := dialWS(t, srv, "/ws/sess-1")
	register(t, conn)

	conn.WriteJSON(map[string]any{"type": "ping"})
	env := readEnvelope(t, conn)
	if env.Type != "pong" {
		t.Errorf("reply = %q, want pong", env.Type)
	}
}
