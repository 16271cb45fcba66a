package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/krishahir26/antibridge/internal/extract"
	"github.com/krishahir26/antibridge/internal/relay"
	"github.com/krishahir26/antibridge/internal/web"
)

const (
	roleExtension  = relay.RoleExtension
	roleAction     = relay.RoleAction
	roleAutomation = relay.RoleAutomation
	roleSession    = relay.RoleSession
)

// The bridge serves local peers (in-page scripts, phone clients on the
// LAN); origin checks would reject the IDE's webview origin.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(*http.Request) bool { return true },
}

type wsMessage struct {
	Type string         `json:"type"`
	Data map[string]any `json:"data"`
}

// HandleWS upgrades the connection and runs its read loop. The peer is
// provisional until its first register message; only register is
// honored before that.
func (h *Handlers) HandleWS(role relay.Role) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			web.Error(w, 400, err)
			return
		}

		sessionID := ""
		if role == roleSession {
			sessionID = r.PathValue("session_id")
		}

		peer := relay.NewPeer(conn)
		slog.Info("ws peer connected", "role", role, "session", sessionID)
		h.readLoop(conn, peer, role, sessionID)
	}
}

func (h *Handlers) readLoop(conn *websocket.Conn, peer *relay.Peer, role relay.Role, sessionID string) {
	hub := h.Bridge.Hub()
	registered := false

	defer func() {
		hub.Remove(peer)
		conn.Close()
		slog.Info("ws peer disconnected", "role", role, "session", sessionID)
	}()

	for {
		var msg wsMessage
		if err := conn.ReadJSON(&msg); err != nil {
			return
		}

		if msg.Type == "register" {
			hub.Register(peer, role, sessionID)
			registered = true
			peer.Send("registered", map[string]any{"role": string(role), "sessionId": sessionID})
			if role == roleSession {
				h.replayHistory(peer)
			}
			continue
		}
		if !registered {
			continue
		}

		switch msg.Type {
		case "ack":
			ok, _ := msg.Data["ok"].(bool)
			peer.Ack(ok)
		case "ping":
			peer.Send("pong", nil)
		case "send_message":
			h.wsSendMessage(peer, sessionID, msg.Data)
		case "ai_messages":
			h.wsAIMessages(msg.Data)
		case "accept_action", "reject_action":
			h.wsDecideAction(peer, msg.Type == "accept_action", msg.Data)
		default:
			slog.Debug("unhandled ws message", "type", msg.Type, "role", role)
		}
	}
}

// replayHistory pushes the rolling transcript to a freshly registered
// session client so it starts with context.
func (h *Handlers) replayHistory(peer *relay.Peer) {
	entries, err := h.Bridge.History().Recent(h.Config.HistoryMax)
	if err != nil {
		slog.Warn("history replay failed", "err", err)
		return
	}
	for _, e := range entries {
		peer.Send("chat_complete", map[string]any{
			"content":   e.Text,
			"html":      e.HTML,
			"role":      e.Role,
			"source":    "history",
			"timestamp": e.Timestamp.Format(time.RFC3339),
		})
	}
}

func (h *Handlers) wsSendMessage(peer *relay.Peer, sessionID string, data map[string]any) {
	text, _ := data["text"].(string)

	ctx, cancel := context.WithTimeout(context.Background(), h.Config.InjectTimeout*5)
	defer cancel()

	method, err := h.Bridge.SendOutbound(ctx, sessionID, text)
	if err != nil {
		peer.Send("error", map[string]any{"message": err.Error()})
		return
	}
	peer.Send("message_sent", map[string]any{"method": method})
}

// wsAIMessages fans an automation peer's extraction batch out to the
// session clients, keeping the streaming/complete split intact.
func (h *Handlers) wsAIMessages(data map[string]any) {
	raw, _ := data["messages"].([]any)
	hub := h.Bridge.Hub()

	for _, entry := range raw {
		m, ok := entry.(map[string]any)
		if !ok {
			continue
		}
		text, _ := m["text"].(string)
		if text == "" {
			continue
		}
		html, _ := m["html"].(string)
		complete, _ := m["isComplete"].(bool)

		if complete {
			hub.Broadcast("chat_complete", map[string]any{
				"content":   text,
				"html":      html,
				"timestamp": time.Now().UTC().Format(time.RFC3339),
			})
			if err := h.Bridge.History().Append(extract.RoleAssistant, text, html); err != nil {
				slog.Warn("history append failed", "err", err)
			}
		} else {
			hub.Broadcast("chat_update", map[string]any{
				"messages":  []any{m},
				"partial":   true,
				"timestamp": time.Now().UTC().Format(time.RFC3339),
			})
		}
	}
}

func (h *Handlers) wsDecideAction(peer *relay.Peer, accept bool, data map[string]any) {
	id, _ := data["id"].(string)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	action, err := h.Bridge.DecideAction(ctx, id, accept)
	if err != nil {
		peer.Send("error", map[string]any{"message": err.Error(), "id": id})
		return
	}
	peer.Send("action_decided", map[string]any{"id": action.ID, "status": string(action.Status)})
}
