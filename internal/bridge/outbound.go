package bridge

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/krishahir26/antibridge/internal/extract"
	"github.com/krishahir26/antibridge/internal/inject"
)

// SendOutbound delivers a user message into the IDE's chat input and
// returns the name of the mechanism that carried it. The message is
// recorded in history exactly once, whether or not delivery succeeds,
// so the transcript reflects what the user asked for.
func (b *Bridge) SendOutbound(ctx context.Context, sessionID, text string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", errEmptyMessage
	}

	if err := b.history.Append(extract.RoleUser, text, ""); err != nil {
		slog.Warn("history append failed", "err", err)
	}

	b.hub.EmitSession(sessionID, "status", map[string]any{
		"message":   "sending",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})

	method, err := b.pipeline.Send(ctx, inject.Payload{SessionID: sessionID, Text: text})
	if err != nil {
		b.hub.EmitSession(sessionID, "status", map[string]any{
			"message": "send failed",
			"error":   err.Error(),
		})
		return "", err
	}

	b.hub.EmitSession(sessionID, "chat_sent", map[string]any{
		"method":    method,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
	slog.Info("outbound message delivered", "session", sessionID, "method", method)
	return method, nil
}
