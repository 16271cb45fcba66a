package bridge

import (
	"context"
	"time"

	"github.com/krishahir26/antibridge/internal/actions"
	"github.com/krishahir26/antibridge/internal/cdp"
	"github.com/krishahir26/antibridge/internal/history"
	"github.com/krishahir26/antibridge/internal/relay"
	"github.com/krishahir26/antibridge/internal/session"
)

// API is the operation surface the transport layer programs against.
// Keeping it an interface lets handler tests run without a browser.
type API interface {
	Connect(ctx context.Context) bool
	Disconnect()
	ConnectionState() cdp.State

	StartPolling(sessionID string, interval time.Duration)
	StopPolling()
	Polling() (string, bool)

	SendOutbound(ctx context.Context, sessionID, text string) (string, error)
	SendUICommand(ctx context.Context, kind, arg string) error

	State(ctx context.Context) Status
	PendingActions() []*actions.Action
	DecideAction(ctx context.Context, id string, accept bool) (*actions.Action, error)

	Hub() *relay.Hub
	History() history.Store
	Sessions() *session.Registry

	Close() error
}

var _ API = (*Bridge)(nil)
