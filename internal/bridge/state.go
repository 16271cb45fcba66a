package bridge

import (
	"context"

	"github.com/krishahir26/antibridge/internal/cdp"
)

// Status is the observable bridge state returned to clients.
type Status struct {
	Connection     string   `json:"connection"`
	Polling        bool     `json:"polling"`
	PollingSession string   `json:"pollingSession,omitempty"`
	CurrentModel   string   `json:"currentModel"`
	IsStreaming    bool     `json:"isStreaming"`
	PendingActions int      `json:"pendingActions"`
	MessageCount   int      `json:"messageCount"`
	ActiveSessions []string `json:"activeSessions"`
	Peers          int      `json:"peers"`
}

type pageState struct {
	CurrentModel string `json:"currentModel"`
	IsStreaming  bool   `json:"isStreaming"`
	MessageCount int    `json:"messageCount"`
}

// State snapshots the bridge. Page-derived fields are best effort; an
// unreachable page leaves them zeroed rather than failing the call.
func (b *Bridge) State(ctx context.Context) Status {
	sessionID, polling := b.Polling()

	st := Status{
		Connection:     string(b.manager.State()),
		Polling:        polling,
		PollingSession: sessionID,
		CurrentModel:   "unknown",
		IsStreaming:    b.engine.IsStreaming(),
		PendingActions: len(b.detector.List()),
		ActiveSessions: b.hub.ActiveSessions(),
		Peers:          b.hub.PeerCount(),
	}

	if b.manager.State() == cdp.StateConnected {
		var ps pageState
		if err := b.manager.Eval(ctx, stateScript, &ps); err == nil {
			if ps.CurrentModel != "" {
				st.CurrentModel = ps.CurrentModel
			}
			st.IsStreaming = st.IsStreaming || ps.IsStreaming
			st.MessageCount = ps.MessageCount
		}
	}

	return st
}

const stateScript = `(() => {
` + chatDocs + `
	const out = { currentModel: '', isStreaming: false, messageCount: 0 };
	for (const doc of chatDocs()) {
		if (!out.currentModel) {
			const modelBtn = doc.querySelector('button[class*="model"], [aria-label*="model" i]');
			if (modelBtn) out.currentModel = (modelBtn.textContent || '').trim();
		}
		if (!out.isStreaming) {
			const stop = doc.querySelector('[data-tooltip-id="input-send-button-cancel-tooltip"], [aria-label*="Stop" i], .bg-red-500');
			if (stop && visible(stop)) out.isStreaming = true;
		}
		out.messageCount += doc.querySelectorAll('.notify-user-container').length;
	}
	return out;
})()`
