package inject

import (
	"context"
	"time"

	"github.com/krishahir26/antibridge/internal/relay"
)

// PeerRelay forwards the payload to a registered in-page extension peer
// and trusts its acknowledgement. Fastest and most reliable path when
// the extension is connected.
type PeerRelay struct {
	hub     *relay.Hub
	timeout time.Duration
}

func NewPeerRelay(hub *relay.Hub, timeout time.Duration) *PeerRelay {
	return &PeerRelay{hub: hub, timeout: timeout}
}

func (m *PeerRelay) Name() string { return "peer-relay" }

func (m *PeerRelay) Send(ctx context.Context, p Payload) error {
	timeout := m.timeout
	if deadline, ok := ctx.Deadline(); ok {
		if until := time.Until(deadline); until < timeout {
			timeout = until
		}
	}
	return m.hub.ForwardOutbound(p.Text, timeout)
}
