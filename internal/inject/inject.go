// Package inject delivers user-authored messages into the automated
// application through an ordered fallback chain. Each mechanism trades
// reliability for reach; the pipeline stops at the first success.
package inject

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// Payload is one outbound message.
type Payload struct {
	SessionID string
	Text      string
}

// Mechanism is one delivery path. It must report failure as an error
// rather than panicking past its own boundary.
type Mechanism interface {
	Name() string
	Send(ctx context.Context, p Payload) error
}

// Pipeline tries mechanisms in strict priority order. Each attempt is
// bounded by its own timeout so a hung mechanism cannot starve the rest
// of the chain.
type Pipeline struct {
	mechanisms []Mechanism
	timeout    time.Duration
}

func NewPipeline(timeout time.Duration, mechanisms ...Mechanism) *Pipeline {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Pipeline{mechanisms: mechanisms, timeout: timeout}
}

// Send attempts delivery and returns the name of the mechanism that
// succeeded. All-mechanisms failure yields one aggregated error.
func (p *Pipeline) Send(ctx context.Context, payload Payload) (string, error) {
	var failures []error

	for _, m := range p.mechanisms {
		attemptCtx, cancel := context.WithTimeout(ctx, p.timeout)
		err := m.Send(attemptCtx, payload)
		cancel()

		if err == nil {
			slog.Info("message delivered", "mechanism", m.Name(), "chars", len(payload.Text))
			return m.Name(), nil
		}
		slog.Debug("delivery mechanism failed", "mechanism", m.Name(), "err", err)
		failures = append(failures, fmt.Errorf("%s: %w", m.Name(), err))
	}

	return "", fmt.Errorf("all delivery mechanisms failed: %w", errors.Join(failures...))
}
