package extract

import (
	"context"
	"log/slog"
)

func init() {
	Register("selector", func(sel SelectorSet) Strategy {
		return &selectorStrategy{
			sel:    sel,
			script: buildScanScript(sel),
		}
	})
}

// selectorStrategy locates message containers by CSS selector, falling
// back to raw body-text paragraph splitting when nothing matches. The
// whole scan runs as one in-page script so a frame detaching mid-scan
// costs that frame only.
type selectorStrategy struct {
	sel    SelectorSet
	script string
}

func (s *selectorStrategy) Name() string { return "selector" }

func (s *selectorStrategy) Extract(ctx context.Context, ev Evaluator) ([]Candidate, error) {
	var candidates []Candidate
	if err := ev.Eval(ctx, s.script, &candidates); err != nil {
		slog.Debug("extraction scan failed", "err", err)
		return nil, err
	}

	for i := range candidates {
		if candidates[i].Role == "" {
			candidates[i].Role = RoleUnknown
		}
	}
	return candidates, nil
}
