// Package extract defines the interface for pluggable chat extraction
// strategies. Strategies control how conversation content is located in
// the automated application's undocumented, multi-frame DOM. The selector
// sets are the most volatile part of the system, so they are data behind
// a strategy rather than hard-wired control flow.
package extract

import (
	"context"
	"fmt"
	"sync"
)

// Candidate is one scraped message fragment, produced fresh on every
// extraction poll. Never persisted directly; deduplication happens
// downstream in the stream engine.
type Candidate struct {
	Text       string `json:"text"`
	HTML       string `json:"html,omitempty"`
	Class      string `json:"class,omitempty"`
	Role       string `json:"role"`
	FrameIndex int    `json:"frameIndex"`
	Method     string `json:"method,omitempty"`
}

// Roles assigned from class-name substrings.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleUnknown   = "unknown"
)

// Evaluator runs a JavaScript expression in the attached page and decodes
// the result. Satisfied by the connection manager; faked in tests.
type Evaluator interface {
	Eval(ctx context.Context, expr string, out any) error
}

// Strategy locates conversation content in the attached target.
type Strategy interface {
	// Name returns the strategy identifier (for config).
	Name() string

	// Extract scans every reachable frame and returns message candidates
	// in frame order then DOM order. A frame that fails mid-scan is
	// skipped, never propagated.
	Extract(ctx context.Context, ev Evaluator) ([]Candidate, error)
}

// Factory creates a new Strategy instance from a selector set.
type Factory func(sel SelectorSet) Strategy

var (
	registry = make(map[string]Factory)
	mu       sync.RWMutex
)

// Register adds a strategy factory to the registry.
func Register(name string, factory Factory) {
	mu.Lock()
	defer mu.Unlock()
	registry[name] = factory
}

// New creates a strategy by name from the registry.
func New(name string, sel SelectorSet) (Strategy, error) {
	mu.RLock()
	factory, ok := registry[name]
	mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("unknown extract strategy: %s (available: %v)", name, Names())
	}
	return factory(sel), nil
}

// Names returns all registered strategy names.
func Names() []string {
	mu.RLock()
	defer mu.RUnlock()

	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	return names
}
