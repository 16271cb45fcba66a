// Package stream decides when a scraped assistant response is finished.
// The automated application never signals "generation complete", so
// completion is inferred from content silence: a configurable number of
// poll ticks with no fresh candidates closes the stream.
package stream

import (
	"context"
	"fmt"
	"hash/fnv"
	"log/slog"
	"sync"
	"time"

	"github.com/krishahir26/antibridge/internal/extract"
	"github.com/krishahir26/antibridge/internal/noise"
)

// Event types produced by the engine.
const (
	EventChatUpdate   = "chat_update"
	EventChatComplete = "chat_complete"
)

// Sink receives typed domain events. Satisfied by the relay hub.
type Sink interface {
	Emit(event string, payload map[string]any)
}

// History is the rolling message store collaborator. The engine only
// appends; retention is the store's concern.
type History interface {
	Append(role, text, html string)
}

// seenLimit bounds the dedup set so a long-lived attachment cannot grow
// memory without bound. Oldest hashes are evicted first.
const seenLimit = 2000

// Engine is the state machine between the extractor and the relay hub.
// One engine per attachment; all state is cleared on reconnect because
// dedup hashes are keyed on frame identity.
type Engine struct {
	threshold int
	sink      Sink
	history   History

	mu           sync.Mutex
	buffer       string
	lastHTML     string
	isStreaming  bool
	stableCycles int

	seen      map[string]struct{}
	seenOrder []string
}

func NewEngine(threshold int, sink Sink, history History) *Engine {
	if threshold < 1 {
		threshold = 1
	}
	return &Engine{
		threshold: threshold,
		sink:      sink,
		history:   history,
		seen:      make(map[string]struct{}),
	}
}

// IsStreaming reports whether an assistant turn is currently in flight.
func (e *Engine) IsStreaming() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.isStreaming
}

// Reset clears the dedup set and all stream state. Must be called on
// reconnect; an interrupted stream is abandoned, not resumed.
func (e *Engine) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.buffer = ""
	e.lastHTML = ""
	e.isStreaming = false
	e.stableCycles = 0
	e.seen = make(map[string]struct{})
	e.seenOrder = nil
}

// Tick consumes one extraction poll's worth of candidates and advances
// the state machine, emitting a partial update when fresh content arrives
// and a final event once the stream has been silent long enough.
func (e *Engine) Tick(candidates []extract.Candidate) {
	e.mu.Lock()
	defer e.mu.Unlock()

	fresh := e.freshCandidates(candidates)

	if len(fresh) > 0 {
		for _, c := range fresh {
			if e.buffer != "" {
				e.buffer += "\n"
			}
			e.buffer += c.Text
			if c.HTML != "" {
				e.lastHTML = c.HTML
			}
		}
		e.isStreaming = true
		e.stableCycles = 0

		e.sink.Emit(EventChatUpdate, map[string]any{
			"messages":  fresh,
			"partial":   true,
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		})
		return
	}

	if !e.isStreaming {
		return
	}

	e.stableCycles++
	if e.stableCycles < e.threshold {
		return
	}

	slog.Debug("stream stabilized", "cycles", e.stableCycles, "chars", len(e.buffer))
	e.sink.Emit(EventChatComplete, map[string]any{
		"content":   e.buffer,
		"html":      e.lastHTML,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
	if e.history != nil {
		e.history.Append(extract.RoleAssistant, e.buffer, e.lastHTML)
	}

	e.buffer = ""
	e.lastHTML = ""
	e.isStreaming = false
	e.stableCycles = 0
}

func (e *Engine) freshCandidates(candidates []extract.Candidate) []extract.Candidate {
	var fresh []extract.Candidate
	for _, c := range candidates {
		if noise.IsNoise(c.Text) {
			continue
		}
		key := hashCandidate(c)
		if _, ok := e.seen[key]; ok {
			continue
		}
		e.remember(key)
		fresh = append(fresh, c)
	}
	return fresh
}

func (e *Engine) remember(key string) {
	e.seen[key] = struct{}{}
	e.seenOrder = append(e.seenOrder, key)
	for len(e.seenOrder) > seenLimit {
		oldest := e.seenOrder[0]
		e.seenOrder = e.seenOrder[1:]
		delete(e.seen, oldest)
	}
}

// hashCandidate keys dedup on text, role and originating frame. Frame
// index matters: the same text rendered in two frames is two candidates.
func hashCandidate(c extract.Candidate) string {
	h := fnv.New64a()
	fmt.Fprintf(h, "%s_%s_%d", c.Text, c.Role, c.FrameIndex)
	return fmt.Sprintf("%x", h.Sum64())
}

// PollFunc produces one tick's candidates. Errors are logged and the
// tick skipped; fatal attachment errors are the connection manager's
// problem, not the loop's.
type PollFunc func(ctx context.Context) ([]extract.Candidate, error)

// Loop drives the engine on a fixed cadence until ctx is cancelled.
func (e *Engine) Loop(ctx context.Context, interval time.Duration, poll PollFunc) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			candidates, err := poll(ctx)
			if err != nil {
				slog.Debug("chat poll failed", "err", err)
				continue
			}
			e.Tick(candidates)
		}
	}
}
