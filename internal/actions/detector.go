// Package actions watches the automated application for pending decision
// prompts (approve a file edit, run a command, retry) and exposes
// accept/reject operations over them. Destructive commands are flagged,
// not blocked; the human operator decides.
package actions

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/krishahir26/antibridge/internal/relay"
)

type ActionType string

const (
	TypeFileEdit        ActionType = "file_edit"
	TypeTerminalCommand ActionType = "terminal_command"
	TypeRetry           ActionType = "retry"
	TypeActionRequest   ActionType = "action_request"
)

type Status string

const (
	StatusPending  Status = "pending"
	StatusAccepted Status = "accepted"
	StatusRejected Status = "rejected"
	StatusTimedOut Status = "timed_out"
)

// Action is one tracked decision prompt. Identity is stable for the
// lifetime of the underlying UI element.
type Action struct {
	ID          string     `json:"id"`
	Type        ActionType `json:"type"`
	Content     string     `json:"content,omitempty"`
	FileName    string     `json:"fileName,omitempty"`
	Command     string     `json:"command,omitempty"`
	IsDangerous bool       `json:"isDangerous"`
	DetectedAt  time.Time  `json:"detectedAt"`
	Status      Status     `json:"status"`
}

// ErrNotFound is returned when a decision references an id that is no
// longer tracked. Never a panic; stale ids are normal after timeouts.
var ErrNotFound = errors.New("action not found")

// Evaluator runs a JavaScript expression in the attached page.
type Evaluator interface {
	Eval(ctx context.Context, expr string, out any) error
}

// Sink receives action lifecycle events.
type Sink interface {
	Emit(event string, payload map[string]any)
}

// Event types produced by the detector.
const (
	EventPendingAction  = "pending_action"
	EventActionAccepted = "action_accepted"
	EventActionRejected = "action_rejected"
	EventActionTimeout  = "action_timeout"
)

// Detector polls for decision controls independently of the chat loop.
// A stall in one loop never stops the other.
type Detector struct {
	ev      Evaluator
	sink    Sink
	hub     *relay.Hub
	timeout time.Duration

	mu      sync.Mutex
	pending map[string]*Action
}

func NewDetector(ev Evaluator, sink Sink, hub *relay.Hub, timeout time.Duration) *Detector {
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &Detector{
		ev:      ev,
		sink:    sink,
		hub:     hub,
		timeout: timeout,
		pending: make(map[string]*Action),
	}
}

// List returns a snapshot of currently pending actions.
func (d *Detector) List() []*Action {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]*Action, 0, len(d.pending))
	for _, a := range d.pending {
		cp := *a
		out = append(out, &cp)
	}
	return out
}

// Tick scans the page once, registers any newly seen decision controls
// and expires stale ones.
func (d *Detector) Tick(ctx context.Context) {
	d.expire()

	var scanned []scannedControl
	if err := d.ev.Eval(ctx, scanScript, &scanned); err != nil {
		slog.Debug("action scan failed", "err", err)
		return
	}

	for _, sc := range scanned {
		if !sc.Visible || !IsAcceptEligible(sc.Text) {
			continue
		}
		d.track(sc)
	}
}

func (d *Detector) track(sc scannedControl) {
	d.mu.Lock()
	if _, ok := d.pending[sc.ID]; ok {
		d.mu.Unlock()
		return
	}

	a := &Action{
		ID:         sc.ID,
		Type:       Classify(sc.Text, sc.Context, sc.Command),
		Content:    sc.Context,
		Command:    sc.Command,
		DetectedAt: time.Now().UTC(),
		Status:     StatusPending,
	}
	if a.Type == TypeTerminalCommand {
		a.Content = sc.Command
		a.IsDangerous = IsDangerous(sc.Command)
	}
	if a.Type == TypeFileEdit {
		a.FileName = ExtractFileName(sc.Context)
	}
	d.pending[sc.ID] = a
	d.mu.Unlock()

	slog.Info("pending action detected", "id", a.ID, "type", a.Type, "dangerous", a.IsDangerous)
	d.sink.Emit(EventPendingAction, actionPayload(a))
}

func (d *Detector) expire() {
	cutoff := time.Now().UTC().Add(-d.timeout)

	d.mu.Lock()
	var expired []*Action
	for id, a := range d.pending {
		if a.DetectedAt.Before(cutoff) {
			a.Status = StatusTimedOut
			expired = append(expired, a)
			delete(d.pending, id)
		}
	}
	d.mu.Unlock()

	for _, a := range expired {
		slog.Info("pending action timed out", "id", a.ID, "type", a.Type)
		d.sink.Emit(EventActionTimeout, actionPayload(a))
	}
}

// Decide accepts or rejects a tracked action. The press is attempted
// through the registered action peer first and falls back to direct
// in-page scripting.
func (d *Detector) Decide(ctx context.Context, id string, accept bool) (*Action, error) {
	d.mu.Lock()
	a, ok := d.pending[id]
	if !ok {
		d.mu.Unlock()
		return nil, ErrNotFound
	}
	delete(d.pending, id)
	d.mu.Unlock()

	if accept {
		a.Status = StatusAccepted
	} else {
		a.Status = StatusRejected
	}

	if err := d.press(ctx, id, accept); err != nil {
		slog.Warn("action press failed", "id", id, "accept", accept, "err", err)
	}

	event := EventActionAccepted
	if !accept {
		event = EventActionRejected
	}
	d.sink.Emit(event, actionPayload(a))
	return a, nil
}

func (d *Detector) press(ctx context.Context, id string, accept bool) error {
	if d.hub != nil {
		command := "accept_action"
		if !accept {
			command = "reject_action"
		}
		if err := d.hub.ForwardAction(command, map[string]any{"id": id}, 3*time.Second); err == nil {
			return nil
		} else if !errors.Is(err, relay.ErrNoPeer) {
			slog.Debug("action peer press failed, using direct click", "err", err)
		}
	}

	var ok bool
	if err := d.ev.Eval(ctx, buildDecideScript(id, accept), &ok); err != nil {
		return err
	}
	if !ok {
		return errors.New("decision control no longer present")
	}
	return nil
}

// Loop drives the detector on its own cadence until ctx is cancelled.
func (d *Detector) Loop(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.Tick(ctx)
		}
	}
}

func actionPayload(a *Action) map[string]any {
	return map[string]any{
		"id":          a.ID,
		"type":        a.Type,
		"content":     a.Content,
		"fileName":    a.FileName,
		"command":     a.Command,
		"isDangerous": a.IsDangerous,
		"detectedAt":  a.DetectedAt.Format(time.RFC3339),
		"status":      a.Status,
	}
}
