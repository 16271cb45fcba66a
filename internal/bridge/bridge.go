// Package bridge wires the attachment, extraction, stabilization,
// injection and action subsystems into the operations the transport
// layer exposes.
package bridge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/krishahir26/antibridge/internal/actions"
	"github.com/krishahir26/antibridge/internal/assets"
	"github.com/krishahir26/antibridge/internal/cdp"
	"github.com/krishahir26/antibridge/internal/config"
	"github.com/krishahir26/antibridge/internal/extract"
	"github.com/krishahir26/antibridge/internal/history"
	"github.com/krishahir26/antibridge/internal/inject"
	"github.com/krishahir26/antibridge/internal/relay"
	"github.com/krishahir26/antibridge/internal/session"
	"github.com/krishahir26/antibridge/internal/stream"
)

// Bridge owns one IDE attachment and everything observing it.
type Bridge struct {
	cfg      *config.RuntimeConfig
	manager  *cdp.Manager
	hub      *relay.Hub
	strategy extract.Strategy
	engine   *stream.Engine
	history  history.Store
	sessions *session.Registry
	pipeline *inject.Pipeline
	detector *actions.Detector

	mu          sync.Mutex
	pollCancel  context.CancelFunc
	pollSession string
}

// historyAppender adapts the store to the engine's append-only view.
// Store failures are logged, never surfaced into the poll loop.
type historyAppender struct {
	store history.Store
}

func (h historyAppender) Append(role, text, html string) {
	if err := h.store.Append(role, text, html); err != nil {
		slog.Warn("history append failed", "role", role, "err", err)
	}
}

func New(cfg *config.RuntimeConfig) (*Bridge, error) {
	sel := extract.DefaultSelectors()
	if cfg.SelectorFile != "" {
		loaded, err := extract.LoadSelectors(cfg.SelectorFile)
		if err != nil {
			slog.Warn("selector file not usable, using defaults", "path", cfg.SelectorFile, "err", err)
		}
		sel = loaded
	}

	strategy, err := extract.New("selector", sel)
	if err != nil {
		return nil, fmt.Errorf("extract strategy: %w", err)
	}

	dbPath := cfg.HistoryDB
	if dbPath == "" {
		dbPath = filepath.Join(cfg.StateDir, "history.db")
	}
	store, err := history.OpenSQLite(dbPath, cfg.HistoryMax)
	if err != nil {
		return nil, fmt.Errorf("open history: %w", err)
	}

	sessions, err := session.NewRegistry(cfg.StateDir)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("session registry: %w", err)
	}

	hub := relay.NewHub()

	manager := cdp.NewManager(cfg)
	manager.Instrumentation = assets.PeerBridge(cfg.Port) + "\n" + assets.ActionPeer(cfg.Port)
	manager.InstrumentationCheck = assets.PeerBridgeCheck

	engine := stream.NewEngine(cfg.StableThreshold, hub, historyAppender{store})
	manager.OnDisconnect(engine.Reset)

	pipeline := inject.NewPipeline(cfg.InjectTimeout,
		inject.NewPeerRelay(hub, cfg.InjectTimeout),
		inject.NewScripted(manager, sel),
		inject.NewRawScan(manager, sel),
		inject.NewOSKeys(cfg.TargetTitle),
	)

	detector := actions.NewDetector(manager, hub, hub, cfg.ActionTimeout)

	return &Bridge{
		cfg:      cfg,
		manager:  manager,
		hub:      hub,
		strategy: strategy,
		engine:   engine,
		history:  store,
		sessions: sessions,
		pipeline: pipeline,
		detector: detector,
	}, nil
}

// Hub exposes the relay for the transport layer.
func (b *Bridge) Hub() *relay.Hub { return b.hub }

// History exposes the rolling message store.
func (b *Bridge) History() history.Store { return b.history }

// Sessions exposes the session registry.
func (b *Bridge) Sessions() *session.Registry { return b.sessions }

// Connect attaches to the IDE's debugging endpoint. Safe to call
// concurrently; a second caller joins the in-flight attempt.
func (b *Bridge) Connect(ctx context.Context) bool {
	return b.manager.Connect(ctx)
}

// Disconnect stops polling and tears down the attachment.
func (b *Bridge) Disconnect() {
	b.StopPolling()
	b.manager.Disconnect()
}

// ConnectionState reports the attachment state.
func (b *Bridge) ConnectionState() cdp.State {
	return b.manager.State()
}

// StartPolling begins the chat and action observation loops for one
// session. A second start replaces the previous loops.
func (b *Bridge) StartPolling(sessionID string, interval time.Duration) {
	if interval <= 0 {
		interval = b.cfg.PollInterval
	}
	if interval <= 0 {
		interval = 2 * time.Second
	}

	b.mu.Lock()
	if b.pollCancel != nil {
		b.pollCancel()
	}
	ctx, cancel := context.WithCancel(context.Background())
	b.pollCancel = cancel
	b.pollSession = sessionID
	b.mu.Unlock()

	b.sessions.Touch(sessionID)
	slog.Info("polling started", "session", sessionID, "interval", interval)

	actionInterval := b.cfg.ActionInterval
	if actionInterval <= 0 {
		actionInterval = time.Second
	}
	go b.engine.Loop(ctx, interval, b.poll)
	go b.detector.Loop(ctx, actionInterval)
}

// StopPolling halts the observation loops and abandons any stream in
// flight.
func (b *Bridge) StopPolling() {
	b.mu.Lock()
	cancel := b.pollCancel
	b.pollCancel = nil
	b.pollSession = ""
	b.mu.Unlock()

	if cancel != nil {
		cancel()
		b.engine.Reset()
		slog.Info("polling stopped")
	}
}

// Polling reports whether the observation loops are running and for
// which session.
func (b *Bridge) Polling() (string, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.pollSession, b.pollCancel != nil
}

func (b *Bridge) poll(ctx context.Context) ([]extract.Candidate, error) {
	if _, ok := b.manager.Context(); !ok {
		return nil, cdp.ErrNotConnected
	}
	return b.strategy.Extract(ctx, b.manager)
}

// PendingActions lists tracked decision prompts.
func (b *Bridge) PendingActions() []*actions.Action {
	return b.detector.List()
}

// DecideAction accepts or rejects one tracked prompt.
func (b *Bridge) DecideAction(ctx context.Context, id string, accept bool) (*actions.Action, error) {
	return b.detector.Decide(ctx, id, accept)
}

// Close releases everything the bridge holds.
func (b *Bridge) Close() error {
	b.Disconnect()
	return b.history.Close()
}

var errEmptyMessage = errors.New("message text is empty")
