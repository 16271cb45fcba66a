// Package cdp owns the lifecycle of the remote-debugging attachment:
// endpoint discovery, target selection, retry, keep-alive re-injection
// and fatal error classification.
package cdp

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/target"
	"github.com/chromedp/chromedp"

	"github.com/krishahir26/antibridge/internal/config"
)

type State string

const (
	StateDisconnected State = "disconnected"
	StateConnecting   State = "connecting"
	StateConnected    State = "connected"
)

// connectFlight shares one in-flight connect attempt between callers.
type connectFlight struct {
	done chan struct{}
	ok   bool
}

// Manager is the sole mutator of attachment state. All other components
// borrow the tab context through Context() and report fatal errors back
// through HandleError.
type Manager struct {
	cfg *config.RuntimeConfig

	mu          sync.Mutex
	state       State
	flight      *connectFlight
	allocCancel context.CancelFunc
	tabCtx      context.Context
	tabCancel   context.CancelFunc
	keepCancel  context.CancelFunc
	page        PageInfo

	// Instrumentation evaluated on attach and re-asserted by keep-alive.
	// Must be idempotent: it checks its own marker before installing.
	Instrumentation string
	// Marker expression returning true when instrumentation is present.
	InstrumentationCheck string

	onDisconnect []func()
}

func NewManager(cfg *config.RuntimeConfig) *Manager {
	return &Manager{
		cfg:   cfg,
		state: StateDisconnected,
	}
}

// OnDisconnect registers a callback fired whenever the attachment is
// invalidated. Used to clear stream state and dedup caches whose hashes
// are keyed on frame identity.
func (m *Manager) OnDisconnect(fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onDisconnect = append(m.onDisconnect, fn)
}

func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Context returns the live tab context, or false when disconnected.
func (m *Manager) Context() (context.Context, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != StateConnected || m.tabCtx == nil {
		return nil, false
	}
	return m.tabCtx, true
}

// Page returns the selected target page metadata.
func (m *Manager) Page() PageInfo {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.page
}

// Connect attaches to the remote-debugging endpoint, retrying with a fixed
// delay up to the configured attempt count. A concurrent Connect while one
// is in flight does not start a second dial; it waits for and returns the
// in-flight outcome.
func (m *Manager) Connect(ctx context.Context) bool {
	m.mu.Lock()
	if m.state == StateConnected {
		m.mu.Unlock()
		return true
	}
	if f := m.flight; f != nil {
		m.mu.Unlock()
		select {
		case <-f.done:
			return f.ok
		case <-ctx.Done():
			return false
		}
	}
	f := &connectFlight{done: make(chan struct{})}
	m.flight = f
	m.state = StateConnecting
	m.mu.Unlock()

	ok := m.dial(ctx)

	m.mu.Lock()
	f.ok = ok
	if ok {
		m.state = StateConnected
	} else {
		m.state = StateDisconnected
	}
	m.flight = nil
	m.mu.Unlock()
	close(f.done)

	if ok {
		m.startKeepAlive()
	}
	return ok
}

func (m *Manager) dial(ctx context.Context) bool {
	for attempt := 1; attempt <= m.cfg.ConnectAttempts; attempt++ {
		slog.Info("connecting to debug endpoint", "url", m.cfg.DebugURL, "attempt", attempt, "max", m.cfg.ConnectAttempts)

		if err := m.attach(ctx); err != nil {
			slog.Warn("attach failed", "attempt", attempt, "err", err)
			if attempt < m.cfg.ConnectAttempts {
				select {
				case <-ctx.Done():
					return false
				case <-time.After(m.cfg.ConnectDelay):
				}
			}
			continue
		}

		slog.Info("attached to target", "title", m.page.Title, "url", m.page.URL)
		return true
	}
	return false
}

func (m *Manager) attach(ctx context.Context) error {
	wsURL, err := DiscoverBrowserWS(ctx, m.cfg.DebugURL)
	if err != nil {
		// Some embedders only answer /json/list; fall back to a page-level
		// debugger URL and derive the browser endpoint from target selection.
		pages, listErr := ListPages(ctx, m.cfg.DebugURL)
		if listErr != nil || len(pages) == 0 {
			return err
		}
		page, ok := SelectTarget(pages, m.cfg.TargetTitle)
		if !ok {
			return err
		}
		wsURL = page.WebSocketDebuggerURL
		m.mu.Lock()
		m.page = page
		m.mu.Unlock()
		return m.attachDirect(wsURL)
	}

	pages, err := ListPages(ctx, m.cfg.DebugURL)
	if err != nil {
		return err
	}
	page, ok := SelectTarget(pages, m.cfg.TargetTitle)
	if !ok {
		return errNoTarget
	}

	allocCtx, allocCancel := chromedp.NewRemoteAllocator(context.Background(), wsURL, chromedp.NoModifyURL)
	tabCtx, tabCancel := chromedp.NewContext(allocCtx, chromedp.WithTargetID(target.ID(page.ID)))

	if err := chromedp.Run(tabCtx); err != nil {
		tabCancel()
		allocCancel()
		return err
	}

	m.mu.Lock()
	m.allocCancel = allocCancel
	m.tabCtx = tabCtx
	m.tabCancel = tabCancel
	m.page = page
	m.mu.Unlock()

	m.injectInstrumentation(tabCtx)
	return nil
}

// attachDirect attaches through a page-level debugger URL when the browser
// endpoint is unavailable.
func (m *Manager) attachDirect(wsURL string) error {
	allocCtx, allocCancel := chromedp.NewRemoteAllocator(context.Background(), wsURL, chromedp.NoModifyURL)
	tabCtx, tabCancel := chromedp.NewContext(allocCtx)

	if err := chromedp.Run(tabCtx); err != nil {
		tabCancel()
		allocCancel()
		return err
	}

	m.mu.Lock()
	m.allocCancel = allocCancel
	m.tabCtx = tabCtx
	m.tabCancel = tabCancel
	m.mu.Unlock()

	m.injectInstrumentation(tabCtx)
	return nil
}

func (m *Manager) injectInstrumentation(tabCtx context.Context) {
	if m.Instrumentation == "" {
		return
	}
	if m.InstrumentationCheck != "" {
		var present bool
		runCtx, cancel := context.WithTimeout(tabCtx, m.cfg.InjectTimeout)
		err := chromedp.Run(runCtx, chromedp.Evaluate(m.InstrumentationCheck, &present))
		cancel()
		if err == nil && present {
			return
		}
	}
	runCtx, cancel := context.WithTimeout(tabCtx, m.cfg.InjectTimeout)
	defer cancel()
	if err := chromedp.Run(runCtx, chromedp.Evaluate(m.Instrumentation, nil)); err != nil {
		slog.Warn("instrumentation injection failed", "err", err)
	}
}

// startKeepAlive re-asserts the in-page instrumentation on a fixed period.
// Injection is idempotent so a tick against an already-instrumented page
// is a no-op.
func (m *Manager) startKeepAlive() {
	m.mu.Lock()
	if m.keepCancel != nil {
		m.keepCancel()
	}
	ctx, cancel := context.WithCancel(context.Background())
	m.keepCancel = cancel
	m.mu.Unlock()

	go func() {
		ticker := time.NewTicker(m.cfg.KeepAlive)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				tabCtx, ok := m.Context()
				if !ok {
					return
				}
				m.injectInstrumentation(tabCtx)
			}
		}
	}()
}

// Disconnect tears the attachment down. Safe to call when already down.
func (m *Manager) Disconnect() {
	m.Invalidate()
}

// Invalidate marks the attachment dead after a fatal protocol error and
// tears down the transport. Callers wanting to recover should follow with
// Reconnect.
func (m *Manager) Invalidate() {
	m.mu.Lock()
	if m.state == StateDisconnected && m.tabCtx == nil {
		m.mu.Unlock()
		return
	}
	m.teardownLocked()
	m.mu.Unlock()
	m.fireDisconnect()
}

func (m *Manager) teardownLocked() {
	if m.keepCancel != nil {
		m.keepCancel()
		m.keepCancel = nil
	}
	if m.tabCancel != nil {
		m.tabCancel()
		m.tabCancel = nil
	}
	if m.allocCancel != nil {
		m.allocCancel()
		m.allocCancel = nil
	}
	m.tabCtx = nil
	m.state = StateDisconnected
	m.page = PageInfo{}
}

func (m *Manager) fireDisconnect() {
	m.mu.Lock()
	callbacks := make([]func(), len(m.onDisconnect))
	copy(callbacks, m.onDisconnect)
	m.mu.Unlock()
	for _, fn := range callbacks {
		fn()
	}
}

// Reconnect invalidates and retries attachment without blocking the caller.
// Connect's single-flight guard suppresses duplicate reconnects spawned
// from overlapping poll ticks.
func (m *Manager) Reconnect() {
	m.Invalidate()
	go func() {
		if !m.Connect(context.Background()) {
			slog.Warn("reconnect failed", "url", m.cfg.DebugURL)
		}
	}()
}

// HandleError classifies an error from a borrowed tab context. Fatal
// protocol errors invalidate the attachment and trigger an async
// reconnect; the caller's poll loop continues either way.
func (m *Manager) HandleError(err error) {
	if err == nil || !IsFatal(err) {
		return
	}
	slog.Warn("fatal protocol error, reconnecting", "err", err)
	m.Reconnect()
}

var fatalMarkers = []string{
	"session closed",
	"protocol error",
	"target closed",
	"execution context was destroyed",
	"execution context destroyed",
	"websocket: close",
	"connection refused",
}

// IsFatal reports whether err indicates the attachment itself is dead,
// as opposed to a recoverable per-frame failure.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range fatalMarkers {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

// Eval runs a JavaScript expression in the attached page with a bounded
// timeout, decoding the result into out when non-nil.
func (m *Manager) Eval(ctx context.Context, expr string, out any) error {
	tabCtx, ok := m.Context()
	if !ok {
		return ErrNotConnected
	}
	runCtx, cancel := context.WithTimeout(tabCtx, m.cfg.InjectTimeout)
	defer cancel()

	err := chromedp.Run(runCtx, chromedp.Evaluate(expr, out))
	if err != nil {
		m.HandleError(err)
	}
	return err
}
