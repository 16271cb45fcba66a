// Package relay is the typed pub/sub layer between the automation core
// and its remote clients. Each connection registers a role on its first
// message; events are routed session-scoped or broadcast across all
// sessions depending on the caller.
package relay

import (
	"log/slog"
	"sync"
	"time"
)

// Hub is the connection registry. Session membership is a set, so
// repeated adds of the same peer are no-ops and removal is idempotent.
type Hub struct {
	mu       sync.RWMutex
	peers    map[*Peer]struct{}
	byRole   map[Role]map[*Peer]struct{}
	sessions map[string]map[*Peer]struct{}
}

func NewHub() *Hub {
	return &Hub{
		peers:    make(map[*Peer]struct{}),
		byRole:   make(map[Role]map[*Peer]struct{}),
		sessions: make(map[string]map[*Peer]struct{}),
	}
}

// Register establishes a connection's role. Registering the same peer
// twice updates its identity without creating a second entry.
func (h *Hub) Register(p *Peer, role Role, sessionID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	// Drop any previous role/session membership first so a re-register
	// cannot leave the peer routed under two identities.
	h.removeLocked(p)

	p.setIdentity(role, sessionID)
	h.peers[p] = struct{}{}

	if h.byRole[role] == nil {
		h.byRole[role] = make(map[*Peer]struct{})
	}
	h.byRole[role][p] = struct{}{}

	if sessionID != "" {
		if h.sessions[sessionID] == nil {
			h.sessions[sessionID] = make(map[*Peer]struct{})
		}
		h.sessions[sessionID][p] = struct{}{}
	}

	slog.Info("peer registered", "role", role, "session", sessionID)
}

// Remove drops a peer from all routing tables. Safe to call for peers
// that never registered or were already removed.
func (h *Hub) Remove(p *Peer) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(p)
}

func (h *Hub) removeLocked(p *Peer) {
	if _, ok := h.peers[p]; !ok {
		return
	}
	delete(h.peers, p)

	role := p.Role()
	if set, ok := h.byRole[role]; ok {
		delete(set, p)
		if len(set) == 0 {
			delete(h.byRole, role)
		}
	}

	if sid := p.SessionID(); sid != "" {
		if set, ok := h.sessions[sid]; ok {
			delete(set, p)
			if len(set) == 0 {
				delete(h.sessions, sid)
			}
		}
	}
}

// PeerByRole returns one registered peer of the given role, or nil.
func (h *Hub) PeerByRole(role Role) *Peer {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for p := range h.byRole[role] {
		return p
	}
	return nil
}

// PeerCount returns the number of registered peers.
func (h *Hub) PeerCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.peers)
}

// SessionClientCount returns how many peers belong to one session.
func (h *Hub) SessionClientCount(sessionID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions[sessionID])
}

// ActiveSessions lists sessions with at least one connected peer.
func (h *Hub) ActiveSessions() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]string, 0, len(h.sessions))
	for sid := range h.sessions {
		out = append(out, sid)
	}
	return out
}

// EmitSession delivers an event to every peer in one session.
func (h *Hub) EmitSession(sessionID, event string, payload map[string]any) {
	h.mu.RLock()
	targets := make([]*Peer, 0, len(h.sessions[sessionID]))
	for p := range h.sessions[sessionID] {
		targets = append(targets, p)
	}
	h.mu.RUnlock()

	for _, p := range targets {
		if err := p.Send(event, payload); err != nil {
			slog.Debug("session emit failed", "session", sessionID, "event", event, "err", err)
		}
	}
}

// Broadcast delivers an event to every session client across all
// sessions. Role peers (extension, automation, action) are control
// channels and do not receive broadcast chat traffic.
func (h *Hub) Broadcast(event string, payload map[string]any) {
	h.mu.RLock()
	sids := make([]string, 0, len(h.sessions))
	for sid := range h.sessions {
		sids = append(sids, sid)
	}
	h.mu.RUnlock()

	for _, sid := range sids {
		h.EmitSession(sid, event, payload)
	}
}

// Emit satisfies the stream engine's sink contract. Chat events go to
// all sessions since every connected device mirrors the same target.
func (h *Hub) Emit(event string, payload map[string]any) {
	h.Broadcast(event, payload)
}

// ForwardOutbound hands a user message to the registered extension peer
// and waits for its acknowledgement.
func (h *Hub) ForwardOutbound(text string, timeout time.Duration) error {
	p := h.PeerByRole(RoleExtension)
	if p == nil {
		return ErrNoPeer
	}

	ack := p.ExpectAck()
	if err := p.Send("send_chat", map[string]any{"text": text}); err != nil {
		return err
	}

	select {
	case ok := <-ack:
		if !ok {
			return ErrNack
		}
		return nil
	case <-time.After(timeout):
		return ErrAckTimeout
	}
}

// ForwardAction asks the registered action peer to press a decision
// control on our behalf.
func (h *Hub) ForwardAction(command string, payload map[string]any, timeout time.Duration) error {
	p := h.PeerByRole(RoleAction)
	if p == nil {
		return ErrNoPeer
	}

	ack := p.ExpectAck()
	if err := p.Send(command, payload); err != nil {
		return err
	}

	select {
	case ok := <-ack:
		if !ok {
			return ErrNack
		}
		return nil
	case <-time.After(timeout):
		return ErrAckTimeout
	}
}
