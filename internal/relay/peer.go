package relay

import (
	"errors"
	"sync"
	"time"
)

// Role classifies a registered connection. Until a connection registers
// it is provisional and receives no domain traffic.
type Role string

const (
	RoleExtension  Role = "extension"
	RoleAutomation Role = "automation"
	RoleAction     Role = "action"
	RoleSession    Role = "session"
)

// Conn is the subset of the websocket connection the hub needs.
// Satisfied by *websocket.Conn; faked in tests.
type Conn interface {
	WriteJSON(v any) error
	Close() error
}

// Envelope is the wire format for every outbound event.
type Envelope struct {
	Type string         `json:"type"`
	Data map[string]any `json:"data,omitempty"`
	TS   string         `json:"ts"`
}

var (
	ErrNoPeer     = errors.New("no peer registered for role")
	ErrAckTimeout = errors.New("peer acknowledgement timed out")
	ErrNack       = errors.New("peer reported delivery failure")
)

// Peer is one transport connection. Writes are serialized through a
// mutex because the websocket library allows one concurrent writer.
type Peer struct {
	conn Conn

	mu        sync.Mutex
	role      Role
	sessionID string

	ackMu sync.Mutex
	ack   chan bool
}

func NewPeer(conn Conn) *Peer {
	return &Peer{conn: conn}
}

func (p *Peer) Role() Role {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.role
}

func (p *Peer) SessionID() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.sessionID
}

func (p *Peer) setIdentity(role Role, sessionID string) {
	p.mu.Lock()
	p.role = role
	p.sessionID = sessionID
	p.mu.Unlock()
}

// Send writes one typed event to the peer.
func (p *Peer) Send(event string, payload map[string]any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.conn.WriteJSON(Envelope{
		Type: event,
		Data: payload,
		TS:   time.Now().UTC().Format(time.RFC3339),
	})
}

// ExpectAck arms a one-shot acknowledgement channel. The read loop
// resolves it via Ack when the peer's reply arrives.
func (p *Peer) ExpectAck() <-chan bool {
	p.ackMu.Lock()
	defer p.ackMu.Unlock()
	p.ack = make(chan bool, 1)
	return p.ack
}

// Ack resolves a pending acknowledgement. A stray ack with nothing
// armed is dropped.
func (p *Peer) Ack(ok bool) {
	p.ackMu.Lock()
	ch := p.ack
	p.ack = nil
	p.ackMu.Unlock()
	if ch != nil {
		ch <- ok
	}
}

func (p *Peer) Close() error {
	return p.conn.Close()
}
