// Package session is the registry of logical conversation identities.
// The core treats a session id as an opaque routing key; this registry
// only mints, looks up and persists them.
package session

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusActive   Status = "active"
	StatusArchived Status = "archived"
)

type Session struct {
	ID        string    `json:"id"`
	Key       string    `json:"key"`
	Status    Status    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Registry stores sessions in a JSON file under the state directory so
// routing keys survive a restart.
type Registry struct {
	mu       sync.Mutex
	path     string
	sessions []*Session
}

func NewRegistry(stateDir string) (*Registry, error) {
	r := &Registry{path: filepath.Join(stateDir, "sessions.json")}

	if err := os.MkdirAll(stateDir, 0755); err != nil {
		return nil, fmt.Errorf("create state dir: %w", err)
	}
	if err := r.load(); err != nil {
		// A corrupt file should not take the whole service down.
		slog.Warn("session registry load failed, starting empty", "path", r.path, "err", err)
		r.sessions = nil
	}
	return r, nil
}

func (r *Registry) load() error {
	data, err := os.ReadFile(r.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	var stored struct {
		Sessions []*Session `json:"sessions"`
	}
	if err := json.Unmarshal(data, &stored); err != nil {
		return err
	}
	r.sessions = stored.Sessions
	return nil
}

func (r *Registry) saveLocked() {
	stored := struct {
		Sessions []*Session `json:"sessions"`
	}{Sessions: r.sessions}

	data, err := json.MarshalIndent(stored, "", "  ")
	if err != nil {
		slog.Error("session registry marshal failed", "err", err)
		return
	}
	if err := os.WriteFile(r.path, data, 0644); err != nil {
		slog.Error("session registry save failed", "path", r.path, "err", err)
	}
}

// Create mints a new session for the given caller key.
func (r *Registry) Create(key string) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now().UTC()
	s := &Session{
		ID:        uuid.NewString()[:8],
		Key:       key,
		Status:    StatusActive,
		CreatedAt: now,
		UpdatedAt: now,
	}
	r.sessions = append(r.sessions, s)
	r.saveLocked()
	return s
}

// Get returns a session by id, or nil when unknown.
func (r *Registry) Get(id string) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.sessions {
		if s.ID == id {
			return s
		}
	}
	return nil
}

// List returns all known sessions, newest last.
func (r *Registry) List() []*Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Session, len(r.sessions))
	copy(out, r.sessions)
	return out
}

// Touch bumps a session's updated timestamp.
func (r *Registry) Touch(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.sessions {
		if s.ID == id {
			s.UpdatedAt = time.Now().UTC()
			r.saveLocked()
			return
		}
	}
}
