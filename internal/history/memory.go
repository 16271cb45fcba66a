package history

import (
	"sync"
	"time"
)

// MemoryStore keeps the rolling history in process memory. Used when no
// database path is configured and as the test double for collaborators.
type MemoryStore struct {
	mu      sync.Mutex
	entries []Entry
	nextID  int64
	max     int
}

func NewMemory(max int) *MemoryStore {
	if max <= 0 {
		max = DefaultMaxEntries
	}
	return &MemoryStore{max: clampMax(max), nextID: 1}
}

func (m *MemoryStore) Append(role, text, html string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.entries = append(m.entries, Entry{
		ID:        m.nextID,
		Role:      role,
		Text:      text,
		HTML:      html,
		Timestamp: time.Now().UTC(),
	})
	m.nextID++

	if over := len(m.entries) - m.max; over > 0 {
		m.entries = m.entries[over:]
	}
	return nil
}

func (m *MemoryStore) Recent(limit int) ([]Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if limit <= 0 || limit > len(m.entries) {
		limit = len(m.entries)
	}
	out := make([]Entry, limit)
	copy(out, m.entries[len(m.entries)-limit:])
	return out, nil
}

func (m *MemoryStore) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = nil
	return nil
}

func (m *MemoryStore) SetMaxEntries(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.max = clampMax(n)
	if over := len(m.entries) - m.max; over > 0 {
		m.entries = m.entries[over:]
	}
}

func (m *MemoryStore) Close() error { return nil }
