// Package history is the bounded rolling message store. The core only
// appends and reads recent entries; retention is enforced here.
package history

import "time"

const (
	DefaultMaxEntries = 50
	minEntries        = 1
	maxEntries        = 500
)

// Entry is one persisted chat message.
type Entry struct {
	ID        int64     `json:"id"`
	Role      string    `json:"role"`
	Text      string    `json:"text"`
	HTML      string    `json:"html,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Store is the rolling history contract.
type Store interface {
	Append(role, text, html string) error
	// Recent returns up to limit entries, oldest first.
	Recent(limit int) ([]Entry, error)
	Clear() error
	// SetMaxEntries adjusts the retention cap, clamped to a sane range.
	SetMaxEntries(n int)
	Close() error
}

func clampMax(n int) int {
	if n < minEntries {
		return minEntries
	}
	if n > maxEntries {
		return maxEntries
	}
	return n
}
