package history

import (
	"fmt"
	"path/filepath"
	"testing"
)

// Both implementations must satisfy the same contract.
func stores(t *testing.T) map[string]Store {
	t.Helper()
	sqlStore, err := OpenSQLite(filepath.Join(t.TempDir(), "history.db"), 50)
	if err != nil {
		t.Fatalf("OpenSQLite() error = %v", err)
	}
	t.Cleanup(func() { _ = sqlStore.Close() })
	return map[string]Store{
		"sqlite": sqlStore,
		"memory": NewMemory(50),
	}
}

func TestAppendAndRecent(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			if err := s.Append("user", "first message", ""); err != nil {
				t.Fatalf("Append() error = %v", err)
			}
			if err := s.Append("assistant", "second message", "<p>second message</p>"); err != nil {
				t.Fatalf("Append() error = %v", err)
			}

			entries, err := s.Recent(10)
			if err != nil {
				t.Fatalf("Recent() error = %v", err)
			}
			if len(entries) != 2 {
				t.Fatalf("Recent() = %d entries, want 2", len(entries))
			}
			// Oldest first.
			if entries[0].Text != "first message" || entries[1].Text != "second message" {
				t.Errorf("Recent() order wrong: %q then %q", entries[0].Text, entries[1].Text)
			}
			if entries[1].HTML != "<p>second message</p>" {
				t.Errorf("HTML lost: %q", entries[1].HTML)
			}
		})
	}
}

func TestRetentionCap(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			s.SetMaxEntries(5)
			for i := 0; i < 12; i++ {
				if err := s.Append("assistant", fmt.Sprintf("message %d", i), ""); err != nil {
					t.Fatal(err)
				}
			}

			entries, err := s.Recent(0)
			if err != nil {
				t.Fatal(err)
			}
			if len(entries) != 5 {
				t.Fatalf("Recent() = %d entries, want 5 after trim", len(entries))
			}
			if entries[0].Text != "message 7" {
				t.Errorf("oldest surviving entry = %q, want message 7", entries[0].Text)
			}
		})
	}
}

func TestClear(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			_ = s.Append("user", "something", "")
			if err := s.Clear(); err != nil {
				t.Fatalf("Clear() error = %v", err)
			}
			entries, _ := s.Recent(10)
			if len(entries) != 0 {
				t.Errorf("Recent() = %d entries after clear, want 0", len(entries))
			}
		})
	}
}

func TestSetMaxEntriesClamped(t *testing.T) {
	m := NewMemory(50)
	m.SetMaxEntries(0)
	for i := 0; i < 3; i++ {
		_ = m.Append("user", fmt.Sprintf("m%d", i), "")
	}
	entries, _ := m.Recent(0)
	if len(entries) != 1 {
		t.Errorf("max clamped to %d entries, want floor of 1", len(entries))
	}

	m.SetMaxEntries(100000)
	m.mu.Lock()
	max := m.max
	m.mu.Unlock()
	if max != 500 {
		t.Errorf("max = %d, want ceiling of 500", max)
	}
}

func TestRecentLimitSmallerThanStored(t *testing.T) {
	m := NewMemory(50)
	for i := 0; i < 10; i++ {
		_ = m.Append("assistant", fmt.Sprintf("entry %d", i), "")
	}
	entries, _ := m.Recent(3)
	if len(entries) != 3 {
		t.Fatalf("Recent(3) = %d entries", len(entries))
	}
	if entries[2].Text != "entry 9" {
		t.Errorf("newest entry = %q, want entry 9", entries[2].Text)
	}
}
