// Package feedback records user reactions to match results and makes them
// available to the ranking layer. A positive entry for a merchant message
// nudges similar future matches up; a negative entry nudges them down.
package feedback

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
)

// Verdict is a user's reaction to a delivered match list.
type Verdict string

const (
	Positive Verdict = "positive"
	Negative Verdict = "negative"
)

// ParseVerdict normalizes user-facing feedback strings. It accepts the
// canonical values plus the thumbs-up/thumbs-down aliases the web client
// sends.
func ParseVerdict(s string) (Verdict, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "positive", "thumbs-up", "thumbs_up", "up", "+1":
		return Positive, nil
	case "negative", "thumbs-down", "thumbs_down", "down", "-1":
		return Negative, nil
	}
	return "", fmt.Errorf("feedback: unknown verdict %q", s)
}

// Turn is one prior exchange in a user's conversation, carried alongside
// feedback so rankers can weigh context.
type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Entry is one recorded reaction.
type Entry struct {
	UserID    string            `json:"user_id"`
	Message   string            `json:"message"`
	Verdict   Verdict           `json:"verdict"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	History   []Turn            `json:"history,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
}

// Reader is the read side consumed by rankers.
type Reader interface {
	// EntriesFor returns all recorded entries for the given user, oldest
	// first. A user with no history yields an empty slice and no error.
	EntriesFor(ctx context.Context, userID string) ([]Entry, error)
}

// Ledger is the full feedback store.
type Ledger interface {
	Reader
	// Record appends an entry. Entries are append-only; there is no
	// update or delete path.
	Record(ctx context.Context, e Entry) error
	// Snapshot reports per-user entry counts for status endpoints.
	Snapshot(ctx context.Context) (map[string]int, error)
}

// MemoryLedger is a process-local Ledger. It is safe for concurrent use.
type MemoryLedger struct {
	mu      sync.RWMutex
	entries map[string][]Entry
}

// NewMemoryLedger returns an empty in-memory ledger.
func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{entries: make(map[string][]Entry)}
}

// Record appends the entry under its user id.
func (l *MemoryLedger) Record(_ context.Context, e Entry) error {
	if e.UserID == "" {
		return fmt.Errorf("feedback: record: empty user id")
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries[e.UserID] = append(l.entries[e.UserID], e)
	return nil
}

// EntriesFor returns a copy of the user's entries, oldest first.
func (l *MemoryLedger) EntriesFor(_ context.Context, userID string) ([]Entry, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	src := l.entries[userID]
	out := make([]Entry, len(src))
	copy(out, src)
	return out, nil
}

// Snapshot reports how many entries each user has recorded.
func (l *MemoryLedger) Snapshot(_ context.Context) (map[string]int, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make(map[string]int, len(l.entries))
	for id, es := range l.entries {
		out[id] = len(es)
	}
	return out, nil
}
