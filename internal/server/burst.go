package server

import (
	"sync"
	"time"
)

// BurstTracker counts each user's messages inside a sliding window so the
// pipeline can fold raw messages into burst events.
type BurstTracker struct {
	window time.Duration

	mu   sync.Mutex
	seen map[string][]time.Time // userID -> message timestamps in window
}

// NewBurstTracker creates a tracker with the given window
func NewBurstTracker(window time.Duration) *BurstTracker {
	return &BurstTracker{
		window: window,
		seen:   make(map[string][]time.Time),
	}
}

// Observe records a message at time t and returns the user's message
// count within the window, including this one
func (b *BurstTracker) Observe(userID string, t time.Time) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	cutoff := t.Add(-b.window)
	kept := b.seen[userID][:0]
	for _, ts := range b.seen[userID] {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	kept = append(kept, t)
	b.seen[userID] = kept
	return len(kept)
}

// Forget drops a user's tracked messages, e.g. after a moderation action
func (b *BurstTracker) Forget(userID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.seen, userID)
}
