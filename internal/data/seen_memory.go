package data

import (
	"sync"

	"github.com/cyberops7/garagebot/internal/biz/repo"
)

// memorySeenStore is the in-memory SeenStore. It is the default when no
// DB path is configured and backs the sqlite store's read path.
type memorySeenStore struct {
	mu         sync.RWMutex
	items      map[string]map[string]struct{}
	order      map[string][]string // insertion order per feed, for snapshots and eviction
	maxPerFeed int
}

// NewMemorySeenStore creates an in-memory seen store. maxPerFeed of 0
// means unbounded; otherwise the oldest committed IDs are evicted FIFO
// once the cap is exceeded.
func NewMemorySeenStore(maxPerFeed int) repo.SeenStore {
	return newMemorySeenStore(maxPerFeed)
}

func newMemorySeenStore(maxPerFeed int) *memorySeenStore {
	return &memorySeenStore{
		items:      make(map[string]map[string]struct{}),
		order:      make(map[string][]string),
		maxPerFeed: maxPerFeed,
	}
}

// Contains reports whether the item was already recorded for the feed
func (s *memorySeenStore) Contains(feedID, itemID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.items[feedID][itemID]
	return ok
}

// MarkSeen records the item. Marking an already-seen item is a no-op.
func (s *memorySeenStore) MarkSeen(feedID, itemID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mark(feedID, itemID)
	return nil
}

// mark inserts under the held lock and returns the IDs evicted by the
// per-feed cap, oldest first.
func (s *memorySeenStore) mark(feedID, itemID string) []string {
	set, ok := s.items[feedID]
	if !ok {
		set = make(map[string]struct{})
		s.items[feedID] = set
	}
	if _, seen := set[itemID]; seen {
		return nil
	}
	set[itemID] = struct{}{}
	s.order[feedID] = append(s.order[feedID], itemID)

	var evicted []string
	if s.maxPerFeed > 0 {
		for len(s.order[feedID]) > s.maxPerFeed {
			oldest := s.order[feedID][0]
			s.order[feedID] = s.order[feedID][1:]
			delete(set, oldest)
			evicted = append(evicted, oldest)
		}
	}
	return evicted
}

// Size returns the number of recorded items for the feed
func (s *memorySeenStore) Size(feedID string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items[feedID])
}

// Snapshot returns an immutable copy of the store in insertion order
func (s *memorySeenStore) Snapshot() map[string][]string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap := make(map[string][]string, len(s.order))
	for feedID, ids := range s.order {
		cp := make([]string, len(ids))
		copy(cp, ids)
		snap[feedID] = cp
	}
	return snap
}

// Close is a no-op for the in-memory store
func (s *memorySeenStore) Close() error {
	return nil
}
