package repo

// SeenStore records already-announced item identifiers per feed.
// All mutation is serialized by the implementation; callers never need to
// coordinate. MarkSeen is idempotent.
type SeenStore interface {
	// Contains reports whether the item was already announced for the feed
	Contains(feedID, itemID string) bool

	// MarkSeen records the item for the feed. Marking an already-seen
	// item is a no-op.
	MarkSeen(feedID, itemID string) error

	// Size returns the number of recorded items for the feed
	Size(feedID string) int

	// Snapshot returns an immutable copy of the full store, in per-feed
	// insertion order
	Snapshot() map[string][]string

	// Close releases any persistence resources
	Close() error
}
