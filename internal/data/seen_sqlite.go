package data

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/cyberops7/garagebot/internal/biz/repo"

	_ "modernc.org/sqlite"
)

// sqliteSeenStore persists the seen-state to sqlite so announcements
// survive restarts. Reads are served from an in-memory mirror loaded at
// open; writes go through a single mutex so concurrent poll ticks never
// interleave commits.
type sqliteSeenStore struct {
	mem *memorySeenStore
	db  *sql.DB
	mu  sync.Mutex
}

// NewSQLiteSeenStore opens (or creates) the seen-state database at dbPath
// and loads existing rows. A missing database file is not an error.
func NewSQLiteSeenStore(dbPath string, maxPerFeed int) (repo.SeenStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS seen_items (
			feed_id TEXT NOT NULL,
			item_id TEXT NOT NULL,
			created_at INTEGER NOT NULL,
			PRIMARY KEY (feed_id, item_id)
		)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create table: %w", err)
	}

	_, err = db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_seen_items_created_at ON seen_items(feed_id, created_at)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create index: %w", err)
	}

	s := &sqliteSeenStore{
		mem: newMemorySeenStore(maxPerFeed),
		db:  db,
	}
	if err := s.load(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// load populates the in-memory mirror from persisted rows
func (s *sqliteSeenStore) load() error {
	rows, err := s.db.Query(`
		SELECT feed_id, item_id FROM seen_items ORDER BY created_at ASC
	`)
	if err != nil {
		return fmt.Errorf("failed to load seen items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var feedID, itemID string
		if err := rows.Scan(&feedID, &itemID); err != nil {
			return fmt.Errorf("failed to scan seen item: %w", err)
		}
		s.mem.mark(feedID, itemID)
	}
	return rows.Err()
}

// Contains reports whether the item was already recorded for the feed
func (s *sqliteSeenStore) Contains(feedID, itemID string) bool {
	return s.mem.Contains(feedID, itemID)
}

// MarkSeen records the item in memory and sqlite. Marking an already-seen
// item is a no-op.
func (s *sqliteSeenStore) MarkSeen(feedID, itemID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.mem.Contains(feedID, itemID) {
		return nil
	}

	_, err := s.db.Exec(`
		INSERT OR IGNORE INTO seen_items (feed_id, item_id, created_at)
		VALUES (?, ?, ?)
	`, feedID, itemID, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("failed to persist seen item: %w", err)
	}

	s.mem.mu.Lock()
	evicted := s.mem.mark(feedID, itemID)
	s.mem.mu.Unlock()

	for _, old := range evicted {
		if _, err := s.db.Exec(`
			DELETE FROM seen_items WHERE feed_id = ? AND item_id = ?
		`, feedID, old); err != nil {
			return fmt.Errorf("failed to evict seen item: %w", err)
		}
	}
	return nil
}

// Size returns the number of recorded items for the feed
func (s *sqliteSeenStore) Size(feedID string) int {
	return s.mem.Size(feedID)
}

// Snapshot returns an immutable copy of the store in insertion order
func (s *sqliteSeenStore) Snapshot() map[string][]string {
	return s.mem.Snapshot()
}

// Close closes the database connection
func (s *sqliteSeenStore) Close() error {
	return s.db.Close()
}
