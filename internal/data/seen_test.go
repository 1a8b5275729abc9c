package data

import (
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemorySeenStore_MarkAndContains(t *testing.T) {
	s := NewMemorySeenStore(0)

	assert.False(t, s.Contains("feed", "v1"))
	require.NoError(t, s.MarkSeen("feed", "v1"))
	assert.True(t, s.Contains("feed", "v1"))
	assert.False(t, s.Contains("other", "v1"))

	// marking again is a no-op
	require.NoError(t, s.MarkSeen("feed", "v1"))
	assert.Equal(t, 1, s.Size("feed"))
}

func TestMemorySeenStore_SnapshotIsolated(t *testing.T) {
	s := NewMemorySeenStore(0)
	require.NoError(t, s.MarkSeen("feed", "v1"))
	require.NoError(t, s.MarkSeen("feed", "v2"))

	snap := s.Snapshot()
	assert.Equal(t, []string{"v1", "v2"}, snap["feed"])

	// mutating the snapshot must not leak back into the store
	snap["feed"][0] = "mutated"
	assert.Equal(t, []string{"v1", "v2"}, s.Snapshot()["feed"])
}

func TestMemorySeenStore_FIFOCap(t *testing.T) {
	s := NewMemorySeenStore(3)
	for i := 1; i <= 5; i++ {
		require.NoError(t, s.MarkSeen("feed", fmt.Sprintf("v%d", i)))
	}

	assert.Equal(t, 3, s.Size("feed"))
	assert.False(t, s.Contains("feed", "v1"))
	assert.False(t, s.Contains("feed", "v2"))
	assert.Equal(t, []string{"v3", "v4", "v5"}, s.Snapshot()["feed"])

	// the cap applies per feed
	require.NoError(t, s.MarkSeen("other", "x1"))
	assert.Equal(t, 1, s.Size("other"))
	assert.Equal(t, 3, s.Size("feed"))
}

func TestMemorySeenStore_Concurrent(t *testing.T) {
	s := NewMemorySeenStore(0)

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				_ = s.MarkSeen("feed", fmt.Sprintf("item-%d", i))
				_ = s.Contains("feed", fmt.Sprintf("item-%d", i))
			}
		}(g)
	}
	wg.Wait()

	assert.Equal(t, 50, s.Size("feed"))
}

func TestSQLiteSeenStore_PersistsAcrossReopen(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "seen.db")

	s, err := NewSQLiteSeenStore(dbPath, 0)
	require.NoError(t, err)
	require.NoError(t, s.MarkSeen("feed", "v1"))
	require.NoError(t, s.MarkSeen("feed", "v2"))
	require.NoError(t, s.MarkSeen("other", "x1"))
	require.NoError(t, s.Close())

	s2, err := NewSQLiteSeenStore(dbPath, 0)
	require.NoError(t, err)
	defer s2.Close()

	assert.True(t, s2.Contains("feed", "v1"))
	assert.True(t, s2.Contains("feed", "v2"))
	assert.True(t, s2.Contains("other", "x1"))
	assert.False(t, s2.Contains("feed", "v3"))
	assert.Equal(t, 2, s2.Size("feed"))
}

func TestSQLiteSeenStore_MarkIdempotent(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "seen.db")

	s, err := NewSQLiteSeenStore(dbPath, 0)
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.MarkSeen("feed", "v1"))
	require.NoError(t, s.MarkSeen("feed", "v1"))
	assert.Equal(t, 1, s.Size("feed"))
}

func TestSQLiteSeenStore_CapEvictsFromDisk(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "seen.db")

	s, err := NewSQLiteSeenStore(dbPath, 2)
	require.NoError(t, err)
	require.NoError(t, s.MarkSeen("feed", "v1"))
	require.NoError(t, s.MarkSeen("feed", "v2"))
	require.NoError(t, s.MarkSeen("feed", "v3"))
	require.NoError(t, s.Close())

	// evicted rows must not resurrect on reload
	s2, err := NewSQLiteSeenStore(dbPath, 2)
	require.NoError(t, err)
	defer s2.Close()

	assert.False(t, s2.Contains("feed", "v1"))
	assert.True(t, s2.Contains("feed", "v2"))
	assert.True(t, s2.Contains("feed", "v3"))
}
