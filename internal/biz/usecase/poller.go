package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/cyberops7/garagebot/internal/biz/domain"
	"github.com/cyberops7/garagebot/internal/biz/repo"
)

// Announcer dispatches a decided action and acknowledges success.
// Implemented by the action dispatcher.
type Announcer interface {
	Dispatch(ctx context.Context, action domain.Action) (domain.Ack, error)
}

// PollerUsecase runs the fetch-parse-filter-dispatch-commit cycle for one
// or more feeds against the shared seen-state store.
type PollerUsecase struct {
	source          repo.FeedSource
	seen            repo.SeenStore
	announcer       Announcer
	announceChannel string
	log             *slog.Logger

	// per-feed locks serialize the filter-dispatch-commit section so an
	// overlapping tick on the same feed can never announce an item twice
	mu        sync.Mutex
	feedLocks map[string]*sync.Mutex
}

// NewPollerUsecase creates a feed poller
func NewPollerUsecase(source repo.FeedSource, seen repo.SeenStore, announcer Announcer, announceChannel string, log *slog.Logger) *PollerUsecase {
	return &PollerUsecase{
		source:          source,
		seen:            seen,
		announcer:       announcer,
		announceChannel: announceChannel,
		log:             log.With("component", "poller"),
		feedLocks:       make(map[string]*sync.Mutex),
	}
}

// PollFeed runs one poll cycle for a feed and returns the number of items
// announced. A fetch failure skips the cycle (retried next tick); a failed
// dispatch leaves the item uncommitted so it is retried next tick.
func (p *PollerUsecase) PollFeed(ctx context.Context, feedID, url string) (int, error) {
	raw, err := p.source.Fetch(ctx, url)
	if err != nil {
		return 0, fmt.Errorf("poll %s: %w", feedID, err)
	}

	entries, err := p.source.Parse(feedID, raw)
	if err != nil {
		return 0, fmt.Errorf("poll %s: %w", feedID, err)
	}

	// Everything from here mutates or reads seen-state for this feed;
	// overlapping ticks are serialized so each item commits exactly once.
	lock := p.feedLock(feedID)
	lock.Lock()
	defer lock.Unlock()

	// First successful poll of a fresh feed: commit the current contents
	// as seen without announcing, so a new deployment does not replay the
	// feed's entire history into the channel.
	if p.seen.Size(feedID) == 0 && len(entries) > 0 {
		for _, entry := range entries {
			if err := p.seen.MarkSeen(feedID, entry.ID); err != nil {
				return 0, fmt.Errorf("poll %s: warm start: %w", feedID, err)
			}
		}
		p.log.Info("initialized seen items for feed", "feed", feedID, "count", len(entries))
		return 0, nil
	}

	unseen := p.filterUnseen(feedID, entries)
	sortOldestFirst(unseen)

	announced := 0
	for _, entry := range unseen {
		if err := ctx.Err(); err != nil {
			return announced, err
		}

		// final guard against duplicate IDs inside a single payload
		if p.seen.Contains(feedID, entry.ID) {
			continue
		}

		item := entry.Item(feedID)
		if _, err := p.announcer.Dispatch(ctx, domain.AnnounceAction(item, p.announceChannel)); err != nil {
			// uncommitted, retried on the next tick
			p.log.Warn("announce failed, item will be retried",
				"feed", feedID, "item", entry.ID, "error", err)
			if errors.Is(err, context.Canceled) {
				return announced, err
			}
			continue
		}

		// commit strictly after the dispatcher acknowledges
		if err := p.seen.MarkSeen(feedID, entry.ID); err != nil {
			return announced, fmt.Errorf("poll %s: commit %s: %w", feedID, entry.ID, err)
		}
		announced++
	}

	return announced, nil
}

func (p *PollerUsecase) feedLock(feedID string) *sync.Mutex {
	p.mu.Lock()
	defer p.mu.Unlock()
	lock, ok := p.feedLocks[feedID]
	if !ok {
		lock = &sync.Mutex{}
		p.feedLocks[feedID] = lock
	}
	return lock
}

func (p *PollerUsecase) filterUnseen(feedID string, entries []domain.FeedEntry) []domain.FeedEntry {
	var unseen []domain.FeedEntry
	for _, entry := range entries {
		if !p.seen.Contains(feedID, entry.ID) {
			unseen = append(unseen, entry)
		}
	}
	return unseen
}

// sortOldestFirst orders entries deterministically so announcements are
// posted in a stable sequence: by published time, then by ID
func sortOldestFirst(entries []domain.FeedEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		if !entries[i].Published.Equal(entries[j].Published) {
			return entries[i].Published.Before(entries[j].Published)
		}
		return entries[i].ID < entries[j].ID
	})
}
