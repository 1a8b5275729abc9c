package domain

import "time"

// FeedEntry is a single parsed entry from a syndication feed.
// The source's own ordering is not guaranteed chronological.
type FeedEntry struct {
	ID        string
	Title     string
	URL       string
	Published time.Time
}

// Item converts the entry into a FeedItem event for the given feed
func (e FeedEntry) Item(feedID string) FeedItem {
	return FeedItem{
		FeedID:    feedID,
		ItemID:    e.ID,
		Title:     e.Title,
		URL:       e.URL,
		Published: e.Published,
	}
}
