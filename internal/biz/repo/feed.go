package repo

import (
	"context"

	"github.com/cyberops7/garagebot/internal/biz/domain"
)

// FeedSource fetches and parses an external syndication feed.
// Fetch failures are domain.TransientError; malformed payloads are
// domain.ParseError. Entries are returned in the source's own order.
type FeedSource interface {
	// Fetch retrieves the raw feed payload
	Fetch(ctx context.Context, url string) ([]byte, error)

	// Parse decodes feed entries from a raw payload. Entries without a
	// usable identifier are skipped, not failed.
	Parse(feedID string, raw []byte) ([]domain.FeedEntry, error)
}
