package data

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/cyberops7/garagebot/internal/biz/domain"
	"github.com/cyberops7/garagebot/internal/biz/repo"
	"github.com/hashicorp/go-retryablehttp"
	"github.com/mmcdole/gofeed"
)

const maxFeedBody = 4 << 20 // 4 MiB, well past any real feed payload

// feedSource fetches syndication feeds over HTTP and parses them with
// gofeed. Fetch failures come back as domain.TransientError so the poller
// skips the tick and retries on the next one.
type feedSource struct {
	client *retryablehttp.Client
	parser *gofeed.Parser
}

// NewFeedSource creates an HTTP-backed FeedSource with bounded retries
// and timeouts
func NewFeedSource(log *slog.Logger) repo.FeedSource {
	client := retryablehttp.NewClient()
	client.RetryMax = 2
	client.RetryWaitMin = 1 * time.Second
	client.RetryWaitMax = 8 * time.Second
	client.HTTPClient.Timeout = 15 * time.Second
	client.Logger = nil
	if log != nil {
		client.Logger = slogAdapter{log: log}
	}

	return &feedSource{
		client: client,
		parser: gofeed.NewParser(),
	}
}

// Fetch retrieves the raw feed payload
func (f *feedSource) Fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, domain.Permanent("feed fetch", err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, domain.Transient("feed fetch", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		err := fmt.Errorf("unexpected status %d", resp.StatusCode)
		if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
			return nil, domain.Transient("feed fetch", err)
		}
		return nil, domain.Permanent("feed fetch", err)
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxFeedBody))
	if err != nil {
		return nil, domain.Transient("feed fetch", err)
	}
	return raw, nil
}

// Parse decodes feed entries from a raw payload. Entries without an ID
// are skipped; a payload gofeed cannot decode at all is a ParseError.
func (f *feedSource) Parse(feedID string, raw []byte) ([]domain.FeedEntry, error) {
	parsed, err := f.parser.Parse(bytes.NewReader(raw))
	if err != nil {
		return nil, &domain.ParseError{FeedID: feedID, Err: err}
	}

	entries := make([]domain.FeedEntry, 0, len(parsed.Items))
	for _, item := range parsed.Items {
		id := item.GUID
		if id == "" {
			id = item.Link
		}
		if id == "" {
			// entry-level failure, one bad entry never aborts the batch
			continue
		}
		entry := domain.FeedEntry{
			ID:    id,
			Title: item.Title,
			URL:   item.Link,
		}
		if item.PublishedParsed != nil {
			entry.Published = *item.PublishedParsed
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// slogAdapter bridges retryablehttp's leveled logger onto slog
type slogAdapter struct {
	log *slog.Logger
}

func (a slogAdapter) Error(msg string, keysAndValues ...interface{}) {
	a.log.Error(msg, keysAndValues...)
}

func (a slogAdapter) Info(msg string, keysAndValues ...interface{}) {
	a.log.Info(msg, keysAndValues...)
}

func (a slogAdapter) Debug(msg string, keysAndValues ...interface{}) {
	a.log.Debug(msg, keysAndValues...)
}

func (a slogAdapter) Warn(msg string, keysAndValues ...interface{}) {
	a.log.Warn(msg, keysAndValues...)
}
