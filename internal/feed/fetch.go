package feed

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ppiankov/signalgate/internal/model"
	"github.com/ppiankov/signalgate/internal/store"
)

const (
	// DefaultLimit caps how many entries one fetch writes.
	DefaultLimit = 20
	// DefaultTimeout bounds a single fetch.
	DefaultTimeout = 20 * time.Second

	userAgent = "SignalGate/0.1"
	accept    = "application/rss+xml, application/atom+xml, application/xml, text/xml, */*"
	maxBody   = 16 << 20
)

// Fetcher downloads feeds. The zero value uses a client with DefaultTimeout.
type Fetcher struct {
	Client *http.Client
}

// Fetch downloads and parses the feed at feedURL. Single shot, no retries.
func (f *Fetcher) Fetch(ctx context.Context, feedURL string) ([]Item, error) {
	client := f.Client
	if client == nil {
		client = &http.Client{Timeout: DefaultTimeout}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feedURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", accept)

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", feedURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("fetch %s: status %d", feedURL, resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	return Parse(body, feedURL)
}

// EventID derives the stable id for an entry from source, link and title.
func EventID(it Item) string {
	h := sha1.Sum([]byte(it.Source + "|" + it.Link + "|" + it.Title))
	return "evt_rss_" + hex.EncodeToString(h[:])[:16]
}

// ToEvent normalizes an entry. Feed events are tier B with no tags.
func ToEvent(it Item, now time.Time) model.Event {
	return model.Event{
		EventID:    EventID(it),
		TS:         NormalizeTS(it.Published, now),
		Title:      it.Title,
		Body:       it.Summary,
		URL:        strings.TrimSpace(it.Link),
		Source:     it.Source,
		SourceTier: string(model.TierB),
		Tags:       []string{},
	}
}

// NormalizeTS converts ISO-8601 and RFC 1123 dates to UTC; anything else
// becomes now.
func NormalizeTS(raw string, now time.Time) string {
	raw = strings.TrimSpace(raw)
	if t, ok := model.ParseTS(raw); ok {
		return model.FormatTS(t)
	}
	for _, layout := range []string{time.RFC1123Z, time.RFC1123, "Mon, 2 Jan 2006 15:04:05 -0700", "Mon, 2 Jan 2006 15:04:05 MST"} {
		if t, err := time.Parse(layout, raw); err == nil {
			return model.FormatTS(t)
		}
	}
	return model.FormatTS(now)
}

// WriteInbox writes up to limit entries into inbox and returns the count.
// Entries with neither link nor title are skipped but still use up the limit.
func WriteInbox(inbox store.EventStore, items []Item, limit int, now time.Time) (int, error) {
	if limit < 0 {
		limit = 0
	}
	if len(items) > limit {
		items = items[:limit]
	}
	n := 0
	for _, it := range items {
		if it.Link == "" && it.Title == "" {
			continue
		}
		if err := inbox.Put(ToEvent(it, now)); err != nil {
			return n, fmt.Errorf("write inbox: %w", err)
		}
		n++
	}
	return n, nil
}
