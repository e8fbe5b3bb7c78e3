// Package buffer holds tentative events and promotes them on independent
// multi-source corroboration.
package buffer

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ppiankov/signalgate/internal/model"
	"github.com/ppiankov/signalgate/internal/store"
)

// Buffer is the observation area for tentative events.
type Buffer struct {
	store  store.EventStore
	logger *slog.Logger
}

// New creates a Buffer over s. A nil logger uses slog.Default.
func New(s store.EventStore, logger *slog.Logger) *Buffer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Buffer{store: s, logger: logger}
}

// Park persists ev keyed by its id, replacing any earlier copy.
func (b *Buffer) Park(ev model.Event) error {
	if err := b.store.Put(ev); err != nil {
		return fmt.Errorf("buffer: park %s: %w", ev.EventID, err)
	}
	return nil
}

// Corroborate looks for a buffered event from a different, non-empty source
// whose timestamp falls inside window, counted back from ev's own timestamp
// (or fallback when ev.TS does not parse). The first such event is returned.
//
// Any buffered event qualifies: its subject is not compared against ev's.
// Corroboration is never attempted for the UNKNOWN entity.
func (b *Buffer) Corroborate(ev model.Event, entity string, window time.Duration, fallback time.Time) (model.Event, bool, error) {
	if entity == model.UnknownEntity {
		return model.Event{}, false, nil
	}

	now, ok := model.ParseTS(ev.TS)
	if !ok {
		now = fallback
	}
	cutoff := now.Add(-window)
	current := normalizeSource(ev.Source)

	candidates, err := b.store.List()
	if err != nil {
		return model.Event{}, false, fmt.Errorf("buffer: list: %w", err)
	}

	for _, c := range candidates {
		ts, ok := model.ParseTS(c.TS)
		if !ok {
			b.logger.Debug("skip buffered event: bad timestamp", "event_id", c.EventID, "ts", c.TS)
			continue
		}
		if ts.Before(cutoff) {
			continue
		}
		src := normalizeSource(c.Source)
		if src == "" || src == current {
			continue
		}
		b.logger.Info("corroborated", "event_id", ev.EventID, "by", c.EventID, "source", src)
		return c, true, nil
	}
	return model.Event{}, false, nil
}

func normalizeSource(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
