// Package store persists events keyed by event_id. The cold archive and the
// observation buffer are two instances of the same EventStore.
package store

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/ppiankov/signalgate/internal/model"
)

// ErrNotFound is returned by Get when no event is stored under the id.
var ErrNotFound = errors.New("event not found")

// EventStore is a keyed event archive with overwrite semantics: putting the
// same event_id twice replaces the earlier copy.
type EventStore interface {
	Put(ev model.Event) error
	Get(id string) (model.Event, error)
	// List returns every readable event. Entries that fail to decode are
	// skipped.
	List() ([]model.Event, error)
}

// invalidKey matches path separators and NUL.
var invalidKey = regexp.MustCompile(`[/\\\x00]`)

// ValidateKey rejects event ids that could escape the store directory.
func ValidateKey(key string) error {
	if strings.TrimSpace(key) == "" {
		return fmt.Errorf("event id must not be empty")
	}
	if strings.Contains(key, "..") {
		return fmt.Errorf("event id must not contain '..'")
	}
	if invalidKey.MatchString(key) {
		return fmt.Errorf("event id contains a path separator")
	}
	return nil
}

var (
	_ EventStore = (*DirStore)(nil)
	_ EventStore = (*MemStore)(nil)
)
