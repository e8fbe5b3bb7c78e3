// Package ingest turns event JSON documents into model.Event values and
// archives them into the cold store without classification.
package ingest

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ppiankov/signalgate/internal/model"
	"github.com/ppiankov/signalgate/internal/store"
)

// DefaultGlob selects event files when the input is a directory.
const DefaultGlob = "*.json"

// ErrInvalidEvent is returned for input that is not a JSON object.
var ErrInvalidEvent = errors.New("invalid event")

// ParseEvent decodes one event document. Missing fields are defaulted:
// event_id falls back to "id", then fallbackID, then a random UUID; ts to
// now; source_tier to C; tags to an empty list. Non-string scalars are
// stringified.
func ParseEvent(data []byte, fallbackID string, now time.Time) (model.Event, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var obj map[string]any
	if err := dec.Decode(&obj); err != nil {
		return model.Event{}, fmt.Errorf("%w: %v", ErrInvalidEvent, err)
	}
	if obj == nil {
		return model.Event{}, fmt.Errorf("%w: not a JSON object", ErrInvalidEvent)
	}

	id := firstNonEmpty(str(obj["event_id"]), str(obj["id"]), fallbackID)
	if id == "" {
		id = uuid.NewString()
	}

	ev := model.Event{
		EventID:    id,
		TS:         firstNonEmpty(str(obj["ts"]), model.FormatTS(now)),
		Title:      str(obj["title"]),
		Body:       str(obj["body"]),
		URL:        str(obj["url"]),
		Source:     str(obj["source"]),
		SourceTier: firstNonEmpty(str(obj["source_tier"]), string(model.TierC)),
		Tags:       []string{},
	}

	if raw, ok := obj["tags"].([]any); ok {
		for _, t := range raw {
			if s := str(t); s != "" {
				ev.Tags = append(ev.Tags, s)
			}
		}
	}
	return ev, nil
}

// LoadEvent reads and parses the event file at path. The file stem is the
// fallback event id.
func LoadEvent(path string, now time.Time) (model.Event, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return model.Event{}, fmt.Errorf("read event: %w", err)
	}
	stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	ev, err := ParseEvent(data, stem, now)
	if err != nil {
		return model.Event{}, fmt.Errorf("%s: %w", path, err)
	}
	return ev, nil
}

// Inputs expands path into the files to ingest: the file itself, or the
// sorted regular files in a directory that match pattern. A path that does
// not exist yields nothing.
func Inputs(path, pattern string) ([]string, error) {
	if pattern == "" {
		pattern = DefaultGlob
	}
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("stat input: %w", err)
	}
	if !info.IsDir() {
		return []string{path}, nil
	}

	matches, err := filepath.Glob(filepath.Join(path, pattern))
	if err != nil {
		return nil, fmt.Errorf("glob %q: %w", pattern, err)
	}
	var files []string
	for _, m := range matches {
		if fi, err := os.Stat(m); err == nil && fi.Mode().IsRegular() {
			files = append(files, m)
		}
	}
	sort.Strings(files)
	return files, nil
}

// IngestPath archives every event under path into cold and returns how many
// were written. The first unreadable or malformed file aborts the run.
func IngestPath(path, pattern string, cold store.EventStore, now time.Time) (int, error) {
	files, err := Inputs(path, pattern)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, f := range files {
		ev, err := LoadEvent(f, now)
		if err != nil {
			return n, err
		}
		if err := cold.Put(ev); err != nil {
			return n, fmt.Errorf("archive %s: %w", f, err)
		}
		n++
	}
	return n, nil
}

func str(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case json.Number:
		return x.String()
	case bool:
		if x {
			return "true"
		}
		return ""
	default:
		return fmt.Sprint(x)
	}
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
