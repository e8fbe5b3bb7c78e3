package store

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/ppiankov/signalgate/internal/model"
)

// DirStore keeps one <event_id>.json file per event in a directory.
type DirStore struct {
	dir string
	mu  sync.Mutex
}

// NewDirStore creates a DirStore backed by dir, creating it if needed.
func NewDirStore(dir string) (*DirStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("cannot create event directory: %w", err)
	}
	return &DirStore{dir: dir}, nil
}

// Dir returns the backing directory.
func (s *DirStore) Dir() string {
	return s.dir
}

// Path returns the file an event id is stored at.
func (s *DirStore) Path(id string) string {
	return filepath.Join(s.dir, id+".json")
}

// Put writes ev atomically, replacing any previous copy.
func (s *DirStore) Put(ev model.Event) error {
	if err := ValidateKey(ev.EventID); err != nil {
		return fmt.Errorf("invalid event id %q: %w", ev.EventID, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := EncodeEvent(ev)
	if err != nil {
		return err
	}
	return writeAtomic(s.Path(ev.EventID), data)
}

// Get reads the event stored under id.
func (s *DirStore) Get(id string) (model.Event, error) {
	if err := ValidateKey(id); err != nil {
		return model.Event{}, fmt.Errorf("invalid event id %q: %w", id, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	ev, err := s.read(s.Path(id))
	if os.IsNotExist(err) {
		return model.Event{}, fmt.Errorf("%s: %w", id, ErrNotFound)
	}
	return ev, err
}

// List returns all decodable events, ordered by file name.
func (s *DirStore) List() ([]model.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	var events []model.Event
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		ev, err := s.read(filepath.Join(s.dir, e.Name()))
		if err != nil {
			continue
		}
		events = append(events, ev)
	}
	return events, nil
}

func (s *DirStore) read(path string) (model.Event, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return model.Event{}, err
	}
	var ev model.Event
	if err := json.Unmarshal(data, &ev); err != nil {
		return model.Event{}, fmt.Errorf("decode %s: %w", filepath.Base(path), err)
	}
	return ev, nil
}

// EncodeEvent renders ev in its archived form: indented, non-ASCII kept
// as-is, tags always an array.
func EncodeEvent(ev model.Event) ([]byte, error) {
	if ev.Tags == nil {
		ev.Tags = []string{}
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(ev); err != nil {
		return nil, fmt.Errorf("encode event: %w", err)
	}
	return buf.Bytes(), nil
}

// writeAtomic writes data to a sibling temp file and renames it into place.
func writeAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		os.Remove(tmpName)
		return err
	}
	return os.Rename(tmpName, path)
}
