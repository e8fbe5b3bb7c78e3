// Package gate implements the interrupt circuit breaker: a persisted
// sliding-window burst counter that trips after burst_limit attempts and
// stays tripped until a manual reset.
package gate

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/ppiankov/signalgate/internal/fslock"
)

// StateFile is the gate state file name inside the state directory.
const StateFile = "gate.json"

// State is the persisted gate singleton. The zero value is the reset state.
type State struct {
	Tripped          bool   `json:"tripped"`
	BurstCount       int    `json:"burst_count"`
	BurstWindowStart string `json:"burst_window_start"`
	LastInterruptTS  string `json:"last_interrupt_ts"`
}

// Store persists gate state. Update must run fn with exclusive access across
// every process sharing the store; the state is written back only when fn
// returns true.
type Store interface {
	Load() (State, error)
	Update(fn func(*State) bool) (State, error)
}

// FileStore keeps the state in <dir>/gate.json guarded by <dir>/gate.json.lock.
type FileStore struct {
	path string
}

// NewFileStore creates a FileStore in dir, creating the directory if needed.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("gate: create state dir: %w", err)
	}
	return &FileStore{path: filepath.Join(dir, StateFile)}, nil
}

// Path returns the state file path.
func (f *FileStore) Path() string {
	return f.path
}

// Load reads the state under a shared lock. A missing file is the zero state.
func (f *FileStore) Load() (State, error) {
	l, err := fslock.Shared(f.path + ".lock")
	if err != nil {
		return State{}, fmt.Errorf("gate: %w", err)
	}
	defer l.Unlock()
	return f.read()
}

// Update reads, mutates and conditionally rewrites the state under an
// exclusive lock.
func (f *FileStore) Update(fn func(*State) bool) (State, error) {
	l, err := fslock.Exclusive(f.path + ".lock")
	if err != nil {
		return State{}, fmt.Errorf("gate: %w", err)
	}
	defer l.Unlock()

	st, err := f.read()
	if err != nil {
		return State{}, err
	}
	if !fn(&st) {
		return st, nil
	}
	if err := f.write(st); err != nil {
		return State{}, err
	}
	return st, nil
}

func (f *FileStore) read() (State, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return State{}, nil
		}
		return State{}, fmt.Errorf("gate: read state: %w", err)
	}
	var st State
	if len(bytes.TrimSpace(data)) == 0 {
		return st, nil
	}
	if err := json.Unmarshal(data, &st); err != nil {
		return State{}, fmt.Errorf("gate: parse %s: %w", f.path, err)
	}
	return st, nil
}

func (f *FileStore) write(st State) error {
	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return fmt.Errorf("gate: encode state: %w", err)
	}
	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("gate: write state: %w", err)
	}
	if err := os.Rename(tmp, f.path); err != nil {
		return fmt.Errorf("gate: replace state: %w", err)
	}
	return nil
}

// MemStore is an in-process Store for tests.
type MemStore struct {
	mu sync.Mutex
	st State
}

// Load implements Store.
func (m *MemStore) Load() (State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st, nil
}

// Update implements Store.
func (m *MemStore) Update(fn func(*State) bool) (State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	st := m.st
	if fn(&st) {
		m.st = st
	}
	return st, nil
}

var (
	_ Store = (*FileStore)(nil)
	_ Store = (*MemStore)(nil)
)
