// Package fslock provides advisory whole-file locks shared between
// concurrent signalgate processes.
package fslock

import (
	"fmt"
	"os"
)

// Lock is a held advisory lock. Release it with Unlock.
type Lock struct {
	f *os.File
}

// Exclusive blocks until an exclusive lock on path is held. The lock file is
// created if missing and is never removed.
func Exclusive(path string) (*Lock, error) {
	return acquire(path, true)
}

// Shared blocks until a shared lock on path is held.
func Shared(path string) (*Lock, error) {
	return acquire(path, false)
}

func acquire(path string, exclusive bool) (*Lock, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open lock file: %w", err)
	}
	if err := lockFile(f, exclusive); err != nil {
		f.Close()
		return nil, fmt.Errorf("lock %s: %w", path, err)
	}
	return &Lock{f: f}, nil
}

// Unlock releases the lock. Safe to call on a nil Lock.
func (l *Lock) Unlock() error {
	if l == nil || l.f == nil {
		return nil
	}
	err := unlockFile(l.f)
	if cerr := l.f.Close(); err == nil {
		err = cerr
	}
	l.f = nil
	return err
}
