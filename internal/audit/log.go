// Package audit is the append-only interrupt log. Each JSONL line carries
// the hash of the line before it, so edits, deletions and insertions are
// detectable with Verify.
package audit

import (
	"bufio"
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/ppiankov/signalgate/internal/fslock"
	"github.com/ppiankov/signalgate/internal/model"
)

// FileName is the interrupt log name inside the audit directory.
const FileName = "interrupts.jsonl"

// GenesisHash is the prev_hash for the first entry in a new audit log.
const GenesisHash = "sha256:0000000000000000000000000000000000000000000000000000000000000000"

// Log is an open, exclusively locked interrupt log.
type Log struct {
	path     string
	file     *os.File
	lock     *fslock.Lock
	prevHash string
	mu       sync.Mutex
}

// Open opens (or creates) the log for appending. An exclusive lock is held
// until Close so concurrent processes cannot fork the chain.
func Open(path string) (*Log, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("audit: create directory: %w", err)
	}

	lock, err := fslock.Exclusive(path + ".lock")
	if err != nil {
		return nil, fmt.Errorf("audit: %w", err)
	}

	prevHash, err := chainTail(path)
	if err != nil {
		lock.Unlock()
		return nil, err
	}

	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		lock.Unlock()
		return nil, fmt.Errorf("audit: open file: %w", err)
	}

	return &Log{path: path, file: file, lock: lock, prevHash: prevHash}, nil
}

// chainTail returns the hash of the last line, or GenesisHash for an empty log.
func chainTail(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return GenesisHash, nil
		}
		return "", fmt.Errorf("audit: read existing log: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)
	var lastLine []byte
	for scanner.Scan() {
		if len(bytes.TrimSpace(scanner.Bytes())) == 0 {
			continue
		}
		lastLine = append(lastLine[:0], scanner.Bytes()...)
	}
	if err := scanner.Err(); err != nil {
		return "", fmt.Errorf("audit: scan existing log: %w", err)
	}
	if len(lastLine) == 0 {
		return GenesisHash, nil
	}
	return HashLine(lastLine), nil
}

// Record appends rec, filling TS when empty and PrevHash always, and syncs.
// The stored record is returned.
func (l *Log) Record(rec model.InterruptRecord) (model.InterruptRecord, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if rec.TS == "" {
		rec.TS = model.FormatTS(time.Now())
	}
	rec.PrevHash = l.prevHash

	line, err := encodeLine(rec)
	if err != nil {
		return rec, err
	}
	if _, err := l.file.Write(append(line, '\n')); err != nil {
		return rec, fmt.Errorf("audit: write entry: %w", err)
	}
	if err := l.file.Sync(); err != nil {
		return rec, fmt.Errorf("audit: sync: %w", err)
	}

	l.prevHash = HashLine(line)
	return rec, nil
}

// Close closes the file and releases the lock.
func (l *Log) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	err := l.file.Close()
	if uerr := l.lock.Unlock(); err == nil {
		err = uerr
	}
	return err
}

// Append opens path, records rec and closes it again.
func Append(path string, rec model.InterruptRecord) (model.InterruptRecord, error) {
	l, err := Open(path)
	if err != nil {
		return rec, err
	}
	stored, err := l.Record(rec)
	if cerr := l.Close(); err == nil && cerr != nil {
		err = fmt.Errorf("audit: close: %w", cerr)
	}
	return stored, err
}

// HashLine returns "sha256:<hex>" of the given bytes.
func HashLine(line []byte) string {
	h := sha256.Sum256(line)
	return "sha256:" + hex.EncodeToString(h[:])
}

func encodeLine(rec model.InterruptRecord) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(rec); err != nil {
		return nil, fmt.Errorf("audit: marshal entry: %w", err)
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}
