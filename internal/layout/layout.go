// Package layout resolves the signalgate root directory and the fixed tree
// of config and data directories under it.
package layout

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"syscall"
)

// EnvHome names the root directory when --root is not given.
const EnvHome = "SIGNALGATE_HOME"

// dirPerm is the permission for managed directories.
const dirPerm = 0o755

// Paths is the resolved directory layout.
type Paths struct {
	Root string
}

// ResolveRoot picks the root: explicit flag, then SIGNALGATE_HOME, then the
// working directory. The result is absolute with ~ expanded.
func ResolveRoot(flag string) (string, error) {
	root := strings.TrimSpace(flag)
	if root == "" {
		root = strings.TrimSpace(os.Getenv(EnvHome))
	}
	if root == "" {
		wd, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("resolve root: %w", err)
		}
		root = wd
	}
	root, err := expandHome(root)
	if err != nil {
		return "", err
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return "", fmt.Errorf("resolve root: %w", err)
	}
	return abs, nil
}

// New returns the layout under root.
func New(root string) Paths {
	return Paths{Root: root}
}

// ConfigDir holds bets.yaml and rules.yaml.
func (p Paths) ConfigDir() string { return filepath.Join(p.Root, "config") }

// DataDir is the parent of all persisted state.
func (p Paths) DataDir() string { return filepath.Join(p.Root, "data") }

// ColdDir is the archive of every classified or ingested event.
func (p Paths) ColdDir() string { return filepath.Join(p.DataDir(), "cold") }

// TentativeDir is the observation buffer.
func (p Paths) TentativeDir() string { return filepath.Join(p.DataDir(), "tentative") }

// AuditDir holds the interrupt log.
func (p Paths) AuditDir() string { return filepath.Join(p.DataDir(), "audit") }

// AuditLog is the interrupt log file.
func (p Paths) AuditLog() string { return filepath.Join(p.AuditDir(), "interrupts.jsonl") }

// StateDir holds the gate state.
func (p Paths) StateDir() string { return filepath.Join(p.DataDir(), "state") }

// InboxDir receives fetched and dropped event files.
func (p Paths) InboxDir() string { return filepath.Join(p.DataDir(), "inbox") }

// ProcessedDir holds inbox files the watcher has run.
func (p Paths) ProcessedDir() string { return filepath.Join(p.InboxDir(), "processed") }

// FailedDir holds inbox files the watcher could not run.
func (p Paths) FailedDir() string { return filepath.Join(p.InboxDir(), "failed") }

// EnsureDirs creates the directories every command may write to. Idempotent.
func EnsureDirs(p Paths) error {
	dirs := []string{
		p.ConfigDir(),
		p.ColdDir(),
		p.TentativeDir(),
		p.AuditDir(),
		p.StateDir(),
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, dirPerm); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}
	return nil
}

func expandHome(p string) (string, error) {
	if p != "~" && !strings.HasPrefix(p, "~/") {
		return p, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("expand ~: %w", err)
	}
	return filepath.Join(home, strings.TrimPrefix(p, "~")), nil
}

// MoveFile moves src to dst using os.Rename. If rename fails with EXDEV
// (cross-device link, e.g. an inbox on a bind mount), it falls back to
// copy + remove.
func MoveFile(src, dst string) error {
	err := os.Rename(src, dst)
	if err == nil {
		return nil
	}
	var errno syscall.Errno
	if !errors.As(err, &errno) || errno != syscall.EXDEV {
		return err
	}
	if err := copyFile(src, dst); err != nil {
		return err
	}
	return os.Remove(src)
}

// copyFile copies src to dst preserving permissions.
func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return err
	}

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, info.Mode())
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		_ = os.Remove(dst)
		return err
	}
	return out.Close()
}
