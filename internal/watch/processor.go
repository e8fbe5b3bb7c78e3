package watch

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/ppiankov/signalgate/internal/ingest"
	"github.com/ppiankov/signalgate/internal/layout"
	"github.com/ppiankov/signalgate/internal/pipeline"
)

// Processor runs inbox files through a Runner and files them away:
// processed/ on success, failed/ when the file cannot be parsed or the run
// errors.
type Processor struct {
	Runner *pipeline.Runner
	// Load, when set, builds a fresh Runner per file and takes precedence
	// over Runner.
	Load  func() (*pipeline.Runner, error)
	Paths layout.Paths
	// Out receives interrupt messages. Nil discards them.
	Out io.Writer
	// AfterRun is called after every file. Used to refresh the metrics textfile.
	AfterRun func()
	Logger   *slog.Logger

	mu sync.Mutex
}

// Handle processes path. Errors are logged; the file is always moved out
// of the inbox so it is never retried in a loop.
func (p *Processor) Handle(ctx context.Context, path string) {
	logger := p.logger().With("path", path)

	dest := p.Paths.ProcessedDir()
	if err := p.process(ctx, path); err != nil {
		logger.Error("event failed", "error", err)
		dest = p.Paths.FailedDir()
	}
	if p.AfterRun != nil {
		p.AfterRun()
	}

	if err := os.MkdirAll(dest, 0o755); err != nil {
		logger.Error("create destination", "error", err)
		return
	}
	if err := layout.MoveFile(path, filepath.Join(dest, filepath.Base(path))); err != nil {
		logger.Error("move event file", "error", err)
	}
}

func (p *Processor) process(ctx context.Context, path string) error {
	r := p.Runner
	if p.Load != nil {
		var err error
		if r, err = p.Load(); err != nil {
			return err
		}
	}

	now := time.Now().UTC()
	if r.Now != nil {
		now = r.Now()
	}
	ev, err := ingest.LoadEvent(path, now)
	if err != nil {
		return err
	}
	out, err := r.Run(ctx, ev, false)
	if err != nil {
		return fmt.Errorf("run %s: %w", ev.EventID, err)
	}
	p.logger().Debug("event processed", "event_id", ev.EventID, "state", out.Decision.State,
		"fired", out.Fired, "suppressed", out.Suppressed)

	if out.Message != "" && p.Out != nil {
		p.mu.Lock()
		_, err = io.WriteString(p.Out, out.Message)
		p.mu.Unlock()
	}
	return err
}

// Serve processes whatever is already in the inbox, then watches it until
// ctx is cancelled. poll selects the polling watcher.
func (p *Processor) Serve(ctx context.Context, poll bool, interval time.Duration) error {
	inbox := p.Paths.InboxDir()
	if err := os.MkdirAll(inbox, 0o755); err != nil {
		return fmt.Errorf("create inbox: %w", err)
	}
	handler := func(path string) { p.Handle(ctx, path) }

	if err := ScanExisting(inbox, handler); err != nil {
		return err
	}
	p.logger().Info("watching inbox", "dir", inbox, "poll", poll)
	if poll {
		return NewPollWatcher(inbox, handler, interval).Run(ctx)
	}
	return NewInboxWatcher(inbox, handler, 1, p.logger()).Run(ctx)
}

func (p *Processor) logger() *slog.Logger {
	if p.Logger != nil {
		return p.Logger
	}
	return slog.Default()
}
