// Package watch feeds event files dropped into the inbox through the
// pipeline.
package watch

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

const (
	debounceDefault = 200 * time.Millisecond
	pollDefault     = 5 * time.Second

	// maxQueueSize bounds paths waiting for a worker after a debounce flush.
	maxQueueSize = 200
)

// Handler processes one event file.
type Handler func(path string)

// InboxWatcher watches a directory for new .json files using fsnotify.
type InboxWatcher struct {
	inbox    string
	handler  Handler
	debounce time.Duration
	workers  int
	logger   *slog.Logger
}

// NewInboxWatcher creates a watcher for inbox. workers below 1 means 1;
// the gate and buffer see events serially in that case, as a cron loop would.
func NewInboxWatcher(inbox string, handler Handler, workers int, logger *slog.Logger) *InboxWatcher {
	if workers < 1 {
		workers = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &InboxWatcher{
		inbox:    inbox,
		handler:  handler,
		debounce: debounceDefault,
		workers:  workers,
		logger:   logger,
	}
}

// Run watches the inbox. Blocks until ctx is cancelled; paths already
// queued are drained before it returns.
func (w *InboxWatcher) Run(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer func() { _ = watcher.Close() }()

	if err := watcher.Add(w.inbox); err != nil {
		return err
	}

	// A single timer resets on each event; when it fires, all paths
	// collected so far go to the queue in name order.
	ready := make(map[string]struct{})
	queue := make(chan string, maxQueueSize)

	var wg sync.WaitGroup
	for i := 0; i < w.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for path := range queue {
				w.handle(path)
			}
		}()
	}

	flush := func() {
		batch := make([]string, 0, len(ready))
		for p := range ready {
			batch = append(batch, p)
		}
		clear(ready)
		sort.Strings(batch)
		for _, p := range batch {
			select {
			case queue <- p:
			case <-ctx.Done():
				return
			}
		}
	}

	debounceTimer := time.NewTimer(w.debounce)
	debounceTimer.Stop()

	defer func() {
		debounceTimer.Stop()
		close(queue)
		wg.Wait()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case <-debounceTimer.C:
			flush()

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Create) || !isEventFile(event.Name) {
				continue
			}
			ready[event.Name] = struct{}{}

			if !debounceTimer.Stop() {
				select {
				case <-debounceTimer.C:
				default:
				}
			}
			debounceTimer.Reset(w.debounce)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("inbox watcher error", "error", err)
		}
	}
}

func (w *InboxWatcher) handle(path string) {
	defer func() {
		if r := recover(); r != nil {
			w.logger.Error("event handler panicked", "path", path, "panic", r)
		}
	}()
	w.handler(path)
}

// PollWatcher watches a directory by polling. Used when fsnotify is not
// available (network filesystems, some containers).
type PollWatcher struct {
	inbox    string
	handler  Handler
	interval time.Duration
	seen     map[string]bool
}

// NewPollWatcher creates a polling watcher. A zero interval means 5s.
func NewPollWatcher(inbox string, handler Handler, interval time.Duration) *PollWatcher {
	if interval <= 0 {
		interval = pollDefault
	}
	return &PollWatcher{
		inbox:    inbox,
		handler:  handler,
		interval: interval,
		seen:     make(map[string]bool),
	}
}

// Run polls the inbox. Blocks until ctx is cancelled.
func (w *PollWatcher) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			w.scan()
		}
	}
}

func (w *PollWatcher) scan() {
	paths, err := listEventFiles(w.inbox)
	if err != nil {
		return
	}
	for _, path := range paths {
		if w.seen[path] {
			continue
		}
		w.seen[path] = true
		w.handler(path)
	}
}

// ScanExisting hands every event file already in inbox to handler, in name
// order. A missing inbox is not an error.
func ScanExisting(inbox string, handler Handler) error {
	paths, err := listEventFiles(inbox)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	for _, path := range paths {
		handler(path)
	}
	return nil
}

func listEventFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		path := filepath.Join(dir, e.Name())
		if isEventFile(path) {
			out = append(out, path)
		}
	}
	return out, nil
}

// isEventFile reports whether path is a finished .json drop, not a partial
// write.
func isEventFile(path string) bool {
	name := filepath.Base(path)
	return strings.HasSuffix(name, ".json") && !strings.HasSuffix(name, ".tmp")
}
