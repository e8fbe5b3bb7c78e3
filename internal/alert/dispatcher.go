package alert

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// Dispatcher fans out alert events to matching webhook configurations.
type Dispatcher struct {
	configs []AlertConfig
}

// NewDispatcher creates a Dispatcher from webhook configurations.
// Returns nil if configs is empty (callers should nil-check).
func NewDispatcher(configs []AlertConfig) *Dispatcher {
	if len(configs) == 0 {
		return nil
	}
	return &Dispatcher{configs: configs}
}

// Dispatch sends the event to every webhook whose Events list contains
// event.Type and waits for all of them. The process is short-lived, so
// fire-and-forget would lose deliveries on exit.
func (d *Dispatcher) Dispatch(ctx context.Context, event AlertEvent) error {
	if d == nil {
		return nil
	}

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)
	for _, cfg := range d.configs {
		if !matches(cfg.Events, event) {
			continue
		}
		wg.Add(1)
		go func(cfg AlertConfig) {
			defer wg.Done()
			if err := Send(ctx, cfg, event); err != nil {
				mu.Lock()
				errs = append(errs, fmt.Errorf("%s: %w", cfg.URL, err))
				mu.Unlock()
			}
		}(cfg)
	}
	wg.Wait()
	return errors.Join(errs...)
}

func matches(events []string, event AlertEvent) bool {
	for _, e := range events {
		if e == event.Type {
			return true
		}
	}
	return false
}
