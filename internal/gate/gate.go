package gate

import (
	"log/slog"
	"time"

	"github.com/ppiankov/signalgate/internal/model"
)

const (
	defaultWindow = 60 * time.Minute
	defaultLimit  = 2
)

// Gate decides whether an interrupt may fire and records every fire.
type Gate struct {
	store  Store
	window time.Duration
	limit  int
	logger *slog.Logger
}

// New creates a Gate. Non-positive window or limit fall back to 60m and 2.
func New(store Store, window time.Duration, limit int, logger *slog.Logger) *Gate {
	if window <= 0 {
		window = defaultWindow
	}
	if limit <= 0 {
		limit = defaultLimit
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Gate{store: store, window: window, limit: limit, logger: logger}
}

// Result is the outcome of one Attempt.
type Result struct {
	// Allowed is true when the interrupt may fire.
	Allowed bool
	// JustTripped is true when this attempt set the trip.
	JustTripped bool
	State       State
}

// CanInterrupt reports whether the gate is open. Pure read.
func (g *Gate) CanInterrupt() (bool, error) {
	st, err := g.store.Load()
	if err != nil {
		return false, err
	}
	return !st.Tripped, nil
}

// OnInterrupt records a fire at now: a fresh window opens when none is open
// or the open one is older than the burst window; otherwise the count grows.
// Reaching the limit trips the gate. The trip never clears on its own.
func (g *Gate) OnInterrupt(now time.Time) (State, error) {
	return g.store.Update(func(st *State) bool {
		g.record(st, now)
		return true
	})
}

// Attempt runs CanInterrupt and OnInterrupt under one exclusive lock so
// concurrent invocations cannot exceed the burst limit. A blocked attempt
// leaves the state untouched.
func (g *Gate) Attempt(now time.Time) (Result, error) {
	var res Result
	st, err := g.store.Update(func(st *State) bool {
		if st.Tripped {
			return false
		}
		res.Allowed = true
		g.record(st, now)
		res.JustTripped = st.Tripped
		return true
	})
	if err != nil {
		return Result{}, err
	}
	res.State = st
	if !res.Allowed {
		g.logger.Info("interrupt suppressed: gate tripped", "burst_count", st.BurstCount)
	} else if res.JustTripped {
		g.logger.Warn("gate tripped", "burst_count", st.BurstCount, "limit", g.limit, "window", g.window)
	}
	return res, nil
}

// Reset restores the zero state unconditionally.
func (g *Gate) Reset() error {
	_, err := g.store.Update(func(st *State) bool {
		*st = State{}
		return true
	})
	return err
}

// Status returns the persisted state.
func (g *Gate) Status() (State, error) {
	return g.store.Load()
}

func (g *Gate) record(st *State, now time.Time) {
	now = now.UTC()
	start, ok := model.ParseTS(st.BurstWindowStart)
	if !ok || now.Sub(start) > g.window {
		st.BurstWindowStart = model.FormatTS(now)
		st.BurstCount = 1
	} else {
		st.BurstCount++
	}
	st.LastInterruptTS = model.FormatTS(now)
	if st.BurstCount >= g.limit {
		st.Tripped = true
	}
}
