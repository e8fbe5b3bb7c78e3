// Package pipeline runs one event through classification, the observation
// buffer, the cold archive and the circuit breaker.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ppiankov/signalgate/internal/alert"
	"github.com/ppiankov/signalgate/internal/buffer"
	"github.com/ppiankov/signalgate/internal/config"
	"github.com/ppiankov/signalgate/internal/decision"
	"github.com/ppiankov/signalgate/internal/gate"
	"github.com/ppiankov/signalgate/internal/metrics"
	"github.com/ppiankov/signalgate/internal/model"
	"github.com/ppiankov/signalgate/internal/store"
)

// AuditSink appends interrupt records and returns the stored form.
type AuditSink interface {
	Append(rec model.InterruptRecord) (model.InterruptRecord, error)
}

// Runner holds everything one run needs. Build it with Open or by hand in
// tests; Alerts, Metrics, Logger and Now are optional.
type Runner struct {
	Bets      *config.BetsConfig
	Rules     *config.RulesConfig
	RulesHash string
	Engine    decision.Engine

	Cold   store.EventStore
	Buffer *buffer.Buffer
	Gate   *gate.Gate
	Audit  AuditSink

	Alerts  *alert.Dispatcher
	Metrics *metrics.Metrics
	Logger  *slog.Logger
	Now     func() time.Time
}

// Outcome describes what a run did.
type Outcome struct {
	Event    model.Event
	Decision model.Decision
	Entity   string
	Action   model.Action

	// Promoted is set when a tentative event was corroborated.
	Promoted       bool
	CorroboratedBy string

	// Fired is set when an interrupt passed the gate and was audited.
	Fired       bool
	Suppressed  bool
	GateTripped bool
	Record      *model.InterruptRecord

	// Message is the interrupt message, the dry-run preview, or empty.
	Message string
}

// Run processes ev. With dryRun nothing is written and Message is always
// the preview. Otherwise Message is set only when an interrupt fires.
//
// Order (must not be changed):
//  1. Tentative: park in the buffer; end silently unless corroborated
//  2. Archive to cold
//  3. Cold: end
//  4. Interrupt: gate attempt; end silently when blocked
//  5. Audit, alerts, message
func (r *Runner) Run(ctx context.Context, ev model.Event, dryRun bool) (Outcome, error) {
	now := r.now()
	logger := r.logger().With("event_id", ev.EventID)

	out := Outcome{
		Event:    ev,
		Decision: r.Engine.Decide(ev, r.Bets, r.Rules),
		Entity:   r.Engine.InferEntity(ev, r.Bets),
		Action:   decision.InferAction(ev, r.Rules),
	}
	logger.Debug("classified", "state", out.Decision.State, "entity", out.Entity, "action", out.Action,
		"q1", out.Decision.Q1Structural, "q2", out.Decision.Q2AffectsBets, "q3", out.Decision.Q3RequiresAction)

	if dryRun {
		out.Message = FormatDryRun(ev, out.Decision, out.Entity, out.Action)
		return out, nil
	}
	r.Metrics.MarkRun(now)

	// Step 1
	if out.Decision.State == model.StateTentative {
		if err := r.Buffer.Park(ev); err != nil {
			return out, err
		}
		if !r.Rules.AllowPromotionByMultisource() {
			r.countState(model.StateTentative)
			return out, nil
		}
		by, ok, err := r.Buffer.Corroborate(ev, out.Entity, r.Rules.ObservationWindow(), now)
		if err != nil {
			return out, err
		}
		if !ok {
			r.countState(model.StateTentative)
			return out, nil
		}
		out.Decision.Promote()
		out.Promoted = true
		out.CorroboratedBy = by.EventID
		if r.Metrics != nil {
			r.Metrics.PromotionsTotal.Inc()
		}
	}

	// Step 2
	if err := r.Cold.Put(ev); err != nil {
		return out, fmt.Errorf("archive: %w", err)
	}

	// Step 3
	if out.Decision.State != model.StateInterrupt {
		r.countState(out.Decision.State)
		return out, nil
	}
	r.countState(model.StateInterrupt)

	// Step 4
	res, err := r.Gate.Attempt(now)
	if err != nil {
		return out, err
	}
	out.GateTripped = res.State.Tripped
	r.Metrics.ObserveGate(res.State.Tripped)
	if !res.Allowed {
		out.Suppressed = true
		if r.Metrics != nil {
			r.Metrics.InterruptsSuppressed.Inc()
		}
		return out, nil
	}

	// Step 5
	rec, err := r.Audit.Append(model.InterruptRecord{
		TS:         model.FormatTS(now),
		EventID:    ev.EventID,
		Entity:     out.Entity,
		SignalType: model.SignalStructChange,
		RuleID:     out.Decision.RuleID,
		Evidence:   out.Decision.EvidenceSummary(),
		Action:     out.Action,
		SourceRef:  ev.SourceRef(),
		RulesHash:  r.RulesHash,
	})
	if err != nil {
		return out, err
	}
	out.Fired = true
	out.Record = &rec
	out.Message = FormatInterrupt(rec)
	if r.Metrics != nil {
		r.Metrics.InterruptsFired.Inc()
	}
	logger.Info("interrupt fired", "entity", rec.Entity, "action", rec.Action, "promoted", out.Promoted)

	r.alert(ctx, logger, rec, alert.EventInterrupt, res.State.BurstCount)
	if res.JustTripped {
		r.alert(ctx, logger, rec, alert.EventGateTripped, res.State.BurstCount)
	}
	return out, nil
}

// alert delivers a webhook notification. Failures are logged only.
func (r *Runner) alert(ctx context.Context, logger *slog.Logger, rec model.InterruptRecord, typ string, burst int) {
	if r.Alerts == nil {
		return
	}
	err := r.Alerts.Dispatch(ctx, alert.AlertEvent{
		Timestamp:  rec.TS,
		Type:       typ,
		EventID:    rec.EventID,
		Entity:     rec.Entity,
		Action:     string(rec.Action),
		RuleID:     rec.RuleID,
		Evidence:   rec.Evidence,
		SourceRef:  rec.SourceRef,
		RulesHash:  rec.RulesHash,
		BurstCount: burst,
	})
	if err != nil {
		logger.Warn("alert delivery failed", "type", typ, "error", err)
		if r.Metrics != nil {
			r.Metrics.AlertFailures.Inc()
		}
	}
}

func (r *Runner) countState(s model.State) {
	if r.Metrics != nil {
		r.Metrics.EventsTotal.WithLabelValues(string(s)).Inc()
	}
}

func (r *Runner) now() time.Time {
	if r.Now != nil {
		return r.Now().UTC()
	}
	return time.Now().UTC()
}

func (r *Runner) logger() *slog.Logger {
	if r.Logger != nil {
		return r.Logger
	}
	return slog.Default()
}
