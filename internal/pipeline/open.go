package pipeline

import (
	"fmt"
	"log/slog"

	"github.com/ppiankov/signalgate/internal/alert"
	"github.com/ppiankov/signalgate/internal/audit"
	"github.com/ppiankov/signalgate/internal/buffer"
	"github.com/ppiankov/signalgate/internal/config"
	"github.com/ppiankov/signalgate/internal/gate"
	"github.com/ppiankov/signalgate/internal/layout"
	"github.com/ppiankov/signalgate/internal/metrics"
	"github.com/ppiankov/signalgate/internal/model"
	"github.com/ppiankov/signalgate/internal/store"
)

// AuditFile appends to a hash-chained log on disk, opening and locking it
// per record.
type AuditFile string

// Append implements AuditSink.
func (f AuditFile) Append(rec model.InterruptRecord) (model.InterruptRecord, error) {
	return audit.Append(string(f), rec)
}

// Open wires a Runner over the directory layout rooted at p. Configs are
// read from p.ConfigDir(); directories are created as needed.
func Open(p layout.Paths, m *metrics.Metrics, logger *slog.Logger) (*Runner, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := layout.EnsureDirs(p); err != nil {
		return nil, err
	}

	r, err := Preview(p, logger)
	if err != nil {
		return nil, err
	}
	r.Metrics = m

	cold, err := store.NewDirStore(p.ColdDir())
	if err != nil {
		return nil, err
	}
	tentative, err := store.NewDirStore(p.TentativeDir())
	if err != nil {
		return nil, err
	}
	state, err := gate.NewFileStore(p.StateDir())
	if err != nil {
		return nil, err
	}

	r.Cold = cold
	r.Buffer = buffer.New(tentative, logger)
	r.Gate = gate.New(state, r.Rules.BurstWindow(), r.Rules.BurstLimit(), logger)
	r.Audit = AuditFile(p.AuditLog())
	r.Alerts = alert.NewDispatcher(r.Rules.Alerts)
	return r, nil
}

// Preview loads only the policy documents. The returned Runner supports
// dry runs and creates nothing on disk.
func Preview(p layout.Paths, logger *slog.Logger) (*Runner, error) {
	bets, err := config.LoadBets(p.ConfigDir())
	if err != nil {
		return nil, fmt.Errorf("load bets: %w", err)
	}
	rules, hash, err := config.LoadRulesWithHash(p.ConfigDir())
	if err != nil {
		return nil, fmt.Errorf("load rules: %w", err)
	}
	return &Runner{Bets: bets, Rules: rules, RulesHash: hash, Logger: logger}, nil
}
