package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/ppiankov/signalgate/internal/audit"
	"github.com/ppiankov/signalgate/internal/config"
	"github.com/ppiankov/signalgate/internal/gate"
	"github.com/ppiankov/signalgate/internal/ingest"
	"github.com/ppiankov/signalgate/internal/model"
	"github.com/ppiankov/signalgate/internal/pipeline"
)

// --- Input/Output types ---

// EvaluateInput is an event in its inbox JSON shape. Missing fields get the
// same defaults as ingestion.
type EvaluateInput struct {
	EventID    string   `json:"event_id,omitempty" jsonschema:"event id, generated when empty"`
	TS         string   `json:"ts,omitempty" jsonschema:"ISO-8601 timestamp, defaults to now"`
	Title      string   `json:"title,omitempty" jsonschema:"event title"`
	Body       string   `json:"body,omitempty" jsonschema:"event body"`
	URL        string   `json:"url,omitempty" jsonschema:"link to the source"`
	Source     string   `json:"source,omitempty" jsonschema:"publisher or channel name"`
	SourceTier string   `json:"source_tier,omitempty" jsonschema:"evidence tier A, B or C (default C)"`
	Tags       []string `json:"tags,omitempty" jsonschema:"classification tags"`
}

// EvaluateOutput is the classification result.
type EvaluateOutput struct {
	EventID          string `json:"event_id"`
	State            string `json:"state"`
	Entity           string `json:"entity"`
	Action           string `json:"action"`
	Q1Structural     bool   `json:"q1_structural"`
	Q2AffectsBets    bool   `json:"q2_affects_bets"`
	Q3RequiresAction bool   `json:"q3_requires_action"`
	Evidence         string `json:"evidence"`
	RuleID           string `json:"rule_id"`
	Preview          string `json:"preview"`
}

// GateStatusInput is empty.
type GateStatusInput struct{}

// GateStatusOutput is the persisted breaker state plus effective limits.
type GateStatusOutput struct {
	Tripped            bool   `json:"tripped"`
	BurstCount         int    `json:"burst_count"`
	BurstWindowStart   string `json:"burst_window_start"`
	LastInterruptTS    string `json:"last_interrupt_ts"`
	BurstLimit         int    `json:"burst_limit"`
	BurstWindowMinutes int    `json:"burst_window_minutes"`
}

// AuditCountInput is empty.
type AuditCountInput struct{}

// AuditCountOutput reports the interrupt count.
type AuditCountOutput struct {
	Count   int    `json:"count"`
	Exists  bool   `json:"exists"`
	Summary string `json:"summary"`
}

// AuditTailInput selects how many records to return.
type AuditTailInput struct {
	N int `json:"n,omitempty" jsonschema:"number of records, default 10"`
}

// AuditTailOutput holds the newest records, oldest first.
type AuditTailOutput struct {
	Records []model.InterruptRecord `json:"records"`
}

const defaultTail = 10

// --- Handlers ---

func (s *Server) handleEvaluate(ctx context.Context, req *mcpsdk.CallToolRequest, input EvaluateInput) (*mcpsdk.CallToolResult, EvaluateOutput, error) {
	raw, err := json.Marshal(input)
	if err != nil {
		return nil, EvaluateOutput{}, err
	}
	ev, err := ingest.ParseEvent(raw, "", time.Now().UTC())
	if err != nil {
		return nil, EvaluateOutput{}, err
	}

	r, err := pipeline.Preview(s.paths, s.logger)
	if err != nil {
		return nil, EvaluateOutput{}, err
	}
	out, err := r.Run(ctx, ev, true)
	if err != nil {
		return nil, EvaluateOutput{}, err
	}

	return nil, EvaluateOutput{
		EventID:          ev.EventID,
		State:            string(out.Decision.State),
		Entity:           out.Entity,
		Action:           string(out.Action),
		Q1Structural:     out.Decision.Q1Structural,
		Q2AffectsBets:    out.Decision.Q2AffectsBets,
		Q3RequiresAction: out.Decision.Q3RequiresAction,
		Evidence:         out.Decision.EvidenceSummary(),
		RuleID:           out.Decision.RuleID,
		Preview:          out.Message,
	}, nil
}

func (s *Server) handleGateStatus(ctx context.Context, req *mcpsdk.CallToolRequest, input GateStatusInput) (*mcpsdk.CallToolResult, GateStatusOutput, error) {
	rules, err := config.LoadRules(s.paths.ConfigDir())
	if err != nil {
		return nil, GateStatusOutput{}, fmt.Errorf("load rules: %w", err)
	}
	fs, err := gate.NewFileStore(s.paths.StateDir())
	if err != nil {
		return nil, GateStatusOutput{}, err
	}
	st, err := fs.Load()
	if err != nil {
		return &mcpsdk.CallToolResult{IsError: true}, GateStatusOutput{}, err
	}
	return nil, GateStatusOutput{
		Tripped:            st.Tripped,
		BurstCount:         st.BurstCount,
		BurstWindowStart:   st.BurstWindowStart,
		LastInterruptTS:    st.LastInterruptTS,
		BurstLimit:         rules.BurstLimit(),
		BurstWindowMinutes: int(rules.BurstWindow() / time.Minute),
	}, nil
}

func (s *Server) handleAuditCount(ctx context.Context, req *mcpsdk.CallToolRequest, input AuditCountInput) (*mcpsdk.CallToolResult, AuditCountOutput, error) {
	n, exists, err := audit.Count(s.paths.AuditLog())
	if err != nil {
		return nil, AuditCountOutput{}, err
	}
	summary := "No interrupts."
	if exists {
		summary = fmt.Sprintf("Interrupt count: %d", n)
	}
	return nil, AuditCountOutput{Count: n, Exists: exists, Summary: summary}, nil
}

func (s *Server) handleAuditTail(ctx context.Context, req *mcpsdk.CallToolRequest, input AuditTailInput) (*mcpsdk.CallToolResult, AuditTailOutput, error) {
	n := input.N
	if n <= 0 {
		n = defaultTail
	}
	records, err := audit.Tail(s.paths.AuditLog(), n)
	if err != nil {
		return nil, AuditTailOutput{}, err
	}
	if records == nil {
		records = []model.InterruptRecord{}
	}
	return nil, AuditTailOutput{Records: records}, nil
}
