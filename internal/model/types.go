package model

import (
	"strings"
	"time"
)

// RuleID identifies the decision rule version stamped on every Decision.
const RuleID = "rule_v0_1"

// SignalStructChange is the only signal type emitted by this rule version.
const SignalStructChange = "STRUCT_CHANGE"

// UnknownEntity is returned when no tracked bet matches an event.
const UnknownEntity = "UNKNOWN"

// Tier is the evidentiary strength of an event's source.
type Tier string

const (
	TierA Tier = "A"
	TierB Tier = "B"
	TierC Tier = "C"
)

// TierRank is the built-in evidence ordering. Config may override ranks,
// but these values are the floor when nothing is specified.
var TierRank = map[Tier]int{
	TierC: 0,
	TierB: 1,
	TierA: 2,
}

// NormalizeTier uppercases s and coerces anything outside A/B/C to C.
func NormalizeTier(s string) Tier {
	switch t := Tier(strings.ToUpper(strings.TrimSpace(s))); t {
	case TierA, TierB, TierC:
		return t
	default:
		return TierC
	}
}

// State is the classification outcome for one event.
type State string

const (
	StateCold      State = "cold"
	StateTentative State = "tentative"
	StateInterrupt State = "interrupt"
)

// Action is the recommended next step attached to an interrupt.
type Action string

const (
	ActionBuy       Action = "BUY"
	ActionSell      Action = "SELL"
	ActionReduce    Action = "REDUCE"
	ActionDoNothing Action = "DO_NOTHING"
)

// Event is one external signal. Treated as immutable after ingestion.
type Event struct {
	EventID    string   `json:"event_id"`
	TS         string   `json:"ts"`
	Title      string   `json:"title"`
	Body       string   `json:"body"`
	URL        string   `json:"url"`
	Source     string   `json:"source"`
	SourceTier string   `json:"source_tier"`
	Tags       []string `json:"tags"`
}

// Tier returns the normalized source tier.
func (e Event) Tier() Tier {
	return NormalizeTier(e.SourceTier)
}

// SourceRef is the best human-facing pointer to where the event came from.
func (e Event) SourceRef() string {
	if e.URL != "" {
		return e.URL
	}
	return e.Source
}

// Decision is the result of the three-question evaluation.
type Decision struct {
	Q1Structural     bool   `json:"q1_structural"`
	Q2AffectsBets    bool   `json:"q2_affects_bets"`
	Q3RequiresAction bool   `json:"q3_requires_action"`
	EvidenceQ1       Tier   `json:"evidence_q1"`
	EvidenceQ2       Tier   `json:"evidence_q2"`
	EvidenceQ3       Tier   `json:"evidence_q3"`
	State            State  `json:"state"`
	RuleID           string `json:"rule_id"`
}

// Promote upgrades a tentative decision to interrupt. The question
// booleans and evidence are left as originally computed.
func (d *Decision) Promote() {
	d.State = StateInterrupt
}

// EvidenceSummary renders the q1/q2/q3 evidence line used in audit and messages.
func (d Decision) EvidenceSummary() string {
	return "q1=" + string(d.EvidenceQ1) + " q2=" + string(d.EvidenceQ2) + " q3=" + string(d.EvidenceQ3)
}

// InterruptRecord is one append-only audit entry for a fired interrupt.
type InterruptRecord struct {
	TS         string `json:"ts"`
	EventID    string `json:"event_id"`
	Entity     string `json:"entity"`
	SignalType string `json:"signal_type"`
	RuleID     string `json:"rule_id"`
	Evidence   string `json:"evidence"`
	Action     Action `json:"action"`
	Deadline   string `json:"deadline"`
	SourceRef  string `json:"source_ref"`
	RulesHash  string `json:"rules_hash,omitempty"`
	PrevHash   string `json:"prev_hash"`
}

// FormatTS renders t the way all persisted timestamps are written.
func FormatTS(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// ParseTS parses an ISO-8601 timestamp. A trailing Z and explicit offsets are
// accepted; a timestamp without zone is read as UTC.
func ParseTS(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05.999999999", "2006-01-02 15:04:05.999999999Z07:00", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}
