package config

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ppiankov/signalgate/internal/alert"
	"github.com/ppiankov/signalgate/internal/model"
)

// RulesFile is the rule set file name inside the config directory.
const RulesFile = "rules.yaml"

const (
	defaultObservationHours = 24
	defaultBurstWindowMin   = 60
	defaultBurstLimit       = 2
)

var (
	defaultExplicitTags  = []string{"action_required"}
	defaultForceTags     = []string{"tax", "account", "kyc", "transfer", "identity", "legal", "regulation"}
	defaultAllowed       = []string{"BUY", "SELL", "REDUCE", "DO_NOTHING"}
	defaultSellTags      = []string{"sell", "exit", "ban", "delist", "enforcement"}
	defaultReduceTags    = []string{"reduce", "trim", "risk_off"}
	defaultBuyTags       = []string{"buy", "add", "risk_on"}
	defaultStructuralSet = []string{"structural", "rule_change", "regulation"}
)

// EvidencePolicy overrides the tier ranking.
type EvidencePolicy struct {
	Rank map[string]int `yaml:"rank"`
}

// TierCPolicy controls how tier-C evidence is treated.
type TierCPolicy struct {
	Q1AlwaysNo                  *bool `yaml:"q1_always_no"`
	AllowPromotionByMultisource *bool `yaml:"allow_promotion_by_multisource"`
}

// ImpactRadius selects which impact classes Q2 honors. Only direct is
// active; indirect and macro are reserved.
type ImpactRadius struct {
	Direct   *bool `yaml:"direct"`
	Indirect bool  `yaml:"indirect"`
	Macro    bool  `yaml:"macro"`
}

// Q3Policy lists the tags that count as "requires action".
type Q3Policy struct {
	RequireExplicitTag *bool    `yaml:"require_explicit_tag"`
	ExplicitTags       []string `yaml:"explicit_tags"`
	ForceTags          []string `yaml:"force_tags"`
}

// DecisionPolicy is the decision section of rules.yaml.
type DecisionPolicy struct {
	Q1MinEvidence          string        `yaml:"q1_min_evidence"`
	TierC                  TierCPolicy   `yaml:"tier_c_policy"`
	ImpactRadius           *ImpactRadius `yaml:"impact_radius"`
	Q3                     Q3Policy      `yaml:"q3_policy"`
	ObservationWindowHours int           `yaml:"observation_window_hours"`
}

// ActionMap maps event tags to recommended actions.
type ActionMap struct {
	AllowedActions []string `yaml:"allowed_actions"`
	SellTags       []string `yaml:"sell_tags"`
	ReduceTags     []string `yaml:"reduce_tags"`
	BuyTags        []string `yaml:"buy_tags"`
}

// GatePolicy configures the circuit breaker.
type GatePolicy struct {
	BurstWindowMinutes int `yaml:"burst_window_minutes"`
	BurstLimit         int `yaml:"burst_limit"`
}

// RulesConfig is the rule set document. Every accessor falls back to a
// built-in default so a missing or partial file never fails a run.
type RulesConfig struct {
	Evidence  EvidencePolicy      `yaml:"evidence"`
	Decision  DecisionPolicy      `yaml:"decision"`
	ActionMap ActionMap           `yaml:"action_map"`
	Gate      GatePolicy          `yaml:"gate"`
	Alerts    []alert.AlertConfig `yaml:"alerts"`
}

// LoadRules reads rules.yaml from dir. A missing file yields all defaults.
func LoadRules(dir string) (*RulesConfig, error) {
	cfg, _, err := LoadRulesWithHash(dir)
	return cfg, err
}

// LoadRulesWithHash loads rules.yaml and returns the SHA-256 of its raw bytes.
// When the file is missing the hash is that of empty input.
func LoadRulesWithHash(dir string) (*RulesConfig, string, error) {
	data, err := os.ReadFile(filepath.Join(dir, RulesFile))
	if err != nil {
		if os.IsNotExist(err) {
			return &RulesConfig{}, hashBytes(nil), nil
		}
		return nil, "", fmt.Errorf("failed to read rules config: %w", err)
	}

	var cfg RulesConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, "", fmt.Errorf("failed to parse rules config: %w", err)
	}
	return &cfg, hashBytes(data), nil
}

func hashBytes(data []byte) string {
	h := sha256.Sum256(data)
	return "sha256:" + hex.EncodeToString(h[:])
}

// Rank returns the tier rank map: C=0, B=1, A=2 overlaid with configured values.
func (r *RulesConfig) Rank() map[model.Tier]int {
	rank := make(map[model.Tier]int, len(model.TierRank))
	for t, v := range model.TierRank {
		rank[t] = v
	}
	if r == nil {
		return rank
	}
	for k, v := range r.Evidence.Rank {
		rank[model.Tier(strings.ToUpper(strings.TrimSpace(k)))] = v
	}
	return rank
}

// EvidenceAtLeast reports rank(a) >= rank(b). Unknown tiers rank 0.
func (r *RulesConfig) EvidenceAtLeast(a, b model.Tier) bool {
	rank := r.Rank()
	return rank[a] >= rank[b]
}

// Q1MinEvidence is the minimum tier for structural evidence. Defaults to B,
// including when the configured value is not a valid tier.
func (r *RulesConfig) Q1MinEvidence() model.Tier {
	if r == nil {
		return model.TierB
	}
	switch t := model.Tier(strings.ToUpper(strings.TrimSpace(r.Decision.Q1MinEvidence))); t {
	case model.TierA, model.TierB, model.TierC:
		return t
	default:
		return model.TierB
	}
}

// Q1AlwaysNoForTierC reports whether tier C can never satisfy Q1. Default true.
func (r *RulesConfig) Q1AlwaysNoForTierC() bool {
	if r == nil || r.Decision.TierC.Q1AlwaysNo == nil {
		return true
	}
	return *r.Decision.TierC.Q1AlwaysNo
}

// AllowPromotionByMultisource enables the observation buffer promotion scan. Default false.
func (r *RulesConfig) AllowPromotionByMultisource() bool {
	if r == nil || r.Decision.TierC.AllowPromotionByMultisource == nil {
		return false
	}
	return *r.Decision.TierC.AllowPromotionByMultisource
}

// DirectImpactEnabled reports impact_radius.direct. Default true.
func (r *RulesConfig) DirectImpactEnabled() bool {
	if r == nil || r.Decision.ImpactRadius == nil || r.Decision.ImpactRadius.Direct == nil {
		return true
	}
	return *r.Decision.ImpactRadius.Direct
}

// RequireExplicitTag mirrors q3_policy.require_explicit_tag. Default true.
func (r *RulesConfig) RequireExplicitTag() bool {
	if r == nil || r.Decision.Q3.RequireExplicitTag == nil {
		return true
	}
	return *r.Decision.Q3.RequireExplicitTag
}

// ExplicitTags returns q3_policy.explicit_tags, lowercased.
func (r *RulesConfig) ExplicitTags() []string {
	if r == nil || r.Decision.Q3.ExplicitTags == nil {
		return lower(defaultExplicitTags)
	}
	return lower(r.Decision.Q3.ExplicitTags)
}

// ForceTags returns q3_policy.force_tags, lowercased.
func (r *RulesConfig) ForceTags() []string {
	if r == nil || r.Decision.Q3.ForceTags == nil {
		return lower(defaultForceTags)
	}
	return lower(r.Decision.Q3.ForceTags)
}

// StructuralTags is the fixed structural tag set. Not configurable.
func StructuralTags() []string {
	return append([]string(nil), defaultStructuralSet...)
}

// AllowedActions returns the action whitelist, uppercased.
func (r *RulesConfig) AllowedActions() []string {
	var v []string
	if r != nil {
		v = r.ActionMap.AllowedActions
	}
	out := make([]string, 0, len(v))
	for _, a := range orDefault(v, defaultAllowed) {
		out = append(out, strings.ToUpper(a))
	}
	return out
}

// SellTags returns action_map.sell_tags, lowercased.
func (r *RulesConfig) SellTags() []string {
	if r == nil {
		return lower(defaultSellTags)
	}
	return lower(orDefault(r.ActionMap.SellTags, defaultSellTags))
}

// ReduceTags returns action_map.reduce_tags, lowercased.
func (r *RulesConfig) ReduceTags() []string {
	if r == nil {
		return lower(defaultReduceTags)
	}
	return lower(orDefault(r.ActionMap.ReduceTags, defaultReduceTags))
}

// BuyTags returns action_map.buy_tags, lowercased.
func (r *RulesConfig) BuyTags() []string {
	if r == nil {
		return lower(defaultBuyTags)
	}
	return lower(orDefault(r.ActionMap.BuyTags, defaultBuyTags))
}

// ObservationWindow is decision.observation_window_hours. Non-positive means 24h.
func (r *RulesConfig) ObservationWindow() time.Duration {
	h := defaultObservationHours
	if r != nil && r.Decision.ObservationWindowHours > 0 {
		h = r.Decision.ObservationWindowHours
	}
	return time.Duration(h) * time.Hour
}

// BurstWindow is gate.burst_window_minutes. Non-positive means 60m.
func (r *RulesConfig) BurstWindow() time.Duration {
	m := defaultBurstWindowMin
	if r != nil && r.Gate.BurstWindowMinutes > 0 {
		m = r.Gate.BurstWindowMinutes
	}
	return time.Duration(m) * time.Minute
}

// BurstLimit is gate.burst_limit. Non-positive means 2.
func (r *RulesConfig) BurstLimit() int {
	if r != nil && r.Gate.BurstLimit > 0 {
		return r.Gate.BurstLimit
	}
	return defaultBurstLimit
}

// orDefault treats both a missing and an empty list as unset.
func orDefault(v, def []string) []string {
	if len(v) == 0 {
		return def
	}
	return v
}

func lower(v []string) []string {
	out := make([]string, len(v))
	for i, s := range v {
		out[i] = strings.ToLower(s)
	}
	return out
}

// DefaultRulesYAML returns a commented rules.yaml for init.
func DefaultRulesYAML() string {
	return `# signalgate rule set
# Generated by: signalgate init
#
# An event interrupts only when all three questions answer yes:
#   Q1 structural change  - structural/rule_change/regulation or a force tag,
#                           backed by evidence >= q1_min_evidence
#   Q2 affects your bets  - direct bet match, or force tag + bets.force non-empty
#   Q3 requires action    - explicit tag or force tag
# Otherwise structural/force hits are held as tentative, everything else is cold.

evidence:
  rank: {C: 0, B: 1, A: 2}

decision:
  q1_min_evidence: B
  tier_c_policy:
    q1_always_no: true
    allow_promotion_by_multisource: false
  impact_radius: {direct: true, indirect: false, macro: false}
  q3_policy:
    require_explicit_tag: true
    explicit_tags: [action_required]
    force_tags: [tax, account, kyc, transfer, identity, legal, regulation]
  observation_window_hours: 24

action_map:
  allowed_actions: [BUY, SELL, REDUCE, DO_NOTHING]
  sell_tags: [sell, exit, ban, delist, enforcement]
  reduce_tags: [reduce, trim, risk_off]
  buy_tags: [buy, add, risk_on]

# Circuit breaker: burst_limit interrupts within burst_window_minutes trips
# the gate. Only "signalgate reset-gate" clears it.
gate:
  burst_window_minutes: 60
  burst_limit: 2

# Optional webhooks fired when an interrupt goes out.
# events: interrupt | gate_tripped    format: generic | slack | pagerduty
alerts: []
`
}
