package alert

// Alert event types a webhook can subscribe to.
const (
	EventInterrupt   = "interrupt"
	EventGateTripped = "gate_tripped"
)

// AlertConfig defines a webhook alert destination.
type AlertConfig struct {
	URL     string            `yaml:"url"     json:"url"`
	Format  string            `yaml:"format"  json:"format"` // "generic", "slack", "pagerduty"
	Events  []string          `yaml:"events"  json:"events"` // ["interrupt", "gate_tripped"]
	Headers map[string]string `yaml:"headers" json:"headers"`
}

// AlertEvent is the payload sent to webhook endpoints.
type AlertEvent struct {
	Timestamp  string `json:"timestamp"`
	Type       string `json:"type"`
	EventID    string `json:"event_id"`
	Entity     string `json:"entity"`
	Action     string `json:"action"`
	RuleID     string `json:"rule_id"`
	Evidence   string `json:"evidence"`
	SourceRef  string `json:"source_ref"`
	RulesHash  string `json:"rules_hash,omitempty"`
	BurstCount int    `json:"burst_count,omitempty"`
}
