package alert

import (
	"encoding/json"
	"fmt"
)

// FormatPayload builds the webhook body for the given format.
func FormatPayload(format string, event AlertEvent) ([]byte, error) {
	switch format {
	case "slack":
		return formatSlack(event)
	case "pagerduty":
		return formatPagerDuty(event)
	default:
		return formatGeneric(event)
	}
}

func formatGeneric(event AlertEvent) ([]byte, error) {
	return json.Marshal(event)
}

func formatSlack(event AlertEvent) ([]byte, error) {
	header := fmt.Sprintf("[INTERRUPT] %s", event.Entity)
	if event.Type == EventGateTripped {
		header = "signalgate: circuit breaker tripped"
	}

	payload := map[string]any{
		"blocks": []any{
			map[string]any{
				"type": "header",
				"text": map[string]any{
					"type": "plain_text",
					"text": header,
				},
			},
			map[string]any{
				"type": "section",
				"fields": []any{
					map[string]any{"type": "mrkdwn", "text": fmt.Sprintf("*Action:* %s", event.Action)},
					map[string]any{"type": "mrkdwn", "text": fmt.Sprintf("*Evidence:* %s", event.Evidence)},
					map[string]any{"type": "mrkdwn", "text": fmt.Sprintf("*Rule:* %s", event.RuleID)},
					map[string]any{"type": "mrkdwn", "text": fmt.Sprintf("*Source:* %s", orNone(event.SourceRef))},
				},
			},
		},
	}
	return json.Marshal(payload)
}

func formatPagerDuty(event AlertEvent) ([]byte, error) {
	severity := "warning"
	if event.Type == EventGateTripped {
		severity = "critical"
	}

	payload := map[string]any{
		"event_action": "trigger",
		"payload": map[string]any{
			"summary":  fmt.Sprintf("signalgate %s: %s %s", event.Type, event.Entity, event.Action),
			"severity": severity,
			"source":   "signalgate",
			"custom_details": map[string]any{
				"event_id":    event.EventID,
				"entity":      event.Entity,
				"action":      event.Action,
				"evidence":    event.Evidence,
				"rule_id":     event.RuleID,
				"source_ref":  event.SourceRef,
				"burst_count": event.BurstCount,
			},
		},
	}
	return json.Marshal(payload)
}

func orNone(s string) string {
	if s == "" {
		return "None"
	}
	return s
}
