package pipeline

import (
	"fmt"
	"strings"

	"github.com/ppiankov/signalgate/internal/model"
)

// FormatInterrupt renders the interrupt message. The template is frozen:
// no adjectives, no predictions.
func FormatInterrupt(rec model.InterruptRecord) string {
	return fmt.Sprintf("[INTERRUPT] %s %s\nRule: %s\nEvidence: %s\nAction: %s | Deadline: %s\nSource: %s\n",
		rec.Entity,
		rec.SignalType,
		rec.RuleID,
		rec.Evidence,
		rec.Action,
		orNone(rec.Deadline),
		orNone(rec.SourceRef),
	)
}

// FormatDryRun renders the dry-run preview.
func FormatDryRun(ev model.Event, d model.Decision, entity string, action model.Action) string {
	return strings.Join([]string{
		fmt.Sprintf("[DRYRUN] %s %s", entity, strings.ToUpper(string(d.State))),
		"Rule: " + model.RuleID,
		"Evidence: " + d.EvidenceSummary(),
		"Action: " + string(action),
		"Source: " + ev.SourceRef(),
		"Event: " + ev.EventID,
		"Tags: " + strings.Join(ev.Tags, ","),
	}, "\n")
}

func orNone(s string) string {
	if s == "" {
		return "None"
	}
	return s
}
