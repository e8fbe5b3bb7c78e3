package audit

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/ppiankov/signalgate/internal/model"
)

const separator = "──────────────────────────────────────────────────────────────────"

// FormatTimeline renders records as a text table with an action summary.
func FormatTimeline(records []model.InterruptRecord) string {
	if len(records) == 0 {
		return "No interrupts.\n"
	}

	var b strings.Builder
	b.WriteString(separator + "\n")
	summary := ReportSummary{ByAction: map[string]int{}}
	for _, r := range records {
		fmt.Fprintf(&b, "%-20s %-24s %-10s %-17s %s\n",
			formatTime(r.TS),
			truncate(r.Entity, 24),
			r.Action,
			r.Evidence,
			truncate(r.SourceRef, 48))
		updateSummary(&summary, r)
	}
	b.WriteString(separator + "\n")
	b.WriteString(formatSummary(summary))
	return b.String()
}

// FormatJSON renders v as indented JSON.
func FormatJSON(v any) (string, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal audit report: %w", err)
	}
	return string(data), nil
}

func formatTime(ts string) string {
	t, ok := model.ParseTS(ts)
	if !ok {
		return ts
	}
	return t.Format("2006-01-02 15:04:05")
}

func formatSummary(s ReportSummary) string {
	actions := make([]string, 0, len(s.ByAction))
	for a := range s.ByAction {
		actions = append(actions, a)
	}
	sort.Strings(actions)

	parts := make([]string, 0, len(actions))
	for _, a := range actions {
		parts = append(parts, fmt.Sprintf("%d %s", s.ByAction[a], a))
	}
	return fmt.Sprintf("Summary: %d interrupts | %s\n", s.Total, strings.Join(parts, ", "))
}

func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max-3]) + "..."
}
