package audit

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/ppiankov/signalgate/internal/model"
)

// Count returns the number of lines in the log. exists is false when the log
// has never been written.
func Count(path string) (n int, exists bool, err error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("audit: open: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		n++
	}
	if err := scanner.Err(); err != nil {
		return 0, true, fmt.Errorf("audit: scan: %w", err)
	}
	return n, true, nil
}

// Summary renders the audit command output.
func Summary(path string) (string, error) {
	n, exists, err := Count(path)
	if err != nil {
		return "", err
	}
	if !exists {
		return "No interrupts.", nil
	}
	return fmt.Sprintf("Interrupt count: %d", n), nil
}

// Filter selects records for Query. Zero fields match everything.
type Filter struct {
	Entity string
	Action model.Action
	From   time.Time
	To     time.Time
}

// Report holds filtered records and per-action counts.
type Report struct {
	Records []model.InterruptRecord `json:"records"`
	Summary ReportSummary           `json:"summary"`
}

// ReportSummary counts records by action.
type ReportSummary struct {
	Total          int            `json:"total"`
	ByAction       map[string]int `json:"by_action"`
	FirstTimestamp string         `json:"first_timestamp"`
	LastTimestamp  string         `json:"last_timestamp"`
}

// Query reads the log and returns records matching filter. Malformed lines
// are skipped.
func Query(path string, filter Filter) (*Report, error) {
	records, err := readAll(path)
	if err != nil {
		return nil, err
	}

	report := &Report{Summary: ReportSummary{ByAction: map[string]int{}}}
	for _, rec := range records {
		if filter.Entity != "" && !strings.EqualFold(rec.Entity, filter.Entity) {
			continue
		}
		if filter.Action != "" && !strings.EqualFold(string(rec.Action), string(filter.Action)) {
			continue
		}
		if !filter.From.IsZero() || !filter.To.IsZero() {
			ts, ok := model.ParseTS(rec.TS)
			if !ok {
				continue
			}
			if !filter.From.IsZero() && ts.Before(filter.From) {
				continue
			}
			if !filter.To.IsZero() && ts.After(filter.To) {
				continue
			}
		}
		report.Records = append(report.Records, rec)
		updateSummary(&report.Summary, rec)
	}
	return report, nil
}

// Tail returns the last n records, oldest first. n <= 0 returns all.
func Tail(path string, n int) ([]model.InterruptRecord, error) {
	records, err := readAll(path)
	if err != nil {
		return nil, err
	}
	if n > 0 && len(records) > n {
		records = records[len(records)-n:]
	}
	return records, nil
}

func readAll(path string) ([]model.InterruptRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("open audit log: %w", err)
	}
	defer f.Close()

	var records []model.InterruptRecord
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var rec model.InterruptRecord
		if err := json.Unmarshal(line, &rec); err != nil {
			continue
		}
		records = append(records, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read audit log: %w", err)
	}
	return records, nil
}

func updateSummary(s *ReportSummary, rec model.InterruptRecord) {
	s.Total++
	s.ByAction[string(rec.Action)]++
	if s.FirstTimestamp == "" {
		s.FirstTimestamp = rec.TS
	}
	s.LastTimestamp = rec.TS
}
