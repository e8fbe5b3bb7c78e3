package audit

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/ppiankov/signalgate/internal/model"
)

func newTestLog(t *testing.T) (*Log, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "audit", FileName)
	l, err := Open(path)
	if err != nil {
		t.Fatalf("failed to open audit log: %v", err)
	}
	return l, path
}

func testRecord(action model.Action) model.InterruptRecord {
	return model.InterruptRecord{
		TS:         "2026-02-07T09:00:00Z",
		EventID:    "evt_1",
		Entity:     "Bitcoin",
		SignalType: model.SignalStructChange,
		RuleID:     model.RuleID,
		Evidence:   "q1=A q2=B q3=B",
		Action:     action,
		SourceRef:  "https://example.com/a",
		RulesHash:  "sha256:abc123",
	}
}

func TestSequentialWritesProduceValidChain(t *testing.T) {
	l, path := newTestLog(t)
	for i := 0; i < 5; i++ {
		if _, err := l.Record(testRecord(model.ActionSell)); err != nil {
			t.Fatalf("record %d: %v", i, err)
		}
	}
	l.Close()

	result := Verify(path)
	if !result.Valid {
		t.Fatalf("expected valid chain, got error at line %d: %s", result.ErrorLine, result.Error)
	}
	if result.Lines != 5 {
		t.Fatalf("expected 5 lines, got %d", result.Lines)
	}
}

func TestRecordKeepsOriginalFields(t *testing.T) {
	l, path := newTestLog(t)
	rec := testRecord(model.ActionReduce)
	rec.TS = ""
	stored, err := l.Record(rec)
	if err != nil {
		t.Fatal(err)
	}
	l.Close()

	if stored.TS == "" {
		t.Error("expected ts to be filled")
	}
	data, _ := os.ReadFile(path)
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		t.Fatal(err)
	}
	for _, k := range []string{"ts", "event_id", "entity", "signal_type", "rule_id", "evidence", "action", "deadline", "source_ref", "prev_hash"} {
		if _, ok := m[k]; !ok {
			t.Errorf("missing field %q in %s", k, data)
		}
	}
	if m["deadline"] != "" {
		t.Errorf("expected empty deadline, got %v", m["deadline"])
	}
}

func TestVerifyDetectsTamperedEntry(t *testing.T) {
	l, path := newTestLog(t)
	for i := 0; i < 3; i++ {
		l.Record(testRecord(model.ActionSell))
	}
	l.Close()

	data, _ := os.ReadFile(path)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	lines[1] = strings.Replace(lines[1], `"SELL"`, `"BUY"`, 1)
	os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o644)

	result := Verify(path)
	if result.Valid {
		t.Fatal("expected tampered chain to be invalid")
	}
	if result.ErrorLine != 3 {
		t.Fatalf("expected error at line 3, got line %d", result.ErrorLine)
	}
}

func TestVerifyDetectsDeletedEntry(t *testing.T) {
	l, path := newTestLog(t)
	for i := 0; i < 3; i++ {
		l.Record(testRecord(model.ActionSell))
	}
	l.Close()

	data, _ := os.ReadFile(path)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	os.WriteFile(path, []byte(lines[0]+"\n"+lines[2]+"\n"), 0o644)

	result := Verify(path)
	if result.Valid {
		t.Fatal("expected chain with deleted entry to be invalid")
	}
	if result.ErrorLine != 2 {
		t.Fatalf("expected error at line 2, got line %d", result.ErrorLine)
	}
}

func TestVerifyDetectsInsertedEntry(t *testing.T) {
	l, path := newTestLog(t)
	for i := 0; i < 3; i++ {
		l.Record(testRecord(model.ActionSell))
	}
	l.Close()

	data, _ := os.ReadFile(path)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	fake := testRecord(model.ActionBuy)
	fake.PrevHash = "sha256:fake"
	fakeJSON, _ := json.Marshal(fake)
	inserted := []string{lines[0], string(fakeJSON), lines[1], lines[2]}
	os.WriteFile(path, []byte(strings.Join(inserted, "\n")+"\n"), 0o644)

	if Verify(path).Valid {
		t.Fatal("expected chain with inserted entry to be invalid")
	}
}

func TestVerifyLegacyRecordWithoutChain(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)
	os.WriteFile(path, []byte(`{"ts":"2026-02-07T00:00:00+00:00","event_id":"x","entity":"UNKNOWN","signal_type":"STRUCT_CHANGE","rule_id":"rule_v0_1","evidence":"q1=A q2=B q3=B","action":"DO_NOTHING","deadline":"","source_ref":""}`+"\n"), 0o644)

	result := Verify(path)
	if result.Valid || result.ErrorLine != 1 {
		t.Fatalf("expected failure at line 1, got %+v", result)
	}
}

func TestEmptyAndMissingLogPassVerification(t *testing.T) {
	dir := t.TempDir()
	empty := filepath.Join(dir, "empty.jsonl")
	os.WriteFile(empty, []byte{}, 0o644)

	for _, p := range []string{empty, filepath.Join(dir, "missing.jsonl")} {
		result := Verify(p)
		if !result.Valid || result.Lines != 0 {
			t.Fatalf("%s: expected valid empty chain, got %+v", p, result)
		}
	}
}

func TestConcurrentWritesSerializeCorrectly(t *testing.T) {
	l, path := newTestLog(t)

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			l.Record(testRecord(model.ActionSell))
		}()
	}
	wg.Wait()
	l.Close()

	result := Verify(path)
	if !result.Valid {
		t.Fatalf("expected valid chain after concurrent writes, got error at line %d: %s", result.ErrorLine, result.Error)
	}
	if result.Lines != 100 {
		t.Fatalf("expected 100 lines, got %d", result.Lines)
	}
}

func TestConcurrentAppendAcrossHandles(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := Append(path, testRecord(model.ActionBuy)); err != nil {
				t.Errorf("append: %v", err)
			}
		}()
	}
	wg.Wait()

	result := Verify(path)
	if !result.Valid || result.Lines != 20 {
		t.Fatalf("expected 20-line valid chain, got %+v", result)
	}
}

func TestGenesisHashIsCorrect(t *testing.T) {
	l, path := newTestLog(t)
	l.Record(testRecord(model.ActionSell))
	l.Close()

	data, _ := os.ReadFile(path)
	var rec model.InterruptRecord
	json.Unmarshal([]byte(strings.TrimSpace(string(data))), &rec)

	if rec.PrevHash != GenesisHash {
		t.Fatalf("expected genesis hash %s, got %s", GenesisHash, rec.PrevHash)
	}
}

func TestHashLineIsDeterministic(t *testing.T) {
	line := []byte(`{"ts":"2026-02-07T09:00:00Z","event_id":"e","prev_hash":"sha256:def"}`)
	h1 := HashLine(line)
	h2 := HashLine(line)
	if h1 != h2 {
		t.Fatalf("expected same hash, got %s and %s", h1, h2)
	}
	if !strings.HasPrefix(h1, "sha256:") || len(h1) != 7+64 {
		t.Fatalf("unexpected hash format %s", h1)
	}
}

func TestOpenExistingLogContinuesChain(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)

	l1, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 3; i++ {
		l1.Record(testRecord(model.ActionSell))
	}
	l1.Close()

	l2, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 2; i++ {
		l2.Record(testRecord(model.ActionBuy))
	}
	l2.Close()

	result := Verify(path)
	if !result.Valid {
		t.Fatalf("expected valid chain after reopen, got error at line %d: %s", result.ErrorLine, result.Error)
	}
	if result.Lines != 5 {
		t.Fatalf("expected 5 lines, got %d", result.Lines)
	}
}
