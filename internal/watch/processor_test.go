package watch

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/signalgate/internal/config"
	"github.com/ppiankov/signalgate/internal/layout"
	"github.com/ppiankov/signalgate/internal/logging"
	"github.com/ppiankov/signalgate/internal/pipeline"
)

const testBets = `
bets:
  direct:
    - id: btc
      name: Bitcoin
`

const interruptJSON = `{"event_id":"w1","ts":"2026-02-07T11:00:00Z","title":"Bitcoin rule change",
"url":"https://example.com/w1","source":"example.com","source_tier":"A",
"tags":["structural","action_required"]}`

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func newProcessor(t *testing.T) (*Processor, *syncBuffer) {
	t.Helper()
	p := layout.New(t.TempDir())
	require.NoError(t, os.MkdirAll(p.ConfigDir(), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(p.ConfigDir(), config.BetsFile), []byte(testBets), 0o600))

	r, err := pipeline.Open(p, nil, logging.Discard())
	require.NoError(t, err)
	r.Now = func() time.Time { return time.Date(2026, 2, 7, 12, 0, 0, 0, time.UTC) }

	out := &syncBuffer{}
	return &Processor{Runner: r, Paths: p, Out: out, Logger: logging.Discard()}, out
}

func TestProcessorHandleMovesToProcessed(t *testing.T) {
	proc, out := newProcessor(t)
	require.NoError(t, os.MkdirAll(proc.Paths.InboxDir(), 0o755))
	path := filepath.Join(proc.Paths.InboxDir(), "w1.json")
	require.NoError(t, os.WriteFile(path, []byte(interruptJSON), 0o600))

	var runs int
	proc.AfterRun = func() { runs++ }
	proc.Handle(context.Background(), path)

	assert.NoFileExists(t, path)
	assert.FileExists(t, filepath.Join(proc.Paths.ProcessedDir(), "w1.json"))
	assert.FileExists(t, filepath.Join(proc.Paths.ColdDir(), "w1.json"))
	assert.Contains(t, out.String(), "[INTERRUPT] Bitcoin STRUCT_CHANGE\n")
	assert.Equal(t, 1, runs)
}

func TestProcessorHandleBadFileGoesToFailed(t *testing.T) {
	proc, out := newProcessor(t)
	require.NoError(t, os.MkdirAll(proc.Paths.InboxDir(), 0o755))
	path := filepath.Join(proc.Paths.InboxDir(), "broken.json")
	require.NoError(t, os.WriteFile(path, []byte(`{not json`), 0o600))

	proc.Handle(context.Background(), path)

	assert.NoFileExists(t, path)
	assert.FileExists(t, filepath.Join(proc.Paths.FailedDir(), "broken.json"))
	assert.Empty(t, out.String())
}

func TestProcessorServeScansExistingAndWatches(t *testing.T) {
	proc, out := newProcessor(t)
	inbox := proc.Paths.InboxDir()
	require.NoError(t, os.MkdirAll(inbox, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(inbox, "w1.json"), []byte(interruptJSON), 0o600))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- proc.Serve(ctx, false, 0) }()

	assert.Eventually(t, func() bool {
		_, err := os.Stat(filepath.Join(proc.Paths.ProcessedDir(), "w1.json"))
		return err == nil
	}, 2*time.Second, 20*time.Millisecond)
	time.Sleep(100 * time.Millisecond)

	dropFile(t, inbox, "cold1.json", `{"event_id":"cold1","source_tier":"A","tags":["misc"]}`)
	assert.Eventually(t, func() bool {
		_, err := os.Stat(filepath.Join(proc.Paths.ColdDir(), "cold1.json"))
		return err == nil
	}, 2*time.Second, 20*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
	assert.Contains(t, out.String(), "[INTERRUPT] Bitcoin")
}

func TestProcessorLoadBuildsRunnerPerFile(t *testing.T) {
	proc, _ := newProcessor(t)
	r := proc.Runner
	proc.Runner = nil
	var loads int
	proc.Load = func() (*pipeline.Runner, error) {
		loads++
		return r, nil
	}
	require.NoError(t, os.MkdirAll(proc.Paths.InboxDir(), 0o755))

	for _, name := range []string{"x1.json", "x2.json"} {
		path := filepath.Join(proc.Paths.InboxDir(), name)
		require.NoError(t, os.WriteFile(path, []byte(`{"source_tier":"A","tags":["misc"]}`), 0o600))
		proc.Handle(context.Background(), path)
	}
	assert.Equal(t, 2, loads)
	assert.FileExists(t, filepath.Join(proc.Paths.ColdDir(), "x1.json"))
	assert.FileExists(t, filepath.Join(proc.Paths.ProcessedDir(), "x2.json"))
}
