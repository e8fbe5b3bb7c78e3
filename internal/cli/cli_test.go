package cli

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/signalgate/internal/config"
	"github.com/ppiankov/signalgate/internal/layout"
	"github.com/ppiankov/signalgate/internal/notify"
)

const testBets = `
bets:
  direct:
    - id: btc
      name: Bitcoin
      tags: [crypto]
  force:
    - account_safety
`

const interruptEvent = `{"event_id":"evt-1","title":"Bitcoin custody rule change",
"url":"https://example.com/1","source":"example.com","source_tier":"A",
"tags":["structural","action_required","sell"]}`

// resetFlags restores every flag to its default so commands can be executed
// repeatedly in one process.
func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, c := range cmd.Commands() {
		resetFlags(c)
	}
}

func execute(t *testing.T, root string, args ...string) (string, error) {
	t.Helper()
	resetFlags(rootCmd)
	var out, errOut bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&errOut)
	rootCmd.SetArgs(append([]string{"--root", root}, args...))
	err := rootCmd.Execute()
	return out.String(), err
}

func newProject(t *testing.T) (string, layout.Paths) {
	t.Helper()
	root := t.TempDir()
	p := layout.New(root)
	require.NoError(t, os.MkdirAll(p.ConfigDir(), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(p.ConfigDir(), config.BetsFile), []byte(testBets), 0o600))
	return root, p
}

func writeEvent(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestInitWritesDefaults(t *testing.T) {
	root := t.TempDir()
	p := layout.New(root)

	out, err := execute(t, root, "init")
	require.NoError(t, err)
	assert.Contains(t, out, "Created:")

	data, err := os.ReadFile(filepath.Join(p.ConfigDir(), config.RulesFile))
	require.NoError(t, err)
	assert.Contains(t, string(data), "burst_limit: 2")
	assert.FileExists(t, filepath.Join(p.ConfigDir(), config.BetsFile))
	assert.DirExists(t, p.ColdDir())
	assert.DirExists(t, p.InboxDir())
}

func TestInitKeepsExistingWithoutForce(t *testing.T) {
	root, p := newProject(t)
	betsPath := filepath.Join(p.ConfigDir(), config.BetsFile)

	_, err := execute(t, root, "init")
	require.NoError(t, err)
	data, _ := os.ReadFile(betsPath)
	assert.Equal(t, testBets, string(data))

	_, err = execute(t, root, "init", "--force")
	require.NoError(t, err)
	data, _ = os.ReadFile(betsPath)
	assert.Equal(t, config.DefaultBetsYAML(), string(data))
}

func TestRunDryRunPrintsPreviewAndWritesNothing(t *testing.T) {
	root, p := newProject(t)
	input := writeEvent(t, t.TempDir(), "evt-1.json", interruptEvent)

	out, err := execute(t, root, "run", "--input", input, "--dry-run")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "[DRYRUN] Bitcoin INTERRUPT\n"), out)
	assert.True(t, strings.HasSuffix(out, "Tags: structural,action_required,sell\n"), out)
	assert.NoDirExists(t, p.DataDir())
}

func TestRunFiresThenGateSilences(t *testing.T) {
	root, p := newProject(t)
	input := writeEvent(t, t.TempDir(), "evt-1.json", interruptEvent)

	for i := 0; i < 2; i++ {
		out, err := execute(t, root, "run", "--input", input)
		require.NoError(t, err)
		assert.Equal(t, "[INTERRUPT] Bitcoin STRUCT_CHANGE\n"+
			"Rule: rule_v0_1\n"+
			"Evidence: q1=A q2=B q3=B\n"+
			"Action: SELL | Deadline: None\n"+
			"Source: https://example.com/1\n", out)
	}

	out, err := execute(t, root, "run", "--input", input)
	require.NoError(t, err)
	assert.Empty(t, out, "tripped gate is silent")
	assert.FileExists(t, filepath.Join(p.ColdDir(), "evt-1.json"))

	out, err = execute(t, root, "audit")
	require.NoError(t, err)
	assert.Equal(t, "Interrupt count: 2\n", out)

	out, err = execute(t, root, "audit", "verify")
	require.NoError(t, err)
	assert.Equal(t, "OK: 2 entries verified\n", out)

	out, err = execute(t, root, "gate", "status")
	require.NoError(t, err)
	assert.Contains(t, out, `"tripped": true`)

	out, err = execute(t, root, "reset-gate")
	require.NoError(t, err)
	assert.Equal(t, "OK: gate reset.\n", out)

	out, err = execute(t, root, "gate", "status")
	require.NoError(t, err)
	assert.Contains(t, out, `"tripped": false`)
	assert.Contains(t, out, `"burst_count": 0`)
}

func TestRunTentativeIsSilent(t *testing.T) {
	root, p := newProject(t)
	input := writeEvent(t, t.TempDir(), "t1.json", `{"event_id":"t1","source":"blog","tags":["tax"],"source_tier":"C"}`)

	out, err := execute(t, root, "run", "--input", input)
	require.NoError(t, err)
	assert.Empty(t, out)
	assert.FileExists(t, filepath.Join(p.TentativeDir(), "t1.json"))
	assert.NoFileExists(t, filepath.Join(p.ColdDir(), "t1.json"))
}

func TestRunMalformedEventFails(t *testing.T) {
	root, _ := newProject(t)
	input := writeEvent(t, t.TempDir(), "bad.json", `{"event_id":`)

	_, err := execute(t, root, "run", "--input", input)
	assert.Error(t, err)
}

func TestRunRequiresInput(t *testing.T) {
	root, _ := newProject(t)
	_, err := execute(t, root, "run")
	assert.Error(t, err)
}

func TestAuditWithoutLog(t *testing.T) {
	root, _ := newProject(t)
	out, err := execute(t, root, "audit")
	require.NoError(t, err)
	assert.Equal(t, "No interrupts.\n", out)

	out, err = execute(t, root, "audit", "tail", "--json")
	require.NoError(t, err)
	assert.Equal(t, "[]\n", out)
}

func TestAuditTailAndReport(t *testing.T) {
	root, _ := newProject(t)
	input := writeEvent(t, t.TempDir(), "evt-1.json", interruptEvent)
	_, err := execute(t, root, "run", "--input", input)
	require.NoError(t, err)

	out, err := execute(t, root, "audit", "tail", "-n", "5")
	require.NoError(t, err)
	assert.Contains(t, out, "Bitcoin")
	assert.Contains(t, out, "Summary: 1 interrupts")

	out, err = execute(t, root, "audit", "report", "--action", "sell", "--json")
	require.NoError(t, err)
	assert.Contains(t, out, `"total": 1`)

	out, err = execute(t, root, "audit", "report", "--entity", "Ethereum")
	require.NoError(t, err)
	assert.Equal(t, "No interrupts.\n", out)
}

func TestIngestIsIdempotent(t *testing.T) {
	root, p := newProject(t)
	dir := t.TempDir()
	writeEvent(t, dir, "a.json", `{"event_id":"a","tags":["x"]}`)
	writeEvent(t, dir, "b.json", `{"id":"b"}`)
	writeEvent(t, dir, "notes.txt", `ignored`)

	for i := 0; i < 2; i++ {
		out, err := execute(t, root, "ingest", "--input", dir, "--print-count")
		require.NoError(t, err)
		assert.Equal(t, "Ingested: 2\n", out)
	}
	entries, err := os.ReadDir(p.ColdDir())
	require.NoError(t, err)
	assert.Len(t, entries, 2)

	out, err := execute(t, root, "ingest", "--input", dir)
	require.NoError(t, err)
	assert.Empty(t, out, "count is opt-in")
}

const testRSS = `<?xml version="1.0"?>
<rss version="2.0"><channel>
<item><title>One</title><link>https://example.com/1</link><pubDate>Sat, 07 Feb 2026 10:00:00 +0000</pubDate></item>
<item><title>Two</title><link>https://example.com/2</link></item>
<item><title>Three</title><link>https://example.com/3</link></item>
</channel></rss>`

func TestFetchWritesInbox(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		fmt.Fprint(w, testRSS)
	}))
	defer srv.Close()

	root, p := newProject(t)
	out, err := execute(t, root, "fetch", "--url", srv.URL, "--limit", "2", "--print-count")
	require.NoError(t, err)
	assert.Equal(t, "Fetched: 2\n", out)

	entries, err := os.ReadDir(p.InboxDir())
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestFetchHTTPErrorFails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	root, _ := newProject(t)
	_, err := execute(t, root, "fetch", "--url", srv.URL)
	assert.Error(t, err)
}

func TestNotify(t *testing.T) {
	var got string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		got = r.PostForm.Get("pushkey") + "|" + r.PostForm.Get("text")
	}))
	defer srv.Close()

	root, _ := newProject(t)
	t.Setenv(notify.EnvKey, "")
	out, err := execute(t, root, "notify", "--text", "hello", "--pushkey", "k1", "--url", srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "OK: pushed.\n", out)
	assert.Equal(t, "k1|hello", got)
}

func TestNotifyMissingKey(t *testing.T) {
	root, _ := newProject(t)
	t.Setenv(notify.EnvKey, "")
	_, err := execute(t, root, "notify", "--text", "hello", "--url", "http://127.0.0.1:1")
	assert.True(t, errors.Is(err, notify.ErrMissingKey), "got %v", err)
}

func TestMetricsTextfile(t *testing.T) {
	root, _ := newProject(t)
	input := writeEvent(t, t.TempDir(), "evt-1.json", interruptEvent)
	path := filepath.Join(t.TempDir(), "signalgate.prom")

	_, err := execute(t, root, "--metrics-textfile", path, "run", "--input", input)
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "signalgate_interrupts_fired_total 1")
	assert.Contains(t, string(data), `signalgate_events_total{state="interrupt"} 1`)
}

func TestVersion(t *testing.T) {
	out, err := execute(t, t.TempDir(), "version")
	require.NoError(t, err)
	assert.Contains(t, out, `"name": "signalgate"`)
}
