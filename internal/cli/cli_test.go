package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/scribo/internal/config"
	"github.com/mesh-intelligence/scribo/internal/journal"
	"github.com/mesh-intelligence/scribo/internal/proposal"
	"github.com/mesh-intelligence/scribo/pkg/types"
)

type env struct {
	configDir string
	inbox     string
	dataDir   string
}

// newEnv points HOME and the XDG directories at a temp tree and clears
// SCRIBO_* overrides so the developer's environment cannot leak in.
func newEnv(t *testing.T) *env {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(home, ".config"))
	t.Setenv("XDG_DATA_HOME", filepath.Join(home, ".local", "share"))
	for _, k := range []string{"SCRIBO_INBOX_DIR", "SCRIBO_DATA_DIR", "SCRIBO_CONFIG_DIR", "SCRIBO_LOG_CONSOLE"} {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
	return &env{
		configDir: filepath.Join(home, "cfg"),
		inbox:     filepath.Join(home, "inbox"),
		dataDir:   filepath.Join(home, "data"),
	}
}

func (e *env) args(args ...string) []string {
	return append([]string{"--config-dir", e.configDir, "--inbox", e.inbox, "--data-dir", e.dataDir}, args...)
}

// execute runs the CLI and returns stdout, stderr, and the exit code.
func execute(t *testing.T, ctx context.Context, args ...string) (string, string, int) {
	t.Helper()
	root := NewRootCmd()
	var stdout, stderr bytes.Buffer
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	if ctx != nil {
		root.SetContext(ctx)
	}
	code := run(root, args, &stderr)
	return stdout.String(), stderr.String(), code
}

func TestVersion(t *testing.T) {
	out, _, code := execute(t, nil, "version")
	assert.Equal(t, exitSuccess, code)
	assert.Equal(t, "scribo v"+Version+"\nmodule: "+modulePath+"\n", out)
}

func TestUsageErrors(t *testing.T) {
	_, stderr, code := execute(t, nil, "no-such-command")
	assert.Equal(t, exitUserError, code)
	assert.Contains(t, stderr, "Error:")

	_, _, code = execute(t, nil, "compare", "only-one")
	assert.Equal(t, exitUserError, code)
}

func TestInit_CreatesLayout(t *testing.T) {
	e := newEnv(t)

	out, stderr, code := execute(t, nil, e.args("init")...)
	require.Equal(t, exitSuccess, code, stderr)
	assert.Contains(t, out, "scribo initialized successfully")

	assert.FileExists(t, filepath.Join(e.configDir, config.FileName))
	assert.DirExists(t, e.inbox)
	assert.DirExists(t, filepath.Join(e.inbox, "quarantine"))
	assert.FileExists(t, filepath.Join(e.dataDir, journal.DatabaseFile))

	_, stderr, code = execute(t, nil, e.args("init")...)
	assert.Equal(t, exitSuccess, code, "init is idempotent: %s", stderr)
}

func TestInit_InvalidConfigIsUserError(t *testing.T) {
	e := newEnv(t)
	require.NoError(t, os.MkdirAll(e.configDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(e.configDir, config.FileName), []byte("watch:\n  mode: carrier-pigeon\n"), 0o644))

	_, stderr, code := execute(t, nil, e.args("init")...)
	assert.Equal(t, exitUserError, code)
	assert.Contains(t, stderr, types.ErrWatchModeUnknown.Error())
}

func TestCompare_WritesProposal(t *testing.T) {
	e := newEnv(t)
	work := t.TempDir()
	orig := filepath.Join(work, "app.py")
	rev := filepath.Join(work, "app.new.py")
	require.NoError(t, os.WriteFile(orig, []byte("x = 1\n"), 0o644))
	require.NoError(t, os.WriteFile(rev, []byte("x = 2\n"), 0o644))

	out, stderr, code := execute(t, nil, e.args("compare", orig, rev)...)
	require.Equal(t, exitSuccess, code, stderr)

	path := strings.TrimSpace(out)
	assert.Equal(t, e.inbox, filepath.Dir(path))
	assert.True(t, strings.HasSuffix(path, "-app.patch"), path)

	p, err := proposal.Read(path)
	require.NoError(t, err)
	assert.Equal(t, orig, p.Target)
	assert.Contains(t, string(p.Body), "-x = 1\n+x = 2\n")
}

func TestCompare_IdenticalAndSameFile(t *testing.T) {
	e := newEnv(t)
	work := t.TempDir()
	a := filepath.Join(work, "a.txt")
	b := filepath.Join(work, "b.txt")
	require.NoError(t, os.WriteFile(a, []byte("same\n"), 0o644))
	require.NoError(t, os.WriteFile(b, []byte("same\n"), 0o644))

	out, _, code := execute(t, nil, e.args("compare", a, b)...)
	assert.Equal(t, exitSuccess, code)
	assert.Contains(t, out, "No differences")
	assert.NoDirExists(t, e.inbox)

	_, _, code = execute(t, nil, e.args("compare", a, a)...)
	assert.Equal(t, exitUserError, code)

	_, _, code = execute(t, nil, e.args("compare", a, filepath.Join(work, "missing.txt"))...)
	assert.Equal(t, exitUserError, code)
}

func record(t *testing.T, dataDir string, outcomes ...types.Outcome) {
	t.Helper()
	j := journal.New()
	require.NoError(t, j.Attach(dataDir))
	defer j.Detach()
	for _, o := range outcomes {
		require.NoError(t, j.Record(o))
	}
}

func TestHistory(t *testing.T) {
	e := newEnv(t)

	out, stderr, code := execute(t, nil, e.args("history")...)
	require.Equal(t, exitSuccess, code, stderr)
	assert.Contains(t, out, "No outcomes recorded.")

	at := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	target := filepath.Join(t.TempDir(), "app.py")
	record(t, e.dataDir,
		types.Outcome{OutcomeID: uuid.NewString(), Proposal: "1.patch", Target: target,
			State: types.StateCommitted, StartedAt: at, FinishedAt: at.Add(time.Second)},
		types.Outcome{OutcomeID: uuid.NewString(), Proposal: "2.patch", Target: "/elsewhere/b.py",
			State: types.StateRevertedQuarantined, Fault: types.FaultTestFailure,
			StartedAt: at.Add(time.Minute), FinishedAt: at.Add(time.Minute + time.Second)},
	)

	out, stderr, code = execute(t, nil, e.args("history")...)
	require.Equal(t, exitSuccess, code, stderr)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 6)
	assert.True(t, strings.HasPrefix(lines[0], "FINISHED"))
	assert.Contains(t, lines[2], "2.patch")
	assert.Contains(t, lines[2], string(types.FaultTestFailure))
	assert.Contains(t, lines[3], "1.patch")
	assert.Equal(t, "Total: 2 outcome(s)", lines[4])
	assert.Equal(t, "All time: committed=1 reverted_quarantined=1", lines[5])

	out, _, code = execute(t, nil, e.args("history", "--json", "--limit", "1")...)
	require.Equal(t, exitSuccess, code)
	var got []types.Outcome
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	require.Len(t, got, 1)
	assert.Equal(t, "2.patch", got[0].Proposal)

	out, _, code = execute(t, nil, e.args("history", "--json", "--target", target)...)
	require.Equal(t, exitSuccess, code)
	got = nil
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	require.Len(t, got, 1)
	assert.Equal(t, "1.patch", got[0].Proposal)
}

func TestHistory_DoesNotTouchJournalFiles(t *testing.T) {
	e := newEnv(t)

	_, _, code := execute(t, nil, e.args("history")...)
	require.Equal(t, exitSuccess, code)
	assert.NoDirExists(t, e.dataDir)
}

func TestRoot_RunsDaemonUntilCancelled(t *testing.T) {
	e := newEnv(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, stderr, code := execute(t, ctx, e.args()...)
	require.Equal(t, exitSuccess, code, stderr)
	assert.DirExists(t, filepath.Join(e.inbox, "quarantine"))
	assert.FileExists(t, filepath.Join(e.inbox, "scribo.log"))
}

func TestRoot_RejectsArguments(t *testing.T) {
	e := newEnv(t)
	_, _, code := execute(t, nil, e.args("stray")...)
	assert.Equal(t, exitUserError, code)
}
