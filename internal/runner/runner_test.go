package runner

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestRunner(t *testing.T, timeout time.Duration, tools ...Tool) *Runner {
	t.Helper()
	registry := NewRegistry(zap.NewNop())
	for _, tool := range tools {
		registry.Register(tool)
	}
	return New(registry, timeout, zap.NewNop())
}

func TestExecuteCapturesStdout(t *testing.T) {
	r := newTestRunner(t, 0, Tool{
		Name:    "echo-scan",
		Command: "sh",
		Args:    []string{"-c", `echo '{"runs":[]}'`},
	})
	outcome := r.Execute(context.Background(), "echo-scan", "/tmp/project")
	require.True(t, outcome.OK, "outcome error: %s", outcome.Error)
	require.Equal(t, 0, outcome.ExitCode)
	require.JSONEq(t, `{"runs":[]}`, string(outcome.Output))
	require.Greater(t, outcome.DurationSeconds, 0.0)
}

func TestExecuteTreatsExitCodeOneAsSuccess(t *testing.T) {
	r := newTestRunner(t, 0, Tool{
		Name:    "findings-scan",
		Command: "sh",
		Args:    []string{"-c", "echo found; exit 1"},
	})
	outcome := r.Execute(context.Background(), "findings-scan", ".")
	require.True(t, outcome.OK)
	require.Equal(t, 1, outcome.ExitCode)
}

func TestExecuteFailsOnOtherExitCodes(t *testing.T) {
	r := newTestRunner(t, 0, Tool{
		Name:    "broken-scan",
		Command: "sh",
		Args:    []string{"-c", "echo boom >&2; exit 2"},
	})
	outcome := r.Execute(context.Background(), "broken-scan", ".")
	require.False(t, outcome.OK)
	require.Equal(t, 2, outcome.ExitCode)
	require.Contains(t, outcome.Error, "exited with code 2")
	require.Contains(t, outcome.Error, "boom")
}

func TestExecuteTimesOut(t *testing.T) {
	r := newTestRunner(t, 50*time.Millisecond, Tool{
		Name:    "slow-scan",
		Command: "sleep",
		Args:    []string{"10"},
	})
	outcome := r.Execute(context.Background(), "slow-scan", ".")
	require.False(t, outcome.OK)
	require.Contains(t, outcome.Error, "timed out")
}

func TestExecuteUnknownToolListsAvailable(t *testing.T) {
	r := newTestRunner(t, 0, Tool{Name: "semgrep", Command: "true"}, Tool{Name: "cppcheck", Command: "true"})
	outcome := r.Execute(context.Background(), "nonexistent", ".")
	require.False(t, outcome.OK)
	require.Contains(t, outcome.Error, "not registered")
	require.Contains(t, outcome.Error, "cppcheck, semgrep")
}

func TestExecuteReadsOutputFile(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "report.json")
	r := newTestRunner(t, 0, Tool{
		Name:       "file-scan",
		Command:    "sh",
		Args:       []string{"-c", "echo '[]' > " + out},
		OutputFile: out,
	})
	outcome := r.Execute(context.Background(), "file-scan", ".")
	require.True(t, outcome.OK, "outcome error: %s", outcome.Error)
	require.Equal(t, "[]\n", string(outcome.Output))
}

func TestExecuteMissingOutputFileFails(t *testing.T) {
	r := newTestRunner(t, 0, Tool{
		Name:       "no-output-scan",
		Command:    "true",
		OutputFile: filepath.Join(t.TempDir(), "never_written.json"),
	})
	outcome := r.Execute(context.Background(), "no-output-scan", ".")
	require.False(t, outcome.OK)
	require.Contains(t, outcome.Error, "output missing")
}

func TestExecuteExpandsProjectPlaceholder(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "target.txt"), []byte("x"), 0o644))
	r := newTestRunner(t, 0, Tool{
		Name:    "ls-scan",
		Command: "ls",
		Args:    []string{"{project}"},
	})
	outcome := r.Execute(context.Background(), "ls-scan", dir)
	require.True(t, outcome.OK, "outcome error: %s", outcome.Error)
	require.True(t, strings.Contains(string(outcome.Output), "target.txt"))
}

func TestRegistryList(t *testing.T) {
	registry := NewRegistry(zap.NewNop())
	registry.Register(Tool{Name: "shellcheck"})
	registry.Register(Tool{Name: "cppcheck"})
	registry.Register(Tool{Name: "semgrep"})
	require.Equal(t, []string{"cppcheck", "semgrep", "shellcheck"}, registry.List())
	require.True(t, registry.Has("semgrep"))
	require.False(t, registry.Has("sonarqube"))
}
