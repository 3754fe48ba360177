package regress

import (
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestCollector(t *testing.T) *PerfCollector {
	t.Helper()
	c := NewPerfCollector(filepath.Join(t.TempDir(), "metrics"), zap.NewNop())
	seq := 0
	c.newRunID = func() string {
		seq++
		return fmt.Sprintf("run-%d", seq)
	}
	return c
}

func TestStopTimerDerivesMetrics(t *testing.T) {
	c := newTestCollector(t)
	base := time.Date(2026, 8, 29, 10, 0, 0, 0, time.UTC)
	clock := base
	c.now = func() time.Time {
		current := clock
		clock = clock.Add(2 * time.Second)
		return current
	}

	timer := c.StartTimer("semgrep", "insecure-go")
	metrics, err := c.StopTimer(timer, 8, 40)
	require.NoError(t, err)
	require.Equal(t, "semgrep", metrics.Tool)
	require.Equal(t, "insecure-go", metrics.Project)
	require.Equal(t, "run-1", metrics.RunID)
	require.Greater(t, metrics.ExecutionTime, 0.0)
	require.Equal(t, float64(8)/metrics.ExecutionTime, metrics.IssuesPerSecond)
	require.Equal(t, 40, metrics.FilesScanned)
}

func TestRecordAndLoadHistoryFilters(t *testing.T) {
	c := newTestCollector(t)
	_, err := c.Record("semgrep", "proj-a", 10, 5)
	require.NoError(t, err)
	_, err = c.Record("cppcheck", "proj-a", 20, 2)
	require.NoError(t, err)
	_, err = c.Record("semgrep", "proj-b", 30, 1)
	require.NoError(t, err)

	all, err := c.LoadHistory("", "")
	require.NoError(t, err)
	require.Len(t, all, 3)

	semgrepOnly, err := c.LoadHistory("semgrep", "")
	require.NoError(t, err)
	require.Len(t, semgrepOnly, 2)

	pair, err := c.LoadHistory("semgrep", "proj-b")
	require.NoError(t, err)
	require.Len(t, pair, 1)
	require.Equal(t, 30.0, pair[0].ExecutionTime)
}

func TestLoadHistoryMissingFileIsEmpty(t *testing.T) {
	c := newTestCollector(t)
	history, err := c.LoadHistory("", "")
	require.NoError(t, err)
	require.Empty(t, history)
}

func TestCalculateTrends(t *testing.T) {
	c := newTestCollector(t)
	stamp := time.Date(2026, 8, 29, 10, 0, 0, 0, time.UTC)
	c.now = func() time.Time {
		stamp = stamp.Add(time.Minute)
		return stamp
	}

	_, err := c.Record("semgrep", "proj-a", 100, 10)
	require.NoError(t, err)
	_, err = c.Record("semgrep", "proj-a", 80, 10)
	require.NoError(t, err)

	trend, err := c.CalculateTrends("semgrep", "proj-a")
	require.NoError(t, err)
	require.Equal(t, 2, trend.TotalRuns)
	require.Equal(t, 90.0, trend.AvgExecutionTime)
	require.NotNil(t, trend.Latest)
	require.Equal(t, 80.0, trend.Latest.ExecutionTime)
	require.NotNil(t, trend.Improvement)
	require.Equal(t, -20.0, trend.Improvement.ExecutionTimeDiff)
	require.Equal(t, -20.0, trend.Improvement.ExecutionTimePercentage)
	require.True(t, trend.Improvement.IsFaster)
}

func TestCalculateTrendsEmptyHistory(t *testing.T) {
	c := newTestCollector(t)
	trend, err := c.CalculateTrends("semgrep", "proj-a")
	require.NoError(t, err)
	require.Equal(t, 0, trend.TotalRuns)
	require.Nil(t, trend.Latest)
	require.Nil(t, trend.Improvement)
}

func TestGenerateReportAggregatesAndRecommends(t *testing.T) {
	c := newTestCollector(t)
	_, err := c.Record("slow-tool", "proj-a", 400, 3)
	require.NoError(t, err)
	_, err = c.Record("medium-tool", "proj-a", 90, 7)
	require.NoError(t, err)
	_, err = c.Record("fast-tool", "proj-b", 5, 20)
	require.NoError(t, err)

	out := filepath.Join(t.TempDir(), "performance_report.json")
	rep, err := c.GenerateReport(out)
	require.NoError(t, err)
	require.FileExists(t, out)

	require.Len(t, rep.ToolsPerformance, 3)
	require.Equal(t, 400.0, rep.ToolsPerformance["slow-tool"].AvgExecutionTime)
	require.Equal(t, 1, rep.ProjectsPerformance["proj-b"].TotalRuns)
	require.Equal(t, 490.0, rep.ProjectsPerformance["proj-a"].TotalExecutionTime)

	require.Len(t, rep.Recommendations, 2)
	require.Equal(t, "medium-tool", rep.Recommendations[0].Tool)
	require.Equal(t, "medium", rep.Recommendations[0].Severity)
	require.Equal(t, "slow-tool", rep.Recommendations[1].Tool)
	require.Equal(t, "high", rep.Recommendations[1].Severity)
}

func TestGenerateReportEmptyHistory(t *testing.T) {
	c := newTestCollector(t)
	out := filepath.Join(t.TempDir(), "performance_report.json")
	rep, err := c.GenerateReport(out)
	require.NoError(t, err)
	require.Empty(t, rep.ToolsPerformance)
	require.Empty(t, rep.Recommendations)
	require.FileExists(t, out)
}

func TestToolPerformanceBestAndWorstRuns(t *testing.T) {
	c := newTestCollector(t)
	_, err := c.Record("semgrep", "proj-a", 50, 1)
	require.NoError(t, err)
	_, err = c.Record("semgrep", "proj-a", 10, 1)
	require.NoError(t, err)
	_, err = c.Record("semgrep", "proj-a", 30, 1)
	require.NoError(t, err)

	out := filepath.Join(t.TempDir(), "report.json")
	rep, err := c.GenerateReport(out)
	require.NoError(t, err)
	perf := rep.ToolsPerformance["semgrep"]
	require.Equal(t, 10.0, perf.BestRun.ExecutionTime)
	require.Equal(t, 50.0, perf.WorstRun.ExecutionTime)
	require.Equal(t, 30.0, perf.AvgExecutionTime)
}
