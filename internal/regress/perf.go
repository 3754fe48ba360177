package regress

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/solardome/sast-regress/internal/report"
	"go.uber.org/zap"
)

// Slow-tool thresholds for report recommendations, in seconds of average
// execution time.
const (
	slowToolHighFloor   = 300.0
	slowToolMediumFloor = 60.0
)

// PerfMetrics captures one scanner execution for trend analysis.
type PerfMetrics struct {
	RunID           string  `json:"run_id"`
	Tool            string  `json:"tool"`
	Project         string  `json:"project"`
	Timestamp       string  `json:"timestamp"`
	ExecutionTime   float64 `json:"execution_time"`
	IssuesPerSecond float64 `json:"issues_per_second"`
	FilesScanned    int     `json:"files_scanned"`
	IssuesFound     int     `json:"issues_found"`
}

// PerfTimer is an in-flight measurement handed out by StartTimer.
type PerfTimer struct {
	Tool      string
	Project   string
	start     time.Time
	timestamp string
}

// PerfTrend summarizes the run history for one (tool, project) pair.
type PerfTrend struct {
	Tool               string           `json:"tool"`
	Project            string           `json:"project"`
	TotalRuns          int              `json:"total_runs"`
	AvgExecutionTime   float64          `json:"avg_execution_time"`
	AvgIssuesPerSecond float64          `json:"avg_issues_per_second"`
	Latest             *PerfMetrics     `json:"latest_metrics,omitempty"`
	Improvement        *PerfImprovement `json:"improvement,omitempty"`
}

// PerfImprovement compares the latest run against the previous one.
type PerfImprovement struct {
	ExecutionTimeDiff       float64 `json:"execution_time_diff"`
	ExecutionTimePercentage float64 `json:"execution_time_percentage"`
	IsFaster                bool    `json:"is_faster"`
}

// ToolPerformance aggregates a tool's history across all projects.
type ToolPerformance struct {
	TotalRuns        int         `json:"total_runs"`
	AvgExecutionTime float64     `json:"avg_execution_time"`
	AvgIssuesFound   float64     `json:"avg_issues_found"`
	BestRun          PerfMetrics `json:"best_run"`
	WorstRun         PerfMetrics `json:"worst_run"`
}

// ProjectPerformance aggregates a project's history across all tools.
type ProjectPerformance struct {
	TotalRuns          int     `json:"total_runs"`
	TotalExecutionTime float64 `json:"total_execution_time"`
	AvgExecutionTime   float64 `json:"avg_execution_time"`
	TotalIssuesFound   int     `json:"total_issues_found"`
}

// PerfRecommendation flags tools whose average execution time crosses a
// slowness threshold.
type PerfRecommendation struct {
	Type     string `json:"type"`
	Tool     string `json:"tool"`
	Message  string `json:"message"`
	Severity string `json:"severity"`
}

// PerfReport is the full performance report across the recorded history.
type PerfReport struct {
	Timestamp           string                        `json:"timestamp"`
	ToolsPerformance    map[string]ToolPerformance    `json:"tools_performance"`
	ProjectsPerformance map[string]ProjectPerformance `json:"projects_performance"`
	Recommendations     []PerfRecommendation          `json:"recommendations"`
}

// PerfCollector records scanner timings into an append-only history file
// under its metrics directory and derives trends and reports from it.
type PerfCollector struct {
	metricsDir string
	log        *zap.Logger
	now        func() time.Time
	newRunID   func() string
}

func NewPerfCollector(metricsDir string, log *zap.Logger) *PerfCollector {
	return &PerfCollector{
		metricsDir: metricsDir,
		log:        log,
		now:        time.Now,
		newRunID:   func() string { return uuid.NewString() },
	}
}

func (c *PerfCollector) historyPath() string {
	return filepath.Join(c.metricsDir, "performance_history.json")
}

// StartTimer begins a measurement for one scanner execution.
func (c *PerfCollector) StartTimer(tool, project string) PerfTimer {
	return PerfTimer{
		Tool:      tool,
		Project:   project,
		start:     c.now(),
		timestamp: c.now().UTC().Format(time.RFC3339),
	}
}

// StopTimer finishes a measurement, derives issues/second and appends the
// entry to the history file.
func (c *PerfCollector) StopTimer(timer PerfTimer, issuesFound, filesScanned int) (PerfMetrics, error) {
	elapsed := c.now().Sub(timer.start).Seconds()
	perSecond := 0.0
	if elapsed > 0 {
		perSecond = float64(issuesFound) / elapsed
	}
	metrics := PerfMetrics{
		RunID:           c.newRunID(),
		Tool:            timer.Tool,
		Project:         timer.Project,
		Timestamp:       timer.timestamp,
		ExecutionTime:   elapsed,
		IssuesPerSecond: perSecond,
		FilesScanned:    filesScanned,
		IssuesFound:     issuesFound,
	}
	if err := c.save(metrics); err != nil {
		return metrics, err
	}
	return metrics, nil
}

// Record appends an externally measured entry, for callers that already know
// the execution time (scanner runners report their own wall clock).
func (c *PerfCollector) Record(tool, project string, executionTime float64, issuesFound int) (PerfMetrics, error) {
	perSecond := 0.0
	if executionTime > 0 {
		perSecond = float64(issuesFound) / executionTime
	}
	metrics := PerfMetrics{
		RunID:           c.newRunID(),
		Tool:            tool,
		Project:         project,
		Timestamp:       c.now().UTC().Format(time.RFC3339),
		ExecutionTime:   executionTime,
		IssuesPerSecond: perSecond,
		IssuesFound:     issuesFound,
	}
	if err := c.save(metrics); err != nil {
		return metrics, err
	}
	return metrics, nil
}

func (c *PerfCollector) save(metrics PerfMetrics) error {
	history, err := c.LoadHistory("", "")
	if err != nil {
		return err
	}
	history = append(history, metrics)
	if err := report.WriteJSON(c.historyPath(), history); err != nil {
		return fmt.Errorf("save performance history: %w", err)
	}
	c.log.Info("performance metrics recorded",
		zap.String("tool", metrics.Tool), zap.String("project", metrics.Project),
		zap.Float64("execution_time", metrics.ExecutionTime),
		zap.Int("issues", metrics.IssuesFound))
	return nil
}

// LoadHistory returns recorded entries, optionally filtered by tool and
// project. An absent history file is an empty history.
func (c *PerfCollector) LoadHistory(tool, project string) ([]PerfMetrics, error) {
	var history []PerfMetrics
	err := report.ReadJSON(c.historyPath(), &history)
	if os.IsNotExist(err) {
		return []PerfMetrics{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load performance history: %w", err)
	}

	out := make([]PerfMetrics, 0, len(history))
	for _, entry := range history {
		if tool != "" && entry.Tool != tool {
			continue
		}
		if project != "" && entry.Project != project {
			continue
		}
		out = append(out, entry)
	}
	return out, nil
}

// CalculateTrends derives averages and latest-vs-previous movement for one
// (tool, project) pair. An empty history yields a zero-run trend.
func (c *PerfCollector) CalculateTrends(tool, project string) (PerfTrend, error) {
	history, err := c.LoadHistory(tool, project)
	if err != nil {
		return PerfTrend{}, err
	}
	trend := PerfTrend{Tool: tool, Project: project, TotalRuns: len(history)}
	if len(history) == 0 {
		return trend, nil
	}

	sort.SliceStable(history, func(i, j int) bool {
		return history[i].Timestamp < history[j].Timestamp
	})

	var timeSum, perSecondSum float64
	for _, entry := range history {
		timeSum += entry.ExecutionTime
		perSecondSum += entry.IssuesPerSecond
	}
	trend.AvgExecutionTime = timeSum / float64(len(history))
	trend.AvgIssuesPerSecond = perSecondSum / float64(len(history))

	latest := history[len(history)-1]
	trend.Latest = &latest

	if len(history) >= 2 {
		previous := history[len(history)-2]
		diff := latest.ExecutionTime - previous.ExecutionTime
		improvement := PerfImprovement{
			ExecutionTimeDiff: diff,
			IsFaster:          diff < 0,
		}
		if previous.ExecutionTime > 0 {
			improvement.ExecutionTimePercentage = diff / previous.ExecutionTime * 100
		}
		trend.Improvement = &improvement
	}
	return trend, nil
}

// GenerateReport aggregates the whole history per tool and per project and
// writes the report to outputPath. Slow tools produce recommendations.
func (c *PerfCollector) GenerateReport(outputPath string) (PerfReport, error) {
	rep := PerfReport{
		Timestamp:           c.now().UTC().Format(time.RFC3339),
		ToolsPerformance:    map[string]ToolPerformance{},
		ProjectsPerformance: map[string]ProjectPerformance{},
		Recommendations:     []PerfRecommendation{},
	}

	history, err := c.LoadHistory("", "")
	if err != nil {
		return rep, err
	}
	if len(history) == 0 {
		c.log.Warn("no performance data recorded")
		return rep, report.WriteJSON(outputPath, rep)
	}

	byTool := map[string][]PerfMetrics{}
	byProject := map[string][]PerfMetrics{}
	for _, entry := range history {
		byTool[entry.Tool] = append(byTool[entry.Tool], entry)
		byProject[entry.Project] = append(byProject[entry.Project], entry)
	}

	for tool, entries := range byTool {
		var timeSum, issueSum float64
		best, worst := entries[0], entries[0]
		for _, entry := range entries {
			timeSum += entry.ExecutionTime
			issueSum += float64(entry.IssuesFound)
			if entry.ExecutionTime < best.ExecutionTime {
				best = entry
			}
			if entry.ExecutionTime > worst.ExecutionTime {
				worst = entry
			}
		}
		rep.ToolsPerformance[tool] = ToolPerformance{
			TotalRuns:        len(entries),
			AvgExecutionTime: timeSum / float64(len(entries)),
			AvgIssuesFound:   issueSum / float64(len(entries)),
			BestRun:          best,
			WorstRun:         worst,
		}
	}

	for project, entries := range byProject {
		var timeSum float64
		var issueSum int
		for _, entry := range entries {
			timeSum += entry.ExecutionTime
			issueSum += entry.IssuesFound
		}
		rep.ProjectsPerformance[project] = ProjectPerformance{
			TotalRuns:          len(entries),
			TotalExecutionTime: timeSum,
			AvgExecutionTime:   timeSum / float64(len(entries)),
			TotalIssuesFound:   issueSum,
		}
	}

	rep.Recommendations = perfRecommendations(rep.ToolsPerformance)

	if err := report.WriteJSON(outputPath, rep); err != nil {
		return rep, fmt.Errorf("save performance report: %w", err)
	}
	c.log.Info("performance report saved", zap.String("path", outputPath))
	return rep, nil
}

func perfRecommendations(tools map[string]ToolPerformance) []PerfRecommendation {
	names := make([]string, 0, len(tools))
	for name := range tools {
		names = append(names, name)
	}
	sort.Strings(names)

	out := []PerfRecommendation{}
	for _, name := range names {
		avg := tools[name].AvgExecutionTime
		switch {
		case avg > slowToolHighFloor:
			out = append(out, PerfRecommendation{
				Type:     "performance_warning",
				Tool:     name,
				Message:  fmt.Sprintf("Tool %s is slow (avg %.1fs). Consider optimizing or replacing.", name, avg),
				Severity: "high",
			})
		case avg > slowToolMediumFloor:
			out = append(out, PerfRecommendation{
				Type:     "performance_notice",
				Tool:     name,
				Message:  fmt.Sprintf("Tool %s execution time is %.1fs. Monitor for degradation.", name, avg),
				Severity: "medium",
			})
		}
	}
	return out
}
