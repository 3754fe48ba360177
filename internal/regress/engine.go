package regress

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/solardome/sast-regress/internal/config"
	"github.com/solardome/sast-regress/internal/ingest"
	"github.com/solardome/sast-regress/internal/ingest/cppcheck"
	"github.com/solardome/sast-regress/internal/ingest/semgrep"
	"github.com/solardome/sast-regress/internal/ingest/shellcheck"
	"github.com/solardome/sast-regress/internal/report"
	"github.com/solardome/sast-regress/internal/runner"
	"go.uber.org/zap"
)

// Executor runs one scanner against one project checkout.
type Executor interface {
	Execute(ctx context.Context, toolName, projectPath string) runner.Outcome
}

// Engine drives the projects x tools matrix: execute, convert, normalize,
// persist, compare, summarize. One failing pair never aborts the run; it is
// carried into the summary instead.
type Engine struct {
	matrix     config.Matrix
	executor   Executor
	normalizer *Normalizer
	store      *Store
	perf       *PerfCollector
	rawDir     string
	reportsDir string
	log        *zap.Logger
	now        func() time.Time
	newRunID   func() string
}

func NewEngine(matrix config.Matrix, executor Executor, store *Store, perf *PerfCollector, rawDir, reportsDir string, log *zap.Logger) *Engine {
	return &Engine{
		matrix:     matrix,
		executor:   executor,
		normalizer: NewNormalizer(log),
		store:      store,
		perf:       perf,
		rawDir:     rawDir,
		reportsDir: reportsDir,
		log:        log,
		now:        time.Now,
		newRunID:   func() string { return uuid.NewString() },
	}
}

// RunOptions select what the run covers and whether it refreshes baselines
// instead of comparing against them.
type RunOptions struct {
	Projects       []string
	Tools          []string
	UpdateBaseline bool
}

// PairResult is the outcome of one (project, tool) pair within a run.
type PairResult struct {
	Project         string            `json:"project"`
	Tool            string            `json:"tool"`
	Success         bool              `json:"success"`
	Error           string            `json:"error,omitempty"`
	IssueCount      int               `json:"issues_count"`
	BaselineFound   bool              `json:"baseline_found"`
	BaselineUpdated bool              `json:"baseline_updated,omitempty"`
	Comparison      *ComparisonResult `json:"comparison,omitempty"`
	Performance     *PerfMetrics      `json:"performance,omitempty"`
}

// PairSummary is the compact comparison view embedded in the run summary.
type PairSummary struct {
	RecallPercentage float64 `json:"recall_percentage"`
	FPDelta          int     `json:"fp_delta"`
	Matched          int     `json:"matched"`
	New              int     `json:"new"`
	Missing          int     `json:"missing"`
	F1Score          float64 `json:"f1_score"`
	Status           string  `json:"status"`
}

// ExecutionSummary is the compact execution view embedded in the run summary.
type ExecutionSummary struct {
	Success      bool   `json:"success"`
	IssuesCount  int    `json:"issues_count"`
	ErrorMessage string `json:"error_message,omitempty"`
}

// Summary aggregates one full run.
type Summary struct {
	RunID              string                                 `json:"run_id"`
	Timestamp          string                                 `json:"timestamp"`
	TestResultsSummary map[string]map[string]ExecutionSummary `json:"test_results_summary"`
	ComparisonSummary  map[string]map[string]PairSummary      `json:"comparison_summary"`
	PerformanceSummary map[string]ToolPerformance             `json:"performance_summary"`
	ProjectsTested     int                                    `json:"projects_tested"`
	ToolsExecuted      int                                    `json:"tools_executed"`
	ToolsSucceeded     int                                    `json:"tools_succeeded"`
	ToolsFailed        []string                               `json:"tools_failed"`
	AvgRecallPct       float64                                `json:"avg_recall_percentage"`
	AvgF1Score         float64                                `json:"avg_f1_score"`
}

// Run executes the matrix and writes per-pair comparison reports, the run
// summary and a checksum manifest under the reports directory.
func (e *Engine) Run(ctx context.Context, opts RunOptions) (Summary, []PairResult, error) {
	summary := Summary{
		RunID:              e.newRunID(),
		Timestamp:          e.now().UTC().Format(time.RFC3339),
		TestResultsSummary: map[string]map[string]ExecutionSummary{},
		ComparisonSummary:  map[string]map[string]PairSummary{},
		PerformanceSummary: map[string]ToolPerformance{},
		ToolsFailed:        []string{},
	}

	var pairs []PairResult
	for _, project := range e.matrix.Projects {
		if !selected(opts.Projects, project.Name) {
			continue
		}
		summary.ProjectsTested++
		summary.TestResultsSummary[project.Name] = map[string]ExecutionSummary{}
		e.log.Info("testing project", zap.String("project", project.Name), zap.String("path", project.Path))

		for _, toolName := range project.Analyzers {
			if !selected(opts.Tools, toolName) {
				continue
			}
			pair := e.runPair(ctx, project, toolName, opts.UpdateBaseline)
			pairs = append(pairs, pair)

			summary.ToolsExecuted++
			summary.TestResultsSummary[project.Name][toolName] = ExecutionSummary{
				Success:      pair.Success,
				IssuesCount:  pair.IssueCount,
				ErrorMessage: pair.Error,
			}
			if !pair.Success {
				summary.ToolsFailed = append(summary.ToolsFailed, fmt.Sprintf("%s/%s: %s", project.Name, toolName, pair.Error))
				continue
			}
			summary.ToolsSucceeded++
			if pair.Comparison != nil {
				if summary.ComparisonSummary[project.Name] == nil {
					summary.ComparisonSummary[project.Name] = map[string]PairSummary{}
				}
				m := pair.Comparison.Metrics
				stats := pair.Comparison.Statistics
				summary.ComparisonSummary[project.Name][toolName] = PairSummary{
					RecallPercentage: m.RecallPercentage,
					FPDelta:          m.FPDelta,
					Matched:          stats.MatchedIssues,
					New:              stats.NewIssues,
					Missing:          stats.MissingIssues,
					F1Score:          m.F1Score,
					Status:           m.Status(),
				}
			}
		}
	}

	var recallSum, f1Sum float64
	compared := 0
	for _, tools := range summary.ComparisonSummary {
		for _, pair := range tools {
			recallSum += pair.RecallPercentage
			f1Sum += pair.F1Score
			compared++
		}
	}
	if compared > 0 {
		summary.AvgRecallPct = recallSum / float64(compared)
		summary.AvgF1Score = f1Sum / float64(compared)
	}

	if perfReport, err := e.perf.GenerateReport(filepath.Join(e.reportsDir, "performance_report.json")); err != nil {
		e.log.Warn("performance report failed", zap.Error(err))
	} else {
		summary.PerformanceSummary = perfReport.ToolsPerformance
	}

	summaryPath := filepath.Join(e.reportsDir, "summary.json")
	if err := report.WriteJSON(summaryPath, summary); err != nil {
		return summary, pairs, fmt.Errorf("save summary: %w", err)
	}

	artifacts := []string{summaryPath, filepath.Join(e.reportsDir, "performance_report.json")}
	for _, pair := range pairs {
		if pair.Comparison != nil {
			artifacts = append(artifacts, e.comparisonPath(pair.Project, pair.Tool))
		}
	}
	if err := report.WriteChecksums(report.DefaultChecksumsPath(summaryPath), artifacts); err != nil {
		e.log.Warn("checksum manifest failed", zap.Error(err))
	}

	e.log.Info("run finished",
		zap.String("run_id", summary.RunID),
		zap.Int("projects", summary.ProjectsTested),
		zap.Int("tools_executed", summary.ToolsExecuted),
		zap.Int("tools_succeeded", summary.ToolsSucceeded),
		zap.Float64("avg_recall_percentage", summary.AvgRecallPct))
	return summary, pairs, nil
}

func (e *Engine) runPair(ctx context.Context, project config.ProjectConfig, toolName string, updateBaseline bool) PairResult {
	pair := PairResult{Project: project.Name, Tool: toolName}

	outcome := e.executor.Execute(ctx, toolName, project.Path)
	if !outcome.OK {
		pair.Error = outcome.Error
		return pair
	}

	payload, err := e.convert(toolName, outcome.Output)
	if err != nil {
		pair.Error = err.Error()
		return pair
	}
	rawPath := filepath.Join(e.rawDir, project.Name, toolName+".sarif")
	if err := report.WriteJSON(rawPath, json.RawMessage(payload)); err != nil {
		e.log.Warn("raw report not saved", zap.String("path", rawPath), zap.Error(err))
	}

	normalized, err := e.normalizer.Normalize(project.Name, toolName, payload, &outcome.DurationSeconds)
	if err != nil {
		// Malformed output still yields an empty normalized result; the
		// pair stays successful so the emptiness shows up in comparison.
		e.log.Warn("normalization degraded",
			zap.String("project", project.Name), zap.String("tool", toolName), zap.Error(err))
	}
	pair.Success = true
	pair.IssueCount = normalized.IssueCount()

	if metrics, err := e.perf.Record(toolName, project.Name, outcome.DurationSeconds, pair.IssueCount); err != nil {
		e.log.Warn("performance metrics not recorded", zap.Error(err))
	} else {
		pair.Performance = &metrics
	}

	if err := e.store.SaveCurrent(normalized); err != nil {
		e.log.Warn("normalized result not saved", zap.Error(err))
	}

	if updateBaseline {
		if err := e.store.SaveBaseline(normalized); err != nil {
			pair.Success = false
			pair.Error = err.Error()
			return pair
		}
		pair.BaselineUpdated = true
		pair.BaselineFound = true
		return pair
	}

	baseline, found, err := e.store.LoadBaseline(project.Name, toolName)
	if err != nil {
		e.log.Warn("baseline unreadable, treated as missing",
			zap.String("project", project.Name), zap.String("tool", toolName), zap.Error(err))
		found = false
	}
	pair.BaselineFound = found
	if !found {
		e.log.Info("no baseline, skipping comparison",
			zap.String("project", project.Name), zap.String("tool", toolName))
		return pair
	}

	comparison := Compare(project.Name, toolName, baseline.Issues, normalized.Issues)
	pair.Comparison = &comparison
	if err := report.WriteJSON(e.comparisonPath(project.Name, toolName), comparison); err != nil {
		e.log.Warn("comparison report not saved", zap.Error(err))
	}
	return pair
}

func (e *Engine) convert(toolName string, payload []byte) ([]byte, error) {
	var (
		doc ingest.Document
		err error
	)
	version := e.matrix.Tools[toolName].Version
	switch toolName {
	case "semgrep":
		doc, err = semgrep.Convert(payload, version)
	case "cppcheck":
		doc, err = cppcheck.Convert(payload, version)
	case "shellcheck":
		doc, err = shellcheck.Convert(payload, version)
	default:
		// Unknown tools are expected to emit the SARIF-like document
		// themselves; their output is normalized as is.
		return payload, nil
	}
	if err != nil {
		return nil, err
	}
	return jsonAPI.Marshal(doc)
}

func (e *Engine) comparisonPath(project, tool string) string {
	return filepath.Join(e.reportsDir, project, tool+"_comparison.json")
}

func selected(filter []string, name string) bool {
	if len(filter) == 0 {
		return true
	}
	for _, f := range filter {
		if f == name {
			return true
		}
	}
	return false
}
