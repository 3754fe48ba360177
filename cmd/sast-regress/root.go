package main

import (
	"github.com/solardome/sast-regress/internal/config"
	"github.com/solardome/sast-regress/internal/logging"
	"github.com/solardome/sast-regress/internal/regress"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// app bundles the shared wiring every subcommand needs: settings, the test
// matrix, the logger and the stores.
type app struct {
	settings config.Settings
	matrix   config.Matrix
	log      *zap.Logger
	store    *regress.Store
	perf     *regress.PerfCollector
}

func loadApp(settingsPath string) (*app, error) {
	settings, err := config.LoadSettings(settingsPath)
	if err != nil {
		return nil, err
	}
	log, err := logging.New(settings.LogLevel, settings.LogFile)
	if err != nil {
		return nil, err
	}
	matrix, err := config.LoadMatrix(settings.ProjectsFile, settings.ToolsFile)
	if err != nil {
		log.Error("configuration invalid", zap.Error(err))
		return nil, err
	}
	return &app{
		settings: settings,
		matrix:   matrix,
		log:      log,
		store:    regress.NewStore(settings.BaselineDir, settings.ResultsDir, log),
		perf:     regress.NewPerfCollector(settings.MetricsDir, log),
	}, nil
}

func (a *app) close() {
	_ = a.log.Sync()
}

func newRootCmd() *cobra.Command {
	var settingsPath string

	root := &cobra.Command{
		Use:           "sast-regress",
		Short:         "Regression testing harness for SAST tools",
		Long:          "sast-regress runs configured SAST tools against test projects,\nnormalizes their findings and compares them against stored baselines.",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.PersistentFlags().StringVarP(&settingsPath, "settings", "s", "", "harness settings file (defaults apply when omitted)")

	root.AddCommand(
		newRunCmd(&settingsPath),
		newCompareCmd(&settingsPath),
		newBaselineCmd(&settingsPath),
		newToolsCmd(&settingsPath),
	)
	return root
}

func statusMarker(status string) string {
	switch status {
	case regress.StatusGood:
		return "OK "
	case regress.StatusWarning:
		return "WARN"
	default:
		return "BAD "
	}
}

func printComparison(cmd *cobra.Command, c regress.ComparisonResult) {
	m := c.Metrics
	s := c.Statistics
	cmd.Printf("  [%s] %s / %s\n", statusMarker(m.Status()), c.Project, c.Tool)
	cmd.Printf("        recall %.1f%%  matched %d/%d  new %d  missing %d  fp_delta %+d  f1 %.3f\n",
		m.RecallPercentage, s.MatchedIssues, s.BaselineIssues, s.NewIssues, s.MissingIssues, m.FPDelta, m.F1Score)
}
