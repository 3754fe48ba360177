package main

import (
	"fmt"
	"path/filepath"
	"sort"
	"time"

	"github.com/solardome/sast-regress/internal/config"
	"github.com/solardome/sast-regress/internal/regress"
	"github.com/solardome/sast-regress/internal/runner"
	"github.com/spf13/cobra"
)

func newRunCmd(settingsPath *string) *cobra.Command {
	var (
		projects       []string
		tools          []string
		updateBaseline bool
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Execute the configured tools and compare against baselines",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(*settingsPath)
			if err != nil {
				return err
			}
			defer a.close()

			registry := buildRegistry(a)
			timeout := time.Duration(a.settings.TimeoutSeconds) * time.Second
			exec := runner.New(registry, timeout, a.log)

			engine := regress.NewEngine(a.matrix, exec, a.store, a.perf,
				a.settings.RawResultsDir, a.settings.ReportsDir, a.log)

			summary, pairs, err := engine.Run(cmd.Context(), regress.RunOptions{
				Projects:       projects,
				Tools:          tools,
				UpdateBaseline: updateBaseline,
			})
			if err != nil {
				return err
			}

			cmd.Printf("Run %s\n", summary.RunID)
			cmd.Printf("Projects tested: %d, tools executed: %d, succeeded: %d\n",
				summary.ProjectsTested, summary.ToolsExecuted, summary.ToolsSucceeded)
			for _, pair := range pairs {
				switch {
				case !pair.Success:
					cmd.Printf("  [FAIL] %s / %s: %s\n", pair.Project, pair.Tool, pair.Error)
				case pair.BaselineUpdated:
					cmd.Printf("  [BASE] %s / %s: baseline updated (%d issues)\n", pair.Project, pair.Tool, pair.IssueCount)
				case pair.Comparison != nil:
					printComparison(cmd, *pair.Comparison)
				default:
					cmd.Printf("  [SKIP] %s / %s: no baseline, %d issues normalized\n", pair.Project, pair.Tool, pair.IssueCount)
				}
			}
			if summary.ToolsExecuted > 0 {
				cmd.Printf("Average recall: %.1f%%, average F1: %.3f\n", summary.AvgRecallPct, summary.AvgF1Score)
			}

			if summary.ToolsExecuted > 0 && summary.ToolsSucceeded == 0 {
				return fmt.Errorf("all %d tool executions failed", summary.ToolsExecuted)
			}
			return nil
		},
	}

	cmd.Flags().StringSliceVar(&projects, "project", nil, "limit the run to these projects")
	cmd.Flags().StringSliceVar(&tools, "tool", nil, "limit the run to these tools")
	cmd.Flags().BoolVar(&updateBaseline, "update-baseline", false, "store normalized results as the new baselines instead of comparing")
	return cmd
}

// buildRegistry maps the tool matrix onto runnable commands. Docker tools
// mount the project read-only at the tool's mount point, the way scanners
// expect their /src tree.
func buildRegistry(a *app) *runner.Registry {
	registry := runner.NewRegistry(a.log)
	for _, tc := range a.matrix.Tools {
		registry.Register(runnerTool(tc))
	}
	return registry
}

func runnerTool(tc config.ToolConfig) runner.Tool {
	env := make([]string, 0, len(tc.EnvVars))
	for k, v := range tc.EnvVars {
		env = append(env, k+"="+v)
	}
	sort.Strings(env)

	if tc.Type == "docker" {
		args := []string{"run", "--rm", "-v", "{project}:" + tc.MountPoint + ":ro"}
		if tc.OutputFile != "" {
			// Tools that write their report to a file get the host output
			// directory mounted writable at /results.
			if dir, err := filepath.Abs(filepath.Dir(tc.OutputFile)); err == nil {
				args = append(args, "-v", dir+":/results")
			}
		}
		for _, kv := range env {
			args = append(args, "-e", kv)
		}
		args = append(args, tc.Image, tc.Command)
		args = append(args, tc.Args...)
		return runner.Tool{
			Name:       tc.Name,
			Version:    tc.Version,
			Command:    "docker",
			Args:       args,
			OutputFile: tc.OutputFile,
		}
	}
	return runner.Tool{
		Name:       tc.Name,
		Version:    tc.Version,
		Command:    tc.Command,
		Args:       tc.Args,
		Env:        env,
		OutputFile: tc.OutputFile,
	}
}
