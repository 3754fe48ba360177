package main

import (
	"fmt"
	"path/filepath"

	"github.com/solardome/sast-regress/internal/regress"
	"github.com/solardome/sast-regress/internal/report"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newCompareCmd(settingsPath *string) *cobra.Command {
	var (
		projects []string
		tools    []string
	)

	cmd := &cobra.Command{
		Use:   "compare",
		Short: "Compare stored normalized results against baselines without running tools",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(*settingsPath)
			if err != nil {
				return err
			}
			defer a.close()

			compared := 0
			for _, project := range a.matrix.Projects {
				if !inFilter(projects, project.Name) {
					continue
				}
				for _, toolName := range project.Analyzers {
					if !inFilter(tools, toolName) {
						continue
					}
					current, found, err := a.store.LoadCurrent(project.Name, toolName)
					if err != nil {
						return err
					}
					if !found {
						cmd.Printf("  [SKIP] %s / %s: no normalized result, run the harness first\n", project.Name, toolName)
						continue
					}
					baseline, found, err := a.store.LoadBaseline(project.Name, toolName)
					if err != nil {
						a.log.Warn("baseline unreadable, treated as missing",
							zap.String("project", project.Name), zap.String("tool", toolName), zap.Error(err))
						found = false
					}
					if !found {
						cmd.Printf("  [SKIP] %s / %s: no baseline stored\n", project.Name, toolName)
						continue
					}

					comparison := regress.Compare(project.Name, toolName, baseline.Issues, current.Issues)
					printComparison(cmd, comparison)
					compared++

					path := filepath.Join(a.settings.ReportsDir, project.Name, toolName+"_comparison.json")
					if err := report.WriteJSON(path, comparison); err != nil {
						return fmt.Errorf("save comparison report: %w", err)
					}
				}
			}
			if compared == 0 {
				cmd.Println("Nothing to compare.")
			}
			return nil
		},
	}

	cmd.Flags().StringSliceVar(&projects, "project", nil, "limit the comparison to these projects")
	cmd.Flags().StringSliceVar(&tools, "tool", nil, "limit the comparison to these tools")
	return cmd
}

func inFilter(filter []string, name string) bool {
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
