package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newBaselineCmd(settingsPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "baseline",
		Short: "Manage stored baseline snapshots",
	}
	cmd.AddCommand(
		newBaselineCreateCmd(settingsPath),
		newBaselineListCmd(settingsPath),
		newBaselineDiffCmd(settingsPath),
		newBaselineExportCmd(settingsPath),
	)
	return cmd
}

func newBaselineCreateCmd(settingsPath *string) *cobra.Command {
	var (
		projects []string
		tools    []string
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Promote the latest normalized results to baselines",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(*settingsPath)
			if err != nil {
				return err
			}
			defer a.close()

			created := 0
			for _, project := range a.matrix.Projects {
				if !inFilter(projects, project.Name) {
					continue
				}
				for _, toolName := range project.Analyzers {
					if !inFilter(tools, toolName) {
						continue
					}
					result, found, err := a.store.LoadCurrent(project.Name, toolName)
					if err != nil {
						return err
					}
					if !found {
						cmd.Printf("  [SKIP] %s / %s: no normalized result to promote\n", project.Name, toolName)
						continue
					}
					if err := a.store.SaveBaseline(result); err != nil {
						return err
					}
					cmd.Printf("  [BASE] %s / %s: baseline created (%d issues)\n", project.Name, toolName, result.IssueCount())
					created++
				}
			}
			if created == 0 {
				return fmt.Errorf("no baselines created, run the harness first")
			}
			return nil
		},
	}

	cmd.Flags().StringSliceVar(&projects, "project", nil, "limit to these projects")
	cmd.Flags().StringSliceVar(&tools, "tool", nil, "limit to these tools")
	return cmd
}

func newBaselineListCmd(settingsPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List stored baselines per project",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(*settingsPath)
			if err != nil {
				return err
			}
			defer a.close()

			baselines, err := a.store.ListBaselines()
			if err != nil {
				return err
			}
			if len(baselines) == 0 {
				cmd.Println("No baselines stored.")
				return nil
			}

			names := make([]string, 0, len(baselines))
			for name := range baselines {
				names = append(names, name)
			}
			sort.Strings(names)

			for _, name := range names {
				cmd.Printf("%s\n", name)
				for _, info := range baselines[name] {
					cmd.Printf("  %-12s %4d issues  (errors=%d warnings=%d)  %s\n",
						info.Tool, info.Issues,
						info.Severities["error"], info.Severities["warning"],
						info.Timestamp)
				}
			}
			return nil
		},
	}
}

func newBaselineDiffCmd(settingsPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "diff <project> <tool> <revision1> <revision2>",
		Short: "Compare two stored baseline revisions",
		Args:  cobra.ExactArgs(4),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(*settingsPath)
			if err != nil {
				return err
			}
			defer a.close()

			delta, err := a.store.DiffBaselines(args[0], args[1], args[2], args[3])
			if err != nil {
				return err
			}

			cmd.Printf("%s / %s: %s -> %s\n", delta.Project, delta.Tool, delta.Revision1, delta.Revision2)
			cmd.Printf("  issues: %d -> %d (%+d)\n", delta.Issues1, delta.Issues2, delta.Delta)

			severities := make([]string, 0, len(delta.SeverityChanges))
			for severity := range delta.SeverityChanges {
				severities = append(severities, severity)
			}
			sort.Strings(severities)
			for _, severity := range severities {
				change := delta.SeverityChanges[severity]
				cmd.Printf("  %-8s %d -> %d (%+d)\n", severity, change.Before, change.After, change.Delta)
			}
			return nil
		},
	}
	return cmd
}

func newBaselineExportCmd(settingsPath *string) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the baseline inventory as CSV",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(*settingsPath)
			if err != nil {
				return err
			}
			defer a.close()

			if err := a.store.ExportCSV(output); err != nil {
				return err
			}
			a.log.Info("baseline inventory exported", zap.String("path", output))
			cmd.Printf("Baseline inventory written to %s\n", output)
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "baselines.csv", "output CSV path")
	return cmd
}
