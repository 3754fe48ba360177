package main

import (
	"github.com/spf13/cobra"
)

func newToolsCmd(settingsPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "tools",
		Short: "List the configured tools",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(*settingsPath)
			if err != nil {
				return err
			}
			defer a.close()

			for _, name := range a.matrix.ToolNames() {
				tool := a.matrix.Tools[name]
				location := tool.Command
				if tool.Type == "docker" {
					location = tool.Image
				}
				cmd.Printf("  %-12s %-8s %s\n", name, tool.Type, location)
			}
			return nil
		},
	}
}
