package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"claudia/internal/client"
	"claudia/internal/types"
)

var listStatus string

var listCmd = &cobra.Command{
	Use:     "list",
	GroupID: groupTasks,
	Short:   "List tasks in the backlog",
	Long: `List tasks in the backlog, optionally narrowed to one status.

EXAMPLES:
  claudia list
  claudia list --status open
  claudia list --status in_progress --json`,
	RunE: func(cmd *cobra.Command, args []string) error {
		var status types.Status
		if listStatus != "" {
			status = types.Status(listStatus)
			if !status.IsValid() {
				return fmt.Errorf("unknown status %q (want open, in_progress, done or blocked)", listStatus)
			}
		}

		agent, err := newAgent(client.Options{})
		if err != nil {
			return err
		}
		tasks, err := agent.Tasks(status)
		if err != nil {
			return err
		}

		if jsonOutput {
			if tasks == nil {
				tasks = []*types.Task{}
			}
			return printJSON(tasks)
		}
		if len(tasks) == 0 {
			fmt.Println("No tasks.")
			return nil
		}
		for _, t := range tasks {
			printTask(t)
		}
		return nil
	},
}

func init() {
	listCmd.Flags().StringVarP(&listStatus, "status", "s", "", "Filter by status: open, in_progress, done, blocked")
	rootCmd.AddCommand(listCmd)
}
