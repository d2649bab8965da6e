package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"claudia/internal/client"
	"claudia/internal/state"
)

var subtaskCmd = &cobra.Command{
	Use:     "subtask",
	GroupID: groupTasks,
	Short:   "Work with subtasks of a parent task",
}

var subtaskDescription string

var subtaskCreateCmd = &cobra.Command{
	Use:   "create <parent-id> <title>",
	Short: "Add a subtask under a parent task",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		agent, err := newAgent(client.Options{})
		if err != nil {
			return err
		}
		t, err := agent.CreateSubtask(state.CreateSubtaskArgs{
			ParentID:    args[0],
			Title:       args[1],
			Description: subtaskDescription,
		})
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(t)
		}
		fmt.Printf("Created %s under %s\n", t.ID, t.ParentID)
		return nil
	},
}

var subtaskProgressCmd = &cobra.Command{
	Use:   "progress <parent-id>",
	Short: "Show subtask completion for a parent task",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		agent, err := newAgent(client.Options{})
		if err != nil {
			return err
		}
		p, err := agent.SubtaskProgress(args[0])
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(p)
		}
		fmt.Printf("%s: %d/%d done (%.0f%%)\n", p.ParentID, p.Done, p.Total, p.Percent)
		return nil
	},
}

func init() {
	subtaskCreateCmd.Flags().StringVarP(&subtaskDescription, "description", "d", "", "Subtask description")
	subtaskCmd.AddCommand(subtaskCreateCmd)
	subtaskCmd.AddCommand(subtaskProgressCmd)
	rootCmd.AddCommand(subtaskCmd)
}
