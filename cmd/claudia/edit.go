package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"claudia/internal/client"
	"claudia/internal/state"
	"claudia/internal/types"
)

var (
	editTitle       string
	editDescription string
	editPriority    int
	editLabels      string
	editStatus      string
	editBlockedBy   string
	editBranch      string
)

var editCmd = &cobra.Command{
	Use:     "edit <task-id>",
	GroupID: groupTasks,
	Short:   "Update task fields in place",
	Long: `Update task fields in place. Only the flags given change anything;
omitted fields keep their values.

Setting --status directly is how a task is marked blocked or unblocked.
Moving a task out of in_progress releases its assignee.

EXAMPLES:
  claudia edit task-004 --priority 0
  claudia edit task-004 --status blocked
  claudia edit task-004 --blocked-by task-001,task-002
  claudia edit task-004 --blocked-by ""`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		editArgs := state.EditTaskArgs{TaskID: args[0]}
		changed := false
		if cmd.Flags().Changed("title") {
			editArgs.Title = &editTitle
			changed = true
		}
		if cmd.Flags().Changed("description") {
			editArgs.Description = &editDescription
			changed = true
		}
		if cmd.Flags().Changed("priority") {
			editArgs.Priority = &editPriority
			changed = true
		}
		if cmd.Flags().Changed("labels") {
			labels := parseLabels(editLabels)
			if labels == nil {
				labels = []string{}
			}
			editArgs.Labels = &labels
			changed = true
		}
		if cmd.Flags().Changed("status") {
			status := types.Status(editStatus)
			editArgs.Status = &status
			changed = true
		}
		if cmd.Flags().Changed("blocked-by") {
			blockedBy := parseList(editBlockedBy)
			if blockedBy == nil {
				blockedBy = []string{}
			}
			editArgs.BlockedBy = &blockedBy
			changed = true
		}
		if cmd.Flags().Changed("branch") {
			editArgs.Branch = &editBranch
			changed = true
		}
		if !changed {
			return fmt.Errorf("nothing to edit; pass at least one field flag")
		}

		agent, err := newAgent(client.Options{})
		if err != nil {
			return err
		}
		t, err := agent.EditTask(editArgs)
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(t)
		}
		fmt.Printf("Updated %s\n", t.ID)
		printTask(t)
		return nil
	},
}

func init() {
	editCmd.Flags().StringVar(&editTitle, "title", "", "New title")
	editCmd.Flags().StringVarP(&editDescription, "description", "d", "", "New description")
	editCmd.Flags().IntVarP(&editPriority, "priority", "p", 0, "New priority 0-3")
	editCmd.Flags().StringVarP(&editLabels, "labels", "l", "", "Replacement label list (comma-separated; empty clears)")
	editCmd.Flags().StringVarP(&editStatus, "status", "s", "", "New status: open, done, blocked")
	editCmd.Flags().StringVar(&editBlockedBy, "blocked-by", "", "Replacement blocker list (comma-separated; empty clears)")
	editCmd.Flags().StringVar(&editBranch, "branch", "", "New branch (empty clears)")
	rootCmd.AddCommand(editCmd)
}
