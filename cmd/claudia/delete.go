package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"claudia/internal/client"
)

var deleteForce bool

var deleteCmd = &cobra.Command{
	Use:     "delete <task-id>",
	GroupID: groupTasks,
	Short:   "Remove a task from the backlog",
	Long: `Remove a task from the backlog.

Deleting a parent with subtasks refuses unless --force, which removes the
whole subtree.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		agent, err := newAgent(client.Options{})
		if err != nil {
			return err
		}
		deleted, err := agent.DeleteTask(args[0], deleteForce)
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(map[string]any{"deleted": deleted})
		}
		fmt.Printf("Deleted %s\n", strings.Join(deleted, ", "))
		return nil
	},
}

func init() {
	deleteCmd.Flags().BoolVarP(&deleteForce, "force", "f", false, "Also delete subtasks")
	rootCmd.AddCommand(deleteCmd)
}
