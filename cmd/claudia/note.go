package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"claudia/internal/client"
)

var noteCmd = &cobra.Command{
	Use:     "note <task-id> <text>...",
	GroupID: groupTasks,
	Short:   "Append a note to a task",
	Args:    cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		agent, err := newAgent(client.Options{})
		if err != nil {
			return err
		}
		text := strings.Join(args[1:], " ")
		if err := agent.AddNote(args[0], text); err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(map[string]bool{"ok": true})
		}
		fmt.Printf("Noted on %s\n", args[0])
		return nil
	},
}

func init() {
	rootCmd.AddCommand(noteCmd)
}
