package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"claudia/internal/client"
)

var undoCmd = &cobra.Command{
	Use:     "undo",
	GroupID: groupMaint,
	Short:   "Reverse the most recent reversible action",
	Long: `Reverse the most recent reversible action in history.

Completions, reopens, edits and deletes carry enough of their pre-image
to be reversed; creations, archival and session changes do not. The
reversal appends its own history record, so nothing is ever rewritten.
Undo is single mode only.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		agent, err := newAgent(client.Options{})
		if err != nil {
			return err
		}
		res, err := agent.Undo()
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(res)
		}
		fmt.Printf("Undid %s on %s\n", res.UndoneEvent, res.TaskID)
		if res.Task != nil {
			printTask(res.Task)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(undoCmd)
}
