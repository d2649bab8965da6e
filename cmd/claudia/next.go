package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"claudia/internal/client"
)

var nextLabels string

var nextCmd = &cobra.Command{
	Use:     "next",
	GroupID: groupTasks,
	Short:   "Claim the next ready task for this session",
	Long: `Claim the next ready task for this session.

The scheduler prefers tasks sharing labels with the session (or the
--labels override), then lower priority numbers, then older tasks. A task
is ready when it is open, unassigned, and everything it is blocked by is
done. An empty claim is not an error; it prints "No task available".

EXAMPLES:
  claudia next --session worker-1
  claudia next --labels backend`,
	RunE: func(cmd *cobra.Command, args []string) error {
		agent, err := newAgent(client.Options{})
		if err != nil {
			return err
		}
		t, err := agent.RequestTask(parseLabels(nextLabels))
		if err != nil {
			return err
		}
		if jsonOutput {
			if t == nil {
				return printJSON(map[string]any{"task": nil})
			}
			return printJSON(t)
		}
		if t == nil {
			fmt.Println("No task available.")
			return nil
		}
		fmt.Printf("Claimed %s\n", t.ID)
		printTask(t)
		return nil
	},
}

func init() {
	nextCmd.Flags().StringVarP(&nextLabels, "labels", "l", "", "Preferred labels for this claim (comma-separated)")
	rootCmd.AddCommand(nextCmd)
}
