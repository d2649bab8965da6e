package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"claudia/internal/client"
	"claudia/internal/ui"
)

var summaryCmd = &cobra.Command{
	Use:     "summary",
	GroupID: groupSessions,
	Short:   "Show completed work grouped by branch",
	Long: `Show completed work grouped by branch, with the branches whose tasks
are all done called out as merge candidates.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		agent, err := newAgent(client.Options{})
		if err != nil {
			return err
		}
		sum, err := agent.ParallelSummary()
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(sum)
		}

		fmt.Printf("%s (%d tasks)\n", ui.RenderHeader("COMPLETED"), sum.TotalCompleted)
		branches := make([]string, 0, len(sum.Branches))
		for b := range sum.Branches {
			branches = append(branches, b)
		}
		sort.Strings(branches)
		for _, b := range branches {
			fmt.Printf("\n%s\n", ui.RenderAccent(b))
			for _, t := range sum.Branches[b] {
				fmt.Printf("  %s  %s\n", t.ID, t.Title)
				for _, n := range t.Notes {
					fmt.Printf("    %s\n", ui.RenderMuted(ui.Truncate(n, 70)))
				}
			}
		}
		if len(sum.BranchesToMerge) > 0 {
			fmt.Printf("\n%s %s\n", ui.RenderHeader("READY TO MERGE:"),
				strings.Join(sum.BranchesToMerge, ", "))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(summaryCmd)
	rootCmd.AddCommand(statusCmd)
}
