package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"claudia/internal/client"
	"claudia/internal/state"
	"claudia/internal/types"
	"claudia/internal/ui"
)

var statusCmd = &cobra.Command{
	Use:     "status",
	GroupID: groupSessions,
	Short:   "Show backlog counts and active sessions",
	RunE: func(cmd *cobra.Command, args []string) error {
		agent, err := newAgent(client.Options{})
		if err != nil {
			return err
		}
		report, err := agent.Status()
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(report)
		}
		printStatusReport(report)
		return nil
	},
}

func printStatusReport(report *state.StatusReport) {
	fmt.Printf("%s (%s mode)\n", ui.RenderHeader("BACKLOG"), report.Mode)
	fmt.Printf("  %d tasks: %s %d  %s %d  %s %d  %s %d   (%d ready)\n",
		report.TotalTasks,
		ui.RenderStatus(types.StatusOpen), report.TasksByStatus[types.StatusOpen],
		ui.RenderStatus(types.StatusInProgress), report.TasksByStatus[types.StatusInProgress],
		ui.RenderStatus(types.StatusDone), report.TasksByStatus[types.StatusDone],
		ui.RenderStatus(types.StatusBlocked), report.TasksByStatus[types.StatusBlocked],
		report.ReadyTasks)

	fmt.Printf("\n%s (%d)\n", ui.RenderHeader("SESSIONS"), report.ActiveSessions)
	if len(report.Sessions) == 0 {
		fmt.Println("  none")
	}
	for _, s := range report.Sessions {
		line := fmt.Sprintf("  %s  %-6s  %s  heartbeat %s ago",
			ui.RenderAccent(s.SessionID), s.Role,
			ui.RenderStaleness(s.Staleness),
			ui.FormatAge(secondsToDuration(s.HeartbeatAge)))
		if s.WorkingOn != "" {
			line += "  working on " + s.WorkingOn
		}
		if len(s.Labels) > 0 {
			line += "  " + ui.RenderMuted("["+strings.Join(s.Labels, ", ")+"]")
		}
		fmt.Println(line)
	}

	if len(report.CompletedWithBranches) > 0 {
		fmt.Printf("\n%s\n", ui.RenderHeader("COMPLETED ON BRANCHES"))
		for _, bt := range report.CompletedWithBranches {
			fmt.Printf("  %s  %s  %s\n", bt.ID, ui.RenderAccent(bt.Branch), bt.Title)
		}
	}
}

func secondsToDuration(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
