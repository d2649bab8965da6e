package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"claudia/internal/client"
	"claudia/internal/ui"
)

var showCmd = &cobra.Command{
	Use:     "show <task-id>",
	GroupID: groupTasks,
	Short:   "Show one task in full",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		agent, err := newAgent(client.Options{})
		if err != nil {
			return err
		}
		t, err := agent.Task(args[0])
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(t)
		}

		fmt.Printf("%s  %s  %s  %s\n",
			ui.RenderAccent(t.ID),
			ui.RenderPriority(t.Priority),
			ui.RenderStatus(t.Status),
			ui.RenderBold(t.Title))
		if t.Assignee != "" {
			fmt.Printf("%s %s\n", ui.RenderMuted("assignee:"), t.Assignee)
		}
		if t.Branch != "" {
			fmt.Printf("%s %s\n", ui.RenderMuted("branch:"), t.Branch)
		}
		if len(t.Labels) > 0 {
			fmt.Printf("%s %s\n", ui.RenderMuted("labels:"), strings.Join(t.Labels, ", "))
		}
		if len(t.BlockedBy) > 0 {
			fmt.Printf("%s %s\n", ui.RenderMuted("blocked by:"), strings.Join(t.BlockedBy, ", "))
		}
		if t.ParentID != "" {
			fmt.Printf("%s %s\n", ui.RenderMuted("parent:"), t.ParentID)
		}
		fmt.Printf("%s %s   %s %s\n",
			ui.RenderMuted("created:"), t.CreatedAt.Format("2006-01-02 15:04"),
			ui.RenderMuted("updated:"), t.UpdatedAt.Format("2006-01-02 15:04"))

		if t.Description != "" {
			rendered := strings.TrimRight(ui.RenderMarkdown(t.Description), "\n")
			fmt.Printf("\n%s\n%s\n", ui.RenderHeader("DESCRIPTION"), rendered)
		}

		if tt := t.TimeTracking; tt != nil {
			stateWord := "stopped"
			switch {
			case tt.IsRunning:
				stateWord = "running"
			case tt.IsPaused:
				stateWord = "paused"
			}
			fmt.Printf("\n%s %s (%s)\n", ui.RenderHeader("TIME"),
				ui.FormatSeconds(tt.TotalSeconds), stateWord)
		}

		if len(t.Subtasks) > 0 {
			progress, err := agent.SubtaskProgress(t.ID)
			if err == nil {
				fmt.Printf("\n%s %d/%d done (%.0f%%)\n", ui.RenderHeader("SUBTASKS"),
					progress.Done, progress.Total, progress.Percent)
			} else {
				fmt.Printf("\n%s\n", ui.RenderHeader("SUBTASKS"))
			}
			for _, id := range t.Subtasks {
				sub, err := agent.Task(id)
				if err != nil {
					fmt.Printf("  %s %s\n", id, ui.RenderMuted("(missing)"))
					continue
				}
				fmt.Printf("  %s  %s  %s\n", sub.ID, ui.RenderStatus(sub.Status), sub.Title)
			}
		}

		if len(t.Notes) > 0 {
			fmt.Printf("\n%s\n", ui.RenderHeader("NOTES"))
			for _, n := range t.Notes {
				who := n.SessionID
				if who == "" {
					who = "-"
				}
				fmt.Printf("  %s %s  %s\n",
					ui.RenderMuted(n.Timestamp.Format("2006-01-02 15:04")),
					ui.RenderMuted(who),
					n.Text)
			}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(showCmd)
}
