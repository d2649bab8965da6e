package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"claudia/internal/client"
	"claudia/internal/types"
	"claudia/internal/ui"
)

var timerCmd = &cobra.Command{
	Use:     "timer",
	GroupID: groupMaint,
	Short:   "Track time against a task",
	Long: `Track time against a task.

A task carries one timer: start it, pause it, resume it, stop it.
Stopping or pausing folds the elapsed interval into the task's total.
Starting an already-running timer is a no-op. Timers are single mode
only.`,
}

func timerSubcommand(use, short string, op func(*client.Agent, string) (*types.Task, error)) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <task-id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			agent, err := newAgent(client.Options{})
			if err != nil {
				return err
			}
			t, err := op(agent, args[0])
			if err != nil {
				return err
			}
			if jsonOutput {
				return printJSON(t)
			}
			tt := t.TimeTracking
			stateWord := "stopped"
			switch {
			case tt != nil && tt.IsRunning:
				stateWord = "running"
			case tt != nil && tt.IsPaused:
				stateWord = "paused"
			}
			var total float64
			if tt != nil {
				total = tt.TotalSeconds
			}
			fmt.Printf("%s timer %s, %s tracked\n", t.ID, stateWord, ui.FormatSeconds(total))
			return nil
		},
	}
}

func init() {
	timerCmd.AddCommand(timerSubcommand("start", "Start (or resume) the task's timer",
		func(a *client.Agent, id string) (*types.Task, error) { return a.StartTimer(id) }))
	timerCmd.AddCommand(timerSubcommand("stop", "Stop the timer and fold in the elapsed time",
		func(a *client.Agent, id string) (*types.Task, error) { return a.StopTimer(id) }))
	timerCmd.AddCommand(timerSubcommand("pause", "Pause the timer, keeping the accumulated total",
		func(a *client.Agent, id string) (*types.Task, error) { return a.PauseTimer(id) }))
	timerCmd.AddCommand(timerSubcommand("resume", "Resume a paused timer",
		func(a *client.Agent, id string) (*types.Task, error) { return a.StartTimer(id) }))
	rootCmd.AddCommand(timerCmd)
}
