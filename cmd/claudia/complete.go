package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"claudia/internal/client"
	"claudia/internal/state"
)

var (
	completeNote   string
	completeBranch string
	completeForce  bool
)

var completeCmd = &cobra.Command{
	Use:     "complete <task-id>...",
	GroupID: groupTasks,
	Short:   "Mark tasks done",
	Long: `Mark tasks done.

Completing a task another session is working on refuses unless --force.
With several ids the completion is bulk: failures are reported per task
and do not stop the rest.

EXAMPLES:
  claudia complete task-004 --note "merged" --branch feature/login
  claudia complete task-004 task-005 task-006`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		agent, err := newAgent(client.Options{})
		if err != nil {
			return err
		}
		completeArgs := state.CompleteTaskArgs{
			Note:   completeNote,
			Branch: completeBranch,
			Force:  completeForce,
		}

		if len(args) == 1 {
			completeArgs.TaskID = args[0]
			t, err := agent.CompleteTask(completeArgs)
			if err != nil {
				return err
			}
			if jsonOutput {
				return printJSON(t)
			}
			fmt.Printf("Completed %s\n", t.ID)
			return nil
		}

		res, err := agent.BulkComplete(args, completeArgs)
		if err != nil {
			return err
		}
		return printBulkResult("Completed", res)
	},
}

var reopenNote string

var reopenCmd = &cobra.Command{
	Use:     "reopen <task-id>...",
	GroupID: groupTasks,
	Short:   "Return done tasks to the open pool",
	Long: `Return done tasks to the open pool, clearing assignee and branch.
With several ids the reopen is bulk: failures are reported per task and
do not stop the rest.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		agent, err := newAgent(client.Options{})
		if err != nil {
			return err
		}
		reopenArgs := state.ReopenTaskArgs{Note: reopenNote}

		if len(args) == 1 {
			reopenArgs.TaskID = args[0]
			t, err := agent.ReopenTask(reopenArgs)
			if err != nil {
				return err
			}
			if jsonOutput {
				return printJSON(t)
			}
			fmt.Printf("Reopened %s\n", t.ID)
			return nil
		}

		res, err := agent.BulkReopen(args, reopenArgs)
		if err != nil {
			return err
		}
		return printBulkResult("Reopened", res)
	},
}

func printBulkResult(verb string, res *state.BulkResult) error {
	if jsonOutput {
		return printJSON(res)
	}
	for _, id := range res.Succeeded {
		fmt.Printf("%s %s\n", verb, id)
	}
	for _, f := range res.Failed {
		fmt.Printf("Failed %s: %s\n", f.TaskID, f.Error)
	}
	if len(res.Failed) > 0 {
		return fmt.Errorf("%d of %d failed", len(res.Failed), len(res.Succeeded)+len(res.Failed))
	}
	return nil
}

func init() {
	completeCmd.Flags().StringVarP(&completeNote, "note", "n", "", "Completion note")
	completeCmd.Flags().StringVar(&completeBranch, "branch", "", "Branch the work landed on")
	completeCmd.Flags().BoolVarP(&completeForce, "force", "f", false, "Complete even if another session owns the task")
	reopenCmd.Flags().StringVarP(&reopenNote, "note", "n", "", "Reopen note")
	rootCmd.AddCommand(completeCmd)
	rootCmd.AddCommand(reopenCmd)
}
