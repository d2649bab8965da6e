package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"claudia/internal/client"
	"claudia/internal/state"
	"claudia/internal/types"
)

var (
	createDescription string
	createPriority    int
	createLabels      string
	createBlockedBy   []string
	createBranch      string
)

var createCmd = &cobra.Command{
	Use:     "create [title]",
	GroupID: groupTasks,
	Short:   "Add a task to the backlog",
	Long: `Add a task to the backlog.

With a title argument the task is created directly from flags. With no
arguments on a terminal, an interactive form collects the fields.

EXAMPLES:
  claudia create "Fix login redirect" --priority 1 --labels backend,auth
  claudia create "Ship dashboard" --blocked-by task-003 --blocked-by task-007
  claudia create`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		agent, err := newAgent(client.Options{})
		if err != nil {
			return err
		}

		taskArgs := state.CreateTaskArgs{
			Description: createDescription,
			Labels:      parseLabels(createLabels),
			BlockedBy:   createBlockedBy,
			Branch:      createBranch,
		}
		if cmd.Flags().Changed("priority") {
			p := createPriority
			taskArgs.Priority = &p
		}

		if len(args) == 1 {
			taskArgs.Title = args[0]
		} else {
			if !isInteractive() {
				return fmt.Errorf("title required (or run interactively)")
			}
			if err := runCreateForm(&taskArgs); err != nil {
				return err
			}
		}

		t, err := agent.CreateTask(taskArgs)
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(t)
		}
		fmt.Printf("Created %s\n", t.ID)
		printTask(t)
		return nil
	},
}

func init() {
	createCmd.Flags().StringVarP(&createDescription, "description", "d", "", "Task description (markdown)")
	createCmd.Flags().IntVarP(&createPriority, "priority", "p", types.DefaultPriority, "Priority 0-3 (0 = critical)")
	createCmd.Flags().StringVarP(&createLabels, "labels", "l", "", "Comma-separated labels")
	createCmd.Flags().StringArrayVar(&createBlockedBy, "blocked-by", nil, "Task id that must be done first (repeatable)")
	createCmd.Flags().StringVar(&createBranch, "branch", "", "Branch this task belongs to")
	rootCmd.AddCommand(createCmd)
}

// runCreateForm collects task fields interactively. Flag values prefill
// the form.
func runCreateForm(args *state.CreateTaskArgs) error {
	priorityStr := strconv.Itoa(types.DefaultPriority)
	if args.Priority != nil {
		priorityStr = strconv.Itoa(*args.Priority)
	}
	labelsInput := strings.Join(args.Labels, ", ")
	blockedInput := strings.Join(args.BlockedBy, ", ")

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Title").
				Description("Short summary of the work (required)").
				Placeholder("e.g., Fix login redirect loop").
				Value(&args.Title).
				Validate(func(s string) error {
					if strings.TrimSpace(s) == "" {
						return fmt.Errorf("title is required")
					}
					if len(s) > 500 {
						return fmt.Errorf("title must be 500 characters or less")
					}
					return nil
				}),

			huh.NewText().
				Title("Description").
				Description("Context for whoever claims this (optional, markdown)").
				CharLimit(5000).
				Value(&args.Description),

			huh.NewSelect[string]().
				Title("Priority").
				Options(
					huh.NewOption("P0 - Critical", "0"),
					huh.NewOption("P1 - High", "1"),
					huh.NewOption("P2 - Normal (default)", "2"),
					huh.NewOption("P3 - Low", "3"),
				).
				Value(&priorityStr),

			huh.NewInput().
				Title("Labels").
				Description("Comma-separated; sessions with matching labels claim first").
				Placeholder("e.g., backend, auth").
				Value(&labelsInput),

			huh.NewInput().
				Title("Blocked by").
				Description("Comma-separated task ids that must finish first (optional)").
				Placeholder("e.g., task-003, task-007").
				Value(&blockedInput),
		),
	)
	if err := form.Run(); err != nil {
		return err
	}

	p, err := strconv.Atoi(priorityStr)
	if err == nil {
		args.Priority = &p
	}
	args.Labels = parseLabels(labelsInput)
	args.BlockedBy = parseList(blockedInput)
	return nil
}
