package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"claudia/internal/client"
	"claudia/internal/state"
	"claudia/internal/templates"
)

var templateCmd = &cobra.Command{
	Use:     "template",
	GroupID: groupMaint,
	Short:   "Import and instantiate task templates",
	Long: `Import and instantiate task templates.

A template is a reusable task shape: a parent with default priority and
labels plus a list of subtasks. Definitions import from TOML or YAML
files; instantiating one creates the parent task and one subtask per
entry. Template commands are single mode only.`,
}

var templateImportCmd = &cobra.Command{
	Use:   "import <file>...",
	Short: "Load template definitions from TOML or YAML files",
	Long: `Load template definitions from TOML or YAML files into the workspace.

EXAMPLE DEFINITION (release.toml):
  name = "Release checklist"
  default_priority = 1
  default_labels = ["release"]

  [[subtasks]]
  title = "Tag the release"

  [[subtasks]]
  title = "Update changelog"`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		agent, err := newAgent(client.Options{})
		if err != nil {
			return err
		}
		for _, path := range args {
			tpl, err := templates.Load(path)
			if err != nil {
				return err
			}
			saved, err := agent.SaveTemplate(tpl)
			if err != nil {
				return err
			}
			if jsonOutput {
				if err := printJSON(saved); err != nil {
					return err
				}
				continue
			}
			fmt.Printf("Imported %s (%s, %d subtasks)\n", saved.ID, saved.Name, len(saved.Subtasks))
		}
		return nil
	},
}

var templateListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored templates",
	RunE: func(cmd *cobra.Command, args []string) error {
		agent, err := newAgent(client.Options{})
		if err != nil {
			return err
		}
		tpls, err := agent.Templates()
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(tpls)
		}
		if len(tpls) == 0 {
			fmt.Println("No templates.")
			return nil
		}
		for _, tpl := range tpls {
			fmt.Printf("%s  P%d  %s (%d subtasks)\n",
				tpl.ID, tpl.DefaultPriority, tpl.Name, len(tpl.Subtasks))
		}
		return nil
	},
}

var templateDeleteCmd = &cobra.Command{
	Use:   "delete <template-id>",
	Short: "Remove a stored template",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		agent, err := newAgent(client.Options{})
		if err != nil {
			return err
		}
		if err := agent.DeleteTemplate(args[0]); err != nil {
			return err
		}
		fmt.Printf("Deleted %s\n", args[0])
		return nil
	},
}

var (
	applyTitle    string
	applyPriority int
	applyLabels   string
	applyBranch   string
)

var templateApplyCmd = &cobra.Command{
	Use:   "apply <template-id>",
	Short: "Create a task with subtasks from a template",
	Long: `Create a task with subtasks from a template. The template's defaults
fill anything not overridden by flags.

EXAMPLES:
  claudia template apply template-001
  claudia template apply template-001 --title "Release 2.4" --priority 0`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		agent, err := newAgent(client.Options{})
		if err != nil {
			return err
		}
		instArgs := state.InstantiateTemplateArgs{
			TemplateID: args[0],
			Title:      applyTitle,
			Labels:     parseLabels(applyLabels),
			Branch:     applyBranch,
		}
		if cmd.Flags().Changed("priority") {
			p := applyPriority
			instArgs.Priority = &p
		}
		t, err := agent.InstantiateTemplate(instArgs)
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(t)
		}
		fmt.Printf("Created %s with %d subtasks\n", t.ID, len(t.Subtasks))
		printTask(t)
		return nil
	},
}

func init() {
	templateApplyCmd.Flags().StringVar(&applyTitle, "title", "", "Title override (default: template name)")
	templateApplyCmd.Flags().IntVarP(&applyPriority, "priority", "p", 0, "Priority override 0-3")
	templateApplyCmd.Flags().StringVarP(&applyLabels, "labels", "l", "", "Extra labels (comma-separated)")
	templateApplyCmd.Flags().StringVar(&applyBranch, "branch", "", "Branch for the created task")

	templateCmd.AddCommand(templateImportCmd)
	templateCmd.AddCommand(templateListCmd)
	templateCmd.AddCommand(templateDeleteCmd)
	templateCmd.AddCommand(templateApplyCmd)
	rootCmd.AddCommand(templateCmd)
}
