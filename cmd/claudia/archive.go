package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/common"
	"github.com/olebedev/when/rules/en"
	"github.com/spf13/cobra"

	"claudia/internal/client"
	"claudia/internal/types"
)

var (
	archiveOlderThan string
	archiveDryRun    bool
	archiveLimit     int
)

var archiveCmd = &cobra.Command{
	Use:     "archive",
	GroupID: groupMaint,
	Short:   "Move old completed tasks into the archive log",
	Long: `Move old completed tasks into the archive log.

Done tasks whose last update is older than the cutoff leave the live
backlog and append to archive.jsonl, which is never rewritten. The
cutoff accepts a day count or a natural-language phrase. Archival is
single mode only and cannot be undone.

EXAMPLES:
  claudia archive --older-than 30
  claudia archive --older-than "two weeks ago"
  claudia archive --older-than 7 --dry-run`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cutoff, daysOld, err := parseCutoff(archiveOlderThan)
		if err != nil {
			return err
		}

		agent, err := newAgent(client.Options{})
		if err != nil {
			return err
		}

		if archiveDryRun {
			st, err := agent.Store().Load()
			if err != nil {
				return err
			}
			candidates := st.ArchiveCandidates(cutoff)
			if jsonOutput {
				return printJSON(map[string]any{"would_archive": taskIDs(candidates)})
			}
			if len(candidates) == 0 {
				fmt.Println("Nothing to archive.")
				return nil
			}
			fmt.Printf("Would archive %d tasks:\n", len(candidates))
			for _, t := range candidates {
				printTask(t)
			}
			return nil
		}

		archived, err := agent.ArchiveOlderThan(cutoff, daysOld)
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(map[string]any{"archived": taskIDs(archived)})
		}
		if len(archived) == 0 {
			fmt.Println("Nothing to archive.")
			return nil
		}
		fmt.Printf("Archived %d tasks.\n", len(archived))
		return nil
	},
}

var archiveListCmd = &cobra.Command{
	Use:   "list",
	Short: "List archived tasks, most recent first",
	RunE: func(cmd *cobra.Command, args []string) error {
		agent, err := newAgent(client.Options{})
		if err != nil {
			return err
		}
		archived, err := agent.Archived(archiveLimit)
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(archived)
		}
		if len(archived) == 0 {
			fmt.Println("Archive is empty.")
			return nil
		}
		for _, t := range archived {
			printTask(t)
		}
		return nil
	},
}

var archiveRestoreCmd = &cobra.Command{
	Use:   "restore <task-id>",
	Short: "Bring an archived task back into the backlog",
	Long: `Bring an archived task back into the backlog as an open task. The
task keeps its id unless the id has been reused since, in which case it
comes back under a fresh one.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		agent, err := newAgent(client.Options{})
		if err != nil {
			return err
		}
		t, err := agent.RestoreFromArchive(args[0])
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(t)
		}
		if t.ID != args[0] {
			fmt.Printf("Restored %s as %s (id was reused)\n", args[0], t.ID)
		} else {
			fmt.Printf("Restored %s\n", t.ID)
		}
		printTask(t)
		return nil
	},
}

// parseCutoff turns --older-than into an absolute cutoff. A bare number
// counts days; anything else goes through natural-language parsing.
func parseCutoff(input string) (time.Time, int, error) {
	now := time.Now().UTC()
	if days, err := strconv.Atoi(input); err == nil {
		if days < 0 {
			return time.Time{}, 0, fmt.Errorf("--older-than days cannot be negative")
		}
		return now.AddDate(0, 0, -days), days, nil
	}

	w := when.New(nil)
	w.Add(en.All...)
	w.Add(common.All...)
	r, err := w.Parse(input, now)
	if err != nil || r == nil {
		return time.Time{}, 0, fmt.Errorf("cannot parse --older-than %q (want a day count or a phrase like %q)", input, "two weeks ago")
	}
	cutoff := r.Time.UTC()
	if cutoff.After(now) {
		// "in two weeks" style phrases point forward; mirror them back.
		cutoff = now.Add(-cutoff.Sub(now))
	}
	days := int(now.Sub(cutoff).Hours() / 24)
	return cutoff, days, nil
}

func taskIDs(tasks []*types.Task) []string {
	ids := make([]string, 0, len(tasks))
	for _, t := range tasks {
		ids = append(ids, t.ID)
	}
	return ids
}

func init() {
	archiveCmd.Flags().StringVar(&archiveOlderThan, "older-than", "30",
		"Cutoff: days, or a phrase like \"two weeks ago\"")
	archiveCmd.Flags().BoolVar(&archiveDryRun, "dry-run", false, "Show what would be archived without doing it")
	archiveListCmd.Flags().IntVar(&archiveLimit, "limit", 20, "How many archived tasks to list (0 = all)")

	archiveCmd.AddCommand(archiveListCmd)
	archiveCmd.AddCommand(archiveRestoreCmd)
	rootCmd.AddCommand(archiveCmd)
}
