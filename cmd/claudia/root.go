package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"claudia/internal/client"
	"claudia/internal/config"
	"claudia/internal/types"
	"claudia/internal/ui"
)

// Persistent flags shared by every command.
var (
	stateDirFlag string
	sessionFlag  string
	jsonOutput   bool
	logLevelFlag string
)

var rootCmd = &cobra.Command{
	Use:   "claudia",
	Short: "claudia - Shared backlog coordination for coding agents",
	Long: `Claudia coordinates work between interactive coding sessions sharing one
project. Sessions claim tasks from a shared backlog, report progress, and
release or complete them.

The backlog lives in a state directory (default .agent-state). With no
coordinator running, commands work directly against the files under an
advisory lock. "claudia coordinator start" switches the directory to
parallel mode: a background process serializes all mutations and every
client talks to it over HTTP with the same semantics.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := config.Initialize(projectDir()); err != nil {
			return err
		}
		if cmd.Flags().Changed("state-dir") {
			config.Set(config.KeyStateDir, stateDirFlag)
		}
		if cmd.Flags().Changed("log-level") {
			config.Set(config.KeyLogLevel, logLevelFlag)
		}
		setupLogging(config.GetString(config.KeyLogLevel))
		return nil
	},
	Run: func(cmd *cobra.Command, args []string) {
		if v, _ := cmd.Flags().GetBool("version"); v {
			fmt.Printf("claudia version %s\n", Version)
			return
		}
		_ = cmd.Help()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&stateDirFlag, "state-dir", "",
		"State directory (default: .agent-state, or state_dir from config)")
	rootCmd.PersistentFlags().StringVar(&sessionFlag, "session", "",
		"Session id to act as (default: $CLAUDIA_SESSION_ID, or a generated id)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false,
		"Output in JSON format")
	rootCmd.PersistentFlags().StringVar(&logLevelFlag, "log-level", "",
		"Log level: debug, info, warn, error")

	rootCmd.Flags().BoolP("version", "V", false, "Print version information")

	rootCmd.AddGroup(
		&cobra.Group{ID: groupTasks, Title: "Working With Tasks:"},
		&cobra.Group{ID: groupSessions, Title: "Sessions & Coordination:"},
		&cobra.Group{ID: groupMaint, Title: "Maintenance:"},
	)
}

// Help groups.
const (
	groupTasks    = "tasks"
	groupSessions = "sessions"
	groupMaint    = "maint"
)

// projectDir returns the directory whose .claudia.yaml applies: the parent
// of an explicit state dir, otherwise the working directory.
func projectDir() string {
	if stateDirFlag != "" {
		return filepath.Dir(stateDirFlag)
	}
	dir, err := os.Getwd()
	if err != nil {
		return "."
	}
	return dir
}

// setupLogging points slog at stderr so command output on stdout stays
// clean for piping.
func setupLogging(level string) {
	var lv slog.Level
	if err := lv.UnmarshalText([]byte(level)); err != nil {
		lv = slog.LevelInfo
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lv})))
}

// sessionID resolves the identity commands act under.
func sessionID() string {
	if sessionFlag != "" {
		return sessionFlag
	}
	return os.Getenv("CLAUDIA_SESSION_ID")
}

// newAgent builds the client façade for the configured state directory.
func newAgent(opts client.Options) (*client.Agent, error) {
	if opts.SessionID == "" {
		opts.SessionID = sessionID()
	}
	return client.New(config.Current(), opts)
}

// printJSON writes v as indented JSON on stdout.
func printJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}

// printTask writes a one-line task summary: id, priority, status, title,
// labels.
func printTask(t *types.Task) {
	line := fmt.Sprintf("%s  %s  %s  %s",
		ui.RenderAccent(t.ID),
		ui.RenderPriority(t.Priority),
		ui.RenderStatus(t.Status),
		t.Title)
	if len(t.Labels) > 0 {
		line += "  " + ui.RenderMuted("["+strings.Join(t.Labels, ", ")+"]")
	}
	if t.Assignee != "" {
		line += "  " + ui.RenderMuted("@"+t.Assignee)
	}
	fmt.Println(line)
}

// parseLabels splits a comma-separated label list, lowercasing and
// dropping empties.
func parseLabels(s string) []string {
	var labels []string
	for _, l := range parseList(s) {
		labels = append(labels, strings.ToLower(l))
	}
	return labels
}

// parseList splits a comma-separated list, dropping empties.
func parseList(s string) []string {
	if s == "" {
		return nil
	}
	var items []string
	for _, item := range strings.Split(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}

// isInteractive reports whether prompting with a form is possible.
func isInteractive() bool {
	return ui.IsInteractive()
}
