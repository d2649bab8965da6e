package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"claudia/internal/client"
	"claudia/internal/ui"
)

var (
	dashboardFollow   bool
	dashboardInterval time.Duration
)

var dashboardCmd = &cobra.Command{
	Use:     "dashboard",
	GroupID: groupSessions,
	Short:   "Render the backlog and session overview",
	Long: `Render the backlog and session overview.

With --follow the dashboard redraws whenever the state files change,
falling back to polling when the directory cannot be watched. Heartbeat
staleness shows as warn at 60s and danger at 120s; reclaim itself only
happens at the cleanup threshold.

EXAMPLES:
  claudia dashboard
  claudia dashboard --follow`,
	RunE: func(cmd *cobra.Command, args []string) error {
		agent, err := newAgent(client.Options{})
		if err != nil {
			return err
		}
		if !dashboardFollow {
			return renderDashboard(agent)
		}
		return followDashboard(cmd, agent)
	},
}

func renderDashboard(agent *client.Agent) error {
	report, err := agent.Status()
	if err != nil {
		return err
	}
	printStatusReport(report)
	fmt.Println()
	fmt.Println(ui.RenderSeparator())
	return nil
}

// followDashboard redraws on file changes. tasks.json and the sessions
// directory cover every state transition worth showing; a ticker redraw
// keeps heartbeat ages honest between writes.
func followDashboard(cmd *cobra.Command, agent *client.Agent) error {
	stateDir := agent.Store().Dir()

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		watcher = nil
	} else if werr := watcher.Add(stateDir); werr != nil {
		_ = watcher.Close()
		watcher = nil
	}
	if watcher != nil {
		defer func() { _ = watcher.Close() }()
	} else {
		fmt.Fprintf(os.Stderr, "Watching unavailable, polling every %s\n", dashboardInterval)
	}

	redraw := func() {
		fmt.Print("\033[H\033[2J") // clear screen, cursor home
		if err := renderDashboard(agent); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		fmt.Println(ui.RenderMuted("Following changes... (Ctrl+C to exit)"))
	}
	redraw()

	ticker := time.NewTicker(dashboardInterval)
	defer ticker.Stop()

	var debounce *time.Timer
	defer func() {
		if debounce != nil {
			debounce.Stop()
		}
	}()

	// Nil channels block forever, so the select below degrades to
	// ticker-only polling when watching is unavailable.
	var events <-chan fsnotify.Event
	var errorsCh <-chan error
	if watcher != nil {
		events = watcher.Events
		errorsCh = watcher.Errors
	}

	for {
		select {
		case <-cmd.Context().Done():
			fmt.Fprintln(os.Stderr, "\nStopped.")
			return nil
		case <-ticker.C:
			redraw()
		case event, ok := <-events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Remove) {
				continue
			}
			// Only state files matter; ignore the lock and tmp churn.
			switch base := filepath.Base(event.Name); {
			case base == "tasks.json", base == ".parallel-mode", filepath.Ext(base) == ".jsonl":
			case filepath.Base(filepath.Dir(event.Name)) == "sessions":
			default:
				continue
			}
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(250*time.Millisecond, redraw)
		case werr, ok := <-errorsCh:
			if !ok {
				return nil
			}
			fmt.Fprintf(os.Stderr, "Watcher error: %v\n", werr)
		}
	}
}

func init() {
	dashboardCmd.Flags().BoolVarP(&dashboardFollow, "follow", "f", false, "Redraw on state changes")
	dashboardCmd.Flags().DurationVar(&dashboardInterval, "interval", 5*time.Second, "Redraw interval while following")
	rootCmd.AddCommand(dashboardCmd)
}
