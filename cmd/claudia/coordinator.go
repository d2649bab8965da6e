package main

import (
	"context"
	"fmt"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"claudia/internal/client"
	"claudia/internal/config"
	"claudia/internal/coordinator"
	"claudia/internal/store"
	"claudia/internal/telemetry"
	"claudia/internal/types"
)

var coordinatorCmd = &cobra.Command{
	Use:     "coordinator",
	GroupID: groupSessions,
	Short:   "Run and manage the parallel-mode coordinator",
	Long: `Run and manage the parallel-mode coordinator.

The coordinator is a background process that owns the state directory,
keeps the backlog in memory, and serializes every mutation over HTTP.
While it runs, a .parallel-mode sentinel switches all clients in this
directory to parallel mode.`,
}

var coordinatorStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Start a coordinator in the background",
	Long: `Start a coordinator in the background and register this session as
its main session. Clients in this state directory switch to parallel
mode once the sentinel appears.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		agent, err := newAgent(client.Options{Role: types.RoleMain})
		if err != nil {
			return err
		}
		if agent.StaleSentinel() {
			if err := confirmStaleCleanup(agent); err != nil {
				return err
			}
		}
		sn, err := agent.StartParallel(cmd.Context())
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(sn)
		}
		fmt.Printf("Coordinator on port %d (main session %s)\n", sn.Port, sn.MainSession)
		return nil
	},
}

var coordinatorStopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the running coordinator",
	Long: `Stop the running coordinator and return the state directory to
single mode. Escalates to a kill if the process ignores the stop signal,
then clears the sentinel and pid files either way.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		agent, err := newAgent(client.Options{})
		if err != nil {
			return err
		}
		if err := agent.StopParallel(); err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(map[string]bool{"ok": true})
		}
		fmt.Println("Coordinator stopped.")
		return nil
	},
}

var coordinatorStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Report the execution mode of the state directory",
	RunE: func(cmd *cobra.Command, args []string) error {
		agent, err := newAgent(client.Options{})
		if err != nil {
			return err
		}
		if agent.StaleSentinel() {
			fmt.Println("A coordinator sentinel is present but its process is dead.")
			if err := confirmStaleCleanup(agent); err != nil {
				return err
			}
		}

		mode, sn, _ := client.Detect(agent.Store())
		if jsonOutput {
			out := map[string]any{"mode": mode}
			if mode == client.ModeParallel {
				out["port"] = sn.Port
				out["main_session"] = sn.MainSession
			}
			return printJSON(out)
		}
		if mode == client.ModeParallel {
			fmt.Printf("parallel mode: coordinator on port %d (main session %s)\n",
				sn.Port, sn.MainSession)
		} else {
			fmt.Println("single mode: no coordinator running")
		}
		return nil
	},
}

var runMainSession string

// coordinatorRunCmd is the foreground process behind "coordinator start".
// Hidden: agents normally never invoke it directly.
var coordinatorRunCmd = &cobra.Command{
	Use:    "run",
	Short:  "Run the coordinator in the foreground",
	Hidden: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.Current()
		if err := telemetry.Init(cmd.Context(), "claudia-coordinator", Version); err != nil {
			return err
		}
		// Flush on a fresh context: cmd.Context() is already cancelled
		// by the time the deferred shutdown runs.
		defer telemetry.Shutdown(context.Background())

		sto, err := store.Open(cfg.StateDir, cfg.LockTimeout)
		if err != nil {
			return err
		}
		srv := coordinator.New(sto, cfg, runMainSession)
		return srv.Run(cmd.Context())
	},
}

// confirmStaleCleanup removes dead-coordinator runtime files, asking
// first when a human is on the other end.
func confirmStaleCleanup(agent *client.Agent) error {
	if isInteractive() {
		var clean bool
		err := huh.NewConfirm().
			Title("A previous coordinator exited without cleaning up.").
			Description("Remove its .parallel-mode and coordinator.pid files?").
			Affirmative("Clean up").
			Negative("Leave them").
			Value(&clean).
			Run()
		if err != nil {
			return err
		}
		if !clean {
			return fmt.Errorf("stale coordinator files left in place")
		}
	}
	return agent.CleanStaleSentinel()
}

func init() {
	coordinatorRunCmd.Flags().StringVar(&runMainSession, "main-session", "", "Session id recorded as the run's main session")

	coordinatorCmd.AddCommand(coordinatorStartCmd)
	coordinatorCmd.AddCommand(coordinatorStopCmd)
	coordinatorCmd.AddCommand(coordinatorStatusCmd)
	coordinatorCmd.AddCommand(coordinatorRunCmd)
	rootCmd.AddCommand(coordinatorCmd)
}
