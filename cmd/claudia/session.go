package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"claudia/internal/client"
	"claudia/internal/types"
)

var sessionCmd = &cobra.Command{
	Use:     "session",
	GroupID: groupSessions,
	Short:   "Register, refresh and end sessions",
}

var (
	registerRole    string
	registerContext string
	registerLabels  string
	registerBranch  string
)

var sessionRegisterCmd = &cobra.Command{
	Use:   "register",
	Short: "Announce this session to the backlog",
	Long: `Announce this session to the backlog. Registering an id that is
already known refreshes its metadata in place.

The session id comes from --session or $CLAUDIA_SESSION_ID; without
either a fresh id is generated and printed, and later commands must pass
it back explicitly.

EXAMPLES:
  claudia session register --session worker-1 --labels backend,db
  claudia session register --session main-1 --role main --context "release prep"`,
	RunE: func(cmd *cobra.Command, args []string) error {
		role := types.Role(registerRole)
		if !role.IsValid() {
			return fmt.Errorf("unknown role %q (want main or worker)", registerRole)
		}
		agent, err := newAgent(client.Options{
			Role:    role,
			Context: registerContext,
			Labels:  parseLabels(registerLabels),
			Branch:  registerBranch,
		})
		if err != nil {
			return err
		}
		sess, err := agent.Register()
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(sess)
		}
		fmt.Printf("Registered %s (%s)\n", sess.SessionID, sess.Role)
		if len(sess.Labels) > 0 {
			fmt.Printf("Labels: %s\n", strings.Join(sess.Labels, ", "))
		}
		return nil
	},
}

var sessionHeartbeatCmd = &cobra.Command{
	Use:   "heartbeat",
	Short: "Refresh this session's liveness stamp",
	RunE: func(cmd *cobra.Command, args []string) error {
		agent, err := newAgent(client.Options{})
		if err != nil {
			return err
		}
		if err := agent.Heartbeat(); err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(map[string]bool{"ok": true})
		}
		fmt.Println("ok")
		return nil
	},
}

var endKeepTasks bool

var sessionEndCmd = &cobra.Command{
	Use:   "end",
	Short: "Deregister this session",
	Long: `Deregister this session. A task the session was working on returns to
the open pool unless --keep-tasks, which leaves it in_progress for a
graceful hand-off.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		agent, err := newAgent(client.Options{})
		if err != nil {
			return err
		}
		if err := agent.End(!endKeepTasks); err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(map[string]bool{"ok": true})
		}
		fmt.Printf("Ended %s\n", agent.SessionID())
		return nil
	},
}

var sessionCleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Release sessions whose heartbeat has gone stale",
	Long: `Release sessions whose heartbeat is older than the cleanup threshold
(default 180s), returning their tasks to the open pool. In parallel mode
the coordinator runs this sweep on its own; the command exists for
single-mode workspaces and manual repair.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		agent, err := newAgent(client.Options{})
		if err != nil {
			return err
		}
		stale, err := agent.Cleanup()
		if err != nil {
			return err
		}
		if jsonOutput {
			if stale == nil {
				stale = []string{}
			}
			return printJSON(map[string]any{"released": stale})
		}
		if len(stale) == 0 {
			fmt.Println("No stale sessions.")
			return nil
		}
		fmt.Printf("Released %s\n", strings.Join(stale, ", "))
		return nil
	},
}

func init() {
	sessionRegisterCmd.Flags().StringVar(&registerRole, "role", string(types.RoleWorker), "Session role: main or worker")
	sessionRegisterCmd.Flags().StringVar(&registerContext, "context", "", "What this session is doing")
	sessionRegisterCmd.Flags().StringVarP(&registerLabels, "labels", "l", "", "Label interests (comma-separated)")
	sessionRegisterCmd.Flags().StringVar(&registerBranch, "branch", "", "Branch this session works on")
	sessionEndCmd.Flags().BoolVar(&endKeepTasks, "keep-tasks", false, "Leave claimed tasks in_progress instead of releasing them")

	sessionCmd.AddCommand(sessionRegisterCmd)
	sessionCmd.AddCommand(sessionHeartbeatCmd)
	sessionCmd.AddCommand(sessionEndCmd)
	sessionCmd.AddCommand(sessionCleanupCmd)
	rootCmd.AddCommand(sessionCmd)
}
