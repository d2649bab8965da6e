// Package claudia provides a minimal public API for embedding the
// coordination core in other Go programs.
//
// Most integrations should use the claudia CLI or the coordinator's HTTP
// API. This package exports only the essential types and the client
// entry point for programs that want to drive the backlog directly.
package claudia

import (
	"claudia/internal/client"
	"claudia/internal/config"
	"claudia/internal/state"
	"claudia/internal/types"
)

// Core types for working with the backlog.
type (
	Task     = types.Task
	Session  = types.Session
	Template = types.Template
	Status   = types.Status
	Role     = types.Role
)

// Status constants.
const (
	StatusOpen       = types.StatusOpen
	StatusInProgress = types.StatusInProgress
	StatusDone       = types.StatusDone
	StatusBlocked    = types.StatusBlocked
)

// Role constants.
const (
	RoleMain   = types.RoleMain
	RoleWorker = types.RoleWorker
)

// Operation argument types, re-exported for callers of Agent methods.
type (
	CreateTaskArgs    = state.CreateTaskArgs
	CreateSubtaskArgs = state.CreateSubtaskArgs
	CompleteTaskArgs  = state.CompleteTaskArgs
	ReopenTaskArgs    = state.ReopenTaskArgs
	EditTaskArgs      = state.EditTaskArgs
)

// Agent is the mode-polymorphic client: the same operations work against
// a local state directory or a running coordinator.
type Agent = client.Agent

// Options identify the session an Agent acts under.
type Options = client.Options

// NewAgent opens the state directory and binds to whichever execution
// mode it is in. An empty stateDir uses the configured default.
func NewAgent(stateDir string, opts Options) (*Agent, error) {
	cfg := config.Current()
	if stateDir != "" {
		cfg.StateDir = stateDir
	}
	return client.New(cfg, opts)
}
