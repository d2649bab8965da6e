package state

import (
	"sort"
	"time"

	"claudia/internal/errs"
	"claudia/internal/types"
)

// RegisterSessionArgs carries the fields of POST /session/register.
type RegisterSessionArgs struct {
	SessionID string     `json:"session_id"`
	Role      types.Role `json:"role,omitempty"`
	Context   string     `json:"context,omitempty"`
	Labels    []string   `json:"labels,omitempty"`
	Branch    string     `json:"branch,omitempty"`
}

// RegisterSession adds a session to the registry or refreshes an existing
// one. Re-registering is idempotent: identity fields update, started_at and
// any held claim survive.
func (s *State) RegisterSession(args RegisterSessionArgs) (*types.Session, error) {
	if args.SessionID == "" {
		return nil, errs.InvalidArgumentf("session_id is required")
	}
	role := args.Role
	if role == "" {
		role = types.RoleWorker
	}
	if !role.IsValid() {
		return nil, errs.InvalidArgumentf("invalid role %q", args.Role)
	}

	now := s.now()
	if sess, ok := s.Sessions[args.SessionID]; ok {
		sess.Role = role
		if args.Context != "" {
			sess.Context = args.Context
		}
		if args.Labels != nil {
			sess.Labels = append([]string(nil), args.Labels...)
		}
		if args.Branch != "" {
			sess.Branch = args.Branch
		}
		sess.LastHeartbeat = now

		ev := types.NewEvent(now, types.EventSessionStarted, sess.SessionID)
		ev.Reason = "refresh"
		s.logEvent(ev)
		return sess, nil
	}

	sess := &types.Session{
		SessionID:     args.SessionID,
		Role:          role,
		Context:       args.Context,
		Labels:        append([]string(nil), args.Labels...),
		Branch:        args.Branch,
		StartedAt:     now,
		LastHeartbeat: now,
	}
	s.Sessions[sess.SessionID] = sess

	s.logEvent(types.NewEvent(now, types.EventSessionStarted, sess.SessionID))
	return sess, nil
}

// Heartbeat refreshes a session's liveness stamp.
func (s *State) Heartbeat(sessionID string) (*types.Session, error) {
	sess, err := s.session(sessionID)
	if err != nil {
		return nil, err
	}
	sess.LastHeartbeat = s.now()
	return sess, nil
}

// EndSession removes a session from the registry. With release set, tasks
// it still holds return to the open pool.
func (s *State) EndSession(sessionID string, release bool) ([]string, error) {
	sess, err := s.session(sessionID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	var released []string
	if release {
		released = s.releaseClaims(sess.SessionID, "Released on session end")
	}
	delete(s.Sessions, sess.SessionID)

	ev := types.NewEvent(now, types.EventSessionEnded, sess.SessionID)
	ev.Released = released
	s.logEvent(ev)
	return released, nil
}

// CleanupStale ends every session whose heartbeat is older than the
// threshold, releasing its claims. Returns the ids of the sessions removed.
func (s *State) CleanupStale(threshold time.Duration) []string {
	now := s.now()

	var stale []string
	for id, sess := range s.Sessions {
		if now.Sub(sess.LastHeartbeat) > threshold {
			stale = append(stale, id)
		}
	}
	sort.Strings(stale)

	for _, id := range stale {
		released := s.releaseClaims(id, "Released from stale session "+id)
		delete(s.Sessions, id)

		ev := types.NewEvent(now, types.EventSessionEnded, id)
		ev.Reason = "stale"
		ev.Released = released
		s.logEvent(ev)
	}
	return stale
}

// releaseClaims returns every task the session holds to the open pool.
func (s *State) releaseClaims(sessionID, note string) []string {
	now := s.now()
	var released []string
	for _, t := range s.Tasks {
		if t.Assignee != sessionID {
			continue
		}
		t.Status = types.StatusOpen
		t.Assignee = ""
		t.AddNote(now, "system", note)
		t.UpdatedAt = now
		released = append(released, t.ID)
	}
	if sess, ok := s.Sessions[sessionID]; ok {
		sess.WorkingOn = ""
	}
	return released
}
