package state

import (
	"claudia/internal/errs"
	"claudia/internal/types"
)

// StartTimer begins or resumes time tracking on a task. Starting an
// already-running timer is a no-op.
func (s *State) StartTimer(taskID, sessionID string) (*types.Task, error) {
	t, err := s.task(taskID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	tt := t.TimeTracking
	switch {
	case tt == nil:
		t.TimeTracking = &types.TimeTracking{StartedAt: &now, IsRunning: true}
	case tt.IsRunning:
		return t, nil
	default:
		// Fresh start or resume from pause; accumulated seconds carry over.
		tt.StartedAt = &now
		tt.IsRunning = true
		tt.IsPaused = false
	}
	t.UpdatedAt = now

	ev := types.NewEvent(now, types.EventTimerStarted, sessionID)
	ev.TaskID = t.ID
	s.logEvent(ev)
	return t, nil
}

// StopTimer halts time tracking, folding the running interval into the
// task's total.
func (s *State) StopTimer(taskID, sessionID string) (*types.Task, error) {
	t, err := s.task(taskID)
	if err != nil {
		return nil, err
	}
	tt := t.TimeTracking
	if tt == nil || (!tt.IsRunning && !tt.IsPaused) {
		return nil, errs.Conflictf("task %s has no active timer", t.ID)
	}

	now := s.now()
	var elapsed float64
	if tt.IsRunning && tt.StartedAt != nil {
		elapsed = now.Sub(*tt.StartedAt).Seconds()
		tt.TotalSeconds += elapsed
	}
	tt.StartedAt = nil
	tt.IsRunning = false
	tt.IsPaused = false
	t.UpdatedAt = now

	ev := types.NewEvent(now, types.EventTimerStopped, sessionID)
	ev.TaskID = t.ID
	ev.Elapsed = elapsed
	s.logEvent(ev)
	return t, nil
}

// PauseTimer suspends a running timer, folding the interval so far into the
// total. Resume with StartTimer.
func (s *State) PauseTimer(taskID, sessionID string) (*types.Task, error) {
	t, err := s.task(taskID)
	if err != nil {
		return nil, err
	}
	tt := t.TimeTracking
	if tt == nil || !tt.IsRunning {
		return nil, errs.Conflictf("task %s has no running timer", t.ID)
	}

	now := s.now()
	var elapsed float64
	if tt.StartedAt != nil {
		elapsed = now.Sub(*tt.StartedAt).Seconds()
		tt.TotalSeconds += elapsed
	}
	tt.StartedAt = nil
	tt.IsRunning = false
	tt.IsPaused = true
	t.UpdatedAt = now

	ev := types.NewEvent(now, types.EventTimerPaused, sessionID)
	ev.TaskID = t.ID
	ev.Elapsed = elapsed
	s.logEvent(ev)
	return t, nil
}
