package store

import "github.com/darianrosebrook/conscious-bot-experiment-sub003/core"

// FindNonTerminalByGoalKey scans for a non-terminal task bound to the given
// (goalType, goalKey) pair — the uniqueness check backing goal-resolver
// dedup (§4.C, invariant 1).
func (s *TaskStore) FindNonTerminalByGoalKey(goalType, goalKey string) (*core.Task, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, t := range s.byID {
		if t.Status.IsTerminal() {
			continue
		}
		if !t.IsGoalBound() {
			continue
		}
		gb := t.Metadata.GoalBinding
		if gb.GoalType == goalType && gb.GoalKey == goalKey {
			return t, true
		}
	}
	return nil, false
}

// FindCompletedByGoalKey returns a completed task bound to (goalType,
// goalKey), if one exists, so the resolver can ask whether it still
// satisfies the goal before creating a new one.
func (s *TaskStore) FindCompletedByGoalKey(goalType, goalKey string) (*core.Task, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, t := range s.byID {
		if t.Status != core.TaskStatusCompleted {
			continue
		}
		if !t.IsGoalBound() {
			continue
		}
		gb := t.Metadata.GoalBinding
		if gb.GoalType == goalType && gb.GoalKey == goalKey {
			return t, true
		}
	}
	return nil, false
}

// ReserveSkeleton inserts a goal-resolver skeleton task directly into the
// byID index ahead of finalization, tagged Stage="skeleton", so concurrent
// resolveOrCreate calls observe it via FindNonTerminalByGoalKey immediately.
// The caller (goal.Resolver) still routes the skeleton through AddTask's
// enrichment path once steps are generated.
func (s *TaskStore) ReserveSkeleton(t *core.Task) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byID[t.ID] = t
}
