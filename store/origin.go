package store

import "github.com/darianrosebrook/conscious-bot-experiment-sub003/core"

// inferTaskOrigin implements the top-down origin rules (§4.B). It runs once,
// at finalize, and the result is never mutated afterward.
func inferTaskOrigin(t *core.Task) core.TaskOrigin {
	now := t.Metadata.CreatedAt

	if t.Metadata.TaskProvenance != "" {
		return core.TaskOrigin{Kind: core.OriginExecutor, ParentTaskID: t.Metadata.ParentTaskID, CreatedAt: now}
	}

	if t.Source == core.SourceAutonomous {
		return core.TaskOrigin{Kind: core.OriginCognition, CreatedAt: now}
	}

	if t.Source == core.SourceGoal {
		if t.Metadata.GoalBinding != nil {
			return core.TaskOrigin{
				Kind:          core.OriginGoalResolver,
				ParentGoalKey: t.Metadata.GoalBinding.GoalKey,
				CreatedAt:     now,
			}
		}
		return core.TaskOrigin{Kind: core.OriginGoalSource, CreatedAt: now}
	}

	return core.TaskOrigin{Kind: core.OriginAPI, CreatedAt: now}
}
