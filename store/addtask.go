package store

import (
	"fmt"
	"time"

	"github.com/darianrosebrook/conscious-bot-experiment-sub003/core"
)

// AddTask runs the full creation pipeline (§4.A): goal-resolver gate,
// Sterling dedupe reservation, similarity dedupe, plan generation, metadata
// projection, priority/urgency normalization, and finalize. It is the only
// entry point tasks are created through; callers never construct and
// persist a *core.Task by hand.
func (s *TaskStore) AddTask(id string, in CreateTaskInput) (*core.Task, error) {
	// Step 1: goal-resolver gate.
	if in.Source == core.SourceGoal && GoalResolverGatedTypes[in.Type] && s.goalResolver != nil {
		goalType, _ := in.Parameters["goalType"].(string)
		verifier, _ := in.Metadata["verifier"].(string)
		result, err := s.goalResolver.ResolveOrCreate(GoalResolveRequest{
			GoalType:     goalType,
			IntentParams: in.Parameters,
			Verifier:     verifier,
		})
		if err != nil {
			return nil, fmt.Errorf("goal resolver gate failed: %w", err)
		}
		switch result.Action {
		case GoalActionContinue, GoalActionAlreadySatisfied:
			if t, ok := s.Get(result.TaskID); ok {
				return t, nil
			}
		case GoalActionCreated:
			if t, ok := s.Get(result.TaskID); ok {
				// resolver produced a skeleton; caller's steps/metadata enrich it
				// and execution continues at metadata projection (step 5).
				return s.enrichAndFinalize(t, in)
			}
		}
	}

	// Step 2: Sterling dedupe reservation.
	var sterlingDedupeKey string
	if in.Type == "sterling_ir" {
		if digest, ok := digestFromMetadata(in.Metadata); ok {
			sterlingDedupeKey = s.dedupeKey(digest)
			if s.sterlingReserver != nil {
				if existingID, reserved := s.sterlingReserver.TryReserve(sterlingDedupeKey); !reserved {
					if t, ok := s.Get(existingID); ok {
						return t, nil
					}
				}
			}
			if existing, ok := s.FindBySterlingDedupeKey(sterlingDedupeKey); ok {
				return existing, nil
			}
		}
	}

	// Step 3: similarity dedupe.
	if existing, ok := s.FindSimilarPending(in.Type, in.Source, in.Title); ok {
		return existing, nil
	}

	t := core.NewTask(id, in.Type, in.Source, in.Parameters)
	t.Category = in.Category
	t.Title = in.Title
	t.Description = in.Description
	t.Steps = in.Steps

	// Step 4: plan generation.
	if in.Type == "advisory_action" {
		t.Metadata.BlockedReason = "advisory_action"
	} else if len(t.Steps) == 0 && s.planner != nil {
		plan, err := s.planner.Plan(t)
		if err != nil {
			return nil, fmt.Errorf("plan generation failed: %w", err)
		}
		if plan.NoStepsReason != "" {
			t.Status = core.TaskStatusPendingPlanning
			t.Steps = []core.Step{{
				ID:   core.NewStepID(),
				Meta: core.StepMeta{Blocked: true},
			}}
			t.Metadata.BlockedReason = plan.NoStepsReason
		} else {
			t.Steps = plan.Steps
			t.Metadata.Solver.Route = plan.Route
		}
	}

	s.projectMetadataStep5(t, in.Metadata)
	s.normalizePriorityUrgency(t, in.Priority, in.Urgency)
	if in.ParentTaskID != "" {
		t.Metadata.ParentTaskID = in.ParentTaskID
	}

	if err := s.finalizeNewTask(t, sterlingDedupeKey); err != nil {
		return nil, err
	}
	return t, nil
}

// enrichAndFinalize merges caller-supplied steps/metadata onto a
// goal-resolver skeleton task and continues the creation pipeline from
// metadata projection onward (§4.A step 1 -> step 5).
func (s *TaskStore) enrichAndFinalize(skeleton *core.Task, in CreateTaskInput) (*core.Task, error) {
	if len(in.Steps) > 0 {
		skeleton.Steps = in.Steps
	}
	s.projectMetadataStep5(skeleton, in.Metadata)
	s.normalizePriorityUrgency(skeleton, in.Priority, in.Urgency)

	if err := s.finalizeNewTask(skeleton, ""); err != nil {
		return nil, err
	}
	return skeleton, nil
}

func (s *TaskStore) projectMetadataStep5(t *core.Task, raw map[string]interface{}) {
	now := time.Now()
	fresh := core.Metadata{
		CreatedAt:  now,
		UpdatedAt:  now,
		MaxRetries: 3,
		Solver:     t.Metadata.Solver, // plan generation may have already populated this.
		Stage:      t.Metadata.Stage,
		GoalBinding: t.Metadata.GoalBinding, // preserve skeleton binding from the goal resolver.
	}
	if t.Metadata.BlockedReason != "" {
		fresh.BlockedReason = t.Metadata.BlockedReason
	}
	projectMetadata(&fresh, raw, s.warnDroppedKeyOnce)
	t.Metadata = fresh
}

func (s *TaskStore) normalizePriorityUrgency(t *core.Task, priority, urgency interface{}) {
	if priority != nil {
		t.Priority = normalizeUnit(priority)
	}
	if urgency != nil {
		t.Urgency = normalizeUnit(urgency)
	}
}

func digestFromMetadata(raw map[string]interface{}) (string, bool) {
	sterlingMeta, ok := raw["sterling"].(map[string]interface{})
	if !ok {
		return "", false
	}
	digest, ok := sterlingMeta["committedIrDigest"].(string)
	if !ok || digest == "" {
		return "", false
	}
	return digest, true
}
