package executor

import (
	"context"
	"fmt"

	"github.com/darianrosebrook/conscious-bot-experiment-sub003/core"
	"github.com/darianrosebrook/conscious-bot-experiment-sub003/store"
)

// reflectToSubtasks implements the cognitive-reflection short-circuit
// (§4.F step 10): a reflection task carrying concrete actionable subtask
// descriptions in its parameters is converted into real tasks and marked
// complete; one with nothing actionable is left active for a future cycle
// (cognition may still enrich it).
func (e *Executor) reflectToSubtasks(ctx context.Context, t *core.Task) bool {
	raw, ok := t.Parameters["actionableSubtasks"].([]interface{})
	if !ok || len(raw) == 0 {
		return false
	}

	spawned := 0
	for i, entry := range raw {
		desc, ok := entry.(map[string]interface{})
		if !ok {
			continue
		}
		taskType, _ := desc["type"].(string)
		title, _ := desc["title"].(string)
		if taskType == "" {
			continue
		}
		params, _ := desc["parameters"].(map[string]interface{})

		_, err := e.store.AddTask(fmt.Sprintf("%s-reflect-%d", t.ID, i), store.CreateTaskInput{
			Type:         taskType,
			Source:       core.SourceAutonomous,
			Title:        title,
			Parameters:   params,
			ParentTaskID: t.ID,
		})
		if err != nil {
			e.logger.Warn("reflection subtask creation failed", map[string]interface{}{"taskId": t.ID, "error": err.Error()})
			continue
		}
		spawned++
	}

	if spawned == 0 {
		return false
	}

	_ = e.store.UpdateTaskStatus(t.ID, core.TaskStatusCompleted, store.StatusOriginRuntime)
	return true
}
