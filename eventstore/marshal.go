package eventstore

import "github.com/darianrosebrook/conscious-bot-experiment-sub003/core"

// toJSONB passes data through as-is; pgx encodes map[string]interface{} and
// struct values to JSONB directly via its driver-level JSON support, so no
// intermediate marshal step is needed here.
func toJSONB(data map[string]interface{}) map[string]interface{} {
	if data == nil {
		return map[string]interface{}{}
	}
	return data
}

// taskToMap projects the fields worth snapshotting into a plain map so the
// JSONB column stores a stable shape independent of core.Task's Go tags.
func taskToMap(t *core.Task) map[string]interface{} {
	return map[string]interface{}{
		"id":       t.ID,
		"type":     t.Type,
		"source":   t.Source,
		"status":   t.Status,
		"priority": t.Priority,
		"progress": t.Progress,
		"steps":    t.Steps,
		"metadata": t.Metadata,
	}
}
