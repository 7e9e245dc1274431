// Package store holds the in-memory task store, its creation pipeline, and
// the single finalizer every creation path funnels through before a task
// becomes visible to the executor.
package store

import "github.com/darianrosebrook/conscious-bot-experiment-sub003/core"

// AllowedMetadataKeys is the explicit allowlist applied when projecting
// caller-supplied metadata onto a new task. Anything outside this set is
// dropped rather than merged onto the fresh metadata struct.
var AllowedMetadataKeys = map[string]bool{
	"goalKey":        true,
	"subtaskKey":     true,
	"taskProvenance": true,
	"sterling":       true,
}

// projectMetadata copies allowlisted fields from incoming raw metadata onto
// dst, invoking onDropped once per rejected key (used for a warning logged
// once per key, not once per task; the warning is logged in every mode, not
// only in dev mode).
func projectMetadata(dst *core.Metadata, raw map[string]interface{}, onDropped func(key string)) {
	for key, value := range raw {
		if !AllowedMetadataKeys[key] {
			if onDropped != nil {
				onDropped(key)
			}
			continue
		}

		switch key {
		case "goalKey":
			if s, ok := value.(string); ok {
				dst.GoalKey = s
			}
		case "subtaskKey":
			if s, ok := value.(string); ok {
				dst.SubtaskKey = s
			}
		case "taskProvenance":
			if s, ok := value.(string); ok {
				dst.TaskProvenance = s
			}
		case "sterling":
			if m, ok := value.(map[string]interface{}); ok {
				dst.Sterling = m
			}
		}
	}
}
