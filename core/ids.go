package core

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/google/uuid"
)

// NewTaskID generates a unique task identifier.
func NewTaskID(prefix string) string {
	return prefix + "-" + uuid.New().String()[:8]
}

// NewStepID generates a unique step identifier within a task.
func NewStepID() string {
	return "step-" + uuid.New().String()[:8]
}

// NewSubtaskKey generates a stable dedupe key for a prerequisite-injected
// subtask from (kind, outputPattern, quantity, parentId) — identical
// deficits for the same parent collapse onto the same key rather than
// spawning duplicates (§4.I).
func NewSubtaskKey(kind, outputPattern string, quantity int, parentTaskID string) string {
	h := sha256.New()
	fmt.Fprintf(h, "%s|%s|%d|%s", kind, outputPattern, quantity, parentTaskID)
	return hex.EncodeToString(h.Sum(nil))
}
