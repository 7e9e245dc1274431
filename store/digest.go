package store

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/darianrosebrook/conscious-bot-experiment-sub003/core"
)

// StepsDigest computes a stable hash over the plan's step labels (falling
// back to step id when a label is absent). Used as a cheap fingerprint for
// replan comparison (by the executor and the Sterling adapter) and episode
// coherence checks.
func StepsDigest(steps []core.Step) string {
	return stepsDigest(steps)
}

func stepsDigest(steps []core.Step) string {
	h := sha256.New()
	for _, s := range steps {
		key := s.Label
		if key == "" {
			key = s.ID
		}
		h.Write([]byte(key))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}
