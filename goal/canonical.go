// Package goal implements the goal-binding resolver (§4.C): at-most-one
// non-terminal task per (goalType, goalKey), backed by a canonical,
// deterministic hash of the goal's identifying parameters.
package goal

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math"
	"sort"
)

// CanonicalizeIntentParams produces a stable, deterministic JSON encoding of
// an intent-params map: keys sorted recursively, floats that are exact
// integers rendered without a decimal point, and anything json.Marshal
// can't represent collapsed to a `__unserializable__:<kind>` sentinel so it
// never silently merges with "no intent params" (an absent vs. empty
// distinction the goal key must preserve).
// maxCanonicalizeDepth guards against runaway/circular structures; past
// this depth the value fails closed to absent rather than hanging or
// stack-overflowing (§4.C "circular -> fail-closed to absent").
const maxCanonicalizeDepth = 64

func CanonicalizeIntentParams(params map[string]interface{}) string {
	if params == nil {
		return "null"
	}
	out := canonicalizeValue(params, 0)
	if out == "" {
		// raw-present but canonicalized-absent (depth limit hit, likely a
		// circular structure) — sentinel so this never merges with "no
		// intent params" (which canonicalizes to "null").
		return "\"__unserializable__:map[string]interface {}\""
	}
	return out
}

func canonicalizeValue(v interface{}, depth int) string {
	if depth > maxCanonicalizeDepth {
		return ""
	}
	switch val := v.(type) {
	case nil:
		return "null"
	case string:
		b, _ := json.Marshal(val)
		return string(b)
	case bool:
		if val {
			return "true"
		}
		return "false"
	case float64:
		return canonicalizeNumber(val)
	case int:
		return fmt.Sprintf("%d", val)
	case int64:
		return fmt.Sprintf("%d", val)
	case map[string]interface{}:
		return canonicalizeMap(val, depth)
	case []interface{}:
		return canonicalizeSlice(val, depth)
	default:
		return fmt.Sprintf("\"__unserializable__:%T\"", v)
	}
}

func canonicalizeNumber(f float64) string {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return "\"__unserializable__:float64\""
	}
	if f == math.Trunc(f) {
		return fmt.Sprintf("%d", int64(f))
	}
	return fmt.Sprintf("%g", f)
}

func canonicalizeMap(m map[string]interface{}, depth int) string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := "{"
	for i, k := range keys {
		if i > 0 {
			out += ","
		}
		kb, _ := json.Marshal(k)
		cv := canonicalizeValue(m[k], depth+1)
		if cv == "" {
			return ""
		}
		out += string(kb) + ":" + cv
	}
	return out + "}"
}

func canonicalizeSlice(s []interface{}, depth int) string {
	out := "["
	for i, v := range s {
		if i > 0 {
			out += ","
		}
		cv := canonicalizeValue(v, depth+1)
		if cv == "" {
			return ""
		}
		out += cv
	}
	return out + "]"
}

// bucketSize is the coarse-bucketing granularity (in blocks) applied to bot
// position before it contributes to the goal key, so two resolveOrCreate
// calls a step or two apart still collapse onto the same goal.
const bucketSize = 8.0

// coarseBucketPosition rounds x/y/z down to the nearest bucketSize so minor
// positional noise doesn't fragment the dedupe key.
func coarseBucketPosition(pos map[string]interface{}) string {
	if pos == nil {
		return "null"
	}
	bucket := func(key string) int64 {
		v, ok := pos[key].(float64)
		if !ok {
			return 0
		}
		return int64(math.Floor(v / bucketSize))
	}
	return fmt.Sprintf("{\"x\":%d,\"y\":%d,\"z\":%d}", bucket("x"), bucket("y"), bucket("z"))
}

// computeGoalKey hashes (goalType, canonicalIntentParams, verifier,
// coarse-bucketed botPosition) into the canonical deduplication key (§4.C).
func computeGoalKey(goalType, canonicalIntentParams, verifier string, botPosition map[string]interface{}) string {
	h := sha256.New()
	h.Write([]byte(goalType))
	h.Write([]byte{0})
	h.Write([]byte(canonicalIntentParams))
	h.Write([]byte{0})
	h.Write([]byte(verifier))
	h.Write([]byte{0})
	h.Write([]byte(coarseBucketPosition(botPosition)))
	return hex.EncodeToString(h.Sum(nil))
}
