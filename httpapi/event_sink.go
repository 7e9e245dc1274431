package httpapi

import (
	"github.com/darianrosebrook/conscious-bot-experiment-sub003/core"
	"github.com/darianrosebrook/conscious-bot-experiment-sub003/executor"
)

var _ executor.EventSink = (*SSEEventSink)(nil)

// SSEEventSink adapts the dashboard SSE broadcaster to executor.EventSink
// so the executor can publish lifecycle events without importing httpapi.
// SnapshotTask only re-broadcasts a lightweight status summary — the full
// task snapshot goes to the event store, not the dashboard feed.
type SSEEventSink struct {
	bus *Broadcaster
}

func NewSSEEventSink(bus *Broadcaster) *SSEEventSink {
	return &SSEEventSink{bus: bus}
}

func (s *SSEEventSink) AppendEvent(worldSeed, taskID, eventType string, data map[string]interface{}) {
	s.bus.Publish(eventType, taskID, data)
}

func (s *SSEEventSink) SnapshotTask(worldSeed string, t *core.Task) {
	s.bus.Publish("task_snapshot", t.ID, map[string]interface{}{
		"status":   string(t.Status),
		"progress": t.Progress,
	})
}
