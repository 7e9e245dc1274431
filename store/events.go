package store

import "github.com/darianrosebrook/conscious-bot-experiment-sub003/core"

// EventType names the events TaskStore emits. httpapi's SSE writer and the
// dashboard outbox both subscribe through Listener rather than importing
// TaskStore internals.
type EventType string

const (
	EventTaskAdded          EventType = "taskAdded"
	EventHighPriorityAdded  EventType = "high_priority_added"
	EventSolverUnavailable  EventType = "solver_unavailable"
	EventGoalBindingDrift   EventType = "goal_binding_drift"
	EventTaskStatusChanged  EventType = "taskStatusChanged"
	EventTaskProgressUpdate EventType = "taskProgressUpdated"
)

// Event is a single store notification. Reason carries event-specific
// detail (e.g. Reason holds the goal_binding_drift cause or the
// solver-unavailable blocked reason).
type Event struct {
	Type   EventType
	Task   *core.Task
	Reason string
}

// Listener receives store events. Implementations must not block; the
// store calls listeners synchronously from within the method that produced
// the event.
type Listener func(Event)

func (s *TaskStore) emit(evt Event) {
	s.listenersMu.RLock()
	defer s.listenersMu.RUnlock()
	for _, l := range s.listeners {
		l(evt)
	}
}

// Subscribe registers a listener for store events. Returns an unsubscribe
// function.
func (s *TaskStore) Subscribe(l Listener) func() {
	s.listenersMu.Lock()
	defer s.listenersMu.Unlock()
	id := len(s.listeners)
	s.listeners = append(s.listeners, l)
	return func() {
		s.listenersMu.Lock()
		defer s.listenersMu.Unlock()
		if id < len(s.listeners) {
			s.listeners[id] = func(Event) {}
		}
	}
}
