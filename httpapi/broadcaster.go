package httpapi

import (
	"encoding/json"
	"sync"
)

// LifecycleEvent is one structured event published to the dashboard's SSE
// feed (§4.F "user-visible behavior": every mutation emits one of these).
type LifecycleEvent struct {
	Type   string                 `json:"type"`
	TaskID string                 `json:"taskId,omitempty"`
	Data   map[string]interface{} `json:"data,omitempty"`
}

// Broadcaster fans one published event out to every current SSE
// subscriber. Slow or gone subscribers are dropped rather than blocking
// the publisher — a bounded per-subscriber channel that's full just skips
// that subscriber for this event.
type Broadcaster struct {
	mu          sync.Mutex
	subscribers map[chan LifecycleEvent]bool
}

func NewBroadcaster() *Broadcaster {
	return &Broadcaster{subscribers: make(map[chan LifecycleEvent]bool)}
}

// Publish implements executor.EventSink-shaped usage loosely: callers pass
// a type and a free-form data map. It never blocks on a slow reader.
func (b *Broadcaster) Publish(eventType, taskID string, data map[string]interface{}) {
	evt := LifecycleEvent{Type: eventType, TaskID: taskID, Data: data}
	b.mu.Lock()
	defer b.mu.Unlock()
	for ch := range b.subscribers {
		select {
		case ch <- evt:
		default:
		}
	}
}

func (b *Broadcaster) subscribe() chan LifecycleEvent {
	ch := make(chan LifecycleEvent, 32)
	b.mu.Lock()
	b.subscribers[ch] = true
	b.mu.Unlock()
	return ch
}

func (b *Broadcaster) unsubscribe(ch chan LifecycleEvent) {
	b.mu.Lock()
	delete(b.subscribers, ch)
	b.mu.Unlock()
	close(ch)
}

func encodeSSE(evt LifecycleEvent) ([]byte, error) {
	return json.Marshal(evt)
}
