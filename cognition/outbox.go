// Package cognition implements the fire-and-forget outbox that posts
// lifecycle events, batched thought acks, and memory telemetry to the
// external cognition/memory/dashboard services (§5 "Fire-and-forget
// writes", §9 "Cognition outbox"). Nothing here ever blocks the executor:
// every send goes through a bounded queue and is dropped (with a logged
// warning) rather than applying backpressure.
package cognition

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/darianrosebrook/conscious-bot-experiment-sub003/core"
)

const (
	defaultTimeout       = 10 * time.Second
	defaultFlushInterval = 2 * time.Second
	defaultQueueSize     = 256
)

// Outbox batches thought acks (merged into one request per flush, per
// spec) and ships one-shot lifecycle/telemetry posts through a bounded
// job queue drained by a small worker pool, mirroring the executor's own
// ticker+select periodic-loop shape (executor.go) for the batched side
// and botclient/sterling's plain net/http call style for the sends
// themselves.
type Outbox struct {
	cognitionURL string
	memoryURL    string
	dashboardURL string

	httpClient    *http.Client
	logger        core.Logger
	flushInterval time.Duration

	mu          sync.Mutex
	pendingAcks map[string]bool

	jobs   chan func(context.Context)
	done   chan struct{}
	wg     sync.WaitGroup
	cancel context.CancelFunc
}

// Option configures an Outbox at construction.
type Option func(*Outbox)

func WithFlushInterval(d time.Duration) Option { return func(o *Outbox) { o.flushInterval = d } }
func WithQueueSize(n int) Option {
	return func(o *Outbox) { o.jobs = make(chan func(context.Context), n) }
}
func WithLogger(logger core.Logger) Option {
	return func(o *Outbox) {
		if cal, ok := logger.(core.ComponentAwareLogger); ok {
			o.logger = cal.WithComponent("planner/cognition")
			return
		}
		o.logger = logger
	}
}
func WithHTTPClient(c *http.Client) Option { return func(o *Outbox) { o.httpClient = c } }

// New builds an Outbox targeting the three external services. Any blank
// URL disables sends to that service (calls become no-ops).
func New(cognitionURL, memoryURL, dashboardURL string, opts ...Option) *Outbox {
	o := &Outbox{
		cognitionURL:  cognitionURL,
		memoryURL:     memoryURL,
		dashboardURL:  dashboardURL,
		httpClient:    &http.Client{Timeout: defaultTimeout},
		logger:        &core.NoOpLogger{},
		flushInterval: defaultFlushInterval,
		pendingAcks:   make(map[string]bool),
		jobs:          make(chan func(context.Context), defaultQueueSize),
		done:          make(chan struct{}),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Start launches the worker pool and the batched-ack flush ticker. A
// cancellable context derived from ctx governs every outbound call this
// outbox makes; Stop cancels it.
func (o *Outbox) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	o.cancel = cancel

	const workerCount = 2
	o.wg.Add(workerCount + 1)
	for i := 0; i < workerCount; i++ {
		go o.runWorker(ctx)
	}
	go o.runFlushLoop(ctx)
}

// Stop cancels in-flight sends and waits for the worker pool to drain.
func (o *Outbox) Stop() {
	if o.cancel != nil {
		o.cancel()
	}
	close(o.done)
	o.wg.Wait()
}

func (o *Outbox) runWorker(ctx context.Context) {
	defer o.wg.Done()
	for {
		select {
		case job := <-o.jobs:
			job(ctx)
		case <-ctx.Done():
			return
		}
	}
}

func (o *Outbox) runFlushLoop(ctx context.Context) {
	defer o.wg.Done()
	ticker := time.NewTicker(o.flushInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			o.flushAcks(ctx)
		case <-ctx.Done():
			return
		case <-o.done:
			return
		}
	}
}

// enqueue submits a job without ever blocking the caller; a full queue
// drops the job and logs a warning (§5 item 5: failure never propagates
// to the executor).
func (o *Outbox) enqueue(label string, job func(ctx context.Context)) {
	select {
	case o.jobs <- job:
	default:
		o.logger.Warn("cognition outbox queue full, dropping send", map[string]interface{}{"job": label})
	}
}

// AckThought queues a thought id for the next batched ack flush.
func (o *Outbox) AckThought(thoughtID string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.pendingAcks[thoughtID] = true
}

func (o *Outbox) flushAcks(ctx context.Context) {
	o.mu.Lock()
	if len(o.pendingAcks) == 0 {
		o.mu.Unlock()
		return
	}
	ids := make([]string, 0, len(o.pendingAcks))
	for id := range o.pendingAcks {
		ids = append(ids, id)
	}
	o.pendingAcks = make(map[string]bool)
	o.mu.Unlock()

	o.enqueue("cognition_ack_batch", func(ctx context.Context) {
		o.postJSON(ctx, o.cognitionURL, "/api/cognitive-stream/ack", map[string]interface{}{"thoughtIds": ids})
	})
}

// PublishLifecycleEvent mirrors one structured lifecycle event to both
// cognition (for LLM review of failure/completion) and the dashboard
// (for its cognitive-stream view).
func (o *Outbox) PublishLifecycleEvent(eventType, taskID string, data map[string]interface{}) {
	payload := map[string]interface{}{"type": eventType, "taskId": taskID, "data": data}
	o.enqueue("cognition_event:"+eventType, func(ctx context.Context) {
		o.postJSON(ctx, o.cognitionURL, "/api/cognitive-stream/events", payload)
	})
	o.enqueue("dashboard_task_update:"+eventType, func(ctx context.Context) {
		o.postJSON(ctx, o.dashboardURL, "/api/task-updates", payload)
	})
}

// TaskReview sends a completed or failed task to cognition for review.
// Non-terminal statuses are not reviewable and this is a no-op for them.
func (o *Outbox) TaskReview(t *core.Task) {
	if !t.Status.IsTerminal() {
		return
	}
	o.enqueue("cognition_task_review:"+t.ID, func(ctx context.Context) {
		o.postJSON(ctx, o.cognitionURL, "/api/cognitive-stream/task-review", t)
	})
}

// MemoryTelemetry forwards a free-form telemetry payload to the memory
// service.
func (o *Outbox) MemoryTelemetry(payload map[string]interface{}) {
	o.enqueue("memory_telemetry", func(ctx context.Context) {
		o.postJSON(ctx, o.memoryURL, "/telemetry", payload)
	})
}

// MemoryState forwards a world/bot state snapshot to the memory service.
func (o *Outbox) MemoryState(payload map[string]interface{}) {
	o.enqueue("memory_state", func(ctx context.Context) {
		o.postJSON(ctx, o.memoryURL, "/state", payload)
	})
}

// DashboardMemoryUpdate mirrors a memory update to the dashboard's feed.
func (o *Outbox) DashboardMemoryUpdate(payload map[string]interface{}) {
	o.enqueue("dashboard_memory_update", func(ctx context.Context) {
		o.postJSON(ctx, o.dashboardURL, "/api/memory-updates", payload)
	})
}

// AppendEvent and SnapshotTask give Outbox the same shape as
// executor.EventSink (structurally, without an import back to executor)
// so cmd/planner can fan a dispatch outcome out to the event store, the
// dashboard SSE feed, and cognition through one seam.
func (o *Outbox) AppendEvent(worldSeed, taskID, eventType string, data map[string]interface{}) {
	o.PublishLifecycleEvent(eventType, taskID, data)
}

func (o *Outbox) SnapshotTask(worldSeed string, t *core.Task) {
	o.TaskReview(t)
}

func (o *Outbox) postJSON(ctx context.Context, baseURL, path string, payload interface{}) {
	if baseURL == "" {
		return
	}
	body, err := json.Marshal(payload)
	if err != nil {
		o.logger.Warn("cognition outbox: marshal failed", map[string]interface{}{"path": path, "error": err.Error()})
		return
	}

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL+path, bytes.NewReader(body))
	if err != nil {
		o.logger.Warn("cognition outbox: build request failed", map[string]interface{}{"path": path, "error": err.Error()})
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.httpClient.Do(req)
	if err != nil {
		o.logger.Warn("cognition outbox: send failed", map[string]interface{}{"path": path, "error": err.Error()})
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		o.logger.Warn("cognition outbox: non-2xx response", map[string]interface{}{"path": path, "status": fmt.Sprintf("%d", resp.StatusCode)})
	}
}
