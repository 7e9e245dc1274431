package sterling

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/darianrosebrook/conscious-bot-experiment-sub003/core"
	"github.com/darianrosebrook/conscious-bot-experiment-sub003/store"
)

// EpisodeOutcome classifies a reported execution episode.
type EpisodeOutcome string

const (
	OutcomeExecutionSuccess EpisodeOutcome = "EXECUTION_SUCCESS"
	OutcomeExecutionFailure EpisodeOutcome = "EXECUTION_FAILURE"
)

// EpisodeReport is the wire payload sent back to Sterling for the building
// domain at terminal state (§4.E).
type EpisodeReport struct {
	TaskID       string                 `json:"taskId"`
	TemplateID   string                 `json:"templateId,omitempty"`
	PlanID       string                 `json:"planId,omitempty"`
	Outcome      EpisodeOutcome         `json:"outcome"`
	DetailReason string                 `json:"detailReason,omitempty"`
	Substrate    map[string]interface{} `json:"substrate,omitempty"`
}

// joinKeyWarningCap bounds the warn-once-per-(taskId,domain,reasonCategory)
// dedupe set, matching the plain capped-map cache pattern already used
// elsewhere in this codebase rather than pulling in an LRU library for a
// bookkeeping structure this small.
const joinKeyWarningCap = 1000

type warnedKeySet struct {
	mu    sync.Mutex
	seen  map[string]bool
	order []string
}

func newWarnedKeySet() *warnedKeySet {
	return &warnedKeySet{seen: make(map[string]bool)}
}

// warnOnce reports true the first time key is seen, false on every repeat.
// Once the set reaches joinKeyWarningCap it evicts the oldest entry before
// inserting the new one.
func (w *warnedKeySet) warnOnce(key string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.seen[key] {
		return false
	}
	if len(w.order) >= joinKeyWarningCap {
		oldest := w.order[0]
		w.order = w.order[1:]
		delete(w.seen, oldest)
	}
	w.seen[key] = true
	w.order = append(w.order, key)
	return true
}

// EpisodeReporter reports building-domain execution episodes back to
// Sterling, fire-and-forget, and on ack persists the episode hash without
// clobbering concurrent mutations (re-reads the latest task before
// writing).
type EpisodeReporter struct {
	httpClient *http.Client
	baseURL    string
	store      *store.TaskStore
	logger     core.Logger
	warned     *warnedKeySet
}

// NewEpisodeReporter creates an EpisodeReporter bound to a Sterling base
// URL and the task store whose solver slot receives the ack'd episode hash.
func NewEpisodeReporter(baseURL string, taskStore *store.TaskStore, logger core.Logger) *EpisodeReporter {
	if logger == nil {
		logger = &core.NoOpLogger{}
	}
	if cal, ok := logger.(core.ComponentAwareLogger); ok {
		logger = cal.WithComponent("planner/sterling/episode")
	}
	return &EpisodeReporter{
		httpClient: &http.Client{Timeout: 10 * time.Second},
		baseURL:    baseURL,
		store:      taskStore,
		logger:     logger,
		warned:     newWarnedKeySet(),
	}
}

// Report builds and fires an episode report for a terminal building-domain
// task. It never blocks the caller on network I/O failure — errors are
// logged, not returned, matching the spec's fire-and-forget contract.
func (r *EpisodeReporter) Report(t *core.Task) {
	if t.Type != "building" {
		return
	}
	solver := t.Metadata.Solver

	report := EpisodeReport{
		TaskID:     t.ID,
		TemplateID: solver.BuildingTemplateID,
		PlanID:     solver.BuildingPlanID,
	}

	reasonCategory, linked := r.validateJoinKeys(t)
	if !linked {
		if r.warned.warnOnce(fmt.Sprintf("%s:%s:%s", t.ID, t.Type, reasonCategory)) {
			r.logger.Warn("episode join keys failed validation, omitting linkage hashes", map[string]interface{}{
				"taskId": t.ID, "reason": reasonCategory,
			})
		}
		report.DetailReason = reasonCategory
	}

	report.Outcome = r.classifyOutcome(t, linked)

	go r.send(t.ID, report)
}

func (r *EpisodeReporter) validateJoinKeys(t *core.Task) (reasonCategory string, linked bool) {
	keys := t.Metadata.Solver.BuildingSolveJoinKeys
	if keys == nil {
		return "missing_join_keys", false
	}
	keyPlanID, _ := keys["planId"].(string)
	if keyPlanID != t.Metadata.Solver.BuildingPlanID {
		return "plan_id_mismatch", false
	}
	if solverID, present := keys["solverId"]; present {
		if s, ok := solverID.(string); !ok || s != BuildingSolverID {
			return "solver_id_mismatch", false
		}
	}
	return "", true
}

func (r *EpisodeReporter) classifyOutcome(t *core.Task, linked bool) EpisodeOutcome {
	if t.Status == core.TaskStatusCompleted {
		return OutcomeExecutionSuccess
	}
	if linked {
		substrate := t.Metadata.Solver.BuildingSolveResultSubstrate
		keys := t.Metadata.Solver.BuildingSolveJoinKeys
		if substrate != nil && keys != nil {
			bundleHash, _ := substrate["bundleHash"].(string)
			keyBundleHash, _ := keys["bundleHash"].(string)
			planIDsMatch := t.Metadata.Solver.BuildingPlanID == keys["planId"]
			if bundleHash != "" && bundleHash == keyBundleHash && planIDsMatch {
				if code, ok := substrate["failureClass"].(string); ok && code != "" {
					return EpisodeOutcome(code)
				}
			}
		}
	}
	return OutcomeExecutionFailure
}

func (r *EpisodeReporter) send(taskID string, report EpisodeReport) {
	body, err := json.Marshal(report)
	if err != nil {
		r.logger.Warn("episode report marshal failed", map[string]interface{}{"taskId": taskID, "error": err.Error()})
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+"/episodes", bytes.NewReader(body))
	if err != nil {
		r.logger.Warn("episode report request build failed", map[string]interface{}{"taskId": taskID, "error": err.Error()})
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.httpClient.Do(req)
	if err != nil {
		r.logger.Warn("episode report send failed", map[string]interface{}{"taskId": taskID, "error": err.Error()})
		return
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		r.logger.Warn("episode report rejected", map[string]interface{}{"taskId": taskID, "status": resp.StatusCode})
		return
	}

	var ack struct {
		EpisodeHash string `json:"episodeHash"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&ack); err != nil || ack.EpisodeHash == "" {
		return
	}

	r.persistEpisodeHash(taskID, ack.EpisodeHash)
}

// persistEpisodeHash writes through the store's locked update path, so a
// concurrent mutation on the same task is never clobbered, and clears the
// consumed substrate.
func (r *EpisodeReporter) persistEpisodeHash(taskID, episodeHash string) {
	if err := r.store.SetEpisodeHash(taskID, "building", episodeHash); err != nil {
		r.logger.Warn("persisting episode hash failed", map[string]interface{}{"taskId": taskID, "error": err.Error()})
	}
}
