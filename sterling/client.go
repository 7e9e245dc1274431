// Package sterling adapts the external Sterling solver service into a
// store.PlannerAdapter: it generates steps for a task, computes the step
// digest used for replan comparison, and reports execution episodes back
// to the solver for the building domain (§4.E).
package sterling

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/darianrosebrook/conscious-bot-experiment-sub003/core"
	"github.com/darianrosebrook/conscious-bot-experiment-sub003/resilience"
	"github.com/darianrosebrook/conscious-bot-experiment-sub003/store"
)

// BuildingSolverID is compared against a reported episode's join keys to
// validate linkage before persisting an episode hash (§4.E).
const BuildingSolverID = "sterling-building-v1"

// Client calls the external Sterling planner service over HTTP and
// implements store.PlannerAdapter.
type Client struct {
	httpClient *http.Client
	baseURL    string
	logger     core.Logger

	macroPlanner  MacroPlanner
	feedbackStore FeedbackStore

	breaker *resilience.CircuitBreaker
}

// MacroPlanner is the Rig E hierarchical planner hook
// (setMacroPlanner in the spec).
type MacroPlanner interface {
	GenerateDynamicSteps(ctx context.Context, task *core.Task) ([]core.Step, error)
}

// FeedbackStore persists macro-planner feedback across replans
// (setFeedbackStore in the spec).
type FeedbackStore interface {
	RecordFeedback(taskID string, feedback map[string]interface{}) error
}

// Option configures a Client at construction.
type Option func(*Client)

func WithLogger(logger core.Logger) Option {
	return func(c *Client) {
		if cal, ok := logger.(core.ComponentAwareLogger); ok {
			c.logger = cal.WithComponent("planner/sterling")
			return
		}
		c.logger = logger
	}
}

func WithHTTPClient(hc *http.Client) Option { return func(c *Client) { c.httpClient = hc } }

// WithMacroPlanner wires a Rig E hierarchical planner.
func WithMacroPlanner(mp MacroPlanner) Option { return func(c *Client) { c.macroPlanner = mp } }

// WithFeedbackStore wires Rig E feedback persistence.
func WithFeedbackStore(fs FeedbackStore) Option { return func(c *Client) { c.feedbackStore = fs } }

// New creates a Client pointed at a Sterling service base URL. Carries its
// own circuit breaker (§4.E, "the adapter already carries a breaker for
// solver calls") so GET /sterling/health can report solver reachability
// without a separate health-check path.
func New(baseURL string, opts ...Option) *Client {
	breakerCfg := resilience.DefaultConfig()
	breakerCfg.Name = "sterling-client"
	breaker, _ := resilience.NewCircuitBreaker(breakerCfg)

	c := &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		logger:     &core.NoOpLogger{},
		breaker:    breaker,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// planRequest mirrors the wire shape the external Sterling service expects:
// a partial task plus any current world-state observation.
type planRequest struct {
	Title       string                 `json:"title"`
	Type        string                 `json:"type"`
	Description string                 `json:"description"`
	Parameters  map[string]interface{} `json:"parameters"`
	Metadata    map[string]interface{} `json:"metadata,omitempty"`
}

type planResponse struct {
	Steps         []core.Step `json:"steps"`
	NoStepsReason string      `json:"noStepsReason,omitempty"`
	Route         string      `json:"route,omitempty"`
}

// Plan implements store.PlannerAdapter: POSTs the task to the Sterling
// service's /plan endpoint and translates the response.
func (c *Client) Plan(t *core.Task) (store.PlanResult, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	body, err := json.Marshal(planRequest{
		Title:       t.Title,
		Type:        t.Type,
		Description: t.Description,
		Parameters:  t.Parameters,
	})
	if err != nil {
		return store.PlanResult{}, fmt.Errorf("marshaling plan request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/plan", bytes.NewReader(body))
	if err != nil {
		return store.PlanResult{}, fmt.Errorf("creating plan request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return store.PlanResult{}, fmt.Errorf("calling sterling planner: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return store.PlanResult{}, fmt.Errorf("reading plan response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return store.PlanResult{}, fmt.Errorf("sterling planner returned status %d: %s", resp.StatusCode, string(respBody))
	}

	var parsed planResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return store.PlanResult{}, fmt.Errorf("parsing plan response: %w", err)
	}

	return store.PlanResult{Steps: parsed.Steps, NoStepsReason: parsed.NoStepsReason, Route: parsed.Route}, nil
}

// replanRequest carries the failing task plus its failure context to the
// Sterling service's /replan endpoint (§4.F step 16 repair gate, §8
// boundary scenario 6 "replan digest no-change").
type replanRequest struct {
	Title          string                 `json:"title"`
	Type           string                 `json:"type"`
	Parameters     map[string]interface{} `json:"parameters"`
	FailureContext map[string]interface{} `json:"failureContext"`
}

// Replan implements executor.Replanner: POSTs the task and its failure
// context to /replan and returns the regenerated steps. The executor
// compares the resulting StepsDigest against the prior attempt itself
// (§4.F step 16) — this call only produces candidate steps.
func (c *Client) Replan(ctx context.Context, t *core.Task, failureContext map[string]interface{}) ([]core.Step, error) {
	body, err := json.Marshal(replanRequest{
		Title:          t.Title,
		Type:           t.Type,
		Parameters:     t.Parameters,
		FailureContext: failureContext,
	})
	if err != nil {
		return nil, fmt.Errorf("marshaling replan request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/replan", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating replan request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calling sterling replanner: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading replan response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("sterling replanner returned status %d: %s", resp.StatusCode, string(respBody))
	}

	var parsed planResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, fmt.Errorf("parsing replan response: %w", err)
	}
	return parsed.Steps, nil
}

// GenerateDynamicSteps delegates to the Rig E macro planner when one is
// configured, else reports no hierarchical plan available.
func (c *Client) GenerateDynamicSteps(ctx context.Context, t *core.Task) ([]core.Step, error) {
	if c.macroPlanner == nil {
		return nil, fmt.Errorf("no macro planner configured")
	}
	return c.macroPlanner.GenerateDynamicSteps(ctx, t)
}

// SolveCrafting calls the crafting domain solver's /crafting/solve
// endpoint through the client's breaker, for the httpapi.CraftingSolver
// seam behind POST /sterling/crafting/solve.
func (c *Client) SolveCrafting(ctx context.Context, req map[string]interface{}) (map[string]interface{}, error) {
	var out map[string]interface{}
	err := c.breaker.Execute(ctx, func() error {
		body, err := json.Marshal(req)
		if err != nil {
			return fmt.Errorf("marshaling crafting solve request: %w", err)
		}

		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/crafting/solve", bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("creating crafting solve request: %w", err)
		}
		httpReq.Header.Set("Content-Type", "application/json")

		resp, err := c.httpClient.Do(httpReq)
		if err != nil {
			return fmt.Errorf("calling crafting solver: %w", err)
		}
		defer func() { _ = resp.Body.Close() }()

		if resp.StatusCode != http.StatusOK {
			respBody, _ := io.ReadAll(resp.Body)
			return fmt.Errorf("crafting solver returned status %d: %s", resp.StatusCode, string(respBody))
		}

		return json.NewDecoder(resp.Body).Decode(&out)
	})
	return out, err
}

// Health reports the breaker's own state rather than issuing a separate
// probe request, per SPEC_FULL.md §C.
func (c *Client) Health(ctx context.Context) (map[string]interface{}, error) {
	metrics := c.breaker.GetMetrics()
	metrics["state"] = c.breaker.GetState()
	return metrics, nil
}

// FetchBotContext pulls current world-state observation the task was
// planned against, used to refresh plan context on replan.
func (c *Client) FetchBotContext(ctx context.Context) (map[string]interface{}, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/context", nil)
	if err != nil {
		return nil, fmt.Errorf("creating context request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching bot context: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	var ctxOut map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&ctxOut); err != nil {
		return nil, fmt.Errorf("parsing bot context: %w", err)
	}
	return ctxOut, nil
}
