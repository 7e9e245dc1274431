// Package botclient implements executor.BotInterface as an HTTP client
// against the Minecraft bot-interface process. It imports executor for its
// interface contract; executor never imports botclient.
package botclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/darianrosebrook/conscious-bot-experiment-sub003/core"
	"github.com/darianrosebrook/conscious-bot-experiment-sub003/executor"
)

// defaultTimeout bounds every bot-interface HTTP call.
const defaultTimeout = 10 * time.Second

// Client is an executor.BotInterface backed by plain net/http calls,
// following the same client-style the teacher uses for its own outbound
// service calls (orchestration/workflow_executor.go): a bare http.Client,
// context.WithTimeout per call, json.Marshal/Unmarshal, fmt.Errorf("%w").
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     core.Logger
}

var _ executor.BotInterface = (*Client)(nil)

func New(baseURL string, logger core.Logger) *Client {
	if logger == nil {
		logger = &core.NoOpLogger{}
	}
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: defaultTimeout},
		logger:     logger,
	}
}

func (c *Client) Inventory(ctx context.Context) (core.InventorySnapshot, error) {
	var out core.InventorySnapshot
	err := c.getJSON(ctx, "/inventory", &out)
	return out, err
}

func (c *Client) Position(ctx context.Context) (core.Position, error) {
	var out core.Position
	err := c.getJSON(ctx, "/position", &out)
	return out, err
}

func (c *Client) NearbyBlocks(ctx context.Context, radiusBlocks int) ([]core.BlockObservation, error) {
	var out []core.BlockObservation
	err := c.getJSON(ctx, fmt.Sprintf("/blocks/nearby?radius=%d", radiusBlocks), &out)
	return out, err
}

func (c *Client) Threat(ctx context.Context) (core.ThreatSignal, error) {
	var out core.ThreatSignal
	err := c.getJSON(ctx, "/threat", &out)
	return out, err
}

// Dispatch POSTs a leaf action and translates the bot interface's
// ActionResponse envelope into core.LeafResult.
func (c *Client) Dispatch(ctx context.Context, leaf string, args map[string]interface{}, dryRun bool) (core.LeafResult, error) {
	body, err := json.Marshal(map[string]interface{}{
		"leaf":   leaf,
		"args":   args,
		"dryRun": dryRun,
	})
	if err != nil {
		return core.LeafResult{}, fmt.Errorf("botclient: marshal dispatch request: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/actions/dispatch", bytes.NewReader(body))
	if err != nil {
		return core.LeafResult{}, fmt.Errorf("botclient: build dispatch request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return core.LeafResult{}, fmt.Errorf("botclient: dispatch %s: %w", leaf, err)
	}
	defer resp.Body.Close()

	var envelope core.ActionResponse
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return core.LeafResult{}, fmt.Errorf("botclient: decode dispatch response: %w", err)
	}

	return translateResponse(envelope, dryRun), nil
}

// translateResponse maps the bot interface's success/error envelope onto
// the executor's outcome/failure-code vocabulary.
func translateResponse(envelope core.ActionResponse, dryRun bool) core.LeafResult {
	if !envelope.Success {
		result := core.LeafResult{OK: false, Outcome: core.ActionOutcomeError}
		if envelope.Error != nil {
			result.Error = envelope.Error.Message
			result.FailureCode = failureCodeForCategory(envelope.Error.Category, envelope.Error.Retryable)
		}
		return result
	}

	outcome := core.ActionOutcomeExecuted
	if dryRun {
		outcome = core.ActionOutcomeShadow
	}

	data, _ := envelope.Data.(map[string]interface{})
	return core.LeafResult{OK: true, Outcome: outcome, Data: data}
}

// failureCodeForCategory maps the bot interface's error taxonomy onto the
// executor's deterministic/non-deterministic failure-code vocabulary
// (§4.F steps 15-16): non-retryable input/mapping errors are deterministic,
// everything else backs off and retries.
func failureCodeForCategory(category core.ErrorCategory, retryable bool) string {
	if !retryable {
		switch category {
		case core.CategoryInputError:
			return "INVALID_ARGS"
		case core.CategoryNotFound:
			return "MAPPING_FAILURE"
		case core.CategoryAuthError:
			return "CONTRACT_VIOLATION"
		}
	}
	return "TRANSIENT"
}

func (c *Client) getJSON(ctx context.Context, path string, out interface{}) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("botclient: build request for %s: %w", path, err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("botclient: request %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("botclient: %s returned status %d", path, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("botclient: decode response from %s: %w", path, err)
	}
	return nil
}
