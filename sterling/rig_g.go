package sterling

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/darianrosebrook/conscious-bot-experiment-sub003/executor"
)

var _ executor.RigGAdvisor = (*RigGAdvisor)(nil)

// RigGAdvisor calls the external feasibility-gate endpoint. Its
// AdviseExecution is the single pure-evaluation path shared by live
// dispatch and shadow-mode dry-run evaluation: both call it the same way,
// the difference is entirely in what the executor does with the result
// (dispatch.go never mutates state on the shadow path regardless of what
// this returns).
type RigGAdvisor struct {
	httpClient *http.Client
	baseURL    string
}

func NewRigGAdvisor(baseURL string) *RigGAdvisor {
	return &RigGAdvisor{httpClient: &http.Client{}, baseURL: baseURL}
}

type rigGRequest struct {
	TaskID      string `json:"taskId"`
	StepID      string `json:"stepId"`
	StepsDigest string `json:"stepsDigest"`
}

type rigGResponse struct {
	ShouldProceed bool   `json:"shouldProceed"`
	Reason        string `json:"reason,omitempty"`
}

// AdviseExecution asks the feasibility gate whether the current plan is
// still physically realizable (terrain changed, obstruction appeared,
// etc). A request error degrades to shouldProceed=true — a Rig G outage
// should not block execution outright; the verification engine catches a
// genuinely infeasible action after the fact.
func (a *RigGAdvisor) AdviseExecution(ctx context.Context, meta executor.RigGMeta) (bool, error) {
	body, err := json.Marshal(rigGRequest{TaskID: meta.TaskID, StepID: meta.StepID, StepsDigest: meta.StepsDigest})
	if err != nil {
		return true, fmt.Errorf("sterling: marshal rig g request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/feasibility", bytes.NewReader(body))
	if err != nil {
		return true, fmt.Errorf("sterling: build rig g request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return true, fmt.Errorf("sterling: rig g request failed: %w", err)
	}
	defer resp.Body.Close()

	var parsed rigGResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return true, fmt.Errorf("sterling: decode rig g response: %w", err)
	}
	return parsed.ShouldProceed, nil
}
