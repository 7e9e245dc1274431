package httpapi

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/darianrosebrook/conscious-bot-experiment-sub003/core"
	"github.com/darianrosebrook/conscious-bot-experiment-sub003/store"
)

type createTaskRequest struct {
	Type        string                 `json:"type"`
	Source      string                 `json:"source"`
	Category    string                 `json:"category"`
	Title       string                 `json:"title"`
	Description string                 `json:"description"`
	Priority    interface{}            `json:"priority"`
	Urgency     interface{}            `json:"urgency"`
	Parameters  map[string]interface{} `json:"parameters"`
	Metadata    map[string]interface{} `json:"metadata"`
}

// handleTask implements POST /task.
func (s *Server) handleTask(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "POST only")
		return
	}

	var req createTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.Type == "" {
		writeError(w, http.StatusBadRequest, "type is required")
		return
	}

	source := core.TaskSource(req.Source)
	if source == "" {
		source = core.SourceManual
	}

	task, err := s.store.AddTask(core.NewTaskID("task"), store.CreateTaskInput{
		Type:        req.Type,
		Source:      source,
		Category:    req.Category,
		Title:       req.Title,
		Description: req.Description,
		Priority:    req.Priority,
		Urgency:     req.Urgency,
		Parameters:  req.Parameters,
		Metadata:    req.Metadata,
	})
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, task)
}

// handleTasks implements GET /tasks?status&source&category&limit.
func (s *Server) handleTasks(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "GET only")
		return
	}

	q := r.URL.Query()
	statusFilter := core.TaskStatus(q.Get("status"))
	sourceFilter := core.TaskSource(q.Get("source"))
	categoryFilter := q.Get("category")
	limit := 0
	if raw := q.Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil {
			limit = n
		}
	}

	tasks := s.store.List()
	out := make([]*core.Task, 0, len(tasks))
	for _, t := range tasks {
		if statusFilter != "" && t.Status != statusFilter {
			continue
		}
		if sourceFilter != "" && t.Source != sourceFilter {
			continue
		}
		if categoryFilter != "" && t.Category != categoryFilter {
			continue
		}
		out = append(out, t)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	writeJSON(w, http.StatusOK, out)
}

type createGoalRequest struct {
	GoalType     string                 `json:"goalType"`
	IntentParams map[string]interface{} `json:"intentParams"`
	Verifier     string                 `json:"verifier"`
}

// handleGoal implements POST /goal: routes through the same AddTask
// pipeline as handleTask, with Source forced to "goal" so the
// goal-resolver gate in store.AddTask engages.
func (s *Server) handleGoal(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "POST only")
		return
	}

	var req createGoalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.GoalType == "" {
		writeError(w, http.StatusBadRequest, "goalType is required")
		return
	}

	params := req.IntentParams
	if params == nil {
		params = map[string]interface{}{}
	}
	params["goalType"] = req.GoalType

	task, err := s.store.AddTask(core.NewTaskID("goal"), store.CreateTaskInput{
		Type:       req.GoalType,
		Source:     core.SourceGoal,
		Parameters: params,
		Metadata:   map[string]interface{}{"verifier": req.Verifier},
	})
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, task)
}

// handleSterlingHealth implements GET /sterling/health.
func (s *Server) handleSterlingHealth(w http.ResponseWriter, r *http.Request) {
	if s.craft == nil {
		writeJSON(w, http.StatusOK, map[string]interface{}{"status": "not_configured"})
		return
	}
	health, err := s.craft.Health(r.Context())
	if err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]interface{}{"status": "unavailable", "error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, health)
}

// handleCraftingSolve implements POST /sterling/crafting/solve.
func (s *Server) handleCraftingSolve(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "POST only")
		return
	}
	if s.craft == nil {
		writeError(w, http.StatusServiceUnavailable, "crafting solver not configured")
		return
	}

	var req map[string]interface{}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	result, err := s.craft.SolveCrafting(r.Context(), req)
	if err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, result)
}

type solveNavigationRequest struct {
	Start      core.Position          `json:"start"`
	Goal       core.Position          `json:"goal"`
	Tolerances map[string]interface{} `json:"tolerances"`
}

// handleSolveNavigation implements POST /solve-navigation.
func (s *Server) handleSolveNavigation(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "POST only")
		return
	}
	if s.nav == nil {
		writeError(w, http.StatusServiceUnavailable, "navigation solver not configured")
		return
	}

	var req solveNavigationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	result, err := s.nav.SolveNavigation(r.Context(), req.Start, req.Goal, req.Tolerances)
	if err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// handleExecutorStop implements POST /executor/stop, guarded by the
// x-emergency-token header (§6).
func (s *Server) handleExecutorStop(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "POST only")
		return
	}
	if s.emergencyToken == "" || r.Header.Get("x-emergency-token") != s.emergencyToken {
		writeError(w, http.StatusUnauthorized, "invalid or missing x-emergency-token")
		return
	}
	if s.stop == nil {
		writeError(w, http.StatusServiceUnavailable, "executor not configured")
		return
	}
	s.stop.Stop()
	writeJSON(w, http.StatusOK, map[string]string{"status": "stopping"})
}

type manageTaskRequest struct {
	TaskID      string `json:"taskId"`
	Action      string `json:"action"`
	ResumeHints string `json:"resumeHints"`
	Reason      string `json:"reason"`
}

// handleTaskManage implements POST /task/manage: pause, resume, cancel.
func (s *Server) handleTaskManage(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "POST only")
		return
	}
	if s.manager == nil {
		writeError(w, http.StatusServiceUnavailable, "task manager not configured")
		return
	}

	var req manageTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.TaskID == "" {
		writeError(w, http.StatusBadRequest, "taskId is required")
		return
	}

	var err error
	switch req.Action {
	case "pause":
		err = s.manager.Pause(req.TaskID, req.ResumeHints)
	case "resume":
		err = s.manager.Resume(req.TaskID)
	case "cancel":
		err = s.manager.Cancel(req.TaskID, req.Reason)
	default:
		writeError(w, http.StatusBadRequest, "action must be one of pause, resume, cancel")
		return
	}
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleEvents implements GET /events, the SSE lifecycle-event feed.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ch := s.bus.subscribe()
	defer s.bus.unsubscribe(ch)

	for {
		select {
		case evt := <-ch:
			payload, err := encodeSSE(evt)
			if err != nil {
				continue
			}
			if _, err := w.Write([]byte("data: ")); err != nil {
				return
			}
			if _, err := w.Write(payload); err != nil {
				return
			}
			if _, err := w.Write([]byte("\n\n")); err != nil {
				return
			}
			flusher.Flush()
		case <-r.Context().Done():
			return
		}
	}
}
