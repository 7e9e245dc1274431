// Package httpapi is the inbound HTTP boundary (§6): task/goal creation,
// task listing, solver health passthrough, navigation solve, the
// executor-stop emergency control, and an SSE lifecycle-event feed.
// Handler registration follows the teacher's plain http.ServeMux +
// mux.HandleFunc style (core/tool.go's setupStandardEndpoints) rather than
// a router library — gomind never reaches for one either.
package httpapi

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/darianrosebrook/conscious-bot-experiment-sub003/core"
	"github.com/darianrosebrook/conscious-bot-experiment-sub003/store"
)

// NavSolver is the outbound seam for /solve-navigation: scan the world via
// the bot interface, then call the navigation solver.
type NavSolver interface {
	SolveNavigation(ctx context.Context, start, goal core.Position, tolerances map[string]interface{}) (map[string]interface{}, error)
}

// CraftingSolver is the outbound seam for /sterling/crafting/solve.
type CraftingSolver interface {
	SolveCrafting(ctx context.Context, req map[string]interface{}) (map[string]interface{}, error)
	Health(ctx context.Context) (map[string]interface{}, error)
}

// StopController lets the emergency-stop endpoint halt the executor's tick
// loop without the HTTP layer needing to know how that's implemented.
type StopController interface {
	Stop()
}

// TaskManager is the outbound seam for /task/manage: the task-scoped
// pause/resume/cancel actions (§8 boundary scenario, "management actions
// translate to holds with reason manual_pause").
type TaskManager interface {
	Pause(taskID, resumeHints string) error
	Resume(taskID string) error
	Cancel(taskID, reason string) error
}

// Server owns the inbound mux and its dependencies.
type Server struct {
	mux     *http.ServeMux
	store   *store.TaskStore
	nav     NavSolver
	craft   CraftingSolver
	stop    StopController
	manager TaskManager
	bus     *Broadcaster

	emergencyToken string
	logger         core.Logger
}

// Option configures a Server at construction.
type Option func(*Server)

func WithNavSolver(n NavSolver) Option           { return func(s *Server) { s.nav = n } }
func WithCraftingSolver(c CraftingSolver) Option { return func(s *Server) { s.craft = c } }
func WithStopController(c StopController) Option { return func(s *Server) { s.stop = c } }
func WithTaskManager(m TaskManager) Option       { return func(s *Server) { s.manager = m } }
func WithEmergencyToken(token string) Option     { return func(s *Server) { s.emergencyToken = token } }
func WithLogger(logger core.Logger) Option {
	return func(s *Server) {
		if cal, ok := logger.(core.ComponentAwareLogger); ok {
			s.logger = cal.WithComponent("planner/httpapi")
			return
		}
		s.logger = logger
	}
}

// New builds a Server with every route registered, mirroring the
// teacher's single-pass setupStandardEndpoints call in its constructor.
func New(taskStore *store.TaskStore, opts ...Option) *Server {
	s := &Server{
		mux:    http.NewServeMux(),
		store:  taskStore,
		bus:    NewBroadcaster(),
		logger: &core.NoOpLogger{},
	}
	for _, opt := range opts {
		opt(s)
	}
	s.registerRoutes()
	return s
}

// Handler returns the root http.Handler for use with http.Server.
func (s *Server) Handler() http.Handler { return s.mux }

// Broadcaster exposes the SSE bus so other packages (executor, sterling)
// can publish lifecycle events without importing httpapi's handler code.
func (s *Server) Broadcaster() *Broadcaster { return s.bus }

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("/task", s.handleTask)
	s.mux.HandleFunc("/tasks", s.handleTasks)
	s.mux.HandleFunc("/goal", s.handleGoal)
	s.mux.HandleFunc("/sterling/health", s.handleSterlingHealth)
	s.mux.HandleFunc("/sterling/crafting/solve", s.handleCraftingSolve)
	s.mux.HandleFunc("/solve-navigation", s.handleSolveNavigation)
	s.mux.HandleFunc("/executor/stop", s.handleExecutorStop)
	s.mux.HandleFunc("/task/manage", s.handleTaskManage)
	s.mux.HandleFunc("/events", s.handleEvents)
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
