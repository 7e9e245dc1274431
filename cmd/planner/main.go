// Command planner runs the planning-and-execution core as a standalone
// process: it owns the task store, the executor tick loop, and the
// inbound/outbound HTTP boundaries, wiring every package through the
// functional-options seams each one exposes. Mirrors the teacher's
// examples/basic-agent/main.go shutdown shape (signal.Notify +
// context.WithCancel) rather than introducing a process-supervisor
// framework the teacher doesn't have outside its own framework package.
package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/darianrosebrook/conscious-bot-experiment-sub003/botclient"
	"github.com/darianrosebrook/conscious-bot-experiment-sub003/cognition"
	"github.com/darianrosebrook/conscious-bot-experiment-sub003/core"
	"github.com/darianrosebrook/conscious-bot-experiment-sub003/eventstore"
	"github.com/darianrosebrook/conscious-bot-experiment-sub003/executor"
	"github.com/darianrosebrook/conscious-bot-experiment-sub003/goal"
	"github.com/darianrosebrook/conscious-bot-experiment-sub003/httpapi"
	"github.com/darianrosebrook/conscious-bot-experiment-sub003/prereq"
	"github.com/darianrosebrook/conscious-bot-experiment-sub003/protocol"
	"github.com/darianrosebrook/conscious-bot-experiment-sub003/ratelimit"
	"github.com/darianrosebrook/conscious-bot-experiment-sub003/sterling"
	"github.com/darianrosebrook/conscious-bot-experiment-sub003/store"
	"github.com/darianrosebrook/conscious-bot-experiment-sub003/verify"
)

func main() {
	if err := run(); err != nil {
		log.Printf("planner exited with error: %v", err)
		os.Exit(1)
	}
	os.Exit(0)
}

func run() error {
	cfg, err := core.NewConfig()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}
	logger := core.NewProductionLogger(cfg.Logging, cfg.Development, "planner")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		logger.Info("received shutdown signal, stopping planner", nil)
		cancel()
	}()

	bot := botclient.New(cfg.Endpoints.BotInterface, logger)
	sterlingClient := sterling.New(cfg.Endpoints.Sterling, sterling.WithLogger(logger))
	rigG := sterling.NewRigGAdvisor(cfg.Endpoints.Sterling)
	verifier := verify.New(bot)

	taskStore := store.New(
		store.WithPlannerAdapter(sterlingClient),
		store.WithLogger(logger),
		store.WithStrictFinalize(cfg.Features.PlanningStrictFinalize),
	)

	resolver := goal.New(taskStore, goal.WithLogger(logger))
	if cfg.Features.EnableGoalBinding {
		taskStore.SetGoalResolver(resolver)
	}

	drain := protocol.New(taskStore, logger)
	taskStore.SetEffectDrain(drain)
	manager := protocol.NewManager(taskStore)

	injector := prereq.New(taskStore, bot)

	breaker, err := ratelimit.NewBreaker(logger)
	if err != nil {
		return fmt.Errorf("constructing circuit breaker: %w", err)
	}
	tokens := ratelimit.New(ratelimit.WithMaxStepsPerMinute(cfg.Executor.MaxStepsPerMinute))

	var eventStore *eventstore.Store
	if cfg.Features.PlanningEventStore {
		eventStore = eventstore.New(cfg.EventDSN, logger)
		defer eventStore.Close()
	}

	httpServer := httpapi.New(taskStore,
		httpapi.WithCraftingSolver(sterlingCraftingAdapter{sterlingClient}),
		httpapi.WithEmergencyToken(cfg.Executor.EmergencyToken),
		httpapi.WithLogger(logger),
		httpapi.WithStopController(cancelStopper{cancel}),
		httpapi.WithTaskManager(manager),
	)
	sseSink := httpapi.NewSSEEventSink(httpServer.Broadcaster())

	outbox := cognition.New(cfg.Endpoints.Cognition, cfg.Endpoints.Memory, cfg.Endpoints.Dashboard,
		cognition.WithLogger(logger),
	)
	outbox.Start(ctx)
	defer outbox.Stop()

	sink := fanoutSink{sinks: []executor.EventSink{sseSink, outbox}}
	if eventStore != nil {
		sink.sinks = append(sink.sinks, eventStore)
	}

	exec := executor.New(taskStore,
		executor.WithBotInterface(bot),
		executor.WithVerifier(verifier),
		executor.WithPrereqInjector(injector),
		executor.WithRigGAdvisor(rigG),
		executor.WithReplanner(sterlingClient),
		executor.WithBreaker(breaker),
		executor.WithTokenBucket(tokens),
		executor.WithTickInterval(cfg.Executor.PollInterval),
		executor.WithMode(executor.Mode(cfg.Executor.Mode)),
		executor.WithEventSink(sink),
		executor.WithWorldSeed(cfg.WorldSeed),
		executor.WithLogger(logger),
	)

	server := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Address, cfg.Port),
		Handler: httpServer.Handler(),
	}

	serverErrCh := make(chan error, 1)
	go func() {
		logger.Info("starting HTTP boundary", map[string]interface{}{"addr": server.Addr})
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrCh <- err
		}
	}()

	if cfg.Executor.Enabled {
		go exec.Run(ctx)
	}

	select {
	case err := <-serverErrCh:
		cancel()
		return fmt.Errorf("http server failed: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http server shutdown: %w", err)
	}
	return nil
}

// cancelStopper adapts a context.CancelFunc to httpapi.StopController so
// POST /executor/stop can halt the tick loop through the same cancellation
// path SIGINT/SIGTERM already use.
type cancelStopper struct {
	cancel context.CancelFunc
}

func (c cancelStopper) Stop() { c.cancel() }

// sterlingCraftingAdapter narrows sterling.Client down to httpapi's
// CraftingSolver seam (SolveCrafting + Health), since Client itself exposes
// a broader surface (Plan, Replan, GenerateDynamicSteps) than the HTTP
// boundary needs.
type sterlingCraftingAdapter struct {
	client *sterling.Client
}

func (s sterlingCraftingAdapter) SolveCrafting(ctx context.Context, req map[string]interface{}) (map[string]interface{}, error) {
	return s.client.SolveCrafting(ctx, req)
}

func (s sterlingCraftingAdapter) Health(ctx context.Context) (map[string]interface{}, error) {
	return s.client.Health(ctx)
}

// fanoutSink fans one dispatch/snapshot event out to every configured
// executor.EventSink (event store, dashboard SSE, cognition outbox) so the
// executor only ever calls one seam.
type fanoutSink struct {
	sinks []executor.EventSink
}

func (f fanoutSink) AppendEvent(worldSeed, taskID, eventType string, data map[string]interface{}) {
	for _, s := range f.sinks {
		s.AppendEvent(worldSeed, taskID, eventType, data)
	}
}

func (f fanoutSink) SnapshotTask(worldSeed string, t *core.Task) {
	for _, s := range f.sinks {
		s.SnapshotTask(worldSeed, t)
	}
}
