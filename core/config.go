package core

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the planning and execution core.
// It supports three-layer configuration priority:
//  1. Default values (lowest priority)
//  2. Environment variables (medium priority)
//  3. Functional options (highest priority)
//
// Example usage:
//
//	cfg, err := NewConfig(
//	    WithExecutorMode("shadow"),
//	    WithPort(8080),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
type Config struct {
	Port      int    `json:"port" yaml:"port"`
	Address   string `json:"address" yaml:"address"`
	WorldSeed string `json:"world_seed" yaml:"worldSeed"`

	Executor ExecutorConfig  `json:"executor" yaml:"executor"`
	Build    BuildExecConfig `json:"build" yaml:"build"`
	Features FeatureFlags    `json:"features" yaml:"features"`

	Endpoints ServiceEndpoints `json:"endpoints" yaml:"endpoints"`

	RedisURL string `json:"redis_url" yaml:"redisUrl"`
	EventDSN string `json:"event_dsn" yaml:"eventDsn"`

	Logging     LoggingConfig     `json:"logging" yaml:"logging"`
	Development DevelopmentConfig `json:"development" yaml:"development"`

	// logger is used for configuration-loading operations (excluded from serialization)
	logger Logger `json:"-" yaml:"-"`
}

// ExecutorConfig controls the autonomous executor loop (§4.F).
type ExecutorConfig struct {
	Mode              string        `json:"mode" yaml:"mode"` // "shadow" | "live"
	Enabled           bool          `json:"enabled" yaml:"enabled"`
	PollInterval      time.Duration `json:"poll_interval" yaml:"pollInterval"`
	MaxBackoff        time.Duration `json:"max_backoff" yaml:"maxBackoff"`
	BotBreakerOpen    time.Duration `json:"bot_breaker_open" yaml:"botBreakerOpen"`
	EmergencyToken    string        `json:"-" yaml:"-"`
	MaxStepsPerMinute int           `json:"max_steps_per_minute" yaml:"maxStepsPerMinute"`
}

// BuildExecConfig controls the per-step execution budget for building leaves
// (§4.F step 17).
type BuildExecConfig struct {
	BudgetDisabled bool          `json:"budget_disabled" yaml:"budgetDisabled"`
	MaxAttempts    int           `json:"max_attempts" yaml:"maxAttempts"`
	MinInterval    time.Duration `json:"min_interval" yaml:"minInterval"`
	MaxElapsed     time.Duration `json:"max_elapsed" yaml:"maxElapsed"`
}

// FeatureFlags gates optional subsystems.
type FeatureFlags struct {
	EnableRigE               bool `json:"enable_rig_e" yaml:"enableRigE"`
	EnableGoalBinding        bool `json:"enable_goal_binding" yaml:"enableGoalBinding"`
	PlanningStrictFinalize   bool `json:"planning_strict_finalize" yaml:"planningStrictFinalize"`
	PlanningEventStore       bool `json:"planning_event_store" yaml:"planningEventStore"`
	MCPOnly                  bool `json:"mcp_only" yaml:"mcpOnly"`
	JoinKeysDeprecatedCompat bool `json:"join_keys_deprecated_compat" yaml:"joinKeysDeprecatedCompat"`
	SterlingEpisodeDebug     bool `json:"sterling_episode_debug" yaml:"sterlingEpisodeDebug"`
}

// ServiceEndpoints are the outbound collaborator URLs (§6).
type ServiceEndpoints struct {
	BotInterface string `json:"bot_interface" yaml:"botInterface"`
	Sterling     string `json:"sterling" yaml:"sterling"`
	Cognition    string `json:"cognition" yaml:"cognition"`
	Memory       string `json:"memory" yaml:"memory"`
	Dashboard    string `json:"dashboard" yaml:"dashboard"`
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	Level  string `json:"level" yaml:"level"`
	Format string `json:"format" yaml:"format"`
	Output string `json:"output" yaml:"output"`
}

// DevelopmentConfig contains settings for local development and testing.
type DevelopmentConfig struct {
	Enabled      bool `json:"enabled" yaml:"enabled"`
	DebugLogging bool `json:"debug_logging" yaml:"debugLogging"`
	PrettyLogs   bool `json:"pretty_logs" yaml:"prettyLogs"`
}

// Option is a functional option for configuring the planner.
type Option func(*Config) error

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Port:    8080,
		Address: "0.0.0.0",
		Executor: ExecutorConfig{
			Mode:              "shadow",
			Enabled:           true,
			PollInterval:      10 * time.Second,
			MaxBackoff:        30 * time.Second,
			BotBreakerOpen:    30 * time.Second,
			MaxStepsPerMinute: 60,
		},
		Build: BuildExecConfig{
			MaxAttempts: 5,
			MinInterval: 500 * time.Millisecond,
			MaxElapsed:  2 * time.Minute,
		},
		Features: FeatureFlags{
			EnableGoalBinding: true,
		},
		Endpoints: ServiceEndpoints{
			BotInterface: "http://bot-interface.local",
			Sterling:     "http://solver.local",
			Cognition:    "http://cognition.local",
			Memory:       "http://memory.local",
			Dashboard:    "http://dashboard.local",
		},
		RedisURL: "redis://localhost:6379",
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// LoadFromEnv loads configuration from environment variables and validates
// the result. See SPEC_FULL.md §A.3 for the full variable list.
func (c *Config) LoadFromEnv() error {
	if v := os.Getenv(EnvPort); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Port = port
		}
	}
	if v := os.Getenv(EnvExecutorMode); v != "" {
		c.Executor.Mode = v
	}
	if v := os.Getenv(EnvEnablePlanningExecutor); v != "" {
		c.Executor.Enabled = parseBool(v)
	}
	if v := os.Getenv(EnvExecutorPollMS); v != "" {
		if ms, err := strconv.Atoi(v); err == nil {
			c.Executor.PollInterval = time.Duration(ms) * time.Millisecond
		}
	}
	if v := os.Getenv(EnvExecutorMaxBackoffMS); v != "" {
		if ms, err := strconv.Atoi(v); err == nil {
			c.Executor.MaxBackoff = time.Duration(ms) * time.Millisecond
		}
	}
	if v := os.Getenv(EnvBotBreakerOpenMS); v != "" {
		if ms, err := strconv.Atoi(v); err == nil {
			c.Executor.BotBreakerOpen = time.Duration(ms) * time.Millisecond
		}
	}
	if v := os.Getenv(EnvExecutorEmergencyToken); v != "" {
		c.Executor.EmergencyToken = v
	}

	if v := os.Getenv(EnvBuildExecBudgetDisabled); v != "" {
		c.Build.BudgetDisabled = parseBool(v)
	}
	if v := os.Getenv(EnvBuildExecMaxAttempts); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Build.MaxAttempts = n
		}
	}
	if v := os.Getenv(EnvBuildExecMinIntervalMS); v != "" {
		if ms, err := strconv.Atoi(v); err == nil {
			c.Build.MinInterval = time.Duration(ms) * time.Millisecond
		}
	}
	if v := os.Getenv(EnvBuildExecMaxElapsedMS); v != "" {
		if ms, err := strconv.Atoi(v); err == nil {
			c.Build.MaxElapsed = time.Duration(ms) * time.Millisecond
		}
	}

	if v := os.Getenv(EnvEnableRigE); v != "" {
		c.Features.EnableRigE = parseBool(v)
	}
	if v := os.Getenv(EnvEnableGoalBinding); v != "" {
		c.Features.EnableGoalBinding = parseBool(v)
	}
	if v := os.Getenv(EnvPlanningStrictFinalize); v != "" {
		c.Features.PlanningStrictFinalize = parseBool(v)
	}
	if v := os.Getenv(EnvPlanningEventStore); v != "" {
		c.Features.PlanningEventStore = parseBool(v)
	}
	if v := os.Getenv(EnvMCPOnly); v != "" {
		c.Features.MCPOnly = parseBool(v)
	}
	if v := os.Getenv(EnvJoinKeysCompat); v != "" {
		c.Features.JoinKeysDeprecatedCompat = parseBool(v)
	}
	if v := os.Getenv(EnvSterlingEpisodeDebug); v != "" {
		c.Features.SterlingEpisodeDebug = parseBool(v)
	}

	if v := os.Getenv(EnvWorldSeed); v != "" {
		c.WorldSeed = v
	}

	if v := os.Getenv(EnvBotInterfaceURL); v != "" {
		c.Endpoints.BotInterface = v
	}
	if v := os.Getenv(EnvSterlingURL); v != "" {
		c.Endpoints.Sterling = v
	}
	if v := os.Getenv(EnvCognitionURL); v != "" {
		c.Endpoints.Cognition = v
	}
	if v := os.Getenv(EnvMemoryURL); v != "" {
		c.Endpoints.Memory = v
	}
	if v := os.Getenv(EnvDashboardURL); v != "" {
		c.Endpoints.Dashboard = v
	}

	if v := os.Getenv(EnvRedisURL); v != "" {
		c.RedisURL = v
	}
	if v := os.Getenv(EnvEventDSN); v != "" {
		c.EventDSN = v
	}

	if v := os.Getenv(EnvLogLevel); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv(EnvDevMode); v != "" {
		c.Development.Enabled = parseBool(v)
		if c.Development.Enabled {
			c.Development.PrettyLogs = true
			c.Logging.Format = "text"
			c.Logging.Level = "debug"
		}
	}

	return c.Validate()
}

// Validate checks if the configuration is valid and returns an error if not.
func (c *Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return &FrameworkError{
			Op:      "Config.Validate",
			Kind:    "config",
			Message: fmt.Sprintf("invalid port: %d", c.Port),
			Err:     ErrInvalidConfiguration,
		}
	}

	if c.Executor.Mode != "shadow" && c.Executor.Mode != "live" {
		return &FrameworkError{
			Op:      "Config.Validate",
			Kind:    "config",
			Message: fmt.Sprintf("invalid executor mode %q, must be 'shadow' or 'live'", c.Executor.Mode),
			Err:     ErrInvalidConfiguration,
		}
	}

	if c.Features.PlanningEventStore && c.EventDSN == "" {
		return &FrameworkError{
			Op:      "Config.Validate",
			Kind:    "config",
			Message: "event store DSN is required when PLANNING_EVENT_STORE is enabled",
			Err:     ErrMissingConfiguration,
		}
	}

	if c.Features.PlanningEventStore && c.WorldSeed == "" {
		return &FrameworkError{
			Op:      "Config.Validate",
			Kind:    "config",
			Message: "world seed is required when the event store is enabled",
			Err:     ErrMissingConfiguration,
		}
	}

	return nil
}

// parseBool converts a string to a boolean value.
// Accepts: "true", "1", "yes", "on" (case-insensitive) as true.
func parseBool(s string) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	return s == "true" || s == "1" || s == "yes" || s == "on"
}

// LoadFromFile overlays configuration from a YAML file onto the receiver.
// Only keys present in the file are applied; unset fields keep their current
// value. Intended for local/dev runs where env vars are inconvenient
// (`--config planner.dev.yaml`).
func (c *Config) LoadFromFile(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("failed to stat config file: %w", err)
	}
	if info.IsDir() {
		return fmt.Errorf("config path %q is a directory, not a file", path)
	}

	ext := strings.ToLower(path[strings.LastIndex(path, ".")+1:])
	if ext != "yaml" && ext != "yml" {
		return fmt.Errorf("unsupported config file extension %q, expected .yaml or .yml", ext)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// Functional Options

// WithExecutorMode sets the executor mode ("shadow" or "live").
func WithExecutorMode(mode string) Option {
	return func(c *Config) error {
		c.Executor.Mode = mode
		return nil
	}
}

// WithPort sets the HTTP server port.
func WithPort(port int) Option {
	return func(c *Config) error {
		if port < 1 || port > 65535 {
			return &FrameworkError{Op: "WithPort", Kind: "config", Message: fmt.Sprintf("invalid port: %d", port), Err: ErrInvalidConfiguration}
		}
		c.Port = port
		return nil
	}
}

// WithWorldSeed sets the world seed used to derive the per-seed event
// store database name (§4.J).
func WithWorldSeed(seed string) Option {
	return func(c *Config) error {
		c.WorldSeed = seed
		return nil
	}
}

// WithRedisURL sets the Redis connection URL for the rate limiter and
// dedupe caches.
func WithRedisURL(url string) Option {
	return func(c *Config) error {
		c.RedisURL = url
		return nil
	}
}

// WithEventDSN sets the Postgres DSN for the append-only event store.
func WithEventDSN(dsn string) Option {
	return func(c *Config) error {
		c.EventDSN = dsn
		return nil
	}
}

// WithLogLevel sets the minimum logging level.
func WithLogLevel(level string) Option {
	return func(c *Config) error {
		c.Logging.Level = level
		return nil
	}
}

// WithLogFormat sets the logging output format ("json" or "text").
func WithLogFormat(format string) Option {
	return func(c *Config) error {
		c.Logging.Format = format
		return nil
	}
}

// WithDevelopmentMode enables development mode with developer-friendly
// defaults: pretty logs, debug level, text format.
func WithDevelopmentMode(enabled bool) Option {
	return func(c *Config) error {
		c.Development.Enabled = enabled
		if enabled {
			c.Development.PrettyLogs = true
			c.Logging.Format = "text"
			c.Logging.Level = "debug"
		}
		return nil
	}
}

// WithLogger sets a logger for configuration operations.
func WithLogger(logger Logger) Option {
	return func(c *Config) error {
		c.logger = logger
		return nil
	}
}

// WithConfigFile overlays a YAML config file onto the configuration.
// Options listed after WithConfigFile in NewConfig take priority over the
// file's values.
func WithConfigFile(path string) Option {
	return func(c *Config) error {
		return c.LoadFromFile(path)
	}
}

// NewConfig creates a new configuration with the provided options.
// Configuration is applied: defaults -> environment variables -> functional
// options -> validation.
func NewConfig(opts ...Option) (*Config, error) {
	cfg := DefaultConfig()

	if err := cfg.LoadFromEnv(); err != nil {
		return nil, fmt.Errorf("failed to load env config: %w", err)
	}

	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, fmt.Errorf("failed to apply option: %w", err)
		}
	}

	if cfg.logger == nil {
		logger := NewProductionLogger(cfg.Logging, cfg.Development, "planner")
		if prodLogger, ok := logger.(*ProductionLogger); ok {
			trackLogger(prodLogger)
		}
		cfg.logger = logger
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// ============================================================================
// ProductionLogger Implementation - Layered Observability Architecture
// ============================================================================

// ProductionLogger provides layered observability for planner operations.
type ProductionLogger struct {
	level       string
	debug       bool
	serviceName string
	component   string
	format      string
	output      io.Writer

	// Metrics layer (enabled when a MetricsRegistry is wired)
	metricsEnabled bool
}

// NewProductionLogger creates a logger from LoggingConfig.
func NewProductionLogger(logging LoggingConfig, dev DevelopmentConfig, serviceName string) Logger {
	var output io.Writer = os.Stdout
	if logging.Output == "stderr" {
		output = os.Stderr
	}

	return &ProductionLogger{
		level:       strings.ToLower(logging.Level),
		debug:       dev.DebugLogging || logging.Level == "debug",
		serviceName: serviceName,
		format:      logging.Format,
		output:      output,
	}
}

// EnableMetrics is called by the metrics registry owner to enable the
// metrics layer.
func (p *ProductionLogger) EnableMetrics() {
	p.metricsEnabled = true
}

// WithComponent returns a logger scoped to the given component name,
// e.g. "planner/executor".
func (p *ProductionLogger) WithComponent(component string) Logger {
	clone := *p
	clone.component = component
	return &clone
}

func (p *ProductionLogger) Info(msg string, fields map[string]interface{})  { p.logEvent("INFO", msg, fields, nil) }
func (p *ProductionLogger) Error(msg string, fields map[string]interface{}) { p.logEvent("ERROR", msg, fields, nil) }
func (p *ProductionLogger) Warn(msg string, fields map[string]interface{})  { p.logEvent("WARN", msg, fields, nil) }

func (p *ProductionLogger) Debug(msg string, fields map[string]interface{}) {
	if p.debug {
		p.logEvent("DEBUG", msg, fields, nil)
	}
}

func (p *ProductionLogger) InfoWithContext(ctx context.Context, msg string, fields map[string]interface{}) {
	p.logEvent("INFO", msg, fields, ctx)
}
func (p *ProductionLogger) ErrorWithContext(ctx context.Context, msg string, fields map[string]interface{}) {
	p.logEvent("ERROR", msg, fields, ctx)
}
func (p *ProductionLogger) WarnWithContext(ctx context.Context, msg string, fields map[string]interface{}) {
	p.logEvent("WARN", msg, fields, ctx)
}
func (p *ProductionLogger) DebugWithContext(ctx context.Context, msg string, fields map[string]interface{}) {
	if p.debug {
		p.logEvent("DEBUG", msg, fields, ctx)
	}
}

// Core logging implementation with all three layers
func (p *ProductionLogger) logEvent(level, msg string, fields map[string]interface{}, ctx context.Context) {
	timestamp := time.Now().Format(time.RFC3339)
	component := p.component
	if component == "" {
		component = "planner"
	}

	if p.format == "json" {
		logEntry := map[string]interface{}{
			"timestamp": timestamp,
			"level":     level,
			"service":   p.serviceName,
			"component": component,
			"message":   msg,
		}

		if ctx != nil && p.metricsEnabled {
			if baggage := getContextBaggage(ctx); len(baggage) > 0 {
				for k, v := range baggage {
					logEntry["trace."+k] = v
				}
			}
		}

		for k, v := range fields {
			logEntry[k] = v
		}

		if data, err := json.Marshal(logEntry); err == nil {
			fmt.Fprintln(p.output, string(data))
		}
	} else {
		traceInfo := ""
		if ctx != nil && p.metricsEnabled {
			if baggage := getContextBaggage(ctx); baggage["request_id"] != "" {
				traceInfo = fmt.Sprintf("[req=%s] ", baggage["request_id"])
			}
		}

		var fieldStr strings.Builder
		if len(fields) > 0 {
			fieldStr.WriteString(" ")
			for k, v := range fields {
				fieldStr.WriteString(fmt.Sprintf("%s=%v ", k, v))
			}
		}

		fmt.Fprintf(p.output, "%s [%s] [%s/%s] %s%s%s\n",
			timestamp, level, p.serviceName, component, traceInfo, msg, fieldStr.String())
	}

	if p.metricsEnabled {
		p.emitPlannerMetric(level, msg, fields, ctx)
	}
}

// Metrics emission with cardinality protection
func (p *ProductionLogger) emitPlannerMetric(level, msg string, fields map[string]interface{}, ctx context.Context) {
	component := p.component
	if component == "" {
		component = "planner"
	}

	labels := []string{
		"level", level,
		"service", p.serviceName,
		"component", component,
	}

	for k, v := range fields {
		switch k {
		case "operation", "status", "error_type", "leaf", "task_type":
			labels = append(labels, k, fmt.Sprintf("%v", v))
		}
	}

	if ctx != nil {
		emitMetricWithContext(ctx, "planner.operations", 1.0, labels...)
	} else {
		emitMetric("planner.operations", 1.0, labels...)
	}
}

// Helper functions for weak coupling to a MetricsRegistry
func emitMetric(name string, value float64, labels ...string) {
	if globalMetricsRegistry != nil {
		globalMetricsRegistry.Counter(name, labels...)
	}
}

func emitMetricWithContext(ctx context.Context, name string, value float64, labels ...string) {
	if globalMetricsRegistry != nil {
		globalMetricsRegistry.EmitWithContext(ctx, name, value, labels...)
	}
}

func getContextBaggage(ctx context.Context) map[string]string {
	if globalMetricsRegistry != nil {
		return globalMetricsRegistry.GetBaggage(ctx)
	}
	return make(map[string]string)
}
