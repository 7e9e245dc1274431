package core

import "time"

// Environment Variables - planner core
const (
	EnvExecutorMode            = "EXECUTOR_MODE"
	EnvEnablePlanningExecutor  = "ENABLE_PLANNING_EXECUTOR"
	EnvExecutorPollMS          = "EXECUTOR_POLL_MS"
	EnvExecutorMaxBackoffMS    = "EXECUTOR_MAX_BACKOFF_MS"
	EnvBotBreakerOpenMS        = "BOT_BREAKER_OPEN_MS"
	EnvBuildExecBudgetDisabled = "BUILD_EXEC_BUDGET_DISABLED"
	EnvBuildExecMaxAttempts    = "BUILD_EXEC_MAX_ATTEMPTS"
	EnvBuildExecMinIntervalMS  = "BUILD_EXEC_MIN_INTERVAL_MS"
	EnvBuildExecMaxElapsedMS   = "BUILD_EXEC_MAX_ELAPSED_MS"
	EnvEnableRigE              = "ENABLE_RIG_E"
	EnvEnableGoalBinding       = "ENABLE_GOAL_BINDING"
	EnvPlanningStrictFinalize  = "PLANNING_STRICT_FINALIZE"
	EnvPlanningEventStore      = "PLANNING_EVENT_STORE"
	EnvWorldSeed               = "WORLD_SEED"
	EnvMCPOnly                 = "MCP_ONLY"
	EnvJoinKeysCompat          = "JOIN_KEYS_DEPRECATED_COMPAT"
	EnvExecutorEmergencyToken  = "EXECUTOR_EMERGENCY_TOKEN"
	EnvSterlingEpisodeDebug    = "STERLING_EPISODE_DEBUG"

	// Service endpoints
	EnvBotInterfaceURL = "BOT_INTERFACE_URL"
	EnvSterlingURL     = "STERLING_URL"
	EnvCognitionURL    = "COGNITION_URL"
	EnvMemoryURL       = "MEMORY_URL"
	EnvDashboardURL    = "DASHBOARD_URL"

	// Backing stores
	EnvRedisURL = "REDIS_URL"
	EnvEventDSN = "EVENT_STORE_DSN"

	// Common configuration
	EnvPort     = "PORT"
	EnvDevMode  = "DEV_MODE"
	EnvLogLevel = "PLANNER_LOG_LEVEL"
)

// Redis key-space defaults for the rate limiter and dedupe caches.
const (
	// DefaultRedisPrefix namespaces every key this process writes to Redis.
	// Format: <prefix><subsystem>:<key>
	// Example: planner:dedupe:mine_diamond_ore
	DefaultRedisPrefix = "planner:"

	// DefaultDedupeCacheTTL bounds how long a Sterling dedupe key is
	// remembered once a task finishes, guarding against stale replays.
	DefaultDedupeCacheTTL = 24 * time.Hour
)

// MaxHistoryEntries bounds the per-task history ring (see SPEC_FULL.md §C).
const MaxHistoryEntries = 50
