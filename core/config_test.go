package core

import (
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestDefaultConfig verifies that DefaultConfig returns valid defaults
func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.NotNil(t, cfg)
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "0.0.0.0", cfg.Address)

	assert.Equal(t, "shadow", cfg.Executor.Mode)
	assert.True(t, cfg.Executor.Enabled)
	assert.Equal(t, 10*time.Second, cfg.Executor.PollInterval)

	assert.True(t, cfg.Features.EnableGoalBinding)
	assert.False(t, cfg.Features.PlanningEventStore)

	assert.Equal(t, "redis://localhost:6379", cfg.RedisURL)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
}

// TestLoadFromEnv verifies environment variable loading
func TestLoadFromEnv(t *testing.T) {
	testEnv := map[string]string{
		EnvPort:                    "9090",
		EnvExecutorMode:            "live",
		EnvEnablePlanningExecutor:  "true",
		EnvExecutorPollMS:          "5000",
		EnvExecutorMaxBackoffMS:    "20000",
		EnvEnableGoalBinding:       "false",
		EnvEnableRigE:              "true",
		EnvPlanningStrictFinalize:  "true",
		EnvWorldSeed:               "seed-123",
		EnvBotInterfaceURL:         "http://bot-test:9000",
		EnvRedisURL:                "redis://test-redis:6379",
		EnvLogLevel:                "debug",
	}

	for k, v := range testEnv {
		_ = os.Setenv(k, v)
		defer func(k string) { _ = os.Unsetenv(k) }(k)
	}

	cfg := DefaultConfig()
	err := cfg.LoadFromEnv()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, "live", cfg.Executor.Mode)
	assert.True(t, cfg.Executor.Enabled)
	assert.Equal(t, 5*time.Second, cfg.Executor.PollInterval)
	assert.Equal(t, 20*time.Second, cfg.Executor.MaxBackoff)
	assert.False(t, cfg.Features.EnableGoalBinding)
	assert.True(t, cfg.Features.EnableRigE)
	assert.True(t, cfg.Features.PlanningStrictFinalize)
	assert.Equal(t, "seed-123", cfg.WorldSeed)
	assert.Equal(t, "http://bot-test:9000", cfg.Endpoints.BotInterface)
	assert.Equal(t, "redis://test-redis:6379", cfg.RedisURL)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

// TestValidate verifies configuration validation
func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		setup   func(*Config)
		wantErr string
	}{
		{
			name:    "valid configuration",
			setup:   func(cfg *Config) {},
			wantErr: "",
		},
		{
			name: "invalid port - too low",
			setup: func(cfg *Config) {
				cfg.Port = 0
			},
			wantErr: "invalid port",
		},
		{
			name: "invalid port - too high",
			setup: func(cfg *Config) {
				cfg.Port = 70000
			},
			wantErr: "invalid port",
		},
		{
			name: "invalid executor mode",
			setup: func(cfg *Config) {
				cfg.Executor.Mode = "turbo"
			},
			wantErr: "invalid executor mode",
		},
		{
			name: "event store enabled without DSN",
			setup: func(cfg *Config) {
				cfg.Features.PlanningEventStore = true
				cfg.WorldSeed = "seed-1"
				cfg.EventDSN = ""
			},
			wantErr: "event store DSN is required",
		},
		{
			name: "event store enabled without world seed",
			setup: func(cfg *Config) {
				cfg.Features.PlanningEventStore = true
				cfg.EventDSN = "postgres://localhost/planner"
				cfg.WorldSeed = ""
			},
			wantErr: "world seed is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.setup(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}

// TestFunctionalOptions verifies all functional options
func TestFunctionalOptions(t *testing.T) {
	t.Run("WithPort", func(t *testing.T) {
		cfg, err := NewConfig(WithPort(9999))
		require.NoError(t, err)
		assert.Equal(t, 9999, cfg.Port)

		_, err = NewConfig(WithPort(0))
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "invalid port")
	})

	t.Run("WithExecutorMode", func(t *testing.T) {
		cfg, err := NewConfig(WithExecutorMode("live"))
		require.NoError(t, err)
		assert.Equal(t, "live", cfg.Executor.Mode)
	})

	t.Run("WithWorldSeed", func(t *testing.T) {
		cfg, err := NewConfig(WithWorldSeed("seed-42"))
		require.NoError(t, err)
		assert.Equal(t, "seed-42", cfg.WorldSeed)
	})

	t.Run("WithRedisURL", func(t *testing.T) {
		url := "redis://custom-redis:6379"
		cfg, err := NewConfig(WithRedisURL(url))
		require.NoError(t, err)
		assert.Equal(t, url, cfg.RedisURL)
	})

	t.Run("WithEventDSN", func(t *testing.T) {
		dsn := "postgres://localhost/planner_seed1"
		cfg, err := NewConfig(WithEventDSN(dsn))
		require.NoError(t, err)
		assert.Equal(t, dsn, cfg.EventDSN)
	})

	t.Run("WithLogLevel", func(t *testing.T) {
		cfg, err := NewConfig(WithLogLevel("debug"))
		require.NoError(t, err)
		assert.Equal(t, "debug", cfg.Logging.Level)
	})

	t.Run("WithLogFormat", func(t *testing.T) {
		cfg, err := NewConfig(WithLogFormat("text"))
		require.NoError(t, err)
		assert.Equal(t, "text", cfg.Logging.Format)
	})

	t.Run("WithDevelopmentMode", func(t *testing.T) {
		cfg, err := NewConfig(WithDevelopmentMode(true))
		require.NoError(t, err)
		assert.True(t, cfg.Development.Enabled)
		assert.True(t, cfg.Development.PrettyLogs)
		assert.Equal(t, "text", cfg.Logging.Format)
		assert.Equal(t, "debug", cfg.Logging.Level)
	})
}

// TestConfigPriority verifies configuration priority order
func TestConfigPriority(t *testing.T) {
	_ = os.Setenv(EnvPort, "7777")
	defer func() { _ = os.Unsetenv(EnvPort) }()

	cfg, err := NewConfig(WithPort(8888))
	require.NoError(t, err)

	// Functional option should win over environment variable
	assert.Equal(t, 8888, cfg.Port)
}

// TestParseBool verifies the parseBool helper
func TestParseBool(t *testing.T) {
	tests := []struct {
		input    string
		expected bool
	}{
		{"true", true},
		{"True", true},
		{"TRUE", true},
		{"1", true},
		{"yes", true},
		{"YES", true},
		{"on", true},
		{"ON", true},
		{"false", false},
		{"False", false},
		{"0", false},
		{"no", false},
		{"off", false},
		{"", false},
		{"invalid", false},
	}

	for _, tt := range tests {
		result := parseBool(tt.input)
		assert.Equal(t, tt.expected, result, "input: %s", tt.input)
	}
}

// BenchmarkNewConfig benchmarks configuration creation
func BenchmarkNewConfig(b *testing.B) {
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = NewConfig(
			WithPort(8080),
			WithExecutorMode("shadow"),
			WithRedisURL("redis://localhost:6379"),
		)
	}
}

// BenchmarkLoadFromEnv benchmarks environment variable loading
func BenchmarkLoadFromEnv(b *testing.B) {
	_ = os.Setenv(EnvPort, "8080")
	_ = os.Setenv(EnvExecutorMode, "shadow")
	defer func() {
		_ = os.Unsetenv(EnvPort)
		_ = os.Unsetenv(EnvExecutorMode)
	}()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		cfg := DefaultConfig()
		_ = cfg.LoadFromEnv()
	}
}

// BenchmarkValidate benchmarks configuration validation
func BenchmarkValidate(b *testing.B) {
	cfg := DefaultConfig()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = cfg.Validate()
	}
}

// ExampleNewConfig demonstrates basic configuration usage
func ExampleNewConfig() {
	cfg, err := NewConfig(
		WithPort(8080),
		WithExecutorMode("shadow"),
	)
	if err != nil {
		panic(err)
	}

	fmt.Printf("Executor mode %s on port %d\n", cfg.Executor.Mode, cfg.Port)
	// Output: Executor mode shadow on port 8080
}

// ExampleNewConfig_development demonstrates development configuration
func ExampleNewConfig_development() {
	cfg, err := NewConfig(
		WithPort(8080),
		WithDevelopmentMode(true),
	)
	if err != nil {
		panic(err)
	}

	fmt.Printf("Development mode: %v, log format: %s\n",
		cfg.Development.Enabled, cfg.Logging.Format)
	// Output: Development mode: true, log format: text
}

// ExampleNewConfig_production demonstrates production configuration
func ExampleNewConfig_production() {
	cfg, err := NewConfig(
		WithPort(8080),
		WithExecutorMode("live"),
		WithRedisURL("redis://redis:6379"),
		WithWorldSeed("seed-prod-1"),
	)
	if err != nil {
		panic(err)
	}

	fmt.Printf("Production config: mode=%s seed=%s\n",
		cfg.Executor.Mode, cfg.WorldSeed)
	// Output: Production config: mode=live seed=seed-prod-1
}
