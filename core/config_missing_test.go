package core

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

// recordingLogger is a minimal Logger used to verify WithLogger wiring.
type recordingLogger struct {
	messages []string
}

func (r *recordingLogger) Info(msg string, fields map[string]interface{})  { r.messages = append(r.messages, msg) }
func (r *recordingLogger) Error(msg string, fields map[string]interface{}) { r.messages = append(r.messages, msg) }
func (r *recordingLogger) Warn(msg string, fields map[string]interface{})  { r.messages = append(r.messages, msg) }
func (r *recordingLogger) Debug(msg string, fields map[string]interface{}) { r.messages = append(r.messages, msg) }
func (r *recordingLogger) InfoWithContext(ctx context.Context, msg string, fields map[string]interface{}) {
	r.messages = append(r.messages, msg)
}
func (r *recordingLogger) ErrorWithContext(ctx context.Context, msg string, fields map[string]interface{}) {
	r.messages = append(r.messages, msg)
}
func (r *recordingLogger) WarnWithContext(ctx context.Context, msg string, fields map[string]interface{}) {
	r.messages = append(r.messages, msg)
}
func (r *recordingLogger) DebugWithContext(ctx context.Context, msg string, fields map[string]interface{}) {
	r.messages = append(r.messages, msg)
}

// TestWithLogger tests the WithLogger config option
func TestWithLogger(t *testing.T) {
	mockLogger := &recordingLogger{}

	config := DefaultConfig()

	if config.logger != nil {
		t.Error("Initial config should have nil logger")
	}

	option := WithLogger(mockLogger)
	if err := option(config); err != nil {
		t.Errorf("WithLogger() error = %v", err)
	}

	if config.logger != mockLogger {
		t.Error("Logger was not set correctly")
	}

	nilOption := WithLogger(nil)
	if err := nilOption(config); err != nil {
		t.Errorf("WithLogger(nil) error = %v", err)
	}

	if config.logger != nil {
		t.Error("Logger should be nil after WithLogger(nil)")
	}
}

// TestLoadFromFile_MissingCoverage tests missing paths in LoadFromFile
func TestLoadFromFile_MissingCoverage(t *testing.T) {
	t.Run("non-existent file", func(t *testing.T) {
		config := DefaultConfig()
		err := config.LoadFromFile("/path/to/non/existent/file.yaml")
		if err == nil {
			t.Error("LoadFromFile() should return error for non-existent file")
		}
	})

	t.Run("directory instead of file", func(t *testing.T) {
		config := DefaultConfig()
		tempDir := t.TempDir()

		err := config.LoadFromFile(tempDir)
		if err == nil {
			t.Error("LoadFromFile() should return error when path is a directory")
		}
	})

	t.Run("JSON file not supported", func(t *testing.T) {
		config := DefaultConfig()
		tempDir := t.TempDir()
		jsonFile := filepath.Join(tempDir, "config.json")

		err := os.WriteFile(jsonFile, []byte(`{"port": 8080}`), 0644)
		if err != nil {
			t.Fatalf("Failed to create test file: %v", err)
		}

		err = config.LoadFromFile(jsonFile)
		if err == nil {
			t.Error("LoadFromFile() should return error for JSON files (not supported)")
		}
	})

	t.Run("malformed YAML", func(t *testing.T) {
		config := DefaultConfig()
		tempDir := t.TempDir()
		malformedFile := filepath.Join(tempDir, "malformed.yaml")

		malformedYAML := "port: [unclosed"
		err := os.WriteFile(malformedFile, []byte(malformedYAML), 0644)
		if err != nil {
			t.Fatalf("Failed to create test file: %v", err)
		}

		err = config.LoadFromFile(malformedFile)
		if err == nil {
			t.Error("LoadFromFile() should return error for malformed YAML")
		}
	})

	t.Run("valid YAML with config values", func(t *testing.T) {
		config := DefaultConfig()
		tempDir := t.TempDir()
		configFile := filepath.Join(tempDir, "config.yaml")

		validYAML := `
port: 9090
address: "127.0.0.1"
worldSeed: "seed-yaml-1"
executor:
  mode: live
features:
  enableGoalBinding: false
`
		err := os.WriteFile(configFile, []byte(validYAML), 0644)
		if err != nil {
			t.Fatalf("Failed to create test file: %v", err)
		}

		err = config.LoadFromFile(configFile)
		if err != nil {
			t.Errorf("LoadFromFile() failed for valid YAML: %v", err)
		}

		if config.Port != 9090 {
			t.Errorf("Port = %d, want %d", config.Port, 9090)
		}
		if config.Address != "127.0.0.1" {
			t.Errorf("Address = %q, want %q", config.Address, "127.0.0.1")
		}
		if config.WorldSeed != "seed-yaml-1" {
			t.Errorf("WorldSeed = %q, want %q", config.WorldSeed, "seed-yaml-1")
		}
		if config.Executor.Mode != "live" {
			t.Errorf("Executor.Mode = %q, want %q", config.Executor.Mode, "live")
		}
		if config.Features.EnableGoalBinding {
			t.Error("Features.EnableGoalBinding should be false after overlay")
		}
	})

	t.Run("empty YAML file", func(t *testing.T) {
		config := DefaultConfig()
		tempDir := t.TempDir()
		emptyFile := filepath.Join(tempDir, "empty.yaml")

		err := os.WriteFile(emptyFile, []byte(""), 0644)
		if err != nil {
			t.Fatalf("Failed to create test file: %v", err)
		}

		// An empty YAML document is valid and leaves the config untouched.
		err = config.LoadFromFile(emptyFile)
		if err != nil {
			t.Errorf("LoadFromFile() failed for empty YAML file: %v", err)
		}
	})

	t.Run("minimal valid YAML", func(t *testing.T) {
		config := DefaultConfig()
		tempDir := t.TempDir()
		minimalFile := filepath.Join(tempDir, "minimal.yaml")

		err := os.WriteFile(minimalFile, []byte("{}"), 0644)
		if err != nil {
			t.Fatalf("Failed to create test file: %v", err)
		}

		err = config.LoadFromFile(minimalFile)
		if err != nil {
			t.Errorf("LoadFromFile() failed for minimal YAML: %v", err)
		}
	})

	t.Run("unsupported file extension", func(t *testing.T) {
		config := DefaultConfig()
		tempDir := t.TempDir()
		unsupportedFile := filepath.Join(tempDir, "config.toml")

		err := os.WriteFile(unsupportedFile, []byte(`port = 8080`), 0644)
		if err != nil {
			t.Fatalf("Failed to create test file: %v", err)
		}

		err = config.LoadFromFile(unsupportedFile)
		if err == nil {
			t.Error("LoadFromFile() should return error for unsupported file extension")
		}
	})
}

// TestWithConfigFile verifies the WithConfigFile option and its priority
// relative to later options.
func TestWithConfigFile(t *testing.T) {
	tempDir := t.TempDir()
	configFile := filepath.Join(tempDir, "test-config.yaml")

	validYAML := `
port: 7777
worldSeed: "seed-file-loaded"
`
	if err := os.WriteFile(configFile, []byte(validYAML), 0644); err != nil {
		t.Fatalf("Failed to create test file: %v", err)
	}

	cfg, err := NewConfig(
		WithConfigFile(configFile),
		WithPort(8888), // listed after the file, so it should win
	)
	if err != nil {
		t.Fatalf("NewConfig() error = %v", err)
	}

	if cfg.WorldSeed != "seed-file-loaded" {
		t.Errorf("WorldSeed = %q, want %q", cfg.WorldSeed, "seed-file-loaded")
	}
	if cfg.Port != 8888 {
		t.Errorf("Port = %d, want %d (option should override file)", cfg.Port, 8888)
	}
}
