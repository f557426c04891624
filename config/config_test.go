package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/kbukum/relay/version"
)

func TestServiceConfigApplyDefaults(t *testing.T) {
	t.Run("empty environment defaults to development", func(t *testing.T) {
		cfg := ServiceConfig{Name: "consumer"}
		cfg.ApplyDefaults()
		if cfg.Environment != "development" {
			t.Errorf("expected 'development', got %q", cfg.Environment)
		}
		if !cfg.Debug {
			t.Error("expected debug=true for development")
		}
		if cfg.Logging.ServiceName != "consumer" {
			t.Errorf("expected logging service name 'consumer', got %q", cfg.Logging.ServiceName)
		}
		if cfg.Logging.Level != "info" {
			t.Errorf("expected logging level 'info', got %q", cfg.Logging.Level)
		}
	})

	t.Run("production environment keeps debug false", func(t *testing.T) {
		cfg := ServiceConfig{Name: "consumer", Environment: "production"}
		cfg.ApplyDefaults()
		if cfg.Debug {
			t.Error("expected debug=false for production")
		}
	})

	t.Run("version falls back to the build version", func(t *testing.T) {
		cfg := ServiceConfig{Name: "consumer"}
		cfg.ApplyDefaults()
		if !strings.HasPrefix(cfg.Version, version.Version) {
			t.Errorf("expected build version, got %q", cfg.Version)
		}

		pinned := ServiceConfig{Name: "consumer", Version: "1.4.0"}
		pinned.ApplyDefaults()
		if pinned.Version != "1.4.0" {
			t.Errorf("expected configured version kept, got %q", pinned.Version)
		}
	})
}

func TestServiceConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     ServiceConfig
		wantErr bool
		errMsg  string
	}{
		{"valid development", ServiceConfig{Name: "svc", Environment: "development"}, false, ""},
		{"valid production", ServiceConfig{Name: "svc", Environment: "production"}, false, ""},
		{"missing name", ServiceConfig{Environment: "production"}, true, "config.name is required"},
		{"invalid environment", ServiceConfig{Name: "svc", Environment: "invalid"}, true, "config.environment must be one of"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			tc.cfg.Logging.ApplyDefaults()
			err := tc.cfg.Validate()
			if tc.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				if !strings.Contains(err.Error(), tc.errMsg) {
					t.Errorf("expected error containing %q, got %q", tc.errMsg, err.Error())
				}
			} else if err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

type testConfig struct {
	ServiceConfig `yaml:",inline" mapstructure:",squash"`
	Dispatch      struct {
		TargetService  string        `mapstructure:"target_service"`
		ForwardTimeout time.Duration `mapstructure:"forward_timeout"`
	} `mapstructure:"dispatch"`
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

const sampleYAML = `
name: consumer
environment: staging
dispatch:
  target_service: provider
  forward_timeout: 3s
`

func TestLoadConfigWithYAML(t *testing.T) {
	path := writeConfig(t, sampleYAML)

	var cfg testConfig
	if err := LoadConfig("consumer", &cfg, WithConfigFile(path)); err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Name != "consumer" {
		t.Errorf("expected name 'consumer', got %q", cfg.Name)
	}
	if cfg.Environment != "staging" {
		t.Errorf("expected environment 'staging', got %q", cfg.Environment)
	}
	if cfg.Dispatch.TargetService != "provider" {
		t.Errorf("expected target service 'provider', got %q", cfg.Dispatch.TargetService)
	}
	if cfg.Dispatch.ForwardTimeout != 3*time.Second {
		t.Errorf("expected forward timeout 3s, got %v", cfg.Dispatch.ForwardTimeout)
	}
}

func TestLoadConfigEnvOverride(t *testing.T) {
	path := writeConfig(t, sampleYAML)
	t.Setenv("DISPATCH_TARGET_SERVICE", "echo")

	var cfg testConfig
	if err := LoadConfig("consumer", &cfg, WithConfigFile(path)); err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Dispatch.TargetService != "echo" {
		t.Errorf("expected env override 'echo', got %q", cfg.Dispatch.TargetService)
	}
}

func TestLoadConfigEnvPrefixAndDefaults(t *testing.T) {
	t.Setenv("RELAY_DISPATCH_FORWARD_TIMEOUT", "7s")

	var cfg testConfig
	err := LoadConfig("consumer", &cfg,
		WithConfigFile("/nonexistent/config.yml"),
		WithEnvPrefix("relay"),
		WithDefaults(map[string]any{"name": "consumer", "dispatch.forward_timeout": "10s"}),
	)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Name != "consumer" {
		t.Errorf("expected default name, got %q", cfg.Name)
	}
	if cfg.Dispatch.ForwardTimeout != 7*time.Second {
		t.Errorf("expected prefixed env override 7s, got %v", cfg.Dispatch.ForwardTimeout)
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	var cfg testConfig
	err := LoadConfig("nonexistent-service", &cfg, WithConfigFile("/nonexistent/path.yml"))
	if err != nil {
		t.Fatalf("expected LoadConfig to succeed with missing file, got %v", err)
	}
}

func TestLoadConfigInvalidYAML(t *testing.T) {
	path := writeConfig(t, "name: [unterminated")

	var cfg testConfig
	if err := LoadConfig("consumer", &cfg, WithConfigFile(path)); err == nil {
		t.Fatal("expected error for malformed YAML")
	}
}

func TestResolverWithMockFS(t *testing.T) {
	fs := &mockFS{files: map[string]bool{
		"./cmd/consumer/config.yml": true,
		"./.env":                    true,
	}}
	resolver := &Resolver{FileSystem: fs}
	files := resolver.ResolveFiles("consumer", LoaderConfig{})
	if files.ConfigFile != "./cmd/consumer/config.yml" {
		t.Errorf("expected ./cmd/consumer/config.yml, got %q", files.ConfigFile)
	}
	if files.EnvFile != "./.env" {
		t.Errorf("expected ./.env, got %q", files.EnvFile)
	}

	explicit := resolver.ResolveFiles("consumer", LoaderConfig{ConfigFile: "/etc/relay.yml"})
	if explicit.ConfigFile != "/etc/relay.yml" {
		t.Errorf("expected explicit path to win, got %q", explicit.ConfigFile)
	}
}

type mockFS struct {
	files map[string]bool
}

func (m *mockFS) Exists(path string) bool  { return m.files[path] }
func (m *mockFS) LoadEnv(path string) error { return nil }

func TestEnvName(t *testing.T) {
	tests := []struct {
		prefix, key, want string
	}{
		{"", "discovery.provider", "DISCOVERY_PROVIDER"},
		{"", "dispatch.forward_timeout", "DISPATCH_FORWARD_TIMEOUT"},
		{"relay", "server.port", "RELAY_SERVER_PORT"},
	}
	for _, tc := range tests {
		if got := EnvName(tc.prefix, tc.key); got != tc.want {
			t.Errorf("EnvName(%q, %q) = %q, want %q", tc.prefix, tc.key, got, tc.want)
		}
	}
}
