package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Port != 8080 {
		t.Errorf("Port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.Server.BaseURL != "http://localhost:8080" {
		t.Errorf("BaseURL = %q", cfg.Server.BaseURL)
	}
	if cfg.History.MaxRequests != 100 {
		t.Errorf("MaxRequests = %d, want 100", cfg.History.MaxRequests)
	}
	if cfg.AI.MaxTokens != 512 {
		t.Errorf("MaxTokens = %d, want 512", cfg.AI.MaxTokens)
	}
	if cfg.AI.Timeout != 15*time.Second {
		t.Errorf("Timeout = %v, want 15s", cfg.AI.Timeout)
	}
	if cfg.AI.CallsPerEndpointPerHour != 10 {
		t.Errorf("CallsPerEndpointPerHour = %d, want 10", cfg.AI.CallsPerEndpointPerHour)
	}
	if cfg.AI.CallsPerIPPerHour != 20 {
		t.Errorf("CallsPerIPPerHour = %d, want 20", cfg.AI.CallsPerIPPerHour)
	}
	if cfg.Usage.DailyWarnThreshold != 100 {
		t.Errorf("DailyWarnThreshold = %d, want 100", cfg.Usage.DailyWarnThreshold)
	}
	if cfg.Retention.Enabled {
		t.Error("retention should default to disabled")
	}
	if cfg.AI.Enabled {
		t.Error("AI should default to disabled")
	}
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("HOOKSCOPE_SERVER__PORT", "9000")
	t.Setenv("HOOKSCOPE_AI__ENABLED", "true")
	t.Setenv("HOOKSCOPE_AI__MAX_TOKENS", "256")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.Port != 9000 {
		t.Errorf("Port = %d, want 9000", cfg.Server.Port)
	}
	if !cfg.AI.Enabled {
		t.Error("AI.Enabled should be overridden to true")
	}
	if cfg.AI.MaxTokens != 256 {
		t.Errorf("MaxTokens = %d, want 256", cfg.AI.MaxTokens)
	}
}

func TestLoad_YAMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yaml := `
server:
  port: 9999
  base_url: "https://hooks.example.com"
ai:
  api_key: "${TEST_HOOKSCOPE_KEY}"
`
	if err := os.WriteFile(path, []byte(yaml), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("TEST_HOOKSCOPE_KEY", "sk-test-123")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.Port != 9999 {
		t.Errorf("Port = %d, want 9999", cfg.Server.Port)
	}
	if cfg.Server.BaseURL != "https://hooks.example.com" {
		t.Errorf("BaseURL = %q", cfg.Server.BaseURL)
	}
	if cfg.AI.APIKey != "sk-test-123" {
		t.Errorf("APIKey = %q, want env substitution", cfg.AI.APIKey)
	}
}

func TestLoad_MissingFileIsFine(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err != nil {
		t.Errorf("Load() with missing file error = %v, want nil", err)
	}
}
