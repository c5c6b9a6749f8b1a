package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestConfigYAMLRoundTrip(t *testing.T) {
	tmpDir := t.TempDir()

	cfg := DefaultConfig()
	cfg.Server.BaseURL = "https://eval.example.com"
	cfg.Gateway.MaxRetries = 5

	if err := WriteConfig(tmpDir, cfg); err != nil {
		t.Fatalf("WriteConfig failed: %v", err)
	}

	loaded, err := ReadConfig(tmpDir)
	if err != nil {
		t.Fatalf("ReadConfig failed: %v", err)
	}

	if loaded.Server.BaseURL != "https://eval.example.com" {
		t.Errorf("Server.BaseURL: got %q, want %q", loaded.Server.BaseURL, "https://eval.example.com")
	}
	if loaded.Gateway.MaxRetries != 5 {
		t.Errorf("Gateway.MaxRetries: got %d, want 5", loaded.Gateway.MaxRetries)
	}
}

func TestDefaultConfigMatchesGatewayContract(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Gateway.MaxRetries != 3 {
		t.Errorf("default MaxRetries: got %d, want 3", cfg.Gateway.MaxRetries)
	}
	if cfg.Gateway.RateLimit != 10 || cfg.RateWindow() != time.Minute {
		t.Errorf("default rate limit: got %d per %s, want 10 per 1m0s", cfg.Gateway.RateLimit, cfg.RateWindow())
	}
	if cfg.Interview.ForceCompleteFloor != 8 {
		t.Errorf("default ForceCompleteFloor: got %d, want 8", cfg.Interview.ForceCompleteFloor)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config invalid: %v", err)
	}
}

func TestPartialFileKeepsDefaults(t *testing.T) {
	tmpDir := t.TempDir()
	partial := `version: 1
server:
  base_url: "http://10.0.0.5:9000"
`
	configPath := filepath.Join(tmpDir, ".hirepath")
	if err := os.MkdirAll(configPath, 0755); err != nil {
		t.Fatalf("failed to create dir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(configPath, "config.yaml"), []byte(partial), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := ReadConfig(tmpDir)
	if err != nil {
		t.Fatalf("ReadConfig failed: %v", err)
	}
	if cfg.Server.BaseURL != "http://10.0.0.5:9000" {
		t.Errorf("BaseURL: got %q", cfg.Server.BaseURL)
	}
	if cfg.Gateway.MaxRetries != 3 {
		t.Errorf("MaxRetries should keep default 3, got %d", cfg.Gateway.MaxRetries)
	}
}

func TestLoadAppliesEnvOverrides(t *testing.T) {
	tmpDir := t.TempDir()
	t.Setenv("HIREPATH_SERVER_URL", "http://override:1234")
	t.Setenv("HIREPATH_MAX_RETRIES", "7")
	t.Setenv("HIREPATH_VOICE", "false")

	cfg, err := Load(tmpDir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Server.BaseURL != "http://override:1234" {
		t.Errorf("BaseURL: got %q", cfg.Server.BaseURL)
	}
	if cfg.Gateway.MaxRetries != 7 {
		t.Errorf("MaxRetries: got %d, want 7", cfg.Gateway.MaxRetries)
	}
	if cfg.Interview.Voice {
		t.Error("Voice should be disabled by HIREPATH_VOICE=false")
	}
}

func TestLoadReadsDotEnv(t *testing.T) {
	tmpDir := t.TempDir()
	if err := os.WriteFile(filepath.Join(tmpDir, ".env"), []byte("HIREPATH_RATE_LIMIT=4\n"), 0644); err != nil {
		t.Fatalf("write .env: %v", err)
	}
	t.Cleanup(func() { os.Unsetenv("HIREPATH_RATE_LIMIT") })

	cfg, err := Load(tmpDir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Gateway.RateLimit != 4 {
		t.Errorf("RateLimit: got %d, want 4", cfg.Gateway.RateLimit)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"relative url", func(c *Config) { c.Server.BaseURL = "localhost" }},
		{"zero retries", func(c *Config) { c.Gateway.MaxRetries = 0 }},
		{"negative delay", func(c *Config) { c.Gateway.RetryDelayMs = -1 }},
		{"zero rate limit", func(c *Config) { c.Gateway.RateLimit = 0 }},
		{"zero window", func(c *Config) { c.Gateway.RateWindowSeconds = 0 }},
		{"zero floor", func(c *Config) { c.Interview.ForceCompleteFloor = 0 }},
		{"zero cv size", func(c *Config) { c.Intake.MaxCVSizeMB = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("Validate() = nil, want error")
			}
		})
	}
}
