// Package config handles reading and writing .hirepath/config.yaml.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the top-level structure for .hirepath/config.yaml.
type Config struct {
	Version    int              `yaml:"version"`
	Server     ServerConfig     `yaml:"server"`
	Gateway    GatewayConfig    `yaml:"gateway"`
	Interview  InterviewConfig  `yaml:"interview"`
	Audio      AudioConfig      `yaml:"audio"`
	Intake     IntakeConfig     `yaml:"intake"`
	Assessment AssessmentConfig `yaml:"assessment"`
	Cleanup    CleanupConfig    `yaml:"cleanup"`
}

// ServerConfig locates the remote evaluation service.
type ServerConfig struct {
	BaseURL        string `yaml:"base_url"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// GatewayConfig controls retry and rate limiting for every network call.
type GatewayConfig struct {
	MaxRetries        int `yaml:"max_retries"`
	RetryDelayMs      int `yaml:"retry_delay_ms"`
	RateLimit         int `yaml:"rate_limit"`          // requests per window
	RateWindowSeconds int `yaml:"rate_window_seconds"` // sliding window length
}

// InterviewConfig controls the interview stage.
type InterviewConfig struct {
	ForceCompleteFloor int  `yaml:"force_complete_floor"`
	Voice              bool `yaml:"voice"`
	Playback           bool `yaml:"playback"`
}

// AudioConfig selects the local capture and playback tools.
type AudioConfig struct {
	InputFormat              string `yaml:"input_format"` // ffmpeg -f value: avfoundation | pulse | alsa | dshow
	InputDevice              string `yaml:"input_device"` // ffmpeg -i value
	Player                   string `yaml:"player"`
	PlaybackFailureThreshold int    `yaml:"playback_failure_threshold"`
}

// IntakeConfig bounds CV uploads.
type IntakeConfig struct {
	MaxCVSizeMB int `yaml:"max_cv_size_mb"`
}

// AssessmentConfig controls the timed assessment stage.
type AssessmentConfig struct {
	MaxLoadAttempts int `yaml:"max_load_attempts"`
}

// CleanupConfig controls pruning of old sessions.
type CleanupConfig struct {
	MaxAgeDays int `yaml:"max_age_days"`
}

const configDir = ".hirepath"
const configFile = "config.yaml"

// ReadConfig reads .hirepath/config.yaml from the given directory.
// dir is the workspace root (not .hirepath/ itself).
// Returns an error if the file is not found or YAML is malformed.
func ReadConfig(dir string) (*Config, error) {
	path := filepath.Join(dir, configDir, configFile)

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	return cfg, nil
}

// WriteConfig writes cfg to .hirepath/config.yaml in the given directory.
// Creates the .hirepath/ directory if it does not exist.
func WriteConfig(dir string, cfg *Config) error {
	dirPath := filepath.Join(dir, configDir)
	if err := os.MkdirAll(dirPath, 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshalling config: %w", err)
	}

	path := filepath.Join(dirPath, configFile)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	return nil
}

// DefaultConfig returns a Config populated with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Version: 1,
		Server: ServerConfig{
			BaseURL:        "http://localhost:8000",
			TimeoutSeconds: 60,
		},
		Gateway: GatewayConfig{
			MaxRetries:        3,
			RetryDelayMs:      1000,
			RateLimit:         10,
			RateWindowSeconds: 60,
		},
		Interview: InterviewConfig{
			ForceCompleteFloor: 8,
			Voice:              true,
			Playback:           true,
		},
		Audio: AudioConfig{
			InputFormat:              "avfoundation",
			InputDevice:              ":default",
			Player:                   "ffplay",
			PlaybackFailureThreshold: 3,
		},
		Intake: IntakeConfig{
			MaxCVSizeMB: 5,
		},
		Assessment: AssessmentConfig{
			MaxLoadAttempts: 3,
		},
		Cleanup: CleanupConfig{
			MaxAgeDays: 30,
		},
	}
}

// Load resolves the effective configuration for dir: an optional .env file,
// then .hirepath/config.yaml (defaults when absent), then HIREPATH_*
// environment overrides. The result is validated.
func Load(dir string) (*Config, error) {
	if err := godotenv.Load(filepath.Join(dir, ".env")); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}

	cfg, err := ReadConfig(dir)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
		cfg = DefaultConfig()
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	return cfg, nil
}

// Validate rejects configurations the gateway or stages cannot run with.
func (c *Config) Validate() error {
	u, err := url.Parse(c.Server.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("server.base_url must be an absolute URL, got %q", c.Server.BaseURL)
	}
	if c.Gateway.MaxRetries < 1 {
		return fmt.Errorf("gateway.max_retries must be at least 1, got %d", c.Gateway.MaxRetries)
	}
	if c.Gateway.RetryDelayMs < 0 {
		return fmt.Errorf("gateway.retry_delay_ms must not be negative, got %d", c.Gateway.RetryDelayMs)
	}
	if c.Gateway.RateLimit < 1 {
		return fmt.Errorf("gateway.rate_limit must be positive, got %d", c.Gateway.RateLimit)
	}
	if c.Gateway.RateWindowSeconds < 1 {
		return fmt.Errorf("gateway.rate_window_seconds must be positive, got %d", c.Gateway.RateWindowSeconds)
	}
	if c.Interview.ForceCompleteFloor < 1 {
		return fmt.Errorf("interview.force_complete_floor must be positive, got %d", c.Interview.ForceCompleteFloor)
	}
	if c.Intake.MaxCVSizeMB < 1 {
		return fmt.Errorf("intake.max_cv_size_mb must be positive, got %d", c.Intake.MaxCVSizeMB)
	}
	return nil
}

// RetryDelay returns the base backoff delay.
func (c *Config) RetryDelay() time.Duration {
	return time.Duration(c.Gateway.RetryDelayMs) * time.Millisecond
}

// RateWindow returns the sliding rate-limit window.
func (c *Config) RateWindow() time.Duration {
	return time.Duration(c.Gateway.RateWindowSeconds) * time.Second
}

// Timeout returns the per-attempt HTTP timeout.
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.Server.TimeoutSeconds) * time.Second
}

// MaxCVBytes returns the CV upload limit in bytes.
func (c *Config) MaxCVBytes() int64 {
	return int64(c.Intake.MaxCVSizeMB) * 1024 * 1024
}

// StateDir returns the .hirepath directory under dir.
func StateDir(dir string) string {
	return filepath.Join(dir, configDir)
}

func applyEnvOverrides(cfg *Config) {
	cfg.Server.BaseURL = envStr("HIREPATH_SERVER_URL", cfg.Server.BaseURL)
	cfg.Gateway.MaxRetries = envInt("HIREPATH_MAX_RETRIES", cfg.Gateway.MaxRetries)
	cfg.Gateway.RetryDelayMs = envInt("HIREPATH_RETRY_DELAY_MS", cfg.Gateway.RetryDelayMs)
	cfg.Gateway.RateLimit = envInt("HIREPATH_RATE_LIMIT", cfg.Gateway.RateLimit)
	cfg.Interview.Voice = envBool("HIREPATH_VOICE", cfg.Interview.Voice)
	cfg.Interview.Playback = envBool("HIREPATH_PLAYBACK", cfg.Interview.Playback)
	cfg.Audio.InputFormat = envStr("HIREPATH_AUDIO_INPUT_FORMAT", cfg.Audio.InputFormat)
	cfg.Audio.InputDevice = envStr("HIREPATH_AUDIO_INPUT_DEVICE", cfg.Audio.InputDevice)
	cfg.Audio.Player = envStr("HIREPATH_AUDIO_PLAYER", cfg.Audio.Player)
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}
