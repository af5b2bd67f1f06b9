package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	DataDir string `toml:"data_dir"`
	LogDir  string `toml:"log_dir"`
}

// AI contains settings for the generation proxy and the pacing/retry policy
// wrapped around it.
type AI struct {
	ProxyURL         string `toml:"proxy_url"`
	APIBaseURL       string `toml:"api_base_url"`
	Model            string `toml:"model"`
	APIKey           string `toml:"api_key"`
	MinDelayMillis   int    `toml:"min_delay_ms"`
	TimeoutSeconds   int    `toml:"timeout_seconds"`
	RetryAttempts    int    `toml:"retry_attempts"`
	RetryBaseDelayMS int    `toml:"retry_base_delay_ms"`
	RetryMaxDelayMS  int    `toml:"retry_max_delay_ms"`
}

// Frames contains settings for screenshot extraction.
type Frames struct {
	FFmpegBinary         string  `toml:"ffmpeg_binary"`
	FFprobeBinary        string  `toml:"ffprobe_binary"`
	MaxWidth             int     `toml:"max_width"`
	JPEGQuality          int     `toml:"jpeg_quality"`
	SeekTimeoutMillis    int     `toml:"seek_timeout_ms"`
	SeekOffsetSeconds    float64 `toml:"seek_offset_seconds"`
	SeekToleranceSeconds float64 `toml:"seek_tolerance_seconds"`
}

// Store contains settings for the in-memory store and its persistence.
type Store struct {
	PersistDebounceMillis int `toml:"persist_debounce_ms"`
	MaxPayloadMB          int `toml:"max_payload_mb"`
	ScoutHistoryLimit     int `toml:"scout_history_limit"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for stepwise.
//
// Configuration sections by subsystem:
//   - Paths: profile database and log directories
//   - AI: generation proxy, pacing, retry, and timeout policy
//   - Frames: ffmpeg binaries and screenshot encoding
//   - Store: auto-persist debounce and payload limits
//   - Logging: log format and level
type Config struct {
	Paths   Paths   `toml:"paths"`
	AI      AI      `toml:"ai"`
	Frames  Frames  `toml:"frames"`
	Store   Store   `toml:"store"`
	Logging Logging `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/stepwise/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("stepwise.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the profile and log directories.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.Paths.LogDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// DatabasePath returns the location of the profile database.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.Paths.DataDir, "profile.db")
}

// MinDelay returns the minimum spacing between outbound AI calls.
func (c *Config) MinDelay() time.Duration {
	return time.Duration(c.AI.MinDelayMillis) * time.Millisecond
}

// RequestTimeout returns the per-attempt AI request timeout.
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.AI.TimeoutSeconds) * time.Second
}

// RetryBackoff returns the base and maximum retry delays.
func (c *Config) RetryBackoff() (time.Duration, time.Duration) {
	return time.Duration(c.AI.RetryBaseDelayMS) * time.Millisecond,
		time.Duration(c.AI.RetryMaxDelayMS) * time.Millisecond
}

// SeekTimeout returns the safety timer armed for each video seek.
func (c *Config) SeekTimeout() time.Duration {
	return time.Duration(c.Frames.SeekTimeoutMillis) * time.Millisecond
}

// PersistDebounce returns the auto-persist debounce window.
func (c *Config) PersistDebounce() time.Duration {
	return time.Duration(c.Store.PersistDebounceMillis) * time.Millisecond
}

// MaxPayloadBytes returns the largest project payload storage will accept.
func (c *Config) MaxPayloadBytes() int64 {
	return int64(c.Store.MaxPayloadMB) * 1024 * 1024
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
