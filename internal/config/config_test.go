package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func clearKeyEnv(t *testing.T) {
	t.Helper()
	t.Setenv("STEPWISE_API_KEY", "")
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("STEPWISE_PROXY_URL", "")
}

func TestLoadDefaultsWhenMissing(t *testing.T) {
	clearKeyEnv(t)
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Chdir(t.TempDir())

	cfg, path, exists, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if exists {
		t.Fatalf("expected no config file, got %s", path)
	}
	if want := filepath.Join(home, ".config", "stepwise", "config.toml"); path != want {
		t.Fatalf("path = %q, want %q", path, want)
	}
	if want := filepath.Join(home, ".local", "share", "stepwise"); cfg.Paths.DataDir != want {
		t.Fatalf("data dir = %q, want %q", cfg.Paths.DataDir, want)
	}
	if cfg.MinDelay() != 2*time.Second {
		t.Fatalf("min delay = %v", cfg.MinDelay())
	}
	if cfg.RequestTimeout() != 20*time.Second {
		t.Fatalf("timeout = %v", cfg.RequestTimeout())
	}
	base, maxDelay := cfg.RetryBackoff()
	if base != 2*time.Second || maxDelay != 16*time.Second {
		t.Fatalf("backoff = %v/%v", base, maxDelay)
	}
	if cfg.PersistDebounce() != 500*time.Millisecond {
		t.Fatalf("debounce = %v", cfg.PersistDebounce())
	}
	if cfg.Frames.JPEGQuality != 70 || cfg.Frames.MaxWidth != 640 {
		t.Fatalf("frames = %+v", cfg.Frames)
	}
	if got := cfg.DatabasePath(); got != filepath.Join(cfg.Paths.DataDir, "profile.db") {
		t.Fatalf("database path = %q", got)
	}
}

func TestLoadParsesFile(t *testing.T) {
	clearKeyEnv(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	body := `
[paths]
data_dir = "` + filepath.ToSlash(filepath.Join(dir, "data")) + `"

[ai]
proxy_url = "http://proxy.local:8080/"
model = "gemini-2.5-pro"
min_delay_ms = 250

[frames]
jpeg_quality = 85

[logging]
format = "JSON"
level = "Debug"
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, resolved, exists, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !exists || resolved != path {
		t.Fatalf("resolved = %q exists=%v", resolved, exists)
	}
	if cfg.AI.ProxyURL != "http://proxy.local:8080" {
		t.Fatalf("proxy url = %q", cfg.AI.ProxyURL)
	}
	if cfg.AI.Model != "gemini-2.5-pro" {
		t.Fatalf("model = %q", cfg.AI.Model)
	}
	if cfg.MinDelay() != 250*time.Millisecond {
		t.Fatalf("min delay = %v", cfg.MinDelay())
	}
	if cfg.Frames.JPEGQuality != 85 {
		t.Fatalf("jpeg quality = %d", cfg.Frames.JPEGQuality)
	}
	if cfg.Logging.Format != "json" || cfg.Logging.Level != "debug" {
		t.Fatalf("logging = %+v", cfg.Logging)
	}
	if cfg.AI.RetryAttempts != 3 {
		t.Fatalf("retry attempts should keep default, got %d", cfg.AI.RetryAttempts)
	}
}

func TestLoadAPIKeyFromEnvironment(t *testing.T) {
	clearKeyEnv(t)
	t.Setenv("GEMINI_API_KEY", " from-gemini ")
	path := filepath.Join(t.TempDir(), "missing.toml")

	cfg, _, _, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.AI.APIKey != "from-gemini" {
		t.Fatalf("api key = %q", cfg.AI.APIKey)
	}

	t.Setenv("STEPWISE_API_KEY", "from-stepwise")
	cfg, _, _, err = Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.AI.APIKey != "from-stepwise" {
		t.Fatalf("STEPWISE_API_KEY should win, got %q", cfg.AI.APIKey)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	clearKeyEnv(t)
	tests := []struct {
		name string
		body string
		want string
	}{
		{name: "jpeg quality", body: "[frames]\njpeg_quality = 150\n", want: "jpeg_quality"},
		{name: "log format", body: "[logging]\nformat = \"xml\"\n", want: "logging.format"},
		{name: "proxy scheme", body: "[ai]\nproxy_url = \"ftp://example\"\n", want: "ai.proxy_url"},
		{name: "backoff order", body: "[ai]\nretry_base_delay_ms = 5000\nretry_max_delay_ms = 1000\n", want: "retry_max_delay_ms"},
		{name: "malformed toml", body: "[ai\n", want: "parse config"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.toml")
			if err := os.WriteFile(path, []byte(tc.body), 0o644); err != nil {
				t.Fatalf("write config: %v", err)
			}
			_, _, _, err := Load(path)
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("error %q does not mention %q", err, tc.want)
			}
		})
	}
}

func TestCreateSampleRoundTrips(t *testing.T) {
	clearKeyEnv(t)
	t.Setenv("HOME", t.TempDir())
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	if err := CreateSample(path); err != nil {
		t.Fatalf("CreateSample: %v", err)
	}
	if err := CreateSample(path); err == nil {
		t.Fatal("expected error when sample already exists")
	}
	cfg, _, exists, err := Load(path)
	if err != nil {
		t.Fatalf("Load sample: %v", err)
	}
	if !exists {
		t.Fatal("sample should exist")
	}
	defaults := Default()
	if cfg.AI.Model != defaults.AI.Model || cfg.Store.ScoutHistoryLimit != defaults.Store.ScoutHistoryLimit {
		t.Fatalf("sample drifted from defaults: %+v", cfg)
	}
}

func TestEnsureDirectories(t *testing.T) {
	base := t.TempDir()
	cfg := Default()
	cfg.Paths.DataDir = filepath.Join(base, "data")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}
	for _, dir := range []string{cfg.Paths.DataDir, cfg.Paths.LogDir} {
		info, err := os.Stat(dir)
		if err != nil || !info.IsDir() {
			t.Fatalf("expected directory %s: %v", dir, err)
		}
	}
}
