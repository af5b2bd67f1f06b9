package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeAI()
	c.normalizeFrames()
	c.normalizeStore()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		c.Paths.DataDir = defaultDataDir
	}
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(strings.TrimSpace(c.Paths.LogDir)); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeAI() {
	c.AI.APIKey = strings.TrimSpace(c.AI.APIKey)
	if c.AI.APIKey == "" {
		for _, name := range []string{"STEPWISE_API_KEY", "GEMINI_API_KEY"} {
			if value, ok := os.LookupEnv(name); ok && strings.TrimSpace(value) != "" {
				c.AI.APIKey = strings.TrimSpace(value)
				break
			}
		}
	}
	if value, ok := os.LookupEnv("STEPWISE_PROXY_URL"); ok && strings.TrimSpace(value) != "" {
		c.AI.ProxyURL = value
	}
	c.AI.ProxyURL = strings.TrimRight(strings.TrimSpace(c.AI.ProxyURL), "/")
	if c.AI.ProxyURL == "" {
		c.AI.ProxyURL = defaultProxyURL
	}
	c.AI.APIBaseURL = strings.TrimRight(strings.TrimSpace(c.AI.APIBaseURL), "/")
	if c.AI.APIBaseURL == "" {
		c.AI.APIBaseURL = defaultAPIBaseURL
	}
	c.AI.Model = strings.TrimSpace(c.AI.Model)
	if c.AI.Model == "" {
		c.AI.Model = defaultModel
	}
	if c.AI.MinDelayMillis <= 0 {
		c.AI.MinDelayMillis = defaultMinDelayMillis
	}
	if c.AI.TimeoutSeconds <= 0 {
		c.AI.TimeoutSeconds = defaultTimeoutSeconds
	}
	if c.AI.RetryAttempts <= 0 {
		c.AI.RetryAttempts = defaultRetryAttempts
	}
	if c.AI.RetryBaseDelayMS <= 0 {
		c.AI.RetryBaseDelayMS = defaultRetryBaseDelayMS
	}
	if c.AI.RetryMaxDelayMS <= 0 {
		c.AI.RetryMaxDelayMS = defaultRetryMaxDelayMS
	}
}

func (c *Config) normalizeFrames() {
	c.Frames.FFmpegBinary = strings.TrimSpace(c.Frames.FFmpegBinary)
	if c.Frames.FFmpegBinary == "" {
		c.Frames.FFmpegBinary = defaultFFmpegBinary
	}
	c.Frames.FFprobeBinary = strings.TrimSpace(c.Frames.FFprobeBinary)
	if c.Frames.FFprobeBinary == "" {
		c.Frames.FFprobeBinary = defaultFFprobeBinary
	}
	if c.Frames.MaxWidth <= 0 {
		c.Frames.MaxWidth = defaultMaxWidth
	}
	if c.Frames.JPEGQuality <= 0 {
		c.Frames.JPEGQuality = defaultJPEGQuality
	}
	if c.Frames.SeekTimeoutMillis <= 0 {
		c.Frames.SeekTimeoutMillis = defaultSeekTimeoutMillis
	}
	if c.Frames.SeekOffsetSeconds < 0 {
		c.Frames.SeekOffsetSeconds = defaultSeekOffsetSeconds
	}
	if c.Frames.SeekToleranceSeconds <= 0 {
		c.Frames.SeekToleranceSeconds = defaultSeekToleranceSeconds
	}
}

func (c *Config) normalizeStore() {
	if c.Store.PersistDebounceMillis <= 0 {
		c.Store.PersistDebounceMillis = defaultPersistDebounceMillis
	}
	if c.Store.MaxPayloadMB <= 0 {
		c.Store.MaxPayloadMB = defaultMaxPayloadMB
	}
	if c.Store.ScoutHistoryLimit <= 0 {
		c.Store.ScoutHistoryLimit = defaultScoutHistoryLimit
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
