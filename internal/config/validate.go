package config

import (
	"errors"
	"fmt"
	"net/url"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateAI(); err != nil {
		return err
	}
	if err := c.validateFrames(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateAI() error {
	for field, raw := range map[string]string{"ai.proxy_url": c.AI.ProxyURL, "ai.api_base_url": c.AI.APIBaseURL} {
		parsed, err := url.Parse(raw)
		if err != nil {
			return fmt.Errorf("%s: %w", field, err)
		}
		if parsed.Scheme != "http" && parsed.Scheme != "https" {
			return fmt.Errorf("%s must be an http(s) URL, got %q", field, raw)
		}
	}
	if c.AI.RetryAttempts > 10 {
		return errors.New("ai.retry_attempts must be 10 or fewer")
	}
	if c.AI.RetryMaxDelayMS < c.AI.RetryBaseDelayMS {
		return errors.New("ai.retry_max_delay_ms must not be smaller than ai.retry_base_delay_ms")
	}
	return nil
}

func (c *Config) validateFrames() error {
	if c.Frames.JPEGQuality < 1 || c.Frames.JPEGQuality > 100 {
		return fmt.Errorf("frames.jpeg_quality must be between 1 and 100, got %d", c.Frames.JPEGQuality)
	}
	if c.Frames.MaxWidth < 16 {
		return fmt.Errorf("frames.max_width must be at least 16, got %d", c.Frames.MaxWidth)
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn, or error, got %q", c.Logging.Level)
	}
	return nil
}
