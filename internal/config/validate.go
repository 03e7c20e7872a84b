package config

import (
	"errors"
	"fmt"
	"math"
	"net/url"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateCascade(); err != nil {
		return err
	}
	if err := c.validateVLM(); err != nil {
		return err
	}
	if err := c.validateClassifier(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateCascade() error {
	if math.IsNaN(c.Cascade.Threshold) || c.Cascade.Threshold < 0 || c.Cascade.Threshold > 100 {
		return errors.New("cascade.threshold must be between 0 and 100")
	}
	if c.Cascade.TopK < 1 {
		return errors.New("cascade.top_k must be at least 1")
	}
	if c.Cascade.SecondaryTimeoutSeconds < 0 {
		return errors.New("cascade.secondary_timeout_seconds must not be negative")
	}
	return nil
}

func (c *Config) validateVLM() error {
	switch c.VLM.Provider {
	case ProviderOpenAI:
		if _, err := url.ParseRequestURI(c.VLM.BaseURL); err != nil {
			return fmt.Errorf("vlm.base_url must be an absolute URL: %w", err)
		}
	case ProviderGemini:
	default:
		return fmt.Errorf("vlm.provider must be %q or %q, got %q", ProviderOpenAI, ProviderGemini, c.VLM.Provider)
	}
	if c.VLM.Model == "" {
		return errors.New("vlm.model must be set")
	}
	return nil
}

func (c *Config) validateClassifier() error {
	if c.Classifier.Endpoint == "" {
		return nil
	}
	if _, err := url.ParseRequestURI(c.Classifier.Endpoint); err != nil {
		return fmt.Errorf("classifier.endpoint must be an absolute URL: %w", err)
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
