package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateSecure(); err != nil {
		return err
	}
	if err := c.validateDrive(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return c.validateNotifications()
}

func (c *Config) validateSecure() error {
	if c.Secure.RequiredMatchesAll < 1 {
		return errors.New("secure.required_matches_all must be at least 1")
	}
	if c.Secure.RequiredMatchesErrors < 1 {
		return errors.New("secure.required_matches_errors must be at least 1")
	}
	if c.Secure.MaxTries < 0 {
		return errors.New("secure.max_tries must be 0 (unlimited) or positive")
	}
	if c.Secure.MaxTries != 0 && c.Secure.MaxTries < c.Secure.RequiredMatchesAll {
		return fmt.Errorf("secure.max_tries (%d) must be 0 or at least secure.required_matches_all (%d)",
			c.Secure.MaxTries, c.Secure.RequiredMatchesAll)
	}
	if c.Secure.CooldownAfterMinutes < 0 {
		return errors.New("secure.cooldown_after_minutes must be 0 (disabled) or positive")
	}
	if c.Secure.CooldownPauseSeconds < 0 {
		return errors.New("secure.cooldown_pause_seconds must be non-negative")
	}
	return nil
}

func (c *Config) validateDrive() error {
	if strings.TrimSpace(c.Drive.Device) == "" {
		return errors.New("drive.device must be set")
	}
	for _, opt := range c.Drive.ReadOptions {
		if !strings.HasPrefix(opt, "-") {
			return fmt.Errorf("drive.read_options: %q is not a flag", opt)
		}
		switch opt {
		case "-d", "-O", "-w", "-Q":
			return fmt.Errorf("drive.read_options: %q is managed by securerip", opt)
		}
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
	return nil
}

func (c *Config) validateNotifications() error {
	topic := c.Notifications.NtfyTopic
	if topic == "" {
		return nil
	}
	if !strings.HasPrefix(topic, "http://") && !strings.HasPrefix(topic, "https://") {
		return fmt.Errorf("notifications.ntfy_topic: %q must be a full http(s) URL", topic)
	}
	if c.Notifications.RequestTimeoutSeconds < 0 {
		return errors.New("notifications.request_timeout_seconds must be non-negative")
	}
	return nil
}
