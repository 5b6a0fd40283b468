package main

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"securerip/internal/config"
	"securerip/internal/deps"
	"securerip/internal/disc"
	"securerip/internal/logging"
	"securerip/internal/paranoia"
	"securerip/internal/preflight"
	"securerip/internal/ripping"
)

// tocScanner reads the table of contents of the disc in device.
type tocScanner interface {
	Scan(ctx context.Context, device string) (*disc.TOC, error)
}

// ripTools are the drive-facing collaborators of a rip.
type ripTools struct {
	scanner tocScanner
	reader  ripping.ReadExecutor
	ejector ripping.Ejector
}

type commandContext struct {
	configPath string

	configOnce sync.Once
	config     *config.Config
	configErr  error

	newLogger func(*config.Config) (*slog.Logger, error)
	newTools  func(*config.Config, *slog.Logger) (*ripTools, error)
}

func newCommandContext() *commandContext {
	return &commandContext{
		newLogger: logging.NewFromConfig,
		newTools:  defaultRipTools,
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		cfg, _, _, err := config.Load(strings.TrimSpace(c.configPath))
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

// session returns the loaded config together with a logger built from it.
func (c *commandContext) session() (*config.Config, *slog.Logger, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, nil, err
	}
	logger, err := c.newLogger(cfg)
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}

func defaultRipTools(cfg *config.Config, logger *slog.Logger) (*ripTools, error) {
	if err := deps.Verify(deps.Check(deps.Requirements(cfg))); err != nil {
		return nil, err
	}
	if err := preflight.Verify(preflight.RunAll(cfg)); err != nil {
		return nil, err
	}
	client, err := paranoia.New(cfg.ParanoiaBinary(),
		paranoia.WithLogger(logger),
		paranoia.WithMultipleDriveSupport(cfg.Drive.SelectDevice),
	)
	if err != nil {
		return nil, err
	}
	return &ripTools{
		scanner: disc.NewScanner(cfg.ParanoiaBinary()),
		reader:  client,
		ejector: disc.NewEjector(),
	}, nil
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
