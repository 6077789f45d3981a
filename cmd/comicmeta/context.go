package main

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"comic-catalog-provider/internal/config"
	"comic-catalog-provider/internal/domain/cache"
	"comic-catalog-provider/internal/domain/provider"
	"comic-catalog-provider/internal/logging"
	"comic-catalog-provider/internal/logsink"
	"comic-catalog-provider/internal/service"
)

type commandContext struct {
	configFlag   string
	logLevelFlag string
	logOutput    io.Writer

	configOnce sync.Once
	config     *config.Config
	configErr  error

	serviceOnce sync.Once
	service     *service.Service
	sink        *logsink.Sink
	serviceErr  error
}

func newCommandContext() *commandContext {
	return &commandContext{}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		cfg, _, _, err := config.Load(strings.TrimSpace(c.configFlag))
		if err != nil {
			c.configErr = err
			return
		}
		if level := strings.TrimSpace(c.logLevelFlag); level != "" {
			cfg.Logging.Level = level
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

func (c *commandContext) setupLogging() error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	logger, err := logging.New(logging.Options{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: c.logOutput,
	})
	if err != nil {
		return err
	}
	slog.SetDefault(logger)
	return nil
}

// ensureService builds the catalog service the first time a command needs it.
func (c *commandContext) ensureService() (*service.Service, error) {
	c.serviceOnce.Do(func() {
		cfg, err := c.ensureConfig()
		if err != nil {
			c.serviceErr = err
			return
		}

		if cfg.LogSink.Path != "" {
			sink, err := logsink.Open(cfg.LogSink.Path, cfg.LogSink.Verbose)
			if err != nil {
				c.serviceErr = err
				return
			}
			c.sink = sink
		}

		store, err := openCache(cfg.Cache)
		if err != nil {
			c.serviceErr = err
			return
		}

		providers := provider.NewAll(cfg, c.sink, slog.Default())
		slog.Info("Loaded providers", "count", len(providers))
		c.service = service.NewService(providers, service.WithCache(store), service.WithLogger(slog.Default()))
	})
	return c.service, c.serviceErr
}

func (c *commandContext) close() {
	if c.service != nil {
		if err := c.service.Close(); err != nil {
			slog.Warn("Failed to close cache", "error", err)
		}
	}
	if err := c.sink.Close(); err != nil {
		slog.Warn("Failed to close log sink", "error", err)
	}
}

func openCache(cfg config.Cache) (cache.Store, error) {
	switch cfg.Backend {
	case config.CacheSQLite:
		store, err := cache.OpenSQLite(cfg.Path)
		if err != nil {
			return nil, fmt.Errorf("open cache: %w", err)
		}
		return store, nil
	case config.CacheNone:
		return cache.Nop{}, nil
	default:
		return cache.NewMemoryCache(cfg.MaxEntries), nil
	}
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}
