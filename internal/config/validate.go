package config

import (
	"errors"
	"fmt"
	"strconv"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateServer(); err != nil {
		return err
	}
	if err := c.validateTransport(); err != nil {
		return err
	}
	if err := c.validateCatalogs(); err != nil {
		return err
	}
	if err := c.validateCache(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateServer() error {
	port, err := strconv.Atoi(c.Server.Port)
	if err != nil || port < 1 || port > 65535 {
		return fmt.Errorf("server.port must be a number between 1 and 65535, got %q", c.Server.Port)
	}
	if c.Server.ReadTimeout <= 0 || c.Server.WriteTimeout <= 0 || c.Server.IdleTimeout <= 0 {
		return errors.New("server timeouts must be positive")
	}
	if c.Server.ShutdownTimeout <= 0 {
		return errors.New("server.shutdown_timeout must be positive")
	}
	return nil
}

func (c *Config) validateTransport() error {
	if c.Transport.TimeoutSeconds <= 0 {
		return errors.New("transport.timeout_seconds must be positive")
	}
	if c.Transport.MaxRetries < 0 {
		return errors.New("transport.max_retries must be >= 0")
	}
	if c.Transport.BackoffSeconds < 0 {
		return errors.New("transport.backoff_seconds must be >= 0")
	}
	return nil
}

func (c *Config) validateCatalogs() error {
	if !c.BDGest.Enabled && !c.ComicVine.Enabled {
		return errors.New("at least one of bdgest.enabled or comicvine.enabled must be true")
	}
	if c.BDGest.CacheTTLMinutes < 0 || c.ComicVine.CacheTTLMinutes < 0 {
		return errors.New("cache_ttl_minutes must be >= 0")
	}
	return nil
}

func (c *Config) validateCache() error {
	switch c.Cache.Backend {
	case CacheMemory, CacheNone:
	case CacheSQLite:
		if c.Cache.Path == "" {
			return errors.New("cache.path is required when cache.backend is sqlite")
		}
	default:
		return fmt.Errorf("cache.backend must be one of memory, sqlite, none; got %q", c.Cache.Backend)
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
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn or error, got %q", c.Logging.Level)
	}
	return nil
}
