package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	c.normalizeServer()
	c.normalizeBDGest()
	c.normalizeComicVine()
	if err := c.normalizeCache(); err != nil {
		return err
	}
	c.normalizeLogging()
	if err := c.normalizeLogSink(); err != nil {
		return err
	}
	return nil
}

func (c *Config) normalizeServer() {
	if port, ok := os.LookupEnv("PORT"); ok && strings.TrimSpace(port) != "" {
		c.Server.Port = port
	}
	c.Server.Port = strings.TrimPrefix(strings.TrimSpace(c.Server.Port), ":")
	if c.Server.Port == "" {
		c.Server.Port = defaultPort
	}
}

func (c *Config) normalizeBDGest() {
	if c.BDGest.Username == "" {
		if value, ok := os.LookupEnv("BDGEST_USERNAME"); ok {
			c.BDGest.Username = value
		}
	}
	if c.BDGest.Password == "" {
		if value, ok := os.LookupEnv("BDGEST_PASSWORD"); ok {
			c.BDGest.Password = value
		}
	}
	c.BDGest.Username = strings.TrimSpace(c.BDGest.Username)
	c.BDGest.BaseURL = strings.TrimRight(strings.TrimSpace(c.BDGest.BaseURL), "/")
	if c.BDGest.BaseURL == "" {
		c.BDGest.BaseURL = defaultBDGestBaseURL
	}
	if c.BDGest.Concurrency <= 0 {
		c.BDGest.Concurrency = defaultConcurrency
	}
	if c.BDGest.TokenAttempts <= 0 {
		c.BDGest.TokenAttempts = defaultTokenAttempts
	}
}

func (c *Config) normalizeComicVine() {
	if c.ComicVine.APIKey == "" {
		if value, ok := os.LookupEnv("COMICVINE_API_KEY"); ok {
			c.ComicVine.APIKey = value
		}
	}
	c.ComicVine.APIKey = strings.TrimSpace(c.ComicVine.APIKey)
	c.ComicVine.BaseURL = strings.TrimRight(strings.TrimSpace(c.ComicVine.BaseURL), "/")
	if c.ComicVine.BaseURL == "" {
		c.ComicVine.BaseURL = defaultComicVineBaseURL
	}
	if c.ComicVine.Concurrency <= 0 {
		c.ComicVine.Concurrency = defaultConcurrency
	}
	if c.ComicVine.MaxIssues <= 0 {
		c.ComicVine.MaxIssues = defaultMaxIssues
	}
}

func (c *Config) normalizeCache() error {
	c.Cache.Backend = strings.ToLower(strings.TrimSpace(c.Cache.Backend))
	if c.Cache.Backend == "" {
		c.Cache.Backend = defaultCacheBackend
	}
	if strings.TrimSpace(c.Cache.Path) == "" {
		c.Cache.Path = defaultCachePath
	}
	var err error
	if c.Cache.Path, err = ExpandPath(c.Cache.Path); err != nil {
		return fmt.Errorf("cache.path: %w", err)
	}
	if c.Cache.MaxEntries <= 0 {
		c.Cache.MaxEntries = defaultCacheMaxEntries
	}
	return nil
}

func (c *Config) normalizeLogging() {
	if level, ok := os.LookupEnv("LOG_LEVEL"); ok && strings.TrimSpace(level) != "" {
		c.Logging.Level = level
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
}

func (c *Config) normalizeLogSink() error {
	if strings.TrimSpace(c.LogSink.Path) == "" {
		c.LogSink.Path = ""
		return nil
	}
	var err error
	if c.LogSink.Path, err = ExpandPath(c.LogSink.Path); err != nil {
		return fmt.Errorf("log_sink.path: %w", err)
	}
	return nil
}
