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

// Server contains HTTP API settings. Timeouts are in seconds.
type Server struct {
	Port            string `toml:"port"`
	ReadTimeout     int    `toml:"read_timeout"`
	WriteTimeout    int    `toml:"write_timeout"`
	IdleTimeout     int    `toml:"idle_timeout"`
	ShutdownTimeout int    `toml:"shutdown_timeout"`
}

// Transport contains outbound HTTP settings shared by every catalog.
type Transport struct {
	TimeoutSeconds int `toml:"timeout_seconds"`
	MaxRetries     int `toml:"max_retries"`
	BackoffSeconds int `toml:"backoff_seconds"`
}

// BDGest contains the authenticated portal settings.
type BDGest struct {
	Enabled         bool   `toml:"enabled"`
	BaseURL         string `toml:"base_url"`
	Username        string `toml:"username"`
	Password        string `toml:"password"`
	FetchDetails    bool   `toml:"fetch_details"`
	ProbeCovers     bool   `toml:"probe_covers"`
	Concurrency     int    `toml:"concurrency"`
	TokenAttempts   int    `toml:"token_attempts"`
	CacheTTLMinutes int    `toml:"cache_ttl_minutes"`
}

// ComicVine contains the public comic database settings.
type ComicVine struct {
	Enabled         bool   `toml:"enabled"`
	BaseURL         string `toml:"base_url"`
	APIKey          string `toml:"api_key"`
	FetchDetails    bool   `toml:"fetch_details"`
	Concurrency     int    `toml:"concurrency"`
	MaxIssues       int    `toml:"max_issues"`
	CacheTTLMinutes int    `toml:"cache_ttl_minutes"`
}

// Cache selects where search results are kept between requests.
type Cache struct {
	// Backend is one of "memory", "sqlite" or "none".
	Backend    string `toml:"backend"`
	Path       string `toml:"path"`
	MaxEntries int    `toml:"max_entries"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// LogSink configures the append-only request log.
type LogSink struct {
	Path    string `toml:"path"`
	Verbose bool   `toml:"verbose"`
}

// Config encapsulates all configuration values.
//
// Configuration sections by subsystem:
//   - Server: HTTP API bind port and timeouts
//   - Transport: outbound request timeout and rate-limit retries
//   - BDGest: authenticated portal credentials and enrichment
//   - ComicVine: public database API key and enrichment
//   - Cache: result cache backend
//   - Logging: log format and level
//   - LogSink: raw request/response log file
type Config struct {
	Server    Server    `toml:"server"`
	Transport Transport `toml:"transport"`
	BDGest    BDGest    `toml:"bdgest"`
	ComicVine ComicVine `toml:"comicvine"`
	Cache     Cache     `toml:"cache"`
	Logging   Logging   `toml:"logging"`
	LogSink   LogSink   `toml:"log_sink"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return ExpandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. A missing file
// is not an error: defaults and environment overrides apply.
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
		expanded, err := ExpandPath(path)
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

	defaultPath, err := ExpandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs(projectConfigFile)
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

func ExpandPath(pathValue string) (string, error) {
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

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o600); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

// Addr returns the HTTP listen address.
func (s Server) Addr() string {
	return ":" + s.Port
}

// Timeout returns the per-request outbound timeout.
func (t Transport) Timeout() time.Duration {
	return time.Duration(t.TimeoutSeconds) * time.Second
}

// Backoff returns the base rate-limit backoff.
func (t Transport) Backoff() time.Duration {
	return time.Duration(t.BackoffSeconds) * time.Second
}

// CacheTTL returns how long portal results are cached.
func (b BDGest) CacheTTL() time.Duration {
	return time.Duration(b.CacheTTLMinutes) * time.Minute
}

// CacheTTL returns how long public database results are cached.
func (c ComicVine) CacheTTL() time.Duration {
	return time.Duration(c.CacheTTLMinutes) * time.Minute
}
