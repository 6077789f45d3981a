package config

const (
	defaultConfigPath        = "~/.config/comicmeta/config.toml"
	projectConfigFile        = "comicmeta.toml"
	defaultPort              = "8080"
	defaultReadTimeout       = 15
	defaultWriteTimeout      = 60
	defaultIdleTimeout       = 60
	defaultShutdownTimeout   = 10
	defaultTransportTimeout  = 10
	defaultMaxRetries        = 3
	defaultBackoffSeconds    = 2
	defaultBDGestBaseURL     = "https://online.bdgest.com"
	defaultComicVineBaseURL  = "https://comicvine.gamespot.com"
	defaultConcurrency       = 4
	defaultTokenAttempts     = 2
	defaultMaxIssues         = 50
	defaultBDGestCacheTTL    = 24 * 60
	defaultComicVineCacheTTL = 12 * 60
	defaultCacheBackend      = CacheMemory
	defaultCachePath         = "~/.cache/comicmeta/cache.db"
	defaultCacheMaxEntries   = 10000
	defaultLogFormat         = "console"
	defaultLogLevel          = "info"
)

// Cache backends.
const (
	CacheMemory = "memory"
	CacheSQLite = "sqlite"
	CacheNone   = "none"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Server: Server{
			Port:            defaultPort,
			ReadTimeout:     defaultReadTimeout,
			WriteTimeout:    defaultWriteTimeout,
			IdleTimeout:     defaultIdleTimeout,
			ShutdownTimeout: defaultShutdownTimeout,
		},
		Transport: Transport{
			TimeoutSeconds: defaultTransportTimeout,
			MaxRetries:     defaultMaxRetries,
			BackoffSeconds: defaultBackoffSeconds,
		},
		BDGest: BDGest{
			Enabled:         true,
			BaseURL:         defaultBDGestBaseURL,
			FetchDetails:    true,
			Concurrency:     defaultConcurrency,
			TokenAttempts:   defaultTokenAttempts,
			CacheTTLMinutes: defaultBDGestCacheTTL,
		},
		ComicVine: ComicVine{
			Enabled:         true,
			BaseURL:         defaultComicVineBaseURL,
			FetchDetails:    true,
			Concurrency:     defaultConcurrency,
			MaxIssues:       defaultMaxIssues,
			CacheTTLMinutes: defaultComicVineCacheTTL,
		},
		Cache: Cache{
			Backend:    defaultCacheBackend,
			Path:       defaultCachePath,
			MaxEntries: defaultCacheMaxEntries,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
