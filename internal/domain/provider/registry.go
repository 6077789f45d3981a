package provider

import (
	"log/slog"

	"comic-catalog-provider/internal/config"
	"comic-catalog-provider/internal/domain"
	"comic-catalog-provider/internal/domain/provider/bdgest"
	"comic-catalog-provider/internal/domain/provider/comicvine"
	"comic-catalog-provider/internal/domain/session"
	"comic-catalog-provider/internal/logsink"
	"comic-catalog-provider/internal/transport"
)

// NewAll instantiates every provider enabled in cfg, in registration order.
// Add new providers here when implementing them.
func NewAll(cfg *config.Config, sink *logsink.Sink, logger *slog.Logger) []domain.Provider {
	if logger == nil {
		logger = slog.Default()
	}

	var providers []domain.Provider

	if cfg.BDGest.Enabled {
		portalCfg := cfg.BDGest
		client := transport.New(domain.SourceBDGest, clientOptions(cfg, sink)...)
		providers = append(providers, bdgest.New(portalCfg.BaseURL,
			func() session.Credentials {
				return session.Credentials{Username: portalCfg.Username, Password: portalCfg.Password}
			},
			bdgest.WithClient(client),
			bdgest.WithLogger(logger),
			bdgest.WithDetails(portalCfg.FetchDetails),
			bdgest.WithConcurrency(portalCfg.Concurrency),
			bdgest.WithCoverProbe(portalCfg.ProbeCovers),
			bdgest.WithTokenAttempts(portalCfg.TokenAttempts),
			bdgest.WithCacheTTL(portalCfg.CacheTTL()),
		))
	}

	if cfg.ComicVine.Enabled {
		cvCfg := cfg.ComicVine
		opts := append(clientOptions(cfg, sink), transport.WithUserAgent(comicvine.UserAgent))
		client := transport.New(domain.SourceComicVine, opts...)
		providers = append(providers, comicvine.New(cvCfg.BaseURL, cvCfg.APIKey,
			comicvine.WithClient(client),
			comicvine.WithLogger(logger),
			comicvine.WithDetails(cvCfg.FetchDetails),
			comicvine.WithConcurrency(cvCfg.Concurrency),
			comicvine.WithMaxIssues(cvCfg.MaxIssues),
			comicvine.WithCacheTTL(cvCfg.CacheTTL()),
		))
	}

	return providers
}

func clientOptions(cfg *config.Config, sink *logsink.Sink) []transport.Option {
	opts := []transport.Option{
		transport.WithTimeout(cfg.Transport.Timeout()),
		transport.WithRetry(cfg.Transport.MaxRetries, cfg.Transport.Backoff()),
	}
	if sink != nil {
		opts = append(opts, transport.WithSink(sink))
	}
	return opts
}
