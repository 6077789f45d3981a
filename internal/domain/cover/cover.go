// Package cover rewrites portal thumbnail URLs to their full-size variant.
package cover

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
)

const (
	mediaHost     = "bedetheque.com"
	thumbnailPath = "/cache/thb_couv/"
	fullSizePath  = "/media/Couvertures/"
)

// Upgrade rewrites a thumbnail URL on the portal's media host to the
// full-size cover URL. Other URLs, already upgraded URLs and the empty
// string are returned unchanged, so Upgrade is idempotent.
func Upgrade(raw string) string {
	if raw == "" || !strings.Contains(raw, thumbnailPath) {
		return raw
	}
	u, err := url.Parse(raw)
	if err != nil || !isMediaHost(u.Hostname()) {
		return raw
	}
	return strings.Replace(raw, thumbnailPath, fullSizePath, 1)
}

func isMediaHost(host string) bool {
	host = strings.ToLower(host)
	return host == mediaHost || strings.HasSuffix(host, "."+mediaHost)
}

// Checker reports the HTTP status of a URL, typically through a HEAD request.
type Checker interface {
	Head(ctx context.Context, rawURL string) (int, error)
}

// Prober upgrades URLs and confirms the full-size image exists.
type Prober struct {
	checker Checker
	logger  *slog.Logger
}

// NewProber creates a Prober. A nil logger falls back to slog.Default().
func NewProber(checker Checker, logger *slog.Logger) *Prober {
	if logger == nil {
		logger = slog.Default()
	}
	return &Prober{checker: checker, logger: logger}
}

// Upgrade returns the full-size URL when the probe answers 2xx and the
// original URL otherwise. Probe failures are logged, never returned.
func (p *Prober) Upgrade(ctx context.Context, raw string) string {
	upgraded := Upgrade(raw)
	if upgraded == raw || p == nil || p.checker == nil {
		return upgraded
	}

	status, err := p.checker.Head(ctx, upgraded)
	if err != nil {
		p.logger.Debug("Cover probe failed, keeping thumbnail", "url", upgraded, "error", err)
		return raw
	}
	if status < http.StatusOK || status >= http.StatusMultipleChoices {
		p.logger.Debug("Full-size cover missing, keeping thumbnail", "url", upgraded, "status", status)
		return raw
	}
	return upgraded
}
