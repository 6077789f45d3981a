package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"comic-catalog-provider/internal/domain"
	"comic-catalog-provider/internal/logsink"
)

const (
	defaultTimeout    = 10 * time.Second
	defaultMaxRetries = 3
	defaultBackoff    = 2 * time.Second
	maxBodyBytes      = 8 << 20

	// BrowserUserAgent is sent to catalogs that reject non-browser clients.
	BrowserUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36"
)

// Response is a fully read HTTP response.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
	// FinalURL is the URL of the last request after redirects.
	FinalURL *url.URL
	// Redirects lists every URL the client was redirected to, in order.
	Redirects []string
}

// ContentType returns the response media type without parameters.
func (r *Response) ContentType() string {
	ct := r.Header.Get("Content-Type")
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = ct[:i]
	}
	return strings.TrimSpace(strings.ToLower(ct))
}

// Client executes catalog requests. It sets the User-Agent, retries on rate
// limiting, records redirect trails and mirrors traffic to the log sink.
type Client struct {
	http       *http.Client
	provider   string
	userAgent  string
	sink       *logsink.Sink
	maxRetries int
	backoff    time.Duration
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the underlying HTTP client. Its CheckRedirect hook
// is replaced so redirect trails can be captured.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.http = client
		}
	}
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.http.Timeout = d
		}
	}
}

// WithUserAgent sets the User-Agent header sent with every request.
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		c.userAgent = ua
	}
}

// WithSink mirrors every request to the given log sink.
func WithSink(sink *logsink.Sink) Option {
	return func(c *Client) {
		c.sink = sink
	}
}

// WithRetry configures the rate-limit retry budget and base backoff.
func WithRetry(maxRetries int, backoff time.Duration) Option {
	return func(c *Client) {
		c.maxRetries = maxRetries
		c.backoff = backoff
	}
}

// New creates a Client labelled with the provider id used in errors.
func New(provider string, opts ...Option) *Client {
	c := &Client{
		http:       &http.Client{Timeout: defaultTimeout},
		provider:   provider,
		userAgent:  BrowserUserAgent,
		maxRetries: defaultMaxRetries,
		backoff:    defaultBackoff,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.http.CheckRedirect = recordRedirect
	return c
}

// WithJar returns a copy of c whose HTTP client uses jar. The copy shares the
// transport, timeout, sink and retry settings.
func (c *Client) WithJar(jar http.CookieJar) *Client {
	hc := *c.http
	hc.Jar = jar
	cp := *c
	cp.http = &hc
	return &cp
}

// Sink returns the configured log sink, possibly nil.
func (c *Client) Sink() *logsink.Sink {
	return c.sink
}

type trailKey struct{}

type trail struct {
	urls []string
}

func recordRedirect(req *http.Request, via []*http.Request) error {
	if len(via) >= 10 {
		return fmt.Errorf("stopped after %d redirects", len(via))
	}
	if t, ok := req.Context().Value(trailKey{}).(*trail); ok {
		t.urls = append(t.urls, req.URL.String())
	}
	return nil
}

// Do executes req and reads the whole body. Responses are returned whatever
// their status, except 429/503 which are retried first. Network failures are
// reported as *domain.TransportError; an ended ctx is returned as ctx.Err().
func (c *Client) Do(ctx context.Context, req *http.Request) (*Response, error) {
	if req.Header.Get("User-Agent") == "" && c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	for attempt := 0; ; attempt++ {
		t := &trail{}
		attemptReq := req.Clone(context.WithValue(ctx, trailKey{}, t))
		if req.GetBody != nil {
			body, err := req.GetBody()
			if err != nil {
				return nil, fmt.Errorf("rewind request body: %w", err)
			}
			attemptReq.Body = body
		}

		start := time.Now()
		resp, err := c.http.Do(attemptReq)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			c.sink.Printf("%s %s error=%v", req.Method, req.URL, err)
			return nil, &domain.TransportError{
				Provider: c.provider,
				URL:      req.URL.String(),
				Err:      fmt.Errorf("execute request (latency=%v): %w", time.Since(start), err),
			}
		}

		body, readErr := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
		_ = resp.Body.Close()
		if readErr != nil {
			return nil, &domain.TransportError{
				Provider:   c.provider,
				URL:        req.URL.String(),
				StatusCode: resp.StatusCode,
				Err:        fmt.Errorf("read body: %w", readErr),
			}
		}

		c.sink.Record(fmt.Sprintf("%s %s status=%d -> %s", req.Method, req.URL, resp.StatusCode, resp.Request.URL), body)

		if retryable(resp.StatusCode) && attempt < c.maxRetries {
			wait := retryAfter(resp.Header.Get("Retry-After"), c.backoff) * time.Duration(1<<attempt)
			slog.Debug("Catalog rate limited, retrying",
				"provider", c.provider, "url", req.URL.String(), "status", resp.StatusCode, "wait", wait)
			if err := SleepWithContext(ctx, wait); err != nil {
				return nil, err
			}
			continue
		}

		return &Response{
			StatusCode: resp.StatusCode,
			Header:     resp.Header,
			Body:       body,
			FinalURL:   resp.Request.URL,
			Redirects:  t.urls,
		}, nil
	}
}

// Get issues a GET request with optional extra headers and fails on any
// non-2xx status.
func (c *Client) Get(ctx context.Context, rawURL string, header http.Header) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	resp, err := c.Do(ctx, req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		terr := &domain.TransportError{Provider: c.provider, URL: rawURL, StatusCode: resp.StatusCode}
		if s := snippet(resp.Body); s != "" {
			terr.Err = errors.New(s)
		}
		return nil, terr
	}
	return resp, nil
}

// Head probes rawURL and returns the status code.
func (c *Client) Head(ctx context.Context, rawURL string) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, rawURL, nil)
	if err != nil {
		return 0, fmt.Errorf("build request: %w", err)
	}
	resp, err := c.Do(ctx, req)
	if err != nil {
		return 0, err
	}
	return resp.StatusCode, nil
}

func retryable(status int) bool {
	return status == http.StatusTooManyRequests || status == http.StatusServiceUnavailable
}

func retryAfter(header string, fallback time.Duration) time.Duration {
	if header == "" {
		return fallback
	}
	if seconds, err := strconv.Atoi(strings.TrimSpace(header)); err == nil && seconds >= 0 {
		return time.Duration(seconds) * time.Second
	}
	return fallback
}

func snippet(body []byte) string {
	const limit = 256
	s := strings.TrimSpace(string(body))
	if len(s) > limit {
		s = s[:limit] + "..."
	}
	return s
}

// SleepWithContext waits for d or until ctx is done.
func SleepWithContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
