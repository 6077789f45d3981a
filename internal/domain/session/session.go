// Package session keeps an authenticated cookie session with the catalog
// portal alive across searches and detail fetches.
package session

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/publicsuffix"

	"comic-catalog-provider/internal/domain"
	"comic-catalog-provider/internal/transport"
)

const (
	// LoginPath is the portal login form, relative to the base URL.
	LoginPath = "/login"
	// TokenField is the name of the hidden CSRF input of the login form.
	TokenField = "csrf_token_bdg"
	// SuccessMarker appears in the post-login URL when credentials are accepted.
	SuccessMarker = "/accueil"
	// DefaultTokenAttempts bounds how many times the login page is fetched
	// looking for a CSRF token.
	DefaultTokenAttempts = 2
)

// Credentials identify a portal account.
type Credentials struct {
	Username string
	Password string
}

// Empty reports whether either field is missing.
func (c Credentials) Empty() bool {
	return c.Username == "" || c.Password == ""
}

// State is the lifecycle stage of a Manager.
type State int

const (
	NoSession State = iota
	Authenticating
	Authenticated
)

func (s State) String() string {
	switch s {
	case Authenticating:
		return "authenticating"
	case Authenticated:
		return "authenticated"
	default:
		return "no_session"
	}
}

// Manager owns one portal session. It is safe for concurrent use: state
// transitions are serialized and the cookie client is shared by callers.
type Manager struct {
	mu            sync.Mutex
	provider      string
	baseURL       string
	base          *transport.Client
	client        *transport.Client
	creds         Credentials
	state         State
	tokenAttempts int
	logger        *slog.Logger
}

// Option configures a Manager.
type Option func(*Manager)

// WithTokenAttempts sets how many times the login page is fetched before
// giving up on the CSRF token.
func WithTokenAttempts(n int) Option {
	return func(m *Manager) {
		if n > 0 {
			m.tokenAttempts = n
		}
	}
}

// WithLogger sets the logger used for session transitions. It should already
// carry the provider attribute.
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) {
		if l != nil {
			m.logger = l
		}
	}
}

// New creates a Manager for the portal at baseURL. client carries the
// transport settings; each new session gets a copy with a fresh cookie jar.
func New(provider, baseURL string, client *transport.Client, opts ...Option) *Manager {
	m := &Manager{
		provider:      provider,
		baseURL:       strings.TrimRight(baseURL, "/"),
		base:          client,
		tokenAttempts: DefaultTokenAttempts,
		logger:        slog.Default().With("provider", provider),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// State returns the current lifecycle stage.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Invalidate drops the current session. The next Ensure logs in again.
func (m *Manager) Invalidate() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != NoSession {
		m.logger.Debug("Portal session invalidated")
	}
	m.reset()
}

func (m *Manager) reset() {
	m.state = NoSession
	m.client = nil
	m.creds = Credentials{}
}

// Ensure makes sure a session authenticated with creds exists. A session
// opened with other credentials is replaced.
func (m *Manager) Ensure(ctx context.Context, creds Credentials) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state == Authenticated && m.creds == creds {
		return nil
	}
	m.reset()

	if creds.Empty() {
		return &domain.AuthError{Provider: m.provider, Reason: "missing credentials"}
	}

	m.state = Authenticating
	client, err := m.login(ctx, creds)
	if err != nil {
		m.reset()
		return err
	}

	m.client = client
	m.creds = creds
	m.state = Authenticated
	m.logger.Info("Portal session established", "user", creds.Username)
	return nil
}

func (m *Manager) login(ctx context.Context, creds Credentials) (*transport.Client, error) {
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("create cookie jar: %w", err)
	}
	client := m.base.WithJar(jar)

	token, err := m.fetchToken(ctx, client)
	if err != nil {
		return nil, err
	}

	loginURL := m.baseURL + LoginPath
	form := url.Values{
		TokenField:     {token},
		"li1":          {"username"},
		"li2":          {"password"},
		"source":       {""},
		"username":     {creds.Username},
		"password":     {creds.Password},
		"auto_connect": {"on"},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, loginURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("build login request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Referer", loginURL)
	if origin := originOf(m.baseURL); origin != "" {
		req.Header.Set("Origin", origin)
	}

	resp, err := client.Do(ctx, req)
	if err != nil {
		return nil, err
	}
	if !reachedMarker(resp) {
		m.logger.Warn("Portal login rejected", "status", resp.StatusCode, "final_url", resp.FinalURL.String())
		return nil, &domain.AuthError{Provider: m.provider, Reason: "login rejected"}
	}
	return client, nil
}

func (m *Manager) fetchToken(ctx context.Context, client *transport.Client) (string, error) {
	loginURL := m.baseURL + LoginPath
	for attempt := 1; attempt <= m.tokenAttempts; attempt++ {
		resp, err := client.Get(ctx, loginURL, nil)
		if err != nil {
			return "", err
		}
		if token := extractToken(resp.Body); token != "" {
			return token, nil
		}
		m.logger.Warn("No CSRF token on login page", "attempt", attempt, "max_attempts", m.tokenAttempts)
	}
	return "", &domain.AuthError{
		Provider: m.provider,
		Reason:   fmt.Sprintf("no CSRF token after %d attempts", m.tokenAttempts),
	}
}

func extractToken(body []byte) string {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(doc.Find(fmt.Sprintf("input[name=%q]", TokenField)).First().AttrOr("value", ""))
}

func reachedMarker(resp *transport.Response) bool {
	if resp.FinalURL != nil && strings.Contains(resp.FinalURL.String(), SuccessMarker) {
		return true
	}
	for _, hop := range resp.Redirects {
		if strings.Contains(hop, SuccessMarker) {
			return true
		}
	}
	return false
}

func originOf(baseURL string) string {
	u, err := url.Parse(baseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return ""
	}
	return u.Scheme + "://" + u.Host
}

func (m *Manager) current() (*transport.Client, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != Authenticated || m.client == nil {
		return nil, &domain.AuthError{Provider: m.provider, Reason: "no active session"}
	}
	return m.client, nil
}

// Do executes req with the session cookies. Responses are returned whatever
// their status; a transport failure invalidates the session.
func (m *Manager) Do(ctx context.Context, req *http.Request) (*transport.Response, error) {
	client, err := m.current()
	if err != nil {
		return nil, err
	}
	resp, err := client.Do(ctx, req)
	if err != nil {
		m.invalidateOn(err)
		return nil, err
	}
	return resp, nil
}

// Get fetches rawURL with the session cookies. A transport failure
// invalidates the session.
func (m *Manager) Get(ctx context.Context, rawURL string, header http.Header) (*transport.Response, error) {
	client, err := m.current()
	if err != nil {
		return nil, err
	}
	resp, err := client.Get(ctx, rawURL, header)
	if err != nil {
		m.invalidateOn(err)
		return nil, err
	}
	return resp, nil
}

// Head probes rawURL with the session cookies and returns the status code.
// Probe failures leave the session untouched.
func (m *Manager) Head(ctx context.Context, rawURL string) (int, error) {
	client, err := m.current()
	if err != nil {
		return 0, err
	}
	return client.Head(ctx, rawURL)
}

func (m *Manager) invalidateOn(err error) {
	var transportErr *domain.TransportError
	if errors.As(err, &transportErr) {
		m.Invalidate()
	}
}
