package session

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"comic-catalog-provider/internal/domain"
	"comic-catalog-provider/internal/transport"
)

const loginPage = `<html><body><form method="post" action="/login">
	<input type="hidden" name="csrf_token_bdg" value="tok-123">
	<input name="username"><input name="password" type="password">
</form></body></html>`

type fakePortal struct {
	tokenGets  atomic.Int32
	loginPosts atomic.Int32
	// tokenAfter is the number of login page fetches served without a token.
	tokenAfter int32
	// viaHop redirects through the marker page to a neutral landing page.
	viaHop bool
}

func (p *fakePortal) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /login", func(w http.ResponseWriter, r *http.Request) {
		n := p.tokenGets.Add(1)
		if n <= p.tokenAfter {
			w.Write([]byte(`<html><body>maintenance</body></html>`))
			return
		}
		w.Write([]byte(loginPage))
	})
	mux.HandleFunc("POST /login", func(w http.ResponseWriter, r *http.Request) {
		p.loginPosts.Add(1)
		if err := r.ParseForm(); err != nil {
			t.Errorf("parse login form: %v", err)
		}
		if r.PostForm.Get(TokenField) != "tok-123" {
			t.Errorf("Expected CSRF token tok-123, got %q", r.PostForm.Get(TokenField))
		}
		if r.PostForm.Get("li1") != "username" || r.PostForm.Get("auto_connect") != "on" {
			t.Errorf("Unexpected login form %v", r.PostForm)
		}
		if r.Header.Get("Referer") == "" || r.Header.Get("Origin") == "" {
			t.Error("Expected Referer and Origin headers")
		}
		if r.PostForm.Get("password") != "secret" && r.PostForm.Get("password") != "other" {
			w.Write([]byte(loginPage))
			return
		}
		http.SetCookie(w, &http.Cookie{Name: "bdg_session", Value: r.PostForm.Get("username"), Path: "/"})
		if p.viaHop {
			http.Redirect(w, r, "/accueil?next=home", http.StatusFound)
			return
		}
		http.Redirect(w, r, "/accueil", http.StatusFound)
	})
	mux.HandleFunc("GET /accueil", func(w http.ResponseWriter, r *http.Request) {
		if p.viaHop {
			http.Redirect(w, r, "/home", http.StatusFound)
			return
		}
		w.Write([]byte("bienvenue"))
	})
	mux.HandleFunc("GET /home", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("home"))
	})
	mux.HandleFunc("GET /private", func(w http.ResponseWriter, r *http.Request) {
		c, err := r.Cookie("bdg_session")
		if err != nil {
			http.Error(w, "no session", http.StatusForbidden)
			return
		}
		w.Write([]byte("hello " + c.Value))
	})
	mux.HandleFunc("GET /broken", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	})
	return mux
}

func newTestManager(baseURL string, opts ...Option) *Manager {
	client := transport.New("bdgest", transport.WithRetry(0, 0))
	return New("bdgest", baseURL, client, opts...)
}

func TestManager_EnsureAndReuse(t *testing.T) {
	portal := &fakePortal{}
	ts := httptest.NewServer(portal.handler(t))
	defer ts.Close()

	m := newTestManager(ts.URL)
	creds := Credentials{Username: "alice", Password: "secret"}

	if err := m.Ensure(context.Background(), creds); err != nil {
		t.Fatalf("Ensure failed: %v", err)
	}
	if m.State() != Authenticated {
		t.Errorf("Expected authenticated state, got %s", m.State())
	}
	if err := m.Ensure(context.Background(), creds); err != nil {
		t.Fatalf("second Ensure failed: %v", err)
	}
	if got := portal.loginPosts.Load(); got != 1 {
		t.Errorf("Expected session reuse (1 login), got %d logins", got)
	}

	resp, err := m.Get(context.Background(), ts.URL+"/private", nil)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if string(resp.Body) != "hello alice" {
		t.Errorf("Expected cookie-backed response, got %q", resp.Body)
	}
}

func TestManager_CredentialChangeForcesLogin(t *testing.T) {
	portal := &fakePortal{}
	ts := httptest.NewServer(portal.handler(t))
	defer ts.Close()

	m := newTestManager(ts.URL)
	if err := m.Ensure(context.Background(), Credentials{Username: "alice", Password: "secret"}); err != nil {
		t.Fatalf("Ensure failed: %v", err)
	}
	if err := m.Ensure(context.Background(), Credentials{Username: "bob", Password: "other"}); err != nil {
		t.Fatalf("Ensure with new credentials failed: %v", err)
	}
	if got := portal.loginPosts.Load(); got != 2 {
		t.Errorf("Expected 2 logins, got %d", got)
	}

	resp, err := m.Get(context.Background(), ts.URL+"/private", nil)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if string(resp.Body) != "hello bob" {
		t.Errorf("Expected fresh cookie jar for new account, got %q", resp.Body)
	}
}

func TestManager_RejectedLogin(t *testing.T) {
	portal := &fakePortal{}
	ts := httptest.NewServer(portal.handler(t))
	defer ts.Close()

	m := newTestManager(ts.URL)
	err := m.Ensure(context.Background(), Credentials{Username: "alice", Password: "wrong"})

	var authErr *domain.AuthError
	if !errors.As(err, &authErr) {
		t.Fatalf("Expected AuthError, got %v", err)
	}
	if m.State() != NoSession {
		t.Errorf("Expected no session after rejection, got %s", m.State())
	}
	if _, err := m.Get(context.Background(), ts.URL+"/private", nil); !errors.As(err, &authErr) {
		t.Errorf("Expected Get without session to fail with AuthError, got %v", err)
	}
}

func TestManager_MarkerOnRedirectHop(t *testing.T) {
	portal := &fakePortal{viaHop: true}
	ts := httptest.NewServer(portal.handler(t))
	defer ts.Close()

	m := newTestManager(ts.URL)
	if err := m.Ensure(context.Background(), Credentials{Username: "alice", Password: "secret"}); err != nil {
		t.Fatalf("Expected login to succeed via redirect hop, got %v", err)
	}
}

func TestManager_TokenAttempts(t *testing.T) {
	tests := []struct {
		name       string
		tokenAfter int32
		attempts   int
		wantErr    bool
		wantGets   int32
	}{
		{"token on first fetch", 0, 2, false, 1},
		{"token on second fetch", 1, 2, false, 2},
		{"budget exhausted", 2, 2, true, 2},
		{"larger budget", 2, 3, false, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			portal := &fakePortal{tokenAfter: tt.tokenAfter}
			ts := httptest.NewServer(portal.handler(t))
			defer ts.Close()

			m := newTestManager(ts.URL, WithTokenAttempts(tt.attempts))
			err := m.Ensure(context.Background(), Credentials{Username: "alice", Password: "secret"})

			if tt.wantErr {
				var authErr *domain.AuthError
				if !errors.As(err, &authErr) {
					t.Errorf("Expected AuthError, got %v", err)
				}
				if portal.loginPosts.Load() != 0 {
					t.Error("Expected no login POST without a token")
				}
			} else if err != nil {
				t.Errorf("Ensure failed: %v", err)
			}
			if got := portal.tokenGets.Load(); got != tt.wantGets {
				t.Errorf("Expected %d login page fetches, got %d", tt.wantGets, got)
			}
		})
	}
}

func TestManager_TransportErrorInvalidates(t *testing.T) {
	portal := &fakePortal{}
	ts := httptest.NewServer(portal.handler(t))
	defer ts.Close()

	m := newTestManager(ts.URL)
	creds := Credentials{Username: "alice", Password: "secret"}
	if err := m.Ensure(context.Background(), creds); err != nil {
		t.Fatalf("Ensure failed: %v", err)
	}

	_, err := m.Get(context.Background(), ts.URL+"/broken", nil)
	var transportErr *domain.TransportError
	if !errors.As(err, &transportErr) {
		t.Fatalf("Expected TransportError, got %v", err)
	}
	if transportErr.StatusCode != http.StatusInternalServerError {
		t.Errorf("Expected status 500, got %d", transportErr.StatusCode)
	}
	if m.State() != NoSession {
		t.Errorf("Expected session invalidated, got %s", m.State())
	}

	if err := m.Ensure(context.Background(), creds); err != nil {
		t.Fatalf("re-Ensure failed: %v", err)
	}
	if got := portal.loginPosts.Load(); got != 2 {
		t.Errorf("Expected re-login after invalidation, got %d logins", got)
	}
}

func TestManager_MissingCredentials(t *testing.T) {
	m := newTestManager("http://127.0.0.1:1")
	err := m.Ensure(context.Background(), Credentials{Username: "alice"})
	var authErr *domain.AuthError
	if !errors.As(err, &authErr) {
		t.Fatalf("Expected AuthError, got %v", err)
	}
	if authErr.Reason != "missing credentials" {
		t.Errorf("Unexpected reason %q", authErr.Reason)
	}
}

func TestManager_DoRequiresSession(t *testing.T) {
	portal := &fakePortal{}
	ts := httptest.NewServer(portal.handler(t))
	defer ts.Close()

	m := newTestManager(ts.URL)
	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, ts.URL+"/private", nil)
	if err != nil {
		t.Fatal(err)
	}

	_, err = m.Do(context.Background(), req)
	var authErr *domain.AuthError
	if !errors.As(err, &authErr) {
		t.Fatalf("Expected AuthError before login, got %v", err)
	}

	if err := m.Ensure(context.Background(), Credentials{Username: "carol", Password: "secret"}); err != nil {
		t.Fatalf("Ensure failed: %v", err)
	}
	resp, err := m.Do(context.Background(), req)
	if err != nil {
		t.Fatalf("Do failed: %v", err)
	}
	if resp.StatusCode != http.StatusOK || string(resp.Body) != "hello carol" {
		t.Errorf("Unexpected response %d %q", resp.StatusCode, resp.Body)
	}
}
