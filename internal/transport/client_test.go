package transport

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"comic-catalog-provider/internal/domain"
	"comic-catalog-provider/internal/logsink"
)

func TestClient_Get_SetsUserAgentAndHeaders(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("User-Agent"); got != "TestAgent/1.0" {
			t.Errorf("expected User-Agent TestAgent/1.0, got %q", got)
		}
		if got := r.Header.Get("X-Requested-With"); got != "XMLHttpRequest" {
			t.Errorf("expected X-Requested-With header, got %q", got)
		}
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		_, _ = w.Write([]byte(`[]`))
	}))
	t.Cleanup(server.Close)

	c := New("test", WithUserAgent("TestAgent/1.0"))
	resp, err := c.Get(context.Background(), server.URL, http.Header{"X-Requested-With": {"XMLHttpRequest"}})
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if resp.ContentType() != "application/json" {
		t.Errorf("expected application/json, got %q", resp.ContentType())
	}
	if string(resp.Body) != "[]" {
		t.Errorf("unexpected body %q", resp.Body)
	}
}

func TestClient_Get_NonOKIsTransportError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	t.Cleanup(server.Close)

	c := New("test")
	_, err := c.Get(context.Background(), server.URL, nil)

	var terr *domain.TransportError
	if !errors.As(err, &terr) {
		t.Fatalf("expected *domain.TransportError, got %T (%v)", err, err)
	}
	if terr.StatusCode != http.StatusNotFound {
		t.Errorf("expected status 404, got %d", terr.StatusCode)
	}
}

func TestClient_Do_RetriesRateLimit(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) < 3 {
			w.Header().Set("Retry-After", "0")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = w.Write([]byte("ok"))
	}))
	t.Cleanup(server.Close)

	c := New("test", WithRetry(3, time.Millisecond))
	resp, err := c.Get(context.Background(), server.URL, nil)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if string(resp.Body) != "ok" {
		t.Errorf("expected body ok, got %q", resp.Body)
	}
	if calls.Load() != 3 {
		t.Errorf("expected 3 calls, got %d", calls.Load())
	}
}

func TestClient_Do_RetryBudgetExhausted(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	t.Cleanup(server.Close)

	c := New("test", WithRetry(1, time.Millisecond))
	_, err := c.Get(context.Background(), server.URL, nil)

	var terr *domain.TransportError
	if !errors.As(err, &terr) || terr.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("expected 429 transport error, got %v", err)
	}
}

func TestClient_Do_RecordsRedirectTrail(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/login", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/accueil", http.StatusFound)
	})
	mux.HandleFunc("/accueil", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/home", http.StatusFound)
	})
	mux.HandleFunc("/home", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("welcome"))
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	c := New("test")
	resp, err := c.Get(context.Background(), server.URL+"/login", nil)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if resp.FinalURL.Path != "/home" {
		t.Errorf("expected final path /home, got %s", resp.FinalURL.Path)
	}
	if len(resp.Redirects) != 2 || !strings.HasSuffix(resp.Redirects[0], "/accueil") {
		t.Errorf("unexpected redirect trail %v", resp.Redirects)
	}
}

func TestClient_Do_NetworkError(t *testing.T) {
	c := New("test")
	_, err := c.Get(context.Background(), "http://127.0.0.1:1", nil) // unreachable port

	if domain.Classify(err) != domain.StatusTransportFailed {
		t.Errorf("expected transport failure, got %v", err)
	}
}

func TestClient_Do_CancelledContext(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("late"))
	}))
	t.Cleanup(server.Close)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New("test").Get(ctx, server.URL, nil)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestClient_Do_MirrorsToSink(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("<html>body</html>"))
	}))
	t.Cleanup(server.Close)

	path := filepath.Join(t.TempDir(), "net.log")
	sink, err := logsink.Open(path, false)
	if err != nil {
		t.Fatalf("open sink: %v", err)
	}

	c := New("test", WithSink(sink))
	if _, err := c.Get(context.Background(), server.URL+"/search", nil); err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	_ = sink.Close()

	data, _ := os.ReadFile(path)
	if !strings.Contains(string(data), "GET "+server.URL+"/search status=200") {
		t.Errorf("expected request line in sink, got %q", data)
	}
	if !strings.Contains(string(data), "<html>body</html>") {
		t.Errorf("expected body in sink, got %q", data)
	}
}

func TestSleepWithContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := SleepWithContext(ctx, time.Hour); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if err := SleepWithContext(context.Background(), 0); err != nil {
		t.Errorf("expected nil for zero duration, got %v", err)
	}
}
