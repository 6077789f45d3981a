package domain

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestDetails_Add(t *testing.T) {
	d := Details{}
	keys := []string{
		d.Add("Scénario", "Greg"),
		d.Add("Scénario", "Paape"),
		d.Add("Dessin", "Dupa"),
		d.Add("Scénario", "Duchâteau"),
	}

	want := []string{"Scénario", "Scénario#2", "Dessin", "Scénario#3"}
	for i := range want {
		if keys[i] != want[i] {
			t.Errorf("key %d: expected %q, got %q", i, want[i], keys[i])
		}
	}
	if d["Scénario#3"] != "Duchâteau" {
		t.Errorf("expected third value under #3, got %q", d["Scénario#3"])
	}
	if len(d) != 4 {
		t.Errorf("expected 4 entries, got %d", len(d))
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Status
	}{
		{"nil", nil, StatusOK},
		{"auth", &AuthError{Provider: "bdgest", Reason: "missing token"}, StatusAuthFailed},
		{"wrapped auth", fmt.Errorf("search: %w", &AuthError{Provider: "bdgest", Reason: "x"}), StatusAuthFailed},
		{"transport", &TransportError{Provider: "bdgest", URL: "u", StatusCode: 500}, StatusTransportFailed},
		{"transport wrapping deadline", &TransportError{Provider: "bdgest", URL: "u", Err: context.DeadlineExceeded}, StatusTransportFailed},
		{"cancelled", context.Canceled, StatusCancelled},
		{"deadline", fmt.Errorf("wait: %w", context.DeadlineExceeded), StatusCancelled},
		{"other", errors.New("boom"), StatusTransportFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.err); got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestResultConstructors(t *testing.T) {
	ok := OK[Album](nil)
	if ok.Items == nil || !ok.Succeeded() {
		t.Errorf("expected empty non-nil ok result, got %+v", ok)
	}

	sig := Signaled[Album](ErrorSignal{Code: SignalTooManyResults, Message: "affiner"})
	if sig.Status != StatusTooManyResults || sig.Signal == nil || len(sig.Items) != 0 {
		t.Errorf("unexpected signaled result %+v", sig)
	}
	if sig.Succeeded() {
		t.Error("signaled result must not count as success")
	}

	failed := Failed[Series](&AuthError{Provider: "bdgest", Reason: "bad credentials"})
	if failed.Status != StatusAuthFailed || failed.Err == nil {
		t.Errorf("unexpected failed result %+v", failed)
	}

	cancelled := Cancelled([]Album{{Title: "partial"}}, context.Canceled)
	if cancelled.Status != StatusCancelled || len(cancelled.Items) != 1 {
		t.Errorf("unexpected cancelled result %+v", cancelled)
	}
}

func TestTransportError_Message(t *testing.T) {
	err := &TransportError{Provider: "comicvine", URL: "https://cv.test/api", StatusCode: 502}
	if got := err.Error(); got != "comicvine: https://cv.test/api returned status 502" {
		t.Errorf("unexpected message %q", got)
	}
	inner := errors.New("connection refused")
	err = &TransportError{Provider: "comicvine", URL: "https://cv.test/api", Err: inner}
	if !errors.Is(err, inner) {
		t.Error("expected TransportError to unwrap its cause")
	}
}
