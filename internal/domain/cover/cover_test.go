package cover

import (
	"context"
	"errors"
	"net/http"
	"testing"
)

func TestUpgrade(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"thumbnail", "https://www.bedetheque.com/cache/thb_couv/Castaka1_20032007.jpg", "https://www.bedetheque.com/media/Couvertures/Castaka1_20032007.jpg"},
		{"bare host", "https://bedetheque.com/cache/thb_couv/SomethingElse_12345.jpg", "https://bedetheque.com/media/Couvertures/SomethingElse_12345.jpg"},
		{"other catalog", "https://comicvine.gamespot.com/a/uploads/scale_large/1/image.jpg", "https://comicvine.gamespot.com/a/uploads/scale_large/1/image.jpg"},
		{"already full size", "https://www.bedetheque.com/media/Couvertures/AlreadyHQ_67890.jpg", "https://www.bedetheque.com/media/Couvertures/AlreadyHQ_67890.jpg"},
		{"same path on foreign host", "https://example.com/cache/thb_couv/x.jpg", "https://example.com/cache/thb_couv/x.jpg"},
		{"lookalike host", "https://notbedetheque.com/cache/thb_couv/x.jpg", "https://notbedetheque.com/cache/thb_couv/x.jpg"},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Upgrade(tt.in)
			if got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
			if again := Upgrade(got); again != got {
				t.Errorf("Upgrade is not idempotent: %q -> %q", got, again)
			}
		})
	}
}

type fakeChecker struct {
	status int
	err    error
	calls  []string
}

func (f *fakeChecker) Head(_ context.Context, rawURL string) (int, error) {
	f.calls = append(f.calls, rawURL)
	return f.status, f.err
}

func TestProber_Upgrade(t *testing.T) {
	thumb := "https://www.bedetheque.com/cache/thb_couv/Castaka1_20032007.jpg"
	full := "https://www.bedetheque.com/media/Couvertures/Castaka1_20032007.jpg"

	tests := []struct {
		name      string
		checker   *fakeChecker
		in        string
		want      string
		wantCalls int
	}{
		{"full size exists", &fakeChecker{status: http.StatusOK}, thumb, full, 1},
		{"full size missing", &fakeChecker{status: http.StatusNotFound}, thumb, thumb, 1},
		{"probe error", &fakeChecker{err: errors.New("timeout")}, thumb, thumb, 1},
		{"non matching URL is not probed", &fakeChecker{status: http.StatusOK}, "https://example.com/a.jpg", "https://example.com/a.jpg", 0},
		{"empty is not probed", &fakeChecker{status: http.StatusOK}, "", "", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewProber(tt.checker, nil)
			if got := p.Upgrade(context.Background(), tt.in); got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
			if len(tt.checker.calls) != tt.wantCalls {
				t.Errorf("expected %d probes, got %d", tt.wantCalls, len(tt.checker.calls))
			}
		})
	}
}
