package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"studio-management-api/internal/middleware"
)

func TestRateLimitBurst(t *testing.T) {
	rl := middleware.NewRateLimiter(1, 3)
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	h := middleware.RateLimit(rl)(next)

	hit := func(path, addr string) int {
		req := httptest.NewRequest("POST", path, nil)
		req.RemoteAddr = addr
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	// the burst passes, the next request is rejected
	for i := 0; i < 3; i++ {
		if code := hit("/auth/login", "10.0.0.1:1234"); code != http.StatusOK {
			t.Fatalf("burst request %d: %d", i, code)
		}
	}
	if code := hit("/auth/login", "10.0.0.1:1234"); code != http.StatusTooManyRequests {
		t.Errorf("expected 429, got %d", code)
	}

	// budgets are per client
	if code := hit("/auth/login", "10.0.0.2:1234"); code != http.StatusOK {
		t.Errorf("other client blocked: %d", code)
	}

	// unlimited paths are never throttled
	for i := 0; i < 10; i++ {
		if code := hit("/appointments", "10.0.0.1:1234"); code != http.StatusOK {
			t.Fatalf("unlimited path throttled: %d", code)
		}
	}
}
