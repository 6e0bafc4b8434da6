package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestRateLimiter_AllowsBurst(t *testing.T) {
	rl := NewMutationRateLimiter()
	handler := rl.Middleware(okHandler())

	// Burst of 10 should be allowed
	for i := 0; i < 10; i++ {
		req := httptest.NewRequest(http.MethodPost, "/merge", nil)
		req.RemoteAddr = "203.0.113.1:1234"
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)

		if w.Code != http.StatusOK {
			t.Fatalf("request %d: status = %d, want %d", i+1, w.Code, http.StatusOK)
		}
	}
}

func TestRateLimiter_BlocksAfterBurst(t *testing.T) {
	rl := NewMutationRateLimiter()
	handler := rl.Middleware(okHandler())

	// Exhaust the burst
	for i := 0; i < 10; i++ {
		req := httptest.NewRequest(http.MethodPost, "/merge", nil)
		req.RemoteAddr = "203.0.113.2:1234"
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
	}

	// Next request should be rate limited
	req := httptest.NewRequest(http.MethodPost, "/merge", nil)
	req.RemoteAddr = "203.0.113.2:1234"
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusTooManyRequests)
	}
}

func TestRateLimiter_DifferentIPsIndependent(t *testing.T) {
	rl := NewMutationRateLimiter()
	handler := rl.Middleware(okHandler())

	// Exhaust IP1 burst
	for i := 0; i < 10; i++ {
		req := httptest.NewRequest(http.MethodPost, "/merge", nil)
		req.RemoteAddr = "203.0.113.3:1234"
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
	}

	// IP2 should still be allowed
	req := httptest.NewRequest(http.MethodPost, "/merge", nil)
	req.RemoteAddr = "203.0.113.4:1234"
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
}

func TestClientIP_ForwardedFor(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.1:1234"
	req.Header.Set("X-Forwarded-For", "198.51.100.7, 10.0.0.1")

	if ip := clientIP(req); ip != "198.51.100.7" {
		t.Errorf("clientIP = %q, want first forwarded address", ip)
	}
}

func TestScrubQuery(t *testing.T) {
	in := "q=nirvana&api_key=hunter2&limit=5"
	got := scrubQuery(in)
	want := "q=nirvana&api_key=REDACTED&limit=5"
	if got != want {
		t.Errorf("scrubQuery = %q, want %q", got, want)
	}

	if scrubQuery("") != "" {
		t.Error("expected empty passthrough")
	}
}
