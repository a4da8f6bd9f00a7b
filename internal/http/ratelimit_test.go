package http

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestRateLimiter_Middleware(t *testing.T) {
	limiter := NewRateLimiter(1, 2)
	handler := limiter.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	send := func(addr string) int {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/upload", nil)
		req.RemoteAddr = addr
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		return w.Code
	}

	for i := 0; i < 2; i++ {
		if got := send("10.0.0.1:5000"); got != http.StatusOK {
			t.Fatalf("request %d status = %d, want %d", i, got, http.StatusOK)
		}
	}
	if got := send("10.0.0.1:5001"); got != http.StatusTooManyRequests {
		t.Errorf("third request status = %d, want %d", got, http.StatusTooManyRequests)
	}
	if got := send("10.0.0.2:5000"); got != http.StatusOK {
		t.Errorf("other client status = %d, want %d", got, http.StatusOK)
	}
}

func TestRateLimiter_Disabled(t *testing.T) {
	limiter := NewRateLimiter(0, 1)
	handler := limiter.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	for i := 0; i < 50; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/upload", nil)
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		if w.Code != http.StatusOK {
			t.Fatalf("request %d status = %d, want %d", i, w.Code, http.StatusOK)
		}
	}
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		remote string
		want   string
	}{
		{"192.168.1.4:8080", "192.168.1.4"},
		{"[::1]:9000", "::1"},
		{"10.1.1.1", "10.1.1.1"},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = tt.remote
		if got := clientIP(req); got != tt.want {
			t.Errorf("clientIP(%q) = %q, want %q", tt.remote, got, tt.want)
		}
	}
}
