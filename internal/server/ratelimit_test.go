package server

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

// fakeClock is advanced by hand so window tests do not sleep.
type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time { return c.t }

func newTestLimiter(t *testing.T, rate int, window time.Duration) (*rateLimiter, *fakeClock) {
	t.Helper()
	rl := newRateLimiter(rate, window)
	clock := &fakeClock{t: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
	rl.now = clock.now
	t.Cleanup(rl.stop)
	return rl, clock
}

func TestRateLimiter_Allow(t *testing.T) {
	rl, _ := newTestLimiter(t, 5, time.Second)

	// First 5 requests should be allowed
	for i := 0; i < 5; i++ {
		if !rl.allow("192.168.1.1") {
			t.Errorf("Request %d should be allowed", i+1)
		}
	}

	// 6th request should be denied
	if rl.allow("192.168.1.1") {
		t.Error("6th request should be denied")
	}

	// Different IP should be allowed
	if !rl.allow("192.168.1.2") {
		t.Error("Request from different IP should be allowed")
	}
}

func TestRateLimiter_Window(t *testing.T) {
	rl, clock := newTestLimiter(t, 2, time.Minute)

	if !rl.allow("192.168.1.1") {
		t.Error("First request should be allowed")
	}
	clock.t = clock.t.Add(30 * time.Second)
	if !rl.allow("192.168.1.1") {
		t.Error("Second request should be allowed")
	}
	if rl.allow("192.168.1.1") {
		t.Error("Third request should be denied")
	}

	// The first request leaves the window, the second is still in it.
	clock.t = clock.t.Add(31 * time.Second)
	if !rl.allow("192.168.1.1") {
		t.Error("Request after first expired should be allowed")
	}
	if rl.allow("192.168.1.1") {
		t.Error("Window should be full again")
	}
}

func TestRateLimiter_Middleware_Limits_Posts_Only(t *testing.T) {
	rl, _ := newTestLimiter(t, 3, time.Minute)

	handler := rl.middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	post := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/send", nil)
		req.RemoteAddr = "192.168.1.1:12345"
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		return w
	}

	for i := 0; i < 3; i++ {
		if w := post(); w.Code != http.StatusNoContent {
			t.Errorf("Request %d: expected 204, got %d", i+1, w.Code)
		}
	}

	w := post()
	if w.Code != http.StatusTooManyRequests {
		t.Errorf("4th request: expected 429, got %d", w.Code)
	}
	if w.Header().Get("Retry-After") != "60" {
		t.Errorf("expected Retry-After 60, got %q", w.Header().Get("Retry-After"))
	}

	// Polling is never throttled.
	for i := 0; i < 10; i++ {
		req := httptest.NewRequest(http.MethodGet, "/messages", nil)
		req.RemoteAddr = "192.168.1.1:12345"
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		if w.Code != http.StatusNoContent {
			t.Errorf("GET %d: expected 204, got %d", i+1, w.Code)
		}
	}
}

func TestRateLimiter_Cleanup(t *testing.T) {
	rl, clock := newTestLimiter(t, 1, time.Minute)

	rl.allow("10.0.0.1")
	clock.t = clock.t.Add(90 * time.Second)
	rl.allow("10.0.0.2")
	clock.t = clock.t.Add(60 * time.Second)

	rl.cleanup()

	rl.mu.Lock()
	defer rl.mu.Unlock()
	if _, ok := rl.visitors["10.0.0.1"]; ok {
		t.Error("stale visitor should be removed")
	}
	if _, ok := rl.visitors["10.0.0.2"]; !ok {
		t.Error("recent visitor should be kept")
	}
}

func TestRateLimiter_Stop_Is_Idempotent(t *testing.T) {
	rl := newRateLimiter(1, time.Minute)
	rl.stop()
	rl.stop()
}

func TestGetClientIP(t *testing.T) {
	tests := []struct {
		name       string
		remoteAddr string
		xff        string
		xri        string
		expected   string
	}{
		{
			name:       "RemoteAddr only",
			remoteAddr: "192.168.1.1:12345",
			expected:   "192.168.1.1",
		},
		{
			name:       "X-Forwarded-For single IP",
			remoteAddr: "10.0.0.1:12345",
			xff:        "203.0.113.1",
			expected:   "203.0.113.1",
		},
		{
			name:       "X-Forwarded-For multiple IPs",
			remoteAddr: "10.0.0.1:12345",
			xff:        "203.0.113.1,198.51.100.1",
			expected:   "203.0.113.1",
		},
		{
			name:       "X-Real-IP",
			remoteAddr: "10.0.0.1:12345",
			xri:        "203.0.113.5",
			expected:   "203.0.113.5",
		},
		{
			name:       "IPv6 RemoteAddr",
			remoteAddr: "[::1]:12345",
			expected:   "[::1]",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remoteAddr
			if tt.xff != "" {
				req.Header.Set("X-Forwarded-For", tt.xff)
			}
			if tt.xri != "" {
				req.Header.Set("X-Real-IP", tt.xri)
			}

			if ip := getClientIP(req); ip != tt.expected {
				t.Errorf("Expected %s, got %s", tt.expected, ip)
			}
		})
	}
}

func TestRateLimiter_Keys_On_Forwarded_Header(t *testing.T) {
	rl, _ := newTestLimiter(t, 1, time.Minute)

	handler := rl.middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	post := func(xff string) int {
		req := httptest.NewRequest(http.MethodPost, "/send", nil)
		req.RemoteAddr = "10.0.0.1:4000"
		req.Header.Set("X-Forwarded-For", xff)
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		return w.Code
	}

	// Without a proxy rewriting the header, each value is its own client.
	if code := post("203.0.113.1"); code != http.StatusNoContent {
		t.Errorf("first client: expected 204, got %d", code)
	}
	if code := post("203.0.113.1"); code != http.StatusTooManyRequests {
		t.Errorf("same header: expected 429, got %d", code)
	}
	if code := post("203.0.113.2"); code != http.StatusNoContent {
		t.Errorf("other header: expected 204, got %d", code)
	}
}
