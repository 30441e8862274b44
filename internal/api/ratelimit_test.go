package api

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/koopa0/chatrelay/internal/log"
)

func TestRateLimiterAllow(t *testing.T) {
	rl := newRateLimiter(1, 2)

	assert.True(t, rl.allow("1.2.3.4"))
	assert.True(t, rl.allow("1.2.3.4"))
	assert.False(t, rl.allow("1.2.3.4"), "burst exhausted")

	// A different IP has its own bucket.
	assert.True(t, rl.allow("5.6.7.8"))
}

func TestRateLimitMiddleware(t *testing.T) {
	rl := newRateLimiter(0.001, 1)
	handler := rateLimitMiddleware(rl, false, log.NewNop())(
		http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusOK)
		}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/threads", nil)
	req.RemoteAddr = "9.9.9.9:1234"

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "1", w.Header().Get("Retry-After"))
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		name       string
		remoteAddr string
		xRealIP    string
		xff        string
		trustProxy bool
		want       string
	}{
		{
			name:       "direct connection",
			remoteAddr: "10.0.0.1:5000",
			want:       "10.0.0.1",
		},
		{
			name:       "headers ignored without trustProxy",
			remoteAddr: "10.0.0.1:5000",
			xRealIP:    "1.1.1.1",
			want:       "10.0.0.1",
		},
		{
			name:       "x-real-ip preferred",
			remoteAddr: "10.0.0.1:5000",
			xRealIP:    "1.1.1.1",
			xff:        "2.2.2.2",
			trustProxy: true,
			want:       "1.1.1.1",
		},
		{
			name:       "x-forwarded-for first entry",
			remoteAddr: "10.0.0.1:5000",
			xff:        "2.2.2.2, 3.3.3.3",
			trustProxy: true,
			want:       "2.2.2.2",
		},
		{
			name:       "non-IP header value rejected",
			remoteAddr: "10.0.0.1:5000",
			xRealIP:    "not-an-ip",
			trustProxy: true,
			want:       "10.0.0.1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remoteAddr
			if tt.xRealIP != "" {
				req.Header.Set("X-Real-IP", tt.xRealIP)
			}
			if tt.xff != "" {
				req.Header.Set("X-Forwarded-For", tt.xff)
			}
			require.Equal(t, tt.want, clientIP(req, tt.trustProxy))
		})
	}
}
