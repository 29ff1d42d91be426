package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/zapdesk/gateway-sync/internal/service"
)

type countingLimiter struct {
	hits map[string]int
}

func (l *countingLimiter) Allow(_ context.Context, key string, limit int, window time.Duration) service.RateDecision {
	if l.hits == nil {
		l.hits = map[string]int{}
	}
	l.hits[key]++
	n := l.hits[key]
	return service.RateDecision{
		Allowed:   n <= limit,
		Remaining: max(limit-n, 0),
		ResetAt:   time.Now().Add(window),
	}
}

func TestIPRateLimitMiddleware(t *testing.T) {
	limiter := &countingLimiter{}
	handler := NewIPRateLimitMiddleware(limiter, 2, time.Minute, "link_resolve").Handler(okHandler())

	call := func(remoteAddr string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/links/qr/resolve", nil)
		req.RemoteAddr = remoteAddr
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec
	}

	assert.Equal(t, http.StatusOK, call("198.51.100.1:1000").Code)
	rec := call("198.51.100.1:2000")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "0", rec.Header().Get("X-RateLimit-Remaining"))

	rec = call("198.51.100.1:3000")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
	assert.True(t, strings.Contains(rec.Body.String(), "RATE_LIMIT_EXCEEDED"))

	assert.Equal(t, http.StatusOK, call("198.51.100.2:1000").Code)
	assert.Equal(t, 3, limiter.hits["ip:link_resolve:198.51.100.1"])
}

func TestBodyLimitMiddleware(t *testing.T) {
	handler := NewBodyLimitMiddleware(8).Handler(okHandler())

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader("0123456789"))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader("0123"))
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestSecurityHeadersMiddleware(t *testing.T) {
	rec := httptest.NewRecorder()
	NewSecurityHeadersMiddleware(true).Handler(okHandler()).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", nil))

	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
	assert.NotEmpty(t, rec.Header().Get("Strict-Transport-Security"))
}
