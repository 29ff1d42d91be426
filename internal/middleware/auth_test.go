package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zapdesk/gateway-sync/internal/util"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestAdminAuthMiddleware(t *testing.T) {
	hash, err := util.HashPassword("admin-key")
	require.NoError(t, err)

	tests := []struct {
		name   string
		header map[string]string
		status int
	}{
		{"bearer key", map[string]string{"Authorization": "Bearer admin-key"}, http.StatusOK},
		{"x-api-key header", map[string]string{"X-API-Key": "admin-key"}, http.StatusOK},
		{"missing key", nil, http.StatusUnauthorized},
		{"wrong key", map[string]string{"Authorization": "Bearer nope"}, http.StatusUnauthorized},
		{"basic scheme", map[string]string{"Authorization": "Basic admin-key"}, http.StatusUnauthorized},
	}

	mw := NewAdminAuthMiddleware(hash)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/exports", nil)
			for k, v := range tt.header {
				req.Header.Set(k, v)
			}
			rec := httptest.NewRecorder()

			mw.Handler(okHandler()).ServeHTTP(rec, req)

			assert.Equal(t, tt.status, rec.Code)
		})
	}

	t.Run("verified keys are cached", func(t *testing.T) {
		mw := NewAdminAuthMiddleware(hash)
		assert.True(t, mw.valid("admin-key"))
		_, ok := mw.verified.Load(util.HashToken("admin-key"))
		assert.True(t, ok)
		assert.False(t, mw.valid("other"))
	})

	t.Run("open when no hash configured", func(t *testing.T) {
		rec := httptest.NewRecorder()
		NewAdminAuthMiddleware("").Handler(okHandler()).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
	})
}
