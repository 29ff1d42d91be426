package middleware

import (
	"net/http"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/zapdesk/gateway-sync/internal/audit"
	apperrors "github.com/zapdesk/gateway-sync/internal/errors"
	"github.com/zapdesk/gateway-sync/internal/httputil"
	"github.com/zapdesk/gateway-sync/internal/util"
)

// AdminAuthMiddleware protects the admin API with a single API key whose
// bcrypt hash is configured. Keys that passed bcrypt once are remembered by
// their SHA-256 so later requests skip the slow comparison.
type AdminAuthMiddleware struct {
	keyHash  string
	verified sync.Map // sha256(key) → struct{}
}

// NewAdminAuthMiddleware returns a middleware that lets every request through
// when keyHash is empty.
func NewAdminAuthMiddleware(keyHash string) *AdminAuthMiddleware {
	return &AdminAuthMiddleware{keyHash: keyHash}
}

func (m *AdminAuthMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.keyHash == "" {
			next.ServeHTTP(w, r)
			return
		}

		key := extractAPIKey(r)
		if key == "" {
			httputil.WriteError(w, apperrors.Unauthorized("Missing API key"))
			return
		}

		if !m.valid(key) {
			log.Warn().Str("path", r.URL.Path).Msg("admin auth: invalid api key")
			audit.LogFromRequest(r, audit.Event{
				Type:    audit.EventAuthFailure,
				Details: map[string]any{"path": r.URL.Path},
			})
			httputil.WriteError(w, apperrors.Unauthorized("Invalid API key"))
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (m *AdminAuthMiddleware) valid(key string) bool {
	digest := util.HashToken(key)
	if _, ok := m.verified.Load(digest); ok {
		return true
	}
	if !util.CheckPasswordHash(key, m.keyHash) {
		return false
	}
	m.verified.Store(digest, struct{}{})
	return true
}

func extractAPIKey(r *http.Request) string {
	if key := r.Header.Get("X-API-Key"); key != "" {
		return key
	}

	authHeader := r.Header.Get("Authorization")
	if strings.HasPrefix(authHeader, "Bearer ") {
		return strings.TrimPrefix(authHeader, "Bearer ")
	}

	return ""
}
