package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/zapdesk/gateway-sync/internal/errors"
	"github.com/zapdesk/gateway-sync/internal/model"
)

type recordedCall struct {
	Path          string
	Token         string
	Authorization string
	Body          map[string]any
}

type fakeWuzapi struct {
	mu      sync.Mutex
	calls   []recordedCall
	handler func(w http.ResponseWriter, r *http.Request, call recordedCall)
}

func (f *fakeWuzapi) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	call := recordedCall{
		Path:          r.URL.Path,
		Token:         r.Header.Get("token"),
		Authorization: r.Header.Get("Authorization"),
	}
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&call.Body)
	}
	f.mu.Lock()
	f.calls = append(f.calls, call)
	f.mu.Unlock()
	f.handler(w, r, call)
}

func newWuzapiServer(t *testing.T, handler func(w http.ResponseWriter, r *http.Request, call recordedCall)) (*fakeWuzapi, *model.GatewayServer) {
	t.Helper()
	fake := &fakeWuzapi{handler: handler}
	ts := httptest.NewServer(fake)
	t.Cleanup(ts.Close)
	return fake, &model.GatewayServer{ID: "srv-w", Type: model.ProviderWuzapi, URL: ts.URL, APIKey: "admin-key"}
}

func newTestWuzapiClient() *WuzapiClient {
	return NewWuzapiClient(NewHTTPClient(5*time.Second, false), nil)
}

func TestWuzapiClient_SessionQR(t *testing.T) {
	t.Run("second variant answers", func(t *testing.T) {
		fake, server := newWuzapiServer(t, func(w http.ResponseWriter, r *http.Request, _ recordedCall) {
			if r.URL.Path == "/admin/session/qr" {
				_, _ = w.Write([]byte(`{"code":200,"data":{"QRCode":"data:image/png;base64,QQ"}}`))
				return
			}
			w.WriteHeader(http.StatusNotFound)
		})

		qr, err := newTestWuzapiClient().SessionQR(context.Background(), server, "user-token")

		require.NoError(t, err)
		assert.Equal(t, "data:image/png;base64,QQ", qr.Value)
		assert.Equal(t, "data.QRCode", qr.Key)
		assert.Equal(t, server.URL+"/admin/session/qr", qr.Endpoint)
		assert.Equal(t, AuthToken, qr.Mode)

		require.Len(t, fake.calls, 3)
		assert.Equal(t, "/session/qr", fake.calls[0].Path)
		assert.Equal(t, "user-token", fake.calls[0].Token)
		assert.Empty(t, fake.calls[0].Authorization)
		assert.Equal(t, "Bearer admin-key", fake.calls[1].Authorization)
		assert.Equal(t, "user-token", fake.calls[1].Token)
		for _, c := range fake.calls {
			assert.NotEqual(t, "/api/session/qr", c.Path)
		}
	})

	t.Run("falls back to user route when variants are exhausted", func(t *testing.T) {
		fake, server := newWuzapiServer(t, func(w http.ResponseWriter, r *http.Request, _ recordedCall) {
			if r.URL.Path == "/users/user-token/qrcode" {
				_, _ = w.Write([]byte(`{"qrcode":"RAW"}`))
				return
			}
			w.WriteHeader(http.StatusNotFound)
		})

		qr, err := newTestWuzapiClient().SessionQR(context.Background(), server, "user-token")

		require.NoError(t, err)
		assert.Equal(t, "RAW", qr.Value)
		assert.Equal(t, AuthBearerOnly, qr.Mode)
		require.Len(t, fake.calls, 7)
		last := fake.calls[6]
		assert.Empty(t, last.Token)
		assert.Equal(t, "Bearer admin-key", last.Authorization)
	})

	t.Run("everything 404 reports tried endpoints", func(t *testing.T) {
		_, server := newWuzapiServer(t, func(w http.ResponseWriter, _ *http.Request, _ recordedCall) {
			w.WriteHeader(http.StatusNotFound)
		})

		_, err := newTestWuzapiClient().SessionQR(context.Background(), server, "user-token")

		appErr, ok := apperrors.AsAppError(err)
		require.True(t, ok)
		assert.Equal(t, apperrors.ErrCodeGatewayTransport, appErr.Code)
		details := appErr.Details.(map[string]any)
		assert.Equal(t, http.StatusNotFound, details["upstreamStatus"])
		assert.Len(t, details["tried"], 4)
	})

	t.Run("unauthorized stops without fallback", func(t *testing.T) {
		fake, server := newWuzapiServer(t, func(w http.ResponseWriter, _ *http.Request, _ recordedCall) {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error":"invalid token"}`))
		})

		_, err := newTestWuzapiClient().SessionQR(context.Background(), server, "user-token")

		appErr, ok := apperrors.AsAppError(err)
		require.True(t, ok)
		assert.Equal(t, "invalid token", appErr.Message)
		assert.Len(t, fake.calls, 2)
	})

	t.Run("success without qr", func(t *testing.T) {
		_, server := newWuzapiServer(t, func(w http.ResponseWriter, _ *http.Request, _ recordedCall) {
			_, _ = w.Write([]byte(`{"code":200,"data":{"status":"logged in"}}`))
		})

		_, err := newTestWuzapiClient().SessionQR(context.Background(), server, "user-token")

		assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeQRNotPresent))
	})

	t.Run("missing token", func(t *testing.T) {
		_, err := newTestWuzapiClient().SessionQR(context.Background(), &model.GatewayServer{URL: "http://x"}, "")
		assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeMissingRequired))
	})
}

func TestWuzapiClient_ConnectSession(t *testing.T) {
	t.Run("sends default payload", func(t *testing.T) {
		fake, server := newWuzapiServer(t, func(w http.ResponseWriter, _ *http.Request, _ recordedCall) {
			_, _ = w.Write([]byte(`{"code":200,"data":{"details":"Connected!"}}`))
		})

		res, err := newTestWuzapiClient().ConnectSession(context.Background(), server, "user-token", nil)

		require.NoError(t, err)
		assert.Equal(t, server.URL+"/session/connect", res.Endpoint)
		assert.JSONEq(t, `{"code":200,"data":{"details":"Connected!"}}`, string(res.Data))
		require.Len(t, fake.calls, 1)
		assert.Equal(t, true, fake.calls[0].Body["Immediate"])
		assert.Equal(t, []any{"Message", "ChatPresence"}, fake.calls[0].Body["Subscribe"])
	})

	t.Run("no user route fallback", func(t *testing.T) {
		fake, server := newWuzapiServer(t, func(w http.ResponseWriter, _ *http.Request, _ recordedCall) {
			w.WriteHeader(http.StatusNotFound)
		})

		_, err := newTestWuzapiClient().ConnectSession(context.Background(), server, "user-token", map[string]any{"Immediate": false})

		assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeGatewayTransport))
		assert.Len(t, fake.calls, 6)
		assert.Equal(t, false, fake.calls[0].Body["Immediate"])
	})
}

func TestWuzapiClient_ListUsers(t *testing.T) {
	t.Run("retries with bearer prefix", func(t *testing.T) {
		fake, server := newWuzapiServer(t, func(w http.ResponseWriter, r *http.Request, call recordedCall) {
			if r.URL.Path != "/admin/users" || call.Authorization != "Bearer admin-key" {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			_, _ = w.Write([]byte(`{"code":200,"data":[{"name":"a","token":"ta","connected":true,"loggedIn":true},{"name":"b","token":"tb"}]}`))
		})

		users, err := newTestWuzapiClient().ListUsers(context.Background(), server)

		require.NoError(t, err)
		require.Len(t, users, 2)
		assert.Equal(t, model.StatusConnected, users[0].Status)
		assert.Equal(t, model.StatusDisconnected, users[1].Status)
		require.Len(t, fake.calls, 2)
		assert.Equal(t, "admin-key", fake.calls[0].Authorization)
	})

	t.Run("admin suffix is stripped", func(t *testing.T) {
		fake, server := newWuzapiServer(t, func(w http.ResponseWriter, _ *http.Request, _ recordedCall) {
			_, _ = w.Write([]byte(`[]`))
		})
		server.URL += "/admin/"

		users, err := newTestWuzapiClient().ListUsers(context.Background(), server)

		require.NoError(t, err)
		assert.Empty(t, users)
		assert.Equal(t, "/admin/users", fake.calls[0].Path)
	})

	t.Run("server error is not retried", func(t *testing.T) {
		fake, server := newWuzapiServer(t, func(w http.ResponseWriter, _ *http.Request, _ recordedCall) {
			w.WriteHeader(http.StatusBadGateway)
		})

		_, err := newTestWuzapiClient().ListUsers(context.Background(), server)

		assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeGatewayTransport))
		assert.Len(t, fake.calls, 1)
	})
}

func TestWuzapiClient_LogsMaskedToken(t *testing.T) {
	var buf bytes.Buffer
	prev := log.Logger
	log.Logger = zerolog.New(&buf).Level(zerolog.DebugLevel)
	t.Cleanup(func() { log.Logger = prev })

	_, server := newWuzapiServer(t, func(w http.ResponseWriter, r *http.Request, _ recordedCall) {
		if r.URL.Path == "/session/connect" {
			_, _ = w.Write([]byte(`{"success":true}`))
			return
		}
		w.WriteHeader(http.StatusNotFound)
	})

	_, err := newTestWuzapiClient().ConnectSession(context.Background(), server, "secret-user-token", nil)
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "secr-****")
	assert.NotContains(t, out, "secret-user-token")
}
