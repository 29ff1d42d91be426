package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/zapdesk/gateway-sync/internal/gateway"
	"github.com/zapdesk/gateway-sync/internal/model"
	"github.com/zapdesk/gateway-sync/internal/service"
)

type mockSyncer struct {
	mock.Mock
}

func (m *mockSyncer) Sync(ctx context.Context, req service.SyncRequest) (*service.SyncResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.SyncResponse), args.Error(1)
}

type mockReconciler struct {
	mock.Mock
}

func (m *mockReconciler) Reconcile(ctx context.Context, req service.ReconcileRequest) (*service.ReconcileResult, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.ReconcileResult), args.Error(1)
}

type mockConnectionLister struct {
	mock.Mock
}

func (m *mockConnectionLister) List(ctx context.Context, filter model.ConnectionFilter) ([]model.StoredConnection, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.StoredConnection), args.Error(1)
}

type mockExportLister struct {
	mock.Mock
}

func (m *mockExportLister) List(ctx context.Context, filter model.ExportBatchFilter) ([]model.ExportBatch, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.ExportBatch), args.Error(1)
}

type mockLinks struct {
	mock.Mock
}

func (m *mockLinks) Issue(ctx context.Context, req service.IssueLinkRequest) (*service.IssuedLink, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.IssuedLink), args.Error(1)
}

func (m *mockLinks) Resolve(ctx context.Context, token string, includeQR bool) (*service.LinkResolution, error) {
	args := m.Called(ctx, token, includeQR)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.LinkResolution), args.Error(1)
}

type mockSessions struct {
	mock.Mock
}

func (m *mockSessions) Test(ctx context.Context, serverID string) (*service.ServerTestResult, error) {
	args := m.Called(ctx, serverID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.ServerTestResult), args.Error(1)
}

func (m *mockSessions) TestAll(ctx context.Context) ([]service.ServerTestResult, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]service.ServerTestResult), args.Error(1)
}

func (m *mockSessions) ConnectSession(ctx context.Context, serverID, identifier string, payload json.RawMessage) (*gateway.SessionResult, error) {
	args := m.Called(ctx, serverID, identifier, payload)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*gateway.SessionResult), args.Error(1)
}

func (m *mockSessions) SessionQR(ctx context.Context, serverID, identifier string) (*gateway.QRResult, error) {
	args := m.Called(ctx, serverID, identifier)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*gateway.QRResult), args.Error(1)
}

func doRequest(t *testing.T, router chi.Router, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if s, ok := body.(string); ok {
			buf.WriteString(s)
		} else {
			require.NoError(t, json.NewEncoder(&buf).Encode(body))
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}
