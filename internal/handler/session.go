package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/zapdesk/gateway-sync/internal/audit"
	"github.com/zapdesk/gateway-sync/internal/gateway"
	"github.com/zapdesk/gateway-sync/internal/service"
)

// SessionOperator drives sessions on a single gateway server.
type SessionOperator interface {
	Test(ctx context.Context, serverID string) (*service.ServerTestResult, error)
	TestAll(ctx context.Context) ([]service.ServerTestResult, error)
	ConnectSession(ctx context.Context, serverID, identifier string, payload json.RawMessage) (*gateway.SessionResult, error)
	SessionQR(ctx context.Context, serverID, identifier string) (*gateway.QRResult, error)
}

type SessionHandler struct {
	ops SessionOperator
}

func NewSessionHandler(ops SessionOperator) *SessionHandler {
	return &SessionHandler{ops: ops}
}

func (h *SessionHandler) Register(r chi.Router) {
	r.Post("/servers/test", h.TestAll)
	r.Post("/servers/{id}/test", h.TestServer)
	r.Post("/sessions/connect", h.Connect)
	r.Post("/sessions/qr", h.QR)
}

// POST /api/servers/{id}/test
func (h *SessionHandler) TestServer(w http.ResponseWriter, r *http.Request) {
	result, err := h.ops.Test(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// POST /api/servers/test
func (h *SessionHandler) TestAll(w http.ResponseWriter, r *http.Request) {
	results, err := h.ops.TestAll(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	if results == nil {
		results = []service.ServerTestResult{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": results})
}

type sessionBody struct {
	ServerID   string          `json:"serverId"`
	Identifier string          `json:"identifier"`
	Payload    json.RawMessage `json:"payload,omitempty"`
}

// POST /api/sessions/connect
func (h *SessionHandler) Connect(w http.ResponseWriter, r *http.Request) {
	var body sessionBody
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, r, err)
		return
	}

	result, err := h.ops.ConnectSession(r.Context(), body.ServerID, body.Identifier, body.Payload)
	if err != nil {
		writeError(w, r, err)
		return
	}

	audit.LogFromRequest(r, audit.Event{
		Type:     audit.EventSessionConnect,
		ServerID: body.ServerID,
		Details: map[string]any{
			"endpoint": result.Endpoint,
			"mode":     string(result.Mode),
		},
	})

	writeJSON(w, http.StatusOK, map[string]any{
		"success":  true,
		"data":     result.Data,
		"endpoint": result.Endpoint,
		"mode":     result.Mode,
	})
}

// POST /api/sessions/qr
func (h *SessionHandler) QR(w http.ResponseWriter, r *http.Request) {
	var body sessionBody
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, r, err)
		return
	}

	result, err := h.ops.SessionQR(r.Context(), body.ServerID, body.Identifier)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":  true,
		"qr":       gateway.DataURL(result.Value),
		"endpoint": result.Endpoint,
		"mode":     result.Mode,
	})
}
