package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	apperrors "github.com/zapdesk/gateway-sync/internal/errors"
	"github.com/zapdesk/gateway-sync/internal/model"
	"github.com/zapdesk/gateway-sync/internal/service"
	"github.com/zapdesk/gateway-sync/internal/util"
)

type Reconciler interface {
	Reconcile(ctx context.Context, req service.ReconcileRequest) (*service.ReconcileResult, error)
}

type ConnectionLister interface {
	List(ctx context.Context, filter model.ConnectionFilter) ([]model.StoredConnection, error)
}

type ExportLister interface {
	List(ctx context.Context, filter model.ExportBatchFilter) ([]model.ExportBatch, error)
}

type ConnectionHandler struct {
	reconciler  Reconciler
	connections ConnectionLister
	exports     ExportLister
}

func NewConnectionHandler(reconciler Reconciler, connections ConnectionLister, exports ExportLister) *ConnectionHandler {
	return &ConnectionHandler{
		reconciler:  reconciler,
		connections: connections,
		exports:     exports,
	}
}

func (h *ConnectionHandler) Register(r chi.Router) {
	r.Post("/reconcile", h.Reconcile)
	r.Get("/connections", h.ListConnections)
	r.Get("/exports", h.ListExports)
}

type reconcileBody struct {
	Provider   model.ProviderKind `json:"provider"`
	ServerID   string             `json:"serverId"`
	BatchID    string             `json:"batchId"`
	ExportDate string             `json:"exportDate"`
	Items      []json.RawMessage  `json:"items"`
}

// POST /api/reconcile
func (h *ConnectionHandler) Reconcile(w http.ResponseWriter, r *http.Request) {
	var body reconcileBody
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, r, err)
		return
	}

	exportedAt, err := util.ParseTimestamp(body.ExportDate)
	if err != nil {
		writeError(w, r, apperrors.ValidationError("exportDate must be an RFC 3339 timestamp"))
		return
	}

	result, err := h.reconciler.Reconcile(r.Context(), service.ReconcileRequest{
		Provider:   body.Provider,
		ServerID:   body.ServerID,
		BatchID:    body.BatchID,
		ExportedAt: exportedAt,
		Items:      body.Items,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// GET /api/connections?serverId=&batchId=&limit=&offset=
func (h *ConnectionHandler) ListConnections(w http.ResponseWriter, r *http.Request) {
	page := ParsePagination(r)
	q := r.URL.Query()

	items, err := h.connections.List(r.Context(), model.ConnectionFilter{
		ServerID: q.Get("serverId"),
		BatchID:  q.Get("batchId"),
		Limit:    page.Limit,
		Offset:   page.Offset,
	})
	if err != nil {
		writeError(w, r, apperrors.Database(err))
		return
	}
	writeJSON(w, http.StatusOK, newPage(items, page))
}

// GET /api/exports?serverId=&provider=&limit=&offset=
func (h *ConnectionHandler) ListExports(w http.ResponseWriter, r *http.Request) {
	page := ParsePagination(r)
	q := r.URL.Query()

	if !util.IsValidEnum(q.Get("provider"), model.ProviderKindValues) {
		writeError(w, r, apperrors.ValidationError("Unknown provider"))
		return
	}

	items, err := h.exports.List(r.Context(), model.ExportBatchFilter{
		ServerID: q.Get("serverId"),
		Type:     model.ProviderKind(q.Get("provider")),
		Limit:    page.Limit,
		Offset:   page.Offset,
	})
	if err != nil {
		writeError(w, r, apperrors.Database(err))
		return
	}
	writeJSON(w, http.StatusOK, newPage(items, page))
}
