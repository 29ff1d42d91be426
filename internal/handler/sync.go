package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/zapdesk/gateway-sync/internal/model"
	"github.com/zapdesk/gateway-sync/internal/service"
)

type Syncer interface {
	Sync(ctx context.Context, req service.SyncRequest) (*service.SyncResponse, error)
}

type SyncHandler struct {
	syncer Syncer
}

func NewSyncHandler(syncer Syncer) *SyncHandler {
	return &SyncHandler{syncer: syncer}
}

func (h *SyncHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/{provider}", h.Sync)
	return r
}

type syncBody struct {
	ServerIDs []string `json:"serverIds"`
	Persist   bool     `json:"persist"`
}

// POST /api/sync/{provider}
func (h *SyncHandler) Sync(w http.ResponseWriter, r *http.Request) {
	var body syncBody
	if err := decodeOptionalJSON(r, &body); err != nil {
		writeError(w, r, err)
		return
	}

	resp, err := h.syncer.Sync(r.Context(), service.SyncRequest{
		Provider:  model.ProviderKind(chi.URLParam(r, "provider")),
		ServerIDs: body.ServerIDs,
		Persist:   body.Persist,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}
