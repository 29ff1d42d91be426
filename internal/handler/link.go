package handler

import (
	"context"
	"net/http"

	"github.com/zapdesk/gateway-sync/internal/audit"
	apperrors "github.com/zapdesk/gateway-sync/internal/errors"
	"github.com/zapdesk/gateway-sync/internal/model"
	"github.com/zapdesk/gateway-sync/internal/service"
)

type LinkIssuer interface {
	Issue(ctx context.Context, req service.IssueLinkRequest) (*service.IssuedLink, error)
}

type LinkResolver interface {
	Resolve(ctx context.Context, token string, includeQR bool) (*service.LinkResolution, error)
}

type LinkHandler struct {
	issuer   LinkIssuer
	resolver LinkResolver
}

func NewLinkHandler(issuer LinkIssuer, resolver LinkResolver) *LinkHandler {
	return &LinkHandler{issuer: issuer, resolver: resolver}
}

type issueLinkBody struct {
	ConnectionID      string             `json:"connectionId"`
	Provider          model.ProviderKind `json:"provider"`
	ServerID          string             `json:"serverId"`
	TokenOrInstanceID string             `json:"tokenOrInstanceId"`
	Name              string             `json:"name"`
}

// POST /api/links/qr
func (h *LinkHandler) Issue(w http.ResponseWriter, r *http.Request) {
	var body issueLinkBody
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, r, err)
		return
	}

	link, err := h.issuer.Issue(r.Context(), service.IssueLinkRequest{
		ConnectionID:      body.ConnectionID,
		Provider:          body.Provider,
		ServerID:          body.ServerID,
		TokenOrInstanceID: body.TokenOrInstanceID,
		Name:              body.Name,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	via := model.LinkViaDirect
	if body.ConnectionID != "" {
		via = model.LinkViaConnection
	}
	audit.LogFromRequest(r, audit.Event{
		Type:     audit.EventLinkIssue,
		ServerID: body.ServerID,
		Details: map[string]any{
			"via":           string(via),
			"connection_id": body.ConnectionID,
		},
	})

	writeJSON(w, http.StatusOK, link)
}

type resolveLinkBody struct {
	Token     string `json:"token"`
	IncludeQR bool   `json:"includeQr"`
}

// POST /api/links/qr/resolve
func (h *LinkHandler) Resolve(w http.ResponseWriter, r *http.Request) {
	var body resolveLinkBody
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, r, err)
		return
	}
	if body.Token == "" {
		writeError(w, r, apperrors.MissingRequired("token"))
		return
	}

	res, err := h.resolver.Resolve(r.Context(), body.Token, body.IncludeQR)
	if err != nil {
		if apperrors.HasCode(err, apperrors.ErrCodeLinkInvalid) {
			audit.LogFromRequest(r, audit.Event{Type: audit.EventLinkInvalid})
			writeJSON(w, http.StatusUnauthorized, service.LinkResolution{Valid: false})
			return
		}
		writeError(w, r, err)
		return
	}

	audit.LogFromRequest(r, audit.Event{
		Type:     audit.EventLinkResolve,
		ServerID: res.Payload.ServerID,
		Details: map[string]any{
			"via":          string(res.Payload.Via),
			"qr_requested": body.IncludeQR,
		},
	})

	if res.NeedsRetry() {
		writeJSON(w, http.StatusUnprocessableEntity, res)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
