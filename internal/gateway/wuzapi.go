package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"

	"github.com/rs/zerolog/log"

	apperrors "github.com/zapdesk/gateway-sync/internal/errors"
	"github.com/zapdesk/gateway-sync/internal/model"
	"github.com/zapdesk/gateway-sync/internal/util"
)

// DefaultConnectPayload is sent when a connect call carries no body.
var DefaultConnectPayload = map[string]any{
	"Subscribe": []string{"Message", "ChatPresence"},
	"Immediate": true,
}

// WuzapiClient calls wuzapi servers. Session operations walk the explicit
// attempt plan from SessionPlan.
type WuzapiClient struct {
	req *requester
}

func NewWuzapiClient(doer HTTPDoer, pacer *HostPacer) *WuzapiClient {
	return &WuzapiClient{
		req: &requester{provider: string(model.ProviderWuzapi), doer: doer, pacer: pacer},
	}
}

func (c *WuzapiClient) attemptHeader(server *model.GatewayServer, token string, mode AuthMode) http.Header {
	header := http.Header{}
	switch mode {
	case AuthToken:
		header.Set("token", token)
	case AuthTokenBearer:
		header.Set("token", token)
		header.Set("Authorization", bearerHeader(server.APIKey))
	case AuthBearerOnly:
		header.Set("Authorization", bearerHeader(server.APIKey))
	}
	return header
}

func (c *WuzapiClient) sender(server *model.GatewayServer, token, method string, body any) sendFunc {
	return func(ctx context.Context, attempt Attempt) (*response, error) {
		return c.req.send(ctx, method, attempt.Endpoint, c.attemptHeader(server, token, attempt.Mode), body)
	}
}

// ConnectSession starts the session identified by token. A nil payload sends
// DefaultConnectPayload.
func (c *WuzapiClient) ConnectSession(ctx context.Context, server *model.GatewayServer, token string, payload any) (*SessionResult, error) {
	if token == "" {
		return nil, apperrors.MissingRequired("token")
	}
	if payload == nil {
		payload = DefaultConnectPayload
	}

	resp, err := runPlan(ctx, SessionPlan(server.URL, "connect"), c.sender(server, token, http.MethodPost, payload))
	if err != nil {
		return nil, toAppError(err)
	}
	log.Debug().
		Str("serverId", server.ID).
		Str("token", util.MaskToken(token)).
		Str("endpoint", resp.Endpoint).
		Str("mode", string(resp.Mode)).
		Msg("session connect accepted")
	return &SessionResult{Data: json.RawMessage(resp.Body), Endpoint: resp.Endpoint, Mode: resp.Mode}, nil
}

// SessionQR fetches the pairing QR for token. When every session variant
// answers 404, the legacy per-user route is tried once with the server key.
func (c *WuzapiClient) SessionQR(ctx context.Context, server *model.GatewayServer, token string) (*QRResult, error) {
	if token == "" {
		return nil, apperrors.MissingRequired("token")
	}

	resp, err := runPlan(ctx, SessionPlan(server.URL, "qr"), c.sender(server, token, http.MethodGet, nil))
	if exhausted(err) {
		tried, _ := asTransportError(err)
		_, base := wuzapiBase(server.URL)
		fallback := Attempt{Endpoint: base + "/users/" + url.PathEscape(token) + "/qrcode", Mode: AuthBearerOnly}

		log.Debug().
			Str("serverId", server.ID).
			Str("token", util.MaskToken(token)).
			Strs("tried", tried.Tried).
			Msg("session qr variants exhausted, trying user route")

		resp, err = c.req.send(ctx, http.MethodGet, fallback.Endpoint, c.attemptHeader(server, token, fallback.Mode), nil)
		if err == nil {
			resp.Mode = fallback.Mode
		} else if te, ok := asTransportError(err); ok {
			te.Tried = append(append([]string{}, tried.Tried...), fallback.Endpoint)
		}
	}
	if err != nil {
		return nil, toAppError(err)
	}

	probe := ProbeQR(resp.Body)
	if !probe.Found() {
		return nil, apperrors.QRNotPresent().WithDetails(map[string]any{
			"endpoint": resp.Endpoint,
			"mode":     resp.Mode,
		})
	}
	return &QRResult{Value: probe.Value, Key: probe.Key, Endpoint: resp.Endpoint, Mode: resp.Mode}, nil
}

// Ping lists users, which requires a valid admin key.
func (c *WuzapiClient) Ping(ctx context.Context, server *model.GatewayServer) error {
	_, err := c.listUsers(ctx, server)
	return err
}

// ListUsers lists every user on the server. The admin key is sent as is
// first; a 401 or 404 is retried once with a Bearer prefix.
func (c *WuzapiClient) ListUsers(ctx context.Context, server *model.GatewayServer) ([]model.UpstreamSession, error) {
	resp, err := c.listUsers(ctx, server)
	if err != nil {
		return nil, err
	}

	items, err := DecodeList(resp.Body, "data", "users")
	if err != nil {
		return nil, apperrors.GatewayTransport(resp.Status, "Unrecognized user list from gateway").WithCause(err)
	}
	return decodeAll(model.ProviderWuzapi, server.ID, items), nil
}

func (c *WuzapiClient) listUsers(ctx context.Context, server *model.GatewayServer) (*response, error) {
	_, base := wuzapiBase(server.URL)
	endpoint := base + "/admin/users"

	header := http.Header{}
	header.Set("Authorization", server.APIKey)
	resp, err := c.req.send(ctx, http.MethodGet, endpoint, header, nil)

	if te, ok := asTransportError(err); ok && !hasBearerPrefix(server.APIKey) &&
		(te.Status == http.StatusUnauthorized || te.Status == http.StatusNotFound) {
		header.Set("Authorization", bearerHeader(server.APIKey))
		resp, err = c.req.send(ctx, http.MethodGet, endpoint, header, nil)
	}
	if err != nil {
		return nil, toAppError(err)
	}
	return resp, nil
}

func toAppError(err error) error {
	if te, ok := asTransportError(err); ok {
		return te.AppError()
	}
	return err
}
