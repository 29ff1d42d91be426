package gateway

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/rs/zerolog/log"
	qrcode "github.com/skip2/go-qrcode"

	apperrors "github.com/zapdesk/gateway-sync/internal/errors"
	"github.com/zapdesk/gateway-sync/internal/model"
)

const renderedQRSize = 256

// SessionResult is the answer of a session connect call.
type SessionResult struct {
	Data     json.RawMessage `json:"data"`
	Endpoint string          `json:"endpoint"`
	Mode     AuthMode        `json:"mode"`
}

// QRResult is a QR payload found in an upstream response.
type QRResult struct {
	Value    string   `json:"qr"`
	Key      string   `json:"key"`
	Endpoint string   `json:"endpoint"`
	Mode     AuthMode `json:"mode"`
}

// EvolutionClient calls Evolution API servers. A single call with the
// server's apikey header is made per operation.
type EvolutionClient struct {
	req *requester
}

func NewEvolutionClient(doer HTTPDoer, pacer *HostPacer) *EvolutionClient {
	return &EvolutionClient{
		req: &requester{provider: string(model.ProviderEvolution), doer: doer, pacer: pacer},
	}
}

func (c *EvolutionClient) do(ctx context.Context, server *model.GatewayServer, method, path string) (*response, error) {
	header := http.Header{}
	header.Set("apikey", server.APIKey)

	resp, err := c.req.send(ctx, method, trimBaseURL(server.URL)+path, header, nil)
	if err != nil {
		return nil, toAppError(err)
	}
	return resp, nil
}

// Ping checks that the server answers on its root endpoint.
func (c *EvolutionClient) Ping(ctx context.Context, server *model.GatewayServer) error {
	_, err := c.do(ctx, server, http.MethodGet, "/")
	return err
}

// FetchInstances lists every instance on the server.
func (c *EvolutionClient) FetchInstances(ctx context.Context, server *model.GatewayServer) ([]model.UpstreamSession, error) {
	resp, err := c.do(ctx, server, http.MethodGet, "/instance/fetchInstances")
	if err != nil {
		return nil, err
	}

	items, err := DecodeList(resp.Body, "data", "instances")
	if err != nil {
		return nil, apperrors.GatewayTransport(resp.Status, "Unrecognized instance list from gateway").WithCause(err)
	}
	return decodeAll(model.ProviderEvolution, server.ID, items), nil
}

// Connect asks the server to start the instance session. Evolution answers
// with the pairing payload.
func (c *EvolutionClient) Connect(ctx context.Context, server *model.GatewayServer, instanceName string) (*SessionResult, error) {
	resp, err := c.do(ctx, server, http.MethodGet, "/instance/connect/"+url.PathEscape(instanceName))
	if err != nil {
		return nil, err
	}
	return &SessionResult{Data: json.RawMessage(resp.Body), Endpoint: resp.Endpoint}, nil
}

// QRCode returns the instance QR as base64 PNG. When the server only sends
// the raw pairing code, the PNG is rendered locally.
func (c *EvolutionClient) QRCode(ctx context.Context, server *model.GatewayServer, instanceName string) (*QRResult, error) {
	resp, err := c.do(ctx, server, http.MethodGet, "/instance/connect/"+url.PathEscape(instanceName))
	if err != nil {
		return nil, err
	}

	var body struct {
		Base64 string `json:"base64"`
		Code   string `json:"code"`
		QRCode struct {
			Base64 string `json:"base64"`
			Code   string `json:"code"`
		} `json:"qrcode"`
	}
	if err := json.Unmarshal(resp.Body, &body); err != nil {
		return nil, apperrors.QRNotPresent().WithCause(err)
	}

	switch {
	case body.Base64 != "":
		return &QRResult{Value: body.Base64, Key: "base64", Endpoint: resp.Endpoint}, nil
	case body.QRCode.Base64 != "":
		return &QRResult{Value: body.QRCode.Base64, Key: "qrcode.base64", Endpoint: resp.Endpoint}, nil
	}

	code := firstNonEmpty(body.Code, body.QRCode.Code)
	if code == "" {
		return nil, apperrors.QRNotPresent().WithDetails(map[string]any{"endpoint": resp.Endpoint})
	}

	png, err := qrcode.Encode(code, qrcode.Medium, renderedQRSize)
	if err != nil {
		return nil, fmt.Errorf("render qr code: %w", err)
	}
	log.Debug().Str("serverId", server.ID).Str("instance", instanceName).Msg("rendered qr from pairing code")

	return &QRResult{
		Value:    base64.StdEncoding.EncodeToString(png),
		Key:      "code",
		Endpoint: resp.Endpoint,
	}, nil
}

func decodeAll(kind model.ProviderKind, serverID string, items []json.RawMessage) []model.UpstreamSession {
	sessions := make([]model.UpstreamSession, 0, len(items))
	for i, raw := range items {
		session, err := DecodeSession(kind, raw)
		if err != nil {
			log.Warn().Err(err).Str("serverId", serverID).Int("index", i).Msg("skipping unreadable upstream session")
			continue
		}
		sessions = append(sessions, session)
	}
	return sessions
}
