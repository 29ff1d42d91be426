package gateway

import (
	"context"
	"fmt"
	"time"

	apperrors "github.com/zapdesk/gateway-sync/internal/errors"
	"github.com/zapdesk/gateway-sync/internal/model"
)

type Options struct {
	EvolutionTimeout time.Duration
	WuzapiTimeout    time.Duration
	InsecureTLS      bool
	RatePerSecond    float64
	Burst            int
}

// Gateway dispatches provider-neutral operations to the client matching the
// server type.
type Gateway struct {
	evolution *EvolutionClient
	wuzapi    *WuzapiClient
}

func New(opts Options) *Gateway {
	pacer := NewHostPacer(opts.RatePerSecond, opts.Burst)
	return &Gateway{
		evolution: NewEvolutionClient(NewHTTPClient(opts.EvolutionTimeout, opts.InsecureTLS), pacer),
		wuzapi:    NewWuzapiClient(NewHTTPClient(opts.WuzapiTimeout, opts.InsecureTLS), pacer),
	}
}

// NewWithClients is used by tests to inject provider clients.
func NewWithClients(evolution *EvolutionClient, wuzapi *WuzapiClient) *Gateway {
	return &Gateway{evolution: evolution, wuzapi: wuzapi}
}

// ListSessions returns every session the server knows about.
func (g *Gateway) ListSessions(ctx context.Context, server *model.GatewayServer) ([]model.UpstreamSession, error) {
	switch server.Type {
	case model.ProviderEvolution:
		return g.evolution.FetchInstances(ctx, server)
	case model.ProviderWuzapi:
		return g.wuzapi.ListUsers(ctx, server)
	}
	return nil, unsupported(server)
}

// FetchQR returns the pairing QR for a session. identifier is the instance
// name on evolution servers and the user token on wuzapi servers.
func (g *Gateway) FetchQR(ctx context.Context, server *model.GatewayServer, identifier string) (*QRResult, error) {
	switch server.Type {
	case model.ProviderEvolution:
		if identifier == "" {
			return nil, apperrors.MissingRequired("instanceName")
		}
		return g.evolution.QRCode(ctx, server, identifier)
	case model.ProviderWuzapi:
		return g.wuzapi.SessionQR(ctx, server, identifier)
	}
	return nil, unsupported(server)
}

// Connect starts a session. payload is only sent to wuzapi servers.
func (g *Gateway) Connect(ctx context.Context, server *model.GatewayServer, identifier string, payload any) (*SessionResult, error) {
	switch server.Type {
	case model.ProviderEvolution:
		if identifier == "" {
			return nil, apperrors.MissingRequired("instanceName")
		}
		return g.evolution.Connect(ctx, server, identifier)
	case model.ProviderWuzapi:
		return g.wuzapi.ConnectSession(ctx, server, identifier, payload)
	}
	return nil, unsupported(server)
}

// Ping checks reachability and credentials of a server.
func (g *Gateway) Ping(ctx context.Context, server *model.GatewayServer) error {
	switch server.Type {
	case model.ProviderEvolution:
		return g.evolution.Ping(ctx, server)
	case model.ProviderWuzapi:
		return g.wuzapi.Ping(ctx, server)
	}
	return unsupported(server)
}

func unsupported(server *model.GatewayServer) error {
	return apperrors.ValidationError(fmt.Sprintf("server %s has unsupported type %q", server.ID, server.Type))
}
