package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	apperrors "github.com/zapdesk/gateway-sync/internal/errors"
	"github.com/zapdesk/gateway-sync/internal/gateway"
	"github.com/zapdesk/gateway-sync/internal/model"
	"github.com/zapdesk/gateway-sync/internal/repository"
)

// SessionGateway is the part of the gateway used for single-server
// operations.
type SessionGateway interface {
	Ping(ctx context.Context, server *model.GatewayServer) error
	Connect(ctx context.Context, server *model.GatewayServer, identifier string, payload any) (*gateway.SessionResult, error)
	FetchQR(ctx context.Context, server *model.GatewayServer, identifier string) (*gateway.QRResult, error)
}

type ServerTestResult struct {
	ServerID string             `json:"serverId"`
	Success  bool               `json:"success"`
	Status   model.ServerStatus `json:"status"`
	Message  string             `json:"message"`
	TestedAt time.Time          `json:"testedAt"`
}

type ServerService struct {
	servers     *ServerDirectory
	repo        repository.ServerRepository
	gw          SessionGateway
	concurrency int
}

func NewServerService(servers *ServerDirectory, repo repository.ServerRepository, gw SessionGateway, concurrency int) *ServerService {
	if concurrency <= 0 {
		concurrency = 1
	}
	return &ServerService{servers: servers, repo: repo, gw: gw, concurrency: concurrency}
}

// Test pings one server and records the outcome in its health columns. An
// unreachable server is a result, not an error.
func (s *ServerService) Test(ctx context.Context, serverID string) (*ServerTestResult, error) {
	server, err := s.servers.Get(ctx, serverID)
	if err != nil {
		return nil, err
	}
	return s.test(ctx, server)
}

func (s *ServerService) test(ctx context.Context, server *model.GatewayServer) (*ServerTestResult, error) {
	result := &ServerTestResult{
		ServerID: server.ID,
		Success:  true,
		Status:   model.ServerStatusOnline,
		Message:  "Connection successful",
		TestedAt: time.Now(),
	}

	if err := s.gw.Ping(ctx, server); err != nil {
		result.Success = false
		result.Status = model.ServerStatusOffline
		result.Message = errorMessage(err)
	}

	if err := s.repo.UpdateStatus(ctx, server.ID, result.Status, result.TestedAt); err != nil {
		return nil, apperrors.Database(err)
	}

	log.Info().
		Str("serverId", server.ID).
		Str("status", string(result.Status)).
		Str("message", result.Message).
		Msg("server tested")
	return result, nil
}

// TestAll tests every active server. Servers whose status could not be
// stored are logged and left out.
func (s *ServerService) TestAll(ctx context.Context) ([]ServerTestResult, error) {
	servers, err := s.servers.Active(ctx, "")
	if err != nil {
		return nil, err
	}

	slots := make([]*ServerTestResult, len(servers))
	var g errgroup.Group
	g.SetLimit(s.concurrency)
	for i := range servers {
		i := i
		g.Go(func() error {
			res, err := s.test(ctx, &servers[i])
			if err != nil {
				log.Error().Err(err).Str("serverId", servers[i].ID).Msg("failed to store server test result")
				return nil
			}
			slots[i] = res
			return nil
		})
	}
	_ = g.Wait()

	results := make([]ServerTestResult, 0, len(servers))
	for _, r := range slots {
		if r != nil {
			results = append(results, *r)
		}
	}
	return results, nil
}

// ConnectSession starts a session on one server. An empty payload uses the
// provider default.
func (s *ServerService) ConnectSession(ctx context.Context, serverID, identifier string, payload json.RawMessage) (*gateway.SessionResult, error) {
	if identifier == "" {
		return nil, apperrors.MissingRequired("identifier")
	}
	server, err := s.activeServer(ctx, serverID)
	if err != nil {
		return nil, err
	}

	var body any
	if len(payload) > 0 && string(payload) != "null" {
		body = payload
	}
	return s.gw.Connect(ctx, server, identifier, body)
}

// SessionQR fetches the pairing QR of one session.
func (s *ServerService) SessionQR(ctx context.Context, serverID, identifier string) (*gateway.QRResult, error) {
	if identifier == "" {
		return nil, apperrors.MissingRequired("identifier")
	}
	server, err := s.activeServer(ctx, serverID)
	if err != nil {
		return nil, err
	}
	return s.gw.FetchQR(ctx, server, identifier)
}

// activeServer loads serverID and rejects servers switched off by an admin.
func (s *ServerService) activeServer(ctx context.Context, serverID string) (*model.GatewayServer, error) {
	server, err := s.servers.Get(ctx, serverID)
	if err != nil {
		return nil, err
	}
	if !server.IsActive {
		return nil, apperrors.Forbidden("Server is inactive")
	}
	return server, nil
}
