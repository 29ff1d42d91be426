package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/zapdesk/gateway-sync/internal/config"
	apperrors "github.com/zapdesk/gateway-sync/internal/errors"
	"github.com/zapdesk/gateway-sync/internal/model"
)

// SessionLister fetches the live sessions of one server.
type SessionLister interface {
	ListSessions(ctx context.Context, server *model.GatewayServer) ([]model.UpstreamSession, error)
}

// Reconciler persists one chunk of raw upstream items.
type Reconciler interface {
	Reconcile(ctx context.Context, req ReconcileRequest) (*ReconcileResult, error)
}

type SyncRequest struct {
	Provider  model.ProviderKind
	ServerIDs []string
	Persist   bool
}

type SyncExport struct {
	BatchID  string `json:"batchId"`
	Inserted int    `json:"inserted"`
	Updated  int    `json:"updated"`
	Failed   int    `json:"failed"`
	Error    string `json:"error,omitempty"`
}

type ServerSyncResult struct {
	ServerID   string                  `json:"serverId"`
	ServerName string                  `json:"serverName,omitempty"`
	Success    bool                    `json:"success"`
	Sessions   []model.UpstreamSession `json:"sessions"`
	Count      int                     `json:"count"`
	Error      string                  `json:"error,omitempty"`
	Export     *SyncExport             `json:"export,omitempty"`
}

type SyncResponse struct {
	Results map[string]*ServerSyncResult `json:"results"`
}

type SyncService struct {
	servers     *ServerDirectory
	lister      SessionLister
	reconciler  Reconciler
	concurrency int
}

func NewSyncService(servers *ServerDirectory, lister SessionLister, reconciler Reconciler, concurrency int) *SyncService {
	if concurrency <= 0 {
		concurrency = 1
	}
	return &SyncService{
		servers:     servers,
		lister:      lister,
		reconciler:  reconciler,
		concurrency: concurrency,
	}
}

// Sync queries every selected server concurrently. A failing server only
// marks its own result; the call itself fails only on invalid input or when
// the server list cannot be read.
func (s *SyncService) Sync(ctx context.Context, req SyncRequest) (*SyncResponse, error) {
	if !req.Provider.Valid() {
		return nil, apperrors.InvalidInput("provider", fmt.Sprintf("unsupported provider %q", req.Provider))
	}

	var (
		servers []model.GatewayServer
		missing []string
		err     error
	)
	if len(req.ServerIDs) == 0 {
		servers, err = s.servers.Active(ctx, req.Provider)
	} else {
		servers, missing, err = s.servers.Select(ctx, req.Provider, req.ServerIDs)
	}
	if err != nil {
		return nil, err
	}

	slots := make([]*ServerSyncResult, len(servers))
	var g errgroup.Group
	g.SetLimit(s.concurrency)
	for i := range servers {
		i := i
		g.Go(func() error {
			slots[i] = s.syncServer(ctx, &servers[i], req.Persist)
			return nil
		})
	}
	_ = g.Wait()

	resp := &SyncResponse{Results: make(map[string]*ServerSyncResult, len(servers)+len(missing))}
	for _, r := range slots {
		resp.Results[r.ServerID] = r
	}
	for _, id := range missing {
		resp.Results[id] = &ServerSyncResult{
			ServerID: id,
			Sessions: []model.UpstreamSession{},
			Error:    fmt.Sprintf("no active %s server with this id", req.Provider),
		}
	}
	return resp, nil
}

func (s *SyncService) syncServer(ctx context.Context, server *model.GatewayServer, persist bool) *ServerSyncResult {
	result := &ServerSyncResult{
		ServerID:   server.ID,
		ServerName: server.Name,
		Sessions:   []model.UpstreamSession{},
	}

	start := time.Now()
	sessions, err := s.lister.ListSessions(ctx, server)
	if err != nil {
		log.Warn().Err(err).Str("serverId", server.ID).Dur("elapsed", time.Since(start)).Msg("server sync failed")
		result.Error = errorMessage(err)
		return result
	}

	result.Success = true
	result.Sessions = sessions
	result.Count = len(sessions)
	log.Info().Str("serverId", server.ID).Int("count", len(sessions)).Dur("elapsed", time.Since(start)).Msg("server synced")

	if persist && len(sessions) > 0 {
		result.Export = s.persist(ctx, server, sessions)
	}
	return result
}

// persist reconciles sessions in chunks that share one batch id.
func (s *SyncService) persist(ctx context.Context, server *model.GatewayServer, sessions []model.UpstreamSession) *SyncExport {
	export := &SyncExport{BatchID: uuid.NewString()}
	exportedAt := time.Now()

	for start := 0; start < len(sessions); start += config.ReconcileChunkSize {
		end := min(start+config.ReconcileChunkSize, len(sessions))

		items := make([]json.RawMessage, 0, end-start)
		for _, session := range sessions[start:end] {
			items = append(items, session.Raw)
		}

		res, err := s.reconciler.Reconcile(ctx, ReconcileRequest{
			Provider:   server.Type,
			ServerID:   server.ID,
			BatchID:    export.BatchID,
			ExportedAt: exportedAt,
			Items:      items,
		})
		if err != nil {
			export.Failed += len(items)
			export.Error = errorMessage(err)
			continue
		}
		export.Inserted += res.Inserted
		export.Updated += res.Updated
		export.Failed += res.Failed
		if res.ExportError != "" {
			export.Error = res.ExportError
		}
	}
	return export
}

// errorMessage returns the client-facing message of err.
func errorMessage(err error) string {
	if appErr, ok := apperrors.AsAppError(err); ok {
		return appErr.Message
	}
	return err.Error()
}
