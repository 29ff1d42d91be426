package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	apperrors "github.com/zapdesk/gateway-sync/internal/errors"
	"github.com/zapdesk/gateway-sync/internal/gateway"
	"github.com/zapdesk/gateway-sync/internal/model"
	"github.com/zapdesk/gateway-sync/internal/repository"
)

type ItemAction string

const (
	ActionInserted ItemAction = "inserted"
	ActionUpdated  ItemAction = "updated"
	ActionFailed   ItemAction = "failed"
)

type ReconcileRequest struct {
	Provider   model.ProviderKind
	ServerID   string
	BatchID    string
	ExportedAt time.Time
	Items      []json.RawMessage
}

type ItemResult struct {
	Index     int        `json:"index"`
	Action    ItemAction `json:"action"`
	ID        string     `json:"id,omitempty"`
	MatchedBy string     `json:"matchedBy,omitempty"`
	Error     string     `json:"error,omitempty"`
	// Code is set when the failure maps to a known error code.
	Code apperrors.ErrorCode `json:"code,omitempty"`
}

type ReconcileResult struct {
	Inserted    int          `json:"inserted"`
	Updated     int          `json:"updated"`
	Failed      int          `json:"failed"`
	Results     []ItemResult `json:"results"`
	BatchID     string       `json:"batchId"`
	ExportedAt  time.Time    `json:"exportedAt"`
	ExportError string       `json:"exportError,omitempty"`
}

type ReconcileService struct {
	serverRepo repository.ServerRepository
	connRepo   repository.ConnectionRepository
	exportRepo repository.ExportBatchRepository
	now        func() time.Time
}

func NewReconcileService(
	serverRepo repository.ServerRepository,
	connRepo repository.ConnectionRepository,
	exportRepo repository.ExportBatchRepository,
) *ReconcileService {
	return &ReconcileService{
		serverRepo: serverRepo,
		connRepo:   connRepo,
		exportRepo: exportRepo,
		now:        time.Now,
	}
}

// Reconcile writes one snapshot of upstream sessions for a server. Items are
// matched by token, then instance name, then name, and processed in order so
// that a later item sees the rows inserted by an earlier one. A failing item
// is recorded and skipped.
func (s *ReconcileService) Reconcile(ctx context.Context, req ReconcileRequest) (*ReconcileResult, error) {
	if len(req.Items) == 0 {
		return nil, apperrors.ValidationError("items must not be empty")
	}
	if req.ServerID == "" {
		return nil, apperrors.MissingRequired("serverId")
	}
	if !req.Provider.Valid() {
		return nil, apperrors.InvalidInput("provider", fmt.Sprintf("unsupported provider %q", req.Provider))
	}

	server, err := s.serverRepo.FindByID(ctx, req.ServerID)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	if server == nil {
		return nil, apperrors.NotFound("Server")
	}
	if server.Type != req.Provider {
		return nil, apperrors.ValidationError(fmt.Sprintf("server %s is a %s server, not %s", server.ID, server.Type, req.Provider))
	}

	result := &ReconcileResult{
		Results:    make([]ItemResult, 0, len(req.Items)),
		BatchID:    req.BatchID,
		ExportedAt: req.ExportedAt,
	}
	if result.BatchID == "" {
		result.BatchID = uuid.NewString()
	}
	if result.ExportedAt.IsZero() {
		result.ExportedAt = s.now()
	}

	for i, raw := range req.Items {
		item := s.reconcileItem(ctx, req.Provider, req.ServerID, result.BatchID, raw)
		item.Index = i
		switch item.Action {
		case ActionInserted:
			result.Inserted++
		case ActionUpdated:
			result.Updated++
		default:
			result.Failed++
			log.Warn().
				Str("serverId", req.ServerID).
				Str("batchId", result.BatchID).
				Int("index", i).
				Str("error", item.Error).
				Msg("reconcile item failed")
		}
		result.Results = append(result.Results, item)
	}

	_, err = s.exportRepo.Upsert(ctx, model.UpsertExportBatchParams{
		BatchID:    result.BatchID,
		ServerID:   req.ServerID,
		Type:       req.Provider,
		ExportedAt: result.ExportedAt,
		ItemCount:  result.Inserted + result.Updated,
	})
	if err != nil {
		log.Error().Err(err).Str("batchId", result.BatchID).Msg("failed to record export batch")
		result.ExportError = "failed to record export batch"
	}

	log.Info().
		Str("serverId", req.ServerID).
		Str("provider", string(req.Provider)).
		Str("batchId", result.BatchID).
		Int("inserted", result.Inserted).
		Int("updated", result.Updated).
		Int("failed", result.Failed).
		Msg("reconcile finished")

	return result, nil
}

func (s *ReconcileService) reconcileItem(ctx context.Context, kind model.ProviderKind, serverID, batchID string, raw json.RawMessage) ItemResult {
	session, err := gateway.DecodeSession(kind, raw)
	if err != nil {
		return ItemResult{Action: ActionFailed, Error: err.Error()}
	}

	fields := connectionFields(kind, session, batchID)

	existing, matchedBy, err := s.match(ctx, serverID, session)
	if err != nil {
		return ItemResult{Action: ActionFailed, Error: fmt.Sprintf("match: %v", err)}
	}

	if existing != nil {
		updated, err := s.connRepo.Update(ctx, existing.ID, fields)
		if err != nil {
			return writeFailure(ItemResult{ID: existing.ID, MatchedBy: matchedBy}, "update", err)
		}
		return ItemResult{Action: ActionUpdated, ID: updated.ID, MatchedBy: matchedBy}
	}

	created, err := s.connRepo.Create(ctx, model.CreateConnectionParams{
		ID:               uuid.NewString(),
		ServerID:         serverID,
		ConnectionFields: fields,
	})
	if err != nil {
		return writeFailure(ItemResult{}, "insert", err)
	}
	return ItemResult{Action: ActionInserted, ID: created.ID}
}

var errDuplicateConnection = apperrors.Conflict("another connection on this server already uses this token, instance name or name")

func writeFailure(res ItemResult, op string, err error) ItemResult {
	res.Action = ActionFailed
	if repository.IsUniqueViolation(err) {
		res.Error = fmt.Sprintf("%s: %s", op, errDuplicateConnection.Message)
		res.Code = errDuplicateConnection.Code
		return res
	}
	res.Error = fmt.Sprintf("%s: %v", op, err)
	return res
}

// match finds the stored row for session within serverID. The first key
// that hits wins.
func (s *ReconcileService) match(ctx context.Context, serverID string, session model.UpstreamSession) (*model.StoredConnection, string, error) {
	lookups := []struct {
		key   string
		value string
		find  func(context.Context, string, string) (*model.StoredConnection, error)
	}{
		{"token", session.Token, s.connRepo.FindByToken},
		{"instanceName", session.InstanceName, s.connRepo.FindByInstanceName},
		{"name", session.Name, s.connRepo.FindByName},
	}

	for _, l := range lookups {
		if l.value == "" {
			continue
		}
		conn, err := l.find(ctx, serverID, l.value)
		if err != nil {
			return nil, "", err
		}
		if conn != nil {
			return conn, l.key, nil
		}
	}
	return nil, "", nil
}

func connectionFields(kind model.ProviderKind, session model.UpstreamSession, batchID string) model.ConnectionFields {
	return model.ConnectionFields{
		Name:           optional(session.Name),
		Type:           kind,
		Status:         session.Status,
		Phone:          optional(session.Phone),
		ProfileName:    optional(session.ProfileName),
		ProfilePicture: optional(session.ProfilePicture),
		QRCode:         optional(session.QRCode),
		Token:          optional(session.Token),
		InstanceName:   optional(session.InstanceName),
		RawPayload:     session.Raw,
		ExportBatchID:  batchID,
	}
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
