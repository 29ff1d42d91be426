package repository

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/zapdesk/gateway-sync/internal/database"
	"github.com/zapdesk/gateway-sync/internal/model"
)

// ServerRepository reads gateway servers. Only the health columns are ever
// written from here.
type ServerRepository interface {
	FindByID(ctx context.Context, id string) (*model.GatewayServer, error)
	FindByIDs(ctx context.Context, ids []string) ([]model.GatewayServer, error)
	ListActive(ctx context.Context, kind model.ProviderKind) ([]model.GatewayServer, error)
	UpdateStatus(ctx context.Context, id string, status model.ServerStatus, testedAt time.Time) error
}

type serverRepo struct {
	db database.DBTX
}

func NewServerRepository(db database.DBTX) ServerRepository {
	return &serverRepo{db: db}
}

func (r *serverRepo) FindByID(ctx context.Context, id string) (*model.GatewayServer, error) {
	var server model.GatewayServer
	err := r.db.GetContext(ctx, &server, `SELECT * FROM servers WHERE id = $1`, id)
	return HandleNotFound(&server, err)
}

func (r *serverRepo) FindByIDs(ctx context.Context, ids []string) ([]model.GatewayServer, error) {
	if len(ids) == 0 {
		return []model.GatewayServer{}, nil
	}

	query, args, err := sqlx.In(`SELECT * FROM servers WHERE id IN (?) ORDER BY name`, ids)
	if err != nil {
		return nil, err
	}
	query = sqlx.Rebind(sqlx.DOLLAR, query)

	var servers []model.GatewayServer
	if err := r.db.SelectContext(ctx, &servers, query, args...); err != nil {
		return nil, err
	}
	return servers, nil
}

// ListActive returns active servers of one provider kind, default server first.
func (r *serverRepo) ListActive(ctx context.Context, kind model.ProviderKind) ([]model.GatewayServer, error) {
	var servers []model.GatewayServer
	err := r.db.SelectContext(ctx, &servers, `
		SELECT * FROM servers
		WHERE is_active = TRUE AND ($1 = '' OR type = $1)
		ORDER BY is_default DESC, name
	`, string(kind))
	if err != nil {
		return nil, err
	}
	return servers, nil
}

func (r *serverRepo) UpdateStatus(ctx context.Context, id string, status model.ServerStatus, testedAt time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE servers
		SET status = $1, last_tested = $2, updated_at = NOW()
		WHERE id = $3
	`, status, testedAt, id)
	return err
}
