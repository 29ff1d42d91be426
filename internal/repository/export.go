package repository

import (
	"context"

	"github.com/zapdesk/gateway-sync/internal/database"
	"github.com/zapdesk/gateway-sync/internal/model"
)

// ExportBatchRepository handles connection export batch rows.
type ExportBatchRepository interface {
	Upsert(ctx context.Context, params model.UpsertExportBatchParams) (*model.ExportBatch, error)
	List(ctx context.Context, filter model.ExportBatchFilter) ([]model.ExportBatch, error)
}

type exportBatchRepo struct {
	db database.DBTX
}

func NewExportBatchRepository(db database.DBTX) ExportBatchRepository {
	return &exportBatchRepo{db: db}
}

// Upsert inserts the batch row, or adds ItemCount to an existing row with the
// same batch id. The first exported_at wins.
func (r *exportBatchRepo) Upsert(ctx context.Context, params model.UpsertExportBatchParams) (*model.ExportBatch, error) {
	var batch model.ExportBatch
	err := r.db.GetContext(ctx, &batch, `
		INSERT INTO connection_exports (batch_id, server_id, type, exported_at, item_count)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (batch_id) DO UPDATE
		SET item_count = connection_exports.item_count + EXCLUDED.item_count
		RETURNING *
	`, params.BatchID, params.ServerID, params.Type, params.ExportedAt, params.ItemCount)
	if err != nil {
		return nil, err
	}
	return &batch, nil
}

func (r *exportBatchRepo) List(ctx context.Context, filter model.ExportBatchFilter) ([]model.ExportBatch, error) {
	var batches []model.ExportBatch
	err := r.db.SelectContext(ctx, &batches, `
		SELECT * FROM connection_exports
		WHERE ($1 = '' OR server_id = $1)
		  AND ($2 = '' OR type = $2)
		ORDER BY exported_at DESC, id DESC
		LIMIT $3 OFFSET $4
	`, filter.ServerID, string(filter.Type), filter.Limit, filter.Offset)
	if err != nil {
		return nil, err
	}
	return batches, nil
}
