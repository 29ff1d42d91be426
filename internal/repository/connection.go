package repository

import (
	"context"

	"github.com/zapdesk/gateway-sync/internal/database"
	"github.com/zapdesk/gateway-sync/internal/model"
)

// ConnectionRepository handles stored connection data operations.
// Every lookup used for matching is scoped to one server.
type ConnectionRepository interface {
	FindByID(ctx context.Context, id string) (*model.StoredConnection, error)
	FindByToken(ctx context.Context, serverID, token string) (*model.StoredConnection, error)
	FindByInstanceName(ctx context.Context, serverID, instanceName string) (*model.StoredConnection, error)
	FindByName(ctx context.Context, serverID, name string) (*model.StoredConnection, error)
	Create(ctx context.Context, params model.CreateConnectionParams) (*model.StoredConnection, error)
	Update(ctx context.Context, id string, fields model.ConnectionFields) (*model.StoredConnection, error)
	List(ctx context.Context, filter model.ConnectionFilter) ([]model.StoredConnection, error)
}

type connectionRepo struct {
	db database.DBTX
}

func NewConnectionRepository(db database.DBTX) ConnectionRepository {
	return &connectionRepo{db: db}
}

func (r *connectionRepo) FindByID(ctx context.Context, id string) (*model.StoredConnection, error) {
	var conn model.StoredConnection
	err := r.db.GetContext(ctx, &conn, `SELECT * FROM connections WHERE id = $1`, id)
	return HandleNotFound(&conn, err)
}

func (r *connectionRepo) FindByToken(ctx context.Context, serverID, token string) (*model.StoredConnection, error) {
	var conn model.StoredConnection
	err := r.db.GetContext(ctx, &conn, `
		SELECT * FROM connections
		WHERE server_id = $1 AND token = $2
		LIMIT 1
	`, serverID, token)
	return HandleNotFound(&conn, err)
}

func (r *connectionRepo) FindByInstanceName(ctx context.Context, serverID, instanceName string) (*model.StoredConnection, error) {
	var conn model.StoredConnection
	err := r.db.GetContext(ctx, &conn, `
		SELECT * FROM connections
		WHERE server_id = $1 AND instance_name = $2
		LIMIT 1
	`, serverID, instanceName)
	return HandleNotFound(&conn, err)
}

func (r *connectionRepo) FindByName(ctx context.Context, serverID, name string) (*model.StoredConnection, error) {
	var conn model.StoredConnection
	err := r.db.GetContext(ctx, &conn, `
		SELECT * FROM connections
		WHERE server_id = $1 AND name = $2
		LIMIT 1
	`, serverID, name)
	return HandleNotFound(&conn, err)
}

func (r *connectionRepo) Create(ctx context.Context, params model.CreateConnectionParams) (*model.StoredConnection, error) {
	var conn model.StoredConnection
	err := r.db.GetContext(ctx, &conn, `
		INSERT INTO connections (
			id, server_id, name, type, status, phone, profile_name, profile_picture,
			qr_code, token, instance_name, raw_payload, export_batch_id
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING *
	`, params.ID, params.ServerID, params.Name, params.Type, params.Status, params.Phone,
		params.ProfileName, params.ProfilePicture, params.QRCode, params.Token,
		params.InstanceName, jsonText(params.RawPayload), params.ExportBatchID)
	if err != nil {
		return nil, err
	}
	return &conn, nil
}

// Update overwrites every mutable column and clears last_activity.
func (r *connectionRepo) Update(ctx context.Context, id string, fields model.ConnectionFields) (*model.StoredConnection, error) {
	var conn model.StoredConnection
	err := r.db.GetContext(ctx, &conn, `
		UPDATE connections
		SET name = $1, type = $2, status = $3, phone = $4, profile_name = $5,
			profile_picture = $6, qr_code = $7, token = $8, instance_name = $9,
			raw_payload = $10, export_batch_id = $11, last_activity = NULL
		WHERE id = $12
		RETURNING *
	`, fields.Name, fields.Type, fields.Status, fields.Phone, fields.ProfileName,
		fields.ProfilePicture, fields.QRCode, fields.Token, fields.InstanceName,
		jsonText(fields.RawPayload), fields.ExportBatchID, id)
	if err != nil {
		return nil, err
	}
	return &conn, nil
}

func (r *connectionRepo) List(ctx context.Context, filter model.ConnectionFilter) ([]model.StoredConnection, error) {
	var conns []model.StoredConnection
	err := r.db.SelectContext(ctx, &conns, `
		SELECT * FROM connections
		WHERE ($1 = '' OR server_id = $1)
		  AND ($2 = '' OR export_batch_id = $2)
		ORDER BY created_at DESC
		LIMIT $3 OFFSET $4
	`, filter.ServerID, filter.BatchID, filter.Limit, filter.Offset)
	if err != nil {
		return nil, err
	}
	return conns, nil
}
