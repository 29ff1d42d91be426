package model

import (
	"encoding/json"
	"time"
)

// StoredConnection is the durable record of an upstream session.
type StoredConnection struct {
	ID             string           `db:"id" json:"id"`
	Name           *string          `db:"name" json:"name"`
	Type           ProviderKind     `db:"type" json:"type"`
	Status         ConnectionStatus `db:"status" json:"status"`
	Phone          *string          `db:"phone" json:"phone,omitempty"`
	ProfileName    *string          `db:"profile_name" json:"profileName,omitempty"`
	ProfilePicture *string          `db:"profile_picture" json:"profilePicture,omitempty"`
	QRCode         *string          `db:"qr_code" json:"qrCode,omitempty"`
	Token          *string          `db:"token" json:"token,omitempty"`
	InstanceName   *string          `db:"instance_name" json:"instanceName,omitempty"`
	ServerID       string           `db:"server_id" json:"serverId"`
	CreatedAt      time.Time        `db:"created_at" json:"createdAt"`
	LastActivity   *time.Time       `db:"last_activity" json:"lastActivity,omitempty"`
	RawPayload     json.RawMessage  `db:"raw_payload" json:"rawPayload,omitempty"`
	ExportBatchID  *string          `db:"export_batch_id" json:"exportBatchId,omitempty"`
}

// ConnectionFields carries the mutable columns written by reconciliation.
type ConnectionFields struct {
	Name           *string
	Type           ProviderKind
	Status         ConnectionStatus
	Phone          *string
	ProfileName    *string
	ProfilePicture *string
	QRCode         *string
	Token          *string
	InstanceName   *string
	RawPayload     json.RawMessage
	ExportBatchID  string
}

type CreateConnectionParams struct {
	ID       string
	ServerID string
	ConnectionFields
}

type ConnectionFilter struct {
	ServerID string
	BatchID  string
	Limit    int
	Offset   int
}
