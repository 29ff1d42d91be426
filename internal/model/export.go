package model

import (
	"time"
)

// ExportBatch groups the connections written by one reconciliation export.
type ExportBatch struct {
	ID         int64        `db:"id" json:"id"`
	BatchID    string       `db:"batch_id" json:"batchId"`
	ServerID   string       `db:"server_id" json:"serverId"`
	Type       ProviderKind `db:"type" json:"type"`
	ExportedAt time.Time    `db:"exported_at" json:"exportedAt"`
	ItemCount  int          `db:"item_count" json:"itemCount"`
}

type UpsertExportBatchParams struct {
	BatchID    string
	ServerID   string
	Type       ProviderKind
	ExportedAt time.Time
	ItemCount  int
}

type ExportBatchFilter struct {
	ServerID string
	Type     ProviderKind
	Limit    int
	Offset   int
}
