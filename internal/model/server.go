package model

import (
	"time"
)

// GatewayServer is an upstream gateway deployment registered by an operator.
type GatewayServer struct {
	ID          string       `db:"id" json:"id"`
	Name        string       `db:"name" json:"name"`
	Type        ProviderKind `db:"type" json:"type"`
	URL         string       `db:"url" json:"url"`
	APIKey      string       `db:"api_key" json:"-"`
	IsDefault   bool         `db:"is_default" json:"isDefault"`
	IsActive    bool         `db:"is_active" json:"isActive"`
	Status      ServerStatus `db:"status" json:"status"`
	LastTested  *time.Time   `db:"last_tested" json:"lastTested,omitempty"`
	Description *string      `db:"description" json:"description,omitempty"`
	CreatedAt   time.Time    `db:"created_at" json:"createdAt"`
	UpdatedAt   time.Time    `db:"updated_at" json:"updatedAt"`
}
