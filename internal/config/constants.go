package config

import "time"

// Database connection pool settings
const (
	DBMaxOpenConns    = 25
	DBMaxIdleConns    = 5
	DBConnMaxLifetime = 5 * time.Minute
)

// HTTP server timeouts
const (
	ServerRequestTimeout  = 120 * time.Second
	ServerReadTimeout     = 15 * time.Second
	ServerWriteTimeout    = 130 * time.Second
	ServerIdleTimeout     = 120 * time.Second
	ServerShutdownTimeout = 30 * time.Second
)

// Database ping timeout for health checks
const DBPingTimeout = 5 * time.Second

// Request body limit, sized for a reconcile chunk of raw upstream items
const MaxRequestBodyBytes = 2 << 20

// Ephemeral links
const (
	LinkTTL           = 5 * time.Minute
	LinkResolveWindow = time.Minute
)

// Reconcile chunk size used when sync persists its snapshot
const ReconcileChunkSize = 50

// Server probe job budget per run
const ServerProbeTimeout = 60 * time.Second
