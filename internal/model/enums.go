package model

type ProviderKind string

const (
	ProviderEvolution ProviderKind = "evolution"
	ProviderWuzapi    ProviderKind = "wuzapi"
)

// ProviderKindValues lists the supported providers as plain strings.
var ProviderKindValues = []string{string(ProviderEvolution), string(ProviderWuzapi)}

// Valid reports whether k is one of the supported gateway providers.
func (k ProviderKind) Valid() bool {
	return k == ProviderEvolution || k == ProviderWuzapi
}

type ConnectionStatus string

const (
	StatusConnected    ConnectionStatus = "connected"
	StatusConnecting   ConnectionStatus = "connecting"
	StatusDisconnected ConnectionStatus = "disconnected"
)

type ServerStatus string

const (
	ServerStatusOnline  ServerStatus = "online"
	ServerStatusOffline ServerStatus = "offline"
	ServerStatusUnknown ServerStatus = "unknown"
)

type LinkVia string

const (
	LinkViaConnection LinkVia = "connection"
	LinkViaDirect     LinkVia = "direct"
)

const LinkKindQR = "qr"
