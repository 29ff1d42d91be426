// Package status maps the status vocabularies of the supported gateway
// providers onto the three connection states used everywhere else.
package status

import (
	"strings"

	"github.com/zapdesk/gateway-sync/internal/model"
)

// Fields holds the raw status inputs reported by an upstream. Evolution
// reports a single free-text value in Text, wuzapi reports the two flags.
type Fields struct {
	Text      string
	Connected bool
	LoggedIn  bool
}

var evolutionStates = map[string]model.ConnectionStatus{
	"open":         model.StatusConnected,
	"connected":    model.StatusConnected,
	"conectada":    model.StatusConnected,
	"online":       model.StatusConnected,
	"connecting":   model.StatusConnecting,
	"conectando":   model.StatusConnecting,
	"closed":       model.StatusDisconnected,
	"close":        model.StatusDisconnected,
	"disconnected": model.StatusDisconnected,
	"desconectada": model.StatusDisconnected,
	"desconetada":  model.StatusDisconnected,
	"erro":         model.StatusDisconnected,
	"error":        model.StatusDisconnected,
	"offline":      model.StatusDisconnected,
}

// Normalize returns the connection state for the given provider. Unknown
// providers and unrecognized values are reported as disconnected.
func Normalize(kind model.ProviderKind, f Fields) model.ConnectionStatus {
	switch kind {
	case model.ProviderEvolution:
		return Evolution(f.Text)
	case model.ProviderWuzapi:
		return Wuzapi(f.Connected, f.LoggedIn)
	default:
		return model.StatusDisconnected
	}
}

func Evolution(raw string) model.ConnectionStatus {
	if s, ok := evolutionStates[strings.ToLower(strings.TrimSpace(raw))]; ok {
		return s
	}
	return model.StatusDisconnected
}

func Wuzapi(connected, loggedIn bool) model.ConnectionStatus {
	switch {
	case connected && loggedIn:
		return model.StatusConnected
	case connected:
		return model.StatusConnecting
	default:
		return model.StatusDisconnected
	}
}
