package model

import (
	"encoding/json"
)

// UpstreamSession is one session as reported live by a gateway. It is never
// persisted directly. Raw is the upstream record the session was decoded from;
// it is stored as a connection's raw_payload and not rendered in responses.
type UpstreamSession struct {
	ID             string           `json:"id,omitempty"`
	Name           string           `json:"name"`
	Status         ConnectionStatus `json:"status"`
	RawStatus      string           `json:"rawStatus,omitempty"`
	Phone          string           `json:"phone,omitempty"`
	ProfileName    string           `json:"profileName,omitempty"`
	ProfilePicture string           `json:"profilePicture,omitempty"`
	Token          string           `json:"token,omitempty"`
	InstanceName   string           `json:"instanceName,omitempty"`
	QRCode         string           `json:"qrCode,omitempty"`
	Raw            json.RawMessage  `json:"-"`
}
