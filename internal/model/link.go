package model

// LinkPayload is the content of an ephemeral QR link. It only ever exists
// inside a signed token.
type LinkPayload struct {
	Kind         string       `json:"kind"`
	Via          LinkVia      `json:"via"`
	ConnectionID string       `json:"connectionId,omitempty"`
	Type         ProviderKind `json:"type"`
	ServerID     string       `json:"serverId"`
	Token        string       `json:"token,omitempty"`
	InstanceName string       `json:"instanceName,omitempty"`
	Name         string       `json:"name,omitempty"`
}

// Identifier returns the upstream handle used for QR retrieval:
// the session token for wuzapi, the instance name for evolution.
func (p LinkPayload) Identifier() string {
	if p.Type == ProviderWuzapi {
		return p.Token
	}
	return p.InstanceName
}
