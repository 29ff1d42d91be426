package gateway

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	apperrors "github.com/zapdesk/gateway-sync/internal/errors"
	"github.com/zapdesk/gateway-sync/internal/model"
	"github.com/zapdesk/gateway-sync/internal/status"
)

// flexString accepts strings, numbers and booleans. Gateways are not
// consistent about the JSON type of identifiers.
type flexString string

func (f *flexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}
	if data[0] == '{' || data[0] == '[' {
		*f = ""
		return nil
	}
	*f = flexString(data)
	return nil
}

func (f flexString) String() string {
	return strings.TrimSpace(string(f))
}

// flexBool accepts booleans and their string or numeric spellings.
type flexBool bool

func (f *flexBool) UnmarshalJSON(data []byte) error {
	switch strings.ToLower(strings.Trim(string(bytes.TrimSpace(data)), `"`)) {
	case "true", "1", "yes":
		*f = true
	default:
		*f = false
	}
	return nil
}

type evolutionInstance struct {
	ID                flexString         `json:"id"`
	Name              flexString         `json:"name"`
	InstanceName      flexString         `json:"instanceName"`
	ConnectionStatus  flexString         `json:"connectionStatus"`
	Status            flexString         `json:"status"`
	OwnerJid          flexString         `json:"ownerJid"`
	Owner             flexString         `json:"owner"`
	Number            flexString         `json:"number"`
	ProfileName       flexString         `json:"profileName"`
	ProfilePicURL     flexString         `json:"profilePicUrl"`
	ProfilePictureURL flexString         `json:"profilePictureUrl"`
	Token             flexString         `json:"token"`
	Hash              json.RawMessage    `json:"hash"`
	Instance          *evolutionInstance `json:"instance"`
}

type wuzapiUser struct {
	ID        flexString `json:"id"`
	Name      flexString `json:"name"`
	Token     flexString `json:"token"`
	Connected flexBool   `json:"connected"`
	LoggedIn  flexBool   `json:"loggedIn"`
	JID       flexString `json:"jid"`
	QRCode    flexString `json:"qrcode"`
}

// DecodeSession turns one raw upstream record into an UpstreamSession with a
// normalized status. The raw bytes are kept verbatim.
func DecodeSession(kind model.ProviderKind, raw json.RawMessage) (model.UpstreamSession, error) {
	switch kind {
	case model.ProviderEvolution:
		return decodeEvolutionInstance(raw)
	case model.ProviderWuzapi:
		return decodeWuzapiUser(raw)
	default:
		return model.UpstreamSession{}, apperrors.InvalidInput("provider", fmt.Sprintf("unsupported provider %q", kind))
	}
}

func decodeEvolutionInstance(raw json.RawMessage) (model.UpstreamSession, error) {
	var inst evolutionInstance
	if err := json.Unmarshal(raw, &inst); err != nil {
		return model.UpstreamSession{}, fmt.Errorf("decode evolution instance: %w", err)
	}
	nested := inst.Instance
	if nested == nil {
		nested = &evolutionInstance{}
	}

	name := firstNonEmpty(inst.Name.String(), inst.InstanceName.String(),
		nested.InstanceName.String(), nested.Name.String())
	if name == "" {
		return model.UpstreamSession{}, fmt.Errorf("evolution instance has no name")
	}

	rawStatus := firstNonEmpty(inst.ConnectionStatus.String(), inst.Status.String(),
		nested.ConnectionStatus.String(), nested.Status.String())

	phone := firstNonEmpty(inst.Number.String(), phoneFromJID(inst.OwnerJid.String()),
		phoneFromJID(inst.Owner.String()), phoneFromJID(nested.Owner.String()))
	picture := firstNonEmpty(inst.ProfilePicURL.String(), inst.ProfilePictureURL.String(),
		nested.ProfilePictureURL.String())

	return model.UpstreamSession{
		ID:             firstNonEmpty(inst.ID.String(), nested.ID.String()),
		Name:           name,
		Status:         status.Normalize(model.ProviderEvolution, status.Fields{Text: rawStatus}),
		RawStatus:      rawStatus,
		Phone:          phone,
		ProfileName:    firstNonEmpty(inst.ProfileName.String(), nested.ProfileName.String()),
		ProfilePicture: picture,
		Token:          firstNonEmpty(inst.Token.String(), hashKey(inst.Hash), hashKey(nested.Hash)),
		InstanceName:   name,
		Raw:            raw,
	}, nil
}

func decodeWuzapiUser(raw json.RawMessage) (model.UpstreamSession, error) {
	var user wuzapiUser
	if err := json.Unmarshal(raw, &user); err != nil {
		return model.UpstreamSession{}, fmt.Errorf("decode wuzapi user: %w", err)
	}
	if user.Token.String() == "" && user.Name.String() == "" {
		return model.UpstreamSession{}, fmt.Errorf("wuzapi user has neither token nor name")
	}

	connected, loggedIn := bool(user.Connected), bool(user.LoggedIn)
	return model.UpstreamSession{
		ID:        user.ID.String(),
		Name:      user.Name.String(),
		Status:    status.Normalize(model.ProviderWuzapi, status.Fields{Connected: connected, LoggedIn: loggedIn}),
		RawStatus: fmt.Sprintf("connected=%t loggedIn=%t", connected, loggedIn),
		Phone:     phoneFromJID(user.JID.String()),
		Token:     user.Token.String(),
		QRCode:    user.QRCode.String(),
		Raw:       raw,
	}, nil
}

// DecodeList extracts the record array from a list response. The array may
// be the body itself or sit under one of keys.
func DecodeList(body []byte, keys ...string) ([]json.RawMessage, error) {
	var items []json.RawMessage
	if err := json.Unmarshal(body, &items); err == nil {
		return items, nil
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(body, &obj); err != nil {
		return nil, fmt.Errorf("decode list response: %w", err)
	}
	for _, key := range keys {
		if err := json.Unmarshal(obj[key], &items); err == nil && items != nil {
			return items, nil
		}
	}
	return []json.RawMessage{}, nil
}

// phoneFromJID strips the device and domain parts from a WhatsApp JID:
// "5511999999999:12@s.whatsapp.net" becomes "5511999999999".
func phoneFromJID(jid string) string {
	if i := strings.IndexByte(jid, '@'); i >= 0 {
		jid = jid[:i]
	}
	if i := strings.IndexByte(jid, ':'); i >= 0 {
		jid = jid[:i]
	}
	return jid
}

// hashKey reads the instance token from the v1 "hash" field, which is either
// a string or an object with an apikey.
func hashKey(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var obj struct {
		APIKey string `json:"apikey"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil {
		return obj.APIKey
	}
	return ""
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
