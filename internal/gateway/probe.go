package gateway

import (
	"bytes"
	"encoding/json"
	"strings"
)

// ProbeKind tags the outcome of looking for a QR payload in a response.
type ProbeKind int

const (
	ProbeMissing ProbeKind = iota
	ProbeFound
)

// QRProbe is the result of ProbeQR. Key names where the value was found:
// a field path such as "data.qrcode", or "body" for a bare string response.
type QRProbe struct {
	Kind  ProbeKind
	Value string
	Key   string
}

func (p QRProbe) Found() bool {
	return p.Kind == ProbeFound
}

var qrKeys = []string{"qr", "qrcode", "QRCode", "qrCode"}

// ProbeQR looks for a QR payload in an untyped wuzapi response: the known
// keys at the top level, then the same keys under "data", then the body
// itself when it is a plain string.
func ProbeQR(body []byte) QRProbe {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return QRProbe{Kind: ProbeMissing}
	}

	var decoded any
	if err := json.Unmarshal(trimmed, &decoded); err != nil {
		// Not JSON at all; a text body is taken as the payload.
		return QRProbe{Kind: ProbeFound, Value: string(trimmed), Key: "body"}
	}

	switch v := decoded.(type) {
	case string:
		if v != "" {
			return QRProbe{Kind: ProbeFound, Value: v, Key: "body"}
		}
	case map[string]any:
		if p := probeObject(v, ""); p.Found() {
			return p
		}
		if data, ok := v["data"].(map[string]any); ok {
			if p := probeObject(data, "data."); p.Found() {
				return p
			}
		}
	}
	return QRProbe{Kind: ProbeMissing}
}

func probeObject(obj map[string]any, prefix string) QRProbe {
	for _, key := range qrKeys {
		if s, ok := obj[key].(string); ok && s != "" {
			return QRProbe{Kind: ProbeFound, Value: s, Key: prefix + key}
		}
	}
	return QRProbe{Kind: ProbeMissing}
}

const pngDataURLPrefix = "data:image/png;base64,"

// DataURL returns the QR as a PNG data URL. Upstreams send either raw
// base64 or a value that already is a data URL.
func DataURL(value string) string {
	if strings.HasPrefix(value, "data:") {
		return value
	}
	return pngDataURLPrefix + value
}
