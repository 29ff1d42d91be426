package service

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/zapdesk/gateway-sync/internal/config"
	apperrors "github.com/zapdesk/gateway-sync/internal/errors"
	"github.com/zapdesk/gateway-sync/internal/gateway"
	"github.com/zapdesk/gateway-sync/internal/model"
	"github.com/zapdesk/gateway-sync/internal/repository"
)

// QRFetcher retrieves the current pairing QR of a session.
type QRFetcher interface {
	FetchQR(ctx context.Context, server *model.GatewayServer, identifier string) (*gateway.QRResult, error)
}

// ServerLookup returns a server ready for gateway calls.
type ServerLookup interface {
	Get(ctx context.Context, id string) (*model.GatewayServer, error)
}

type IssueLinkRequest struct {
	ConnectionID      string
	Provider          model.ProviderKind
	ServerID          string
	TokenOrInstanceID string
	Name              string
}

type IssuedLink struct {
	Path             string `json:"path"`
	Token            string `json:"token"`
	ExpiresInSeconds int    `json:"expiresInSeconds"`
}

type LinkResolution struct {
	Valid       bool               `json:"valid"`
	Payload     *model.LinkPayload `json:"payload,omitempty"`
	QRCode      string             `json:"qrCode,omitempty"`
	QRAvailable *bool              `json:"qrAvailable,omitempty"`
}

// NeedsRetry reports a valid link whose session has no QR right now.
func (r *LinkResolution) NeedsRetry() bool {
	return r.QRAvailable != nil && !*r.QRAvailable
}

type linkClaims struct {
	model.LinkPayload
	jwt.RegisteredClaims
}

// LinkService signs and verifies short-lived QR links. Links carry their own
// expiry and cannot be revoked.
type LinkService struct {
	secret   []byte
	baseURL  string
	connRepo repository.ConnectionRepository
	servers  ServerLookup
	qr       QRFetcher
	now      func() time.Time
}

func NewLinkService(
	secret string,
	baseURL string,
	connRepo repository.ConnectionRepository,
	servers ServerLookup,
	qr QRFetcher,
) *LinkService {
	return &LinkService{
		secret:   []byte(secret),
		baseURL:  strings.TrimRight(baseURL, "/"),
		connRepo: connRepo,
		servers:  servers,
		qr:       qr,
		now:      time.Now,
	}
}

// Issue signs a link for either a stored connection or a direct
// (provider, server, identifier) triple.
func (s *LinkService) Issue(ctx context.Context, req IssueLinkRequest) (*IssuedLink, error) {
	payload, err := s.payloadFor(ctx, req)
	if err != nil {
		return nil, err
	}

	issuedAt := s.now()
	claims := linkClaims{
		LinkPayload: *payload,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(issuedAt.Add(config.LinkTTL)),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return nil, fmt.Errorf("sign link: %w", err)
	}

	log.Debug().
		Str("via", string(payload.Via)).
		Str("serverId", payload.ServerID).
		Str("jti", claims.ID).
		Msg("qr link issued")

	return &IssuedLink{
		Path:             s.baseURL + "/qr?token=" + url.QueryEscape(token),
		Token:            token,
		ExpiresInSeconds: int(config.LinkTTL.Seconds()),
	}, nil
}

func (s *LinkService) payloadFor(ctx context.Context, req IssueLinkRequest) (*model.LinkPayload, error) {
	direct := req.Provider != "" || req.ServerID != "" || req.TokenOrInstanceID != ""

	if req.ConnectionID != "" {
		if direct {
			return nil, apperrors.ValidationError("provide either connectionId or provider, serverId and tokenOrInstanceId")
		}
		conn, err := s.connRepo.FindByID(ctx, req.ConnectionID)
		if err != nil {
			return nil, apperrors.Database(err)
		}
		if conn == nil {
			return nil, apperrors.NotFound("Connection")
		}
		return &model.LinkPayload{
			Kind:         model.LinkKindQR,
			Via:          model.LinkViaConnection,
			ConnectionID: conn.ID,
			Type:         conn.Type,
			ServerID:     conn.ServerID,
			Token:        deref(conn.Token),
			InstanceName: deref(conn.InstanceName),
			Name:         deref(conn.Name),
		}, nil
	}

	if !direct {
		return nil, apperrors.ValidationError("provide either connectionId or provider, serverId and tokenOrInstanceId")
	}
	if !req.Provider.Valid() {
		return nil, apperrors.InvalidInput("provider", fmt.Sprintf("unsupported provider %q", req.Provider))
	}
	if req.ServerID == "" {
		return nil, apperrors.MissingRequired("serverId")
	}
	if req.TokenOrInstanceID == "" {
		return nil, apperrors.MissingRequired("tokenOrInstanceId")
	}

	payload := &model.LinkPayload{
		Kind:     model.LinkKindQR,
		Via:      model.LinkViaDirect,
		Type:     req.Provider,
		ServerID: req.ServerID,
		Name:     req.Name,
	}
	if req.Provider == model.ProviderWuzapi {
		payload.Token = req.TokenOrInstanceID
	} else {
		payload.InstanceName = req.TokenOrInstanceID
	}
	return payload, nil
}

// Verify checks the signature and expiry of token and returns its payload.
// Every failure is reported as the same LinkInvalid error.
func (s *LinkService) Verify(token string) (*model.LinkPayload, error) {
	claims := &linkClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil || !parsed.Valid {
		return nil, apperrors.LinkInvalid().WithCause(err)
	}
	if claims.ExpiresAt == nil || claims.Kind != model.LinkKindQR {
		return nil, apperrors.LinkInvalid()
	}
	return &claims.LinkPayload, nil
}

// Resolve verifies token and, when includeQR is set, fetches the current QR
// of the session it points to. A session without a QR is a valid resolution
// with QRAvailable false.
func (s *LinkService) Resolve(ctx context.Context, token string, includeQR bool) (*LinkResolution, error) {
	payload, err := s.Verify(token)
	if err != nil {
		return nil, err
	}

	res := &LinkResolution{Valid: true, Payload: payload}
	if !includeQR {
		return res, nil
	}

	serverID, identifier := payload.ServerID, payload.Identifier()
	if payload.Via == model.LinkViaConnection {
		conn, err := s.connRepo.FindByID(ctx, payload.ConnectionID)
		if err != nil {
			return nil, apperrors.Database(err)
		}
		if conn == nil {
			return nil, apperrors.NotFound("Connection")
		}
		serverID = conn.ServerID
		identifier = deref(conn.InstanceName)
		if conn.Type == model.ProviderWuzapi {
			identifier = deref(conn.Token)
		}
	}

	server, err := s.servers.Get(ctx, serverID)
	if err != nil {
		return nil, err
	}

	qr, err := s.qr.FetchQR(ctx, server, identifier)
	if err != nil {
		if apperrors.HasCode(err, apperrors.ErrCodeQRNotPresent) {
			unavailable := false
			res.QRAvailable = &unavailable
			return res, nil
		}
		return nil, err
	}

	available := true
	res.QRAvailable = &available
	res.QRCode = gateway.DataURL(qr.Value)
	return res, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
