package service

import (
	"context"
	"fmt"

	apperrors "github.com/zapdesk/gateway-sync/internal/errors"
	"github.com/zapdesk/gateway-sync/internal/model"
	"github.com/zapdesk/gateway-sync/internal/repository"
	"github.com/zapdesk/gateway-sync/internal/util"
)

// ServerDirectory loads gateway servers with their api keys decrypted. Every
// server handed to the gateway clients comes from here.
type ServerDirectory struct {
	repo          repository.ServerRepository
	encryptionKey string
}

func NewServerDirectory(repo repository.ServerRepository, encryptionKey string) *ServerDirectory {
	return &ServerDirectory{repo: repo, encryptionKey: encryptionKey}
}

// Get returns the server or a NotFound error.
func (d *ServerDirectory) Get(ctx context.Context, id string) (*model.GatewayServer, error) {
	server, err := d.repo.FindByID(ctx, id)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	if server == nil {
		return nil, apperrors.NotFound("Server")
	}
	if err := d.reveal(server); err != nil {
		return nil, err
	}
	return server, nil
}

// Active returns the active servers of kind, or of every kind when kind is
// empty.
func (d *ServerDirectory) Active(ctx context.Context, kind model.ProviderKind) ([]model.GatewayServer, error) {
	servers, err := d.repo.ListActive(ctx, kind)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	return d.revealAll(servers)
}

// Select returns the listed servers that are active and of kind, plus the
// ids that matched no such server.
func (d *ServerDirectory) Select(ctx context.Context, kind model.ProviderKind, ids []string) ([]model.GatewayServer, []string, error) {
	found, err := d.repo.FindByIDs(ctx, ids)
	if err != nil {
		return nil, nil, apperrors.Database(err)
	}

	byID := make(map[string]model.GatewayServer, len(found))
	for _, s := range found {
		if s.IsActive && s.Type == kind {
			byID[s.ID] = s
		}
	}

	var (
		selected []model.GatewayServer
		missing  []string
		seen     = make(map[string]bool, len(ids))
	)
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		if s, ok := byID[id]; ok {
			selected = append(selected, s)
		} else {
			missing = append(missing, id)
		}
	}

	selected, err = d.revealAll(selected)
	if err != nil {
		return nil, nil, err
	}
	return selected, missing, nil
}

func (d *ServerDirectory) revealAll(servers []model.GatewayServer) ([]model.GatewayServer, error) {
	for i := range servers {
		if err := d.reveal(&servers[i]); err != nil {
			return nil, err
		}
	}
	return servers, nil
}

func (d *ServerDirectory) reveal(server *model.GatewayServer) error {
	key, err := util.RevealSecret(d.encryptionKey, server.APIKey)
	if err != nil {
		return apperrors.Internal(fmt.Sprintf("cannot read api key of server %s", server.ID)).WithCause(err)
	}
	server.APIKey = key
	return nil
}
