package service

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/zapdesk/gateway-sync/internal/gateway"
	"github.com/zapdesk/gateway-sync/internal/model"
)

type fakeServerRepo struct {
	mu      sync.Mutex
	servers map[string]*model.GatewayServer
	err     error
}

func newFakeServerRepo(servers ...model.GatewayServer) *fakeServerRepo {
	r := &fakeServerRepo{servers: map[string]*model.GatewayServer{}}
	for i := range servers {
		s := servers[i]
		r.servers[s.ID] = &s
	}
	return r
}

func (r *fakeServerRepo) FindByID(_ context.Context, id string) (*model.GatewayServer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	s, ok := r.servers[id]
	if !ok {
		return nil, nil
	}
	cp := *s
	return &cp, nil
}

func (r *fakeServerRepo) FindByIDs(_ context.Context, ids []string) ([]model.GatewayServer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.GatewayServer
	for _, id := range ids {
		if s, ok := r.servers[id]; ok {
			out = append(out, *s)
		}
	}
	return out, nil
}

func (r *fakeServerRepo) ListActive(_ context.Context, kind model.ProviderKind) ([]model.GatewayServer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.GatewayServer
	for _, s := range r.servers {
		if s.IsActive && (kind == "" || s.Type == kind) {
			out = append(out, *s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r *fakeServerRepo) UpdateStatus(_ context.Context, id string, status model.ServerStatus, testedAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.servers[id]; ok {
		s.Status = status
		s.LastTested = &testedAt
	}
	return nil
}

type fakeConnRepo struct {
	mu        sync.Mutex
	rows      []*model.StoredConnection
	writes    int
	failWrite func(fields model.ConnectionFields) error
}

func (r *fakeConnRepo) find(match func(*model.StoredConnection) bool) *model.StoredConnection {
	for _, c := range r.rows {
		if match(c) {
			cp := *c
			return &cp
		}
	}
	return nil
}

func (r *fakeConnRepo) FindByID(_ context.Context, id string) (*model.StoredConnection, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.find(func(c *model.StoredConnection) bool { return c.ID == id }), nil
}

func (r *fakeConnRepo) FindByToken(_ context.Context, serverID, token string) (*model.StoredConnection, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.find(func(c *model.StoredConnection) bool {
		return c.ServerID == serverID && deref(c.Token) == token
	}), nil
}

func (r *fakeConnRepo) FindByInstanceName(_ context.Context, serverID, instanceName string) (*model.StoredConnection, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.find(func(c *model.StoredConnection) bool {
		return c.ServerID == serverID && deref(c.InstanceName) == instanceName
	}), nil
}

func (r *fakeConnRepo) FindByName(_ context.Context, serverID, name string) (*model.StoredConnection, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.find(func(c *model.StoredConnection) bool {
		return c.ServerID == serverID && deref(c.Name) == name
	}), nil
}

func (r *fakeConnRepo) Create(_ context.Context, params model.CreateConnectionParams) (*model.StoredConnection, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failWrite != nil {
		if err := r.failWrite(params.ConnectionFields); err != nil {
			return nil, err
		}
	}
	r.writes++
	conn := &model.StoredConnection{ID: params.ID, ServerID: params.ServerID, CreatedAt: time.Now()}
	applyFields(conn, params.ConnectionFields)
	r.rows = append(r.rows, conn)
	cp := *conn
	return &cp, nil
}

func (r *fakeConnRepo) Update(_ context.Context, id string, fields model.ConnectionFields) (*model.StoredConnection, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failWrite != nil {
		if err := r.failWrite(fields); err != nil {
			return nil, err
		}
	}
	r.writes++
	for _, c := range r.rows {
		if c.ID == id {
			applyFields(c, fields)
			c.LastActivity = nil
			cp := *c
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *fakeConnRepo) List(_ context.Context, filter model.ConnectionFilter) ([]model.StoredConnection, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.StoredConnection
	for _, c := range r.rows {
		if filter.ServerID != "" && c.ServerID != filter.ServerID {
			continue
		}
		out = append(out, *c)
	}
	return out, nil
}

func (r *fakeConnRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.rows)
}

func applyFields(c *model.StoredConnection, f model.ConnectionFields) {
	c.Name = f.Name
	c.Type = f.Type
	c.Status = f.Status
	c.Phone = f.Phone
	c.ProfileName = f.ProfileName
	c.ProfilePicture = f.ProfilePicture
	c.QRCode = f.QRCode
	c.Token = f.Token
	c.InstanceName = f.InstanceName
	c.RawPayload = f.RawPayload
	batch := f.ExportBatchID
	c.ExportBatchID = &batch
}

type fakeExportRepo struct {
	mu      sync.Mutex
	batches map[string]*model.ExportBatch
	err     error
}

func newFakeExportRepo() *fakeExportRepo {
	return &fakeExportRepo{batches: map[string]*model.ExportBatch{}}
}

func (r *fakeExportRepo) Upsert(_ context.Context, params model.UpsertExportBatchParams) (*model.ExportBatch, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	b, ok := r.batches[params.BatchID]
	if !ok {
		b = &model.ExportBatch{
			ID:         int64(len(r.batches) + 1),
			BatchID:    params.BatchID,
			ServerID:   params.ServerID,
			Type:       params.Type,
			ExportedAt: params.ExportedAt,
		}
		r.batches[params.BatchID] = b
	}
	b.ItemCount += params.ItemCount
	cp := *b
	return &cp, nil
}

func (r *fakeExportRepo) List(_ context.Context, _ model.ExportBatchFilter) ([]model.ExportBatch, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.ExportBatch
	for _, b := range r.batches {
		out = append(out, *b)
	}
	return out, nil
}

type mockGateway struct {
	mock.Mock
}

func (m *mockGateway) ListSessions(ctx context.Context, server *model.GatewayServer) ([]model.UpstreamSession, error) {
	args := m.Called(ctx, server.ID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.UpstreamSession), args.Error(1)
}

func (m *mockGateway) FetchQR(ctx context.Context, server *model.GatewayServer, identifier string) (*gateway.QRResult, error) {
	args := m.Called(ctx, server.ID, identifier)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*gateway.QRResult), args.Error(1)
}

func (m *mockGateway) Connect(ctx context.Context, server *model.GatewayServer, identifier string, payload any) (*gateway.SessionResult, error) {
	args := m.Called(ctx, server.ID, identifier, payload)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*gateway.SessionResult), args.Error(1)
}

func (m *mockGateway) Ping(ctx context.Context, server *model.GatewayServer) error {
	args := m.Called(ctx, server.ID)
	return args.Error(0)
}

func rawItems(items ...string) []json.RawMessage {
	out := make([]json.RawMessage, len(items))
	for i, s := range items {
		out[i] = json.RawMessage(s)
	}
	return out
}
