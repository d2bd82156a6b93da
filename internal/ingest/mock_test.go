package ingest

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/sells-group/lead-ingest/internal/model"
	"github.com/sells-group/lead-ingest/internal/store"
)

// --- Store Mock ---

type mockStore struct {
	mock.Mock
}

func (m *mockStore) UpsertLead(ctx context.Context, tenantID string, id model.Identity, merge store.MergeFunc) (*store.UpsertResult, error) {
	args := m.Called(ctx, tenantID, id, merge)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*store.UpsertResult), args.Error(1)
}

func (m *mockStore) FindLead(ctx context.Context, tenantID string, id model.Identity) (*model.Lead, error) {
	args := m.Called(ctx, tenantID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Lead), args.Error(1)
}

func (m *mockStore) GetLead(ctx context.Context, tenantID, leadID string) (*model.Lead, error) {
	args := m.Called(ctx, tenantID, leadID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Lead), args.Error(1)
}

func (m *mockStore) ListLeads(ctx context.Context, tenantID string, filter store.LeadFilter) ([]model.Lead, error) {
	args := m.Called(ctx, tenantID, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Lead), args.Error(1)
}

func (m *mockStore) CountLeads(ctx context.Context, tenantID string) (int, error) {
	args := m.Called(ctx, tenantID)
	return args.Int(0), args.Error(1)
}

func (m *mockStore) CreateTenant(ctx context.Context, t model.Tenant) (*model.Tenant, error) {
	args := m.Called(ctx, t)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Tenant), args.Error(1)
}

func (m *mockStore) GetTenant(ctx context.Context, tenantID string) (*model.Tenant, error) {
	args := m.Called(ctx, tenantID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Tenant), args.Error(1)
}

func (m *mockStore) AddCredential(ctx context.Context, cred model.WebhookCredential) (*model.WebhookCredential, error) {
	args := m.Called(ctx, cred)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.WebhookCredential), args.Error(1)
}

func (m *mockStore) TenantByCredential(ctx context.Context, vendor, sid, apiKey string) (string, error) {
	args := m.Called(ctx, vendor, sid, apiKey)
	return args.String(0), args.Error(1)
}

func (m *mockStore) Ping(ctx context.Context) error    { return m.Called(ctx).Error(0) }
func (m *mockStore) Migrate(ctx context.Context) error { return m.Called(ctx).Error(0) }
func (m *mockStore) Close() error                      { return m.Called().Error(0) }

var _ store.Store = (*mockStore)(nil)
