package ingest

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/lead-ingest/internal/model"
	"github.com/sells-group/lead-ingest/internal/store"
)

// ErrTenantUnresolved is returned when neither the explicit tenant nor the
// configured default names an existing tenant.
var ErrTenantUnresolved = eris.New("ingest: tenant could not be resolved")

// TenantDirectory looks tenants up by id.
type TenantDirectory interface {
	GetTenant(ctx context.Context, tenantID string) (*model.Tenant, error)
}

// TenantResolver turns a requested tenant id into one that exists. An empty
// request falls back to the default tenant, which must exist as well.
type TenantResolver struct {
	dir      TenantDirectory
	fallback string
}

// NewTenantResolver creates a resolver. fallback may be empty.
func NewTenantResolver(dir TenantDirectory, fallback string) *TenantResolver {
	return &TenantResolver{dir: dir, fallback: strings.TrimSpace(fallback)}
}

// Fallback returns the configured default tenant id.
func (r *TenantResolver) Fallback() string { return r.fallback }

// Resolve returns the id of an existing tenant or ErrTenantUnresolved.
func (r *TenantResolver) Resolve(ctx context.Context, tenantID string) (string, error) {
	id := strings.TrimSpace(tenantID)
	if id == "" {
		id = r.fallback
	}
	if id == "" {
		return "", eris.Wrap(ErrTenantUnresolved, "no tenant given and no default tenant configured")
	}

	t, err := r.dir.GetTenant(ctx, id)
	if store.IsNotFound(err) {
		return "", eris.Wrapf(ErrTenantUnresolved, "tenant %q does not exist", id)
	}
	if err != nil {
		return "", eris.Wrapf(err, "ingest: look up tenant %s", id)
	}
	return t.ID, nil
}
