// Package ingest persists canonical leads: it resolves the tenant, merges
// each lead with the stored lead for its identity in one atomic upsert, and
// drives CSV batch imports and vendor webhooks through the same path.
package ingest

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/lead-ingest/internal/config"
	"github.com/sells-group/lead-ingest/internal/dedupe"
	"github.com/sells-group/lead-ingest/internal/mapper"
	"github.com/sells-group/lead-ingest/internal/model"
	"github.com/sells-group/lead-ingest/internal/resilience"
	"github.com/sells-group/lead-ingest/internal/store"
	"github.com/sells-group/lead-ingest/internal/vendor"
)

// ErrUnknownVendor is returned for webhooks addressed to a vendor with no
// profile.
var ErrUnknownVendor = eris.New("ingest: unknown vendor")

// Result is the outcome of ingesting one lead.
type Result struct {
	Lead    *model.Lead
	IsNew   bool
	Outcome dedupe.Outcome
}

// Coordinator runs leads through merge and persistence for a tenant.
type Coordinator struct {
	cfg       config.IngestConfig
	store     store.Store
	tenants   *TenantResolver
	vendors   *vendor.Registry
	mapper    *mapper.Mapper
	listeners []Listener
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithListener registers a listener for persisted leads.
func WithListener(l Listener) Option {
	return func(c *Coordinator) { c.listeners = append(c.listeners, l) }
}

// WithMapper replaces the default mapper.
func WithMapper(m *mapper.Mapper) Option {
	return func(c *Coordinator) { c.mapper = m }
}

// New creates a Coordinator.
func New(cfg config.IngestConfig, st store.Store, vendors *vendor.Registry, opts ...Option) *Coordinator {
	if cfg.MaxRows <= 0 {
		cfg.MaxRows = 15000
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 8
	}
	c := &Coordinator{
		cfg:     cfg,
		store:   st,
		tenants: NewTenantResolver(st, cfg.DefaultTenant),
		vendors: vendors,
		mapper:  mapper.New(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Vendors returns the registry used for detection and webhook routing.
func (c *Coordinator) Vendors() *vendor.Registry { return c.vendors }

// Tenants returns the tenant resolver.
func (c *Coordinator) Tenants() *TenantResolver { return c.tenants }

// Ingest stores l for the tenant, creating it or merging it into the lead
// already stored under the same phone (or email when there is no phone).
func (c *Coordinator) Ingest(ctx context.Context, tenantID string, l *model.CanonicalLead) (*Result, error) {
	if l == nil {
		return nil, eris.New("ingest: nil lead")
	}
	tenant, err := c.tenants.Resolve(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	return c.ingest(ctx, tenant, l)
}

// IngestWebhook canonicalizes one webhook payload with the named vendor's
// profile and ingests it.
func (c *Coordinator) IngestWebhook(ctx context.Context, tenantID, vendorName string, payload *model.RawRecord) (*Result, []string, error) {
	profile, ok := c.vendors.Lookup(vendorName)
	if !ok {
		return nil, nil, eris.Wrapf(ErrUnknownVendor, "vendor %q", vendorName)
	}
	tenant, err := c.tenants.Resolve(ctx, tenantID)
	if err != nil {
		return nil, nil, err
	}

	mapped, err := c.mapper.Canonicalize(payload, profile)
	if err != nil {
		return nil, nil, err
	}
	res, err := c.ingest(ctx, tenant, mapped.Lead)
	if err != nil {
		return nil, mapped.Warnings, err
	}
	return res, mapped.Warnings, nil
}

func (c *Coordinator) ingest(ctx context.Context, tenantID string, l *model.CanonicalLead) (*Result, error) {
	identity := model.IdentityOf(l)

	retry := resilience.ConflictRetry(c.cfg.ConflictRetries, store.IsConflict)
	retry.OnRetry = resilience.RetryLogger("ingest", "upsert_lead")

	var outcome dedupe.Outcome
	up, err := resilience.DoVal(ctx, retry, func(ctx context.Context) (*store.UpsertResult, error) {
		return c.store.UpsertLead(ctx, tenantID, identity, mergeInto(l, &outcome))
	})
	if err != nil {
		return nil, eris.Wrapf(err, "ingest: upsert lead %s", identity)
	}

	res := &Result{Lead: up.Lead, IsNew: up.Created, Outcome: outcome}
	zap.L().Debug("ingest: lead persisted",
		zap.String("tenant", tenantID),
		zap.String("identity", identity.String()),
		zap.String("action", string(outcome.Action)),
	)
	for _, lst := range c.listeners {
		lst.OnLeadIngested(ctx, tenantID, res)
	}
	return res, nil
}

// mergeInto returns the store merge step for incoming. Status and
// disposition are only changed when incoming supplies them; a new lead
// without a status starts as "New".
func mergeInto(incoming *model.CanonicalLead, outcome *dedupe.Outcome) store.MergeFunc {
	return func(existing *model.CanonicalLead) (*model.CanonicalLead, error) {
		out := dedupe.Merge(incoming, existing)
		merged := out.Lead
		if existing != nil {
			if strings.TrimSpace(incoming.Status) == "" {
				merged.Status = existing.Status
			}
			if strings.TrimSpace(incoming.Disposition) == "" {
				merged.Disposition = existing.Disposition
			}
		}
		if merged.Status == "" {
			merged.Status = model.DefaultStatus
		}
		*outcome = out
		return merged, nil
	}
}
