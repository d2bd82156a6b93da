// Package store persists tenant-scoped leads, tenants and webhook
// credentials.
package store

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"

	"github.com/sells-group/lead-ingest/internal/model"
)

var (
	// ErrNotFound is returned when a lookup matches nothing.
	ErrNotFound = eris.New("store: not found")

	// ErrConflict is returned when an upsert lost a race for an identity to
	// a concurrent writer. Re-reading and re-merging resolves it.
	ErrConflict = eris.New("store: identity conflict")
)

// IsConflict reports whether err is (or wraps) ErrConflict.
func IsConflict(err error) bool { return errors.Is(err, ErrConflict) }

// IsNotFound reports whether err is (or wraps) ErrNotFound.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

// MergeFunc produces the lead data to persist given the currently stored
// data for the identity, or nil when there is none. It runs inside the
// upsert's critical section and may be called again if the upsert is
// retried.
type MergeFunc func(existing *model.CanonicalLead) (*model.CanonicalLead, error)

// UpsertResult is the outcome of UpsertLead.
type UpsertResult struct {
	Lead    *model.Lead
	Created bool
}

// LeadFilter specifies criteria for listing leads.
type LeadFilter struct {
	Status string `json:"status,omitempty"`
	Limit  int    `json:"limit,omitempty"`
	Offset int    `json:"offset,omitempty"`
}

// Store defines the persistence interface for lead ingestion.
type Store interface {
	// Leads
	UpsertLead(ctx context.Context, tenantID string, id model.Identity, merge MergeFunc) (*UpsertResult, error)
	FindLead(ctx context.Context, tenantID string, id model.Identity) (*model.Lead, error)
	GetLead(ctx context.Context, tenantID, leadID string) (*model.Lead, error)
	ListLeads(ctx context.Context, tenantID string, filter LeadFilter) ([]model.Lead, error)
	CountLeads(ctx context.Context, tenantID string) (int, error)

	// Tenants
	CreateTenant(ctx context.Context, t model.Tenant) (*model.Tenant, error)
	GetTenant(ctx context.Context, tenantID string) (*model.Tenant, error)

	// Webhook credentials
	AddCredential(ctx context.Context, cred model.WebhookCredential) (*model.WebhookCredential, error)
	TenantByCredential(ctx context.Context, vendor, sid, apiKey string) (string, error)

	// Lifecycle
	Ping(ctx context.Context) error
	Migrate(ctx context.Context) error
	Close() error
}

// HashAPIKey returns the digest stored in place of a webhook API key.
func HashAPIKey(apiKey string) string {
	sum := sha256.Sum256([]byte(apiKey))
	return hex.EncodeToString(sum[:])
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func validateCredential(cred model.WebhookCredential) error {
	var missing []string
	for name, v := range map[string]string{"tenant": cred.TenantID, "vendor": cred.Vendor, "sid": cred.SID, "apikey": cred.APIKey} {
		if strings.TrimSpace(v) == "" {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return eris.Errorf("store: credential missing %s", strings.Join(missing, ", "))
	}
	return nil
}

type scannable interface {
	Scan(dest ...any) error
}

// scanLead reads leadColumns from a row of either driver.
func scanLead(row scannable) (*model.Lead, error) {
	var l model.Lead
	var data []byte
	err := row.Scan(&l.ID, &l.TenantID, &l.IdentityKey, &data, &l.CreatedAt, &l.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) || errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrap(err, "store: scan lead")
	}
	if err := json.Unmarshal(data, &l.Data); err != nil {
		return nil, eris.Wrapf(err, "store: unmarshal lead %s", l.ID)
	}
	return &l, nil
}

func listLimit(limit int) int {
	if limit <= 0 {
		return 100
	}
	return limit
}

func mergeLead(merge MergeFunc, existing *model.Lead) (*model.CanonicalLead, error) {
	var prev *model.CanonicalLead
	if existing != nil {
		prev = existing.Data.Clone()
	}
	data, err := merge(prev)
	if err != nil {
		return nil, err
	}
	if data == nil {
		return nil, eris.New("store: merge returned no lead data")
	}
	return data, nil
}
