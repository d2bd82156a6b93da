package store

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/lead-ingest/internal/db"
	"github.com/sells-group/lead-ingest/internal/model"
	"github.com/sells-group/lead-ingest/internal/resilience"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

// migrationLockID guards concurrent Migrate runs across deploys.
const migrationLockID = 7714003

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

const (
	leadColumns = `id, tenant_id, COALESCE(identity_key, ''), data, created_at, updated_at`

	lockIdentitySQL = `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`

	selectLeadByIdentitySQL = `SELECT ` + leadColumns + ` FROM leads WHERE tenant_id = $1 AND identity_key = $2`

	insertLeadSQL = `INSERT INTO leads (id, tenant_id, identity_key, phone, email, name, status, product, price, source, data, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
ON CONFLICT (tenant_id, identity_key) DO NOTHING
RETURNING id`

	updateLeadSQL = `UPDATE leads SET phone = $2, email = $3, name = $4, status = $5, product = $6, price = $7, source = $8, data = $9, updated_at = $10 WHERE id = $1`
)

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := buildPoolConfig(connString, poolCfg)
	if err != nil {
		return nil, err
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// buildPoolConfig parses connString and applies pool sizing. Statements run
// through pgx's per-connection statement cache.
func buildPoolConfig(connString string, poolCfg *PoolConfig) (*pgxpool.Config, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	pgxCfg.MaxConns = 10
	pgxCfg.MinConns = 2
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			pgxCfg.MaxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			pgxCfg.MinConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute
	return pgxCfg, nil
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

// Migrate applies pending files from migrations/ in lexicographic order and
// records each one in schema_migrations.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	log := zap.L().With(zap.String("component", "store.migrate"))

	if _, err := s.pool.Exec(ctx, "SELECT pg_advisory_lock($1)", migrationLockID); err != nil {
		return eris.Wrap(err, "postgres: acquire migration lock")
	}
	defer func() {
		if _, err := s.pool.Exec(ctx, "SELECT pg_advisory_unlock($1)", migrationLockID); err != nil {
			log.Warn("postgres: release migration lock", zap.Error(err))
		}
	}()

	if _, err := s.pool.Exec(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
	filename   TEXT PRIMARY KEY,
	applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`); err != nil {
		return eris.Wrap(err, "postgres: ensure migration table")
	}

	applied, err := s.appliedMigrations(ctx)
	if err != nil {
		return err
	}

	entries, err := fs.ReadDir(migrationFS, "migrations")
	if err != nil {
		return eris.Wrap(err, "postgres: read migrations")
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	for _, entry := range entries {
		name := entry.Name()
		if applied[name] {
			continue
		}
		sql, err := migrationFS.ReadFile("migrations/" + name)
		if err != nil {
			return eris.Wrapf(err, "postgres: read migration %s", name)
		}
		if _, err := s.pool.Exec(ctx, string(sql)); err != nil {
			return eris.Wrapf(err, "postgres: apply migration %s", name)
		}
		if _, err := s.pool.Exec(ctx, "INSERT INTO schema_migrations (filename) VALUES ($1)", name); err != nil {
			return eris.Wrapf(err, "postgres: record migration %s", name)
		}
		log.Info("migration applied", zap.String("file", name))
	}
	return nil
}

func (s *PostgresStore) appliedMigrations(ctx context.Context) (map[string]bool, error) {
	rows, err := s.pool.Query(ctx, "SELECT filename FROM schema_migrations")
	if err != nil {
		return nil, eris.Wrap(err, "postgres: query applied migrations")
	}
	defer rows.Close()

	applied := make(map[string]bool)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, eris.Wrap(err, "postgres: scan migration row")
		}
		applied[name] = true
	}
	return applied, eris.Wrap(rows.Err(), "postgres: iterate migrations")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

// UpsertLead finds the lead for (tenant, identity), merges and writes it in
// one transaction. A transaction-scoped advisory lock on the identity
// serializes concurrent writers; the unique index on (tenant_id,
// identity_key) backs it up and surfaces as ErrConflict. Leads without an
// identity are always inserted.
func (s *PostgresStore) UpsertLead(ctx context.Context, tenantID string, id model.Identity, merge MergeFunc) (*UpsertResult, error) {
	var out *UpsertResult
	err := db.InTx(ctx, s.pool, func(tx pgx.Tx) error {
		var existing *model.Lead
		if !id.IsZero() {
			if _, err := tx.Exec(ctx, lockIdentitySQL, tenantID+"|"+id.Key()); err != nil {
				return classifyPG(err, "postgres: lock identity")
			}
			l, err := scanLead(tx.QueryRow(ctx, selectLeadByIdentitySQL, tenantID, id.Key()))
			if err != nil && !IsNotFound(err) {
				return classifyPG(err, "postgres: find lead")
			}
			existing = l
		}

		data, err := mergeLead(merge, existing)
		if err != nil {
			return err
		}
		now := time.Now().UTC()

		if existing == nil {
			lead := &model.Lead{
				ID:          uuid.New().String(),
				TenantID:    tenantID,
				IdentityKey: id.Key(),
				Data:        *data,
				CreatedAt:   now,
				UpdatedAt:   now,
			}
			if err := insertLead(ctx, tx, lead); err != nil {
				return err
			}
			out = &UpsertResult{Lead: lead, Created: true}
			return nil
		}

		lead := *existing
		lead.Data = *data
		lead.UpdatedAt = now
		if err := updateLead(ctx, tx, &lead); err != nil {
			return err
		}
		out = &UpsertResult{Lead: &lead}
		return nil
	})
	if err != nil {
		if IsConflict(err) || resilience.IsTransient(err) {
			return nil, err
		}
		return nil, classifyPG(err, "postgres: upsert lead")
	}
	return out, nil
}

func insertLead(ctx context.Context, tx pgx.Tx, l *model.Lead) error {
	dataJSON, err := json.Marshal(l.Data)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal lead")
	}
	var id string
	err = tx.QueryRow(ctx, insertLeadSQL,
		l.ID, l.TenantID, nullIfEmpty(l.IdentityKey),
		nullIfEmpty(l.Data.Phone), nullIfEmpty(strings.ToLower(l.Data.Email)), l.Data.Name, l.Data.Status,
		string(l.Data.Product), l.Data.Price, l.Data.Source, dataJSON, l.CreatedAt, l.UpdatedAt,
	).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return eris.Wrapf(ErrConflict, "postgres: identity %s already inserted", l.IdentityKey)
	}
	return classifyPG(err, "postgres: insert lead")
}

func updateLead(ctx context.Context, tx pgx.Tx, l *model.Lead) error {
	dataJSON, err := json.Marshal(l.Data)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal lead")
	}
	tag, err := tx.Exec(ctx, updateLeadSQL,
		l.ID, nullIfEmpty(l.Data.Phone), nullIfEmpty(strings.ToLower(l.Data.Email)), l.Data.Name, l.Data.Status,
		string(l.Data.Product), l.Data.Price, l.Data.Source, dataJSON, l.UpdatedAt,
	)
	if err != nil {
		return classifyPG(err, "postgres: update lead")
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrConflict, "postgres: lead %s vanished during update", l.ID)
	}
	return nil
}

// classifyPG maps driver errors onto the store's retry taxonomy.
func classifyPG(err error, msg string) error {
	switch {
	case err == nil:
		return nil
	case db.IsUniqueViolation(err):
		return eris.Wrap(ErrConflict, msg)
	case db.IsRetryableTx(err):
		return eris.Wrap(resilience.NewTransientError(err, db.PgCode(err)), msg)
	default:
		return eris.Wrap(err, msg)
	}
}

func (s *PostgresStore) FindLead(ctx context.Context, tenantID string, id model.Identity) (*model.Lead, error) {
	if id.IsZero() {
		return nil, ErrNotFound
	}
	l, err := scanLead(s.pool.QueryRow(ctx, selectLeadByIdentitySQL, tenantID, id.Key()))
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: find lead %s", id)
	}
	return l, nil
}

func (s *PostgresStore) GetLead(ctx context.Context, tenantID, leadID string) (*model.Lead, error) {
	l, err := scanLead(s.pool.QueryRow(ctx,
		`SELECT `+leadColumns+` FROM leads WHERE tenant_id = $1 AND id = $2`,
		tenantID, leadID,
	))
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get lead %s", leadID)
	}
	return l, nil
}

func (s *PostgresStore) ListLeads(ctx context.Context, tenantID string, filter LeadFilter) ([]model.Lead, error) {
	query := `SELECT ` + leadColumns + ` FROM leads WHERE tenant_id = $1`
	args := []any{tenantID}

	if filter.Status != "" {
		args = append(args, filter.Status)
		query += fmt.Sprintf(` AND status = $%d`, len(args))
	}
	query += ` ORDER BY created_at DESC, id`

	args = append(args, listLimit(filter.Limit))
	query += fmt.Sprintf(` LIMIT $%d`, len(args))
	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += fmt.Sprintf(` OFFSET $%d`, len(args))
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list leads")
	}
	defer rows.Close()

	var leads []model.Lead
	for rows.Next() {
		l, err := scanLead(rows)
		if err != nil {
			return nil, err
		}
		leads = append(leads, *l)
	}
	return leads, eris.Wrap(rows.Err(), "postgres: list leads iterate")
}

func (s *PostgresStore) CountLeads(ctx context.Context, tenantID string) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx, `SELECT count(*) FROM leads WHERE tenant_id = $1`, tenantID).Scan(&n)
	return n, eris.Wrap(err, "postgres: count leads")
}

func (s *PostgresStore) CreateTenant(ctx context.Context, t model.Tenant) (*model.Tenant, error) {
	if strings.TrimSpace(t.Name) == "" {
		return nil, eris.New("postgres: tenant name is required")
	}
	if t.ID == "" {
		t.ID = uuid.New().String()
	}
	t.CreatedAt = time.Now().UTC()

	_, err := s.pool.Exec(ctx,
		`INSERT INTO tenants (id, name, created_at) VALUES ($1, $2, $3)`,
		t.ID, t.Name, t.CreatedAt,
	)
	if db.IsUniqueViolation(err) {
		return nil, eris.Errorf("postgres: tenant %s already exists", t.ID)
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert tenant")
	}
	return &t, nil
}

func (s *PostgresStore) GetTenant(ctx context.Context, tenantID string) (*model.Tenant, error) {
	var t model.Tenant
	err := s.pool.QueryRow(ctx,
		`SELECT id, name, created_at FROM tenants WHERE id = $1`, tenantID,
	).Scan(&t.ID, &t.Name, &t.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "postgres: tenant %s", tenantID)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get tenant %s", tenantID)
	}
	return &t, nil
}

func (s *PostgresStore) AddCredential(ctx context.Context, cred model.WebhookCredential) (*model.WebhookCredential, error) {
	if err := validateCredential(cred); err != nil {
		return nil, err
	}
	cred.ID = uuid.New().String()
	cred.Vendor = strings.ToUpper(cred.Vendor)
	cred.CreatedAt = time.Now().UTC()

	_, err := s.pool.Exec(ctx,
		`INSERT INTO webhook_credentials (id, tenant_id, vendor, sid, api_key_hash, created_at) VALUES ($1, $2, $3, $4, $5, $6)`,
		cred.ID, cred.TenantID, cred.Vendor, cred.SID, HashAPIKey(cred.APIKey), cred.CreatedAt,
	)
	if db.IsUniqueViolation(err) {
		return nil, eris.Errorf("postgres: credential %s/%s already exists", cred.Vendor, cred.SID)
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert credential")
	}
	return &cred, nil
}

func (s *PostgresStore) TenantByCredential(ctx context.Context, vendor, sid, apiKey string) (string, error) {
	var tenantID string
	err := s.pool.QueryRow(ctx,
		`SELECT tenant_id FROM webhook_credentials WHERE vendor = $1 AND sid = $2 AND api_key_hash = $3 AND active`,
		strings.ToUpper(vendor), sid, HashAPIKey(apiKey),
	).Scan(&tenantID)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", eris.Wrap(ErrNotFound, "postgres: credential")
	}
	if err != nil {
		return "", eris.Wrap(err, "postgres: lookup credential")
	}
	return tenantID, nil
}
