package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/lead-ingest/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite. It keeps a single
// open connection so every upsert transaction runs alone.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	db.SetMaxOpenConns(1)
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS tenants (
	id         TEXT PRIMARY KEY,
	name       TEXT NOT NULL,
	created_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS leads (
	id           TEXT PRIMARY KEY,
	tenant_id    TEXT NOT NULL REFERENCES tenants(id),
	identity_key TEXT,
	phone        TEXT,
	email        TEXT,
	name         TEXT NOT NULL DEFAULT '',
	status       TEXT NOT NULL DEFAULT 'New',
	product      TEXT NOT NULL DEFAULT '',
	price        REAL NOT NULL DEFAULT 0,
	source       TEXT NOT NULL DEFAULT '',
	data         TEXT NOT NULL,
	created_at   DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at   DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_leads_tenant_identity ON leads(tenant_id, identity_key);
CREATE INDEX IF NOT EXISTS idx_leads_tenant_created ON leads(tenant_id, created_at);

CREATE TABLE IF NOT EXISTS webhook_credentials (
	id           TEXT PRIMARY KEY,
	tenant_id    TEXT NOT NULL REFERENCES tenants(id),
	vendor       TEXT NOT NULL,
	sid          TEXT NOT NULL,
	api_key_hash TEXT NOT NULL,
	active       INTEGER NOT NULL DEFAULT 1,
	created_at   DATETIME NOT NULL DEFAULT (datetime('now')),
	UNIQUE (vendor, sid)
);
`

const sqliteLeadColumns = `id, tenant_id, COALESCE(identity_key, ''), data, created_at, updated_at`

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.db.PingContext(ctx), "sqlite: ping")
}

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// UpsertLead runs find, merge and write in one transaction on the store's
// only connection.
func (s *SQLiteStore) UpsertLead(ctx context.Context, tenantID string, id model.Identity, merge MergeFunc) (*UpsertResult, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: begin tx")
	}
	defer tx.Rollback() //nolint:errcheck

	var existing *model.Lead
	if !id.IsZero() {
		existing, err = scanLead(tx.QueryRowContext(ctx,
			`SELECT `+sqliteLeadColumns+` FROM leads WHERE tenant_id = ? AND identity_key = ?`,
			tenantID, id.Key(),
		))
		if err != nil && !IsNotFound(err) {
			return nil, eris.Wrap(err, "sqlite: find lead")
		}
	}

	data, err := mergeLead(merge, existing)
	if err != nil {
		return nil, err
	}
	dataJSON, err := json.Marshal(data)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: marshal lead")
	}
	now := time.Now().UTC()

	var out UpsertResult
	if existing == nil {
		lead := &model.Lead{
			ID:          uuid.New().String(),
			TenantID:    tenantID,
			IdentityKey: id.Key(),
			Data:        *data,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO leads (id, tenant_id, identity_key, phone, email, name, status, product, price, source, data, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			lead.ID, tenantID, nullIfEmpty(lead.IdentityKey),
			nullIfEmpty(data.Phone), nullIfEmpty(strings.ToLower(data.Email)), data.Name, data.Status,
			string(data.Product), data.Price, data.Source, string(dataJSON), now, now,
		)
		if err != nil {
			return nil, classifySQLite(err, "sqlite: insert lead")
		}
		out = UpsertResult{Lead: lead, Created: true}
	} else {
		lead := *existing
		lead.Data = *data
		lead.UpdatedAt = now
		res, err := tx.ExecContext(ctx,
			`UPDATE leads SET phone = ?, email = ?, name = ?, status = ?, product = ?, price = ?, source = ?, data = ?, updated_at = ? WHERE id = ?`,
			nullIfEmpty(data.Phone), nullIfEmpty(strings.ToLower(data.Email)), data.Name, data.Status,
			string(data.Product), data.Price, data.Source, string(dataJSON), now, lead.ID,
		)
		if err != nil {
			return nil, classifySQLite(err, "sqlite: update lead")
		}
		if err := checkRowsAffected(res, "lead", lead.ID); err != nil {
			return nil, err
		}
		out = UpsertResult{Lead: &lead}
	}

	if err := tx.Commit(); err != nil {
		return nil, classifySQLite(err, "sqlite: commit")
	}
	return &out, nil
}

func classifySQLite(err error, msg string) error {
	if strings.Contains(err.Error(), "UNIQUE constraint failed") {
		return eris.Wrap(ErrConflict, msg)
	}
	return eris.Wrap(err, msg)
}

func (s *SQLiteStore) FindLead(ctx context.Context, tenantID string, id model.Identity) (*model.Lead, error) {
	if id.IsZero() {
		return nil, ErrNotFound
	}
	l, err := scanLead(s.db.QueryRowContext(ctx,
		`SELECT `+sqliteLeadColumns+` FROM leads WHERE tenant_id = ? AND identity_key = ?`,
		tenantID, id.Key(),
	))
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: find lead %s", id)
	}
	return l, nil
}

func (s *SQLiteStore) GetLead(ctx context.Context, tenantID, leadID string) (*model.Lead, error) {
	l, err := scanLead(s.db.QueryRowContext(ctx,
		`SELECT `+sqliteLeadColumns+` FROM leads WHERE tenant_id = ? AND id = ?`,
		tenantID, leadID,
	))
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get lead %s", leadID)
	}
	return l, nil
}

func (s *SQLiteStore) ListLeads(ctx context.Context, tenantID string, filter LeadFilter) ([]model.Lead, error) {
	query := `SELECT ` + sqliteLeadColumns + ` FROM leads WHERE tenant_id = ?`
	args := []any{tenantID}

	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, filter.Status)
	}
	query += ` ORDER BY created_at DESC, id LIMIT ?`
	args = append(args, listLimit(filter.Limit))
	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list leads")
	}
	defer rows.Close() //nolint:errcheck

	var leads []model.Lead
	for rows.Next() {
		l, err := scanLead(rows)
		if err != nil {
			return nil, err
		}
		leads = append(leads, *l)
	}
	return leads, eris.Wrap(rows.Err(), "sqlite: list leads iterate")
}

func (s *SQLiteStore) CountLeads(ctx context.Context, tenantID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT count(*) FROM leads WHERE tenant_id = ?`, tenantID).Scan(&n)
	return n, eris.Wrap(err, "sqlite: count leads")
}

func (s *SQLiteStore) CreateTenant(ctx context.Context, t model.Tenant) (*model.Tenant, error) {
	if strings.TrimSpace(t.Name) == "" {
		return nil, eris.New("sqlite: tenant name is required")
	}
	if t.ID == "" {
		t.ID = uuid.New().String()
	}
	t.CreatedAt = time.Now().UTC()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO tenants (id, name, created_at) VALUES (?, ?, ?)`,
		t.ID, t.Name, t.CreatedAt,
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return nil, eris.Errorf("sqlite: tenant %s already exists", t.ID)
		}
		return nil, eris.Wrap(err, "sqlite: insert tenant")
	}
	return &t, nil
}

func (s *SQLiteStore) GetTenant(ctx context.Context, tenantID string) (*model.Tenant, error) {
	var t model.Tenant
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, created_at FROM tenants WHERE id = ?`, tenantID,
	).Scan(&t.ID, &t.Name, &t.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "sqlite: tenant %s", tenantID)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get tenant %s", tenantID)
	}
	return &t, nil
}

func (s *SQLiteStore) AddCredential(ctx context.Context, cred model.WebhookCredential) (*model.WebhookCredential, error) {
	if err := validateCredential(cred); err != nil {
		return nil, err
	}
	cred.ID = uuid.New().String()
	cred.Vendor = strings.ToUpper(cred.Vendor)
	cred.CreatedAt = time.Now().UTC()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO webhook_credentials (id, tenant_id, vendor, sid, api_key_hash, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		cred.ID, cred.TenantID, cred.Vendor, cred.SID, HashAPIKey(cred.APIKey), cred.CreatedAt,
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return nil, eris.Errorf("sqlite: credential %s/%s already exists", cred.Vendor, cred.SID)
		}
		return nil, eris.Wrap(err, "sqlite: insert credential")
	}
	return &cred, nil
}

func (s *SQLiteStore) TenantByCredential(ctx context.Context, vendor, sid, apiKey string) (string, error) {
	var tenantID string
	err := s.db.QueryRowContext(ctx,
		`SELECT tenant_id FROM webhook_credentials WHERE vendor = ? AND sid = ? AND api_key_hash = ? AND active = 1`,
		strings.ToUpper(vendor), sid, HashAPIKey(apiKey),
	).Scan(&tenantID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", eris.Wrap(ErrNotFound, "sqlite: credential")
	}
	if err != nil {
		return "", eris.Wrap(err, "sqlite: lookup credential")
	}
	return tenantID, nil
}

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "sqlite: rows affected")
	}
	if n == 0 {
		return eris.Wrapf(ErrConflict, "sqlite: %s %s vanished during update", entity, id)
	}
	return nil
}
