package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/lead-ingest/internal/ingest"
	"github.com/sells-group/lead-ingest/internal/resilience"
	"github.com/sells-group/lead-ingest/internal/store"
	"github.com/sells-group/lead-ingest/internal/vendor"
)

func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		dsn := cfg.Store.DatabaseURL
		if dsn == "" {
			dsn = "leads.db"
		}
		return store.NewSQLite(dsn)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, &store.PoolConfig{
			MaxConns: cfg.Store.MaxConns,
			MinConns: cfg.Store.MinConns,
		})
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

// migrator is the part of store.Store that migrateStore needs.
type migrator interface {
	Migrate(ctx context.Context) error
}

func migrateRetry() resilience.RetryConfig {
	rc := resilience.DefaultRetryConfig()
	rc.MaxAttempts = 5
	rc.InitialBackoff = 200 * time.Millisecond
	rc.MaxBackoff = 2 * time.Second
	rc.OnRetry = resilience.RetryLogger("store", "migrate")
	return rc
}

// migrateStore applies pending migrations, retrying while another process
// holds the database.
func migrateStore(ctx context.Context, m migrator, rc resilience.RetryConfig) error {
	return eris.Wrap(resilience.Do(ctx, rc, m.Migrate), "migrate store")
}

func loadVendors() (*vendor.Registry, error) {
	if cfg.Vendors.ProfilesPath != "" {
		return vendor.LoadFile(cfg.Vendors.ProfilesPath)
	}
	return vendor.Builtin()
}

// ingestEnv holds the store and coordinator used by the serve and import
// commands.
type ingestEnv struct {
	Store       store.Store
	Coordinator *ingest.Coordinator
}

// Close releases resources held by the environment.
func (e *ingestEnv) Close() {
	if e.Store != nil {
		_ = e.Store.Close()
	}
}

// initIngest validates config for mode, opens and migrates the store, loads
// vendor profiles and builds the coordinator. Callers should defer
// env.Close().
func initIngest(ctx context.Context, mode string) (*ingestEnv, error) {
	if err := cfg.Validate(mode); err != nil {
		return nil, err
	}

	vendors, err := loadVendors()
	if err != nil {
		return nil, err
	}

	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}
	if err := migrateStore(ctx, st, migrateRetry()); err != nil {
		_ = st.Close()
		return nil, err
	}

	coord := ingest.New(cfg.Ingest, st, vendors, ingest.WithListener(ingest.LogListener{}))
	return &ingestEnv{Store: st, Coordinator: coord}, nil
}
