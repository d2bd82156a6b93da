package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) }) //nolint:errcheck
	return dir
}

func TestLoadDefaults(t *testing.T) {
	// Change to temp dir so no config.yaml is found
	chdirTemp(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, int32(10), cfg.Store.MaxConns)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 50, cfg.Server.MaxUploadMB)
	assert.InDelta(t, 20.0, cfg.Server.RateLimitRPS, 0.001)
	assert.Equal(t, 40, cfg.Server.RateLimitBurst)
	assert.Equal(t, []string{"*"}, cfg.Server.CORSOrigins)
	assert.Equal(t, 15000, cfg.Ingest.MaxRows)
	assert.Equal(t, 8, cfg.Ingest.Concurrency)
	assert.Equal(t, 1, cfg.Ingest.ConflictRetries)
	assert.Empty(t, cfg.Ingest.DefaultTenant)
	assert.Empty(t, cfg.Vendors.ProfilesPath)
}

func TestLoadFromYAML(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
store:
  driver: sqlite
  database_url: leads.db
log:
  level: debug
  format: console
server:
  port: 9090
ingest:
  default_tenant: acme
  concurrency: 2
webhook:
  legacy_sid: sid-1
  legacy_api_key: key-1
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "leads.db", cfg.Store.DatabaseURL)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "acme", cfg.Ingest.DefaultTenant)
	assert.Equal(t, 2, cfg.Ingest.Concurrency)
	assert.Equal(t, "sid-1", cfg.Webhook.LegacySID)
	assert.Equal(t, "key-1", cfg.Webhook.LegacyAPIKey)
	// Defaults still apply for unset values
	assert.Equal(t, 15000, cfg.Ingest.MaxRows)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
store:
  driver: sqlite
log:
  level: debug
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o644))

	t.Setenv("LEADS_STORE_DRIVER", "postgres")
	t.Setenv("LEADS_LOG_LEVEL", "warn")

	cfg, err := Load()
	require.NoError(t, err)

	// Env overrides file
	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoadEnvOverridesDefaults(t *testing.T) {
	chdirTemp(t)

	t.Setenv("LEADS_SERVER_PORT", "3000")
	t.Setenv("LEADS_INGEST_MAX_ROWS", "500")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 3000, cfg.Server.Port)
	assert.Equal(t, 500, cfg.Ingest.MaxRows)
}

func TestLoadInvalidYAML(t *testing.T) {
	dir := chdirTemp(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("store: [unclosed"), 0o644))

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config: read file")
}

func TestInitLoggerConsole(t *testing.T) {
	err := InitLogger(LogConfig{Level: "debug", Format: "console"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerJSON(t *testing.T) {
	err := InitLogger(LogConfig{Level: "info", Format: "json"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerInvalidLevel(t *testing.T) {
	err := InitLogger(LogConfig{Level: "invalid", Format: "json"})
	assert.Error(t, err)
}

// validDefaults returns a Config with all defaults populated for validation tests.
func validDefaults() *Config {
	cfg := &Config{}
	cfg.Store.Driver = "postgres"
	cfg.Store.DatabaseURL = "postgres://localhost/leads"
	cfg.Server.Port = 8080
	cfg.Server.MaxUploadMB = 50
	cfg.Ingest.MaxRows = 15000
	cfg.Ingest.ConflictRetries = 1
	return cfg
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mode    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "defaults import", mode: "import", mutate: func(*Config) {}},
		{name: "defaults serve", mode: "serve", mutate: func(*Config) {}},
		{
			name:    "postgres without url",
			mode:    "import",
			mutate:  func(c *Config) { c.Store.DatabaseURL = "" },
			wantErr: "store.database_url is required",
		},
		{
			name:   "sqlite without url",
			mode:   "import",
			mutate: func(c *Config) { c.Store.Driver = "sqlite"; c.Store.DatabaseURL = "" },
		},
		{
			name:    "unknown driver",
			mode:    "import",
			mutate:  func(c *Config) { c.Store.Driver = "mysql" },
			wantErr: `store.driver "mysql" is not supported`,
		},
		{
			name:    "zero max rows",
			mode:    "import",
			mutate:  func(c *Config) { c.Ingest.MaxRows = 0 },
			wantErr: "ingest.max_rows must be positive",
		},
		{
			name:    "serve bad port",
			mode:    "serve",
			mutate:  func(c *Config) { c.Server.Port = 0 },
			wantErr: "server.port 0 is out of range",
		},
		{
			name:   "bad port ignored outside serve",
			mode:   "import",
			mutate: func(c *Config) { c.Server.Port = 0 },
		},
		{
			name:    "half legacy credentials",
			mode:    "serve",
			mutate:  func(c *Config) { c.Webhook.LegacySID = "sid" },
			wantErr: "must be set together",
		},
		{
			name: "legacy credentials need default tenant",
			mode: "serve",
			mutate: func(c *Config) {
				c.Webhook.LegacySID = "sid"
				c.Webhook.LegacyAPIKey = "key"
			},
			wantErr: "ingest.default_tenant is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validDefaults()
			tt.mutate(cfg)
			err := cfg.Validate(tt.mode)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
