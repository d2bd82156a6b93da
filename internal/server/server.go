// Package server exposes lead ingestion over HTTP: vendor webhooks, file
// uploads and health checks.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"golang.org/x/time/rate"

	"github.com/sells-group/lead-ingest/internal/config"
	"github.com/sells-group/lead-ingest/internal/ingest"
)

// CredentialStore maps vendor webhook credentials to a tenant.
type CredentialStore interface {
	TenantByCredential(ctx context.Context, vendor, sid, apiKey string) (string, error)
}

// Options configures the HTTP surface.
type Options struct {
	MaxUploadBytes int64
	RateLimit      rate.Limit // per tenant, 0 disables limiting
	RateBurst      int
	CORSOrigins    []string

	// Legacy single-tenant webhook credentials, attributed to the default
	// tenant. Both empty disables them.
	LegacySID    string
	LegacyAPIKey string
}

// OptionsFromConfig builds Options from the application config.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		MaxUploadBytes: int64(cfg.Server.MaxUploadMB) << 20,
		RateLimit:      rate.Limit(cfg.Server.RateLimitRPS),
		RateBurst:      cfg.Server.RateLimitBurst,
		CORSOrigins:    cfg.Server.CORSOrigins,
		LegacySID:      cfg.Webhook.LegacySID,
		LegacyAPIKey:   cfg.Webhook.LegacyAPIKey,
	}
}

// Server handles lead webhooks and uploads.
type Server struct {
	coord    *ingest.Coordinator
	creds    CredentialStore
	opts     Options
	limiters *tenantLimiters
	now      func() time.Time
}

// New creates a Server.
func New(coord *ingest.Coordinator, creds CredentialStore, opts Options) *Server {
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = 50 << 20
	}
	if len(opts.CORSOrigins) == 0 {
		opts.CORSOrigins = []string{"*"}
	}
	return &Server{
		coord:    coord,
		creds:    creds,
		opts:     opts,
		limiters: newTenantLimiters(opts.RateLimit, opts.RateBurst),
		now:      time.Now,
	}
}

// Handler returns the routed HTTP handler.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.opts.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Tenant-ID", "sid", "apikey"},
		ExposedHeaders: []string{"X-Process-Time"},
		MaxAge:         300,
	}))

	r.Get("/health", s.handleHealth)
	r.Route("/api", func(r chi.Router) {
		r.Get("/webhooks/health", s.handleWebhookHealth)
		r.Post("/webhooks/{vendor}", s.handleWebhook)
		r.Post("/csv-upload", s.handleUpload)
	})
	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleWebhookHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":    "ok",
		"service":   "webhook",
		"timestamp": s.now().UTC().Format(time.RFC3339),
	})
}
