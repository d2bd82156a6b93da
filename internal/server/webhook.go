package server

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/lead-ingest/internal/ingest"
	"github.com/sells-group/lead-ingest/internal/mapper"
	"github.com/sells-group/lead-ingest/internal/model"
	"github.com/sells-group/lead-ingest/internal/store"
	"github.com/sells-group/lead-ingest/internal/vendor"
)

var (
	errMissingCreds = eris.New("server: missing webhook credentials")
	errBadCreds     = eris.New("server: bad webhook credentials")
)

type webhookResponse struct {
	Success   bool     `json:"success"`
	LeadID    string   `json:"leadId"`
	IsNew     bool     `json:"isNew"`
	Message   string   `json:"message"`
	ProcessMs int64    `json:"processMs"`
	Warnings  []string `json:"warnings,omitempty"`
}

// handleWebhook accepts one JSON lead from a vendor. The vendor comes from
// the route, the tenant from the sid/apikey headers.
func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	vendorName := chi.URLParam(r, "vendor")
	log := zap.L().With(zap.String("vendor", vendorName))

	profile, ok := s.coord.Vendors().Lookup(vendorName)
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Sprintf("Unknown vendor %q", vendorName))
		return
	}

	tenant, err := s.authenticate(r.Context(), r, profile.ID)
	switch {
	case errors.Is(err, errMissingCreds):
		writeError(w, http.StatusUnauthorized, "Missing creds")
		return
	case errors.Is(err, errBadCreds):
		log.Warn("server: invalid webhook credentials", zap.String("sid", redact(r.Header.Get("sid"))))
		writeError(w, http.StatusUnauthorized, "Bad creds")
		return
	case err != nil:
		log.Error("server: credential lookup failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Internal server error processing lead")
		return
	}

	limiterKey := tenant
	if limiterKey == "" {
		limiterKey = s.coord.Tenants().Fallback()
	}
	if !s.limiters.allow(limiterKey) {
		writeError(w, http.StatusTooManyRequests, "Rate limit exceeded")
		return
	}

	payload, err := model.DecodeRawRecord(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid payload format")
		return
	}

	res, warnings, err := s.coord.IngestWebhook(r.Context(), tenant, string(profile.ID), payload)
	elapsed := time.Since(start)
	w.Header().Set("X-Process-Time", fmt.Sprintf("%dms", elapsed.Milliseconds()))
	switch {
	case errors.Is(err, mapper.ErrMissingContact):
		writeError(w, http.StatusBadRequest, "Lead must have either email or phone")
		return
	case errors.Is(err, ingest.ErrTenantUnresolved):
		log.Warn("server: webhook tenant unresolved", zap.Error(err))
		writeError(w, http.StatusUnauthorized, "Tenant could not be resolved")
		return
	case err != nil:
		log.Error("server: webhook ingest failed", zap.Error(err), zap.Duration("duration", elapsed))
		writeError(w, http.StatusInternalServerError, "Internal server error processing lead")
		return
	}

	status, verb := http.StatusOK, "updated"
	if res.IsNew {
		status, verb = http.StatusCreated, "created"
	}
	log.Info("server: webhook lead processed",
		zap.String("lead_id", res.Lead.ID),
		zap.Bool("is_new", res.IsNew),
		zap.Duration("duration", elapsed),
	)
	writeJSON(w, status, webhookResponse{
		Success:   true,
		LeadID:    res.Lead.ID,
		IsNew:     res.IsNew,
		Message:   "Lead successfully " + verb,
		ProcessMs: elapsed.Milliseconds(),
		Warnings:  warnings,
	})
}

// authenticate returns the tenant the request's credentials belong to. The
// legacy credentials yield "" so the default tenant applies.
func (s *Server) authenticate(ctx context.Context, r *http.Request, vendorID vendor.ID) (string, error) {
	sid := strings.TrimSpace(r.Header.Get("sid"))
	apiKey := strings.TrimSpace(r.Header.Get("apikey"))
	if sid == "" || apiKey == "" {
		return "", errMissingCreds
	}

	if s.opts.LegacySID != "" && s.opts.LegacyAPIKey != "" &&
		subtle.ConstantTimeCompare([]byte(sid), []byte(s.opts.LegacySID)) == 1 &&
		subtle.ConstantTimeCompare([]byte(apiKey), []byte(s.opts.LegacyAPIKey)) == 1 {
		return "", nil
	}
	if s.creds == nil {
		return "", errBadCreds
	}

	tenant, err := s.creds.TenantByCredential(ctx, string(vendorID), sid, apiKey)
	if store.IsNotFound(err) {
		return "", errBadCreds
	}
	if err != nil {
		return "", eris.Wrap(err, "server: look up credential")
	}
	return tenant, nil
}

func redact(s string) string {
	if len(s) <= 5 {
		return "..."
	}
	return s[:5] + "..."
}
