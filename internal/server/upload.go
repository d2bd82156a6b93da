package server

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/sells-group/lead-ingest/internal/ingest"
	"github.com/sells-group/lead-ingest/internal/tabular"
)

const multipartMemory = 8 << 20

type uploadStats struct {
	Imported  int `json:"imported"`
	Updated   int `json:"updated"`
	Skipped   int `json:"skipped"`
	Failed    int `json:"failed"`
	Processed int `json:"processed"`
}

type uploadResponse struct {
	Success  bool        `json:"success"`
	Vendor   string      `json:"vendor"`
	Stats    uploadStats `json:"stats"`
	Warnings []string    `json:"warnings"`
	Errors   []string    `json:"errors,omitempty"`
}

// handleUpload imports a multipart "file" field holding a vendor CSV or
// XLSX export. The tenant comes from X-Tenant-ID, else the default tenant.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.opts.MaxUploadBytes)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge,
				fmt.Sprintf("File exceeds the %d MB upload limit", s.opts.MaxUploadBytes>>20))
			return
		}
		writeError(w, http.StatusBadRequest, "No file uploaded")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "No file uploaded")
		return
	}
	defer file.Close() //nolint:errcheck

	format, err := tabular.FormatFromName(header.Filename)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Only .csv and .xlsx files are supported")
		return
	}
	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Upload could not be read")
		return
	}

	tenant := strings.TrimSpace(r.Header.Get("X-Tenant-ID"))
	log := zap.L().With(zap.String("tenant", tenant), zap.String("file", header.Filename))

	report, err := s.coord.ImportBatch(r.Context(), tenant, format, data)
	switch {
	case errors.Is(err, ingest.ErrTenantUnresolved):
		if tenant == "" {
			writeError(w, http.StatusUnauthorized, "Tenant could not be resolved")
		} else {
			writeError(w, http.StatusNotFound, fmt.Sprintf("Tenant %q not found", tenant))
		}
		return
	case errors.Is(err, ingest.ErrVendorUndetected):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	case errors.Is(err, tabular.ErrEmpty), errors.Is(err, tabular.ErrMalformed):
		writeError(w, http.StatusBadRequest, err.Error())
		return
	case err != nil:
		log.Error("server: upload import failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	log.Info("server: upload imported",
		zap.String("vendor", report.VendorName),
		zap.Int("imported", report.Imported),
		zap.Int("updated", report.Updated),
		zap.Int("failed", report.Failed),
	)
	warnings := report.Warnings
	if warnings == nil {
		warnings = []string{}
	}
	writeJSON(w, http.StatusOK, uploadResponse{
		Success: true,
		Vendor:  report.VendorName,
		Stats: uploadStats{
			Imported:  report.Imported,
			Updated:   report.Updated,
			Skipped:   report.Skipped,
			Failed:    report.Failed,
			Processed: report.Rows,
		},
		Warnings: warnings,
		Errors:   report.Errors,
	})
}
