package ingest

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/lead-ingest/internal/dedupe"
	"github.com/sells-group/lead-ingest/internal/mapper"
	"github.com/sells-group/lead-ingest/internal/model"
	"github.com/sells-group/lead-ingest/internal/tabular"
	"github.com/sells-group/lead-ingest/internal/vendor"
)

// ErrVendorUndetected rejects a whole upload whose headers match no vendor
// fingerprint.
var ErrVendorUndetected = eris.New("ingest: could not detect lead vendor from file headers")

const (
	maxUnknownColumnsListed = 5
	maxHeadersInRejection   = 10
)

// Prepared is an upload after detection, canonicalization and folding,
// before anything is persisted.
type Prepared struct {
	Vendor     vendor.ID              `json:"vendor"`
	VendorName string                 `json:"vendorName"`
	Encoding   string                 `json:"encoding"`
	Rows       int                    `json:"rows"`
	Skipped    int                    `json:"skipped"`
	Warnings   []string               `json:"warnings"`
	Fold       dedupe.FoldStats       `json:"fold"`
	FoldLog    []string               `json:"foldLog"`
	Leads      []*model.CanonicalLead `json:"leads"`
}

// BatchReport summarizes an import.
type BatchReport struct {
	Vendor     vendor.ID        `json:"vendor"`
	VendorName string           `json:"vendorName"`
	Rows       int              `json:"rows"`
	Imported   int              `json:"imported"`
	Updated    int              `json:"updated"`
	Skipped    int              `json:"skipped"`
	Failed     int              `json:"failed"`
	Warnings   []string         `json:"warnings"`
	Errors     []string         `json:"errors"`
	Fold       dedupe.FoldStats `json:"fold"`
}

// Prepare detects the vendor of tbl, canonicalizes each row and folds the
// batch so each dedup key appears once. Rows without phone or email, and
// rows the parser could not tokenize, are skipped with a warning. It fails with ErrVendorUndetected before looking
// at any row when the headers match no profile.
func (c *Coordinator) Prepare(tbl *tabular.Table) (*Prepared, error) {
	id := c.vendors.Detect(tbl.Headers)
	if id == vendor.Unknown {
		headers := tbl.Headers
		more := ""
		if len(headers) > maxHeadersInRejection {
			headers, more = headers[:maxHeadersInRejection], "..."
		}
		return nil, eris.Wrapf(ErrVendorUndetected, "expected %s. Found headers: %s%s",
			c.vendors.DescribeExpected(), strings.Join(headers, ", "), more)
	}
	profile, _ := c.vendors.Profile(id)

	p := &Prepared{
		Vendor:     id,
		VendorName: profile.Name(),
		Encoding:   tbl.Encoding,
		Rows:       len(tbl.Rows) + len(tbl.RowErrors),
	}

	if unknown := c.vendors.UnknownColumns(id, tbl.Headers); len(unknown) > 0 {
		listed, more := unknown, ""
		if len(listed) > maxUnknownColumnsListed {
			listed, more = listed[:maxUnknownColumnsListed], "..."
		}
		p.Warnings = append(p.Warnings, fmt.Sprintf(
			"Found %d unmapped columns: %s%s. These will be stored in vendorData.",
			len(unknown), strings.Join(listed, ", "), more))
	}
	if tbl.Truncated > 0 {
		p.Warnings = append(p.Warnings, fmt.Sprintf(
			"Only the first %d rows were processed; %d more rows were ignored.", p.Rows, tbl.Truncated))
	}

	leads := make([]*model.CanonicalLead, 0, len(tbl.Rows))
	rowErrs := tbl.RowErrors
	skipMalformed := func(before int) {
		for len(rowErrs) > 0 && (before < 0 || rowErrs[0].Line < before) {
			p.Skipped++
			p.Warnings = append(p.Warnings, fmt.Sprintf("Row %d: %v", rowErrs[0].Line, rowErrs[0].Err))
			rowErrs = rowErrs[1:]
		}
	}
	for _, row := range tbl.Rows {
		skipMalformed(row.Line)
		res, err := c.mapper.Canonicalize(row.Record, profile)
		switch {
		case errors.Is(err, mapper.ErrMissingContact):
			p.Skipped++
			p.Warnings = append(p.Warnings, fmt.Sprintf("Row %d: Skipping - no phone or email", row.Line))
			continue
		case err != nil:
			p.Skipped++
			p.Warnings = append(p.Warnings, fmt.Sprintf("Row %d: %v", row.Line, err))
			continue
		}
		for _, w := range res.Warnings {
			p.Warnings = append(p.Warnings, fmt.Sprintf("Row %d: %s", row.Line, w))
		}
		leads = append(leads, res.Lead)
	}
	skipMalformed(-1)

	fold := dedupe.FoldBatch(leads)
	p.Leads = fold.Leads
	p.Fold = fold.Stats
	p.FoldLog = fold.Log
	return p, nil
}

// ImportBatch parses an upload and persists its folded leads for the
// tenant. Leads sharing a store identity are written one after another;
// different identities are written concurrently. A failing lead is counted
// and reported without stopping the rest of the batch.
func (c *Coordinator) ImportBatch(ctx context.Context, tenantID string, format tabular.Format, data []byte) (*BatchReport, error) {
	tenant, err := c.tenants.Resolve(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	tbl, err := tabular.Parse(ctx, format, data, tabular.DefaultOptions(c.cfg.MaxRows))
	if err != nil {
		return nil, eris.Wrap(err, "ingest: parse upload")
	}
	prep, err := c.Prepare(tbl)
	if err != nil {
		return nil, err
	}

	log := zap.L().With(zap.String("tenant", tenant), zap.String("vendor", prep.VendorName))
	log.Info("ingest: importing batch",
		zap.Int("rows", prep.Rows),
		zap.Int("leads", len(prep.Leads)),
		zap.Int("skipped", prep.Skipped),
	)

	report := &BatchReport{
		Vendor:     prep.Vendor,
		VendorName: prep.VendorName,
		Rows:       prep.Rows,
		Skipped:    prep.Skipped,
		Warnings:   prep.Warnings,
		Fold:       prep.Fold,
	}

	var mu sync.Mutex
	var g errgroup.Group
	g.SetLimit(c.cfg.Concurrency)
	for _, group := range groupByIdentity(prep.Leads) {
		g.Go(func() error {
			for _, l := range group {
				res, err := c.ingest(ctx, tenant, l)
				mu.Lock()
				switch {
				case err != nil:
					report.Failed++
					report.Errors = append(report.Errors, fmt.Sprintf("%s: %v", describeLead(l), err))
				case res.IsNew:
					report.Imported++
				default:
					report.Updated++
				}
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()
	sort.Strings(report.Errors)

	log.Info("ingest: batch complete",
		zap.Int("imported", report.Imported),
		zap.Int("updated", report.Updated),
		zap.Int("skipped", report.Skipped),
		zap.Int("failed", report.Failed),
	)
	if err := ctx.Err(); err != nil {
		return report, eris.Wrap(err, "ingest: import interrupted")
	}
	return report, nil
}

// groupByIdentity partitions leads by store identity, keeping first-arrival
// order. Leads without an identity each get their own group.
func groupByIdentity(leads []*model.CanonicalLead) [][]*model.CanonicalLead {
	var groups [][]*model.CanonicalLead
	idx := make(map[string]int)
	for _, l := range leads {
		key := model.IdentityOf(l).Key()
		if key == "" {
			groups = append(groups, []*model.CanonicalLead{l})
			continue
		}
		if i, ok := idx[key]; ok {
			groups[i] = append(groups[i], l)
			continue
		}
		idx[key] = len(groups)
		groups = append(groups, []*model.CanonicalLead{l})
	}
	return groups
}

func describeLead(l *model.CanonicalLead) string {
	if k := dedupe.Key(l); k != "" {
		return "Lead " + k
	}
	return "Lead " + l.Name
}
