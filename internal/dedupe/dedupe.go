// Package dedupe reconciles leads that share an identity: it classifies
// main and premium records, merges their prices with provenance notes, and
// folds whole batches down to one lead per identity.
package dedupe

import (
	"fmt"
	"strings"

	"github.com/sells-group/lead-ingest/internal/model"
	"github.com/sells-group/lead-ingest/internal/normalize"
)

// Action is what the store should do with a merged lead.
type Action string

const (
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
)

// Case names which merge rule produced an outcome.
type Case string

const (
	CaseNew                 Case = "new"
	CasePremiumMerged       Case = "premium_merged"
	CaseMainReplacedPremium Case = "main_replaced_premium"
	CaseDuplicate           Case = "duplicate"
)

// PriceBreakdown records how a merged price was computed.
type PriceBreakdown struct {
	Base    float64 `json:"base"`
	Premium float64 `json:"premium"`
	Total   float64 `json:"total"`
}

// Outcome is the result of reconciling an incoming lead with zero or one
// existing lead.
type Outcome struct {
	Action         Action               `json:"action"`
	Case           Case                 `json:"case"`
	Lead           *model.CanonicalLead `json:"-"`
	PriceBreakdown *PriceBreakdown      `json:"priceBreakdown,omitempty"`
	Note           string               `json:"note,omitempty"`
	LogMessage     string               `json:"logMessage"`
}

// Key returns the dedup key of a lead using the priority leadId, nextgenId,
// phone, email. It returns "" when none is present.
func Key(l *model.CanonicalLead) string {
	if l == nil {
		return ""
	}
	switch {
	case strings.TrimSpace(l.LeadID) != "":
		return "leadId:" + strings.TrimSpace(l.LeadID)
	case strings.TrimSpace(l.NextgenID) != "":
		return "nextgenId:" + strings.TrimSpace(l.NextgenID)
	case strings.TrimSpace(l.Phone) != "":
		return "phone:" + strings.TrimSpace(l.Phone)
	case strings.TrimSpace(l.Email) != "":
		return "email:" + strings.ToLower(strings.TrimSpace(l.Email))
	default:
		return ""
	}
}

// IsPremium reports whether l is a premium listing.
func IsPremium(l *model.CanonicalLead) bool {
	return l != nil && l.Product == model.ProductAd
}

// IsMain reports whether l is treated as a main record. Unclassified
// records count as main.
func IsMain(l *model.CanonicalLead) bool {
	return l != nil && !IsPremium(l)
}

// PremiumNote formats the provenance block appended on a premium merge.
func PremiumNote(b PriceBreakdown) string {
	return "💎 Premium Listing Applied:\n" +
		"Base Price: $" + normalize.FormatPrice(b.Base) + "\n" +
		"Premium Listing: $" + normalize.FormatPrice(b.Premium) + "\n" +
		"Total Price: $" + normalize.FormatPrice(b.Total)
}

// DuplicateNote formats the warning appended when a main record arrives
// again.
func DuplicateNote(product model.Product, previous, current float64) string {
	return fmt.Sprintf("⚠️ Duplicate %s record processed. Previous price: $%s, New price: $%s",
		productLabel(product), normalize.FormatPrice(previous), normalize.FormatPrice(current))
}

func productLabel(p model.Product) string {
	if p == "" {
		return "unknown"
	}
	return string(p)
}

// Merge reconciles incoming with existing, which may be nil. Neither input
// is modified.
//
//  1. No existing lead: create incoming as-is.
//  2. Incoming premium onto an existing main: keep existing fields, sum
//     prices, append the note.
//  3. Incoming main onto an existing premium: incoming fields win, product
//     becomes data, prices sum, the note is appended.
//  4. Same kind on both sides: incoming wins and a duplicate warning is
//     appended. A redelivered premium listing lands here, so its price is
//     replaced rather than added again.
func Merge(incoming, existing *model.CanonicalLead) Outcome {
	in := incoming.Clone()

	if existing == nil {
		return Outcome{
			Action: ActionCreate,
			Case:   CaseNew,
			Lead:   in,
			LogMessage: fmt.Sprintf("New %s lead created with price $%s",
				productLabel(in.Product), normalize.FormatPrice(in.Price)),
		}
	}

	switch {
	case IsPremium(in) && IsMain(existing):
		b := PriceBreakdown{Base: existing.Price, Premium: in.Price}
		b.Total = normalize.RoundCents(b.Base + b.Premium)
		note := PremiumNote(b)

		out := existing.Clone()
		out.Price = b.Total
		out.AppendNote(note)
		return Outcome{
			Action:         ActionUpdate,
			Case:           CasePremiumMerged,
			Lead:           out,
			PriceBreakdown: &b,
			Note:           note,
			LogMessage: fmt.Sprintf("Premium listing merged: +$%s = $%s total",
				normalize.FormatPrice(b.Premium), normalize.FormatPrice(b.Total)),
		}

	case IsMain(in) && IsPremium(existing):
		b := PriceBreakdown{Base: in.Price, Premium: existing.Price}
		b.Total = normalize.RoundCents(b.Base + b.Premium)
		note := PremiumNote(b)

		out := in
		out.Product = model.ProductData
		out.Price = b.Total
		out.Notes = existing.Notes
		out.AppendNote(in.Notes)
		out.AppendNote(note)
		return Outcome{
			Action:         ActionUpdate,
			Case:           CaseMainReplacedPremium,
			Lead:           out,
			PriceBreakdown: &b,
			Note:           note,
			LogMessage: fmt.Sprintf("Main data record replaced premium: base $%s + premium $%s = $%s",
				normalize.FormatPrice(b.Base), normalize.FormatPrice(b.Premium), normalize.FormatPrice(b.Total)),
		}

	default:
		note := DuplicateNote(in.Product, existing.Price, in.Price)

		out := in
		out.Notes = existing.Notes
		out.AppendNote(in.Notes)
		out.AppendNote(note)
		return Outcome{
			Action:     ActionUpdate,
			Case:       CaseDuplicate,
			Lead:       out,
			Note:       note,
			LogMessage: fmt.Sprintf("Duplicate %s record: updating with latest data", productLabel(in.Product)),
		}
	}
}
