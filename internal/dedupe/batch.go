package dedupe

import "github.com/sells-group/lead-ingest/internal/model"

// FoldStats summarizes a batch fold.
type FoldStats struct {
	Input            int `json:"input"`
	Output           int `json:"output"`
	PremiumMerges    int `json:"premiumMerges"`
	MainReplacements int `json:"mainReplacements"`
	Duplicates       int `json:"duplicates"`
	Keyless          int `json:"keyless"`
}

// Fold is the result of folding a batch.
type Fold struct {
	Leads []*model.CanonicalLead
	Stats FoldStats
	Log   []string
}

// FoldBatch merges same-key leads in arrival order so that each dedup key
// appears once. Output order is the first arrival of each key; leads without
// a key pass through unchanged in their input position. The input slice and
// its leads are not modified.
func FoldBatch(leads []*model.CanonicalLead) *Fold {
	f := &Fold{Stats: FoldStats{Input: len(leads)}}
	slot := make(map[string]int, len(leads))

	for _, l := range leads {
		if l == nil {
			continue
		}
		key := Key(l)
		if key == "" {
			f.Stats.Keyless++
			f.Leads = append(f.Leads, l.Clone())
			continue
		}

		idx, seen := slot[key]
		var existing *model.CanonicalLead
		if seen {
			existing = f.Leads[idx]
		}
		out := Merge(l, existing)
		f.Log = append(f.Log, out.LogMessage)

		if !seen {
			slot[key] = len(f.Leads)
			f.Leads = append(f.Leads, out.Lead)
			continue
		}
		f.Leads[idx] = out.Lead
		switch out.Case {
		case CasePremiumMerged:
			f.Stats.PremiumMerges++
		case CaseMainReplacedPremium:
			f.Stats.MainReplacements++
		case CaseDuplicate:
			f.Stats.Duplicates++
		}
	}

	f.Stats.Output = len(f.Leads)
	return f
}
