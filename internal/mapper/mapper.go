// Package mapper translates vendor-native records into canonical leads.
package mapper

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/lead-ingest/internal/model"
	"github.com/sells-group/lead-ingest/internal/normalize"
	"github.com/sells-group/lead-ingest/internal/vendor"
)

// ErrMissingContact rejects a record that has neither phone nor email.
var ErrMissingContact = eris.New("mapper: lead must have either phone or email")

// Result is a canonicalized lead plus the fallbacks applied while building it.
type Result struct {
	Lead     *model.CanonicalLead
	Warnings []string
}

func (r *Result) warnf(format string, args ...any) {
	r.Warnings = append(r.Warnings, fmt.Sprintf(format, args...))
}

// Mapper canonicalizes raw records against a vendor profile.
type Mapper struct {
	now func() time.Time
}

// Option configures a Mapper.
type Option func(*Mapper)

// WithClock overrides the clock used for ImportedAt.
func WithClock(now func() time.Time) Option {
	return func(m *Mapper) { m.now = now }
}

// New creates a Mapper.
func New(opts ...Option) *Mapper {
	m := &Mapper{now: time.Now}
	for _, o := range opts {
		o(m)
	}
	return m
}

// Canonicalize builds a CanonicalLead from raw using the profile's field map.
// Keys the profile does not map, and later duplicates of an already-filled
// canonical field, are kept in VendorData in arrival order. Empty values are
// treated as absent. Records without phone and email fail with
// ErrMissingContact.
func (m *Mapper) Canonicalize(raw *model.RawRecord, p *vendor.Profile) (*Result, error) {
	if p == nil {
		return nil, eris.New("mapper: nil vendor profile")
	}
	res := &Result{Lead: &model.CanonicalLead{
		Source:     p.Source,
		ImportedAt: m.now().UTC(),
		VendorData: model.NewVendorData(),
	}}
	if raw == nil {
		return nil, ErrMissingContact
	}

	filled := make(map[string]bool)
	for pair := raw.Oldest(); pair != nil; pair = pair.Next() {
		key := strings.TrimSpace(pair.Key)
		val := Stringify(pair.Value)
		if val == "" {
			continue
		}
		name, mapped := p.Canonical(key)
		if !mapped || filled[name] {
			res.Lead.VendorData.Set(pair.Key, pair.Value)
			continue
		}
		filled[name] = true
		assign(res, p, key, name, val)
	}

	l := res.Lead
	l.Name = model.ComputeName(l.FirstName, l.LastName)
	if l.Name == "" {
		l.Name = defaultName(p)
	}

	if l.Phone == "" && l.Email == "" {
		return nil, ErrMissingContact
	}
	return res, nil
}

func defaultName(p *vendor.Profile) string {
	if p.DefaultName != "" {
		return p.DefaultName
	}
	return p.Name() + " Lead"
}

func assign(res *Result, p *vendor.Profile, key, name, val string) {
	l := res.Lead
	field, _ := model.LookupCanonicalField(name)

	switch field.Kind {
	case model.KindBool:
		b, ok := normalize.ParseBool(val)
		if !ok {
			res.warnf("%s %q is not a yes/no value; read as false", name, val)
		}
		*boolFields[name](l) = b
	case model.KindList:
		l.MedicalConditions = normalize.List(val)
	case model.KindPrice:
		price, ok := normalize.Price(val)
		if !ok {
			res.warnf("price %q is not a valid amount; defaulted to 0", val)
		}
		l.Price = price
	case model.KindInt:
		n, ok := normalize.Int(val)
		if !ok {
			res.warnf("%s %q is not a whole number; kept in vendorData", name, val)
			l.VendorData.Set(key, val)
			return
		}
		l.CallDuration = n
	case model.KindProduct:
		l.Product = model.Product(strings.ToLower(strings.TrimSpace(val)))
	default:
		*textFields[name](l) = normalizeText(res, p, field.Kind, val)
	}
}

func normalizeText(res *Result, p *vendor.Profile, kind model.FieldKind, val string) string {
	switch kind {
	case model.KindIdentity:
		return strings.TrimSpace(val)
	case model.KindUpper:
		return normalize.State(val)
	case model.KindLower:
		return strings.ToLower(strings.TrimSpace(val))
	case model.KindPhone:
		phone, ok := normalize.Phone(val)
		if !ok {
			res.warnf("phone %q has %d digits; stored unformatted", val, len(phone))
		}
		return phone
	case model.KindDOB:
		dob, ok := normalize.DOB(val)
		if !ok {
			res.warnf("dob %q is not parseable; left unchanged", val)
		}
		return dob
	case model.KindHeight:
		if !p.HeightInches {
			return normalize.Text(val)
		}
		height, ok := normalize.Height(val)
		if !ok {
			res.warnf("height %q is not an inch count; kept as given", val)
		}
		return height
	case model.KindGender:
		return normalize.Gender(val)
	case model.KindZip:
		return normalize.Zip(val)
	default:
		return normalize.Text(val)
	}
}

// Stringify renders a raw value as text. JSON numbers lose trailing zeros,
// booleans become "true"/"false" and arrays are joined with commas.
func Stringify(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(x)
	case bool:
		return strconv.FormatBool(x)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(x), 'f', -1, 32)
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case json.Number:
		return x.String()
	case []any:
		parts := make([]string, 0, len(x))
		for _, e := range x {
			if s := Stringify(e); s != "" {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, ",")
	case []string:
		return strings.TrimSpace(strings.Join(x, ","))
	case map[string]any:
		b, err := json.Marshal(x)
		if err != nil {
			return ""
		}
		return string(b)
	default:
		return strings.TrimSpace(fmt.Sprint(x))
	}
}
