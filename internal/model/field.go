package model

import "sort"

// FieldKind tells the mapper which normalizer applies to a canonical field.
type FieldKind string

const (
	KindText     FieldKind = "text"
	KindUpper    FieldKind = "upper"
	KindLower    FieldKind = "lower"
	KindPhone    FieldKind = "phone"
	KindDOB      FieldKind = "dob"
	KindHeight   FieldKind = "height"
	KindGender   FieldKind = "gender"
	KindZip      FieldKind = "zip"
	KindBool     FieldKind = "bool"
	KindList     FieldKind = "list"
	KindPrice    FieldKind = "price"
	KindInt      FieldKind = "int"
	KindProduct  FieldKind = "product"
	KindIdentity FieldKind = "identity"
)

// CanonicalField describes one attribute of CanonicalLead that a vendor
// field map may target.
type CanonicalField struct {
	Name string
	Kind FieldKind
}

// CanonicalFields lists every mappable attribute of CanonicalLead by its JSON
// name. Name, Source, Notes, ImportedAt and VendorData are derived and cannot
// be mapped directly.
var CanonicalFields = []CanonicalField{
	{"leadId", KindIdentity},
	{"nextgenId", KindIdentity},
	{"purchaseId", KindText},
	{"firstName", KindText},
	{"lastName", KindText},
	{"phone", KindPhone},
	{"email", KindLower},
	{"street1", KindText},
	{"street2", KindText},
	{"city", KindText},
	{"state", KindUpper},
	{"zipcode", KindZip},
	{"dob", KindDOB},
	{"gender", KindGender},
	{"height", KindHeight},
	{"weight", KindText},
	{"householdSize", KindText},
	{"householdIncome", KindText},
	{"military", KindBool},
	{"pregnant", KindBool},
	{"tobaccoUser", KindBool},
	{"hasPrescription", KindBool},
	{"hasMedicarePartsAB", KindBool},
	{"hasMedicalCondition", KindBool},
	{"medicalConditions", KindList},
	{"insuranceTimeframe", KindText},
	{"campaignName", KindText},
	{"product", KindProduct},
	{"vendorName", KindText},
	{"accountName", KindText},
	{"bidType", KindText},
	{"price", KindPrice},
	{"utmSource", KindText},
	{"utmMedium", KindText},
	{"utmCampaign", KindText},
	{"callLogId", KindText},
	{"callDuration", KindInt},
	{"sourceHash", KindText},
	{"subIdHash", KindText},
	{"status", KindText},
	{"disposition", KindText},
	{"createdAt", KindText},
}

var canonicalByName = func() map[string]CanonicalField {
	m := make(map[string]CanonicalField, len(CanonicalFields))
	for _, f := range CanonicalFields {
		m[f.Name] = f
	}
	return m
}()

// LookupCanonicalField returns the canonical field with the given name.
func LookupCanonicalField(name string) (CanonicalField, bool) {
	f, ok := canonicalByName[name]
	return f, ok
}

// CanonicalFieldNames returns the sorted names of all mappable fields.
func CanonicalFieldNames() []string {
	names := make([]string, 0, len(CanonicalFields))
	for _, f := range CanonicalFields {
		names = append(names, f.Name)
	}
	sort.Strings(names)
	return names
}
