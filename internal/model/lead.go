package model

import (
	"strings"
	"time"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Product classifies a vendor record as a main data record or a premium
// listing for the same physical lead.
type Product string

const (
	ProductData Product = "data" // Main record
	ProductAd   Product = "ad"   // Premium listing
)

// DefaultStatus is assigned to newly created leads that arrive without one.
const DefaultStatus = "New"

// RawRecord is one vendor-native row or webhook payload, keyed by the
// vendor's own field names in arrival order.
type RawRecord = orderedmap.OrderedMap[string, any]

// VendorData holds raw fields that no field map claimed, in arrival order.
type VendorData = orderedmap.OrderedMap[string, any]

// NewRawRecord returns an empty RawRecord.
func NewRawRecord() *RawRecord {
	return orderedmap.New[string, any]()
}

// NewVendorData returns an empty VendorData bag.
func NewVendorData() *VendorData {
	return orderedmap.New[string, any]()
}

// RawRecordFromPairs builds a RawRecord from alternating key/value strings.
func RawRecordFromPairs(kv ...string) *RawRecord {
	r := NewRawRecord()
	for i := 0; i+1 < len(kv); i += 2 {
		r.Set(kv[i], kv[i+1])
	}
	return r
}

// CanonicalLead is the vendor-neutral representation of one lead.
type CanonicalLead struct {
	LeadID     string `json:"leadId,omitempty"`
	NextgenID  string `json:"nextgenId,omitempty"`
	PurchaseID string `json:"purchaseId,omitempty"`

	FirstName string `json:"firstName,omitempty"`
	LastName  string `json:"lastName,omitempty"`
	Name      string `json:"name"`
	Phone     string `json:"phone,omitempty"`
	Email     string `json:"email,omitempty"`

	Street1 string `json:"street1,omitempty"`
	Street2 string `json:"street2,omitempty"`
	City    string `json:"city,omitempty"`
	State   string `json:"state,omitempty"`
	Zipcode string `json:"zipcode,omitempty"`

	DOB             string `json:"dob,omitempty"`
	Gender          string `json:"gender,omitempty"`
	Height          string `json:"height,omitempty"`
	Weight          string `json:"weight,omitempty"`
	HouseholdSize   string `json:"householdSize,omitempty"`
	HouseholdIncome string `json:"householdIncome,omitempty"`

	Military            bool     `json:"military"`
	Pregnant            bool     `json:"pregnant"`
	TobaccoUser         bool     `json:"tobaccoUser"`
	HasPrescription     bool     `json:"hasPrescription"`
	HasMedicarePartsAB  bool     `json:"hasMedicarePartsAB"`
	HasMedicalCondition bool     `json:"hasMedicalCondition"`
	MedicalConditions   []string `json:"medicalConditions,omitempty"`
	InsuranceTimeframe  string   `json:"insuranceTimeframe,omitempty"`

	CampaignName string  `json:"campaignName,omitempty"`
	Product      Product `json:"product,omitempty"`
	VendorName   string  `json:"vendorName,omitempty"`
	AccountName  string  `json:"accountName,omitempty"`
	BidType      string  `json:"bidType,omitempty"`
	Price        float64 `json:"price"`

	UTMSource   string `json:"utmSource,omitempty"`
	UTMMedium   string `json:"utmMedium,omitempty"`
	UTMCampaign string `json:"utmCampaign,omitempty"`

	CallLogID    string `json:"callLogId,omitempty"`
	CallDuration int    `json:"callDuration,omitempty"`
	SourceHash   string `json:"sourceHash,omitempty"`
	SubIDHash    string `json:"subIdHash,omitempty"`

	Status          string `json:"status,omitempty"`
	Disposition     string `json:"disposition,omitempty"`
	VendorCreatedAt string `json:"createdAt,omitempty"`

	Notes      string      `json:"notes,omitempty"`
	Source     string      `json:"source,omitempty"`
	ImportedAt time.Time   `json:"importedAt"`
	VendorData *VendorData `json:"vendorData,omitempty"`
}

// Clone returns a deep copy of the lead.
func (l *CanonicalLead) Clone() *CanonicalLead {
	if l == nil {
		return nil
	}
	c := *l
	if l.MedicalConditions != nil {
		c.MedicalConditions = append([]string(nil), l.MedicalConditions...)
	}
	if l.VendorData != nil {
		c.VendorData = NewVendorData()
		for pair := l.VendorData.Oldest(); pair != nil; pair = pair.Next() {
			c.VendorData.Set(pair.Key, pair.Value)
		}
	}
	return &c
}

// AppendNote appends a block to the lead's notes, separated from any earlier
// notes by a blank line.
func (l *CanonicalLead) AppendNote(note string) {
	if note == "" {
		return
	}
	if l.Notes == "" {
		l.Notes = note
		return
	}
	l.Notes = l.Notes + "\n\n" + note
}

// ComputeName joins first and last name with a single space.
func ComputeName(first, last string) string {
	return strings.TrimSpace(strings.TrimSpace(first) + " " + strings.TrimSpace(last))
}

// Lead is a tenant-scoped lead as persisted by the store.
type Lead struct {
	ID          string        `json:"id"`
	TenantID    string        `json:"tenantId"`
	IdentityKey string        `json:"identityKey,omitempty"`
	Data        CanonicalLead `json:"data"`
	CreatedAt   time.Time     `json:"createdAt"`
	UpdatedAt   time.Time     `json:"updatedAt"`
}
