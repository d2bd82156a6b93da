package mapper

import "github.com/sells-group/lead-ingest/internal/model"

type (
	textField func(*model.CanonicalLead) *string
	boolField func(*model.CanonicalLead) *bool
)

var textFields = map[string]textField{
	"leadId":             func(l *model.CanonicalLead) *string { return &l.LeadID },
	"nextgenId":          func(l *model.CanonicalLead) *string { return &l.NextgenID },
	"purchaseId":         func(l *model.CanonicalLead) *string { return &l.PurchaseID },
	"firstName":          func(l *model.CanonicalLead) *string { return &l.FirstName },
	"lastName":           func(l *model.CanonicalLead) *string { return &l.LastName },
	"phone":              func(l *model.CanonicalLead) *string { return &l.Phone },
	"email":              func(l *model.CanonicalLead) *string { return &l.Email },
	"street1":            func(l *model.CanonicalLead) *string { return &l.Street1 },
	"street2":            func(l *model.CanonicalLead) *string { return &l.Street2 },
	"city":               func(l *model.CanonicalLead) *string { return &l.City },
	"state":              func(l *model.CanonicalLead) *string { return &l.State },
	"zipcode":            func(l *model.CanonicalLead) *string { return &l.Zipcode },
	"dob":                func(l *model.CanonicalLead) *string { return &l.DOB },
	"gender":             func(l *model.CanonicalLead) *string { return &l.Gender },
	"height":             func(l *model.CanonicalLead) *string { return &l.Height },
	"weight":             func(l *model.CanonicalLead) *string { return &l.Weight },
	"householdSize":      func(l *model.CanonicalLead) *string { return &l.HouseholdSize },
	"householdIncome":    func(l *model.CanonicalLead) *string { return &l.HouseholdIncome },
	"insuranceTimeframe": func(l *model.CanonicalLead) *string { return &l.InsuranceTimeframe },
	"campaignName":       func(l *model.CanonicalLead) *string { return &l.CampaignName },
	"vendorName":         func(l *model.CanonicalLead) *string { return &l.VendorName },
	"accountName":        func(l *model.CanonicalLead) *string { return &l.AccountName },
	"bidType":            func(l *model.CanonicalLead) *string { return &l.BidType },
	"utmSource":          func(l *model.CanonicalLead) *string { return &l.UTMSource },
	"utmMedium":          func(l *model.CanonicalLead) *string { return &l.UTMMedium },
	"utmCampaign":        func(l *model.CanonicalLead) *string { return &l.UTMCampaign },
	"callLogId":          func(l *model.CanonicalLead) *string { return &l.CallLogID },
	"sourceHash":         func(l *model.CanonicalLead) *string { return &l.SourceHash },
	"subIdHash":          func(l *model.CanonicalLead) *string { return &l.SubIDHash },
	"status":             func(l *model.CanonicalLead) *string { return &l.Status },
	"disposition":        func(l *model.CanonicalLead) *string { return &l.Disposition },
	"createdAt":          func(l *model.CanonicalLead) *string { return &l.VendorCreatedAt },
}

var boolFields = map[string]boolField{
	"military":            func(l *model.CanonicalLead) *bool { return &l.Military },
	"pregnant":            func(l *model.CanonicalLead) *bool { return &l.Pregnant },
	"tobaccoUser":         func(l *model.CanonicalLead) *bool { return &l.TobaccoUser },
	"hasPrescription":     func(l *model.CanonicalLead) *bool { return &l.HasPrescription },
	"hasMedicarePartsAB":  func(l *model.CanonicalLead) *bool { return &l.HasMedicarePartsAB },
	"hasMedicalCondition": func(l *model.CanonicalLead) *bool { return &l.HasMedicalCondition },
}
