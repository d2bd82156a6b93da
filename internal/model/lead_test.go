package model

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProductValues(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "data", string(ProductData))
	assert.Equal(t, "ad", string(ProductAd))
}

func TestComputeName(t *testing.T) {
	t.Parallel()

	tests := []struct {
		first, last, want string
	}{
		{"Jane", "Doe", "Jane Doe"},
		{" Jane ", "", "Jane"},
		{"", "Doe", "Doe"},
		{"", "", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ComputeName(tt.first, tt.last))
	}
}

func TestCanonicalLead_CloneIsDeep(t *testing.T) {
	t.Parallel()

	orig := &CanonicalLead{
		LeadID:            "D-4KXN-4SC5",
		MedicalConditions: []string{"asthma"},
		VendorData:        NewVendorData(),
	}
	orig.VendorData.Set("vertical_id", "3")

	c := orig.Clone()
	c.MedicalConditions[0] = "changed"
	c.VendorData.Set("vertical_id", "9")
	c.VendorData.Set("extra", "x")

	assert.Equal(t, "asthma", orig.MedicalConditions[0])
	v, _ := orig.VendorData.Get("vertical_id")
	assert.Equal(t, "3", v)
	assert.Equal(t, 1, orig.VendorData.Len())
	assert.Equal(t, orig.LeadID, c.LeadID)
}

func TestCanonicalLead_CloneNil(t *testing.T) {
	t.Parallel()

	var l *CanonicalLead
	assert.Nil(t, l.Clone())
}

func TestCanonicalLead_AppendNote(t *testing.T) {
	t.Parallel()

	var l CanonicalLead
	l.AppendNote("")
	assert.Empty(t, l.Notes)

	l.AppendNote("first")
	l.AppendNote("second")
	assert.Equal(t, "first\n\nsecond", l.Notes)
}

func TestCanonicalLead_JSONKeepsVendorDataOrder(t *testing.T) {
	t.Parallel()

	l := CanonicalLead{
		Phone:      "(210) 461-1180",
		Name:       "Jane Doe",
		ImportedAt: time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC),
		VendorData: NewVendorData(),
	}
	l.VendorData.Set("zeta", "1")
	l.VendorData.Set("alpha", "2")

	raw, err := json.Marshal(l)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"vendorData":{"zeta":"1","alpha":"2"}`)

	var back CanonicalLead
	require.NoError(t, json.Unmarshal(raw, &back))
	require.NotNil(t, back.VendorData)
	pair := back.VendorData.Oldest()
	require.NotNil(t, pair)
	assert.Equal(t, "zeta", pair.Key)
	assert.Equal(t, "alpha", pair.Next().Key)
	assert.Equal(t, l.ImportedAt, back.ImportedAt)
}

func TestRawRecordFromPairs(t *testing.T) {
	t.Parallel()

	r := RawRecordFromPairs("a", "1", "b", "2", "dangling")
	assert.Equal(t, 2, r.Len())
	v, ok := r.Get("b")
	assert.True(t, ok)
	assert.Equal(t, "2", v)
}

func TestIdentityOf(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		lead *CanonicalLead
		key  string
	}{
		{"phone wins", &CanonicalLead{Phone: "(210) 461-1180", Email: "a@b.com"}, "phone:(210) 461-1180"},
		{"email lower-cased", &CanonicalLead{Email: " Jane@Example.COM "}, "email:jane@example.com"},
		{"none", &CanonicalLead{LeadID: "x"}, ""},
		{"nil", nil, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			id := IdentityOf(tt.lead)
			assert.Equal(t, tt.key, id.Key())
			assert.Equal(t, tt.key == "", id.IsZero())
		})
	}
}

func TestIdentityString(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "<none>", Identity{}.String())
	assert.Equal(t, "email:x@y.z", Identity{Email: "X@y.z"}.String())
}

func TestCanonicalFields(t *testing.T) {
	t.Parallel()

	f, ok := LookupCanonicalField("hasMedicarePartsAB")
	require.True(t, ok)
	assert.Equal(t, KindBool, f.Kind)

	_, ok = LookupCanonicalField("name")
	assert.False(t, ok, "derived fields are not mappable")

	names := CanonicalFieldNames()
	assert.Len(t, names, len(CanonicalFields))
	assert.IsNonDecreasing(t, names)
}
