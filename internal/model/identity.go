package model

import (
	"strings"
	"time"
)

// Identity is the store-level identity of a lead within a tenant: phone when
// present, otherwise email.
type Identity struct {
	Phone string
	Email string
}

// IdentityOf derives the store identity of a lead.
func IdentityOf(l *CanonicalLead) Identity {
	if l == nil {
		return Identity{}
	}
	if p := strings.TrimSpace(l.Phone); p != "" {
		return Identity{Phone: p}
	}
	return Identity{Email: strings.ToLower(strings.TrimSpace(l.Email))}
}

// IsZero reports whether the identity has neither phone nor email. Such
// leads are always created and never merged.
func (i Identity) IsZero() bool {
	return i.Phone == "" && i.Email == ""
}

// Key returns the identity as a single string, or "" when it is zero.
func (i Identity) Key() string {
	switch {
	case i.Phone != "":
		return "phone:" + i.Phone
	case i.Email != "":
		return "email:" + strings.ToLower(i.Email)
	default:
		return ""
	}
}

// String implements fmt.Stringer.
func (i Identity) String() string {
	if k := i.Key(); k != "" {
		return k
	}
	return "<none>"
}

// Tenant is an account namespace that scopes lead identity.
type Tenant struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
}

// WebhookCredential authenticates a vendor's webhook deliveries for a tenant.
// APIKey is only populated when the credential is created; the store keeps a
// digest.
type WebhookCredential struct {
	ID        string    `json:"id"`
	TenantID  string    `json:"tenantId"`
	Vendor    string    `json:"vendor"`
	SID       string    `json:"sid"`
	APIKey    string    `json:"apiKey,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}
