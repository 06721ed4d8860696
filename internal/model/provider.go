package model

import (
	"encoding/json"
	"strings"
	"time"
)

// Country selects which national registry a request targets.
type Country string

const (
	CountryUS Country = "US"
	CountryIN Country = "IN"
)

// Source identifies which upstream registry produced a record.
type Source string

const (
	SourceUSNPI      Source = "US_NPI"
	SourceINRegistry Source = "IN_REGISTRY"
)

// SourceForCountry returns the registry source tag for a country.
func SourceForCountry(c Country) Source {
	if c == CountryUS {
		return SourceUSNPI
	}
	return SourceINRegistry
}

// NormalizedProvider is the canonical registry record, independent of the
// upstream payload shape. Exactly one of NPINumber / ProviderID is populated
// depending on which registry produced it. Name is never empty for a
// successfully parsed record: it falls back from organization name to
// "first last".
type NormalizedProvider struct {
	NPINumber        string          `json:"npi_number,omitempty"`
	ProviderID       string          `json:"provider_id,omitempty"`
	Name             string          `json:"name"`
	FirstName        string          `json:"first_name,omitempty"`
	LastName         string          `json:"last_name,omitempty"`
	Phone            string          `json:"phone,omitempty"`
	AddressLine1     string          `json:"address_line1,omitempty"`
	AddressLine2     string          `json:"address_line2,omitempty"`
	City             string          `json:"city,omitempty"`
	State            string          `json:"state,omitempty"`
	PostalCode       string          `json:"postal_code,omitempty"`
	Specialty        string          `json:"specialty,omitempty"`
	OrganizationName string          `json:"organization_name,omitempty"`
	TaxonomyCode     string          `json:"taxonomy_code,omitempty"`
	TaxonomyDesc     string          `json:"taxonomy_description,omitempty"`
	EnumerationType  string          `json:"enumeration_type,omitempty"`
	RawPayload       json.RawMessage `json:"raw_api_payload,omitempty"`
	Source           Source          `json:"source"`
}

// Identifier returns whichever national identifier is populated.
func (p NormalizedProvider) Identifier() string {
	if p.NPINumber != "" {
		return p.NPINumber
	}
	return p.ProviderID
}

// FieldValue returns the scorable field value by its canonical name.
// Unknown field names return "".
func (p NormalizedProvider) FieldValue(field string) string {
	switch field {
	case "name":
		return p.Name
	case "phone":
		return p.Phone
	case "address_line1":
		return p.AddressLine1
	case "city":
		return p.City
	case "state":
		return p.State
	case "postal_code":
		return p.PostalCode
	case "specialty":
		return p.Specialty
	default:
		return ""
	}
}

// UserProviderData is the caller-supplied candidate record: the same field
// vocabulary as NormalizedProvider, every field optional.
type UserProviderData struct {
	NPINumber    string `json:"npi_number,omitempty"`
	ProviderID   string `json:"provider_id,omitempty"`
	Name         string `json:"name,omitempty"`
	FirstName    string `json:"first_name,omitempty"`
	LastName     string `json:"last_name,omitempty"`
	Phone        string `json:"phone,omitempty"`
	AddressLine1 string `json:"address_line1,omitempty"`
	City         string `json:"city,omitempty"`
	State        string `json:"state,omitempty"`
	PostalCode   string `json:"postal_code,omitempty"`
	Specialty    string `json:"specialty,omitempty"`
}

// FieldValue returns the scorable field value by its canonical name.
func (u UserProviderData) FieldValue(field string) string {
	switch field {
	case "name":
		return u.Name
	case "phone":
		return u.Phone
	case "address_line1":
		return u.AddressLine1
	case "city":
		return u.City
	case "state":
		return u.State
	case "postal_code":
		return u.PostalCode
	case "specialty":
		return u.Specialty
	default:
		return ""
	}
}

// Identifier returns whichever national identifier is populated.
func (u UserProviderData) Identifier() string {
	if u.NPINumber != "" {
		return u.NPINumber
	}
	return u.ProviderID
}

// SearchParams are the filters accepted by a registry search.
type SearchParams struct {
	Country    Country `json:"country"`
	NPI        string  `json:"npi,omitempty"`
	ProviderID string  `json:"provider_id,omitempty"`
	FirstName  string  `json:"first_name,omitempty"`
	LastName   string  `json:"last_name,omitempty"`
	Name       string  `json:"name,omitempty"`
	City       string  `json:"city,omitempty"`
	State      string  `json:"state,omitempty"`
	PostalCode string  `json:"postal_code,omitempty"`
	Limit      int     `json:"limit,omitempty"`
}

// Identifier returns the exact-match identifier for the search, if any.
// When set, adapters search by identifier exclusively.
func (p SearchParams) Identifier() string {
	if p.NPI != "" {
		return p.NPI
	}
	return p.ProviderID
}

// SearchName builds the name filter: Name if present, else "first last".
func (p SearchParams) SearchName() string {
	if p.Name != "" {
		return p.Name
	}
	return strings.TrimSpace(p.FirstName + " " + p.LastName)
}

// SavedProvider is a provider record persisted to the local directory,
// keyed by (user, country, identifier).
type SavedProvider struct {
	ID               string    `json:"id"`
	UserID           string    `json:"user_id"`
	Country          Country   `json:"country"`
	NormalizedProvider
	CorrectnessScore *int      `json:"correctness_score,omitempty"`
	NeedsReview      bool      `json:"needs_review"`
	LastSyncedAt     time.Time `json:"last_synced_at"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}
