package registry

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/provider-verify/internal/model"
)

// DefaultUSBaseURL is the CMS NPPES registry API endpoint.
const DefaultUSBaseURL = "https://npiregistry.cms.hhs.gov/api/"

const nppesVersion = "2.1"

// USAdapter searches the US NPI registry (CMS NPPES).
type USAdapter struct {
	client  *Client
	baseURL string
}

// NewUS creates a USAdapter. baseURL falls back to the public NPPES endpoint.
func NewUS(client *Client, baseURL string) *USAdapter {
	if baseURL == "" {
		baseURL = DefaultUSBaseURL
	}
	return &USAdapter{client: client, baseURL: baseURL}
}

func (a *USAdapter) Country() model.Country {
	return model.CountryUS
}

// nppesResponse is the NPPES search envelope.
type nppesResponse struct {
	ResultCount int               `json:"result_count"`
	Results     []json.RawMessage `json:"results"`
}

type nppesResult struct {
	Number          json.Number     `json:"number"`
	EnumerationType string          `json:"enumeration_type"`
	Basic           nppesBasic      `json:"basic"`
	Addresses       []nppesAddress  `json:"addresses"`
	Taxonomies      []nppesTaxonomy `json:"taxonomies"`
}

type nppesBasic struct {
	FirstName        string `json:"first_name"`
	LastName         string `json:"last_name"`
	OrganizationName string `json:"organization_name"`
}

type nppesAddress struct {
	AddressPurpose  string `json:"address_purpose"`
	Address1        string `json:"address_1"`
	Address2        string `json:"address_2"`
	City            string `json:"city"`
	State           string `json:"state"`
	PostalCode      string `json:"postal_code"`
	TelephoneNumber string `json:"telephone_number"`
}

type nppesTaxonomy struct {
	Code    string `json:"code"`
	Desc    string `json:"desc"`
	Primary bool   `json:"primary"`
}

// Search queries NPPES. An exact NPI number searches by identifier
// exclusively; otherwise name/city/state filters apply. With neither an
// identifier nor a name fragment the search is an empty success and no
// upstream call is made.
func (a *USAdapter) Search(ctx context.Context, params model.SearchParams) ([]model.NormalizedProvider, error) {
	if params.Identifier() == "" && params.SearchName() == "" {
		return nil, nil
	}

	query := url.Values{}
	query.Set("version", nppesVersion)
	if params.NPI != "" {
		query.Set("number", params.NPI)
	} else {
		if params.FirstName != "" {
			query.Set("first_name", params.FirstName)
		}
		if params.LastName != "" {
			query.Set("last_name", params.LastName)
		}
		if params.Name != "" {
			query.Set("organization_name", params.Name)
		}
		if params.City != "" {
			query.Set("city", params.City)
		}
		if params.State != "" {
			query.Set("state", params.State)
		}
		if params.PostalCode != "" {
			query.Set("postal_code", params.PostalCode)
		}
	}
	limit := params.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}
	query.Set("limit", strconv.Itoa(limit))

	reqURL := a.baseURL + "?" + query.Encode()
	zap.L().Debug("registry: NPPES search", zap.String("url", reqURL))

	body, status, err := a.client.Get(ctx, reqURL, nil)
	if err != nil {
		return nil, &UpstreamError{Registry: "NPPES", Err: err}
	}
	if status == http.StatusTooManyRequests {
		return nil, ErrRateLimited
	}
	if status != http.StatusOK {
		return nil, &UpstreamError{Registry: "NPPES", Status: status}
	}

	var resp nppesResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, &UpstreamError{Registry: "NPPES", Err: eris.Wrap(err, "decode response")}
	}
	if len(resp.Results) == 0 {
		return nil, nil
	}

	providers := make([]model.NormalizedProvider, 0, len(resp.Results))
	for _, raw := range resp.Results {
		p, err := parseUSResult(raw)
		if err != nil {
			return nil, &UpstreamError{Registry: "NPPES", Err: err}
		}
		providers = append(providers, p)
	}
	return providers, nil
}

// parseUSResult maps one NPPES result into the canonical record. The
// practice-location address wins over mailing addresses, the primary
// taxonomy over secondary ones, and postal codes are truncated to ZIP5.
func parseUSResult(raw json.RawMessage) (model.NormalizedProvider, error) {
	var r nppesResult
	if err := json.Unmarshal(raw, &r); err != nil {
		return model.NormalizedProvider{}, eris.Wrap(err, "parse NPPES result")
	}

	addr := nppesAddress{}
	if len(r.Addresses) > 0 {
		addr = r.Addresses[0]
		for _, a := range r.Addresses {
			if a.AddressPurpose == "LOCATION" {
				addr = a
				break
			}
		}
	}

	taxonomy := nppesTaxonomy{}
	if len(r.Taxonomies) > 0 {
		taxonomy = r.Taxonomies[0]
		for _, t := range r.Taxonomies {
			if t.Primary {
				taxonomy = t
				break
			}
		}
	}

	orgName := r.Basic.OrganizationName
	name := orgName
	if name == "" {
		name = strings.TrimSpace(r.Basic.FirstName + " " + r.Basic.LastName)
	}

	postal := addr.PostalCode
	if len(postal) > 5 {
		postal = postal[:5]
	}

	return model.NormalizedProvider{
		NPINumber:        r.Number.String(),
		Name:             name,
		FirstName:        r.Basic.FirstName,
		LastName:         r.Basic.LastName,
		Phone:            addr.TelephoneNumber,
		AddressLine1:     addr.Address1,
		AddressLine2:     addr.Address2,
		City:             addr.City,
		State:            addr.State,
		PostalCode:       postal,
		Specialty:        taxonomy.Desc,
		OrganizationName: orgName,
		TaxonomyCode:     taxonomy.Code,
		TaxonomyDesc:     taxonomy.Desc,
		EnumerationType:  r.EnumerationType,
		RawPayload:       raw,
		Source:           model.SourceUSNPI,
	}, nil
}
