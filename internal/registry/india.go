package registry

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/url"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/provider-verify/internal/model"
)

// DefaultINBaseURL is the India HPR (Health Professional Registry) endpoint.
const DefaultINBaseURL = "https://hpr.abdm.gov.in/api/v1"

// INAdapter searches the India Health Professional Registry. The upstream
// payloads are loosely shaped: field names vary per deployment, so parsing
// probes known aliases in a fixed priority order.
type INAdapter struct {
	client  *Client
	baseURL string
	apiKey  string
}

// NewIN creates an INAdapter. baseURL falls back to the public HPR endpoint;
// apiKey is attached as a bearer credential when set.
func NewIN(client *Client, baseURL, apiKey string) *INAdapter {
	if baseURL == "" {
		baseURL = DefaultINBaseURL
	}
	return &INAdapter{client: client, baseURL: baseURL, apiKey: apiKey}
}

func (a *INAdapter) Country() model.Country {
	return model.CountryIN
}

// Search queries HPR by registration number when an identifier is supplied,
// else by name. With neither, it is an empty success and no upstream call is
// made. HPR signals "no such professional" with a 404, which is an empty
// result here, not an error.
func (a *INAdapter) Search(ctx context.Context, params model.SearchParams) ([]model.NormalizedProvider, error) {
	var reqURL string
	switch {
	case params.Identifier() != "":
		reqURL = a.baseURL + "/search/professionalByRegistrationNumber?registrationNumber=" +
			url.QueryEscape(params.Identifier())
	case params.SearchName() != "":
		reqURL = a.baseURL + "/search/professionalByName?name=" +
			url.QueryEscape(params.SearchName())
	default:
		return nil, nil
	}

	header := http.Header{}
	header.Set("Content-Type", "application/json")
	header.Set("Accept", "application/json")
	if a.apiKey != "" {
		header.Set("Authorization", "Bearer "+a.apiKey)
	}

	zap.L().Debug("registry: HPR search", zap.String("url", reqURL))

	body, status, err := a.client.Get(ctx, reqURL, header)
	if err != nil {
		return nil, &UpstreamError{Registry: "HPR", Err: err}
	}
	switch status {
	case http.StatusOK:
	case http.StatusTooManyRequests:
		return nil, ErrRateLimited
	case http.StatusNotFound:
		return nil, nil
	default:
		return nil, &UpstreamError{Registry: "HPR", Status: status}
	}

	results, err := decodeHPREnvelope(body)
	if err != nil {
		return nil, &UpstreamError{Registry: "HPR", Err: err}
	}

	providers := make([]model.NormalizedProvider, 0, len(results))
	for _, raw := range results {
		p, err := parseINResult(raw)
		if err != nil {
			return nil, &UpstreamError{Registry: "HPR", Err: err}
		}
		providers = append(providers, p)
	}
	return providers, nil
}

// decodeHPREnvelope normalizes the four observed HPR response shapes into a
// flat result list: a bare array, {"professionals": [...]}, {"results":
// [...]}, or a single bare professional object. The shape is resolved once
// here; parseINResult never has to sniff.
func decodeHPREnvelope(body []byte) ([]json.RawMessage, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil, nil
	}

	if trimmed[0] == '[' {
		var list []json.RawMessage
		if err := json.Unmarshal(trimmed, &list); err != nil {
			return nil, eris.Wrap(err, "decode HPR array")
		}
		return list, nil
	}

	var env struct {
		Professionals []json.RawMessage `json:"professionals"`
		Results       []json.RawMessage `json:"results"`
	}
	if err := json.Unmarshal(trimmed, &env); err != nil {
		return nil, eris.Wrap(err, "decode HPR envelope")
	}
	if env.Professionals != nil {
		return env.Professionals, nil
	}
	if env.Results != nil {
		return env.Results, nil
	}

	// A single professional object, recognizable by its identifier fields.
	fields, err := decodeLooseObject(trimmed)
	if err != nil {
		return nil, err
	}
	if stringField(fields, "hprId") != "" || stringField(fields, "registrationNumber") != "" {
		return []json.RawMessage{json.RawMessage(trimmed)}, nil
	}
	return nil, nil
}

// parseINResult maps one HPR professional into the canonical record, probing
// the known field aliases per canonical field in priority order.
func parseINResult(raw json.RawMessage) (model.NormalizedProvider, error) {
	fields, err := decodeLooseObject(raw)
	if err != nil {
		return model.NormalizedProvider{}, eris.Wrap(err, "parse HPR result")
	}

	address := looseChild(fields, "address")
	qualification := looseFirst(fields, "qualifications")

	professionalName := firstNonEmpty(
		stringField(fields, "name"),
		stringField(fields, "professionalName"),
	)
	firstName := stringField(fields, "firstName")
	lastName := stringField(fields, "lastName")
	name := professionalName
	if name == "" {
		name = trimJoin(firstName, lastName)
	}

	return model.NormalizedProvider{
		ProviderID: firstNonEmpty(
			stringField(fields, "hprId"),
			stringField(fields, "registrationNumber"),
			stringField(fields, "id"),
		),
		Name:      name,
		FirstName: firstName,
		LastName:  lastName,
		Phone: firstNonEmpty(
			stringField(fields, "mobile"),
			stringField(fields, "phone"),
			stringField(fields, "contactNumber"),
		),
		AddressLine1: firstNonEmpty(
			stringField(address, "line1"),
			stringField(address, "addressLine1"),
			stringField(address, "address"),
		),
		AddressLine2: firstNonEmpty(
			stringField(address, "line2"),
			stringField(address, "addressLine2"),
		),
		City: firstNonEmpty(
			stringField(address, "city"),
			stringField(address, "district"),
		),
		State: firstNonEmpty(
			stringField(address, "state"),
			stringField(address, "stateName"),
		),
		PostalCode: firstNonEmpty(
			stringField(address, "pincode"),
			stringField(address, "postalCode"),
		),
		Specialty: firstNonEmpty(
			stringField(qualification, "specialty"),
			stringField(fields, "specialty"),
			stringField(fields, "specialization"),
		),
		OrganizationName: firstNonEmpty(
			stringField(fields, "organization"),
			stringField(fields, "hospitalName"),
		),
		TaxonomyCode: stringField(qualification, "qualificationCode"),
		TaxonomyDesc: firstNonEmpty(
			stringField(qualification, "qualificationName"),
			stringField(qualification, "degree"),
		),
		EnumerationType: firstNonEmpty(
			stringField(fields, "professionalType"),
			stringField(fields, "category"),
			"Individual",
		),
		RawPayload: raw,
		Source:     model.SourceINRegistry,
	}, nil
}
