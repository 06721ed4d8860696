package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/provider-verify/internal/auth"
	"github.com/sells-group/provider-verify/internal/model"
	"github.com/sells-group/provider-verify/internal/monitoring"
	"github.com/sells-group/provider-verify/internal/registry"
	"github.com/sells-group/provider-verify/internal/service"
	"github.com/sells-group/provider-verify/internal/store"
)

const testSecret = "test-secret"

// stubAdapter serves canned registry results for router tests.
type stubAdapter struct {
	country model.Country
	results []model.NormalizedProvider
	err     error
}

func (s *stubAdapter) Country() model.Country { return s.country }

func (s *stubAdapter) Search(context.Context, model.SearchParams) ([]model.NormalizedProvider, error) {
	return s.results, s.err
}

func newTestRouter(t *testing.T, adapters ...registry.Adapter) (http.Handler, *store.MemoryStore) {
	t.Helper()
	st := store.NewMemory()
	svc := service.New(st, 0, adapters...)
	verifier := auth.NewJWTVerifier(testSecret, "")
	return buildRouter(svc, st, verifier, monitoring.NewCollector(st), 24), st
}

func bearerToken(t *testing.T, subject string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": subject,
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte(testSecret))
	require.NoError(t, err)
	return signed
}

func doRequest(t *testing.T, h http.Handler, method, target, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, target, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func stubJane() model.NormalizedProvider {
	return model.NormalizedProvider{
		NPINumber:    "1234567893",
		Name:         "JANE DOE",
		Phone:        "505-555-0100",
		AddressLine1: "123 Main St",
		City:         "Albuquerque",
		State:        "NM",
		PostalCode:   "87101",
		Specialty:    "Internal Medicine",
		Source:       model.SourceUSNPI,
	}
}

func TestServe_Health(t *testing.T) {
	h, _ := newTestRouter(t, &stubAdapter{country: model.CountryUS})

	rec := doRequest(t, h, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"ok"`)
}

func TestServe_Metrics(t *testing.T) {
	h, st := newTestRouter(t, &stubAdapter{country: model.CountryUS})
	score := 90
	_, err := st.AppendAudit(context.Background(), model.AuditEntry{
		UserID: "u1", Action: model.ActionValidate, Country: model.CountryUS, CorrectnessScore: &score,
	})
	require.NoError(t, err)

	rec := doRequest(t, h, http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	var snap monitoring.MetricsSnapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snap))
	assert.Equal(t, 1, snap.ValidationsTotal)
	assert.InDelta(t, 90.0, snap.AvgCorrectness, 0.001)
}

func TestServe_RequiresBearerToken(t *testing.T) {
	h, _ := newTestRouter(t, &stubAdapter{country: model.CountryUS})

	for _, target := range []string{
		"/api/v1/providers/search?country=US",
		"/api/v1/providers",
		"/api/v1/history",
	} {
		rec := doRequest(t, h, http.MethodGet, target, "", nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, target)
	}

	rec := doRequest(t, h, http.MethodGet, "/api/v1/providers?country=US", "not-a-token", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestServe_Search(t *testing.T) {
	h, _ := newTestRouter(t, &stubAdapter{country: model.CountryUS, results: []model.NormalizedProvider{stubJane()}})

	rec := doRequest(t, h, http.MethodGet, "/api/v1/providers/search?country=US&npi=1234567893", bearerToken(t, "user-1"), nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Results []model.NormalizedProvider `json:"results"`
		Count   int                        `json:"count"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.Count)
	assert.Equal(t, "JANE DOE", resp.Results[0].Name)
}

func TestServe_SearchEmptyIsEmptyList(t *testing.T) {
	h, _ := newTestRouter(t, &stubAdapter{country: model.CountryUS})

	rec := doRequest(t, h, http.MethodGet, "/api/v1/providers/search?country=US&npi=0000000000", bearerToken(t, "user-1"), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	// Successful-but-empty is an explicit empty array, not null.
	assert.Contains(t, rec.Body.String(), `"results":[]`)
	assert.Contains(t, rec.Body.String(), `"count":0`)
}

func TestServe_SearchBadCountry(t *testing.T) {
	h, _ := newTestRouter(t, &stubAdapter{country: model.CountryUS})

	rec := doRequest(t, h, http.MethodGet, "/api/v1/providers/search?country=XX", bearerToken(t, "user-1"), nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestServe_ValidateAndSave(t *testing.T) {
	h, st := newTestRouter(t, &stubAdapter{country: model.CountryUS, results: []model.NormalizedProvider{stubJane()}})
	token := bearerToken(t, "user-1")

	body := lookupRequest{
		Country: "US",
		NPI:     "1234567893",
		UserData: model.UserProviderData{
			Name:  "Jane Doe",
			Phone: "(505) 555-0100",
			City:  "Albuquerque",
		},
	}

	rec := doRequest(t, h, http.MethodPost, "/api/v1/providers/validate", token, body)
	require.Equal(t, http.StatusOK, rec.Code)

	var vr model.ValidationResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &vr))
	assert.True(t, vr.Found)
	assert.Positive(t, vr.CorrectnessScore)
	require.NotNil(t, vr.RegistryData)

	// Save hands back the validated record; no second registry call needed.
	score := vr.CorrectnessScore
	saveBody := saveRequest{Country: "US", Provider: *vr.RegistryData, CorrectnessScore: &score}
	rec = doRequest(t, h, http.MethodPost, "/api/v1/providers/save", token, saveBody)
	require.Equal(t, http.StatusOK, rec.Code)

	var sr service.SaveResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &sr))
	require.NotNil(t, sr.Record)
	assert.Equal(t, "1234567893", sr.Record.NPINumber)

	// The record is really in the store, scoped to the token's subject.
	got, err := st.GetProvider(context.Background(), "user-1", model.CountryUS, "1234567893")
	require.NoError(t, err)
	assert.Equal(t, "JANE DOE", got.Name)
}

func TestServe_SaveWorksWhileRegistryIsDown(t *testing.T) {
	h, st := newTestRouter(t, &stubAdapter{country: model.CountryUS, err: registry.ErrRateLimited})

	score := 72
	body := saveRequest{Country: "US", Provider: stubJane(), CorrectnessScore: &score}
	rec := doRequest(t, h, http.MethodPost, "/api/v1/providers/save", bearerToken(t, "user-1"), body)
	require.Equal(t, http.StatusOK, rec.Code)

	var sr service.SaveResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &sr))
	require.NotNil(t, sr.Record)
	assert.True(t, sr.Record.NeedsReview)

	got, err := st.GetProvider(context.Background(), "user-1", model.CountryUS, "1234567893")
	require.NoError(t, err)
	assert.Equal(t, "JANE DOE", got.Name)
}

func TestServe_SaveWithoutIdentifierIs400(t *testing.T) {
	h, _ := newTestRouter(t, &stubAdapter{country: model.CountryUS})

	record := stubJane()
	record.NPINumber = ""
	body := saveRequest{Country: "US", Provider: record}
	rec := doRequest(t, h, http.MethodPost, "/api/v1/providers/save", bearerToken(t, "user-1"), body)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestServe_ValidateBadBody(t *testing.T) {
	h, _ := newTestRouter(t, &stubAdapter{country: model.CountryUS})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/providers/validate", bytes.NewBufferString("{not json"))
	req.Header.Set("Authorization", "Bearer "+bearerToken(t, "user-1"))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestServe_ResolveUnknownIs404(t *testing.T) {
	h, _ := newTestRouter(t, &stubAdapter{country: model.CountryUS})

	rec := doRequest(t, h, http.MethodGet, "/api/v1/providers/resolve/0000000000?country=US", bearerToken(t, "user-1"), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServe_ResolveFromCache(t *testing.T) {
	h, st := newTestRouter(t, &stubAdapter{country: model.CountryUS})

	_, err := st.UpsertProvider(context.Background(), model.SavedProvider{
		UserID:             "user-1",
		Country:            model.CountryUS,
		NormalizedProvider: stubJane(),
		LastSyncedAt:       time.Now().UTC(),
	})
	require.NoError(t, err)

	rec := doRequest(t, h, http.MethodGet, "/api/v1/providers/resolve/1234567893?country=US", bearerToken(t, "user-1"), nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var res service.ResolveResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.True(t, res.FromCache)
	assert.Equal(t, "JANE DOE", res.Record.Name)
}

func TestServe_RateLimitedIs429(t *testing.T) {
	h, _ := newTestRouter(t, &stubAdapter{country: model.CountryUS, err: registry.ErrRateLimited})

	rec := doRequest(t, h, http.MethodGet, "/api/v1/providers/search?country=US&npi=1234567893", bearerToken(t, "user-1"), nil)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
}

func TestServe_UpstreamFailureIs502(t *testing.T) {
	upstreamErr := &registry.UpstreamError{Registry: "nppes", Status: 500}
	h, _ := newTestRouter(t, &stubAdapter{country: model.CountryUS, err: upstreamErr})

	rec := doRequest(t, h, http.MethodGet, "/api/v1/providers/search?country=US&npi=1234567893", bearerToken(t, "user-1"), nil)
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestServe_HistoryAndProvidersAreScopedToCaller(t *testing.T) {
	h, _ := newTestRouter(t, &stubAdapter{country: model.CountryUS, results: []model.NormalizedProvider{stubJane()}})

	body := saveRequest{Country: "US", Provider: stubJane()}
	rec := doRequest(t, h, http.MethodPost, "/api/v1/providers/save", bearerToken(t, "user-1"), body)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(t, h, http.MethodGet, "/api/v1/providers?country=US", bearerToken(t, "user-1"), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"count":1`)

	rec = doRequest(t, h, http.MethodGet, "/api/v1/providers", bearerToken(t, "user-2"), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"count":0`)
	// An empty listing is an explicit empty array, not null.
	assert.Contains(t, rec.Body.String(), `"providers":[]`)

	rec = doRequest(t, h, http.MethodGet, "/api/v1/history", bearerToken(t, "user-1"), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	// save produced one SYNC entry for user-1
	assert.Contains(t, rec.Body.String(), `"count":1`)

	rec = doRequest(t, h, http.MethodGet, "/api/v1/history", bearerToken(t, "user-2"), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"history":[]`)
}
