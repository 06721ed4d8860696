// Package service orchestrates registry lookups, correctness scoring, and
// persistence into the operations exposed by the CLI and the HTTP server.
package service

import (
	"context"
	"errors"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/provider-verify/internal/auth"
	"github.com/sells-group/provider-verify/internal/model"
	"github.com/sells-group/provider-verify/internal/registry"
	"github.com/sells-group/provider-verify/internal/score"
	"github.com/sells-group/provider-verify/internal/store"
)

const (
	// DefaultCacheTTL is how long a saved record satisfies a resolve before
	// the registry is consulted again.
	DefaultCacheTTL = 7 * 24 * time.Hour

	// needsReviewThreshold flags saved records whose correctness score is
	// too low to trust without a human look.
	needsReviewThreshold = 80
)

// ErrCountryUnsupported is returned when no registry adapter covers the
// requested country.
var ErrCountryUnsupported = errors.New("service: unsupported country")

// ErrMissingIdentifier is returned when a save carries a provider record with
// neither an NPI number nor a provider id to key it by.
var ErrMissingIdentifier = errors.New("service: provider record has no identifier")

// Service wires registry adapters, the field scorer, and the store into the
// verification operations. Every operation requires a verified caller.
type Service struct {
	adapters map[model.Country]registry.Adapter
	store    store.Store
	cacheTTL time.Duration
}

// New creates a Service. A non-positive cacheTTL falls back to DefaultCacheTTL.
func New(st store.Store, cacheTTL time.Duration, adapters ...registry.Adapter) *Service {
	if cacheTTL <= 0 {
		cacheTTL = DefaultCacheTTL
	}
	m := make(map[model.Country]registry.Adapter, len(adapters))
	for _, a := range adapters {
		m[a.Country()] = a
	}
	return &Service{adapters: m, store: st, cacheTTL: cacheTTL}
}

func (s *Service) adapter(country model.Country) (registry.Adapter, error) {
	a, ok := s.adapters[country]
	if !ok {
		return nil, eris.Wrapf(ErrCountryUnsupported, "%s", country)
	}
	return a, nil
}

// registryName is the human-readable registry label used in audit notes.
func registryName(country model.Country) string {
	if country == model.CountryUS {
		return "NPI Registry"
	}
	return "India Health Professional Registry"
}

// Search queries the national registry for the caller's country and returns
// normalized matches. It never touches the store.
func (s *Service) Search(ctx context.Context, caller *auth.Identity, params model.SearchParams) ([]model.NormalizedProvider, error) {
	if caller == nil {
		return nil, auth.ErrUnauthorized
	}
	a, err := s.adapter(params.Country)
	if err != nil {
		return nil, err
	}
	return a.Search(ctx, params)
}

// Validate searches the registry and scores the caller-supplied record
// against the best match. A registry miss is a successful validation with
// Found=false and no audit entry; only actual comparisons are recorded.
func (s *Service) Validate(ctx context.Context, caller *auth.Identity, params model.SearchParams, user model.UserProviderData) (*model.ValidationResult, error) {
	if caller == nil {
		return nil, auth.ErrUnauthorized
	}
	a, err := s.adapter(params.Country)
	if err != nil {
		return nil, err
	}

	matches, err := a.Search(ctx, params)
	if err != nil {
		return nil, err
	}
	if len(matches) == 0 {
		return &model.ValidationResult{
			Success:  true,
			Found:    false,
			Message:  "no matching provider found in registry",
			UserData: user,
		}, nil
	}

	reg := matches[0]
	overall, fieldScores := score.Correctness(user, reg)
	result := &model.ValidationResult{
		Success:          true,
		Found:            true,
		RegistryData:     &reg,
		UserData:         user,
		CorrectnessScore: overall,
		FieldScores:      fieldScores,
	}

	s.appendAudit(ctx, model.AuditEntry{
		UserID:           caller.UserID,
		Action:           model.ActionValidate,
		Country:          params.Country,
		Identifier:       reg.Identifier(),
		CorrectnessScore: &overall,
		FieldScores:      fieldScores,
		Notes:            "Validated against " + registryName(params.Country),
	})

	return result, nil
}

// SaveResult is the outcome of a save: the persisted record, the validation
// that drove it when one ran, and a warning when the history append failed
// after the record was already written.
type SaveResult struct {
	Record       *model.SavedProvider    `json:"record,omitempty"`
	Validation   *model.ValidationResult `json:"validation,omitempty"`
	AuditWarning string                  `json:"audit_warning,omitempty"`
}

// Save upserts a registry record the caller already holds, keyed by
// (country, identifier), and records a SYNC entry. It never calls the
// registry: the record and the optional correctness score come from a prior
// search or validate, so a save still works when the registry is down.
// Records scoring below the review threshold are flagged needs_review. A
// failed history append does not unwind the completed save; it is reported
// on the result instead.
func (s *Service) Save(ctx context.Context, caller *auth.Identity, country model.Country, provider model.NormalizedProvider, correctness *int) (*SaveResult, error) {
	if caller == nil {
		return nil, auth.ErrUnauthorized
	}
	if provider.Identifier() == "" {
		return nil, ErrMissingIdentifier
	}

	rec, err := s.persist(ctx, caller, country, provider, correctness)
	if err != nil {
		return nil, err
	}

	res := &SaveResult{Record: rec}
	if err := s.appendAudit(ctx, model.AuditEntry{
		UserID:           caller.UserID,
		Action:           model.ActionSync,
		Country:          country,
		Identifier:       provider.Identifier(),
		CorrectnessScore: correctness,
		Notes:            "Synced from " + registryName(country),
	}); err != nil {
		res.AuditWarning = "record saved, but the sync history entry could not be written"
	}
	return res, nil
}

// ValidateAndSave validates the caller-supplied data against the registry
// and, when a match exists, saves the matched record with the computed
// score. A registry miss saves nothing and returns the validation alone.
func (s *Service) ValidateAndSave(ctx context.Context, caller *auth.Identity, params model.SearchParams, user model.UserProviderData) (*SaveResult, error) {
	if caller == nil {
		return nil, auth.ErrUnauthorized
	}

	vr, err := s.Validate(ctx, caller, params, user)
	if err != nil {
		return nil, err
	}
	if !vr.Found {
		return &SaveResult{Validation: vr}, nil
	}

	overall := vr.CorrectnessScore
	res, err := s.Save(ctx, caller, params.Country, *vr.RegistryData, &overall)
	if err != nil {
		return nil, err
	}
	res.Validation = vr
	return res, nil
}

// ResolveResult is a resolved provider record plus where it came from.
type ResolveResult struct {
	Record    *model.SavedProvider `json:"record"`
	FromCache bool                 `json:"from_cache"`
}

// Resolve returns the caller's record for an identifier, refreshing from the
// registry when the saved copy is older than the cache TTL or forceRefresh is
// set. A registry miss on refresh falls back to the stale copy rather than
// losing the record.
func (s *Service) Resolve(ctx context.Context, caller *auth.Identity, country model.Country, identifier string, forceRefresh bool) (*ResolveResult, error) {
	if caller == nil {
		return nil, auth.ErrUnauthorized
	}
	a, err := s.adapter(country)
	if err != nil {
		return nil, err
	}

	cached, err := s.store.GetProvider(ctx, caller.UserID, country, identifier)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}
	if cached != nil && !forceRefresh && time.Since(cached.LastSyncedAt) < s.cacheTTL {
		return &ResolveResult{Record: cached, FromCache: true}, nil
	}

	params := model.SearchParams{Country: country}
	if country == model.CountryUS {
		params.NPI = identifier
	} else {
		params.ProviderID = identifier
	}

	matches, err := a.Search(ctx, params)
	if err != nil {
		// A stale copy beats a hard failure when the registry is down.
		if cached != nil {
			zap.L().Warn("service: registry refresh failed, serving stale record",
				zap.String("country", string(country)),
				zap.String("identifier", identifier),
				zap.Error(err),
			)
			return &ResolveResult{Record: cached, FromCache: true}, nil
		}
		return nil, err
	}
	if len(matches) == 0 {
		if cached != nil {
			return &ResolveResult{Record: cached, FromCache: true}, nil
		}
		return nil, store.ErrNotFound
	}

	// Refresh keeps the previous correctness score: resolve has no user
	// data to rescore against.
	var prevScore *int
	if cached != nil {
		prevScore = cached.CorrectnessScore
	}
	rec, err := s.persist(ctx, caller, country, matches[0], prevScore)
	if err != nil {
		return nil, err
	}

	s.appendAudit(ctx, model.AuditEntry{
		UserID:           caller.UserID,
		Action:           model.ActionSync,
		Country:          country,
		Identifier:       matches[0].Identifier(),
		CorrectnessScore: prevScore,
		Notes:            "Synced from " + registryName(country),
	})

	return &ResolveResult{Record: rec, FromCache: false}, nil
}

// ListProviders returns the caller's saved records, newest first.
func (s *Service) ListProviders(ctx context.Context, caller *auth.Identity, filter store.ProviderFilter) ([]model.SavedProvider, error) {
	if caller == nil {
		return nil, auth.ErrUnauthorized
	}
	return s.store.ListProviders(ctx, caller.UserID, filter)
}

// History returns the caller's sync history, newest first.
func (s *Service) History(ctx context.Context, caller *auth.Identity, limit int) ([]model.AuditEntry, error) {
	if caller == nil {
		return nil, auth.ErrUnauthorized
	}
	return s.store.ListAudit(ctx, caller.UserID, limit)
}

// persist upserts a registry record for the caller.
func (s *Service) persist(ctx context.Context, caller *auth.Identity, country model.Country, reg model.NormalizedProvider, correctness *int) (*model.SavedProvider, error) {
	rec := model.SavedProvider{
		UserID:             caller.UserID,
		Country:            country,
		NormalizedProvider: reg,
		CorrectnessScore:   correctness,
		NeedsReview:        correctness != nil && *correctness < needsReviewThreshold,
		LastSyncedAt:       time.Now().UTC(),
	}

	saved, err := s.store.UpsertProvider(ctx, rec)
	if err != nil {
		return nil, eris.Wrap(err, "service: save provider")
	}
	return saved, nil
}

// appendAudit records a history entry. A failed append is logged and
// returned; it never unwinds the primary operation, but the save path
// surfaces it to the caller.
func (s *Service) appendAudit(ctx context.Context, entry model.AuditEntry) error {
	if _, err := s.store.AppendAudit(ctx, entry); err != nil {
		zap.L().Warn("service: failed to append audit entry",
			zap.String("action", string(entry.Action)),
			zap.String("identifier", entry.Identifier),
			zap.Error(err),
		)
		return err
	}
	return nil
}
