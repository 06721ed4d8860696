package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sells-group/provider-verify/internal/model"
)

// MemoryStore is an in-memory Store for tests and ephemeral runs. Safe for
// concurrent use.
type MemoryStore struct {
	mu        sync.RWMutex
	providers map[string]model.SavedProvider
	audit     []model.AuditEntry
}

// NewMemory creates an empty MemoryStore.
func NewMemory() *MemoryStore {
	return &MemoryStore{providers: make(map[string]model.SavedProvider)}
}

func providerKey(userID string, country model.Country, identifier string) string {
	return strings.Join([]string{userID, string(country), identifier}, "|")
}

func (s *MemoryStore) UpsertProvider(_ context.Context, rec model.SavedProvider) (*model.SavedProvider, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	key := providerKey(rec.UserID, rec.Country, rec.Identifier())
	if existing, ok := s.providers[key]; ok {
		rec.ID = existing.ID
		rec.CreatedAt = existing.CreatedAt
	} else {
		if rec.ID == "" {
			rec.ID = uuid.New().String()
		}
		rec.CreatedAt = now
	}
	if rec.LastSyncedAt.IsZero() {
		rec.LastSyncedAt = now
	}
	rec.UpdatedAt = now

	s.providers[key] = rec
	return &rec, nil
}

func (s *MemoryStore) GetProvider(_ context.Context, userID string, country model.Country, identifier string) (*model.SavedProvider, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.providers[providerKey(userID, country, identifier)]
	if !ok {
		return nil, ErrNotFound
	}
	return &rec, nil
}

func (s *MemoryStore) ListProviders(_ context.Context, userID string, filter ProviderFilter) ([]model.SavedProvider, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []model.SavedProvider
	for _, rec := range s.providers {
		if rec.UserID != userID {
			continue
		}
		if filter.Country != "" && rec.Country != filter.Country {
			continue
		}
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (s *MemoryStore) AppendAudit(_ context.Context, entry model.AuditEntry) (*model.AuditEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	entry.CreatedAt = time.Now().UTC()
	s.audit = append(s.audit, entry)
	return &entry, nil
}

func (s *MemoryStore) ListAudit(_ context.Context, userID string, limit int) ([]model.AuditEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []model.AuditEntry
	for i := len(s.audit) - 1; i >= 0 && len(out) < limit; i-- {
		if s.audit[i].UserID == userID {
			out = append(out, s.audit[i])
		}
	}
	return out, nil
}

func (s *MemoryStore) ListAuditSince(_ context.Context, since time.Time, limit int) ([]model.AuditEntry, error) {
	if limit <= 0 {
		limit = 10000
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []model.AuditEntry
	for i := len(s.audit) - 1; i >= 0 && len(out) < limit; i-- {
		if !s.audit[i].CreatedAt.Before(since) {
			out = append(out, s.audit[i])
		}
	}
	return out, nil
}

func (s *MemoryStore) Migrate(context.Context) error { return nil }
func (s *MemoryStore) Ping(context.Context) error    { return nil }
func (s *MemoryStore) Close() error                  { return nil }
