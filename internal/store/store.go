// Package store persists resolved provider records and the append-only sync
// history, keyed per caller.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/sells-group/provider-verify/internal/model"
)

// ErrNotFound is returned by point lookups when no record matches.
var ErrNotFound = errors.New("store: not found")

// ProviderFilter narrows a provider listing.
type ProviderFilter struct {
	Country model.Country
	Limit   int
}

// Store is the persistence interface for the verification service.
// Provider upserts are keyed by (user, country, identifier); concurrent
// saves for the same key are last-writer-wins, never partial-field merges.
type Store interface {
	// Providers
	UpsertProvider(ctx context.Context, rec model.SavedProvider) (*model.SavedProvider, error)
	GetProvider(ctx context.Context, userID string, country model.Country, identifier string) (*model.SavedProvider, error)
	ListProviders(ctx context.Context, userID string, filter ProviderFilter) ([]model.SavedProvider, error)

	// Sync history (append-only)
	AppendAudit(ctx context.Context, entry model.AuditEntry) (*model.AuditEntry, error)
	ListAudit(ctx context.Context, userID string, limit int) ([]model.AuditEntry, error)
	ListAuditSince(ctx context.Context, since time.Time, limit int) ([]model.AuditEntry, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}
