package store

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/provider-verify/internal/model"
)

func TestMemoryStore_ImplementsStore(t *testing.T) {
	var _ Store = NewMemory()
}

func TestMemoryStore_UpsertKeepsIdentityAcrossReplaces(t *testing.T) {
	s := NewMemory()
	ctx := context.Background()

	first, err := s.UpsertProvider(ctx, usRecord("user-1", "1234567893"))
	require.NoError(t, err)

	updated := usRecord("user-1", "1234567893")
	updated.Phone = "505-555-0199"
	second, err := s.UpsertProvider(ctx, updated)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, first.CreatedAt, second.CreatedAt)

	got, err := s.GetProvider(ctx, "user-1", model.CountryUS, "1234567893")
	require.NoError(t, err)
	assert.Equal(t, "505-555-0199", got.Phone)
}

func TestMemoryStore_GetProvider_NotFound(t *testing.T) {
	s := NewMemory()

	_, err := s.GetProvider(context.Background(), "user-1", model.CountryUS, "0000000000")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStore_ListProviders_FilterAndLimit(t *testing.T) {
	s := NewMemory()
	ctx := context.Background()

	_, err := s.UpsertProvider(ctx, usRecord("user-1", "1234567893"))
	require.NoError(t, err)
	_, err = s.UpsertProvider(ctx, usRecord("user-1", "1992707384"))
	require.NoError(t, err)
	_, err = s.UpsertProvider(ctx, model.SavedProvider{
		UserID: "user-1", Country: model.CountryIN,
		NormalizedProvider: model.NormalizedProvider{ProviderID: "HPR-001", Name: "Dr Asha Rao", Source: model.SourceINRegistry},
	})
	require.NoError(t, err)

	all, err := s.ListProviders(ctx, "user-1", ProviderFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 3)

	usOnly, err := s.ListProviders(ctx, "user-1", ProviderFilter{Country: model.CountryUS, Limit: 1})
	require.NoError(t, err)
	require.Len(t, usOnly, 1)
	assert.Equal(t, model.CountryUS, usOnly[0].Country)
}

func TestMemoryStore_AuditIsAppendOnlyNewestFirst(t *testing.T) {
	s := NewMemory()
	ctx := context.Background()

	_, err := s.AppendAudit(ctx, model.AuditEntry{UserID: "user-1", Action: model.ActionValidate, Country: model.CountryUS, Identifier: "a"})
	require.NoError(t, err)
	_, err = s.AppendAudit(ctx, model.AuditEntry{UserID: "user-1", Action: model.ActionSync, Country: model.CountryUS, Identifier: "b"})
	require.NoError(t, err)

	got, err := s.ListAudit(ctx, "user-1", 10)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "b", got[0].Identifier)
	assert.Equal(t, "a", got[1].Identifier)
}

func TestMemoryStore_ListAuditSince(t *testing.T) {
	s := NewMemory()
	ctx := context.Background()

	_, err := s.AppendAudit(ctx, model.AuditEntry{UserID: "user-1", Action: model.ActionSync, Country: model.CountryUS})
	require.NoError(t, err)

	recent, err := s.ListAuditSince(ctx, time.Now().Add(-time.Minute), 0)
	require.NoError(t, err)
	assert.Len(t, recent, 1)

	none, err := s.ListAuditSince(ctx, time.Now().Add(time.Minute), 0)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestMemoryStore_ConcurrentUpserts(t *testing.T) {
	s := NewMemory()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.UpsertProvider(ctx, usRecord("user-1", "1234567893"))
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	all, err := s.ListProviders(ctx, "user-1", ProviderFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 1)
}
