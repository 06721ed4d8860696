// Package registry resolves provider searches against national registries
// (US NPPES, India HPR) and parses their heterogeneous payloads into the
// canonical record shape.
package registry

import (
	"context"

	"github.com/sells-group/provider-verify/internal/model"
)

// DefaultLimit is the result limit applied when a search does not set one.
const DefaultLimit = 10

// Adapter resolves search parameters against one national registry.
// Adapters perform no retries; retry policy belongs to the caller.
type Adapter interface {
	Country() model.Country
	Search(ctx context.Context, params model.SearchParams) ([]model.NormalizedProvider, error)
}

// firstNonEmpty returns the first non-empty candidate, probing upstream
// field aliases in a fixed priority order.
func firstNonEmpty(candidates ...string) string {
	for _, c := range candidates {
		if c != "" {
			return c
		}
	}
	return ""
}
