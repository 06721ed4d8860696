package monitoring

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/provider-verify/internal/model"
	"github.com/sells-group/provider-verify/internal/store"
)

// reviewThreshold mirrors the score below which saved records are flagged.
const reviewThreshold = 80

// MetricsSnapshot holds a point-in-time view of verification activity.
type MetricsSnapshot struct {
	// Sync-history metrics (within lookback window).
	ValidationsTotal int     `json:"validations_total"`
	SyncsTotal       int     `json:"syncs_total"`
	ScoredEntries    int     `json:"scored_entries"`
	AvgCorrectness   float64 `json:"avg_correctness"`
	LowScoreCount    int     `json:"low_score_count"`
	LowScoreRate     float64 `json:"low_score_rate"`

	// Per-registry activity.
	USEntries int `json:"us_entries"`
	INEntries int `json:"in_entries"`

	// Metadata.
	LookbackHours int       `json:"lookback_hours"`
	CollectedAt   time.Time `json:"collected_at"`
}

// AuditQuerier abstracts the store methods needed by the collector.
type AuditQuerier interface {
	ListAuditSince(ctx context.Context, since time.Time, limit int) ([]model.AuditEntry, error)
}

// Collector aggregates sync-history entries into a metrics snapshot.
type Collector struct {
	store AuditQuerier
}

// NewCollector creates a new metrics collector.
func NewCollector(st AuditQuerier) *Collector {
	return &Collector{store: st}
}

// Collect gathers a snapshot of verification metrics over the given lookback window.
func (c *Collector) Collect(ctx context.Context, lookbackHours int) (*MetricsSnapshot, error) {
	snap := &MetricsSnapshot{
		LookbackHours: lookbackHours,
		CollectedAt:   time.Now().UTC(),
	}

	cutoff := time.Now().UTC().Add(-time.Duration(lookbackHours) * time.Hour)
	entries, err := c.store.ListAuditSince(ctx, cutoff, 10000)
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: list sync history")
	}

	var totalScore int
	for _, e := range entries {
		switch e.Action {
		case model.ActionValidate:
			snap.ValidationsTotal++
		case model.ActionSync:
			snap.SyncsTotal++
		}
		switch e.Country {
		case model.CountryUS:
			snap.USEntries++
		case model.CountryIN:
			snap.INEntries++
		}
		if e.CorrectnessScore != nil {
			snap.ScoredEntries++
			totalScore += *e.CorrectnessScore
			if *e.CorrectnessScore < reviewThreshold {
				snap.LowScoreCount++
			}
		}
	}

	if snap.ScoredEntries > 0 {
		snap.AvgCorrectness = float64(totalScore) / float64(snap.ScoredEntries)
		snap.LowScoreRate = float64(snap.LowScoreCount) / float64(snap.ScoredEntries)
	}

	return snap, nil
}

var _ AuditQuerier = (store.Store)(nil)
