package monitoring

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/provider-verify/internal/config"
)

// AlertType identifies the kind of alert.
type AlertType string

const (
	AlertLowCorrectness AlertType = "low_correctness_rate"
	AlertReviewBacklog  AlertType = "review_backlog"
)

// Alert represents a single alert to be sent.
type Alert struct {
	Type      AlertType      `json:"type"`
	Severity  string         `json:"severity"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// Alerter evaluates a MetricsSnapshot against configured thresholds
// and sends alerts via webhook when thresholds are breached.
type Alerter struct {
	cfg    config.MonitoringConfig
	client *http.Client
}

// NewAlerter creates a new Alerter with the given monitoring config.
func NewAlerter(cfg config.MonitoringConfig) *Alerter {
	return &Alerter{
		cfg:    cfg,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

// Evaluate checks the snapshot against thresholds and returns any alerts.
func (a *Alerter) Evaluate(snap *MetricsSnapshot) []Alert {
	var alerts []Alert
	now := time.Now().UTC()

	// Check the share of scored comparisons landing below the review
	// threshold. Small samples are noise, not signal.
	if snap.ScoredEntries >= 5 && snap.LowScoreRate > a.cfg.LowScoreRateThreshold {
		alerts = append(alerts, Alert{
			Type:     AlertLowCorrectness,
			Severity: "high",
			Message: fmt.Sprintf(
				"Low-correctness rate %.1f%% exceeds threshold %.1f%% (%d of %d scored in last %dh)",
				snap.LowScoreRate*100, a.cfg.LowScoreRateThreshold*100,
				snap.LowScoreCount, snap.ScoredEntries, snap.LookbackHours,
			),
			Details: map[string]any{
				"low_score_rate": snap.LowScoreRate,
				"threshold":      a.cfg.LowScoreRateThreshold,
				"low_scores":     snap.LowScoreCount,
				"scored":         snap.ScoredEntries,
			},
			Timestamp: now,
		})
	}

	// Check the absolute count of records flagged for review.
	if a.cfg.ReviewBacklogThreshold > 0 && snap.LowScoreCount > a.cfg.ReviewBacklogThreshold {
		alerts = append(alerts, Alert{
			Type:     AlertReviewBacklog,
			Severity: "medium",
			Message: fmt.Sprintf(
				"%d record(s) scored below %d in last %dh",
				snap.LowScoreCount, reviewThreshold, snap.LookbackHours,
			),
			Details: map[string]any{
				"low_scores":  snap.LowScoreCount,
				"validations": snap.ValidationsTotal,
				"syncs":       snap.SyncsTotal,
			},
			Timestamp: now,
		})
	}

	return alerts
}

// SendAlerts delivers alerts to the configured webhook URL.
// Returns the number of alerts successfully sent.
func (a *Alerter) SendAlerts(ctx context.Context, alerts []Alert) int {
	if a.cfg.WebhookURL == "" || len(alerts) == 0 {
		return 0
	}

	sent := 0
	for _, alert := range alerts {
		if err := a.sendWebhook(ctx, alert); err != nil {
			zap.L().Error("monitoring: failed to send alert",
				zap.String("type", string(alert.Type)),
				zap.Error(err),
			)
			continue
		}
		zap.L().Info("monitoring: alert sent",
			zap.String("type", string(alert.Type)),
			zap.String("severity", alert.Severity),
		)
		sent++
	}
	return sent
}

// sendWebhook posts a single alert to the webhook URL.
func (a *Alerter) sendWebhook(ctx context.Context, alert Alert) error {
	payload, err := json.Marshal(alert)
	if err != nil {
		return eris.Wrap(err, "monitoring: marshal alert")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.cfg.WebhookURL, bytes.NewReader(payload))
	if err != nil {
		return eris.Wrap(err, "monitoring: create webhook request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return eris.Wrap(err, "monitoring: webhook request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode >= 400 {
		return eris.Errorf("monitoring: webhook returned status %d", resp.StatusCode)
	}
	return nil
}
