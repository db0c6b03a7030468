// Package monitoring raises threshold alerts on finished compliance
// analyses and delivers them to a webhook.
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

	"github.com/sells-group/compliance-cli/internal/compliance"
	"github.com/sells-group/compliance-cli/internal/config"
	"github.com/sells-group/compliance-cli/internal/model"
)

// AlertType identifies the kind of alert.
type AlertType string

const (
	AlertLowCompliance AlertType = "low_compliance_rate"
	AlertHighRiskShare AlertType = "high_risk_share"
	AlertEPCOnly       AlertType = "epc_not_registered"
)

// Alert represents a single alert to be sent.
type Alert struct {
	Type      AlertType      `json:"type"`
	Severity  string         `json:"severity"`
	Analysis  string         `json:"analysis,omitempty"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// Alerter evaluates an analysis summary against configured thresholds
// and sends alerts via webhook when thresholds are breached.
type Alerter struct {
	cfg    config.MonitoringConfig
	client *http.Client
	now    func() time.Time
}

// NewAlerter creates a new Alerter with the given monitoring config.
func NewAlerter(cfg config.MonitoringConfig) *Alerter {
	timeout := time.Duration(cfg.WebhookTimeoutSecs) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Alerter{
		cfg:    cfg,
		client: &http.Client{Timeout: timeout},
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Enabled reports whether alerts have somewhere to go.
func (a *Alerter) Enabled() bool {
	return a != nil && a.cfg.WebhookURL != ""
}

// Evaluate checks the summary against thresholds and returns any alerts.
// Summaries smaller than MinBuildings are too small to judge.
func (a *Alerter) Evaluate(id string, s compliance.Summary) []Alert {
	if s.Total == 0 || s.Total < a.cfg.MinBuildings {
		return nil
	}

	var alerts []Alert
	now := a.now()

	if s.ComplianceRate < a.cfg.MinComplianceRate {
		alerts = append(alerts, Alert{
			Type:     AlertLowCompliance,
			Severity: "high",
			Analysis: id,
			Message: fmt.Sprintf(
				"Compliance rate %.1f%% is below threshold %.1f%% (%d of %d buildings hold an EPC)",
				s.ComplianceRate*100, a.cfg.MinComplianceRate*100, s.Compliant, s.Total,
			),
			Details: map[string]any{
				"compliance_rate": s.ComplianceRate,
				"threshold":       a.cfg.MinComplianceRate,
				"compliant":       s.Compliant,
				"total":           s.Total,
			},
			Timestamp: now,
		})
	}

	high := s.ByCategory[model.RiskHigh]
	share := float64(high) / float64(s.Total)
	if a.cfg.MaxHighRiskShare > 0 && share > a.cfg.MaxHighRiskShare {
		alerts = append(alerts, Alert{
			Type:     AlertHighRiskShare,
			Severity: "medium",
			Analysis: id,
			Message: fmt.Sprintf(
				"%d HIGH risk buildings (%.1f%%) exceed threshold %.1f%%",
				high, share*100, a.cfg.MaxHighRiskShare*100,
			),
			Details: map[string]any{
				"high_risk": high,
				"share":     share,
				"threshold": a.cfg.MaxHighRiskShare,
			},
			Timestamp: now,
		})
	}

	if a.cfg.MaxEPCOnly > 0 && s.EPCNotRegistered > a.cfg.MaxEPCOnly {
		alerts = append(alerts, Alert{
			Type:     AlertEPCOnly,
			Severity: "low",
			Analysis: id,
			Message: fmt.Sprintf(
				"%d EPCs were issued to buildings missing from the registry (threshold %d)",
				s.EPCNotRegistered, a.cfg.MaxEPCOnly,
			),
			Details: map[string]any{
				"epc_only":  s.EPCNotRegistered,
				"threshold": a.cfg.MaxEPCOnly,
			},
			Timestamp: now,
		})
	}

	return alerts
}

// Notify evaluates the summary and sends any resulting alerts. Returns the
// number of alerts successfully sent.
func (a *Alerter) Notify(ctx context.Context, id string, s compliance.Summary) int {
	if !a.Enabled() {
		return 0
	}
	return a.SendAlerts(ctx, a.Evaluate(id, s))
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
			zap.String("analysis", alert.Analysis),
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
