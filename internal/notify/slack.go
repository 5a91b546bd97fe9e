// Package notify delivers alerts to the external notification channel.
// Delivery is best-effort: failures are logged and absorbed, never
// propagated back into the analysis pipeline.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/Nash0810/failsafe/internal/analyzer"
	"github.com/Nash0810/failsafe/internal/logging"
)

// Notifier sends one alert to the external channel
type Notifier interface {
	Notify(ctx context.Context, alert analyzer.Alert) error
}

// SlackNotifier posts alerts to a Slack incoming webhook
type SlackNotifier struct {
	webhookURL string
	client     *http.Client
	logger     *logging.Logger
}

// NewSlackNotifier creates a webhook notifier
func NewSlackNotifier(webhookURL string, logger *logging.Logger) *SlackNotifier {
	return &SlackNotifier{
		webhookURL: webhookURL,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
		logger: logger,
	}
}

type slackMessage struct {
	Text        string            `json:"text"`
	Attachments []slackAttachment `json:"attachments,omitempty"`
}

type slackAttachment struct {
	Color  string       `json:"color"`
	Fields []slackField `json:"fields"`
}

type slackField struct {
	Title string `json:"title"`
	Value string `json:"value"`
	Short bool   `json:"short"`
}

// Notify posts one alert to the webhook
func (n *SlackNotifier) Notify(ctx context.Context, alert analyzer.Alert) error {
	payload, err := json.Marshal(buildMessage(alert))
	if err != nil {
		return fmt.Errorf("failed to encode alert: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.webhookURL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook delivery failed: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}

// buildMessage formats the per-kind Slack payload
func buildMessage(alert analyzer.Alert) slackMessage {
	ts := alert.Time.UTC().Format("2006-01-02 15:04:05 UTC")

	switch alert.Kind {
	case analyzer.KindFailover:
		return slackMessage{
			Text: ":arrows_counterclockwise: *Blue/Green Failover Detected*",
			Attachments: []slackAttachment{{
				Color: "warning",
				Fields: []slackField{
					{Title: "Pool Change", Value: fmt.Sprintf("%s → %s",
						titleCase(alert.PreviousPool), titleCase(alert.CurrentPool)), Short: true},
					{Title: "Timestamp", Value: ts, Short: true},
					{Title: "Action Required", Value: fmt.Sprintf(
						"Check health of %s pool containers", alert.PreviousPool), Short: false},
				},
			}},
		}

	case analyzer.KindErrorRate:
		return slackMessage{
			Text: ":rotating_light: *High Error Rate Detected*",
			Attachments: []slackAttachment{{
				Color: "danger",
				Fields: []slackField{
					{Title: "Error Rate", Value: fmt.Sprintf("%.2f%%", alert.RatePercent), Short: true},
					{Title: "Window", Value: fmt.Sprintf("%d/%d requests",
						alert.Errors, alert.WindowSize), Short: true},
					{Title: "Timestamp", Value: ts, Short: true},
					{Title: "Action Required", Value: "Inspect upstream logs and consider pool toggle", Short: false},
				},
			}},
		}

	case analyzer.KindRecovery:
		pool := alert.CurrentPool
		if pool == "" {
			pool = "active"
		}
		return slackMessage{
			Text: ":white_check_mark: *Service Recovery Detected*",
			Attachments: []slackAttachment{{
				Color: "good",
				Fields: []slackField{
					{Title: "Status", Value: fmt.Sprintf(
						"%s pool is serving traffic normally", titleCase(pool)), Short: true},
					{Title: "Timestamp", Value: ts, Short: true},
				},
			}},
		}
	}

	return slackMessage{Text: fmt.Sprintf("%s alert at %s", alert.Kind, ts)}
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
