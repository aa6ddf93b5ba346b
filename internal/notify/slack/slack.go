// Package slack posts incident notifications to Slack via incoming
// webhooks.
package slack

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/linnemanlabs/argus/internal/incident"
)

const (
	maxSummaryLen = 3000
	httpTimeout   = 10 * time.Second
)

// Notifier sends new incidents to a Slack webhook.
type Notifier struct {
	webhookURL string
	client     *http.Client
}

// New creates a new Slack notifier. If webhookURL is empty, Notify is a
// no-op.
func New(webhookURL string) *Notifier {
	return &Notifier{
		webhookURL: webhookURL,
		client:     &http.Client{Timeout: httpTimeout},
	}
}

// Notify posts an incident to the configured Slack webhook.
// If no webhook URL is configured, it returns nil immediately.
func (n *Notifier) Notify(ctx context.Context, inc *incident.Incident) error {
	if n.webhookURL == "" {
		return nil
	}

	msg := buildMessage(inc)

	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("slack: marshal message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("slack: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req) //nolint:gosec // G704: webhookURL is from trusted config, not user input
	if err != nil {
		return fmt.Errorf("slack: post webhook: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("slack: webhook returned %d: %s", resp.StatusCode, string(respBody))
	}
	return nil
}

func buildMessage(inc *incident.Incident) map[string]any {
	return map[string]any{
		"blocks": []map[string]any{
			headerBlock(inc),
			{"type": "divider"},
			fieldsBlock(inc),
			{"type": "divider"},
			summaryBlock(inc),
			{"type": "divider"},
			contextBlock(inc),
		},
	}
}

func headerBlock(inc *incident.Incident) map[string]any {
	text := fmt.Sprintf("%s New Incident: %s", severityEmoji(inc.Severity), inc.Title)

	return map[string]any{
		"type": "header",
		"text": map[string]any{
			"type": "plain_text",
			"text": text,
		},
	}
}

func fieldsBlock(inc *incident.Incident) map[string]any {
	fields := []map[string]any{
		{
			"type": "mrkdwn",
			"text": fmt.Sprintf("*Severity:* %s", inc.Severity),
		},
		{
			"type": "mrkdwn",
			"text": fmt.Sprintf("*Risk:* %.2f/100", inc.RiskScore),
		},
		{
			"type": "mrkdwn",
			"text": fmt.Sprintf("*Confidence:* %.2f", inc.Confidence),
		},
		{
			"type": "mrkdwn",
			"text": fmt.Sprintf("*Alerts:* %d", len(inc.AlertIDs)),
		},
		{
			"type": "mrkdwn",
			"text": fmt.Sprintf("*MITRE:* %s", mitreList(inc.Mitre)),
		},
	}

	return map[string]any{
		"type":   "section",
		"fields": fields,
	}
}

func summaryBlock(inc *incident.Incident) map[string]any {
	text := truncate(inc.Summary, maxSummaryLen)
	if text == "" {
		text = "_No summary available._"
	}

	return map[string]any{
		"type": "section",
		"text": map[string]any{
			"type": "mrkdwn",
			"text": fmt.Sprintf("*Summary*\n\n%s", text),
		},
	}
}

func contextBlock(inc *incident.Incident) map[string]any {
	elements := []map[string]any{
		{
			"type": "mrkdwn",
			"text": fmt.Sprintf("argus • incident %s • %s", inc.ID, inc.CreatedAt.UTC().Format("2006-01-02 15:04 UTC")),
		},
	}

	return map[string]any{
		"type":     "context",
		"elements": elements,
	}
}

func severityEmoji(severity string) string {
	switch strings.ToLower(severity) {
	case "critical":
		return "\U0001f534" // red circle
	case "high":
		return "\U0001f7e0" // orange circle
	case "medium":
		return "\U0001f7e1" // yellow circle
	default:
		return "\U0001f7e2" // green circle
	}
}

func mitreList(ids []string) string {
	if len(ids) == 0 {
		return "none"
	}
	return strings.Join(ids, ", ")
}

func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit-3] + "..."
}
