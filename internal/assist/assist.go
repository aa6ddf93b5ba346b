// Package assist drafts analyst notes for an incident using an LLM
// provider. It sits outside the scoring pipeline: the deterministic
// summary is the input to the draft, never the other way around.
package assist

import (
	"context"
	"fmt"
	"strings"

	"github.com/linnemanlabs/go-core/log"

	"github.com/linnemanlabs/argus/internal/incident"
)

// Provider is the single-shot LLM interface the drafter needs.
type Provider interface {
	Draft(ctx context.Context, system, prompt string) (string, error)
}

// Drafter turns an incident into drafted analyst notes.
type Drafter struct {
	provider Provider
	logger   log.Logger
}

// New creates a Drafter. provider may be nil, in which case Draft
// reports ErrNotConfigured.
func New(provider Provider, logger log.Logger) *Drafter {
	if logger == nil {
		logger = log.Nop()
	}
	return &Drafter{provider: provider, logger: logger}
}

// ErrNotConfigured is returned when no LLM provider is configured.
var ErrNotConfigured = fmt.Errorf("assist: no llm provider configured")

// Enabled reports whether an LLM provider is configured.
func (d *Drafter) Enabled() bool { return d.provider != nil }

// Draft produces analyst-notes text for the incident.
func (d *Drafter) Draft(ctx context.Context, det *incident.Detail) (string, error) {
	if d.provider == nil {
		return "", ErrNotConfigured
	}

	text, err := d.provider.Draft(ctx, systemPrompt, buildPrompt(det))
	if err != nil {
		return "", err
	}

	d.logger.Info(ctx, "assist draft complete",
		"incident_id", det.ID,
		"chars", len(text),
	)
	return text, nil
}

const systemPrompt = `You are a SOC analyst assistant. You are given a correlated security
incident with its deterministic scoring and summary. Draft concise
analyst notes: what likely happened, what to verify first, and what to
do next. Do not restate the scores; add judgment on top of them. Plain
text, short paragraphs, no markdown headers.`

func buildPrompt(det *incident.Detail) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Incident: %s\n", det.Title)
	fmt.Fprintf(&b, "Severity: %s | Risk: %.2f/100 | Confidence: %.2f\n", det.Severity, det.RiskScore, det.Confidence)
	if len(det.Mitre) > 0 {
		fmt.Fprintf(&b, "MITRE techniques: %s\n", strings.Join(det.Mitre, ", "))
	}
	fmt.Fprintf(&b, "\nPipeline summary:\n%s\n", det.Summary)

	fmt.Fprintf(&b, "\nAlerts (%d):\n", len(det.Alerts))
	for _, a := range det.Alerts {
		fmt.Fprintf(&b, "- [%s] %s from %s severity=%s user=%q host=%q ip=%q: %s\n",
			a.TS.UTC().Format("2006-01-02 15:04:05"), a.AlertType, a.Source, a.Severity,
			a.User, a.Host, a.IP, a.Message)
	}

	b.WriteString("\nDraft the analyst notes now.")
	return b.String()
}
