// Package cfg holds the application-level configuration for the Argus
// server, following the go-core RegisterFlags/Validate convention.
package cfg

import (
	"errors"
	"flag"
	"fmt"
	"time"
)

// Config adds app-specific configuration fields to the common
// cfg.Registerable and cfg.Validatable interfaces.
type Config struct {
	DrainSeconds          int
	ShutdownBudgetSeconds int
	APIPort               int
	DatabaseURL           string
	SlackWebhookURL       string
	ClaudeAPIKey          string
	ClaudeModel           string
	CorrelationWindow     time.Duration
	TypeAffinityWindow    time.Duration
}

// RegisterFlags binds Config fields to the given FlagSet with defaults inline.
func (c *Config) RegisterFlags(fs *flag.FlagSet) {
	fs.IntVar(&c.DrainSeconds, "drain-seconds", 60, "seconds to wait for in-flight requests to drain before shutdown (1..300)")
	fs.IntVar(&c.ShutdownBudgetSeconds, "shutdown-budget-seconds", 90, "total seconds for component shutdown after drain (1..300)")
	fs.IntVar(&c.APIPort, "http-port", 8080, "API listen TCP port (1..65535)")
	fs.StringVar(&c.DatabaseURL, "database-url", "", "PostgreSQL connection URL (empty = in-memory store)")
	fs.StringVar(&c.SlackWebhookURL, "slack-webhook-url", "", "Slack webhook URL for new-incident notifications")
	fs.StringVar(&c.ClaudeAPIKey, "claude-api-key", "", "API key for the Claude analyst-assist provider (empty = assist disabled)")
	fs.StringVar(&c.ClaudeModel, "claude-model", "claude-sonnet-4-20250514", "Claude model for analyst assist")
	fs.DurationVar(&c.CorrelationWindow, "correlation-window", 30*time.Minute, "window for joining an alert to a cluster on a shared user/host/ip")
	fs.DurationVar(&c.TypeAffinityWindow, "type-affinity-window", 10*time.Minute, "tighter window for joining on a shared alert type alone")
}

// Validate checks all configuration fields for correctness.
// It returns an error if any field is invalid, or nil if all fields are valid.
func (c *Config) Validate() error {
	var errs []error

	if c.DrainSeconds <= 0 || c.DrainSeconds > 300 {
		errs = append(errs, fmt.Errorf("invalid DRAIN_SECONDS %d (must be 1..300)", c.DrainSeconds))
	}
	if c.ShutdownBudgetSeconds <= 0 || c.ShutdownBudgetSeconds > 300 {
		errs = append(errs, fmt.Errorf("invalid SHUTDOWN_BUDGET_SECONDS %d (must be 1..300)", c.ShutdownBudgetSeconds))
	}
	if c.ShutdownBudgetSeconds <= c.DrainSeconds {
		errs = append(errs, fmt.Errorf("SHUTDOWN_BUDGET_SECONDS %d must be greater than DRAIN_SECONDS %d", c.ShutdownBudgetSeconds, c.DrainSeconds))
	}

	if c.APIPort <= 0 || c.APIPort > 65535 {
		errs = append(errs, fmt.Errorf("invalid HTTP_PORT %d (must be 1..65535)", c.APIPort))
	}

	if c.CorrelationWindow <= 0 {
		errs = append(errs, fmt.Errorf("invalid CORRELATION_WINDOW %v (must be positive)", c.CorrelationWindow))
	}
	if c.TypeAffinityWindow <= 0 {
		errs = append(errs, fmt.Errorf("invalid TYPE_AFFINITY_WINDOW %v (must be positive)", c.TypeAffinityWindow))
	}
	if c.TypeAffinityWindow > c.CorrelationWindow {
		errs = append(errs, fmt.Errorf("TYPE_AFFINITY_WINDOW %v must not exceed CORRELATION_WINDOW %v", c.TypeAffinityWindow, c.CorrelationWindow))
	}

	// Assist is optional, but a key without a model is a broken config.
	if c.ClaudeAPIKey != "" && c.ClaudeModel == "" {
		errs = append(errs, errors.New("CLAUDE_MODEL is required when CLAUDE_API_KEY is set"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}
