package cfg

import (
	"flag"
	"strings"
	"testing"
	"time"
)

func validConfig() Config {
	return Config{
		DrainSeconds:          60,
		ShutdownBudgetSeconds: 90,
		APIPort:               8080,
		ClaudeModel:           "claude-sonnet-4-20250514",
		CorrelationWindow:     30 * time.Minute,
		TypeAffinityWindow:    10 * time.Minute,
	}
}

func TestRegisterFlags_Defaults(t *testing.T) {
	t.Parallel()

	var c Config
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	c.RegisterFlags(fs)
	if err := fs.Parse(nil); err != nil {
		t.Fatalf("Parse: %v", err)
	}

	if c.DrainSeconds != 60 || c.ShutdownBudgetSeconds != 90 || c.APIPort != 8080 {
		t.Errorf("defaults = %+v", c)
	}
	if c.CorrelationWindow != 30*time.Minute || c.TypeAffinityWindow != 10*time.Minute {
		t.Errorf("window defaults = %v/%v, want 30m/10m", c.CorrelationWindow, c.TypeAffinityWindow)
	}
	if c.DatabaseURL != "" || c.SlackWebhookURL != "" || c.ClaudeAPIKey != "" {
		t.Errorf("optional integrations must default off: %+v", c)
	}
	if err := c.Validate(); err != nil {
		t.Errorf("defaults must validate: %v", err)
	}
}

func TestRegisterFlags_Overrides(t *testing.T) {
	t.Parallel()

	var c Config
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	c.RegisterFlags(fs)
	err := fs.Parse([]string{
		"-http-port", "9090",
		"-database-url", "postgres://localhost/argus",
		"-correlation-window", "1h",
		"-type-affinity-window", "5m",
	})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if c.APIPort != 9090 || c.DatabaseURL != "postgres://localhost/argus" {
		t.Errorf("config = %+v", c)
	}
	if c.CorrelationWindow != time.Hour || c.TypeAffinityWindow != 5*time.Minute {
		t.Errorf("windows = %v/%v", c.CorrelationWindow, c.TypeAffinityWindow)
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(*Config) {}, ""},
		{"drain zero", func(c *Config) { c.DrainSeconds = 0 }, "DRAIN_SECONDS"},
		{"drain too large", func(c *Config) { c.DrainSeconds = 301 }, "DRAIN_SECONDS"},
		{"budget zero", func(c *Config) { c.ShutdownBudgetSeconds = 0 }, "SHUTDOWN_BUDGET_SECONDS"},
		{"budget not above drain", func(c *Config) { c.ShutdownBudgetSeconds = 60 }, "must be greater than DRAIN_SECONDS"},
		{"port zero", func(c *Config) { c.APIPort = 0 }, "HTTP_PORT"},
		{"port too large", func(c *Config) { c.APIPort = 70000 }, "HTTP_PORT"},
		{"correlation window zero", func(c *Config) { c.CorrelationWindow = 0 }, "CORRELATION_WINDOW"},
		{"type window zero", func(c *Config) { c.TypeAffinityWindow = 0 }, "TYPE_AFFINITY_WINDOW"},
		{
			"type window exceeds correlation window",
			func(c *Config) { c.TypeAffinityWindow = time.Hour },
			"must not exceed CORRELATION_WINDOW",
		},
		{
			"claude key without model",
			func(c *Config) { c.ClaudeAPIKey = "sk-test"; c.ClaudeModel = "" },
			"CLAUDE_MODEL is required",
		},
		{
			"claude key with model",
			func(c *Config) { c.ClaudeAPIKey = "sk-test" },
			"",
		},
		{
			"model without key is fine",
			func(c *Config) { c.ClaudeAPIKey = "" },
			"",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			c := validConfig()
			tt.mutate(&c)
			err := c.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %q, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestValidate_JoinsMultipleErrors(t *testing.T) {
	t.Parallel()

	c := Config{}
	err := c.Validate()
	if err == nil {
		t.Fatal("expected error")
	}
	for _, want := range []string{"DRAIN_SECONDS", "HTTP_PORT", "CORRELATION_WINDOW"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error = %q, missing %q", err, want)
		}
	}
}
