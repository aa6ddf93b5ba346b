// Package alert defines the canonical alert record ingested by Argus.
package alert

import (
	"errors"
	"fmt"
	"time"
)

// Severity levels recognized on incoming alerts. Unknown values are
// accepted and treated as medium-weight by the scorer.
const (
	SeverityLow      = "low"
	SeverityMedium   = "medium"
	SeverityHigh     = "high"
	SeverityCritical = "critical"
)

// Asset tiers classify the criticality of the affected host/resource.
const (
	TierNormal     = "normal"
	TierImportant  = "important"
	TierCrownJewel = "crown_jewel"
)

// Record is a single raw detection event from a security sensor.
//
// Severity and AlertType are always present; the identity fields
// (User, Host, IP) default to empty strings so set/grouping logic never
// sees a null-typed sentinel. IncidentID is set only after clustering
// and persistence.
type Record struct {
	ID         string    `json:"id,omitempty"`
	TS         time.Time `json:"ts"`
	Source     string    `json:"source"`
	AlertType  string    `json:"alert_type"`
	Severity   string    `json:"severity"`
	User       string    `json:"user,omitempty"`
	Host       string    `json:"host,omitempty"`
	IP         string    `json:"ip,omitempty"`
	AssetTier  string    `json:"asset_tier,omitempty"`
	Message    string    `json:"message"`
	Raw        string    `json:"raw,omitempty"`
	IncidentID string    `json:"incident_id,omitempty"`
}

// Validate checks the caller contract: severity and alert_type must be
// present. Other fields may be empty. It also fills the asset tier
// default so downstream scoring never branches on "".
func (r *Record) Validate() error {
	var errs []error

	if r.AlertType == "" {
		errs = append(errs, errors.New("alert_type is required"))
	}
	if r.Severity == "" {
		errs = append(errs, errors.New("severity is required"))
	}
	if r.Source == "" {
		errs = append(errs, errors.New("source is required"))
	}

	if r.AssetTier == "" {
		r.AssetTier = TierNormal
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid alert: %w", errors.Join(errs...))
	}
	return nil
}
