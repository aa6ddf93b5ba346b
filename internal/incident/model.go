package incident

import "time"

// Status tracks where an incident is in the analyst workflow.
type Status string

const (
	// StatusOpen means newly created, not yet acted on
	StatusOpen Status = "open"

	// StatusTriaged means at least one remediation action was taken
	StatusTriaged Status = "triaged"

	// StatusClosed means manually closed by an analyst
	StatusClosed Status = "closed"
)

// Verdict is the analyst's disposition of an incident.
type Verdict string

const (
	VerdictUnknown       Verdict = "unknown"
	VerdictTruePositive  Verdict = "true_positive"
	VerdictFalsePositive Verdict = "false_positive"
)

// Incident is a persisted group of correlated alerts with derived
// severity, confidence, and risk. Created exactly once per cluster
// during a rebuild; analyst fields are updated in place afterwards.
type Incident struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`

	Title   string `json:"title"`
	Summary string `json:"summary"`

	Severity   string  `json:"severity"`
	Confidence float64 `json:"confidence"` // 0..1
	RiskScore  float64 `json:"risk_score"` // 0..100

	Status       Status  `json:"status"`
	Verdict      Verdict `json:"analyst_verdict"`
	AnalystNotes string  `json:"analyst_notes"`

	// Mitre holds the ATT&CK technique IDs derived from the incident's
	// alert types, for display.
	Mitre []string `json:"mitre"`

	// AlertIDs are the alerts linked to this incident, in cluster order.
	AlertIDs []string `json:"alert_ids"`
}

// Update carries the analyst-editable fields for an incident patch.
// Nil fields are left unchanged; AppendNote is appended to the
// existing notes rather than replacing them.
type Update struct {
	Status     *Status  `json:"status,omitempty"`
	Verdict    *Verdict `json:"analyst_verdict,omitempty"`
	AppendNote string   `json:"append_note,omitempty"`
}

// Validate rejects unknown status/verdict values on a patch.
func (u *Update) Validate() error {
	if u.Status != nil {
		switch *u.Status {
		case StatusOpen, StatusTriaged, StatusClosed:
		default:
			return &ValidationError{Field: "status", Value: string(*u.Status)}
		}
	}
	if u.Verdict != nil {
		switch *u.Verdict {
		case VerdictUnknown, VerdictTruePositive, VerdictFalsePositive:
		default:
			return &ValidationError{Field: "analyst_verdict", Value: string(*u.Verdict)}
		}
	}
	return nil
}

// ValidationError reports a rejected field value on an analyst update.
type ValidationError struct {
	Field string
	Value string
}

func (e *ValidationError) Error() string {
	return "invalid " + e.Field + ": " + e.Value
}
