package score

import (
	"fmt"
	"math"

	"github.com/linnemanlabs/argus/internal/alert"
)

// qualitySeverityWeights are the fixed weights for the correlation
// quality heuristic, distinct from the risk severity weights.
var qualitySeverityWeights = map[string]float64{
	alert.SeverityLow:      0.2,
	alert.SeverityMedium:   0.4,
	alert.SeverityHigh:     0.7,
	alert.SeverityCritical: 0.9,
}

// qualityNextSteps is the static guidance attached to every quality
// assessment of a populated incident.
var qualityNextSteps = []string{
	"Validate scope and affected assets",
	"Check IAM changes, security group rules, and public exposures",
	"Contain: isolate compromised identities or endpoints",
	"Collect evidence: logs, CloudTrail, auth logs, network flow",
	"Eradicate and remediate: rotate keys, patch, tighten policies",
}

// QualityResult is the outcome of the correlation quality check.
type QualityResult struct {
	Score     float64  `json:"score"`
	Reason    string   `json:"reason"`
	NextSteps []string `json:"recommended_next_steps"`
}

// Quality is the simpler companion heuristic scoring how well an
// incident's current alert set hangs together: fixed weights over the
// incident severity, the incident confidence, and signal diversity
// (distinct alert types, capped at 5). The score lands in [0, 1].
func Quality(severity string, confidence float64, alerts []*alert.Record) QualityResult {
	if len(alerts) == 0 {
		return QualityResult{
			Score:     0.2,
			Reason:    "No alerts associated with this incident yet.",
			NextSteps: []string{"Ingest alerts", "Verify ingestion pipeline"},
		}
	}

	sevWeight, ok := qualitySeverityWeights[severity]
	if !ok {
		sevWeight = qualitySeverityWeights[alert.SeverityMedium]
	}

	signals := make(map[string]struct{}, len(alerts))
	for _, a := range alerts {
		signals[a.AlertType] = struct{}{}
	}
	diversity := math.Min(float64(len(signals))/5.0, 1.0)

	s := 0.45*sevWeight + 0.40*confidence + 0.15*diversity

	return QualityResult{
		Score: math.Round(s*1000) / 1000,
		Reason: fmt.Sprintf("Severity=%s, Alerts=%d, Confidence=%.2f, UniqueSignals=%d",
			severity, len(alerts), confidence, len(signals)),
		NextSteps: append([]string(nil), qualityNextSteps...),
	}
}
