// Package score computes deterministic confidence, risk, and severity
// labels for a cluster of correlated alerts. All functions are pure:
// identical cluster contents always produce identical scores, which is
// what makes full rebuilds idempotent.
package score

import (
	"math"

	"github.com/linnemanlabs/argus/internal/alert"
)

// severityWeights feed the risk formula. Unknown severities score as
// medium rather than failing.
var severityWeights = map[string]float64{
	alert.SeverityLow:      15,
	alert.SeverityMedium:   35,
	alert.SeverityHigh:     60,
	alert.SeverityCritical: 85,
}

// tierBoosts raise risk for alerts touching critical assets.
var tierBoosts = map[string]float64{
	alert.TierNormal:     0,
	alert.TierImportant:  10,
	alert.TierCrownJewel: 20,
}

const (
	confidenceBase  = 0.45
	confidenceFloor = 0.05
	confidenceCap   = 0.98

	perSourceBonus = 0.08 // up to +0.32 across 4 sources
	perHighBonus   = 0.06 // up to +0.30 across 5 high/critical alerts

	maxBonusSources = 4
	maxBonusHighSev = 5
)

// Confidence scores analyst trust in a cluster on [0.05, 0.98]. More
// corroborating sources and more severe signals raise it, both capped
// so a noisy burst cannot inflate confidence without bound.
func Confidence(alerts []*alert.Record) float64 {
	sources := make(map[string]struct{}, len(alerts))
	highCount := 0
	for _, a := range alerts {
		sources[a.Source] = struct{}{}
		if a.Severity == alert.SeverityHigh || a.Severity == alert.SeverityCritical {
			highCount++
		}
	}

	c := confidenceBase
	c += perSourceBonus * float64(min(len(sources), maxBonusSources))
	c += perHighBonus * float64(min(highCount, maxBonusHighSev))

	return clamp(c, confidenceFloor, confidenceCap)
}

// Risk scores a cluster on [0, 100] from its worst severity, the
// confidence in the grouping, and the most critical asset tier touched.
// The result is rounded to two decimals.
func Risk(alerts []*alert.Record, confidence float64) float64 {
	var maxSev, maxTier float64
	for _, a := range alerts {
		maxSev = math.Max(maxSev, SeverityWeight(a.Severity))
		maxTier = math.Max(maxTier, tierBoosts[a.AssetTier])
	}

	risk := 0.65*maxSev + 0.25*(confidence*100) + 0.10*(maxTier*5)
	return math.Round(clamp(risk, 0, 100)*100) / 100
}

// Label maps a final risk score to a severity label. Lower bounds are
// inclusive.
func Label(risk float64) string {
	switch {
	case risk >= 80:
		return alert.SeverityCritical
	case risk >= 60:
		return alert.SeverityHigh
	case risk >= 35:
		return alert.SeverityMedium
	default:
		return alert.SeverityLow
	}
}

// SeverityWeight returns the risk weight for a severity string, with
// unknown values scoring as medium.
func SeverityWeight(severity string) float64 {
	if w, ok := severityWeights[severity]; ok {
		return w
	}
	return severityWeights[alert.SeverityMedium]
}

func clamp(v, lo, hi float64) float64 {
	return math.Min(math.Max(v, lo), hi)
}
