// Package explain derives human-readable incident titles and narrative
// summaries from a cluster of correlated alerts. Output is fully
// deterministic so repeated rebuilds of the same alert set produce
// byte-identical incidents.
package explain

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/linnemanlabs/argus/internal/alert"
)

const (
	maxKeySignals = 3
	maxActions    = 6

	genericHint   = "Suspicious activity detected that may require investigation."
	genericAction = "Investigate the alert and validate whether activity is expected"
)

// attackHints explain what each known alert type typically indicates.
var attackHints = map[string]string{
	"iam_key_created":        "A new cloud access key was created, which can indicate credential abuse or persistence.",
	"suspicious_powershell":  "Suspicious PowerShell execution may indicate attacker living-off-the-land techniques.",
	"impossible_travel":      "A login from an unusual region may indicate stolen credentials or VPN misuse.",
	"c2_outbound":            "Outbound traffic to suspicious infrastructure may indicate command-and-control activity.",
	"multiple_failed_logins": "Repeated failures may indicate brute force or password spraying.",
	"s3_public":              "Public storage exposure is a common data leak misconfiguration.",
}

// nextActions lists the recommended response per known alert type.
var nextActions = map[string][]string{
	"iam_key_created":        {"Disable the newly created key", "Rotate credentials for the affected identity", "Review CloudTrail for follow-on actions"},
	"suspicious_powershell":  {"Isolate the endpoint", "Collect process tree and PowerShell transcript", "Hunt for similar commands across fleet"},
	"impossible_travel":      {"Force password reset / MFA step-up", "Review recent sessions and token issuance", "Check device fingerprint changes"},
	"c2_outbound":            {"Block destination IP/domain", "Inspect DNS logs for related domains", "Capture pcap if available"},
	"multiple_failed_logins": {"Enable temporary lockout / rate limit", "Check for sprayed accounts", "Review source IP reputation"},
	"s3_public":              {"Revert bucket policy/ACL", "Scan access logs for downloads", "Check for sensitive objects exposure"},
}

// Title names an incident after its most frequent alert type (ties
// broken by first-encountered order), humanized, with the first
// non-empty user and host appended as labeled fragments.
func Title(alerts []*alert.Record) string {
	top := topTypes(alerts, 1)
	if len(top) == 0 {
		return "Empty Incident"
	}

	parts := []string{humanize(top[0])}
	if user := firstNonEmpty(alerts, func(a *alert.Record) string { return a.User }); user != "" {
		parts = append(parts, "user="+user)
	}
	if host := firstNonEmpty(alerts, func(a *alert.Record) string { return a.Host }); host != "" {
		parts = append(parts, "host="+host)
	}
	return strings.Join(parts, " | ")
}

// Summary builds the narrative bullet summary: a severity/risk/
// confidence header, the distinct sources, the key signals with their
// hints, and up to six de-duplicated recommended actions.
func Summary(alerts []*alert.Record, severity string, confidence, risk float64) string {
	var sources []string
	seen := make(map[string]struct{})
	for _, a := range alerts {
		if _, ok := seen[a.Source]; ok {
			continue
		}
		seen[a.Source] = struct{}{}
		sources = append(sources, a.Source)
	}
	sort.Strings(sources)

	top := topTypes(alerts, maxKeySignals)

	var b []string
	b = append(b, fmt.Sprintf("Incident severity: %s | risk score: %s/100 | confidence: %.2f",
		strings.ToUpper(severity), formatRisk(risk), confidence))
	b = append(b, "Signals observed from sources: "+strings.Join(sources, ", "))
	b = append(b, "Key signals:")
	for _, t := range top {
		hint, ok := attackHints[t]
		if !ok {
			hint = genericHint
		}
		b = append(b, fmt.Sprintf("- %s: %s", t, hint))
	}

	b = append(b, "Recommended next actions (ranked):")
	for _, r := range Actions(top) {
		b = append(b, "- "+r)
	}

	return strings.Join(b, "\n")
}

// formatRisk renders a risk score with at least one decimal place and
// no trailing zero beyond it: 23.0, 78.5, 89.75.
func formatRisk(risk float64) string {
	s := strconv.FormatFloat(risk, 'f', 2, 64)
	return strings.TrimSuffix(s, "0")
}

// Actions gathers recommended actions for the given alert types,
// de-duplicated preserving first occurrence and capped at six entries.
// Unrecognized types contribute a single generic action.
func Actions(types []string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, t := range types {
		acts, ok := nextActions[t]
		if !ok {
			acts = []string{genericAction}
		}
		for _, a := range acts {
			if _, dup := seen[a]; dup {
				continue
			}
			seen[a] = struct{}{}
			out = append(out, a)
		}
	}
	if len(out) > maxActions {
		out = out[:maxActions]
	}
	return out
}

// topTypes returns up to n alert types ranked by frequency, ties broken
// by first-encountered order.
func topTypes(alerts []*alert.Record, n int) []string {
	counts := make(map[string]int, len(alerts))
	var order []string
	for _, a := range alerts {
		if counts[a.AlertType] == 0 {
			order = append(order, a.AlertType)
		}
		counts[a.AlertType]++
	}

	sort.SliceStable(order, func(i, j int) bool {
		return counts[order[i]] > counts[order[j]]
	})

	if len(order) > n {
		order = order[:n]
	}
	return order
}

func humanize(alertType string) string {
	words := strings.Split(strings.ReplaceAll(alertType, "_", " "), " ")
	for i, w := range words {
		if w == "" {
			continue
		}
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

func firstNonEmpty(alerts []*alert.Record, get func(*alert.Record) string) string {
	for _, a := range alerts {
		if v := get(a); v != "" {
			return v
		}
	}
	return ""
}
