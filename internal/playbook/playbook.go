// Package playbook maps alert types to remediation steps and MITRE
// ATT&CK techniques. Both mappings are static exact lookups loaded once
// at process start: unknown types simply contribute nothing.
package playbook

// Step is one suggested remediation action with its operational cost.
type Step struct {
	Action string `json:"action"`
	Risk   string `json:"risk"`
	Impact string `json:"impact"`
}

// steps holds the per-alert-type remediation playbooks.
var steps = map[string][]Step{
	"iam_key_created": {
		{Action: "disable_iam_key", Risk: "low", Impact: "Blocks use of the new credential immediately"},
		{Action: "rotate_credentials", Risk: "medium", Impact: "Invalidates any stolen secrets for the identity"},
		{Action: "review_cloudtrail", Risk: "low", Impact: "Surfaces follow-on actions taken with the key"},
	},
	"suspicious_powershell": {
		{Action: "isolate_host", Risk: "high", Impact: "Cuts attacker access; interrupts user work on the host"},
		{Action: "collect_forensics", Risk: "low", Impact: "Preserves process tree and script content for analysis"},
		{Action: "fleet_hunt", Risk: "low", Impact: "Finds the same tradecraft on other endpoints"},
	},
	"impossible_travel": {
		{Action: "force_password_reset", Risk: "medium", Impact: "Ends sessions backed by stolen credentials"},
		{Action: "revoke_sessions", Risk: "medium", Impact: "Invalidates issued tokens and refresh grants"},
	},
	"c2_outbound": {
		{Action: "block_ip", Risk: "medium", Impact: "Severs the command-and-control channel"},
		{Action: "isolate_host", Risk: "high", Impact: "Cuts attacker access; interrupts user work on the host"},
		{Action: "capture_traffic", Risk: "low", Impact: "Records beacon behavior for attribution"},
	},
	"multiple_failed_logins": {
		{Action: "rate_limit_auth", Risk: "low", Impact: "Slows the spray without locking out real users"},
		{Action: "review_ip_reputation", Risk: "low", Impact: "Identifies known-bad source infrastructure"},
		{Action: "force_password_reset", Risk: "medium", Impact: "Ends sessions backed by stolen credentials"},
	},
	"s3_public": {
		{Action: "revert_bucket_policy", Risk: "low", Impact: "Removes the public exposure"},
		{Action: "audit_access_logs", Risk: "low", Impact: "Determines whether exposed objects were downloaded"},
	},
}

// techniques maps alert types to ATT&CK technique identifiers.
var techniques = map[string][]string{
	"iam_key_created":        {"T1098.001", "T1078.004"},
	"suspicious_powershell":  {"T1059.001"},
	"impossible_travel":      {"T1078"},
	"c2_outbound":            {"T1071", "T1571"},
	"multiple_failed_logins": {"T1110"},
	"s3_public":              {"T1530"},
}

// Steps concatenates the playbooks for the given alert types and
// de-duplicates by action, first occurrence wins. Step order follows
// the order of the input types, so callers wanting a stable cross-run
// order must pass the types in a fixed order.
func Steps(types []string) []Step {
	seen := make(map[string]struct{})
	var out []Step
	for _, t := range types {
		for _, s := range steps[t] {
			if _, dup := seen[s.Action]; dup {
				continue
			}
			seen[s.Action] = struct{}{}
			out = append(out, s)
		}
	}
	return out
}

// Techniques returns the ATT&CK technique IDs for the given alert
// types, de-duplicated preserving first occurrence. Unknown types map
// to nothing; there is deliberately no partial or fuzzy matching.
func Techniques(types []string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, t := range types {
		for _, id := range techniques[t] {
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
			out = append(out, id)
		}
	}
	return out
}
