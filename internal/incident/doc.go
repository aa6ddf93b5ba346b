// Package incident provides the business boundary for Argus's incident
// pipeline. It defines the Service (rebuild orchestration, analyst
// actions, quality checks), the Store interface (persistence), and the
// domain models. The correlation/scoring/explanation computation itself
// lives in the pure correlate, score, explain, and playbook packages.
package incident
