// Package correlate groups time-ordered alert records into clusters
// using entity and temporal proximity heuristics. The grouping is a
// greedy single pass: deterministic, stable, and order-sensitive by
// construction, which keeps rebuilds reproducible.
package correlate

import (
	"sort"
	"time"

	"github.com/linnemanlabs/argus/internal/alert"
)

// Config controls correlation behavior.
type Config struct {
	// Window is how far back an open cluster's last alert may be for an
	// entity match (shared user/host/ip) to join it.
	Window time.Duration

	// TypeWindow is the tighter window used when the only affinity is a
	// shared alert type with no shared entity.
	TypeWindow time.Duration
}

// Correlator clusters alerts into candidate incidents.
type Correlator struct {
	cfg Config
}

// Cluster is an ordered group of alerts produced by one correlation
// pass. It is transient: clusters exist only while an incident set is
// being rebuilt.
type Cluster struct {
	Alerts []*alert.Record

	lastTS time.Time
}

// New creates a Correlator, applying defaults for unset config values.
func New(cfg Config) *Correlator {
	if cfg.Window <= 0 {
		cfg.Window = 30 * time.Minute
	}
	if cfg.TypeWindow <= 0 {
		cfg.TypeWindow = 10 * time.Minute
	}
	return &Correlator{cfg: cfg}
}

// Correlate partitions alerts into clusters: every input alert lands in
// exactly one output cluster, none are dropped or duplicated. Input is
// sorted by timestamp ascending before the pass (stable, so equal
// timestamps keep their input order). Empty input yields nil.
func (c *Correlator) Correlate(records []*alert.Record) []*Cluster {
	if len(records) == 0 {
		return nil
	}

	sorted := make([]*alert.Record, len(records))
	copy(sorted, records)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].TS.Before(sorted[j].TS)
	})

	var clusters []*Cluster
	for _, rec := range sorted {
		if cl := c.match(clusters, rec); cl != nil {
			cl.Alerts = append(cl.Alerts, rec)
			cl.lastTS = rec.TS
			continue
		}
		clusters = append(clusters, &Cluster{
			Alerts: []*alert.Record{rec},
			lastTS: rec.TS,
		})
	}
	return clusters
}

// match finds the most recently active cluster the record can join, or
// nil if none qualifies. Activity means the cluster's last-added alert
// timestamp, not creation order: an older cluster that absorbed a
// recent alert outranks a newer but quieter one. Ties break toward the
// later-created cluster.
func (c *Correlator) match(clusters []*Cluster, rec *alert.Record) *Cluster {
	var best *Cluster
	for _, cl := range clusters {
		age := rec.TS.Sub(cl.lastTS)
		if age > c.cfg.Window {
			continue
		}
		joinable := cl.sharesEntity(rec) ||
			(age <= c.cfg.TypeWindow && cl.sharesType(rec))
		if !joinable {
			continue
		}
		if best == nil || !cl.lastTS.Before(best.lastTS) {
			best = cl
		}
	}
	return best
}

// sharesEntity reports whether the record shares a non-empty user,
// host, or ip with any alert already in the cluster. Empty fields never
// match so entity-less alerts cannot glue unrelated clusters together.
func (cl *Cluster) sharesEntity(rec *alert.Record) bool {
	for _, a := range cl.Alerts {
		if rec.User != "" && rec.User == a.User {
			return true
		}
		if rec.Host != "" && rec.Host == a.Host {
			return true
		}
		if rec.IP != "" && rec.IP == a.IP {
			return true
		}
	}
	return false
}

func (cl *Cluster) sharesType(rec *alert.Record) bool {
	for _, a := range cl.Alerts {
		if rec.AlertType == a.AlertType {
			return true
		}
	}
	return false
}

// AlertTypes returns the distinct alert types in the cluster, in first
// occurrence order.
func (cl *Cluster) AlertTypes() []string {
	seen := make(map[string]struct{}, len(cl.Alerts))
	var out []string
	for _, a := range cl.Alerts {
		if _, ok := seen[a.AlertType]; ok {
			continue
		}
		seen[a.AlertType] = struct{}{}
		out = append(out, a.AlertType)
	}
	return out
}
