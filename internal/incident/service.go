package incident

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync/atomic"
	"time"

	"github.com/linnemanlabs/go-core/log"
	"github.com/oklog/ulid/v2"

	"github.com/linnemanlabs/argus/internal/alert"
	"github.com/linnemanlabs/argus/internal/correlate"
	"github.com/linnemanlabs/argus/internal/explain"
	"github.com/linnemanlabs/argus/internal/playbook"
	"github.com/linnemanlabs/argus/internal/score"
)

// ErrRebuildInProgress is returned when a rebuild is requested while
// another one is still running. Rebuilds are full delete-and-recreate
// passes, so two of them must never interleave against the same store.
var ErrRebuildInProgress = errors.New("incident rebuild already in progress")

// Notifier delivers newly created incidents to an external channel.
type Notifier interface {
	Notify(ctx context.Context, inc *Incident) error
}

// RebuildResult summarizes one full rebuild pass.
type RebuildResult struct {
	IncidentsCreated int     `json:"incidents_created"`
	Clusters         int     `json:"clusters"`
	Alerts           int     `json:"alerts"`
	Duration         float64 `json:"duration_seconds"`
}

// Detail is an incident together with its linked alerts, the shape the
// HTTP layer serves for reads and exports.
type Detail struct {
	*Incident
	Alerts []*alert.Record `json:"alerts"`
}

// Service is the business boundary for the incident pipeline.
type Service struct {
	store      Store
	correlator *correlate.Correlator
	logger     log.Logger
	metrics    *Metrics
	notifier   Notifier

	rebuilding atomic.Bool
}

// NewService creates a new incident service. notifier may be nil.
func NewService(store Store, correlator *correlate.Correlator, logger log.Logger, metrics *Metrics, notifier Notifier) *Service {
	return &Service{
		store:      store,
		correlator: correlator,
		logger:     logger,
		metrics:    metrics,
		notifier:   notifier,
	}
}

// Ingest validates and stores a single alert record.
func (s *Service) Ingest(ctx context.Context, rec *alert.Record) error {
	if err := rec.Validate(); err != nil {
		return err
	}
	if err := s.store.InsertAlert(ctx, rec); err != nil {
		return err
	}
	s.metrics.AlertsIngested.Inc()
	return nil
}

// Alerts lists all stored alerts, oldest first.
func (s *Service) Alerts(ctx context.Context) ([]*alert.Record, error) {
	return s.store.ListAlerts(ctx)
}

// Rebuild discards every existing incident and recreates the full set
// from the current alert batch: correlate, score, explain, map, then
// replace atomically. Only one rebuild may run at a time; concurrent
// calls fail with ErrRebuildInProgress.
func (s *Service) Rebuild(ctx context.Context) (*RebuildResult, error) {
	if !s.rebuilding.CompareAndSwap(false, true) {
		return nil, ErrRebuildInProgress
	}
	defer s.rebuilding.Store(false)

	start := time.Now()

	records, err := s.store.ListAlerts(ctx)
	if err != nil {
		s.metrics.RebuildsTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("list alerts: %w", err)
	}
	for _, rec := range records {
		if err := rec.Validate(); err != nil {
			s.metrics.RebuildsTotal.WithLabelValues("error").Inc()
			return nil, fmt.Errorf("alert %s: %w", rec.ID, err)
		}
	}

	clusters := s.correlator.Correlate(records)

	incidents := make([]*Incident, 0, len(clusters))
	for _, cl := range clusters {
		incidents = append(incidents, buildIncident(cl))
		s.metrics.ClusterSize.Observe(float64(len(cl.Alerts)))
	}

	if err := s.store.ReplaceIncidents(ctx, incidents); err != nil {
		s.metrics.RebuildsTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("replace incidents: %w", err)
	}

	dur := time.Since(start).Seconds()
	s.metrics.RebuildsTotal.WithLabelValues("success").Inc()
	s.metrics.RebuildDuration.Observe(dur)
	s.metrics.IncidentsCreated.Observe(float64(len(incidents)))

	s.logger.Info(ctx, "incident rebuild complete",
		"alerts", len(records),
		"clusters", len(clusters),
		"incidents", len(incidents),
		"duration", dur,
	)

	// notify on the most severe incidents only, best-effort
	for _, inc := range incidents {
		if inc.Severity == alert.SeverityHigh || inc.Severity == alert.SeverityCritical {
			go s.notify(context.WithoutCancel(ctx), inc)
		}
	}

	return &RebuildResult{
		IncidentsCreated: len(incidents),
		Clusters:         len(clusters),
		Alerts:           len(records),
		Duration:         dur,
	}, nil
}

// buildIncident runs the pure scoring/explanation pipeline for one
// cluster. Alert types are sorted before the MITRE lookup so technique
// order is stable across rebuilds.
func buildIncident(cl *correlate.Cluster) *Incident {
	conf := score.Confidence(cl.Alerts)
	risk := score.Risk(cl.Alerts, conf)
	sev := score.Label(risk)

	types := cl.AlertTypes()
	sort.Strings(types)

	ids := make([]string, 0, len(cl.Alerts))
	for _, a := range cl.Alerts {
		ids = append(ids, a.ID)
	}

	return &Incident{
		ID:        ulid.Make().String(),
		CreatedAt: time.Now().UTC(),
		Title:     explain.Title(cl.Alerts),
		Summary:   explain.Summary(cl.Alerts, sev, conf, risk),

		Severity:   sev,
		Confidence: conf,
		RiskScore:  risk,

		Status:       StatusOpen,
		Verdict:      VerdictUnknown,
		AnalystNotes: "",

		Mitre:    playbook.Techniques(types),
		AlertIDs: ids,
	}
}

func (s *Service) notify(ctx context.Context, inc *Incident) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Notify(ctx, inc); err != nil {
		s.metrics.NotificationsTotal.WithLabelValues("error").Inc()
		s.logger.Error(ctx, err, "incident notification failed", "incident_id", inc.ID)
		return
	}
	s.metrics.NotificationsTotal.WithLabelValues("sent").Inc()
}

// List returns all incidents with their linked alerts, newest first.
func (s *Service) List(ctx context.Context) ([]*Detail, error) {
	incidents, err := s.store.ListIncidents(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]*Detail, 0, len(incidents))
	for _, inc := range incidents {
		alerts, err := s.store.ListAlertsByIncident(ctx, inc.ID)
		if err != nil {
			return nil, err
		}
		out = append(out, &Detail{Incident: inc, Alerts: alerts})
	}
	return out, nil
}

// Get retrieves one incident with its linked alerts.
func (s *Service) Get(ctx context.Context, id string) (*Detail, bool, error) {
	inc, ok, err := s.store.GetIncident(ctx, id)
	if err != nil || !ok {
		return nil, ok, err
	}
	alerts, err := s.store.ListAlertsByIncident(ctx, id)
	if err != nil {
		return nil, false, err
	}
	return &Detail{Incident: inc, Alerts: alerts}, true, nil
}

// Update applies analyst edits (status, verdict, notes) to an incident.
func (s *Service) Update(ctx context.Context, id string, upd *Update) (bool, error) {
	if err := upd.Validate(); err != nil {
		return false, err
	}
	return s.store.UpdateIncident(ctx, id, upd)
}

// Playbook returns the de-duplicated remediation steps for the alert
// types present in an incident. Types are sorted so step order is
// stable across calls.
func (s *Service) Playbook(ctx context.Context, id string) ([]playbook.Step, bool, error) {
	_, ok, err := s.store.GetIncident(ctx, id)
	if err != nil || !ok {
		return nil, ok, err
	}
	alerts, err := s.store.ListAlertsByIncident(ctx, id)
	if err != nil {
		return nil, false, err
	}
	return playbook.Steps(distinctTypes(alerts)), true, nil
}

// SimulateRemediate records a simulated remediation action on the
// incident: appends a note and moves open incidents to triaged.
func (s *Service) SimulateRemediate(ctx context.Context, id, action string) (bool, error) {
	inc, ok, err := s.store.GetIncident(ctx, id)
	if err != nil || !ok {
		return ok, err
	}

	upd := &Update{
		AppendNote: fmt.Sprintf("[SIMULATED ACTION] %s executed.", action),
	}
	if inc.Status == StatusOpen {
		st := StatusTriaged
		upd.Status = &st
	}
	return s.store.UpdateIncident(ctx, id, upd)
}

// Quality runs the companion correlation-quality heuristic over the
// incident's current alert set.
func (s *Service) Quality(ctx context.Context, id string) (score.QualityResult, bool, error) {
	inc, ok, err := s.store.GetIncident(ctx, id)
	if err != nil || !ok {
		return score.QualityResult{}, ok, err
	}
	alerts, err := s.store.ListAlertsByIncident(ctx, id)
	if err != nil {
		return score.QualityResult{}, false, err
	}
	s.metrics.QualityChecks.Inc()
	return score.Quality(inc.Severity, inc.Confidence, alerts), true, nil
}

// AppendNotes appends text to an incident's analyst notes. Used by the
// assist endpoint to persist drafted notes.
func (s *Service) AppendNotes(ctx context.Context, id, text string) (bool, error) {
	return s.store.UpdateIncident(ctx, id, &Update{AppendNote: text})
}

func distinctTypes(alerts []*alert.Record) []string {
	seen := make(map[string]struct{}, len(alerts))
	var types []string
	for _, a := range alerts {
		if a.AlertType == "" {
			continue
		}
		if _, ok := seen[a.AlertType]; ok {
			continue
		}
		seen[a.AlertType] = struct{}{}
		types = append(types, a.AlertType)
	}
	sort.Strings(types)
	return types
}
