// Package alertapi exposes the HTTP interface for alert ingestion and
// incident operations. It is the external CRUD layer around the pure
// pipeline: all lookup-by-id failures surface here, never in the core.
package alertapi

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/linnemanlabs/go-core/log"
	"github.com/linnemanlabs/go-core/xerrors"

	"github.com/linnemanlabs/argus/internal/alert"
	"github.com/linnemanlabs/argus/internal/assist"
	"github.com/linnemanlabs/argus/internal/incident"
	"github.com/linnemanlabs/argus/internal/playbook"
	"github.com/linnemanlabs/argus/internal/score"
)

// IncidentService defines the business operations alertapi needs.
type IncidentService interface {
	Ingest(ctx context.Context, rec *alert.Record) error
	Alerts(ctx context.Context) ([]*alert.Record, error)
	Rebuild(ctx context.Context) (*incident.RebuildResult, error)
	List(ctx context.Context) ([]*incident.Detail, error)
	Get(ctx context.Context, id string) (*incident.Detail, bool, error)
	Update(ctx context.Context, id string, upd *incident.Update) (bool, error)
	Playbook(ctx context.Context, id string) ([]playbook.Step, bool, error)
	SimulateRemediate(ctx context.Context, id, action string) (bool, error)
	Quality(ctx context.Context, id string) (score.QualityResult, bool, error)
	AppendNotes(ctx context.Context, id, text string) (bool, error)
}

// API holds dependencies for HTTP handlers.
type API struct {
	logger  log.Logger
	svc     IncidentService
	drafter *assist.Drafter
}

// New creates a new API handler. drafter may be nil when assist is
// disabled.
func New(logger log.Logger, svc IncidentService, drafter *assist.Drafter) *API {
	if logger == nil {
		logger = log.Nop()
	}
	if svc == nil {
		panic(xerrors.New("incident service is required"))
	}
	if drafter == nil {
		drafter = assist.New(nil, logger)
	}
	return &API{
		logger:  logger,
		svc:     svc,
		drafter: drafter,
	}
}

// RegisterRoutes attaches API endpoints to the router.
func (a *API) RegisterRoutes(r chi.Router) {
	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/alerts", a.handleIngestAlert)
		r.Get("/alerts", a.handleListAlerts)

		r.Post("/incidents/rebuild", a.handleRebuild)
		r.Get("/incidents", a.handleListIncidents)
		r.Get("/incidents/{id}", a.handleGetIncident)
		r.Patch("/incidents/{id}", a.handleUpdateIncident)
		r.Get("/incidents/{id}/playbook", a.handlePlaybook)
		r.Post("/incidents/{id}/simulate_remediate", a.handleSimulateRemediate)
		r.Get("/incidents/{id}/export", a.handleExport)
		r.Get("/incidents/{id}/quality", a.handleQuality)
		r.Post("/incidents/{id}/assist", a.handleAssist)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
