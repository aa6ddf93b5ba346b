package alertapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/go-chi/chi/v5"

	"github.com/linnemanlabs/argus/internal/assist"
	"github.com/linnemanlabs/argus/internal/incident"
	"github.com/linnemanlabs/argus/internal/playbook"
)

func (a *API) handleRebuild(w http.ResponseWriter, r *http.Request) {
	result, err := a.svc.Rebuild(r.Context())
	if errors.Is(err, incident.ErrRebuildInProgress) {
		writeError(w, http.StatusConflict, "rebuild already in progress")
		return
	}
	if err != nil {
		a.logger.Error(r.Context(), err, "incident rebuild failed")
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	span := trace.SpanFromContext(r.Context())
	span.SetAttributes(
		attribute.Int("argus.rebuild.incidents", result.IncidentsCreated),
		attribute.Int("argus.rebuild.alerts", result.Alerts),
	)

	writeJSON(w, http.StatusOK, result)
}

func (a *API) handleListIncidents(w http.ResponseWriter, r *http.Request) {
	incidents, err := a.svc.List(r.Context())
	if err != nil {
		a.logger.Error(r.Context(), err, "failed to list incidents")
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if incidents == nil {
		incidents = []*incident.Detail{}
	}
	writeJSON(w, http.StatusOK, incidents)
}

func (a *API) handleGetIncident(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	span := trace.SpanFromContext(r.Context())
	span.SetAttributes(attribute.String("argus.incident.id", id))

	det, ok, err := a.svc.Get(r.Context(), id)
	if err != nil {
		a.logger.Error(r.Context(), err, "failed to get incident", "id", id)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, "incident not found")
		return
	}

	writeJSON(w, http.StatusOK, det)
}

func (a *API) handleUpdateIncident(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var upd incident.Update
	if err := json.NewDecoder(r.Body).Decode(&upd); err != nil {
		writeError(w, http.StatusBadRequest, "invalid payload")
		return
	}

	ok, err := a.svc.Update(r.Context(), id, &upd)
	var verr *incident.ValidationError
	if errors.As(err, &verr) {
		writeError(w, http.StatusBadRequest, verr.Error())
		return
	}
	if err != nil {
		a.logger.Error(r.Context(), err, "failed to update incident", "id", id)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, "incident not found")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"updated": true, "incident_id": id})
}

func (a *API) handlePlaybook(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	steps, ok, err := a.svc.Playbook(r.Context(), id)
	if err != nil {
		a.logger.Error(r.Context(), err, "failed to build playbook", "id", id)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, "incident not found")
		return
	}
	if steps == nil {
		steps = []playbook.Step{}
	}

	writeJSON(w, http.StatusOK, map[string]any{"incident_id": id, "steps": steps})
}

func (a *API) handleSimulateRemediate(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var payload struct {
		Action string `json:"action"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	if payload.Action == "" {
		writeError(w, http.StatusBadRequest, "action is required")
		return
	}

	ok, err := a.svc.SimulateRemediate(r.Context(), id, payload.Action)
	if err != nil {
		a.logger.Error(r.Context(), err, "failed to simulate remediation", "id", id, "action", payload.Action)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, "incident not found")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"ok":               true,
		"incident_id":      id,
		"simulated_action": payload.Action,
	})
}

// exportDoc is the flat incident export document.
type exportDoc struct {
	ID           string           `json:"id"`
	CreatedAt    string           `json:"created_at"`
	Title        string           `json:"title"`
	Severity     string           `json:"severity"`
	Confidence   float64          `json:"confidence"`
	RiskScore    float64          `json:"risk_score"`
	Status       incident.Status  `json:"status"`
	Verdict      incident.Verdict `json:"analyst_verdict"`
	AnalystNotes string           `json:"analyst_notes"`
	Summary      string           `json:"summary"`
	Mitre        []string         `json:"mitre"`
	Alerts       []exportAlert    `json:"alerts"`
}

type exportAlert struct {
	TS        string `json:"ts"`
	Source    string `json:"source"`
	AlertType string `json:"alert_type"`
	Severity  string `json:"severity"`
	User      string `json:"user"`
	Host      string `json:"host"`
	IP        string `json:"ip"`
	AssetTier string `json:"asset_tier"`
	Message   string `json:"message"`
}

func (a *API) handleExport(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	det, ok, err := a.svc.Get(r.Context(), id)
	if err != nil {
		a.logger.Error(r.Context(), err, "failed to export incident", "id", id)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, "incident not found")
		return
	}

	doc := exportDoc{
		ID:           det.ID,
		CreatedAt:    det.CreatedAt.UTC().Format(time.RFC3339),
		Title:        det.Title,
		Severity:     det.Severity,
		Confidence:   det.Confidence,
		RiskScore:    det.RiskScore,
		Status:       det.Status,
		Verdict:      det.Verdict,
		AnalystNotes: det.AnalystNotes,
		Summary:      det.Summary,
		Mitre:        det.Mitre,
		Alerts:       make([]exportAlert, 0, len(det.Alerts)),
	}
	for _, al := range det.Alerts {
		doc.Alerts = append(doc.Alerts, exportAlert{
			TS:        al.TS.UTC().Format(time.RFC3339),
			Source:    al.Source,
			AlertType: al.AlertType,
			Severity:  al.Severity,
			User:      al.User,
			Host:      al.Host,
			IP:        al.IP,
			AssetTier: al.AssetTier,
			Message:   al.Message,
		})
	}

	writeJSON(w, http.StatusOK, doc)
}

func (a *API) handleQuality(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	result, ok, err := a.svc.Quality(r.Context(), id)
	if err != nil {
		a.logger.Error(r.Context(), err, "failed to score correlation quality", "id", id)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, "incident not found")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"incident_id":            id,
		"score":                  result.Score,
		"reason":                 result.Reason,
		"recommended_next_steps": result.NextSteps,
	})
}

func (a *API) handleAssist(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if !a.drafter.Enabled() {
		writeError(w, http.StatusServiceUnavailable, "assist is not configured")
		return
	}

	det, ok, err := a.svc.Get(r.Context(), id)
	if err != nil {
		a.logger.Error(r.Context(), err, "failed to load incident for assist", "id", id)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, "incident not found")
		return
	}

	notes, err := a.drafter.Draft(r.Context(), det)
	if errors.Is(err, assist.ErrNotConfigured) {
		writeError(w, http.StatusServiceUnavailable, "assist is not configured")
		return
	}
	if err != nil {
		a.logger.Error(r.Context(), err, "assist draft failed", "id", id)
		writeError(w, http.StatusBadGateway, "assist provider error")
		return
	}

	if _, err := a.svc.AppendNotes(r.Context(), id, "[ASSIST DRAFT]\n"+notes); err != nil {
		a.logger.Error(r.Context(), err, "failed to persist assist notes", "id", id)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"incident_id": id, "notes": notes})
}
