package alertapi

import (
	"encoding/json"
	"net/http"

	"github.com/linnemanlabs/argus/internal/alert"
)

func (a *API) handleIngestAlert(w http.ResponseWriter, r *http.Request) {
	var rec alert.Record
	if err := json.NewDecoder(r.Body).Decode(&rec); err != nil {
		writeError(w, http.StatusBadRequest, "invalid payload")
		return
	}

	// Fail fast on contract violations before touching the store.
	if err := rec.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := a.svc.Ingest(r.Context(), &rec); err != nil {
		a.logger.Error(r.Context(), err, "failed to ingest alert", "alert_type", rec.AlertType)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	writeJSON(w, http.StatusCreated, &rec)
}

func (a *API) handleListAlerts(w http.ResponseWriter, r *http.Request) {
	alerts, err := a.svc.Alerts(r.Context())
	if err != nil {
		a.logger.Error(r.Context(), err, "failed to list alerts")
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	// Store order is oldest-first; the list view serves newest-first.
	for i, j := 0, len(alerts)-1; i < j; i, j = i+1, j-1 {
		alerts[i], alerts[j] = alerts[j], alerts[i]
	}
	if alerts == nil {
		alerts = []*alert.Record{}
	}

	writeJSON(w, http.StatusOK, alerts)
}
