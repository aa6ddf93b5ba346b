// Package memstore provides an in-memory implementation of
// incident.Store. Suitable for dev/testing and for running without a
// database.
package memstore

import (
	"context"
	"sort"
	"sync"

	"github.com/oklog/ulid/v2"

	"github.com/linnemanlabs/argus/internal/alert"
	"github.com/linnemanlabs/argus/internal/incident"
)

// Store holds alerts and incidents in memory.
type Store struct {
	mu        sync.RWMutex
	alerts    []*alert.Record               // insertion order
	incidents map[string]*incident.Incident // incident ID -> incident
}

// New initializes a new in-memory Store.
func New() *Store {
	return &Store{
		incidents: make(map[string]*incident.Incident),
	}
}

// InsertAlert stores a copy of the alert, assigning an ID if unset.
func (s *Store) InsertAlert(_ context.Context, rec *alert.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rec.ID == "" {
		rec.ID = ulid.Make().String()
	}
	cp := *rec
	s.alerts = append(s.alerts, &cp)
	return nil
}

// ListAlerts returns copies of all alerts sorted by timestamp ascending.
func (s *Store) ListAlerts(_ context.Context) ([]*alert.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*alert.Record, 0, len(s.alerts))
	for _, a := range s.alerts {
		cp := *a
		out = append(out, &cp)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].TS.Before(out[j].TS)
	})
	return out, nil
}

// ListAlertsByIncident returns copies of the alerts linked to the given
// incident, in timestamp order.
func (s *Store) ListAlertsByIncident(_ context.Context, incidentID string) ([]*alert.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*alert.Record
	for _, a := range s.alerts {
		if a.IncidentID != incidentID {
			continue
		}
		cp := *a
		out = append(out, &cp)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].TS.Before(out[j].TS)
	})
	return out, nil
}

// ReplaceIncidents atomically swaps the full incident set: existing
// incidents are dropped, alert links cleared, and new incidents
// inserted with their alerts relinked. Holding the write lock for the
// whole swap is what makes the rebuild atomic here.
func (s *Store) ReplaceIncidents(_ context.Context, incidents []*incident.Incident) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.incidents = make(map[string]*incident.Incident, len(incidents))
	for _, a := range s.alerts {
		a.IncidentID = ""
	}

	byID := make(map[string]*alert.Record, len(s.alerts))
	for _, a := range s.alerts {
		byID[a.ID] = a
	}

	for _, inc := range incidents {
		cp := *inc
		cp.Mitre = append([]string(nil), inc.Mitre...)
		cp.AlertIDs = append([]string(nil), inc.AlertIDs...)
		s.incidents[inc.ID] = &cp
		for _, id := range inc.AlertIDs {
			if a, ok := byID[id]; ok {
				a.IncidentID = inc.ID
			}
		}
	}
	return nil
}

// ListIncidents returns copies of all incidents, newest first.
func (s *Store) ListIncidents(_ context.Context) ([]*incident.Incident, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*incident.Incident, 0, len(s.incidents))
	for _, inc := range s.incidents {
		out = append(out, copyIncident(inc))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

// GetIncident retrieves an incident by ID. Returns a copy.
func (s *Store) GetIncident(_ context.Context, id string) (*incident.Incident, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	inc, ok := s.incidents[id]
	if !ok {
		return nil, false, nil
	}
	return copyIncident(inc), true, nil
}

// UpdateIncident applies analyst edits in place. Returns false when the
// incident does not exist.
func (s *Store) UpdateIncident(_ context.Context, id string, upd *incident.Update) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	inc, ok := s.incidents[id]
	if !ok {
		return false, nil
	}
	if upd.Status != nil {
		inc.Status = *upd.Status
	}
	if upd.Verdict != nil {
		inc.Verdict = *upd.Verdict
	}
	if upd.AppendNote != "" {
		if inc.AnalystNotes != "" {
			inc.AnalystNotes += "\n"
		}
		inc.AnalystNotes += upd.AppendNote
	}
	return true, nil
}

func copyIncident(inc *incident.Incident) *incident.Incident {
	cp := *inc
	cp.Mitre = append([]string(nil), inc.Mitre...)
	cp.AlertIDs = append([]string(nil), inc.AlertIDs...)
	return &cp
}
