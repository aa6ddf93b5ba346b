package incident

import (
	"context"

	"github.com/linnemanlabs/argus/internal/alert"
)

// Store is the persistence interface for alerts and incidents.
//
// ReplaceIncidents is the rebuild transaction boundary: implementations
// must delete all existing incidents, unlink every alert, insert the
// new incident set, and relink alerts atomically from the caller's
// perspective. A reader must never observe a partially rebuilt set.
type Store interface {
	InsertAlert(ctx context.Context, rec *alert.Record) error
	ListAlerts(ctx context.Context) ([]*alert.Record, error)
	ListAlertsByIncident(ctx context.Context, incidentID string) ([]*alert.Record, error)

	ReplaceIncidents(ctx context.Context, incidents []*Incident) error
	ListIncidents(ctx context.Context) ([]*Incident, error)
	GetIncident(ctx context.Context, id string) (*Incident, bool, error)
	UpdateIncident(ctx context.Context, id string, upd *Update) (bool, error)
}
