// Package pgstore provides a PostgreSQL implementation of incident.Store.
package pgstore

import (
	"context"
	_ "embed"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/oklog/ulid/v2"

	"github.com/linnemanlabs/argus/internal/alert"
	"github.com/linnemanlabs/argus/internal/incident"
)

var tracer = otel.Tracer("github.com/linnemanlabs/argus/internal/incident/pgstore")

//go:embed schema.sql
var schema string

// Store persists alerts and incidents in PostgreSQL.
type Store struct {
	pool *pgxpool.Pool
}

// New applies the schema and returns a ready Store.
func New(ctx context.Context, pool *pgxpool.Pool) (*Store, error) {
	if _, err := pool.Exec(ctx, schema); err != nil {
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{pool: pool}, nil
}

const alertColumns = `id, ts, source, alert_type, severity, user_name, host, ip,
	asset_tier, message, raw, COALESCE(incident_id, '')`

const incidentColumns = `id, created_at, title, summary, severity, confidence,
	risk_score, status, analyst_verdict, analyst_notes, mitre`

// InsertAlert stores one alert, assigning an ID if unset.
func (s *Store) InsertAlert(ctx context.Context, rec *alert.Record) error {
	ctx, span := tracer.Start(ctx, "pgstore.InsertAlert", trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation.name", "INSERT"),
	))
	defer span.End()

	if rec.ID == "" {
		rec.ID = ulid.Make().String()
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO alerts (id, ts, source, alert_type, severity, user_name, host, ip, asset_tier, message, raw)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		rec.ID, rec.TS, rec.Source, rec.AlertType, rec.Severity,
		rec.User, rec.Host, rec.IP, rec.AssetTier, rec.Message, rec.Raw,
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("insert alert: %w", err)
	}
	return nil
}

// ListAlerts returns all alerts sorted by timestamp ascending.
func (s *Store) ListAlerts(ctx context.Context) ([]*alert.Record, error) {
	ctx, span := tracer.Start(ctx, "pgstore.ListAlerts", trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation.name", "SELECT"),
	))
	defer span.End()

	rows, err := s.pool.Query(ctx, `SELECT `+alertColumns+` FROM alerts ORDER BY ts ASC, id ASC`)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("list alerts: %w", err)
	}
	return scanAlerts(rows)
}

// ListAlertsByIncident returns the alerts linked to an incident, in
// timestamp order.
func (s *Store) ListAlertsByIncident(ctx context.Context, incidentID string) ([]*alert.Record, error) {
	ctx, span := tracer.Start(ctx, "pgstore.ListAlertsByIncident", trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation.name", "SELECT"),
	))
	defer span.End()

	rows, err := s.pool.Query(ctx,
		`SELECT `+alertColumns+` FROM alerts WHERE incident_id = $1 ORDER BY ts ASC, id ASC`, incidentID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("list alerts by incident: %w", err)
	}
	return scanAlerts(rows)
}

// ReplaceIncidents swaps the full incident set in one transaction:
// unlink all alerts, delete all incidents, insert the new set, relink.
// Readers never observe a partially rebuilt set.
func (s *Store) ReplaceIncidents(ctx context.Context, incidents []*incident.Incident) error {
	ctx, span := tracer.Start(ctx, "pgstore.ReplaceIncidents", trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation.name", "REPLACE"),
		attribute.Int("argus.incidents.count", len(incidents)),
	))
	defer span.End()

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback after commit is harmless

	if _, err := tx.Exec(ctx, `UPDATE alerts SET incident_id = NULL WHERE incident_id IS NOT NULL`); err != nil {
		return fmt.Errorf("unlink alerts: %w", err)
	}
	if _, err := tx.Exec(ctx, `DELETE FROM incidents`); err != nil {
		return fmt.Errorf("delete incidents: %w", err)
	}

	for _, inc := range incidents {
		if _, err := tx.Exec(ctx, `
			INSERT INTO incidents (id, created_at, title, summary, severity, confidence, risk_score, status, analyst_verdict, analyst_notes, mitre)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
			inc.ID, inc.CreatedAt, inc.Title, inc.Summary, inc.Severity,
			inc.Confidence, inc.RiskScore, string(inc.Status), string(inc.Verdict),
			inc.AnalystNotes, inc.Mitre,
		); err != nil {
			return fmt.Errorf("insert incident %s: %w", inc.ID, err)
		}
		if len(inc.AlertIDs) > 0 {
			if _, err := tx.Exec(ctx,
				`UPDATE alerts SET incident_id = $1 WHERE id = ANY($2)`,
				inc.ID, inc.AlertIDs,
			); err != nil {
				return fmt.Errorf("link alerts for incident %s: %w", inc.ID, err)
			}
		}
	}

	if err := tx.Commit(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// ListIncidents returns all incidents, newest first.
func (s *Store) ListIncidents(ctx context.Context) ([]*incident.Incident, error) {
	ctx, span := tracer.Start(ctx, "pgstore.ListIncidents", trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation.name", "SELECT"),
	))
	defer span.End()

	rows, err := s.pool.Query(ctx,
		`SELECT `+incidentColumns+` FROM incidents ORDER BY created_at DESC, id DESC`)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("list incidents: %w", err)
	}
	defer rows.Close()

	var out []*incident.Incident
	for rows.Next() {
		inc, err := scanIncident(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, inc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("scan incidents: %w", err)
	}

	if err := s.fillAlertIDs(ctx, out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetIncident retrieves an incident by ID.
func (s *Store) GetIncident(ctx context.Context, id string) (*incident.Incident, bool, error) {
	ctx, span := tracer.Start(ctx, "pgstore.GetIncident", trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation.name", "SELECT"),
	))
	defer span.End()

	row := s.pool.QueryRow(ctx, `SELECT `+incidentColumns+` FROM incidents WHERE id = $1`, id)
	inc, err := scanIncident(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, false, err
	}

	if err := s.fillAlertIDs(ctx, []*incident.Incident{inc}); err != nil {
		return nil, false, err
	}
	return inc, true, nil
}

// UpdateIncident applies analyst edits. Returns false when the incident
// does not exist.
func (s *Store) UpdateIncident(ctx context.Context, id string, upd *incident.Update) (bool, error) {
	ctx, span := tracer.Start(ctx, "pgstore.UpdateIncident", trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation.name", "UPDATE"),
	))
	defer span.End()

	var status, verdict *string
	if upd.Status != nil {
		v := string(*upd.Status)
		status = &v
	}
	if upd.Verdict != nil {
		v := string(*upd.Verdict)
		verdict = &v
	}

	tag, err := s.pool.Exec(ctx, `
		UPDATE incidents SET
			status          = COALESCE($2, status),
			analyst_verdict = COALESCE($3, analyst_verdict),
			analyst_notes   = CASE
				WHEN $4 = '' THEN analyst_notes
				WHEN analyst_notes = '' THEN $4
				ELSE analyst_notes || E'\n' || $4
			END
		WHERE id = $1`,
		id, status, verdict, upd.AppendNote,
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return false, fmt.Errorf("update incident: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// fillAlertIDs loads the linked alert IDs for the given incidents.
func (s *Store) fillAlertIDs(ctx context.Context, incidents []*incident.Incident) error {
	if len(incidents) == 0 {
		return nil
	}

	ids := make([]string, 0, len(incidents))
	byID := make(map[string]*incident.Incident, len(incidents))
	for _, inc := range incidents {
		ids = append(ids, inc.ID)
		byID[inc.ID] = inc
	}

	rows, err := s.pool.Query(ctx,
		`SELECT id, incident_id FROM alerts WHERE incident_id = ANY($1) ORDER BY ts ASC, id ASC`, ids)
	if err != nil {
		return fmt.Errorf("load alert links: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var alertID, incidentID string
		if err := rows.Scan(&alertID, &incidentID); err != nil {
			return fmt.Errorf("scan alert link: %w", err)
		}
		if inc, ok := byID[incidentID]; ok {
			inc.AlertIDs = append(inc.AlertIDs, alertID)
		}
	}
	return rows.Err()
}

func scanAlerts(rows pgx.Rows) ([]*alert.Record, error) {
	defer rows.Close()
	var out []*alert.Record
	for rows.Next() {
		var r alert.Record
		if err := rows.Scan(&r.ID, &r.TS, &r.Source, &r.AlertType, &r.Severity,
			&r.User, &r.Host, &r.IP, &r.AssetTier, &r.Message, &r.Raw, &r.IncidentID); err != nil {
			return nil, fmt.Errorf("scan alert: %w", err)
		}
		out = append(out, &r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("scan alerts: %w", err)
	}
	return out, nil
}

func scanIncident(row pgx.Row) (*incident.Incident, error) {
	var inc incident.Incident
	var status, verdict string
	if err := row.Scan(&inc.ID, &inc.CreatedAt, &inc.Title, &inc.Summary, &inc.Severity,
		&inc.Confidence, &inc.RiskScore, &status, &verdict, &inc.AnalystNotes, &inc.Mitre); err != nil {
		return nil, err
	}
	inc.Status = incident.Status(status)
	inc.Verdict = incident.Verdict(verdict)
	return &inc, nil
}
