package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/lib/pq"

	"github.com/afikmenashe/patient-alerting/pkg/events"
	"github.com/afikmenashe/patient-alerting/services/monitoring/internal/alerts"
)

var _ alerts.Store = (*DB)(nil)

const alertColumns = `id, patient_id, alert_date_time, title, description, severity, status,
		triggering_observation_id, acknowledged_by, acknowledged_at, resolved_by, resolved_at,
		resolution_notes, closed_by, closed_at, version, created_at, updated_at`

const activeStatusClause = `status IN ('New', 'Acknowledged', 'InProgress')`

const severityRank = `CASE severity WHEN 'Critical' THEN 3 WHEN 'Warning' THEN 2 WHEN 'Information' THEN 1 ELSE 0 END`

const statusRank = `CASE status WHEN 'New' THEN 1 WHEN 'Acknowledged' THEN 2 WHEN 'InProgress' THEN 3 WHEN 'Resolved' THEN 4 WHEN 'Closed' THEN 5 ELSE 0 END`

// invalidText is the SQLSTATE for a value that does not parse as the column
// type, e.g. a malformed UUID.
const invalidText = "22P02"

func isInvalidID(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == invalidText
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAlert(row rowScanner) (*alerts.Alert, error) {
	var (
		a                       alerts.Alert
		severity, status        string
		description, triggering sql.NullString
		ackBy, resBy, closeBy   sql.NullString
		notes                   sql.NullString
		ackAt, resAt, closeAt   sql.NullTime
	)
	if err := row.Scan(
		&a.ID,
		&a.PatientID,
		&a.AlertDateTime,
		&a.Title,
		&description,
		&severity,
		&status,
		&triggering,
		&ackBy,
		&ackAt,
		&resBy,
		&resAt,
		&notes,
		&closeBy,
		&closeAt,
		&a.Version,
		&a.CreatedAt,
		&a.UpdatedAt,
	); err != nil {
		return nil, err
	}
	a.Severity = events.Severity(severity)
	a.Status = alerts.Status(status)
	a.Description = stringPtr(description)
	a.TriggeringObservationID = stringPtr(triggering)
	a.AcknowledgedBy = stringPtr(ackBy)
	a.AcknowledgedAt = timePtr(ackAt)
	a.ResolvedBy = stringPtr(resBy)
	a.ResolvedAt = timePtr(resAt)
	a.ResolutionNotes = stringPtr(notes)
	a.ClosedBy = stringPtr(closeBy)
	a.ClosedAt = timePtr(closeAt)
	a.AlertDateTime = a.AlertDateTime.UTC()
	a.CreatedAt = a.CreatedAt.UTC()
	a.UpdatedAt = a.UpdatedAt.UTC()
	return &a, nil
}

func scanAlerts(rows *sql.Rows) ([]*alerts.Alert, error) {
	defer rows.Close()
	out := []*alerts.Alert{}
	for rows.Next() {
		a, err := scanAlert(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan alert: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// InsertAlert stores a new alert.
func (db *DB) InsertAlert(ctx context.Context, a *alerts.Alert) (*alerts.Alert, error) {
	query := `
		INSERT INTO alerts (id, patient_id, alert_date_time, title, description, severity, status,
			triggering_observation_id, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING ` + alertColumns
	created, err := scanAlert(db.conn.QueryRowContext(ctx, query,
		a.ID,
		a.PatientID,
		a.AlertDateTime,
		a.Title,
		nullString(a.Description),
		string(a.Severity),
		string(a.Status),
		nullString(a.TriggeringObservationID),
		a.Version,
		a.CreatedAt,
		a.UpdatedAt,
	))
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" { // unique_violation
			return nil, fmt.Errorf("alert already exists: %s", a.ID)
		}
		return nil, fmt.Errorf("failed to insert alert: %w", err)
	}
	return created, nil
}

// GetAlert retrieves an alert by ID.
func (db *DB) GetAlert(ctx context.Context, id string) (*alerts.Alert, error) {
	query := `SELECT ` + alertColumns + ` FROM alerts WHERE id = $1`
	a, err := scanAlert(db.conn.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows || isInvalidID(err) {
		return nil, fmt.Errorf("%w: %s", alerts.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get alert: %w", err)
	}
	return a, nil
}

// UpdateAlert writes the mutable fields with optimistic locking on version.
func (db *DB) UpdateAlert(ctx context.Context, a *alerts.Alert) (*alerts.Alert, error) {
	query := `
		UPDATE alerts
		SET status = $2,
		    acknowledged_by = $3,
		    acknowledged_at = $4,
		    resolved_by = $5,
		    resolved_at = $6,
		    resolution_notes = $7,
		    closed_by = $8,
		    closed_at = $9,
		    version = version + 1,
		    updated_at = $10
		WHERE id = $1 AND version = $11
		RETURNING ` + alertColumns
	updated, err := scanAlert(db.conn.QueryRowContext(ctx, query,
		a.ID,
		string(a.Status),
		nullString(a.AcknowledgedBy),
		nullTime(a.AcknowledgedAt),
		nullString(a.ResolvedBy),
		nullTime(a.ResolvedAt),
		nullString(a.ResolutionNotes),
		nullString(a.ClosedBy),
		nullTime(a.ClosedAt),
		a.UpdatedAt,
		a.Version,
	))
	if err == sql.ErrNoRows {
		var exists bool
		checkQuery := `SELECT EXISTS(SELECT 1 FROM alerts WHERE id = $1)`
		if err := db.conn.QueryRowContext(ctx, checkQuery, a.ID).Scan(&exists); err == nil && exists {
			return nil, fmt.Errorf("%w: expected version %d", alerts.ErrConcurrentUpdate, a.Version)
		}
		return nil, fmt.Errorf("%w: %s", alerts.ErrNotFound, a.ID)
	}
	if isInvalidID(err) {
		return nil, fmt.Errorf("%w: %s", alerts.ErrNotFound, a.ID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update alert: %w", err)
	}
	return updated, nil
}

// buildAlertWhere renders the WHERE clause for a filter with positional args starting at $1.
func buildAlertWhere(f alerts.ListFilter) (string, []any) {
	var (
		conds []string
		args  []any
	)
	add := func(cond string, v any) {
		args = append(args, v)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}

	if f.PatientID != "" {
		add("patient_id = $%d", f.PatientID)
	}
	if f.Severity != "" {
		add("severity = $%d", string(f.Severity))
	}
	if f.Status != "" {
		add("status = $%d", string(f.Status))
	}
	if f.AcknowledgedBy != "" {
		add("acknowledged_by ILIKE '%%' || $%d || '%%'", f.AcknowledgedBy)
	}
	if f.From != nil {
		add("alert_date_time >= $%d", *f.From)
	}
	if f.To != nil {
		add("alert_date_time <= $%d", *f.To)
	}
	if f.ActiveOnly {
		conds = append(conds, activeStatusClause)
	}

	if len(conds) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func alertOrderBy(f alerts.ListFilter) string {
	dir := "DESC"
	if f.SortAscending {
		dir = "ASC"
	}
	switch strings.ToLower(f.SortBy) {
	case alerts.SortBySeverity:
		return fmt.Sprintf(" ORDER BY %s %s, alert_date_time DESC", severityRank, dir)
	case alerts.SortByStatus:
		return fmt.Sprintf(" ORDER BY %s %s, alert_date_time DESC", statusRank, dir)
	case alerts.SortByTitle:
		return fmt.Sprintf(" ORDER BY title %s, alert_date_time DESC", dir)
	default:
		return fmt.Sprintf(" ORDER BY alert_date_time %s", dir)
	}
}

// ListAlerts retrieves a filtered page of alerts with the total match count.
func (db *DB) ListAlerts(ctx context.Context, f alerts.ListFilter) (*alerts.ListResult, error) {
	where, args := buildAlertWhere(f)

	var total int64
	countQuery := `SELECT COUNT(*) FROM alerts` + where
	if err := db.conn.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("failed to count alerts: %w", err)
	}

	query := `SELECT ` + alertColumns + ` FROM alerts` + where + alertOrderBy(f)
	pageArgs := args
	if f.Limit > 0 {
		pageArgs = append(pageArgs, f.Limit, f.Offset)
		query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(pageArgs)-1, len(pageArgs))
	}

	rows, err := db.conn.QueryContext(ctx, query, pageArgs...)
	if err != nil {
		return nil, fmt.Errorf("failed to list alerts: %w", err)
	}
	list, err := scanAlerts(rows)
	if err != nil {
		return nil, err
	}

	return &alerts.ListResult{
		Alerts: list,
		Total:  total,
		Limit:  f.Limit,
		Offset: f.Offset,
	}, nil
}

// RecentAlertsByPatient returns the patient's newest alerts by alert time.
func (db *DB) RecentAlertsByPatient(ctx context.Context, patientID string, limit int) ([]*alerts.Alert, error) {
	query := `
		SELECT ` + alertColumns + `
		FROM alerts
		WHERE patient_id = $1
		ORDER BY alert_date_time DESC
		LIMIT $2
	`
	rows, err := db.conn.QueryContext(ctx, query, patientID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get recent alerts: %w", err)
	}
	return scanAlerts(rows)
}

// CountActiveAlerts counts active alerts, optionally for one patient.
func (db *DB) CountActiveAlerts(ctx context.Context, patientID string) (int64, error) {
	query := `SELECT COUNT(*) FROM alerts WHERE ` + activeStatusClause
	var args []any
	if patientID != "" {
		query += ` AND patient_id = $1`
		args = append(args, patientID)
	}
	var count int64
	if err := db.conn.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count active alerts: %w", err)
	}
	return count, nil
}

// DeleteAlert deletes an alert by ID.
func (db *DB) DeleteAlert(ctx context.Context, id string) error {
	query := `DELETE FROM alerts WHERE id = $1`
	result, err := db.conn.ExecContext(ctx, query, id)
	if isInvalidID(err) {
		return fmt.Errorf("%w: %s", alerts.ErrNotFound, id)
	}
	if err != nil {
		return fmt.Errorf("failed to delete alert: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("%w: %s", alerts.ErrNotFound, id)
	}
	return nil
}
