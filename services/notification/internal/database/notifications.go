package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/lib/pq"

	"github.com/afikmenashe/patient-alerting/services/notification/internal/notifications"
)

var _ notifications.Store = (*DB)(nil)

const notificationColumns = `id, patient_id, recipient_type, recipient_id, recipient_email, recipient_phone,
		notification_type, channel, subject, message, status, sent_at, error_message, retry_count,
		related_entity_id, related_entity_type, priority, created_at, updated_at`

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

func scanNotification(row rowScanner) (*notifications.Notification, error) {
	var (
		n                                           notifications.Notification
		notificationType, channel, status, priority string
		recipientID, email, phone                   sql.NullString
		errorMessage, entityID, entityType          sql.NullString
		sentAt                                      sql.NullTime
	)
	if err := row.Scan(
		&n.ID,
		&n.PatientID,
		&n.RecipientType,
		&recipientID,
		&email,
		&phone,
		&notificationType,
		&channel,
		&n.Subject,
		&n.Message,
		&status,
		&sentAt,
		&errorMessage,
		&n.RetryCount,
		&entityID,
		&entityType,
		&priority,
		&n.CreatedAt,
		&n.UpdatedAt,
	); err != nil {
		return nil, err
	}
	n.RecipientID = stringPtr(recipientID)
	n.RecipientEmail = stringPtr(email)
	n.RecipientPhone = stringPtr(phone)
	n.NotificationType = notifications.Type(notificationType)
	n.Channel = notifications.Channel(channel)
	n.Status = notifications.Status(status)
	n.SentAt = timePtr(sentAt)
	n.ErrorMessage = stringPtr(errorMessage)
	n.RelatedEntityID = stringPtr(entityID)
	n.RelatedEntityType = stringPtr(entityType)
	n.Priority = notifications.Priority(priority)
	n.CreatedAt = n.CreatedAt.UTC()
	n.UpdatedAt = n.UpdatedAt.UTC()
	return &n, nil
}

func scanNotifications(rows *sql.Rows) ([]*notifications.Notification, error) {
	defer rows.Close()
	out := []*notifications.Notification{}
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan notification: %w", err)
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

const insertNotification = `
		INSERT INTO notification_logs (id, patient_id, recipient_type, recipient_id, recipient_email,
			recipient_phone, notification_type, channel, subject, message, status, retry_count,
			related_entity_id, related_entity_type, priority, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`

func insertArgs(n *notifications.Notification) []any {
	return []any{
		n.ID,
		n.PatientID,
		n.RecipientType,
		nullString(n.RecipientID),
		nullString(n.RecipientEmail),
		nullString(n.RecipientPhone),
		string(n.NotificationType),
		string(n.Channel),
		n.Subject,
		n.Message,
		string(n.Status),
		n.RetryCount,
		nullString(n.RelatedEntityID),
		nullString(n.RelatedEntityType),
		string(n.Priority),
		n.CreatedAt,
		n.UpdatedAt,
	}
}

// InsertNotification stores a new notification.
func (db *DB) InsertNotification(ctx context.Context, n *notifications.Notification) (*notifications.Notification, error) {
	query := insertNotification + ` RETURNING ` + notificationColumns
	created, err := scanNotification(db.conn.QueryRowContext(ctx, query, insertArgs(n)...))
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" { // unique_violation
			return nil, fmt.Errorf("notification already exists: %s", n.ID)
		}
		return nil, fmt.Errorf("failed to insert notification: %w", err)
	}
	return created, nil
}

// InsertNotificationIdempotent inserts an alert notification unless one already
// exists for the same alert and recipient type. It relies on the partial unique
// index on notification_logs (related_entity_id, recipient_type) WHERE
// related_entity_type = 'Alert'. On conflict it returns nil, false, nil.
func (db *DB) InsertNotificationIdempotent(ctx context.Context, n *notifications.Notification) (*notifications.Notification, bool, error) {
	query := insertNotification + `
		ON CONFLICT (related_entity_id, recipient_type) WHERE related_entity_type = 'Alert' DO NOTHING
		RETURNING ` + notificationColumns

	created, err := scanNotification(db.conn.QueryRowContext(ctx, query, insertArgs(n)...))
	if err == sql.ErrNoRows {
		slog.Debug("Alert notification already exists, skipping",
			"related_entity_id", derefString(n.RelatedEntityID),
			"recipient_type", n.RecipientType,
		)
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to insert notification: %w", err)
	}
	return created, true, nil
}

// GetNotification retrieves a notification by ID.
func (db *DB) GetNotification(ctx context.Context, id string) (*notifications.Notification, error) {
	query := `SELECT ` + notificationColumns + ` FROM notification_logs WHERE id = $1`
	n, err := scanNotification(db.conn.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows || isInvalidID(err) {
		return nil, fmt.Errorf("%w: %s", notifications.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get notification: %w", err)
	}
	return n, nil
}

// GetAlertNotification retrieves the notification of an alert for one recipient type.
func (db *DB) GetAlertNotification(ctx context.Context, alertID, recipientType string) (*notifications.Notification, error) {
	query := `
		SELECT ` + notificationColumns + `
		FROM notification_logs
		WHERE related_entity_type = 'Alert' AND related_entity_id = $1 AND recipient_type = $2
	`
	n, err := scanNotification(db.conn.QueryRowContext(ctx, query, alertID, recipientType))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: alert %s recipient %s", notifications.ErrNotFound, alertID, recipientType)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get alert notification: %w", err)
	}
	return n, nil
}

// TransitionNotification writes the delivery fields only if the stored status
// still equals from, so concurrent senders and cancels cannot overwrite each other.
func (db *DB) TransitionNotification(ctx context.Context, n *notifications.Notification, from notifications.Status) (bool, error) {
	query := `
		UPDATE notification_logs
		SET status = $2,
		    sent_at = $3,
		    error_message = $4,
		    retry_count = $5,
		    updated_at = $6
		WHERE id = $1 AND status = $7
	`
	result, err := db.conn.ExecContext(ctx, query,
		n.ID,
		string(n.Status),
		nullTime(n.SentAt),
		nullString(n.ErrorMessage),
		n.RetryCount,
		n.UpdatedAt,
		string(from),
	)
	if err != nil {
		return false, fmt.Errorf("failed to update notification status: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rowsAffected == 1, nil
}

// buildNotificationWhere renders the WHERE clause for a filter with positional args starting at $1.
func buildNotificationWhere(f notifications.ListFilter) (string, []any) {
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
	if f.RecipientType != "" {
		add("recipient_type ILIKE $%d", f.RecipientType)
	}
	if f.NotificationType != "" {
		add("notification_type = $%d", string(f.NotificationType))
	}
	if f.Channel != "" {
		add("channel = $%d", string(f.Channel))
	}
	if f.Status != "" {
		add("status = $%d", string(f.Status))
	}
	if f.Priority != "" {
		add("priority = $%d", string(f.Priority))
	}
	if f.RelatedEntityType != "" {
		add("related_entity_type = $%d", f.RelatedEntityType)
	}
	if f.From != nil {
		add("created_at >= $%d", *f.From)
	}
	if f.To != nil {
		add("created_at <= $%d", *f.To)
	}

	if len(conds) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// ListNotifications retrieves a filtered page of notifications, newest first,
// with the total match count.
func (db *DB) ListNotifications(ctx context.Context, f notifications.ListFilter) (*notifications.ListResult, error) {
	where, args := buildNotificationWhere(f)

	var total int64
	countQuery := `SELECT COUNT(*) FROM notification_logs` + where
	if err := db.conn.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("failed to count notifications: %w", err)
	}

	query := `SELECT ` + notificationColumns + ` FROM notification_logs` + where + ` ORDER BY created_at DESC`
	pageArgs := args
	if f.Limit > 0 {
		pageArgs = append(pageArgs, f.Limit, f.Offset)
		query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(pageArgs)-1, len(pageArgs))
	}

	rows, err := db.conn.QueryContext(ctx, query, pageArgs...)
	if err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}
	list, err := scanNotifications(rows)
	if err != nil {
		return nil, err
	}

	return &notifications.ListResult{
		Notifications: list,
		Total:         total,
		Limit:         f.Limit,
		Offset:        f.Offset,
	}, nil
}

// ListDue returns Pending notifications, oldest first.
func (db *DB) ListDue(ctx context.Context, limit int) ([]*notifications.Notification, error) {
	query := `
		SELECT ` + notificationColumns + `
		FROM notification_logs
		WHERE status = 'Pending'
		ORDER BY created_at ASC
		LIMIT $1
	`
	rows, err := db.conn.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list due notifications: %w", err)
	}
	return scanNotifications(rows)
}

// ListRetryable returns Failed notifications with retry_count below maxRetries, oldest first.
func (db *DB) ListRetryable(ctx context.Context, maxRetries, limit int) ([]*notifications.Notification, error) {
	query := `
		SELECT ` + notificationColumns + `
		FROM notification_logs
		WHERE status = 'Failed' AND retry_count < $1
		ORDER BY updated_at ASC
		LIMIT $2
	`
	rows, err := db.conn.QueryContext(ctx, query, maxRetries, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list retryable notifications: %w", err)
	}
	return scanNotifications(rows)
}

// CountByStatus counts notifications in a status.
func (db *DB) CountByStatus(ctx context.Context, status notifications.Status) (int64, error) {
	var count int64
	query := `SELECT COUNT(*) FROM notification_logs WHERE status = $1`
	if err := db.conn.QueryRowContext(ctx, query, string(status)).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count notifications: %w", err)
	}
	return count, nil
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
