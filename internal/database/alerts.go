package database

import (
	"context"
	"database/sql"
)

// InsertAlertOnce inserts an alert unless one of the same type already
// exists for the unit on the same calendar day. The uniqueness
// constraint on (unit_id, type, alert_date) resolves concurrent
// analyzer runs; the insert is a silent no-op on conflict. Returns true
// when a row was actually created.
func (db *DB) InsertAlertOnce(ctx context.Context, a *Alert) (bool, error) {
	query := `
		INSERT INTO alerts (unit_id, type, severity, title, message, alert_date)
		VALUES ($1, $2, $3, $4, $5, CURRENT_DATE)
		ON CONFLICT (unit_id, type, alert_date) DO NOTHING
		RETURNING id, alert_date, created_at
	`
	err := db.QueryRowContext(ctx, query,
		a.UnitID, a.Type, a.Severity, a.Title, a.Message,
	).Scan(&a.ID, &a.AlertDate, &a.CreatedAt)
	if err == sql.ErrNoRows {
		// Conflict: an alert of this type already exists today.
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// ListUnreadAlerts returns unread alerts for a unit, newest first.
func (db *DB) ListUnreadAlerts(ctx context.Context, unitID int64) ([]*Alert, error) {
	query := `
		SELECT id, unit_id, type, severity, title, message, is_read, alert_date, created_at
		FROM alerts
		WHERE unit_id = $1 AND is_read = false
		ORDER BY created_at DESC
	`
	rows, err := db.QueryContext(ctx, query, unitID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var alerts []*Alert
	for rows.Next() {
		var a Alert
		if err := rows.Scan(
			&a.ID, &a.UnitID, &a.Type, &a.Severity, &a.Title, &a.Message,
			&a.IsRead, &a.AlertDate, &a.CreatedAt,
		); err != nil {
			return nil, err
		}
		alerts = append(alerts, &a)
	}

	return alerts, rows.Err()
}

// MarkAlertsRead marks all of a unit's alerts as read.
func (db *DB) MarkAlertsRead(ctx context.Context, unitID int64) error {
	_, err := db.ExecContext(ctx,
		`UPDATE alerts SET is_read = true WHERE unit_id = $1 AND is_read = false`,
		unitID,
	)
	return err
}
