package database

import (
	"context"
	"time"
)

// InsertReading appends one consumption reading.
func (db *DB) InsertReading(ctx context.Context, r *ConsumptionReading) error {
	query := `
		INSERT INTO consumption_readings (unit_id, metric, value, simulated, timestamp)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`
	return db.QueryRowContext(ctx, query,
		r.UnitID, r.Metric, r.Value, r.Simulated, r.Timestamp,
	).Scan(&r.ID)
}

// SumForDay returns the summed value for a (unit, metric) on one
// calendar day.
func (db *DB) SumForDay(ctx context.Context, unitID int64, metric string, day time.Time) (float64, error) {
	query := `
		SELECT COALESCE(SUM(value), 0)
		FROM consumption_readings
		WHERE unit_id = $1 AND metric = $2 AND DATE(timestamp) = $3::date
	`
	var sum float64
	err := db.QueryRowContext(ctx, query, unitID, metric, day).Scan(&sum)
	return sum, err
}

// WeekDailyAverage returns the mean of the daily sums over the 7
// complete days preceding day. Days without readings do not contribute;
// zero means no history at all.
func (db *DB) WeekDailyAverage(ctx context.Context, unitID int64, metric string, day time.Time) (float64, error) {
	query := `
		SELECT COALESCE(AVG(daily_sum), 0)
		FROM (
			SELECT SUM(value) AS daily_sum
			FROM consumption_readings
			WHERE unit_id = $1 AND metric = $2
			  AND DATE(timestamp) >= $3::date - INTERVAL '7 days'
			  AND DATE(timestamp) < $3::date
			GROUP BY DATE(timestamp)
		) daily
	`
	var avg float64
	err := db.QueryRowContext(ctx, query, unitID, metric, day).Scan(&avg)
	return avg, err
}

// RecentReadings returns up to limit readings for a (unit, metric) taken
// at or after since, oldest first.
func (db *DB) RecentReadings(ctx context.Context, unitID int64, metric string, since time.Time, limit int) ([]*ConsumptionReading, error) {
	query := `
		SELECT id, unit_id, metric, value, simulated, timestamp
		FROM (
			SELECT id, unit_id, metric, value, simulated, timestamp
			FROM consumption_readings
			WHERE unit_id = $1 AND metric = $2 AND timestamp >= $3
			ORDER BY timestamp DESC
			LIMIT $4
		) latest
		ORDER BY timestamp ASC
	`
	rows, err := db.QueryContext(ctx, query, unitID, metric, since, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var readings []*ConsumptionReading
	for rows.Next() {
		var r ConsumptionReading
		if err := rows.Scan(&r.ID, &r.UnitID, &r.Metric, &r.Value, &r.Simulated, &r.Timestamp); err != nil {
			return nil, err
		}
		readings = append(readings, &r)
	}

	return readings, rows.Err()
}

// MonthlySum returns the summed value for a (unit, metric) within the
// calendar month containing day.
func (db *DB) MonthlySum(ctx context.Context, unitID int64, metric string, day time.Time) (float64, error) {
	query := `
		SELECT COALESCE(SUM(value), 0)
		FROM consumption_readings
		WHERE unit_id = $1 AND metric = $2
		  AND DATE_TRUNC('month', timestamp) = DATE_TRUNC('month', $3::timestamptz)
	`
	var sum float64
	err := db.QueryRowContext(ctx, query, unitID, metric, day).Scan(&sum)
	return sum, err
}

// SumSince returns the summed value for a (unit, metric) at or after since.
func (db *DB) SumSince(ctx context.Context, unitID int64, metric string, since time.Time) (float64, error) {
	query := `
		SELECT COALESCE(SUM(value), 0)
		FROM consumption_readings
		WHERE unit_id = $1 AND metric = $2 AND timestamp >= $3
	`
	var sum float64
	err := db.QueryRowContext(ctx, query, unitID, metric, since).Scan(&sum)
	return sum, err
}

// MonthDistinctDays returns the number of calendar days in the month of
// day that have at least one reading for the unit, across all metrics.
func (db *DB) MonthDistinctDays(ctx context.Context, unitID int64, day time.Time) (int, error) {
	query := `
		SELECT COUNT(DISTINCT DATE(timestamp))
		FROM consumption_readings
		WHERE unit_id = $1
		  AND DATE_TRUNC('month', timestamp) = DATE_TRUNC('month', $2::timestamptz)
	`
	var days int
	err := db.QueryRowContext(ctx, query, unitID, day).Scan(&days)
	return days, err
}

// ResetReadings bulk-deletes all readings for a unit. Admin use only;
// the fact table is otherwise append-only.
func (db *DB) ResetReadings(ctx context.Context, unitID int64) (int64, error) {
	res, err := db.ExecContext(ctx, `DELETE FROM consumption_readings WHERE unit_id = $1`, unitID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
