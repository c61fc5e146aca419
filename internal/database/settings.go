package database

import (
	"context"
)

// LoadSettings returns all system settings as a key/value map.
func (db *DB) LoadSettings(ctx context.Context) (map[string]string, error) {
	rows, err := db.QueryContext(ctx, `SELECT key, value FROM system_settings`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	values := make(map[string]string)
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, err
		}
		values[key] = value
	}

	return values, rows.Err()
}

// UpsertSetting inserts or updates one tunable setting.
func (db *DB) UpsertSetting(ctx context.Context, s *SystemSetting) error {
	query := `
		INSERT INTO system_settings (key, value, description)
		VALUES ($1, $2, $3)
		ON CONFLICT (key) DO UPDATE
		SET value = EXCLUDED.value,
		    description = EXCLUDED.description,
		    updated_at = CURRENT_TIMESTAMP
	`
	_, err := db.ExecContext(ctx, query, s.Key, s.Value, s.Description)
	return err
}
