package database

import (
	"context"
	"database/sql"
)

// CreateUnit inserts a new unit and fills in its generated id.
func (db *DB) CreateUnit(ctx context.Context, u *Unit) error {
	query := `
		INSERT INTO units (floor, name, area_m2, occupants, owner_id, is_active)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at, updated_at
	`
	return db.QueryRowContext(ctx, query,
		u.Floor, u.Name, u.AreaM2, u.Occupants, u.OwnerID, u.IsActive,
	).Scan(&u.ID, &u.CreatedAt, &u.UpdatedAt)
}

// GetUnit retrieves a unit by id, or nil when it does not exist.
func (db *DB) GetUnit(ctx context.Context, id int64) (*Unit, error) {
	query := `
		SELECT id, floor, name, area_m2, occupants, owner_id, is_active, created_at, updated_at
		FROM units
		WHERE id = $1
	`
	var u Unit
	err := db.QueryRowContext(ctx, query, id).Scan(
		&u.ID, &u.Floor, &u.Name, &u.AreaM2, &u.Occupants, &u.OwnerID,
		&u.IsActive, &u.CreatedAt, &u.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// ListActiveUnits returns all active units ordered by floor and name.
func (db *DB) ListActiveUnits(ctx context.Context) ([]*Unit, error) {
	query := `
		SELECT id, floor, name, area_m2, occupants, owner_id, is_active, created_at, updated_at
		FROM units
		WHERE is_active = true
		ORDER BY floor, name
	`
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var units []*Unit
	for rows.Next() {
		var u Unit
		if err := rows.Scan(
			&u.ID, &u.Floor, &u.Name, &u.AreaM2, &u.Occupants, &u.OwnerID,
			&u.IsActive, &u.CreatedAt, &u.UpdatedAt,
		); err != nil {
			return nil, err
		}
		units = append(units, &u)
	}

	return units, rows.Err()
}

// SetUnitOccupants updates the occupant count for a unit.
func (db *DB) SetUnitOccupants(ctx context.Context, unitID int64, occupants int) error {
	query := `
		UPDATE units
		SET occupants = $1, updated_at = CURRENT_TIMESTAMP
		WHERE id = $2
	`
	_, err := db.ExecContext(ctx, query, occupants, unitID)
	return err
}

// DeactivateUnit soft-deletes a unit. Readings referencing it survive.
func (db *DB) DeactivateUnit(ctx context.Context, unitID int64) error {
	query := `
		UPDATE units
		SET is_active = false, updated_at = CURRENT_TIMESTAMP
		WHERE id = $1
	`
	_, err := db.ExecContext(ctx, query, unitID)
	return err
}
