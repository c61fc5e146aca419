package database

import (
	"context"
	"database/sql"
)

// GetTwinState retrieves the twin state row for a unit, or nil when none
// exists yet.
func (db *DB) GetTwinState(ctx context.Context, unitID int64) (*TwinStateRow, error) {
	query := `
		SELECT unit_id, scenario, season, eco_mode, lights_on, water_heater_on,
		       ac_mode, heating_temp, cost_sensitivity, green_sensitivity,
		       monthly_budget, updated_at
		FROM twin_states
		WHERE unit_id = $1
	`
	var t TwinStateRow
	err := db.QueryRowContext(ctx, query, unitID).Scan(
		&t.UnitID, &t.Scenario, &t.Season, &t.EcoMode, &t.LightsOn,
		&t.WaterHeaterOn, &t.ACMode, &t.HeatingTemp, &t.CostSensitivity,
		&t.GreenSensitivity, &t.MonthlyBudget, &t.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// UpsertTwinState inserts or fully replaces a unit's twin state.
func (db *DB) UpsertTwinState(ctx context.Context, t *TwinStateRow) error {
	query := `
		INSERT INTO twin_states (
			unit_id, scenario, season, eco_mode, lights_on, water_heater_on,
			ac_mode, heating_temp, cost_sensitivity, green_sensitivity, monthly_budget
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (unit_id) DO UPDATE
		SET scenario = EXCLUDED.scenario,
		    season = EXCLUDED.season,
		    eco_mode = EXCLUDED.eco_mode,
		    lights_on = EXCLUDED.lights_on,
		    water_heater_on = EXCLUDED.water_heater_on,
		    ac_mode = EXCLUDED.ac_mode,
		    heating_temp = EXCLUDED.heating_temp,
		    cost_sensitivity = EXCLUDED.cost_sensitivity,
		    green_sensitivity = EXCLUDED.green_sensitivity,
		    monthly_budget = EXCLUDED.monthly_budget,
		    updated_at = CURRENT_TIMESTAMP
	`
	_, err := db.ExecContext(ctx, query,
		t.UnitID, t.Scenario, t.Season, t.EcoMode, t.LightsOn, t.WaterHeaterOn,
		t.ACMode, t.HeatingTemp, t.CostSensitivity, t.GreenSensitivity, t.MonthlyBudget,
	)
	return err
}
