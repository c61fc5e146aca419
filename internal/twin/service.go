package twin

import (
	"context"
	"fmt"

	"github.com/mgavril/habitat-server/internal/database"
)

// Store is the slice of the relational store the twin service needs.
type Store interface {
	GetTwinState(ctx context.Context, unitID int64) (*database.TwinStateRow, error)
	UpsertTwinState(ctx context.Context, t *database.TwinStateRow) error
}

// Service mediates all twin-state access. Reads lazily create the row
// with Default values; writes go through the clamped State setters.
type Service struct {
	store Store
}

// NewService creates a twin-state service.
func NewService(store Store) *Service {
	return &Service{store: store}
}

// GetOrCreate returns the twin state for a unit, creating the default
// row on first access. Idempotent.
func (s *Service) GetOrCreate(ctx context.Context, unitID int64) (State, error) {
	row, err := s.store.GetTwinState(ctx, unitID)
	if err != nil {
		return Default(unitID), fmt.Errorf("failed to read twin state: %w", err)
	}
	if row != nil {
		return fromRow(row), nil
	}

	st := Default(unitID)
	if err := s.store.UpsertTwinState(ctx, toRow(st)); err != nil {
		return st, fmt.Errorf("failed to create twin state: %w", err)
	}
	return st, nil
}

// Update loads (or creates) the state, applies mutate, and persists the
// result. mutate only sees values the setters have already bounded.
func (s *Service) Update(ctx context.Context, unitID int64, mutate func(*State)) (State, error) {
	st, err := s.GetOrCreate(ctx, unitID)
	if err != nil {
		return st, err
	}
	mutate(&st)
	if err := s.store.UpsertTwinState(ctx, toRow(st)); err != nil {
		return st, fmt.Errorf("failed to persist twin state: %w", err)
	}
	return st, nil
}

func fromRow(row *database.TwinStateRow) State {
	// Re-apply the setters so rows written by older tooling still come
	// back bounded.
	st := Default(row.UnitID)
	st.SetScenario(Scenario(row.Scenario))
	st.SetSeason(Season(row.Season))
	st.EcoMode = row.EcoMode
	st.LightsOn = row.LightsOn
	st.WaterHeaterOn = row.WaterHeaterOn
	st.SetACMode(ACMode(row.ACMode))
	st.SetHeatingTemp(row.HeatingTemp)
	st.SetCostSensitivity(row.CostSensitivity)
	st.SetGreenSensitivity(row.GreenSensitivity)
	st.SetMonthlyBudget(row.MonthlyBudget)
	return st
}

func toRow(st State) *database.TwinStateRow {
	return &database.TwinStateRow{
		UnitID:           st.UnitID,
		Scenario:         string(st.Scenario),
		Season:           string(st.Season),
		EcoMode:          st.EcoMode,
		LightsOn:         st.LightsOn,
		WaterHeaterOn:    st.WaterHeaterOn,
		ACMode:           string(st.ACMode),
		HeatingTemp:      st.HeatingTemp,
		CostSensitivity:  st.CostSensitivity,
		GreenSensitivity: st.GreenSensitivity,
		MonthlyBudget:    st.MonthlyBudget,
	}
}
