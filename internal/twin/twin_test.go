package twin

import (
	"context"
	"errors"
	"testing"

	"github.com/mgavril/habitat-server/internal/database"
)

func TestDefault(t *testing.T) {
	st := Default(7)

	if st.UnitID != 7 {
		t.Errorf("Expected unit id 7, got %d", st.UnitID)
	}
	if st.Scenario != ScenarioFamily {
		t.Errorf("Expected family scenario, got %s", st.Scenario)
	}
	if st.Season != SeasonSpring {
		t.Errorf("Expected spring season, got %s", st.Season)
	}
	if st.EcoMode {
		t.Error("Expected eco mode off")
	}
	if st.HeatingTemp != 22 {
		t.Errorf("Expected heating temp 22, got %d", st.HeatingTemp)
	}
}

func TestSetHeatingTempClamps(t *testing.T) {
	st := Default(1)

	st.SetHeatingTemp(40)
	if st.HeatingTemp != MaxHeatingTemp {
		t.Errorf("Expected clamp to %d, got %d", MaxHeatingTemp, st.HeatingTemp)
	}

	st.SetHeatingTemp(5)
	if st.HeatingTemp != MinHeatingTemp {
		t.Errorf("Expected clamp to %d, got %d", MinHeatingTemp, st.HeatingTemp)
	}

	st.SetHeatingTemp(20)
	if st.HeatingTemp != 20 {
		t.Errorf("Expected 20, got %d", st.HeatingTemp)
	}
}

func TestSetSensitivitiesClamp(t *testing.T) {
	st := Default(1)

	st.SetCostSensitivity(150)
	if st.CostSensitivity != MaxSensitivity {
		t.Errorf("Expected %d, got %d", MaxSensitivity, st.CostSensitivity)
	}

	st.SetGreenSensitivity(-10)
	if st.GreenSensitivity != MinSensitivity {
		t.Errorf("Expected %d, got %d", MinSensitivity, st.GreenSensitivity)
	}
}

func TestInvalidEnumSettersAreNoOps(t *testing.T) {
	st := Default(1)

	st.SetScenario("mansion")
	if st.Scenario != ScenarioFamily {
		t.Errorf("Invalid scenario should be ignored, got %s", st.Scenario)
	}

	st.SetSeason("monsoon")
	if st.Season != SeasonSpring {
		t.Errorf("Invalid season should be ignored, got %s", st.Season)
	}

	st.SetACMode("turbo")
	if st.ACMode != ACOff {
		t.Errorf("Invalid AC mode should be ignored, got %s", st.ACMode)
	}
}

func TestSetMonthlyBudgetRejectsNegative(t *testing.T) {
	st := Default(1)

	st.SetMonthlyBudget(100000)
	if st.MonthlyBudget != 100000 {
		t.Errorf("Expected 100000, got %d", st.MonthlyBudget)
	}

	st.SetMonthlyBudget(-5)
	if st.MonthlyBudget != 100000 {
		t.Errorf("Negative budget should be ignored, got %d", st.MonthlyBudget)
	}
}

type fakeStore struct {
	rows    map[int64]*database.TwinStateRow
	readErr error
	upserts int
}

func newFakeStore() *fakeStore {
	return &fakeStore{rows: make(map[int64]*database.TwinStateRow)}
}

func (f *fakeStore) GetTwinState(ctx context.Context, unitID int64) (*database.TwinStateRow, error) {
	if f.readErr != nil {
		return nil, f.readErr
	}
	return f.rows[unitID], nil
}

func (f *fakeStore) UpsertTwinState(ctx context.Context, t *database.TwinStateRow) error {
	f.rows[t.UnitID] = t
	f.upserts++
	return nil
}

func TestGetOrCreateCreatesDefaultOnce(t *testing.T) {
	store := newFakeStore()
	svc := NewService(store)
	ctx := context.Background()

	st, err := svc.GetOrCreate(ctx, 3)
	if err != nil {
		t.Fatalf("GetOrCreate failed: %v", err)
	}
	if st.Scenario != ScenarioFamily {
		t.Errorf("Expected default scenario, got %s", st.Scenario)
	}
	if store.upserts != 1 {
		t.Errorf("Expected 1 upsert, got %d", store.upserts)
	}

	// Second call reads the existing row
	if _, err := svc.GetOrCreate(ctx, 3); err != nil {
		t.Fatalf("GetOrCreate failed: %v", err)
	}
	if store.upserts != 1 {
		t.Errorf("Expected no additional upsert, got %d", store.upserts)
	}
}

func TestGetOrCreateFallsBackOnReadError(t *testing.T) {
	store := newFakeStore()
	store.readErr = errors.New("connection refused")
	svc := NewService(store)

	st, err := svc.GetOrCreate(context.Background(), 5)
	if err == nil {
		t.Fatal("Expected an error")
	}
	// The returned state is still usable defaults
	if st.Scenario != ScenarioFamily || st.HeatingTemp != 22 {
		t.Errorf("Expected default state on error, got %+v", st)
	}
}

func TestUpdateBoundsPersistedRow(t *testing.T) {
	store := newFakeStore()
	svc := NewService(store)

	st, err := svc.Update(context.Background(), 9, func(s *State) {
		s.SetHeatingTemp(99)
		s.EcoMode = true
	})
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	if st.HeatingTemp != MaxHeatingTemp {
		t.Errorf("Expected clamped temp %d, got %d", MaxHeatingTemp, st.HeatingTemp)
	}

	row := store.rows[9]
	if row == nil {
		t.Fatal("Row not persisted")
	}
	if row.HeatingTemp != MaxHeatingTemp || !row.EcoMode {
		t.Errorf("Persisted row not bounded: %+v", row)
	}
}
