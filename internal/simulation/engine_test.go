package simulation

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/mgavril/habitat-server/internal/database"
	"github.com/mgavril/habitat-server/internal/settings"
	"github.com/mgavril/habitat-server/internal/twin"
)

type fakeStore struct {
	units     []*database.Unit
	readings  []*database.ConsumptionReading
	twins     map[int64]*database.TwinStateRow
	insertErr error
}

func newFakeStore(units ...*database.Unit) *fakeStore {
	return &fakeStore{
		units: units,
		twins: make(map[int64]*database.TwinStateRow),
	}
}

func (f *fakeStore) ListActiveUnits(ctx context.Context) ([]*database.Unit, error) {
	return f.units, nil
}

func (f *fakeStore) InsertReading(ctx context.Context, r *database.ConsumptionReading) error {
	if f.insertErr != nil {
		return f.insertErr
	}
	f.readings = append(f.readings, r)
	return nil
}

func (f *fakeStore) GetTwinState(ctx context.Context, unitID int64) (*database.TwinStateRow, error) {
	return f.twins[unitID], nil
}

func (f *fakeStore) UpsertTwinState(ctx context.Context, t *database.TwinStateRow) error {
	f.twins[t.UnitID] = t
	return nil
}

func testEngine(store *fakeStore) *Engine {
	e := NewEngine(store, twin.NewService(store))
	e.rng = rand.New(rand.NewSource(1))
	e.now = func() time.Time {
		return time.Date(2025, 3, 10, 14, 0, 0, 0, time.UTC)
	}
	return e
}

func TestExpectedValueEmptyScenarioWater(t *testing.T) {
	st := twin.Default(1)
	st.SetScenario(twin.ScenarioEmpty)

	// baseline 5.0, afternoon factor 1.0, empty water 0.15, spring 1.0,
	// one occupant, no devices, eco off
	got := expectedValue(st, 1, database.MetricWater, 14)
	want := 5.0 * 1.0 * 0.15

	if math.Abs(got-want) > 1e-9 {
		t.Errorf("Expected %f, got %f", want, got)
	}
}

func TestExpectedValueEveningPeak(t *testing.T) {
	st := twin.Default(1)

	afternoon := expectedValue(st, 1, database.MetricElectricity, 14)
	evening := expectedValue(st, 1, database.MetricElectricity, 20)

	if math.Abs(evening/afternoon-1.8) > 1e-9 {
		t.Errorf("Expected evening peak ratio 1.8, got %f", evening/afternoon)
	}
}

func TestExpectedValueOccupancyScaling(t *testing.T) {
	st := twin.Default(1)

	one := expectedValue(st, 1, database.MetricWater, 12)
	four := expectedValue(st, 4, database.MetricWater, 12)

	// Three extra occupants at 0.22 each
	want := 1.0 + 3*0.22
	if math.Abs(four/one-want) > 1e-9 {
		t.Errorf("Expected occupancy ratio %f, got %f", want, four/one)
	}
}

func TestExpectedValueEcoModeReduces(t *testing.T) {
	st := twin.Default(1)
	base := expectedValue(st, 2, database.MetricElectricity, 12)

	st.EcoMode = true
	st.SetCostSensitivity(100)
	st.SetGreenSensitivity(100)
	eco := expectedValue(st, 2, database.MetricElectricity, 12)

	// 0.10 + 100/800 + 100/900 = 0.336
	reduction := 1.0 - eco/base
	if math.Abs(reduction-(0.10+100.0/800.0+100.0/900.0)) > 1e-9 {
		t.Errorf("Unexpected eco reduction %f", reduction)
	}
}

func TestEcoReductionClamped(t *testing.T) {
	if r := ecoReduction(0, 0); r != 0.10 {
		t.Errorf("Expected floor 0.10, got %f", r)
	}
	// 0.10 + 0.125 + 0.111 > 0.35
	if r := ecoReduction(100, 100); math.Abs(r-0.33611111111) > 1e-6 {
		t.Errorf("Expected 0.336, got %f", r)
	}
}

func TestExpectedValuePositiveForAllCombinations(t *testing.T) {
	scenarios := []twin.Scenario{
		twin.ScenarioEmpty, twin.ScenarioFamily, twin.ScenarioParty,
		twin.ScenarioNight, twin.ScenarioTravel,
	}
	seasons := []twin.Season{
		twin.SeasonSpring, twin.SeasonSummer, twin.SeasonAutumn, twin.SeasonWinter,
	}

	for _, sc := range scenarios {
		for _, se := range seasons {
			for _, metric := range database.Metrics() {
				for hour := 0; hour < 24; hour++ {
					st := twin.Default(1)
					st.SetScenario(sc)
					st.SetSeason(se)
					v := expectedValue(st, 3, metric, hour)
					if v <= 0 {
						t.Errorf("Non-positive value %f for %s/%s/%s at hour %d",
							v, sc, se, metric, hour)
					}
				}
			}
		}
	}
}

func TestGenerateWritesOneReadingPerMetric(t *testing.T) {
	unit := &database.Unit{ID: 1, Name: "101", Occupants: 3, IsActive: true}
	store := newFakeStore(unit)
	e := testEngine(store)

	n, err := e.Generate(context.Background(), unit, settings.DefaultSnapshot())
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if n != 3 {
		t.Errorf("Expected 3 readings, got %d", n)
	}
	if len(store.readings) != 3 {
		t.Fatalf("Expected 3 stored readings, got %d", len(store.readings))
	}

	seen := make(map[string]bool)
	for _, r := range store.readings {
		if !r.Simulated {
			t.Error("Reading not flagged as simulated")
		}
		if r.Value < 0 {
			t.Errorf("Negative reading %f for %s", r.Value, r.Metric)
		}
		seen[r.Metric] = true
	}
	for _, m := range database.Metrics() {
		if !seen[m] {
			t.Errorf("Missing reading for metric %s", m)
		}
	}
}

func TestGenerateStopsOnInsertError(t *testing.T) {
	unit := &database.Unit{ID: 1, Name: "101", Occupants: 2, IsActive: true}
	store := newFakeStore(unit)
	store.insertErr = errors.New("disk full")
	e := testEngine(store)

	_, err := e.Generate(context.Background(), unit, settings.DefaultSnapshot())
	if err == nil {
		t.Fatal("Expected an error")
	}
}

func TestGenerateAllCountsUnits(t *testing.T) {
	store := newFakeStore(
		&database.Unit{ID: 1, Name: "101", Occupants: 2, IsActive: true},
		&database.Unit{ID: 2, Name: "102", Occupants: 4, IsActive: true},
	)
	e := testEngine(store)

	res, err := e.GenerateAll(context.Background(), settings.DefaultSnapshot())
	if err != nil {
		t.Fatalf("GenerateAll failed: %v", err)
	}
	if res.Units != 2 {
		t.Errorf("Expected 2 units, got %d", res.Units)
	}
	if res.Readings != 6 {
		t.Errorf("Expected 6 readings, got %d", res.Readings)
	}
	if res.Failed != 0 {
		t.Errorf("Expected no failures, got %d", res.Failed)
	}
}

func TestSampleRoundsToThreeDecimals(t *testing.T) {
	store := newFakeStore()
	e := testEngine(store)
	st := twin.Default(1)

	for i := 0; i < 100; i++ {
		v := e.sample(st, 2, database.MetricWater, 12, 10)
		scaled := v * 1000
		if math.Abs(scaled-math.Round(scaled)) > 1e-6 {
			t.Fatalf("Value %f not rounded to 3 decimals", v)
		}
	}
}

func TestSpikeOdds(t *testing.T) {
	cases := map[twin.Scenario]int{
		twin.ScenarioParty:  5,
		twin.ScenarioEmpty:  25,
		twin.ScenarioTravel: 25,
		twin.ScenarioFamily: 12,
		twin.ScenarioNight:  12,
	}
	for sc, want := range cases {
		if got := spikeOdds(sc); got != want {
			t.Errorf("spikeOdds(%s) = %d, want %d", sc, got, want)
		}
	}
}
