package carbon

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/mgavril/habitat-server/internal/settings"
)

type fakeStore struct {
	sums map[string]float64
	days int
}

func (f *fakeStore) SumSince(ctx context.Context, unitID int64, metric string, since time.Time) (float64, error) {
	return f.sums[metric], nil
}

func (f *fakeStore) MonthDistinctDays(ctx context.Context, unitID int64, day time.Time) (int, error) {
	return f.days, nil
}

func testEngine(store *fakeStore) *Engine {
	e := NewEngine(store)
	e.now = func() time.Time {
		// June has 30 days
		return time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	}
	return e
}

func TestBreakdownAppliesFactors(t *testing.T) {
	store := &fakeStore{sums: map[string]float64{
		"water":       100,
		"electricity": 50,
		"gas":         10,
	}}
	e := testEngine(store)

	kg, err := e.Breakdown(context.Background(), settings.DefaultSnapshot(), 1, WindowToday)
	if err != nil {
		t.Fatalf("Breakdown failed: %v", err)
	}

	if math.Abs(kg["water"]-100*settings.DefaultCarbonFactorWater) > 1e-9 {
		t.Errorf("Unexpected water CO2e %f", kg["water"])
	}
	if math.Abs(kg["electricity"]-50*settings.DefaultCarbonFactorElec) > 1e-9 {
		t.Errorf("Unexpected electricity CO2e %f", kg["electricity"])
	}
	if math.Abs(kg["gas"]-10*settings.DefaultCarbonFactorGas) > 1e-9 {
		t.Errorf("Unexpected gas CO2e %f", kg["gas"])
	}
}

func TestFootprintSumsBreakdown(t *testing.T) {
	store := &fakeStore{sums: map[string]float64{
		"water":       100,
		"electricity": 50,
		"gas":         10,
	}}
	e := testEngine(store)
	snap := settings.DefaultSnapshot()

	total, err := e.Footprint(context.Background(), snap, 1, WindowWeek)
	if err != nil {
		t.Fatalf("Footprint failed: %v", err)
	}

	want := 100*snap.CarbonFactorWater + 50*snap.CarbonFactorElec + 10*snap.CarbonFactorGas
	if math.Abs(total-want) > 1e-9 {
		t.Errorf("Expected %f, got %f", want, total)
	}
}

func TestFootprintRejectsUnknownWindow(t *testing.T) {
	e := testEngine(&fakeStore{sums: map[string]float64{}})

	if _, err := e.Footprint(context.Background(), settings.DefaultSnapshot(), 1, Window("decade")); err == nil {
		t.Error("Expected an error for an unknown window")
	}
}

func TestMonthlyForecastExtrapolates(t *testing.T) {
	// 60 kg CO2e of gas over 15 observed days in a 30-day month
	store := &fakeStore{
		sums: map[string]float64{"gas": 60 / settings.DefaultCarbonFactorGas},
		days: 15,
	}
	e := testEngine(store)

	got, err := e.MonthlyForecast(context.Background(), settings.DefaultSnapshot(), 1)
	if err != nil {
		t.Fatalf("MonthlyForecast failed: %v", err)
	}
	if math.Abs(got-120) > 1e-9 {
		t.Errorf("Expected forecast 120, got %f", got)
	}
}

func TestMonthlyForecastNoReadings(t *testing.T) {
	store := &fakeStore{sums: map[string]float64{}, days: 0}
	e := testEngine(store)

	got, err := e.MonthlyForecast(context.Background(), settings.DefaultSnapshot(), 1)
	if err != nil {
		t.Fatalf("MonthlyForecast failed: %v", err)
	}
	if got != 0 {
		t.Errorf("Expected zero forecast without observed days, got %f", got)
	}
}
