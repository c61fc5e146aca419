package carbon

import (
	"context"
	"fmt"
	"time"

	"github.com/mgavril/habitat-server/internal/database"
	"github.com/mgavril/habitat-server/internal/settings"
)

// Window selects the consumption period for a footprint query.
type Window string

const (
	WindowToday Window = "today"
	WindowWeek  Window = "week"
	WindowMonth Window = "month"
)

// Store is the slice of the relational store the carbon engine needs.
type Store interface {
	SumSince(ctx context.Context, unitID int64, metric string, since time.Time) (float64, error)
	MonthDistinctDays(ctx context.Context, unitID int64, day time.Time) (int, error)
}

// Engine converts consumption into CO2-equivalent mass. Stateless apart
// from its store handle.
type Engine struct {
	store Store
	now   func() time.Time
}

// NewEngine creates a carbon engine.
func NewEngine(store Store) *Engine {
	return &Engine{store: store, now: time.Now}
}

// windowStart maps a window to its inclusive start instant.
func (e *Engine) windowStart(w Window) (time.Time, error) {
	now := e.now()
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	switch w {
	case WindowToday:
		return midnight, nil
	case WindowWeek:
		return midnight.AddDate(0, 0, -7), nil
	case WindowMonth:
		return midnight.AddDate(0, 0, -30), nil
	}
	return time.Time{}, fmt.Errorf("unknown carbon window: %s", w)
}

// Breakdown returns the CO2e kg per metric over the window.
func (e *Engine) Breakdown(ctx context.Context, snap settings.Snapshot, unitID int64, w Window) (map[string]float64, error) {
	since, err := e.windowStart(w)
	if err != nil {
		return nil, err
	}

	kg := make(map[string]float64, 3)
	for _, metric := range database.Metrics() {
		consumed, err := e.store.SumSince(ctx, unitID, metric, since)
		if err != nil {
			return nil, fmt.Errorf("failed to sum %s consumption: %w", metric, err)
		}
		kg[metric] = consumed * snap.CarbonFactor(metric)
	}

	return kg, nil
}

// Footprint returns the total CO2e kg over the window.
func (e *Engine) Footprint(ctx context.Context, snap settings.Snapshot, unitID int64, w Window) (float64, error) {
	breakdown, err := e.Breakdown(ctx, snap, unitID, w)
	if err != nil {
		return 0, err
	}
	total := 0.0
	for _, kg := range breakdown {
		total += kg
	}
	return total, nil
}

// MonthlyForecast extrapolates this month's footprint: the average kg
// per observed day multiplied by the number of days in the month.
// Months with no readings forecast zero.
func (e *Engine) MonthlyForecast(ctx context.Context, snap settings.Snapshot, unitID int64) (float64, error) {
	now := e.now()
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())

	total := 0.0
	for _, metric := range database.Metrics() {
		consumed, err := e.store.SumSince(ctx, unitID, metric, monthStart)
		if err != nil {
			return 0, fmt.Errorf("failed to sum %s consumption: %w", metric, err)
		}
		total += consumed * snap.CarbonFactor(metric)
	}

	days, err := e.store.MonthDistinctDays(ctx, unitID, now)
	if err != nil {
		return 0, fmt.Errorf("failed to count observed days: %w", err)
	}
	if days == 0 {
		return 0, nil
	}

	daysInMonth := time.Date(now.Year(), now.Month()+1, 0, 0, 0, 0, 0, now.Location()).Day()
	return total / float64(days) * float64(daysInMonth), nil
}
