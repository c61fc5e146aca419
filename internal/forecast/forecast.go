package forecast

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mgavril/habitat-server/internal/database"
	"github.com/mgavril/habitat-server/internal/settings"
	"github.com/mgavril/habitat-server/internal/twin"
)

// ErrNoPricing is returned when no metric has any price configured; a
// silently-zero cost forecast would be wrong rather than empty.
var ErrNoPricing = errors.New("no pricing configured for any metric")

// Risk classifies the projected month-end cost against the unit budget.
type Risk string

const (
	RiskLow    Risk = "low"
	RiskMedium Risk = "medium"
	RiskHigh   Risk = "high"
)

// Store is the slice of the relational store the forecast engine needs.
type Store interface {
	MonthlySum(ctx context.Context, unitID int64, metric string, day time.Time) (float64, error)
	ActiveLimit(ctx context.Context, unitID int64, metric string, day time.Time) (*database.ConsumptionLimit, error)
}

// CostForecast is the run-rate projection for one unit's month.
type CostForecast struct {
	UnitID     int64
	CostToDate float64
	Projected  float64
	Budget     int64
	Risk       Risk
}

// Engine extrapolates month-end cost from the day-to-date run rate.
type Engine struct {
	store Store
	twins *twin.Service
	now   func() time.Time
}

// NewEngine creates a forecast engine.
func NewEngine(store Store, twins *twin.Service) *Engine {
	return &Engine{store: store, twins: twins, now: time.Now}
}

// Forecast computes cost-so-far from this month's consumption at the
// unit's override price (falling back to the base price), extrapolates
// it to month end, and classifies the budget risk.
func (e *Engine) Forecast(ctx context.Context, snap settings.Snapshot, unitID int64) (*CostForecast, error) {
	now := e.now()

	costToDate := 0.0
	priced := false
	for _, metric := range database.Metrics() {
		unitPrice, ok, err := e.unitPrice(ctx, snap, unitID, metric, now)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		priced = true

		consumed, err := e.store.MonthlySum(ctx, unitID, metric, now)
		if err != nil {
			return nil, fmt.Errorf("failed to sum %s consumption: %w", metric, err)
		}
		costToDate += consumed * unitPrice
	}
	if !priced {
		return nil, ErrNoPricing
	}

	daysInMonth := time.Date(now.Year(), now.Month()+1, 0, 0, 0, 0, 0, now.Location()).Day()
	projected := costToDate / float64(now.Day()) * float64(daysInMonth)

	st, err := e.twins.GetOrCreate(ctx, unitID)
	if err != nil {
		return nil, fmt.Errorf("failed to read unit budget: %w", err)
	}

	return &CostForecast{
		UnitID:     unitID,
		CostToDate: costToDate,
		Projected:  projected,
		Budget:     st.MonthlyBudget,
		Risk:       classifyRisk(projected, st.MonthlyBudget),
	}, nil
}

// unitPrice resolves the effective price for a metric: the active
// limit's override when positive, otherwise the configured base price.
// ok is false when neither is configured.
func (e *Engine) unitPrice(ctx context.Context, snap settings.Snapshot, unitID int64, metric string, day time.Time) (float64, bool, error) {
	limit, err := e.store.ActiveLimit(ctx, unitID, metric, day)
	if err != nil {
		return 0, false, fmt.Errorf("failed to read %s limit: %w", metric, err)
	}
	if limit != nil && limit.PricePerUnit > 0 {
		return limit.PricePerUnit, true, nil
	}
	if base := snap.BasePrice(metric); base > 0 {
		return base, true, nil
	}
	return 0, false, nil
}

// classifyRisk compares the projection against the budget: low below
// 90%, high from 110% up, medium between. A zero budget means nothing
// is configured and nothing can be at risk.
func classifyRisk(projected float64, budget int64) Risk {
	if budget <= 0 {
		return RiskLow
	}
	ratio := projected / float64(budget)
	switch {
	case ratio >= 1.1:
		return RiskHigh
	case ratio >= 0.9:
		return RiskMedium
	default:
		return RiskLow
	}
}
