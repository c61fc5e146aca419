package simulation

import (
	"context"
	"fmt"
	"log"
	"math"
	"math/rand"
	"time"

	"github.com/mgavril/habitat-server/internal/database"
	"github.com/mgavril/habitat-server/internal/settings"
	"github.com/mgavril/habitat-server/internal/twin"
)

// Store is the slice of the relational store the simulation engine needs.
type Store interface {
	ListActiveUnits(ctx context.Context) ([]*database.Unit, error)
	InsertReading(ctx context.Context, r *database.ConsumptionReading) error
}

// Engine synthesizes consumption readings from a unit's twin state.
type Engine struct {
	store Store
	twins *twin.Service
	rng   *rand.Rand
	now   func() time.Time
}

// NewEngine creates a simulation engine with a time-seeded random source.
func NewEngine(store Store, twins *twin.Service) *Engine {
	return &Engine{
		store: store,
		twins: twins,
		rng:   rand.New(rand.NewSource(time.Now().UnixNano())),
		now:   time.Now,
	}
}

// Generate writes one synthetic reading per metric for the unit.
// Twin-state read failures fall back to the documented defaults so a
// flaky read never stalls the simulation loop; reading writes propagate.
func (e *Engine) Generate(ctx context.Context, unit *database.Unit, snap settings.Snapshot) (int, error) {
	st, err := e.twins.GetOrCreate(ctx, unit.ID)
	if err != nil {
		log.Printf("Twin state unavailable for unit %d, simulating with defaults: %v\n", unit.ID, err)
		st = twin.Default(unit.ID)
	}

	now := e.now()
	written := 0
	for _, metric := range database.Metrics() {
		value := e.sample(st, unit.Occupants, metric, now.Hour(), snap.VariancePct)

		reading := &database.ConsumptionReading{
			UnitID:    unit.ID,
			Metric:    metric,
			Value:     value,
			Simulated: true,
			Timestamp: now,
		}
		if err := e.store.InsertReading(ctx, reading); err != nil {
			return written, fmt.Errorf("failed to insert %s reading for unit %d: %w", metric, unit.ID, err)
		}
		written++
	}

	return written, nil
}

// sample produces one rounded reading value for a metric.
func (e *Engine) sample(st twin.State, occupants int, metric string, hour int, variancePct float64) float64 {
	value := expectedValue(st, occupants, metric, hour)

	// Symmetric noise, floored at zero.
	value += (e.rng.Float64()*2 - 1) * value * (variancePct / 100.0)
	if value < 0 {
		value = 0
	}

	// Occasional spike: a burst of activity the steady model misses.
	if e.rng.Intn(spikeOdds(st.Scenario)) == 0 {
		value *= 1.2 + e.rng.Float64()*0.6
	}

	return round3(value)
}

// expectedValue is the deterministic part of the pipeline: baseline ×
// time-of-day × scenario × season × occupancy × devices, then the eco
// reduction. Strictly positive for every valid combination.
func expectedValue(st twin.State, occupants int, metric string, hour int) float64 {
	value := baseline[metric] * timeOfDayFactor(hour)
	value *= scenarioFactors[st.Scenario][metric]
	value *= seasonFactors[st.Season][metric]
	value *= occupancyFactor(occupants, metric)
	value *= deviceFactor(st, metric)

	if st.EcoMode {
		value *= 1.0 - ecoReduction(st.CostSensitivity, st.GreenSensitivity)
	}

	return value
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}

// BatchResult aggregates a batch run over all active units.
type BatchResult struct {
	Units    int
	Readings int
	Failed   int
}

// GenerateAll simulates every active unit. Per-unit failures are logged
// and counted; the batch never aborts part-way.
func (e *Engine) GenerateAll(ctx context.Context, snap settings.Snapshot) (BatchResult, error) {
	units, err := e.store.ListActiveUnits(ctx)
	if err != nil {
		return BatchResult{}, fmt.Errorf("failed to list active units: %w", err)
	}

	var res BatchResult
	for _, unit := range units {
		n, err := e.Generate(ctx, unit, snap)
		res.Readings += n
		if err != nil {
			log.Printf("Simulation failed for unit %d: %v\n", unit.ID, err)
			res.Failed++
			continue
		}
		res.Units++
	}

	return res, nil
}
