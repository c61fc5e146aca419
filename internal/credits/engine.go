package credits

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/mgavril/habitat-server/internal/database"
	"github.com/mgavril/habitat-server/internal/settings"
)

var (
	ErrInvalidMetric = errors.New("unknown metric")
	ErrInvalidAmount = errors.New("amount must be positive")
	ErrInvalidType   = errors.New("unknown transaction type")
)

// Store is the slice of the relational store the credit engine needs.
type Store interface {
	ListActiveUnits(ctx context.Context) ([]*database.Unit, error)
	ActiveLimit(ctx context.Context, unitID int64, metric string, day time.Time) (*database.ConsumptionLimit, error)
	MonthlySum(ctx context.Context, unitID int64, metric string, day time.Time) (float64, error)
	ReplaceCreditBalance(ctx context.Context, unitID int64, metric string, balance float64) error
	CountCreditHolders(ctx context.Context, metric string) (buyers, sellers int, err error)
	TransferCredits(ctx context.Context, t *database.CreditTransaction) error
}

// Engine recomputes credit balances, prices credits from demand, and
// posts ledger transactions.
type Engine struct {
	store Store
	now   func() time.Time
}

// NewEngine creates a credit engine.
func NewEngine(store Store) *Engine {
	return &Engine{store: store, now: time.Now}
}

// CalculateUnitCredits recomputes the balance for every metric of one
// unit as "this month's limit minus this month's consumption" and
// overwrites the stored balance. Idempotent: re-running without new
// readings produces identical balances. Metrics without an active limit
// are skipped.
func (e *Engine) CalculateUnitCredits(ctx context.Context, unitID int64) error {
	today := e.now()

	for _, metric := range database.Metrics() {
		limit, err := e.store.ActiveLimit(ctx, unitID, metric, today)
		if err != nil {
			return fmt.Errorf("failed to read %s limit for unit %d: %w", metric, unitID, err)
		}
		if limit == nil {
			continue
		}

		consumed, err := e.store.MonthlySum(ctx, unitID, metric, today)
		if err != nil {
			return fmt.Errorf("failed to sum %s consumption for unit %d: %w", metric, unitID, err)
		}

		balance := limit.MonthlyLimit - consumed
		if err := e.store.ReplaceCreditBalance(ctx, unitID, metric, balance); err != nil {
			return fmt.Errorf("failed to store %s balance for unit %d: %w", metric, unitID, err)
		}
	}

	return nil
}

// demandLevel is the buyer/seller ratio clipped to [0, 1]. Buyers are
// units holding a negative balance, sellers a positive one, counted
// system-wide per metric.
func demandLevel(buyers, sellers int) float64 {
	if sellers < 1 {
		sellers = 1
	}
	level := float64(buyers) / float64(sellers)
	if level > 1.0 {
		level = 1.0
	}
	return level
}

// price applies the demand uplift to a base price.
func price(basePrice, level, multiplier float64) float64 {
	return basePrice * (1.0 + level*multiplier)
}

// Price computes the current dynamic credit price for a metric. It is
// recomputed from live balances on every call; there is no caching.
func (e *Engine) Price(ctx context.Context, snap settings.Snapshot, metric string) (float64, error) {
	if !database.ValidMetric(metric) {
		return 0, ErrInvalidMetric
	}
	buyers, sellers, err := e.store.CountCreditHolders(ctx, metric)
	if err != nil {
		return 0, fmt.Errorf("failed to count credit holders: %w", err)
	}
	return price(snap.BasePrice(metric), demandLevel(buyers, sellers), snap.DemandMultiplier), nil
}

// CreateTransaction prices the credits, posts the ledger row, and moves
// the balances (debit from when present, credit to) as one atomic store
// operation.
func (e *Engine) CreateTransaction(ctx context.Context, snap settings.Snapshot, from *int64, to int64, metric string, amount float64, txType string) (*database.CreditTransaction, error) {
	if !database.ValidMetric(metric) {
		return nil, ErrInvalidMetric
	}
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}
	if !database.ValidTxType(txType) {
		return nil, ErrInvalidType
	}

	unitPrice, err := e.Price(ctx, snap, metric)
	if err != nil {
		return nil, err
	}

	tx := &database.CreditTransaction{
		Reference:      uuid.NewString(),
		FromUnitID:     from,
		ToUnitID:       to,
		Metric:         metric,
		Amount:         amount,
		PricePerCredit: unitPrice,
		TotalPrice:     amount * unitPrice,
		Type:           txType,
		Status:         database.TxStatusCompleted,
	}
	if err := e.store.TransferCredits(ctx, tx); err != nil {
		return nil, fmt.Errorf("failed to post transaction: %w", err)
	}

	return tx, nil
}

// BatchResult aggregates a calculate-all run.
type BatchResult struct {
	Units  int
	Failed int
}

// CalculateAll recomputes balances for every active unit. Per-unit
// failures are logged and counted; the batch never aborts part-way.
func (e *Engine) CalculateAll(ctx context.Context) (BatchResult, error) {
	units, err := e.store.ListActiveUnits(ctx)
	if err != nil {
		return BatchResult{}, fmt.Errorf("failed to list active units: %w", err)
	}

	var res BatchResult
	for _, unit := range units {
		if err := e.CalculateUnitCredits(ctx, unit.ID); err != nil {
			log.Printf("Credit calculation failed for unit %d: %v\n", unit.ID, err)
			res.Failed++
			continue
		}
		res.Units++
	}

	return res, nil
}
