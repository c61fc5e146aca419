package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// ActiveLimit returns the consumption limit row covering day for a
// (unit, metric), or nil when none is configured.
func (db *DB) ActiveLimit(ctx context.Context, unitID int64, metric string, day time.Time) (*ConsumptionLimit, error) {
	query := `
		SELECT id, unit_id, metric, monthly_limit, price_per_unit, period_start, period_end
		FROM consumption_limits
		WHERE unit_id = $1 AND metric = $2
		  AND period_start <= $3::date AND period_end >= $3::date
		ORDER BY period_start DESC
		LIMIT 1
	`
	var l ConsumptionLimit
	err := db.QueryRowContext(ctx, query, unitID, metric, day).Scan(
		&l.ID, &l.UnitID, &l.Metric, &l.MonthlyLimit, &l.PricePerUnit,
		&l.PeriodStart, &l.PeriodEnd,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &l, nil
}

// UpsertLimit inserts or updates a consumption limit, unique on
// (unit, metric, period_start).
func (db *DB) UpsertLimit(ctx context.Context, l *ConsumptionLimit) error {
	query := `
		INSERT INTO consumption_limits (unit_id, metric, monthly_limit, price_per_unit, period_start, period_end)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (unit_id, metric, period_start) DO UPDATE
		SET monthly_limit = EXCLUDED.monthly_limit,
		    price_per_unit = EXCLUDED.price_per_unit,
		    period_end = EXCLUDED.period_end
	`
	_, err := db.ExecContext(ctx, query,
		l.UnitID, l.Metric, l.MonthlyLimit, l.PricePerUnit, l.PeriodStart, l.PeriodEnd,
	)
	return err
}

// ReplaceCreditBalance overwrites the credit balance for a (unit, metric).
// Used by the wholesale recompute; transfers go through TransferCredits.
func (db *DB) ReplaceCreditBalance(ctx context.Context, unitID int64, metric string, balance float64) error {
	query := `
		INSERT INTO energy_credits (unit_id, metric, balance)
		VALUES ($1, $2, $3)
		ON CONFLICT (unit_id, metric) DO UPDATE
		SET balance = EXCLUDED.balance,
		    updated_at = CURRENT_TIMESTAMP
	`
	_, err := db.ExecContext(ctx, query, unitID, metric, balance)
	return err
}

// GetCreditBalance returns the balance for a (unit, metric); missing rows
// read as zero.
func (db *DB) GetCreditBalance(ctx context.Context, unitID int64, metric string) (float64, error) {
	query := `SELECT balance FROM energy_credits WHERE unit_id = $1 AND metric = $2`
	var balance float64
	err := db.QueryRowContext(ctx, query, unitID, metric).Scan(&balance)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	return balance, err
}

// TotalCreditBalance returns the summed balance across all metrics for a unit.
func (db *DB) TotalCreditBalance(ctx context.Context, unitID int64) (float64, error) {
	query := `SELECT COALESCE(SUM(balance), 0) FROM energy_credits WHERE unit_id = $1`
	var total float64
	err := db.QueryRowContext(ctx, query, unitID).Scan(&total)
	return total, err
}

// CountCreditHolders returns how many units hold a negative (buyers) and
// a positive (sellers) balance for a metric, system-wide.
func (db *DB) CountCreditHolders(ctx context.Context, metric string) (buyers, sellers int, err error) {
	query := `
		SELECT COUNT(*) FILTER (WHERE balance < 0),
		       COUNT(*) FILTER (WHERE balance > 0)
		FROM energy_credits
		WHERE metric = $1
	`
	err = db.QueryRowContext(ctx, query, metric).Scan(&buyers, &sellers)
	return buyers, sellers, err
}

// TransferCredits posts a ledger row and applies both balance deltas in
// a single database transaction. Either everything commits or nothing
// does; the balance updates are atomic increments, so concurrent
// transfers against the same (unit, metric) cannot lose updates.
func (db *DB) TransferCredits(ctx context.Context, t *CreditTransaction) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	insert := `
		INSERT INTO credit_transactions (
			reference, from_unit_id, to_unit_id, metric, amount,
			price_per_credit, total_price, type, status
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, created_at
	`
	err = tx.QueryRowContext(ctx, insert,
		t.Reference, t.FromUnitID, t.ToUnitID, t.Metric, t.Amount,
		t.PricePerCredit, t.TotalPrice, t.Type, t.Status,
	).Scan(&t.ID, &t.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert ledger row: %w", err)
	}

	adjust := `
		INSERT INTO energy_credits (unit_id, metric, balance)
		VALUES ($1, $2, $3)
		ON CONFLICT (unit_id, metric) DO UPDATE
		SET balance = energy_credits.balance + EXCLUDED.balance,
		    updated_at = CURRENT_TIMESTAMP
	`
	if t.FromUnitID != nil {
		if _, err := tx.ExecContext(ctx, adjust, *t.FromUnitID, t.Metric, -t.Amount); err != nil {
			return fmt.Errorf("failed to debit unit %d: %w", *t.FromUnitID, err)
		}
	}
	if _, err := tx.ExecContext(ctx, adjust, t.ToUnitID, t.Metric, t.Amount); err != nil {
		return fmt.Errorf("failed to credit unit %d: %w", t.ToUnitID, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transfer: %w", err)
	}
	return nil
}
