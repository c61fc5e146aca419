package analysis

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/mgavril/habitat-server/internal/database"
	"github.com/mgavril/habitat-server/internal/protocol"
	"github.com/mgavril/habitat-server/internal/settings"
)

// Leak heuristic parameters: within a 6-hour window, take the last 12
// readings and flag when more than 80% of adjacent pairs are rising.
// Amplitude is deliberately ignored; a rising trickle flags the same as
// a rising torrent.
const (
	leakWindow       = 6 * time.Hour
	leakSampleCount  = 12
	leakMinSamples   = 6
	leakRiseFraction = 0.8
)

// Units whose summed credit balance drops below this raise a low-credit
// alert.
const lowCreditFloor = -50.0

// Store is the slice of the relational store the analyzer needs.
type Store interface {
	ListActiveUnits(ctx context.Context) ([]*database.Unit, error)
	SumForDay(ctx context.Context, unitID int64, metric string, day time.Time) (float64, error)
	WeekDailyAverage(ctx context.Context, unitID int64, metric string, day time.Time) (float64, error)
	RecentReadings(ctx context.Context, unitID int64, metric string, since time.Time, limit int) ([]*database.ConsumptionReading, error)
	TotalCreditBalance(ctx context.Context, unitID int64) (float64, error)
	InsertAlertOnce(ctx context.Context, a *database.Alert) (bool, error)
}

// Publisher fans created alerts out to the message transport. May be nil.
type Publisher interface {
	Publish(ctx context.Context, key string, value []byte) error
}

// Analyzer scans readings and balances for anomalies and raises
// deduplicated alerts.
type Analyzer struct {
	store     Store
	publisher Publisher
	now       func() time.Time
}

// NewAnalyzer creates an analyzer. publisher may be nil when no
// transport fan-out is wanted.
func NewAnalyzer(store Store, publisher Publisher) *Analyzer {
	return &Analyzer{
		store:     store,
		publisher: publisher,
		now:       time.Now,
	}
}

// AnalyzeUnit runs all checks for one unit and returns how many alerts
// were actually created. Re-running within the same calendar day is a
// no-op per alert type.
func (a *Analyzer) AnalyzeUnit(ctx context.Context, unit *database.Unit, snap settings.Snapshot) (int, error) {
	created := 0
	now := a.now()

	for _, metric := range database.Metrics() {
		over, pct, err := a.checkOverConsumption(ctx, unit.ID, metric, now, snap.AlertThresholdPct)
		if err != nil {
			return created, fmt.Errorf("over-consumption check failed for %s: %w", metric, err)
		}
		if over {
			n, err := a.raise(ctx, &database.Alert{
				UnitID:   unit.ID,
				Type:     database.AlertOverConsumption,
				Severity: database.SeverityWarning,
				Title:    fmt.Sprintf("High %s consumption", metric),
				Message:  fmt.Sprintf("Today's %s use is %.0f%% above the 7-day average in %s.", metric, pct, unit.Name),
			})
			if err != nil {
				return created, err
			}
			created += n
		}

		leak, err := a.checkPossibleLeak(ctx, unit.ID, metric, now)
		if err != nil {
			return created, fmt.Errorf("leak check failed for %s: %w", metric, err)
		}
		if leak {
			n, err := a.raise(ctx, &database.Alert{
				UnitID:   unit.ID,
				Type:     database.AlertLeakSuspected,
				Severity: database.SeverityWarning,
				Title:    fmt.Sprintf("Possible %s leak", metric),
				Message:  fmt.Sprintf("Recent %s readings in %s keep rising; check for an open valve or an always-on load.", metric, unit.Name),
			})
			if err != nil {
				return created, err
			}
			created += n
		}
	}

	balance, err := a.store.TotalCreditBalance(ctx, unit.ID)
	if err != nil {
		return created, fmt.Errorf("credit balance check failed: %w", err)
	}
	if balance < lowCreditFloor {
		n, err := a.raise(ctx, &database.Alert{
			UnitID:   unit.ID,
			Type:     database.AlertLowCredit,
			Severity: database.SeverityCritical,
			Title:    "Low energy credit",
			Message:  fmt.Sprintf("Total credit balance for %s is %.1f; consider buying credits or reducing use.", unit.Name, balance),
		})
		if err != nil {
			return created, err
		}
		created += n
	}

	return created, nil
}

// checkOverConsumption compares today's sum against the mean of the last
// 7 complete days. A zero weekly average means no usable history and
// never flags.
func (a *Analyzer) checkOverConsumption(ctx context.Context, unitID int64, metric string, now time.Time, thresholdPct float64) (bool, float64, error) {
	today, err := a.store.SumForDay(ctx, unitID, metric, now)
	if err != nil {
		return false, 0, err
	}
	weekAvg, err := a.store.WeekDailyAverage(ctx, unitID, metric, now)
	if err != nil {
		return false, 0, err
	}
	if weekAvg == 0 {
		return false, 0, nil
	}
	pct := (today - weekAvg) / weekAvg * 100
	return pct > thresholdPct, pct, nil
}

// checkPossibleLeak fetches the recent reading window and applies the
// monotonic-rise heuristic.
func (a *Analyzer) checkPossibleLeak(ctx context.Context, unitID int64, metric string, now time.Time) (bool, error) {
	readings, err := a.store.RecentReadings(ctx, unitID, metric, now.Add(-leakWindow), leakSampleCount)
	if err != nil {
		return false, err
	}
	values := make([]float64, len(readings))
	for i, r := range readings {
		values[i] = r.Value
	}
	return possibleLeak(values), nil
}

// possibleLeak reports whether a chronological value sequence is mostly
// rising. Sequences shorter than leakMinSamples never flag.
func possibleLeak(values []float64) bool {
	if len(values) < leakMinSamples {
		return false
	}
	rising := 0
	for i := 1; i < len(values); i++ {
		if values[i] > values[i-1] {
			rising++
		}
	}
	return float64(rising)/float64(len(values)-1) > leakRiseFraction
}

// raise inserts the alert (deduplicated per unit/type/day) and publishes
// it when a row was created. Returns 1 when created, 0 on dedup.
func (a *Analyzer) raise(ctx context.Context, alert *database.Alert) (int, error) {
	created, err := a.store.InsertAlertOnce(ctx, alert)
	if err != nil {
		return 0, fmt.Errorf("failed to create %s alert: %w", alert.Type, err)
	}
	if !created {
		return 0, nil
	}

	if a.publisher != nil {
		event := &protocol.AlertEvent{
			AlertID:   alert.ID,
			UnitID:    alert.UnitID,
			Type:      alert.Type,
			Severity:  alert.Severity,
			Title:     alert.Title,
			Message:   alert.Message,
			CreatedAt: alert.CreatedAt,
		}
		data, err := protocol.EncodeAlertEvent(event)
		if err != nil {
			log.Printf("Failed to encode alert event: %v\n", err)
			return 1, nil
		}
		key := fmt.Sprintf("%d-%s", alert.UnitID, alert.Type)
		if err := a.publisher.Publish(ctx, key, data); err != nil {
			// The alert row exists; fan-out is best effort.
			log.Printf("Failed to publish alert event: %v\n", err)
		}
	}

	return 1, nil
}

// BatchResult aggregates an analyze-all run.
type BatchResult struct {
	Units  int
	Alerts int
	Failed int
}

// AnalyzeAll runs the checks for every active unit. Per-unit failures
// are logged and counted; the batch never aborts part-way.
func (a *Analyzer) AnalyzeAll(ctx context.Context, snap settings.Snapshot) (BatchResult, error) {
	units, err := a.store.ListActiveUnits(ctx)
	if err != nil {
		return BatchResult{}, fmt.Errorf("failed to list active units: %w", err)
	}

	var res BatchResult
	for _, unit := range units {
		n, err := a.AnalyzeUnit(ctx, unit, snap)
		res.Alerts += n
		if err != nil {
			log.Printf("Analysis failed for unit %d: %v\n", unit.ID, err)
			res.Failed++
			continue
		}
		res.Units++
	}

	return res, nil
}
