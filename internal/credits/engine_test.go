package credits

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/mgavril/habitat-server/internal/database"
	"github.com/mgavril/habitat-server/internal/settings"
)

type holderCount struct {
	buyers  int
	sellers int
}

type fakeStore struct {
	units    []*database.Unit
	limits   map[string]*database.ConsumptionLimit
	sums     map[string]float64
	balances map[string]float64
	holders  map[string]holderCount
	txs      []*database.CreditTransaction
	xferErr  error
}

func newFakeStore(units ...*database.Unit) *fakeStore {
	return &fakeStore{
		units:    units,
		limits:   make(map[string]*database.ConsumptionLimit),
		sums:     make(map[string]float64),
		balances: make(map[string]float64),
		holders:  make(map[string]holderCount),
	}
}

func key(unitID int64, metric string) string {
	return metric + "/" + string(rune('0'+unitID))
}

func (f *fakeStore) ListActiveUnits(ctx context.Context) ([]*database.Unit, error) {
	return f.units, nil
}

func (f *fakeStore) ActiveLimit(ctx context.Context, unitID int64, metric string, day time.Time) (*database.ConsumptionLimit, error) {
	return f.limits[key(unitID, metric)], nil
}

func (f *fakeStore) MonthlySum(ctx context.Context, unitID int64, metric string, day time.Time) (float64, error) {
	return f.sums[key(unitID, metric)], nil
}

func (f *fakeStore) ReplaceCreditBalance(ctx context.Context, unitID int64, metric string, balance float64) error {
	f.balances[key(unitID, metric)] = balance
	return nil
}

func (f *fakeStore) CountCreditHolders(ctx context.Context, metric string) (int, int, error) {
	h := f.holders[metric]
	return h.buyers, h.sellers, nil
}

func (f *fakeStore) TransferCredits(ctx context.Context, t *database.CreditTransaction) error {
	if f.xferErr != nil {
		return f.xferErr
	}
	f.txs = append(f.txs, t)
	if t.FromUnitID != nil {
		f.balances[key(*t.FromUnitID, t.Metric)] -= t.Amount
	}
	f.balances[key(t.ToUnitID, t.Metric)] += t.Amount
	return nil
}

func TestCalculateUnitCreditsBalance(t *testing.T) {
	store := newFakeStore()
	store.limits[key(1, database.MetricWater)] = &database.ConsumptionLimit{
		UnitID: 1, Metric: database.MetricWater, MonthlyLimit: 150,
	}
	store.sums[key(1, database.MetricWater)] = 180

	e := NewEngine(store)
	if err := e.CalculateUnitCredits(context.Background(), 1); err != nil {
		t.Fatalf("CalculateUnitCredits failed: %v", err)
	}

	// Over-consumed by 30, so the balance goes negative
	if got := store.balances[key(1, database.MetricWater)]; got != -30 {
		t.Errorf("Expected balance -30, got %f", got)
	}
}

func TestCalculateUnitCreditsIdempotent(t *testing.T) {
	store := newFakeStore()
	store.limits[key(1, database.MetricGas)] = &database.ConsumptionLimit{
		UnitID: 1, Metric: database.MetricGas, MonthlyLimit: 90,
	}
	store.sums[key(1, database.MetricGas)] = 40

	e := NewEngine(store)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := e.CalculateUnitCredits(ctx, 1); err != nil {
			t.Fatalf("Run %d failed: %v", i, err)
		}
	}

	if got := store.balances[key(1, database.MetricGas)]; got != 50 {
		t.Errorf("Expected balance 50 after reruns, got %f", got)
	}
}

func TestCalculateUnitCreditsSkipsMetricsWithoutLimit(t *testing.T) {
	store := newFakeStore()
	store.sums[key(1, database.MetricWater)] = 100

	e := NewEngine(store)
	if err := e.CalculateUnitCredits(context.Background(), 1); err != nil {
		t.Fatalf("CalculateUnitCredits failed: %v", err)
	}
	if len(store.balances) != 0 {
		t.Errorf("Expected no balances without limits, got %v", store.balances)
	}
}

func TestDemandLevel(t *testing.T) {
	cases := []struct {
		buyers, sellers int
		want            float64
	}{
		{0, 0, 0},
		{2, 1, 1.0}, // clipped
		{1, 2, 0.5},
		{3, 0, 1.0}, // zero sellers counts as one
		{1, 4, 0.25},
	}
	for _, c := range cases {
		if got := demandLevel(c.buyers, c.sellers); got != c.want {
			t.Errorf("demandLevel(%d, %d) = %f, want %f", c.buyers, c.sellers, got, c.want)
		}
	}
}

func TestPriceHighDemand(t *testing.T) {
	store := newFakeStore()
	store.holders[database.MetricWater] = holderCount{buyers: 2, sellers: 1}

	e := NewEngine(store)
	got, err := e.Price(context.Background(), settings.DefaultSnapshot(), database.MetricWater)
	if err != nil {
		t.Fatalf("Price failed: %v", err)
	}
	// 1500 base * (1 + 1.0 * 0.2)
	if got != 1800 {
		t.Errorf("Expected price 1800, got %f", got)
	}
}

func TestPriceNoDemand(t *testing.T) {
	store := newFakeStore()

	e := NewEngine(store)
	got, err := e.Price(context.Background(), settings.DefaultSnapshot(), database.MetricGas)
	if err != nil {
		t.Fatalf("Price failed: %v", err)
	}
	if got != settings.DefaultBasePriceGas {
		t.Errorf("Expected base price with no buyers, got %f", got)
	}
}

func TestPriceRejectsUnknownMetric(t *testing.T) {
	e := NewEngine(newFakeStore())
	if _, err := e.Price(context.Background(), settings.DefaultSnapshot(), "plasma"); !errors.Is(err, ErrInvalidMetric) {
		t.Errorf("Expected ErrInvalidMetric, got %v", err)
	}
}

func TestCreateTransactionMovesBalances(t *testing.T) {
	store := newFakeStore()
	from := int64(2)

	e := NewEngine(store)
	tx, err := e.CreateTransaction(context.Background(), settings.DefaultSnapshot(),
		&from, 1, database.MetricElectricity, 10, database.TxTypeManualSell)
	if err != nil {
		t.Fatalf("CreateTransaction failed: %v", err)
	}

	if tx.Reference == "" {
		t.Error("Expected a generated reference")
	}
	if tx.TotalPrice != tx.Amount*tx.PricePerCredit {
		t.Errorf("Total %f does not match amount*price", tx.TotalPrice)
	}
	if tx.Status != database.TxStatusCompleted {
		t.Errorf("Expected completed status, got %s", tx.Status)
	}

	// Credits are conserved: debit mirrors credit
	if got := store.balances[key(2, database.MetricElectricity)]; got != -10 {
		t.Errorf("Expected seller balance -10, got %f", got)
	}
	if got := store.balances[key(1, database.MetricElectricity)]; got != 10 {
		t.Errorf("Expected buyer balance 10, got %f", got)
	}
}

func TestCreateTransactionSystemPurchase(t *testing.T) {
	store := newFakeStore()

	e := NewEngine(store)
	_, err := e.CreateTransaction(context.Background(), settings.DefaultSnapshot(),
		nil, 1, database.MetricWater, 5, database.TxTypeManualBuy)
	if err != nil {
		t.Fatalf("CreateTransaction failed: %v", err)
	}

	if got := store.balances[key(1, database.MetricWater)]; got != 5 {
		t.Errorf("Expected balance 5, got %f", got)
	}
}

func TestCreateTransactionValidation(t *testing.T) {
	e := NewEngine(newFakeStore())
	snap := settings.DefaultSnapshot()
	ctx := context.Background()

	if _, err := e.CreateTransaction(ctx, snap, nil, 1, "plasma", 5, database.TxTypeManualBuy); !errors.Is(err, ErrInvalidMetric) {
		t.Errorf("Expected ErrInvalidMetric, got %v", err)
	}
	if _, err := e.CreateTransaction(ctx, snap, nil, 1, database.MetricWater, 0, database.TxTypeManualBuy); !errors.Is(err, ErrInvalidAmount) {
		t.Errorf("Expected ErrInvalidAmount, got %v", err)
	}
	if _, err := e.CreateTransaction(ctx, snap, nil, 1, database.MetricWater, -3, database.TxTypeManualBuy); !errors.Is(err, ErrInvalidAmount) {
		t.Errorf("Expected ErrInvalidAmount, got %v", err)
	}
	if _, err := e.CreateTransaction(ctx, snap, nil, 1, database.MetricWater, 5, "barter"); !errors.Is(err, ErrInvalidType) {
		t.Errorf("Expected ErrInvalidType, got %v", err)
	}
}

func TestCalculateAllAggregates(t *testing.T) {
	store := newFakeStore(
		&database.Unit{ID: 1, Name: "101", IsActive: true},
		&database.Unit{ID: 2, Name: "102", IsActive: true},
	)
	store.limits[key(1, database.MetricWater)] = &database.ConsumptionLimit{
		UnitID: 1, Metric: database.MetricWater, MonthlyLimit: 100,
	}

	e := NewEngine(store)
	res, err := e.CalculateAll(context.Background())
	if err != nil {
		t.Fatalf("CalculateAll failed: %v", err)
	}
	if res.Units != 2 || res.Failed != 0 {
		t.Errorf("Expected 2 units and no failures, got %+v", res)
	}
}
