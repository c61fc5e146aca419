package database

import (
	"time"
)

// Tracked consumption metrics.
const (
	MetricWater       = "water"
	MetricElectricity = "electricity"
	MetricGas         = "gas"
)

// Metrics lists all tracked metrics in a stable order.
func Metrics() []string {
	return []string{MetricWater, MetricElectricity, MetricGas}
}

// ValidMetric reports whether m names a tracked metric.
func ValidMetric(m string) bool {
	switch m {
	case MetricWater, MetricElectricity, MetricGas:
		return true
	}
	return false
}

// Unit represents a billable occupancy (apartment) within the building
type Unit struct {
	ID        int64
	Floor     int
	Name      string
	AreaM2    float64
	Occupants int
	OwnerID   *int64
	IsActive  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// TwinStateRow is the persisted form of a unit's digital twin state
type TwinStateRow struct {
	UnitID           int64
	Scenario         string
	Season           string
	EcoMode          bool
	LightsOn         bool
	WaterHeaterOn    bool
	ACMode           string
	HeatingTemp      int
	CostSensitivity  int
	GreenSensitivity int
	MonthlyBudget    int64
	UpdatedAt        time.Time
}

// ConsumptionReading is one synthetic meter sample (append-only)
type ConsumptionReading struct {
	ID        int64
	UnitID    int64
	Metric    string
	Value     float64
	Simulated bool
	Timestamp time.Time
}

// ConsumptionLimit is the active monthly cap and override price for a
// (unit, metric) pair over a period
type ConsumptionLimit struct {
	ID           int64
	UnitID       int64
	Metric       string
	MonthlyLimit float64
	PricePerUnit float64
	PeriodStart  time.Time
	PeriodEnd    time.Time
}

// EnergyCredit is the signed limit-minus-consumption balance per
// (unit, metric); negative means over-limit
type EnergyCredit struct {
	UnitID    int64
	Metric    string
	Balance   float64
	UpdatedAt time.Time
}

// CreditTransaction is an append-only ledger row; FromUnitID is nil for
// system grants
type CreditTransaction struct {
	ID             int64
	Reference      string
	FromUnitID     *int64
	ToUnitID       int64
	Metric         string
	Amount         float64
	PricePerCredit float64
	TotalPrice     float64
	Type           string
	Status         string
	CreatedAt      time.Time
}

// Credit transaction types
const (
	TxTypeAutoBalance    = "auto_balance"
	TxTypeManualSell     = "manual_sell"
	TxTypeManualBuy      = "manual_buy"
	TxTypeSystemPurchase = "system_purchase"
)

// ValidTxType reports whether t names a known transaction type.
func ValidTxType(t string) bool {
	switch t {
	case TxTypeAutoBalance, TxTypeManualSell, TxTypeManualBuy, TxTypeSystemPurchase:
		return true
	}
	return false
}

// Credit transaction statuses
const (
	TxStatusCompleted = "completed"
)

// Alert is a deduplicated anomaly notification: at most one alert of a
// given type per unit per calendar day
type Alert struct {
	ID        int64
	UnitID    int64
	Type      string
	Severity  string
	Title     string
	Message   string
	IsRead    bool
	AlertDate time.Time
	CreatedAt time.Time
}

// Alert types
const (
	AlertOverConsumption = "over_consumption"
	AlertLeakSuspected   = "leak_suspected"
	AlertLowCredit       = "low_credit"
	AlertHighCost        = "high_cost"
	AlertSystemMessage   = "system_message"
)

// Alert severities
const (
	SeverityInfo     = "info"
	SeverityWarning  = "warning"
	SeverityCritical = "critical"
)

// SystemSetting is one tunable key/value row
type SystemSetting struct {
	Key         string
	Value       string
	Description string
	UpdatedAt   time.Time
}
