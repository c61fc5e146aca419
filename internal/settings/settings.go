package settings

import (
	"strconv"
)

// Setting keys as stored in the system_settings table.
const (
	KeyBasePriceWater       = "base_price_water"
	KeyBasePriceElectricity = "base_price_electricity"
	KeyBasePriceGas         = "base_price_gas"
	KeyCarbonFactorWater    = "carbon_factor_water"
	KeyCarbonFactorElec     = "carbon_factor_electricity"
	KeyCarbonFactorGas      = "carbon_factor_gas"
	KeyAlertThresholdPct    = "alert_threshold_percent"
	KeyVariancePct          = "simulation_variance_percent"
	KeyDemandMultiplier     = "demand_multiplier"
	KeyDailyCarbonTargetKg  = "daily_carbon_target_kg"
)

// Defaults used when a key is missing or unparseable.
const (
	DefaultBasePriceWater       = 1500.0
	DefaultBasePriceElectricity = 1200.0
	DefaultBasePriceGas         = 900.0
	DefaultCarbonFactorWater    = 0.30
	DefaultCarbonFactorElec     = 0.42
	DefaultCarbonFactorGas      = 2.20
	DefaultAlertThresholdPct    = 20.0
	DefaultVariancePct          = 10.0
	DefaultDemandMultiplier     = 0.2
	DefaultDailyCarbonTargetKg  = 12.0
)

// Snapshot is an immutable view of the tunable settings, loaded from the
// store once per scheduler tick and passed explicitly into each engine.
type Snapshot struct {
	BasePriceWater       float64
	BasePriceElectricity float64
	BasePriceGas         float64

	CarbonFactorWater float64
	CarbonFactorElec  float64
	CarbonFactorGas   float64

	AlertThresholdPct   float64
	VariancePct         float64
	DemandMultiplier    float64
	DailyCarbonTargetKg float64
}

// DefaultSnapshot returns a snapshot populated with all defaults.
func DefaultSnapshot() Snapshot {
	return Snapshot{
		BasePriceWater:       DefaultBasePriceWater,
		BasePriceElectricity: DefaultBasePriceElectricity,
		BasePriceGas:         DefaultBasePriceGas,
		CarbonFactorWater:    DefaultCarbonFactorWater,
		CarbonFactorElec:     DefaultCarbonFactorElec,
		CarbonFactorGas:      DefaultCarbonFactorGas,
		AlertThresholdPct:    DefaultAlertThresholdPct,
		VariancePct:          DefaultVariancePct,
		DemandMultiplier:     DefaultDemandMultiplier,
		DailyCarbonTargetKg:  DefaultDailyCarbonTargetKg,
	}
}

// FromMap builds a snapshot from raw key/value rows. Missing or invalid
// values keep their defaults so a half-seeded settings table never
// breaks an engine run.
func FromMap(values map[string]string) Snapshot {
	s := DefaultSnapshot()
	assign(values, KeyBasePriceWater, &s.BasePriceWater)
	assign(values, KeyBasePriceElectricity, &s.BasePriceElectricity)
	assign(values, KeyBasePriceGas, &s.BasePriceGas)
	assign(values, KeyCarbonFactorWater, &s.CarbonFactorWater)
	assign(values, KeyCarbonFactorElec, &s.CarbonFactorElec)
	assign(values, KeyCarbonFactorGas, &s.CarbonFactorGas)
	assign(values, KeyAlertThresholdPct, &s.AlertThresholdPct)
	assign(values, KeyVariancePct, &s.VariancePct)
	assign(values, KeyDemandMultiplier, &s.DemandMultiplier)
	assign(values, KeyDailyCarbonTargetKg, &s.DailyCarbonTargetKg)
	return s
}

func assign(values map[string]string, key string, dst *float64) {
	raw, ok := values[key]
	if !ok {
		return
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return
	}
	*dst = v
}

// BasePrice returns the configured base price for a metric name
// (water/electricity/gas). Unknown metrics price at zero.
func (s Snapshot) BasePrice(metric string) float64 {
	switch metric {
	case "water":
		return s.BasePriceWater
	case "electricity":
		return s.BasePriceElectricity
	case "gas":
		return s.BasePriceGas
	}
	return 0
}

// CarbonFactor returns the CO2-equivalent kg per consumed unit of a metric.
func (s Snapshot) CarbonFactor(metric string) float64 {
	switch metric {
	case "water":
		return s.CarbonFactorWater
	case "electricity":
		return s.CarbonFactorElec
	case "gas":
		return s.CarbonFactorGas
	}
	return 0
}
