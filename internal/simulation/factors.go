package simulation

import (
	"github.com/mgavril/habitat-server/internal/database"
	"github.com/mgavril/habitat-server/internal/twin"
)

// Per-metric baseline consumption per sampling interval, before any
// multiplier is applied.
var baseline = map[string]float64{
	database.MetricWater:       5.0,
	database.MetricElectricity: 2.5,
	database.MetricGas:         0.8,
}

// timeOfDayFactor models the morning and evening peaks and the night lull.
func timeOfDayFactor(hour int) float64 {
	switch {
	case hour >= 6 && hour <= 9:
		return 1.5
	case hour >= 18 && hour <= 22:
		return 1.8
	case hour >= 0 && hour <= 5:
		return 0.3
	default:
		return 1.0
	}
}

// scenarioFactors scales each metric by the simulated occupancy behavior.
var scenarioFactors = map[twin.Scenario]map[string]float64{
	twin.ScenarioEmpty: {
		database.MetricWater:       0.15,
		database.MetricElectricity: 0.20,
		database.MetricGas:         0.25,
	},
	twin.ScenarioFamily: {
		database.MetricWater:       1.0,
		database.MetricElectricity: 1.0,
		database.MetricGas:         1.0,
	},
	twin.ScenarioParty: {
		database.MetricWater:       1.6,
		database.MetricElectricity: 2.2,
		database.MetricGas:         1.2,
	},
	twin.ScenarioNight: {
		database.MetricWater:       0.5,
		database.MetricElectricity: 0.6,
		database.MetricGas:         0.9,
	},
	twin.ScenarioTravel: {
		database.MetricWater:       0.10,
		database.MetricElectricity: 0.12,
		database.MetricGas:         0.20,
	},
}

// seasonFactors shifts load between metrics: heating in winter, cooling
// in summer.
var seasonFactors = map[twin.Season]map[string]float64{
	twin.SeasonSpring: {
		database.MetricWater:       1.0,
		database.MetricElectricity: 1.0,
		database.MetricGas:         1.0,
	},
	twin.SeasonSummer: {
		database.MetricWater:       1.15,
		database.MetricElectricity: 1.35,
		database.MetricGas:         0.70,
	},
	twin.SeasonAutumn: {
		database.MetricWater:       1.0,
		database.MetricElectricity: 1.05,
		database.MetricGas:         1.25,
	},
	twin.SeasonWinter: {
		database.MetricWater:       0.95,
		database.MetricElectricity: 1.10,
		database.MetricGas:         1.80,
	},
}

// perExtraOccupant is the marginal load added by each occupant beyond
// the first.
var perExtraOccupant = map[string]float64{
	database.MetricWater:       0.22,
	database.MetricElectricity: 0.18,
	database.MetricGas:         0.12,
}

func occupancyFactor(occupants int, metric string) float64 {
	if occupants < 0 {
		occupants = 0
	}
	if occupants > 10 {
		occupants = 10
	}
	return 1.0 + float64(occupants-1)*perExtraOccupant[metric]
}

// acLoad is the extra electricity fraction per AC mode at full seasonal
// demand.
var acLoad = map[twin.ACMode]float64{
	twin.ACOff:    0.0,
	twin.ACLow:    0.15,
	twin.ACMedium: 0.25,
	twin.ACHigh:   0.40,
}

// acSeasonScale damps cooling demand outside summer.
var acSeasonScale = map[twin.Season]float64{
	twin.SeasonSpring: 0.6,
	twin.SeasonSummer: 1.0,
	twin.SeasonAutumn: 0.6,
	twin.SeasonWinter: 0.3,
}

// heatSeasonScale damps heating demand outside winter.
var heatSeasonScale = map[twin.Season]float64{
	twin.SeasonSpring: 0.5,
	twin.SeasonSummer: 0.2,
	twin.SeasonAutumn: 0.7,
	twin.SeasonWinter: 1.0,
}

// Extra gas load per degree of heating setpoint above the neutral 18.
const heatLoadPerDegree = 0.06

// deviceFactor folds the device states into one multiplier per metric.
func deviceFactor(st twin.State, metric string) float64 {
	factor := 1.0
	switch metric {
	case database.MetricElectricity:
		if st.LightsOn {
			factor *= 1.08
		}
		factor *= 1.0 + acLoad[st.ACMode]*acSeasonScale[st.Season]
	case database.MetricGas:
		if st.HeatingTemp > 18 {
			extra := float64(st.HeatingTemp-18) * heatLoadPerDegree
			factor *= 1.0 + extra*heatSeasonScale[st.Season]
		}
		if st.WaterHeaterOn {
			factor *= 1.10
		}
	case database.MetricWater:
		if st.WaterHeaterOn {
			factor *= 1.05
		}
	}
	return factor
}

// ecoReduction is the fractional saving applied when eco mode is on,
// clamped to [0.10, 0.35].
func ecoReduction(costSensitivity, greenSensitivity int) float64 {
	r := 0.10 + float64(costSensitivity)/800.0 + float64(greenSensitivity)/900.0
	if r < 0.10 {
		r = 0.10
	}
	if r > 0.35 {
		r = 0.35
	}
	return r
}

// spikeOdds returns the 1-in-N chance of a consumption spike per scenario.
func spikeOdds(s twin.Scenario) int {
	switch s {
	case twin.ScenarioParty:
		return 5
	case twin.ScenarioEmpty, twin.ScenarioTravel:
		return 25
	default:
		return 12
	}
}
