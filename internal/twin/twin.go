package twin

// Scenario describes the simulated occupancy behavior of a unit.
type Scenario string

const (
	ScenarioEmpty  Scenario = "empty"
	ScenarioFamily Scenario = "family"
	ScenarioParty  Scenario = "party"
	ScenarioNight  Scenario = "night"
	ScenarioTravel Scenario = "travel"
)

// Season conditions the seasonal consumption profile.
type Season string

const (
	SeasonSpring Season = "spring"
	SeasonSummer Season = "summer"
	SeasonAutumn Season = "autumn"
	SeasonWinter Season = "winter"
)

// ACMode is the simulated air-conditioning setting.
type ACMode string

const (
	ACOff    ACMode = "off"
	ACLow    ACMode = "low"
	ACMedium ACMode = "medium"
	ACHigh   ACMode = "high"
)

// Clamping bounds for twin parameters.
const (
	MinHeatingTemp = 16
	MaxHeatingTemp = 28
	MinSensitivity = 0
	MaxSensitivity = 100
)

// State holds the simulated behavioral parameters of one unit.
// Exactly one state exists per active unit; it is created lazily with
// Default() values on first access.
type State struct {
	UnitID           int64
	Scenario         Scenario
	Season           Season
	EcoMode          bool
	LightsOn         bool
	WaterHeaterOn    bool
	ACMode           ACMode
	HeatingTemp      int
	CostSensitivity  int
	GreenSensitivity int
	MonthlyBudget    int64
}

// Default returns the documented fallback state: a family unit in
// spring, eco off, heating at 22, everything else off.
func Default(unitID int64) State {
	return State{
		UnitID:           unitID,
		Scenario:         ScenarioFamily,
		Season:           SeasonSpring,
		EcoMode:          false,
		LightsOn:         false,
		WaterHeaterOn:    false,
		ACMode:           ACOff,
		HeatingTemp:      22,
		CostSensitivity:  50,
		GreenSensitivity: 50,
		MonthlyBudget:    0,
	}
}

// ValidScenario reports whether s is a known scenario.
func ValidScenario(s Scenario) bool {
	switch s {
	case ScenarioEmpty, ScenarioFamily, ScenarioParty, ScenarioNight, ScenarioTravel:
		return true
	}
	return false
}

// ValidSeason reports whether s is a known season.
func ValidSeason(s Season) bool {
	switch s {
	case SeasonSpring, SeasonSummer, SeasonAutumn, SeasonWinter:
		return true
	}
	return false
}

// ValidACMode reports whether m is a known AC mode.
func ValidACMode(m ACMode) bool {
	switch m {
	case ACOff, ACLow, ACMedium, ACHigh:
		return true
	}
	return false
}

// SetScenario applies a scenario. Unknown values are ignored.
func (s *State) SetScenario(v Scenario) {
	if ValidScenario(v) {
		s.Scenario = v
	}
}

// SetSeason applies a season. Unknown values are ignored.
func (s *State) SetSeason(v Season) {
	if ValidSeason(v) {
		s.Season = v
	}
}

// SetACMode applies an AC mode. Unknown values are ignored.
func (s *State) SetACMode(v ACMode) {
	if ValidACMode(v) {
		s.ACMode = v
	}
}

// SetHeatingTemp applies a heating setpoint clamped to [16, 28].
func (s *State) SetHeatingTemp(v int) {
	s.HeatingTemp = clampInt(v, MinHeatingTemp, MaxHeatingTemp)
}

// SetCostSensitivity applies a cost sensitivity clamped to [0, 100].
func (s *State) SetCostSensitivity(v int) {
	s.CostSensitivity = clampInt(v, MinSensitivity, MaxSensitivity)
}

// SetGreenSensitivity applies a green sensitivity clamped to [0, 100].
func (s *State) SetGreenSensitivity(v int) {
	s.GreenSensitivity = clampInt(v, MinSensitivity, MaxSensitivity)
}

// SetMonthlyBudget applies a budget; negative values are ignored.
func (s *State) SetMonthlyBudget(v int64) {
	if v >= 0 {
		s.MonthlyBudget = v
	}
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
