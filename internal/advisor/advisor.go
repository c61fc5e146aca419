package advisor

import (
	"fmt"

	"github.com/mgavril/habitat-server/internal/forecast"
	"github.com/mgavril/habitat-server/internal/twin"
)

// MaxRecommendations bounds the returned list.
const MaxRecommendations = 5

// Action identifiers the gateway can map to corrective menu entries.
const (
	ActionReviewBudget = "review_budget"
	ActionCutCarbon    = "cut_carbon"
	ActionEnableEco    = "enable_eco"
	ActionLightsOff    = "lights_off"
	ActionACOff        = "ac_off"
	ActionLowerHeating = "lower_heating"
	ActionAllGood      = "all_good"
)

// Heating setpoints above this draw a recommendation.
const comfortableHeatingTemp = 22

// Recommendation is one suggested corrective action.
type Recommendation struct {
	Action  string
	Title   string
	Message string
}

// Input gathers the engine outputs the rules evaluate. Pure data in,
// pure data out; the advisor touches no store.
type Input struct {
	Risk           forecast.Risk
	TodayCarbonKg  float64
	CarbonTargetKg float64
	State          twin.State
}

// Evaluate runs the rules in priority order (budget risk first, then
// carbon, eco mode, lights, AC, heating) and returns at most
// MaxRecommendations items. When nothing triggers it returns a single
// all-good placeholder.
func Evaluate(in Input) []Recommendation {
	var recs []Recommendation

	switch in.Risk {
	case forecast.RiskHigh:
		recs = append(recs, Recommendation{
			Action:  ActionReviewBudget,
			Title:   "Projected cost exceeds budget",
			Message: "Month-end cost is projected at 110% of budget or more; cut consumption now or raise the budget.",
		})
	case forecast.RiskMedium:
		recs = append(recs, Recommendation{
			Action:  ActionReviewBudget,
			Title:   "Projected cost near budget",
			Message: "Month-end cost is projected within 10% of budget; watch daily consumption.",
		})
	}

	if in.CarbonTargetKg > 0 && in.TodayCarbonKg > in.CarbonTargetKg {
		recs = append(recs, Recommendation{
			Action:  ActionCutCarbon,
			Title:   "Carbon above daily target",
			Message: fmt.Sprintf("Today's footprint is %.1f kg CO2e against a %.1f kg target.", in.TodayCarbonKg, in.CarbonTargetKg),
		})
	}

	if !in.State.EcoMode {
		recs = append(recs, Recommendation{
			Action:  ActionEnableEco,
			Title:   "Eco mode is off",
			Message: "Enabling eco mode trims 10-35% off simulated consumption.",
		})
	}

	if in.State.LightsOn {
		recs = append(recs, Recommendation{
			Action:  ActionLightsOff,
			Title:   "Lights are on",
			Message: "Lights add 8% to electricity consumption.",
		})
	}

	if in.State.ACMode != twin.ACOff {
		recs = append(recs, Recommendation{
			Action:  ActionACOff,
			Title:   fmt.Sprintf("AC running on %s", in.State.ACMode),
			Message: "Air conditioning adds up to 40% to electricity consumption.",
		})
	}

	if in.State.HeatingTemp > comfortableHeatingTemp {
		recs = append(recs, Recommendation{
			Action:  ActionLowerHeating,
			Title:   fmt.Sprintf("Heating set to %d°", in.State.HeatingTemp),
			Message: fmt.Sprintf("Each degree above 18° adds gas load; try %d°.", comfortableHeatingTemp),
		})
	}

	if len(recs) == 0 {
		return []Recommendation{{
			Action:  ActionAllGood,
			Title:   "All good",
			Message: "No savings opportunities detected right now.",
		}}
	}

	if len(recs) > MaxRecommendations {
		recs = recs[:MaxRecommendations]
	}
	return recs
}
