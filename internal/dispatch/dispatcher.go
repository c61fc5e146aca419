package dispatch

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/mgavril/habitat-server/internal/advisor"
	"github.com/mgavril/habitat-server/internal/carbon"
	"github.com/mgavril/habitat-server/internal/credits"
	"github.com/mgavril/habitat-server/internal/database"
	"github.com/mgavril/habitat-server/internal/forecast"
	"github.com/mgavril/habitat-server/internal/protocol"
	"github.com/mgavril/habitat-server/internal/settings"
	"github.com/mgavril/habitat-server/internal/simulation"
	"github.com/mgavril/habitat-server/internal/twin"
)

// Action codes accepted from the bot gateway.
const (
	ActionSetScenario    = "set_scenario"
	ActionSetSeason      = "set_season"
	ActionSetEco         = "set_eco"
	ActionSetLights      = "set_lights"
	ActionSetWaterHeater = "set_water_heater"
	ActionSetAC          = "set_ac"
	ActionSetHeating     = "set_heating"
	ActionSetOccupants   = "set_occupants"
	ActionSetBudget      = "set_budget"
	ActionBuyCredits     = "buy_credits"
	ActionSellCredits    = "sell_credits"
	ActionGetPrice       = "get_price"
	ActionGetForecast    = "get_forecast"
	ActionGetCarbon      = "get_carbon"
	ActionGetAdvice      = "get_advice"
	ActionGetAlerts      = "get_alerts"
	ActionSimulateNow    = "simulate_now"
	ActionResetReadings  = "reset_readings"
	ActionResetAll       = "reset_all_readings"
)

// ErrNoActiveUnits is returned by building-wide admin actions when no
// active units exist to operate on.
var ErrNoActiveUnits = errors.New("no active units")

// Store is the slice of the relational store the dispatcher itself needs
// beyond what the engines already cover.
type Store interface {
	GetUnit(ctx context.Context, id int64) (*database.Unit, error)
	ListActiveUnits(ctx context.Context) ([]*database.Unit, error)
	SetUnitOccupants(ctx context.Context, unitID int64, occupants int) error
	ResetReadings(ctx context.Context, unitID int64) (int64, error)
	ListUnreadAlerts(ctx context.Context, unitID int64) ([]*database.Alert, error)
	MarkAlertsRead(ctx context.Context, unitID int64) error
}

// Dispatcher validates gateway commands and routes them to the engines,
// returning structured replies for the bot to render.
type Dispatcher struct {
	store    Store
	twins    *twin.Service
	sim      *simulation.Engine
	credits  *credits.Engine
	carbon   *carbon.Engine
	forecast *forecast.Engine
}

// NewDispatcher wires the engines behind the gateway surface.
func NewDispatcher(store Store, twins *twin.Service, sim *simulation.Engine, creditEngine *credits.Engine, carbonEngine *carbon.Engine, forecastEngine *forecast.Engine) *Dispatcher {
	return &Dispatcher{
		store:    store,
		twins:    twins,
		sim:      sim,
		credits:  creditEngine,
		carbon:   carbonEngine,
		forecast: forecastEngine,
	}
}

// Dispatch executes one command to completion. Invalid twin-state values
// are silent no-ops; invalid transactional input comes back as a
// user-visible error in the reply.
func (d *Dispatcher) Dispatch(ctx context.Context, snap settings.Snapshot, cmd *protocol.ActionCommand) *protocol.ActionReply {
	reply := &protocol.ActionReply{
		UpdateID: cmd.UpdateID,
		ChatID:   cmd.ChatID,
		Action:   cmd.Action,
		OK:       true,
	}

	// Building-wide actions do not target a unit.
	if cmd.Action == ActionResetAll {
		return d.resetAllReadings(ctx, reply, cmd)
	}

	unit, err := d.store.GetUnit(ctx, cmd.UnitID)
	if err != nil {
		return fail(reply, fmt.Sprintf("failed to load unit: %v", err))
	}
	if unit == nil {
		return fail(reply, fmt.Sprintf("unknown unit %d", cmd.UnitID))
	}

	switch cmd.Action {
	case ActionSetScenario:
		_, err = d.twins.Update(ctx, unit.ID, func(st *twin.State) { st.SetScenario(twin.Scenario(cmd.Value)) })
	case ActionSetSeason:
		_, err = d.twins.Update(ctx, unit.ID, func(st *twin.State) { st.SetSeason(twin.Season(cmd.Value)) })
	case ActionSetEco:
		on := cmd.Value == "on"
		_, err = d.twins.Update(ctx, unit.ID, func(st *twin.State) { st.EcoMode = on })
	case ActionSetLights:
		on := cmd.Value == "on"
		_, err = d.twins.Update(ctx, unit.ID, func(st *twin.State) { st.LightsOn = on })
	case ActionSetWaterHeater:
		on := cmd.Value == "on"
		_, err = d.twins.Update(ctx, unit.ID, func(st *twin.State) { st.WaterHeaterOn = on })
	case ActionSetAC:
		_, err = d.twins.Update(ctx, unit.ID, func(st *twin.State) { st.SetACMode(twin.ACMode(cmd.Value)) })
	case ActionSetHeating:
		temp, convErr := strconv.Atoi(cmd.Value)
		if convErr != nil {
			break // not a number: no-op, like any other invalid setter value
		}
		_, err = d.twins.Update(ctx, unit.ID, func(st *twin.State) { st.SetHeatingTemp(temp) })
	case ActionSetOccupants:
		err = d.store.SetUnitOccupants(ctx, unit.ID, int(cmd.Amount))
	case ActionSetBudget:
		_, err = d.twins.Update(ctx, unit.ID, func(st *twin.State) { st.SetMonthlyBudget(int64(cmd.Amount)) })

	case ActionBuyCredits:
		return d.buyCredits(ctx, snap, reply, unit, cmd)
	case ActionSellCredits:
		return d.sellCredits(ctx, snap, reply, unit, cmd)
	case ActionGetPrice:
		return d.getPrice(ctx, snap, reply, cmd)
	case ActionGetForecast:
		return d.getForecast(ctx, snap, reply, unit)
	case ActionGetCarbon:
		return d.getCarbon(ctx, snap, reply, unit, cmd)
	case ActionGetAdvice:
		return d.getAdvice(ctx, snap, reply, unit)
	case ActionGetAlerts:
		return d.getAlerts(ctx, reply, unit)
	case ActionSimulateNow:
		n, simErr := d.sim.Generate(ctx, unit, snap)
		if simErr != nil {
			return fail(reply, fmt.Sprintf("simulation failed: %v", simErr))
		}
		reply.Values = map[string]float64{"readings": float64(n)}
	case ActionResetReadings:
		if !cmd.Admin {
			return fail(reply, "reset_readings requires admin")
		}
		deleted, resetErr := d.store.ResetReadings(ctx, unit.ID)
		if resetErr != nil {
			return fail(reply, fmt.Sprintf("reset failed: %v", resetErr))
		}
		reply.Values = map[string]float64{"deleted": float64(deleted)}

	default:
		return fail(reply, fmt.Sprintf("unknown action %q", cmd.Action))
	}

	if err != nil {
		return fail(reply, err.Error())
	}
	return reply
}

// resetAllReadings wipes readings for every active unit. Unlike the
// batch engines, which treat an empty building as nothing to do, this
// is an explicit admin request and reports it as an error.
func (d *Dispatcher) resetAllReadings(ctx context.Context, reply *protocol.ActionReply, cmd *protocol.ActionCommand) *protocol.ActionReply {
	if !cmd.Admin {
		return fail(reply, "reset_all_readings requires admin")
	}

	units, err := d.store.ListActiveUnits(ctx)
	if err != nil {
		return fail(reply, fmt.Sprintf("failed to list units: %v", err))
	}
	if len(units) == 0 {
		return fail(reply, ErrNoActiveUnits.Error())
	}

	var deleted int64
	for _, unit := range units {
		n, err := d.store.ResetReadings(ctx, unit.ID)
		if err != nil {
			return fail(reply, fmt.Sprintf("reset failed for unit %d: %v", unit.ID, err))
		}
		deleted += n
	}
	reply.Values = map[string]float64{
		"units":   float64(len(units)),
		"deleted": float64(deleted),
	}
	return reply
}

func (d *Dispatcher) buyCredits(ctx context.Context, snap settings.Snapshot, reply *protocol.ActionReply, unit *database.Unit, cmd *protocol.ActionCommand) *protocol.ActionReply {
	tx, err := d.credits.CreateTransaction(ctx, snap, nil, unit.ID, cmd.Metric, cmd.Amount, database.TxTypeManualBuy)
	if err != nil {
		return fail(reply, err.Error())
	}
	reply.Values = map[string]float64{
		"amount":      tx.Amount,
		"price":       tx.PricePerCredit,
		"total_price": tx.TotalPrice,
	}
	reply.Text = map[string]string{"reference": tx.Reference}
	return reply
}

// sellCredits transfers credits from the unit to a counterparty unit
// named in Value.
func (d *Dispatcher) sellCredits(ctx context.Context, snap settings.Snapshot, reply *protocol.ActionReply, unit *database.Unit, cmd *protocol.ActionCommand) *protocol.ActionReply {
	buyerID, err := strconv.ParseInt(cmd.Value, 10, 64)
	if err != nil {
		return fail(reply, "sell_credits requires a buyer unit id")
	}
	buyer, err := d.store.GetUnit(ctx, buyerID)
	if err != nil {
		return fail(reply, fmt.Sprintf("failed to load buyer unit: %v", err))
	}
	if buyer == nil {
		return fail(reply, fmt.Sprintf("unknown buyer unit %d", buyerID))
	}

	from := unit.ID
	tx, err := d.credits.CreateTransaction(ctx, snap, &from, buyer.ID, cmd.Metric, cmd.Amount, database.TxTypeManualSell)
	if err != nil {
		return fail(reply, err.Error())
	}
	reply.Values = map[string]float64{
		"amount":      tx.Amount,
		"price":       tx.PricePerCredit,
		"total_price": tx.TotalPrice,
	}
	reply.Text = map[string]string{"reference": tx.Reference}
	return reply
}

func (d *Dispatcher) getPrice(ctx context.Context, snap settings.Snapshot, reply *protocol.ActionReply, cmd *protocol.ActionCommand) *protocol.ActionReply {
	p, err := d.credits.Price(ctx, snap, cmd.Metric)
	if err != nil {
		return fail(reply, err.Error())
	}
	reply.Values = map[string]float64{"price": p}
	return reply
}

func (d *Dispatcher) getForecast(ctx context.Context, snap settings.Snapshot, reply *protocol.ActionReply, unit *database.Unit) *protocol.ActionReply {
	fc, err := d.forecast.Forecast(ctx, snap, unit.ID)
	if err != nil {
		return fail(reply, err.Error())
	}
	reply.Values = map[string]float64{
		"cost_to_date": fc.CostToDate,
		"projected":    fc.Projected,
		"budget":       float64(fc.Budget),
	}
	reply.Text = map[string]string{"risk": string(fc.Risk)}
	return reply
}

func (d *Dispatcher) getCarbon(ctx context.Context, snap settings.Snapshot, reply *protocol.ActionReply, unit *database.Unit, cmd *protocol.ActionCommand) *protocol.ActionReply {
	window := carbon.Window(cmd.Value)
	if window == "" {
		window = carbon.WindowToday
	}
	breakdown, err := d.carbon.Breakdown(ctx, snap, unit.ID, window)
	if err != nil {
		return fail(reply, err.Error())
	}

	values := make(map[string]float64, len(breakdown)+2)
	total := 0.0
	for metric, kg := range breakdown {
		values[metric+"_kg"] = kg
		total += kg
	}
	values["total_kg"] = total

	monthly, err := d.carbon.MonthlyForecast(ctx, snap, unit.ID)
	if err != nil {
		return fail(reply, err.Error())
	}
	values["monthly_forecast_kg"] = monthly

	reply.Values = values
	return reply
}

func (d *Dispatcher) getAdvice(ctx context.Context, snap settings.Snapshot, reply *protocol.ActionReply, unit *database.Unit) *protocol.ActionReply {
	fc, err := d.forecast.Forecast(ctx, snap, unit.ID)
	if err != nil {
		return fail(reply, err.Error())
	}
	todayKg, err := d.carbon.Footprint(ctx, snap, unit.ID, carbon.WindowToday)
	if err != nil {
		return fail(reply, err.Error())
	}
	st, err := d.twins.GetOrCreate(ctx, unit.ID)
	if err != nil {
		return fail(reply, err.Error())
	}

	recs := advisor.Evaluate(advisor.Input{
		Risk:           fc.Risk,
		TodayCarbonKg:  todayKg,
		CarbonTargetKg: snap.DailyCarbonTargetKg,
		State:          st,
	})

	text := make(map[string]string, len(recs))
	for i, rec := range recs {
		text[fmt.Sprintf("%d_%s", i+1, rec.Action)] = rec.Title
	}
	reply.Text = text
	reply.Values = map[string]float64{"count": float64(len(recs))}
	return reply
}

func (d *Dispatcher) getAlerts(ctx context.Context, reply *protocol.ActionReply, unit *database.Unit) *protocol.ActionReply {
	alerts, err := d.store.ListUnreadAlerts(ctx, unit.ID)
	if err != nil {
		return fail(reply, fmt.Sprintf("failed to list alerts: %v", err))
	}

	text := make(map[string]string, len(alerts))
	for i, a := range alerts {
		text[fmt.Sprintf("%d_%s", i+1, a.Type)] = a.Title
	}
	if err := d.store.MarkAlertsRead(ctx, unit.ID); err != nil {
		return fail(reply, fmt.Sprintf("failed to mark alerts read: %v", err))
	}

	reply.Text = text
	reply.Values = map[string]float64{"count": float64(len(alerts))}
	return reply
}

func fail(reply *protocol.ActionReply, msg string) *protocol.ActionReply {
	reply.OK = false
	reply.Error = msg
	return reply
}
