package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/mgavril/habitat-server/internal/database"
	"github.com/mgavril/habitat-server/pkg/config"
)

// Per-metric monthly limits and override prices used for seeded units.
var seedLimits = map[string]struct {
	monthly float64
	price   float64
}{
	database.MetricWater:       {monthly: 150, price: 0},
	database.MetricElectricity: {monthly: 220, price: 0},
	database.MetricGas:         {monthly: 90, price: 0},
}

func main() {
	unitCount := flag.Int("units", 8, "number of units to create")
	floors := flag.Int("floors", 4, "number of floors to spread units across")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	db, err := database.Connect(cfg.Database.ConnectionString())
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	if err := db.RunMigrations("migrations"); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	ctx := context.Background()

	existing, err := db.ListActiveUnits(ctx)
	if err != nil {
		log.Fatalf("Failed to list units: %v", err)
	}
	if len(existing) > 0 {
		fmt.Printf("Found %d existing active units, seeding only limits\n", len(existing))
		seedLimitsFor(ctx, db, existing)
		return
	}

	now := time.Now()
	periodStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	periodEnd := periodStart.AddDate(0, 1, -1)

	var units []*database.Unit
	for i := 0; i < *unitCount; i++ {
		floor := i%*floors + 1
		unit := &database.Unit{
			Floor:     floor,
			Name:      fmt.Sprintf("%d%02d", floor, i/(*floors)+1),
			AreaM2:    55 + float64(i%4)*15,
			Occupants: 1 + i%4,
			IsActive:  true,
		}
		if err := db.CreateUnit(ctx, unit); err != nil {
			log.Fatalf("Failed to create unit %s: %v", unit.Name, err)
		}
		units = append(units, unit)
		fmt.Printf("Created unit %s (floor %d, %d occupants)\n", unit.Name, unit.Floor, unit.Occupants)
	}

	for _, unit := range units {
		for metric, l := range seedLimits {
			limit := &database.ConsumptionLimit{
				UnitID:       unit.ID,
				Metric:       metric,
				MonthlyLimit: l.monthly,
				PricePerUnit: l.price,
				PeriodStart:  periodStart,
				PeriodEnd:    periodEnd,
			}
			if err := db.UpsertLimit(ctx, limit); err != nil {
				log.Fatalf("Failed to create %s limit for unit %s: %v", metric, unit.Name, err)
			}
		}
	}

	fmt.Printf("Seeded %d units with limits for %s\n", len(units), periodStart.Format("2006-01"))
}

func seedLimitsFor(ctx context.Context, db *database.DB, units []*database.Unit) {
	now := time.Now()
	periodStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	periodEnd := periodStart.AddDate(0, 1, -1)

	for _, unit := range units {
		for metric, l := range seedLimits {
			limit := &database.ConsumptionLimit{
				UnitID:       unit.ID,
				Metric:       metric,
				MonthlyLimit: l.monthly,
				PricePerUnit: l.price,
				PeriodStart:  periodStart,
				PeriodEnd:    periodEnd,
			}
			if err := db.UpsertLimit(ctx, limit); err != nil {
				log.Fatalf("Failed to upsert %s limit for unit %s: %v", metric, unit.Name, err)
			}
		}
	}
	fmt.Printf("Upserted limits for %d units for %s\n", len(units), periodStart.Format("2006-01"))
}
