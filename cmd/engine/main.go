package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/mgavril/habitat-server/internal/analysis"
	"github.com/mgavril/habitat-server/internal/credits"
	"github.com/mgavril/habitat-server/internal/database"
	"github.com/mgavril/habitat-server/internal/queue"
	"github.com/mgavril/habitat-server/internal/schedule"
	"github.com/mgavril/habitat-server/internal/settings"
	"github.com/mgavril/habitat-server/internal/simulation"
	"github.com/mgavril/habitat-server/internal/twin"
	"github.com/mgavril/habitat-server/pkg/config"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	fmt.Println("Starting Engine Service...")

	// Connect to database
	db, err := database.Connect(cfg.Database.ConnectionString())
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()
	fmt.Println("Connected to database")

	// Run migrations
	if err := db.RunMigrations("migrations"); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	// Create Kafka topics
	if err := queue.CreateTopic(cfg.Kafka.Brokers, cfg.Kafka.TopicAlerts, 1, 1); err != nil {
		fmt.Printf("Note: Topic creation failed (may already exist): %v\n", err)
	}
	if err := queue.CreateTopic(cfg.Kafka.Brokers, cfg.Kafka.TopicCommands, cfg.Kafka.NumPartitions, 1); err != nil {
		fmt.Printf("Note: Topic creation failed (may already exist): %v\n", err)
	}
	if err := queue.CreateTopic(cfg.Kafka.Brokers, cfg.Kafka.TopicReplies, cfg.Kafka.NumPartitions, 1); err != nil {
		fmt.Printf("Note: Topic creation failed (may already exist): %v\n", err)
	}

	// Alert events fan out to the notification/gateway services
	alertProducer := queue.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.TopicAlerts)
	defer alertProducer.Close()
	fmt.Println("Alert producer initialized")

	// Assemble the engines
	twins := twin.NewService(db)
	simEngine := simulation.NewEngine(db, twins)
	analyzer := analysis.NewAnalyzer(db, alertProducer)
	creditEngine := credits.NewEngine(db)

	ctx := context.Background()

	scheduler := schedule.NewScheduler()
	scheduler.Start()
	defer scheduler.Stop()

	// Every tick: refresh the settings snapshot, simulate, then analyze.
	err = scheduler.Every("simulate-and-analyze", cfg.Scheduler.TickInterval, func() {
		snap := loadSnapshot(ctx, db)

		simRes, err := simEngine.GenerateAll(ctx, snap)
		if err != nil {
			log.Printf("Simulation batch failed: %v\n", err)
			return
		}
		fmt.Printf("Simulated %d units (%d readings, %d failed)\n", simRes.Units, simRes.Readings, simRes.Failed)

		anaRes, err := analyzer.AnalyzeAll(ctx, snap)
		if err != nil {
			log.Printf("Analysis batch failed: %v\n", err)
			return
		}
		fmt.Printf("Analyzed %d units (%d alerts, %d failed)\n", anaRes.Units, anaRes.Alerts, anaRes.Failed)
	})
	if err != nil {
		log.Fatalf("Failed to schedule simulation tick: %v", err)
	}

	// Once daily: recompute all credit balances.
	err = scheduler.DailyAt("credit-recompute", cfg.Scheduler.CreditsTime, func() {
		res, err := creditEngine.CalculateAll(ctx)
		if err != nil {
			log.Printf("Credit batch failed: %v\n", err)
			return
		}
		fmt.Printf("Recomputed credits for %d units (%d failed)\n", res.Units, res.Failed)
	})
	if err != nil {
		log.Fatalf("Failed to schedule credit recompute: %v", err)
	}

	fmt.Printf("\n✓ Engine Service is running (tick every %s, credits at %s)\n",
		cfg.Scheduler.TickInterval, cfg.Scheduler.CreditsTime)
	fmt.Println("✓ Press Ctrl+C to stop")

	// Wait for interrupt signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	fmt.Println("\nShutting down gracefully...")
}

// loadSnapshot reads the tunables fresh from the store; operators can
// change behavior between ticks without a restart.
func loadSnapshot(ctx context.Context, db *database.DB) settings.Snapshot {
	values, err := db.LoadSettings(ctx)
	if err != nil {
		log.Printf("Failed to load settings, using defaults: %v\n", err)
		return settings.DefaultSnapshot()
	}
	return settings.FromMap(values)
}
