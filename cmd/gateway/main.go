package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mgavril/habitat-server/internal/carbon"
	"github.com/mgavril/habitat-server/internal/credits"
	"github.com/mgavril/habitat-server/internal/database"
	"github.com/mgavril/habitat-server/internal/dispatch"
	"github.com/mgavril/habitat-server/internal/forecast"
	"github.com/mgavril/habitat-server/internal/protocol"
	"github.com/mgavril/habitat-server/internal/queue"
	"github.com/mgavril/habitat-server/internal/settings"
	"github.com/mgavril/habitat-server/internal/simulation"
	"github.com/mgavril/habitat-server/internal/twin"
	"github.com/mgavril/habitat-server/pkg/config"
	"github.com/redis/go-redis/v9"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	fmt.Println("Starting Gateway Service...")

	// Connect to database
	db, err := database.Connect(cfg.Database.ConnectionString())
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()
	fmt.Println("Connected to database")

	// Connect to Redis
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()

	ctx := context.Background()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	fmt.Println("Connected to Redis")

	// Only one gateway worker may consume commands and advance the
	// update watermark.
	lock := dispatch.NewWorkerLock(redisClient, "gateway:worker_lock", cfg.Scheduler.LockTTL)
	acquired, err := lock.Acquire(ctx)
	if err != nil {
		log.Fatalf("Failed to acquire worker lock: %v", err)
	}
	if !acquired {
		log.Fatalf("Another gateway worker holds the lock, exiting")
	}
	defer lock.Release(ctx)
	fmt.Println("Worker lock acquired")

	watermark := dispatch.NewWatermark(redisClient, "gateway:update_watermark")

	// Assemble the engines behind the dispatcher
	twins := twin.NewService(db)
	dispatcher := dispatch.NewDispatcher(
		db,
		twins,
		simulation.NewEngine(db, twins),
		credits.NewEngine(db),
		carbon.NewEngine(db),
		forecast.NewEngine(db, twins),
	)

	consumer := queue.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.TopicCommands, "gateway-group")
	defer consumer.Close()
	replyProducer := queue.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.TopicReplies)
	defer replyProducer.Close()
	fmt.Println("Kafka consumer and reply producer initialized")

	// Keep the worker lock alive while we run.
	go func() {
		ticker := time.NewTicker(cfg.Scheduler.LockTTL / 3)
		defer ticker.Stop()
		for range ticker.C {
			ok, err := lock.Refresh(ctx)
			if err != nil {
				log.Printf("Failed to refresh worker lock: %v\n", err)
				continue
			}
			if !ok {
				log.Fatalf("Worker lock lost, exiting")
			}
		}
	}()

	fmt.Println("\n✓ Gateway Service is running")
	fmt.Println("✓ Press Ctrl+C to stop")

	// Commands are handled synchronously to completion, one at a time.
	go func() {
		for {
			msg, err := consumer.Consume(ctx)
			if err != nil {
				log.Printf("Failed to consume message: %v\n", err)
				continue
			}

			cmd, err := protocol.DecodeActionCommand(msg.Value)
			if err != nil {
				log.Printf("Failed to decode command: %v\n", err)
				consumer.Commit(ctx, msg)
				continue
			}

			// At-most-once per update id, even across restarts.
			fresh, err := watermark.Advance(ctx, cmd.UpdateID)
			if err != nil {
				log.Printf("Watermark check failed for update %d: %v\n", cmd.UpdateID, err)
				continue
			}
			if !fresh {
				fmt.Printf("Skipping already-processed update %d\n", cmd.UpdateID)
				consumer.Commit(ctx, msg)
				continue
			}

			snap := loadSnapshot(ctx, db)
			reply := dispatcher.Dispatch(ctx, snap, cmd)

			data, err := protocol.EncodeActionReply(reply)
			if err != nil {
				log.Printf("Failed to encode reply: %v\n", err)
			} else {
				key := fmt.Sprintf("%d", reply.ChatID)
				if err := replyProducer.Publish(ctx, key, data); err != nil {
					log.Printf("Failed to publish reply: %v\n", err)
				}
			}

			if err := consumer.Commit(ctx, msg); err != nil {
				log.Printf("Failed to commit offset: %v\n", err)
			}
		}
	}()

	// Wait for interrupt signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	fmt.Println("\nShutting down gracefully...")
}

func loadSnapshot(ctx context.Context, db *database.DB) settings.Snapshot {
	values, err := db.LoadSettings(ctx)
	if err != nil {
		log.Printf("Failed to load settings, using defaults: %v\n", err)
		return settings.DefaultSnapshot()
	}
	return settings.FromMap(values)
}
