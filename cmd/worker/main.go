package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/OFFIS-RIT/kgalign/internal/migrations"
	"github.com/OFFIS-RIT/kgalign/internal/queue"
	"github.com/OFFIS-RIT/kgalign/internal/storage"
	"github.com/OFFIS-RIT/kgalign/internal/timing"
	"github.com/OFFIS-RIT/kgalign/internal/util"
	"github.com/OFFIS-RIT/kgalign/pkg/leaselock"
	"github.com/OFFIS-RIT/kgalign/pkg/logger"
	"github.com/OFFIS-RIT/kgalign/pkg/logger/console"
	pgxstore "github.com/OFFIS-RIT/kgalign/pkg/store/pgx"
)

func main() {
	util.LoadEnv()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// logger
	debug := util.GetEnvBool("DEBUG", false)
	consoleLogger := console.NewConsoleLogger(console.ConsoleLoggerParams{
		Debug:  debug,
		Prefix: "worker",
	})
	logger.Init(consoleLogger)

	maxRetries := util.GetEnvInt("MATCH_MAX_RETRIES", queue.DefaultMaxRetries)

	// Init s3 client
	s3Client, err := storage.NewS3Client(ctx)
	if err != nil {
		logger.Fatal("Could not create S3 client", "err", err)
	}

	// Init pgx client
	databaseURL := util.GetEnv("DATABASE_URL")
	if err := migrations.Up(databaseURL); err != nil {
		logger.Fatal("Failed to migrate database", "err", err)
	}
	pool, err := pgxstore.NewPool(ctx, databaseURL)
	if err != nil {
		logger.Fatal("Unable to connect to database", "err", err)
	}
	defer pool.Close()

	// Init rabbitmq
	conn, err := queue.Init()
	if err != nil {
		logger.Fatal("Failed to connect to queue", "err", err)
	}
	defer conn.Close()

	ch, err := conn.Channel()
	if err != nil {
		logger.Fatal("Failed to open channel", "err", err)
	}
	defer ch.Close()

	if err := queue.SetupQueues(ch, []string{queue.MatchQueue}); err != nil {
		logger.Fatal("Failed to set up queues", "err", err)
	}

	// Single consumer channel with prefetch=1 so a worker holds one run at a time
	consumerCh, err := conn.Channel()
	if err != nil {
		logger.Fatal("Failed to open consumer channel", "err", err)
	}
	defer consumerCh.Close()

	if err := consumerCh.Qos(1, 0, false); err != nil {
		logger.Fatal("Failed to set QoS", "err", err)
	}

	msgs, err := consumerCh.Consume(
		queue.MatchQueue,
		queue.MatchQueue+"_consumer",
		false, // autoAck
		false, // exclusive
		false, // noLocal
		false, // noWait
		nil,   // args
	)
	if err != nil {
		logger.Fatal("Failed to start consuming", "queue", queue.MatchQueue, "err", err)
	}

	deps := queue.MatchDeps{
		Objects:  s3Client,
		Runs:     pgxstore.NewRunDBStorageWithConnection(pool),
		Locks:    leaselock.New(pool),
		Events:   ch,
		LeaseTTL: util.GetEnvDuration("MATCH_LEASE_TTL", queue.DefaultLeaseTTL),
	}

	logger.Info("Listening for messages", "queue", queue.MatchQueue)

	for {
		select {
		case <-ctx.Done():
			logger.Info("Shutdown signal received, exiting...")
			return
		case msg, ok := <-msgs:
			if !ok {
				logger.Info("Message channel closed", "queue", queue.MatchQueue)
				return
			}
			startTime := time.Now()
			logger.Info("Received message", "queue", queue.MatchQueue)

			processingErr := queue.ProcessMatchMessage(ctx, deps, string(msg.Body))

			switch {
			case errors.Is(processingErr, queue.ErrInvalidMessage):
				logger.Error("Discarding invalid message", "err", processingErr)
				queue.HandleProcessingError(ch, msg, queue.MatchQueue, 0)
			case errors.Is(processingErr, leaselock.ErrBusy):
				logger.Warn("Run is held by another worker", "err", processingErr)
				queue.HandleProcessingError(ch, msg, queue.MatchQueue, maxRetries)
			case processingErr != nil:
				logger.Error("Error processing message", "queue", queue.MatchQueue, "err", processingErr)
				queue.HandleProcessingError(ch, msg, queue.MatchQueue, maxRetries)
			default:
				if err := msg.Ack(false); err != nil {
					logger.Error("Failed to ack message", "err", err)
				}
				logger.Info("Message processed successfully", "queue", queue.MatchQueue)
			}

			logger.Info("Processing time", "duration", timing.Since(startTime))
		}
	}
}
