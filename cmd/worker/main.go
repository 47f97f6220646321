package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"
	"toden-backend/cmd"
	"toden-backend/internal/core"
	"toden-backend/internal/database"
	"toden-backend/internal/jobs"
	"toden-backend/internal/messaging"

	"github.com/caarlos0/env/v11"
)

type WorkerConfig struct {
	DatabaseURL     string        `env:"DATABASE_URL,notEmpty,required"`
	RabbitMQURL     string        `env:"RABBITMQ_URL,notEmpty,required"`
	DataDir         string        `env:"DATA_DIR" envDefault:"./data"`
	TmpDir          string        `env:"TMP_DIR"`
	PredictionTTL   time.Duration `env:"PREDICTION_TTL" envDefault:"30m"`
	CleanupInterval time.Duration `env:"CLEANUP_INTERVAL" envDefault:"10m"`

	Storage   cmd.StorageConfig
	Predictor cmd.PredictorConfig
}

func main() {
	log.Println("Starting Worker Process...")

	cmd.LoadEnvFile()

	var cfg WorkerConfig
	if err := env.Parse(&cfg); err != nil {
		log.Fatalf("error parsing config: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db := cmd.CreateDatabase(cfg.DatabaseURL, "")
	defer database.Close(db)

	store, err := cmd.CreateObjectStore(ctx, cfg.Storage)
	if err != nil {
		log.Fatalf("Worker: Failed to create object store: %v", err)
	}

	predictor := cmd.CreatePredictor(cfg.Predictor)
	defer predictor.Release()

	publisher, err := messaging.NewRabbitMQPublisher(cfg.RabbitMQURL)
	if err != nil {
		log.Fatalf("Failed to connect to RabbitMQ: %v", err)
	}

	reciever, err := messaging.NewRabbitMQReceiver(cfg.RabbitMQURL)
	if err != nil {
		log.Fatalf("Failed to start RabbitMQ consumer: %v", err)
	}

	processor := jobs.NewTaskProcessor(db, store, publisher, reciever, predictor, core.NewResolver(cfg.DataDir, cfg.TmpDir), cfg.PredictionTTL)

	done := make(chan struct{})
	go func() {
		processor.Start()
		close(done)
	}()
	go cmd.ScheduleCleanup(ctx, publisher, cfg.CleanupInterval)

	log.Println("Worker started. Waiting for tasks. Press Ctrl+C to exit.")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutdown signal received, waiting for the current task to finish...")

	cancel()
	processor.Stop()
	<-done

	log.Println("Worker process stopped.")
}
