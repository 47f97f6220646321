package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"
	"toden-backend/cmd"
	"toden-backend/internal/api"
	"toden-backend/internal/core"
	"toden-backend/internal/jobs"
	"toden-backend/internal/messaging"

	"github.com/caarlos0/env/v11"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

type APIConfig struct {
	DatabaseURL     string        `env:"DATABASE_URL"`
	RabbitMQURL     string        `env:"RABBITMQ_URL"`
	APIPort         string        `env:"API_PORT" envDefault:"5000"`
	AppDataDir      string        `env:"APP_DATA_DIR" envDefault:"./toden-data"`
	DataDir         string        `env:"DATA_DIR" envDefault:"./data"`
	TmpDir          string        `env:"TMP_DIR"`
	CronSecret      string        `env:"CRON_SECRET"`
	AllowedOrigins  []string      `env:"ALLOWED_ORIGINS" envDefault:"*" envSeparator:","`
	PredictionTTL   time.Duration `env:"PREDICTION_TTL" envDefault:"30m"`
	CleanupInterval time.Duration `env:"CLEANUP_INTERVAL" envDefault:"10m"`

	Storage   cmd.StorageConfig
	Predictor cmd.PredictorConfig
}

func main() {
	log.Println("Starting API Server...")

	cmd.LoadEnvFile()

	var cfg APIConfig
	if err := env.Parse(&cfg); err != nil {
		log.Fatalf("error parsing config: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db := cmd.CreateDatabase(cfg.DatabaseURL, filepath.Join(cfg.AppDataDir, "db", "toden.db"))

	store, err := cmd.CreateObjectStore(ctx, cfg.Storage)
	if err != nil {
		log.Fatalf("Failed to create object store: %v", err)
	}

	predictor := cmd.CreatePredictor(cfg.Predictor)
	defer predictor.Release()

	resolver := core.NewResolver(cfg.DataDir, cfg.TmpDir)

	// Without a broker the api runs the task processor in process.
	var publisher messaging.Publisher
	var processor *jobs.TaskProcessor
	if cfg.RabbitMQURL != "" {
		rabbit, err := messaging.NewRabbitMQPublisher(cfg.RabbitMQURL)
		if err != nil {
			log.Fatalf("Failed to connect to RabbitMQ: %v", err)
		}
		defer rabbit.Close()
		publisher = rabbit
	} else {
		queue := messaging.NewInMemoryQueue()
		processor = jobs.NewTaskProcessor(db, store, queue, queue, predictor, resolver, cfg.PredictionTTL)
		publisher = queue

		slog.Info("starting in process worker")
		go processor.Start()

		// The processor is already draining the queue, so requeueing more
		// predictions than the queue buffers does not block startup.
		go func() {
			if _, err := jobs.RequeuePending(ctx, db, queue); err != nil {
				slog.Error("error requeueing pending predictions", "error", err)
			}
		}()
		go cmd.ScheduleCleanup(ctx, queue, cfg.CleanupInterval)
	}

	r := chi.NewRouter()

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	apiHandler := api.NewBackendService(db, store, publisher, predictor, resolver, cfg.CronSecret)
	apiHandler.AddRoutes(r)

	server := &http.Server{
		Addr:    ":" + cfg.APIPort,
		Handler: r,
	}

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit
		log.Println("Shutting down server...")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Fatalf("Server forced to shutdown: %v", err)
		}

		cancel()
		if processor != nil {
			processor.Stop()
		}
	}()

	log.Printf("API server listening on port %s", cfg.APIPort)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("Could not listen on %s: %v\n", cfg.APIPort, err)
	}

	log.Println("Server stopped.")
}
