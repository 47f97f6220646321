package cmd

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"time"
	"toden-backend/internal/database"
	"toden-backend/internal/messaging"
	"toden-backend/internal/predictor"
	"toden-backend/internal/storage"

	"github.com/joho/godotenv"
	"gorm.io/gorm"
)

func LoadEnvFile() {
	var configPath string

	flag.StringVar(&configPath, "env", "", "path to load env from")
	flag.Parse()

	LoadEnvFromPath(configPath)
}

func LoadEnvFromPath(configPath string) {
	if configPath == "" {
		log.Printf("no env file specified, using os.Environ only")
		return
	}

	log.Printf("loading env from file %s", configPath)
	err := godotenv.Load(configPath)
	if err != nil {
		log.Fatalf("error loading .env file '%s': %v", configPath, err)
	}
}

// StorageConfig selects the object store: the HTTP blob store when a token is
// set, S3 when a bucket is set, and a local directory otherwise.
type StorageConfig struct {
	BlobToken         string `env:"BLOB_READ_WRITE_TOKEN"`
	BlobAPIURL        string `env:"BLOB_API_URL" envDefault:"https://blob.vercel-storage.com"`
	S3Bucket          string `env:"S3_BUCKET"`
	S3EndpointURL     string `env:"S3_ENDPOINT_URL"`
	S3AccessKeyID     string `env:"AWS_ACCESS_KEY_ID"`
	S3SecretAccessKey string `env:"AWS_SECRET_ACCESS_KEY"`
	S3Region          string `env:"AWS_REGION" envDefault:"us-east-1"`
	LocalStorageDir   string `env:"LOCAL_STORAGE_DIR" envDefault:"./toden-storage"`
}

func CreateObjectStore(ctx context.Context, cfg StorageConfig) (storage.ObjectStore, error) {
	switch {
	case cfg.BlobToken != "":
		slog.Info("using blob object store", "api_url", cfg.BlobAPIURL)
		return storage.NewBlobObjectStore(cfg.BlobAPIURL, cfg.BlobToken)

	case cfg.S3Bucket != "":
		slog.Info("using s3 object store", "bucket", cfg.S3Bucket, "endpoint", cfg.S3EndpointURL)
		store, err := storage.NewS3ObjectStore(cfg.S3Bucket, storage.S3ClientConfig{
			Endpoint:        cfg.S3EndpointURL,
			Region:          cfg.S3Region,
			AccessKeyID:     cfg.S3AccessKeyID,
			SecretAccessKey: cfg.S3SecretAccessKey,
		})
		if err != nil {
			return nil, err
		}
		if err := store.CreateBucket(ctx); err != nil {
			return nil, fmt.Errorf("error creating bucket %s: %w", cfg.S3Bucket, err)
		}
		return store, nil

	default:
		slog.Info("using local object store", "dir", cfg.LocalStorageDir)
		return storage.NewLocalObjectStore(cfg.LocalStorageDir)
	}
}

type PredictorConfig struct {
	PythonExecutable string `env:"PYTHON_EXECUTABLE" envDefault:"python3"`
	PluginScript     string `env:"PLUGIN_SCRIPT" envDefault:"plugin/plugin-python/plugin.py"`
}

func CreatePredictor(cfg PredictorConfig) *predictor.PluginPredictor {
	slog.Info("launching predictor plugin", "python", cfg.PythonExecutable, "script", cfg.PluginScript)
	p, err := predictor.LoadPluginPredictor(cfg.PythonExecutable, cfg.PluginScript)
	if err != nil {
		log.Fatalf("Failed to load predictor plugin: %v", err)
	}
	return p
}

// CreateDatabase connects to postgres when a url is given and falls back to a
// sqlite file otherwise. Migrations are applied in both cases.
func CreateDatabase(databaseURL, sqlitePath string) *gorm.DB {
	var db *gorm.DB
	var err error
	if databaseURL != "" {
		db, err = database.NewDatabase(databaseURL)
	} else {
		slog.Warn("DATABASE_URL not set, using sqlite database", "path", sqlitePath)
		db, err = database.NewLocalDatabase(sqlitePath)
	}
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	if err := database.GetMigrator(db).Migrate(); err != nil {
		log.Fatalf("Failed to migrate database: %v", err)
	}

	return db
}

// ScheduleCleanup publishes a cleanup task every interval until ctx is done.
func ScheduleCleanup(ctx context.Context, publisher messaging.Publisher, interval time.Duration) {
	if interval <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if err := publisher.PublishCleanupTask(ctx, messaging.CleanupTaskPayload{RequestedAt: now}); err != nil {
				slog.Error("error publishing cleanup task", "error", err)
			}
		}
	}
}
