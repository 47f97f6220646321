package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"toden-backend/cmd"
	"toden-backend/internal/core"
	"toden-backend/internal/predictor"
	"toden-backend/internal/runner"
	"toden-backend/internal/storage"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	Storage   cmd.StorageConfig
	Predictor cmd.PredictorConfig
}

func main() {
	// stdout carries the single result line.
	log.SetOutput(os.Stderr)
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, nil)))

	var (
		envFile string
		cfg     Config
	)

	r := &runner.Runner{
		LoadPredictor: func() (predictor.Predictor, error) {
			return predictor.LoadPluginPredictor(cfg.Predictor.PythonExecutable, cfg.Predictor.PluginScript)
		},
		LoadStore: func(ctx context.Context) (storage.ObjectStore, error) {
			if cfg.Storage.BlobToken == "" && cfg.Storage.S3Bucket == "" {
				return nil, fmt.Errorf("BLOB_READ_WRITE_TOKEN or S3_BUCKET must be set")
			}
			return cmd.CreateObjectStore(ctx, cfg.Storage)
		},
		Out: os.Stdout,
	}

	rootCmd := runner.NewCommand(r, func() error {
		cmd.LoadEnvFromPath(envFile)
		return env.Parse(&cfg)
	})
	rootCmd.PersistentFlags().StringVar(&envFile, "env", "", "path to load env from")

	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		os.Exit(core.ExitCode(err))
	}
}
