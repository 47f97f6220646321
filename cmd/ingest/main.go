package main

import (
	"context"
	"log"
	"os"
	"toden-backend/cmd"
	"toden-backend/internal/ingest"

	"github.com/caarlos0/env/v11"
)

type IngestConfig struct {
	PostgresURL    string `env:"POSTGRES_URL"`
	DataFolderPath string `env:"DATA_FOLDER_PATH" envDefault:"go_metadata/data"`
	Manifest       string `env:"INGEST_MANIFEST"`
}

func main() {
	cmd.LoadEnvFile()

	var cfg IngestConfig
	if err := env.Parse(&cfg); err != nil {
		log.Printf("error parsing config: %v", err)
		return
	}

	ingestCfg := ingest.Config{
		DatasetNames:     ingest.DefaultDatasetNames,
		DataFolder:       cfg.DataFolderPath,
		ConnectionString: cfg.PostgresURL,
	}

	if cfg.Manifest != "" {
		manifest, err := ingest.LoadManifest(cfg.Manifest)
		if err != nil {
			log.Printf("error loading ingest manifest: %v", err)
			return
		}
		ingestCfg = manifest.Apply(ingestCfg)
	}

	log.Printf("ingesting %d datasets from %s", len(ingestCfg.DatasetNames), ingestCfg.DataFolder)

	// Failures are logged and rolled back; the exit status stays 0.
	stats, err := ingest.Ingest(context.Background(), ingestCfg, os.Stderr)
	if err != nil {
		log.Printf("An error occurred: %v", err)
		log.Println("Transaction rolled back.")
		return
	}

	log.Printf("Data ingestion complete: %d datasets, %d rows inserted.", stats.Datasets, stats.Rows)
}
