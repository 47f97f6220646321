package ingest

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"toden-backend/internal/core"
	"toden-backend/internal/database"

	"github.com/schollz/progressbar/v3"
	"gorm.io/gorm"
)

var DefaultDatasetNames = []string{
	"Leukemia_2_0.5", "Leukemia_3_0.25", "Leukemia_3_0.5",
	"Leukemia_4_0.25", "Leukemia_4_0.5", "Leukemia_5_0.25", "Leukemia_5_0.5",
}

type Config struct {
	DatasetNames     []string
	DataFolder       string
	ConnectionString string
}

type Stats struct {
	Datasets int
	Rows     int
}

type dataset struct {
	name string
	rows []core.ClusterRow
}

// Run loads every dataset's cluster csv into dataset_clusters inside a single
// transaction, one dataset at a time. Any failure rolls back all datasets.
func Run(ctx context.Context, db *gorm.DB, cfg Config, progress io.Writer) (Stats, error) {
	bar := progressbar.NewOptions(len(cfg.DatasetNames),
		progressbar.OptionSetWriter(progress),
		progressbar.OptionSetDescription("ingesting datasets"),
		progressbar.OptionSetWidth(30),
	)

	var stats Stats
	err := db.WithContext(ctx).Transaction(func(txn *gorm.DB) error {
		for _, name := range cfg.DatasetNames {
			slog.Info("processing cluster file", "dataset", name)

			ds, err := readDataset(cfg.DataFolder, name)
			if err != nil {
				return err
			}

			inserted, err := insertDataset(txn, ds)
			if err != nil {
				return err
			}

			stats.Datasets++
			stats.Rows += inserted
			if err := bar.Add(1); err != nil {
				slog.Error("error updating progress bar", "error", err)
			}
			slog.Info("finished inserting cluster data", "dataset", name, "rows", inserted)
		}
		return nil
	})
	if err != nil {
		slog.Error("ingestion failed, transaction rolled back", "error", err)
		return Stats{}, err
	}

	return stats, nil
}

func readDataset(dataFolder, name string) (dataset, error) {
	path := filepath.Join(dataFolder, name+".csv")
	file, err := os.Open(path)
	if err != nil {
		return dataset{}, core.NewError(core.IOError, fmt.Errorf("error opening cluster file for %s: %w", name, err))
	}
	defer file.Close()

	rows, err := core.ReadClusterRows(file)
	if err != nil {
		return dataset{}, fmt.Errorf("error reading cluster file %s: %w", path, err)
	}

	return dataset{name: name, rows: rows}, nil
}

func insertDataset(txn *gorm.DB, ds dataset) (int, error) {
	inserted := 0
	for _, row := range ds.rows {
		for clusterId, goIds := range row.Clusters {
			record := database.DatasetCluster{
				DatasetName:   ds.name,
				AlgorithmName: row.Algorithm,
				ClusterId:     clusterId,
				GoIds:         database.StringList(goIds),
			}
			if err := txn.Create(&record).Error; err != nil {
				return inserted, core.NewError(core.DatabaseError, fmt.Errorf("error inserting cluster %d of %s for %s: %w", clusterId, row.Algorithm, ds.name, err))
			}
			inserted++
		}
	}

	return inserted, nil
}

// Ingest opens the configured database, runs the ingestion and always closes
// the connection.
func Ingest(ctx context.Context, cfg Config, progress io.Writer) (Stats, error) {
	if cfg.ConnectionString == "" {
		return Stats{}, core.Errorf(core.MissingInput, "POSTGRES_URL not found, ensure the env file is correct")
	}

	db, err := database.NewDatabase(cfg.ConnectionString)
	if err != nil {
		return Stats{}, core.NewError(core.DatabaseError, err)
	}
	defer func() {
		database.Close(db)
		slog.Info("database connection closed")
	}()

	if err := database.GetMigrator(db).Migrate(); err != nil {
		return Stats{}, core.NewError(core.DatabaseError, fmt.Errorf("error migrating database: %w", err))
	}

	return Run(ctx, db, cfg, progress)
}
