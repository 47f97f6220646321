package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"time"
	"toden-backend/internal/core"
	"toden-backend/internal/core/utils"
	"toden-backend/internal/database"
	"toden-backend/internal/storage"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const maxCleanupWorkers = 8

type CleanupStats struct {
	Expired int
	Deleted int
}

// Cleanup deletes the stored objects and records of every prediction that
// expired before now. A prediction whose objects cannot be deleted keeps its
// record so the next run retries it.
func Cleanup(ctx context.Context, db *gorm.DB, store storage.ObjectStore, now time.Time) (CleanupStats, error) {
	if now.IsZero() {
		now = time.Now()
	}

	expired, err := database.ListExpiredPredictions(ctx, db, now)
	if err != nil {
		return CleanupStats{}, core.NewError(core.DatabaseError, err)
	}

	stats := CleanupStats{Expired: len(expired)}
	if len(expired) == 0 {
		slog.Info("no expired predictions to clean up")
		return stats, nil
	}

	// uuid.Nil marks a prediction whose objects are still stored.
	removed, err := utils.MapInPool(expired, maxCleanupWorkers, func(prediction database.Prediction) (uuid.UUID, error) {
		prefix := prediction.BlobPathPrefix
		if prefix == "" {
			prefix = core.PredictionPrefix(prediction.Id.String()) + "/"
		}
		if err := store.DeleteObjects(ctx, prefix); err != nil {
			slog.Error("error deleting prediction objects", "prediction_id", prediction.Id, "prefix", prefix, "error", err)
			return uuid.Nil, nil
		}
		return prediction.Id, nil
	})
	if err != nil {
		return stats, err
	}

	ids := make([]uuid.UUID, 0, len(removed))
	for _, id := range removed {
		if id != uuid.Nil {
			ids = append(ids, id)
		}
	}

	deleted, err := database.DeletePredictions(ctx, db, ids)
	if err != nil {
		return stats, core.NewError(core.DatabaseError, fmt.Errorf("error deleting expired predictions: %w", err))
	}
	stats.Deleted = int(deleted)

	slog.Info("cleaned up expired predictions", "expired", stats.Expired, "deleted", stats.Deleted)
	return stats, nil
}
