package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"toden-backend/internal/core"
	"toden-backend/internal/database"
	"toden-backend/internal/messaging"

	"gorm.io/gorm"
)

// RequeuePending republishes every prediction still queued so that an in
// memory queue does not lose work across restarts. Publishing blocks while the
// queue is full, so a consumer must already be running.
func RequeuePending(ctx context.Context, db *gorm.DB, publisher messaging.Publisher) (int, error) {
	queued, err := database.ListPredictionsByStatus(ctx, db, database.PredictionQueued)
	if err != nil {
		return 0, core.NewError(core.DatabaseError, err)
	}

	for i, prediction := range queued {
		if err := publisher.PublishPredictionTask(ctx, messaging.PredictionTaskPayload{PredictionId: prediction.Id}); err != nil {
			return i, fmt.Errorf("error requeueing prediction %s: %w", prediction.Id, err)
		}
	}

	if len(queued) > 0 {
		slog.Info("requeued pending predictions", "count", len(queued))
	}
	return len(queued), nil
}
