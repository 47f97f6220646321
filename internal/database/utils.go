package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

var ErrPredictionNotFound = errors.New("prediction not found")

func CreatePrediction(ctx context.Context, db *gorm.DB, prediction *Prediction) error {
	if err := db.WithContext(ctx).Create(prediction).Error; err != nil {
		slog.Error("error creating prediction", "prediction_id", prediction.Id, "error", err)
		return fmt.Errorf("error creating prediction: %w", err)
	}
	return nil
}

// GetPrediction returns ErrPredictionNotFound for unknown ids.
func GetPrediction(ctx context.Context, db *gorm.DB, id uuid.UUID) (Prediction, error) {
	var prediction Prediction
	if err := db.WithContext(ctx).First(&prediction, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Prediction{}, ErrPredictionNotFound
		}
		return Prediction{}, fmt.Errorf("error loading prediction %s: %w", id, err)
	}
	return prediction, nil
}

func UpdatePredictionStatus(ctx context.Context, txn *gorm.DB, id uuid.UUID, status string) error {
	updates := map[string]any{"status": status}
	if status == PredictionCompleted || status == PredictionFailed {
		updates["completion_time"] = time.Now().UTC()
	}

	if err := txn.WithContext(ctx).Model(&Prediction{Id: id}).Updates(updates).Error; err != nil {
		slog.Error("error updating prediction status", "prediction_id", id, "status", status, "error", err)
		return err
	}
	return nil
}

// CompletePrediction stores the result and starts the ttl clock.
func CompletePrediction(ctx context.Context, txn *gorm.DB, id uuid.UUID, result json.RawMessage, outputs []string, ttl time.Duration) error {
	now := time.Now().UTC()
	updates := map[string]any{
		"status":          PredictionCompleted,
		"result":          datatypes.JSON(result),
		"outputs":         StringList(outputs),
		"completion_time": now,
		"expires_at":      now.Add(ttl),
	}

	if err := txn.WithContext(ctx).Model(&Prediction{Id: id}).Updates(updates).Error; err != nil {
		slog.Error("error completing prediction", "prediction_id", id, "error", err)
		return fmt.Errorf("error completing prediction %s: %w", id, err)
	}
	return nil
}

// FailPrediction records the failure. Failed predictions expire like
// completed ones so that any partial uploads are cleaned up.
func FailPrediction(ctx context.Context, txn *gorm.DB, id uuid.UUID, message, errorType string, ttl time.Duration) error {
	now := time.Now().UTC()
	updates := map[string]any{
		"status":          PredictionFailed,
		"error":           sql.NullString{String: message, Valid: true},
		"error_type":      sql.NullString{String: errorType, Valid: errorType != ""},
		"completion_time": now,
		"expires_at":      now.Add(ttl),
	}

	if err := txn.WithContext(ctx).Model(&Prediction{Id: id}).Updates(updates).Error; err != nil {
		slog.Error("error marking prediction failed", "prediction_id", id, "error", err)
		return fmt.Errorf("error marking prediction %s failed: %w", id, err)
	}
	return nil
}

func ListExpiredPredictions(ctx context.Context, db *gorm.DB, now time.Time) ([]Prediction, error) {
	var predictions []Prediction
	if err := db.WithContext(ctx).
		Where("expires_at IS NOT NULL AND expires_at < ?", now.UTC()).
		Order("expires_at").
		Find(&predictions).Error; err != nil {
		return nil, fmt.Errorf("error listing expired predictions: %w", err)
	}
	return predictions, nil
}

func DeletePredictions(ctx context.Context, db *gorm.DB, ids []uuid.UUID) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	result := db.WithContext(ctx).Where("id IN ?", ids).Delete(&Prediction{})
	if result.Error != nil {
		return 0, fmt.Errorf("error deleting predictions: %w", result.Error)
	}
	return result.RowsAffected, nil
}

func ListDatasetClusters(ctx context.Context, db *gorm.DB, datasetName string) ([]DatasetCluster, error) {
	var clusters []DatasetCluster
	if err := db.WithContext(ctx).
		Where("dataset_name = ?", datasetName).
		Order("id").
		Find(&clusters).Error; err != nil {
		return nil, fmt.Errorf("error listing clusters for dataset %s: %w", datasetName, err)
	}
	return clusters, nil
}

func ListPredictionsByStatus(ctx context.Context, db *gorm.DB, status string) ([]Prediction, error) {
	var predictions []Prediction
	if err := db.WithContext(ctx).Where("status = ?", status).Order("creation_time").Find(&predictions).Error; err != nil {
		return nil, fmt.Errorf("error listing %s predictions: %w", status, err)
	}
	return predictions, nil
}
