package database_test

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"
	"toden-backend/internal/database"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/schema"
)

func createDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, database.GetMigrator(db).Migrate())
	return db
}

func queuedPrediction() *database.Prediction {
	return &database.Prediction{
		Id:             uuid.New(),
		Status:         database.PredictionQueued,
		RequestedInput: "DatasetA",
		Alpha:          0.5,
		Clusters:       3,
		CreationTime:   time.Now().UTC(),
	}
}

func TestPredictionLifecycle(t *testing.T) {
	db := createDB(t)
	ctx := context.Background()

	prediction := queuedPrediction()
	require.NoError(t, database.CreatePrediction(ctx, db, prediction))

	require.NoError(t, database.UpdatePredictionStatus(ctx, db, prediction.Id, database.PredictionRunning))

	loaded, err := database.GetPrediction(ctx, db, prediction.Id)
	require.NoError(t, err)
	assert.Equal(t, database.PredictionRunning, loaded.Status)
	assert.False(t, loaded.CompletionTime.Valid)

	outputs := []string{"predictions/x/adj_matrix.csv", "predictions/x/clusters.csv"}
	require.NoError(t, database.CompletePrediction(ctx, db, prediction.Id, json.RawMessage(`{"foo":1}`), outputs, 30*time.Minute))

	loaded, err = database.GetPrediction(ctx, db, prediction.Id)
	require.NoError(t, err)
	assert.Equal(t, database.PredictionCompleted, loaded.Status)
	assert.JSONEq(t, `{"foo":1}`, string(loaded.Result))
	assert.Equal(t, database.StringList(outputs), loaded.Outputs)
	assert.True(t, loaded.CompletionTime.Valid)
	require.True(t, loaded.ExpiresAt.Valid)
	assert.WithinDuration(t, time.Now().Add(30*time.Minute), loaded.ExpiresAt.Time, time.Minute)
}

func TestFailPrediction(t *testing.T) {
	db := createDB(t)
	ctx := context.Background()

	prediction := queuedPrediction()
	require.NoError(t, database.CreatePrediction(ctx, db, prediction))
	require.NoError(t, database.FailPrediction(ctx, db, prediction.Id, "bad input", "ValueError", time.Minute))

	loaded, err := database.GetPrediction(ctx, db, prediction.Id)
	require.NoError(t, err)
	assert.Equal(t, database.PredictionFailed, loaded.Status)
	assert.Equal(t, "bad input", loaded.Error.String)
	assert.Equal(t, "ValueError", loaded.ErrorType.String)
	assert.True(t, loaded.ExpiresAt.Valid)
}

func TestGetPrediction_NotFound(t *testing.T) {
	db := createDB(t)

	_, err := database.GetPrediction(context.Background(), db, uuid.New())
	require.ErrorIs(t, err, database.ErrPredictionNotFound)
}

func TestExpiredPredictions(t *testing.T) {
	db := createDB(t)
	ctx := context.Background()

	expired, fresh, pending := queuedPrediction(), queuedPrediction(), queuedPrediction()
	for _, p := range []*database.Prediction{expired, fresh, pending} {
		require.NoError(t, database.CreatePrediction(ctx, db, p))
	}
	require.NoError(t, database.CompletePrediction(ctx, db, expired.Id, json.RawMessage(`{}`), nil, -time.Minute))
	require.NoError(t, database.CompletePrediction(ctx, db, fresh.Id, json.RawMessage(`{}`), nil, time.Hour))

	list, err := database.ListExpiredPredictions(ctx, db, time.Now())
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, expired.Id, list[0].Id)

	deleted, err := database.DeletePredictions(ctx, db, []uuid.UUID{expired.Id})
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	_, err = database.GetPrediction(ctx, db, expired.Id)
	require.ErrorIs(t, err, database.ErrPredictionNotFound)

	deleted, err = database.DeletePredictions(ctx, db, nil)
	require.NoError(t, err)
	assert.Zero(t, deleted)
}

func TestDatasetClusterGoIds(t *testing.T) {
	db := createDB(t)
	ctx := context.Background()

	rows := []database.DatasetCluster{
		{DatasetName: "Leukemia_2_0.5", AlgorithmName: "AlgoX", ClusterId: 0, GoIds: database.StringList{"GO:1", "GO:2"}},
		{DatasetName: "Leukemia_2_0.5", AlgorithmName: "AlgoX", ClusterId: 1, GoIds: database.StringList{}},
		{DatasetName: "Leukemia_3_0.5", AlgorithmName: "AlgoY", ClusterId: 0, GoIds: database.StringList{"GO:3"}},
	}
	require.NoError(t, db.Create(&rows).Error)

	clusters, err := database.ListDatasetClusters(ctx, db, "Leukemia_2_0.5")
	require.NoError(t, err)
	require.Len(t, clusters, 2)
	assert.Equal(t, database.StringList{"GO:1", "GO:2"}, clusters[0].GoIds)
	assert.Equal(t, database.StringList{}, clusters[1].GoIds)
}

func TestStringListSchema(t *testing.T) {
	db := createDB(t)

	for _, model := range []any{&database.DatasetCluster{}, &database.Prediction{}} {
		parsed, err := schema.Parse(model, &sync.Map{}, db.NamingStrategy)
		require.NoError(t, err)

		field := parsed.LookUpField("go_ids")
		if field == nil {
			field = parsed.LookUpField("outputs")
		}
		require.NotNil(t, field, parsed.Table)
		assert.NotEmpty(t, field.DataType, parsed.Table)
	}

	assert.True(t, db.Migrator().HasColumn(&database.DatasetCluster{}, "go_ids"))
	assert.True(t, db.Migrator().HasColumn(&database.Prediction{}, "outputs"))

	prediction := queuedPrediction()
	prediction.Outputs = database.StringList{"predictions/abc/clusters.csv"}
	require.NoError(t, database.CreatePrediction(context.Background(), db, prediction))

	loaded, err := database.GetPrediction(context.Background(), db, prediction.Id)
	require.NoError(t, err)
	assert.Equal(t, prediction.Outputs, loaded.Outputs)
}
