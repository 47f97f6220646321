package integrationtests

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"
	backend "toden-backend/internal/api"
	"toden-backend/internal/core"
	"toden-backend/internal/database"
	"toden-backend/internal/ingest"
	"toden-backend/internal/jobs"
	"toden-backend/pkg/api"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func submitUpload(t *testing.T, router http.Handler) api.SubmitPredictionResponse {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	require.NoError(t, writer.WriteField("alpha", "0.5"))
	require.NoError(t, writer.WriteField("clusters", "2"))
	part, err := writer.CreateFormFile("fileUpload", "custom pags.txt")
	require.NoError(t, err)
	_, err = part.Write([]byte("GO:1\tGO:2"))
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/predictions", &body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var res api.SubmitPredictionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	return res
}

func TestPredictionWorkflow(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	db := createDB(t)
	store := setupTestObjectStore(t, ctx)
	publisher, receiver := setupRabbitMQContainer(t, ctx)

	resolver := core.NewResolver(t.TempDir(), t.TempDir())

	router := chi.NewRouter()
	backend.NewBackendService(db, store, publisher, &stubPredictor{}, resolver, "secret").AddRoutes(router)

	processor := jobs.NewTaskProcessor(db, store, publisher, receiver, &stubPredictor{}, resolver, time.Minute)

	submitted := submitUpload(t, router)

	select {
	case task := <-receiver.Tasks():
		processor.ProcessTask(task)
	case <-time.After(10 * time.Second):
		t.Fatal("Timed out waiting for prediction task")
	}

	t.Run("PredictionCompleted", func(t *testing.T) {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/predictions/"+submitted.Id.String(), nil))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var prediction api.Prediction
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &prediction))
		assert.Equal(t, database.PredictionCompleted, prediction.Status)
		assert.JSONEq(t, `{"num_nodes":2}`, string(prediction.Result))
		assert.Len(t, prediction.Outputs, 3)
		require.NotNil(t, prediction.ExpiresAt)
	})

	t.Run("MatrixFromOutputs", func(t *testing.T) {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/matrices?type=adj&id_type=custom&file="+submitted.Id.String(), nil))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.JSONEq(t, `{"matrix":[["1","0"],["0","1"]],"dims":[2,2]}`, rec.Body.String())
	})

	t.Run("CleanupAfterExpiry", func(t *testing.T) {
		stats, err := jobs.Cleanup(ctx, db, store, time.Now().Add(2*time.Minute))
		require.NoError(t, err)
		assert.Equal(t, jobs.CleanupStats{Expired: 1, Deleted: 1}, stats)

		objs, err := store.ListObjects(ctx, core.PredictionPrefix(submitted.Id.String())+"/")
		require.NoError(t, err)
		assert.Empty(t, objs)
	})
}

func TestIngestPostgres(t *testing.T) {
	ctx := context.Background()
	uri := setupPostgresContainer(t, ctx)

	dataDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dataDir, "DatasetA.csv"), []byte("ID,0,1\n\"AlgoX\",\"g1,g2\",\"\"\n"), 0o644))

	cfg := ingest.Config{DatasetNames: []string{"DatasetA"}, DataFolder: dataDir, ConnectionString: uri}
	stats, err := ingest.Ingest(ctx, cfg, io.Discard)
	require.NoError(t, err)
	assert.Equal(t, ingest.Stats{Datasets: 1, Rows: 2}, stats)

	db, err := database.NewDatabase(uri)
	require.NoError(t, err)
	defer database.Close(db)

	clusters, err := database.ListDatasetClusters(ctx, db, "DatasetA")
	require.NoError(t, err)
	require.Len(t, clusters, 2)
	assert.Equal(t, database.StringList{"g1", "g2"}, clusters[0].GoIds)
	assert.Equal(t, database.StringList{}, clusters[1].GoIds)

	cfg.DatasetNames = []string{"DatasetA", "Missing"}
	_, err = ingest.Ingest(ctx, cfg, io.Discard)
	require.Error(t, err)

	var count int64
	require.NoError(t, db.Model(&database.DatasetCluster{}).Count(&count).Error)
	assert.Equal(t, int64(2), count)
}
