package api

import (
	"bytes"
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"
	"toden-backend/internal/core"
	"toden-backend/internal/database"
	"toden-backend/internal/jobs"
	"toden-backend/internal/messaging"
	"toden-backend/internal/storage"
	"toden-backend/pkg/api"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

func (s *BackendService) SubmitPrediction(r *http.Request) (any, error) {
	src, params, err := parsePredictForm(r)
	if err != nil {
		return nil, err
	}

	ctx := r.Context()

	id := uuid.New()
	prediction := database.Prediction{
		Id:             id,
		Status:         database.PredictionQueued,
		RequestedInput: src.Identifier(pagsExt),
		Alpha:          params.Alpha,
		Clusters:       params.NumClusters,
		BlobPathPrefix: core.PredictionPrefix(id.String()) + "/",
		CreationTime:   time.Now().UTC(),
	}

	if src.UsesSelection() {
		// Validates the name and checks the dataset exists before queueing.
		_, cleanup, err := s.resolver.ResolvePath(src, pagsExt, "No file provided")
		cleanup()
		if err != nil {
			return nil, err
		}
	} else {
		prediction.IsUpload = true
		prediction.InputKey = core.InputKey(id.String(), src.Upload.Name)
		if err := s.storage.PutObject(ctx, prediction.InputKey, bytes.NewReader(src.Upload.Data)); err != nil {
			slog.Error("error storing uploaded input", "prediction_id", id, "key", prediction.InputKey, "error", err)
			return nil, core.NewError(core.UploadError, fmt.Errorf("error storing uploaded input: %w", err))
		}
	}

	if err := database.CreatePrediction(ctx, s.db, &prediction); err != nil {
		slog.Error("error creating prediction", "prediction_id", id, "error", err)
		return nil, core.Errorf(core.DatabaseError, "failed to create prediction entry")
	}

	if err := s.publisher.PublishPredictionTask(ctx, messaging.PredictionTaskPayload{PredictionId: id}); err != nil {
		slog.Error("error publishing prediction task", "prediction_id", id, "error", err)
		if err := database.FailPrediction(ctx, s.db, id, "failed to queue prediction task", core.IOError.String(), jobs.DefaultPredictionTTL); err != nil {
			slog.Error("error marking prediction as failed", "prediction_id", id, "error", err)
		}
		return nil, core.Errorf(core.IOError, "failed to queue prediction task")
	}

	slog.Info("submitted prediction", "prediction_id", id, "input", prediction.RequestedInput)

	return api.SubmitPredictionResponse{Id: id, Status: prediction.Status}, nil
}

func (s *BackendService) GetPrediction(r *http.Request) (any, error) {
	id, err := URLParamUUID(r, "prediction_id")
	if err != nil {
		return nil, err
	}

	prediction, err := database.GetPrediction(r.Context(), s.db, id)
	if err != nil {
		if errors.Is(err, database.ErrPredictionNotFound) {
			return nil, core.Errorf(core.NotFound, "prediction not found")
		}
		slog.Error("error getting prediction", "prediction_id", id, "error", err)
		return nil, core.Errorf(core.DatabaseError, "error retrieving prediction record")
	}

	if prediction.ExpiresAt.Valid && prediction.ExpiresAt.Time.Before(time.Now()) {
		return nil, core.Errorf(core.NotFound, "prediction not found")
	}

	return convertPrediction(prediction), nil
}

func convertPrediction(p database.Prediction) api.Prediction {
	out := api.Prediction{
		Id:             p.Id,
		Status:         p.Status,
		RequestedInput: p.RequestedInput,
		Params:         api.PredictionParams{Alpha: p.Alpha, Clusters: p.Clusters},
		Outputs:        p.Outputs,
		Error:          p.Error.String,
		ErrorType:      p.ErrorType.String,
		CreationTime:   p.CreationTime,
	}
	if len(p.Result) > 0 {
		out.Result = []byte(p.Result)
	}
	if p.ExpiresAt.Valid {
		expires := p.ExpiresAt.Time
		out.ExpiresAt = &expires
	}
	return out
}

func (s *BackendService) authorizeCron(r *http.Request) bool {
	if s.cronSecret == "" {
		return false
	}
	expected := "Bearer " + s.cronSecret
	return subtle.ConstantTimeCompare([]byte(r.Header.Get("Authorization")), []byte(expected)) == 1
}

func (s *BackendService) CleanupPredictions(w http.ResponseWriter, r *http.Request) {
	if !s.authorizeCron(r) {
		WriteJsonError(w, core.Errorf(core.Unauthorized, "Unauthorized"))
		return
	}

	stats, err := jobs.Cleanup(r.Context(), s.db, s.storage, time.Now())
	if err != nil {
		slog.Error("error during prediction cleanup", "error", err)
		WriteJsonResponse(w, http.StatusInternalServerError, api.CleanupResponse{Success: false})
		return
	}

	switch {
	case stats.Expired == 0:
		WriteJsonResponse(w, http.StatusOK, api.CleanupResponse{Success: true, Message: "No expired predictions to clean up."})
	case stats.Deleted == 0:
		WriteJsonResponse(w, http.StatusInternalServerError, api.CleanupResponse{
			Success: false,
			Message: fmt.Sprintf("Failed to delete the stored outputs of %d expired predictions.", stats.Expired),
		})
	default:
		WriteJsonResponse(w, http.StatusOK, api.CleanupResponse{Success: true, CleanedUpCount: stats.Deleted})
	}
}

// MatrixKeys lists where a matrix may be stored, in lookup order. Custom ids
// name a prediction, whose outputs are checked before the legacy
// matrices/<type>_<id>.csv layout.
func MatrixKeys(file, matrixType, idType string) []string {
	if idType == "custom" {
		return []string{
			core.OutputKey(file, matrixType+"_matrix.csv"),
			fmt.Sprintf("matrices/%s_%s.csv", matrixType, file),
		}
	}
	return []string{fmt.Sprintf("matrices/%s_%s.csv", file, matrixType)}
}

func (s *BackendService) readMatrix(ctx context.Context, keys []string) ([]byte, error) {
	for _, key := range keys {
		content, err := s.storage.GetObject(ctx, key)
		if err == nil {
			return content, nil
		}
		if !errors.Is(err, storage.ErrObjectNotFound) {
			slog.Error("error reading matrix file", "key", key, "error", err)
			return nil, core.Errorf(core.IOError, "Error processing matrix file")
		}
	}
	slog.Error("matrix file not found", "keys", keys)
	return nil, core.Errorf(core.NotFound, "Matrix file not found.")
}

// ParseMatrix splits content into rows of comma separated cells, dropping
// blank lines.
func ParseMatrix(content string) ([][]string, error) {
	matrix := [][]string{}
	for _, row := range strings.Split(content, "\n") {
		if strings.TrimSpace(row) == "" {
			continue
		}
		matrix = append(matrix, strings.Split(row, ","))
	}

	if len(matrix) == 0 || len(matrix[0]) == 0 {
		return nil, core.Errorf(core.IOError, "Matrix is empty or improperly formatted")
	}
	return matrix, nil
}

func (s *BackendService) GetMatrix(r *http.Request) (any, error) {
	query, err := ParseRequestQueryParams[api.MatrixQuery](r)
	if err != nil {
		return nil, err
	}

	if query.File == "" {
		return nil, core.Errorf(core.MissingInput, "Missing 'file' parameter")
	}
	if query.Type == "" {
		query.Type = "adj"
	}
	for _, v := range []string{query.File, query.Type} {
		if strings.Contains(v, "/") || strings.Contains(v, "..") {
			return nil, core.Errorf(core.InvalidRequest, "Invalid matrix identifier '%s'", v)
		}
	}

	content, err := s.readMatrix(r.Context(), MatrixKeys(query.File, query.Type, query.IdType))
	if err != nil {
		return nil, err
	}

	matrix, err := ParseMatrix(string(content))
	if err != nil {
		return nil, err
	}

	return api.MatrixResponse{Matrix: matrix, Dims: []int{len(matrix), len(matrix[0])}}, nil
}

func (s *BackendService) ListDatasetClusters(r *http.Request) (any, error) {
	name := chi.URLParam(r, "dataset_name")
	if name == "" {
		return nil, core.Errorf(core.MissingInput, "missing {dataset_name} url parameter")
	}

	clusters, err := database.ListDatasetClusters(r.Context(), s.db, name)
	if err != nil {
		slog.Error("error listing dataset clusters", "dataset", name, "error", err)
		return nil, core.Errorf(core.DatabaseError, "error retrieving dataset clusters")
	}

	if len(clusters) == 0 {
		return nil, core.Errorf(core.NotFound, "dataset '%s' not found", name)
	}

	out := make([]api.DatasetCluster, 0, len(clusters))
	for _, c := range clusters {
		goIds := []string(c.GoIds)
		if goIds == nil {
			goIds = []string{}
		}
		out = append(out, api.DatasetCluster{
			Algorithm: c.AlgorithmName,
			ClusterId: c.ClusterId,
			GoIds:     goIds,
		})
	}
	return out, nil
}
