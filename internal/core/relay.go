package core

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"path"
	"strings"
)

type ObjectWriter interface {
	PutObject(ctx context.Context, key string, data io.Reader) error
}

type OutputFile struct {
	ResultKey string
	Filename  string
}

// PredictionOutputs are the CSV payloads a blob-mode prediction returns, in
// upload order.
var PredictionOutputs = []OutputFile{
	{ResultKey: "adj_matrix_csv", Filename: "adj_matrix.csv"},
	{ResultKey: "con_matrix_csv", Filename: "con_matrix.csv"},
	{ResultKey: "clusters_csv", Filename: "clusters.csv"},
}

func PredictionPrefix(resultId string) string {
	return path.Join("predictions", resultId)
}

// OutputKey is deterministic so that uploading the same result id twice
// overwrites the earlier objects.
func OutputKey(resultId, filename string) string {
	return path.Join(PredictionPrefix(resultId), filename)
}

// InputKey is where an uploaded input is staged for a queued prediction.
func InputKey(resultId, uploadName string) string {
	return path.Join(PredictionPrefix(resultId), resultId+"_input_"+SanitizeFilename(uploadName))
}

// StripOutputs drops the csv payloads from a result once they are uploaded.
func StripOutputs(result json.RawMessage) (json.RawMessage, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(result, &fields); err != nil {
		return nil, Errorf(UploadError, "prediction result is not an object: %v", err)
	}
	for _, out := range PredictionOutputs {
		delete(fields, out.ResultKey)
	}
	return json.Marshal(fields)
}

// UploadOutputs uploads every well-known CSV payload present in result and
// returns the keys that were written.
func UploadOutputs(ctx context.Context, store ObjectWriter, resultId string, result json.RawMessage) ([]string, error) {
	if resultId == "" {
		return nil, Errorf(MissingInput, "result id is required for upload")
	}

	var outputs map[string]any
	if err := json.Unmarshal(result, &outputs); err != nil {
		return nil, Errorf(UploadError, "prediction result is not an object: %v", err)
	}

	var keys []string
	for _, out := range PredictionOutputs {
		value, ok := outputs[out.ResultKey]
		if !ok || value == nil {
			continue
		}

		content, ok := value.(string)
		if !ok {
			return keys, Errorf(UploadError, "expected csv string for '%s', got %T", out.ResultKey, value)
		}

		key := OutputKey(resultId, out.Filename)
		if err := store.PutObject(ctx, key, strings.NewReader(content)); err != nil {
			return keys, NewError(UploadError, fmt.Errorf("error uploading %s: %w", key, err))
		}
		slog.Info("uploaded prediction output", "result_id", resultId, "key", key)
		keys = append(keys, key)
	}

	return keys, nil
}

// WriteJSONLine writes v as a single line of JSON.
func WriteJSONLine(w io.Writer, v any) error {
	return json.NewEncoder(w).Encode(v)
}
