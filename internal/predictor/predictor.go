package predictor

import (
	"context"
	"encoding/json"
	"toden-backend/internal/core"
)

type PredictInput struct {
	InputPath   string
	Alpha       float64
	NumClusters int
	ResultId    string
	BaseTmpPath string
	InMemory    bool
}

// Predictor wraps the toden-e library. Implementations must be safe for
// concurrent use.
type Predictor interface {
	Predict(ctx context.Context, input PredictInput) (json.RawMessage, error)

	Summarize(ctx context.Context, clusteringResultsPath string) (json.RawMessage, error)

	Release()
}

func libraryError(message, errorType string) error {
	if errorType == "" {
		errorType = "Exception"
	}
	return core.TypedErrorf(core.ExternalLibraryError, errorType, "%s", message)
}
