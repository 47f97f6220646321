package api

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type ResultResponse struct {
	Result any `json:"result"`
}

type ErrorResponse struct {
	Error string `json:"error"`
	Type  string `json:"type,omitempty"`
}

type UploadResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
	Type    string `json:"type,omitempty"`
}

// PredictForm holds the non-file form fields of /predict and /predictions.
type PredictForm struct {
	File     string `schema:"file"`
	Alpha    string `schema:"alpha"`
	Clusters string `schema:"clusters"`
}

// FileForm holds the non-file form fields of /visualize and /summarize.
type FileForm struct {
	File string `schema:"file"`
}

type SubmitPredictionResponse struct {
	Id     uuid.UUID `json:"id"`
	Status string    `json:"status"`
}

type PredictionParams struct {
	Alpha    float64 `json:"alpha"`
	Clusters int     `json:"clusters"`
}

type Prediction struct {
	Id             uuid.UUID        `json:"id"`
	Status         string           `json:"status"`
	RequestedInput string           `json:"requested_input"`
	Params         PredictionParams `json:"params"`
	Result         json.RawMessage  `json:"result,omitempty"`
	Outputs        []string         `json:"outputs,omitempty"`
	Error          string           `json:"error,omitempty"`
	ErrorType      string           `json:"error_type,omitempty"`
	CreationTime   time.Time        `json:"created_at"`
	ExpiresAt      *time.Time       `json:"expires_at,omitempty"`
}

type CleanupResponse struct {
	Success        bool   `json:"success"`
	Message        string `json:"message,omitempty"`
	CleanedUpCount int    `json:"cleanedUpCount,omitempty"`
}

type MatrixQuery struct {
	File   string `schema:"file"`
	Type   string `schema:"type"`
	IdType string `schema:"id_type"`
}

type MatrixResponse struct {
	Matrix [][]string `json:"matrix"`
	Dims   []int      `json:"dims"`
}

type DatasetCluster struct {
	Algorithm string   `json:"algorithm"`
	ClusterId int      `json:"cluster_id"`
	GoIds     []string `json:"go_ids"`
}
