package api

import (
	"bytes"
	"log/slog"
	"net/http"
	"toden-backend/internal/core"
	"toden-backend/internal/messaging"
	"toden-backend/internal/predictor"
	"toden-backend/internal/storage"
	"toden-backend/pkg/api"

	"github.com/go-chi/chi/v5"
	"gorm.io/gorm"
)

const (
	pagsExt    = ".txt"
	clusterExt = ".csv"
)

type BackendService struct {
	db         *gorm.DB
	storage    storage.ObjectStore
	publisher  messaging.Publisher
	predictor  predictor.Predictor
	resolver   *core.Resolver
	cronSecret string
}

func NewBackendService(db *gorm.DB, storage storage.ObjectStore, publisher messaging.Publisher, predictor predictor.Predictor, resolver *core.Resolver, cronSecret string) *BackendService {
	return &BackendService{
		db:         db,
		storage:    storage,
		publisher:  publisher,
		predictor:  predictor,
		resolver:   resolver,
		cronSecret: cronSecret,
	}
}

func (s *BackendService) AddRoutes(r chi.Router) {
	r.Get("/health", RestHandler(func(r *http.Request) (any, error) { return nil, nil }))

	r.Post("/predict", RestHandler(s.Predict))
	r.Post("/summarize", RestHandler(s.Summarize))

	r.Route("/visualize", func(r chi.Router) {
		r.Post("/", RestHandler(s.Visualize))
		r.Post("/graph", RestHandler(s.VisualizeGraph))
	})

	r.Route("/predictions", func(r chi.Router) {
		r.Post("/", RestHandler(s.SubmitPrediction))
		r.Get("/cleanup", s.CleanupPredictions)
		r.Get("/{prediction_id}", RestHandler(s.GetPrediction))
	})

	r.Get("/matrices", RestHandler(s.GetMatrix))
	r.Get("/datasets/{dataset_name}/clusters", RestHandler(s.ListDatasetClusters))
}

func fileSource(selection string, upload *core.Upload) core.FileSource {
	return core.FileSource{Selection: selection, Upload: upload}
}

// parsePredictForm checks for an input before the numeric parameters are
// parsed, so a request with no input and bad parameters reports the missing
// input.
func parsePredictForm(r *http.Request) (core.FileSource, core.PredictParams, error) {
	form, upload, err := ParseFileForm[api.PredictForm](r)
	if err != nil {
		return core.FileSource{}, core.PredictParams{}, err
	}

	src := fileSource(form.File, upload)
	if !src.UsesSelection() && src.Upload == nil {
		return src, core.PredictParams{}, core.Errorf(core.MissingInput, "No file provided")
	}

	params, err := core.ParsePredictParams(form.Alpha, form.Clusters)
	if err != nil {
		return src, core.PredictParams{}, err
	}

	return src, params, nil
}

func (s *BackendService) Predict(r *http.Request) (any, error) {
	src, params, err := parsePredictForm(r)
	if err != nil {
		return nil, err
	}

	path, cleanup, err := s.resolver.ResolvePath(src, pagsExt, "No file provided")
	defer cleanup()
	if err != nil {
		return nil, err
	}

	slog.Info("running prediction", "input", src.Identifier(pagsExt), "alpha", params.Alpha, "clusters", params.NumClusters)

	result, err := s.predictor.Predict(r.Context(), predictor.PredictInput{
		InputPath:   path,
		Alpha:       params.Alpha,
		NumClusters: params.NumClusters,
		BaseTmpPath: s.resolver.TmpDir,
	})
	if err != nil {
		slog.Error("prediction failed", "input", src.Identifier(pagsExt), "error", err)
		return nil, err
	}

	return api.ResultResponse{Result: result}, nil
}

func (s *BackendService) readClusterSummary(r *http.Request) (core.ClusterSummary, error) {
	form, upload, err := ParseFileForm[api.FileForm](r)
	if err != nil {
		return core.ClusterSummary{}, err
	}

	content, err := s.resolver.ReadContent(fileSource(form.File, upload), clusterExt, "No file provided for visualization.")
	if err != nil {
		return core.ClusterSummary{}, err
	}

	return core.ParseClusterSummary(bytes.NewReader(content))
}

func (s *BackendService) Visualize(r *http.Request) (any, error) {
	summary, err := s.readClusterSummary(r)
	if err != nil {
		return nil, err
	}
	return api.ResultResponse{Result: summary}, nil
}

// VisualizeGraph returns the expanded cluster members and the node set used to
// draw the cluster graph.
func (s *BackendService) VisualizeGraph(r *http.Request) (any, error) {
	summary, err := s.readClusterSummary(r)
	if err != nil {
		return nil, err
	}
	return api.ResultResponse{Result: summary.Nodes()}, nil
}

func (s *BackendService) Summarize(r *http.Request) (any, error) {
	form, upload, err := ParseFileForm[api.FileForm](r)
	if err != nil {
		return nil, err
	}

	src := fileSource(form.File, upload)
	path, cleanup, err := s.resolver.ResolvePath(src, clusterExt, "No file provided for summarization.")
	defer cleanup()
	if err != nil {
		return nil, err
	}

	result, err := s.predictor.Summarize(r.Context(), path)
	if err != nil {
		slog.Error("summarization failed", "input", src.Identifier(clusterExt), "error", err)
		return nil, err
	}

	return api.ResultResponse{Result: result}, nil
}
