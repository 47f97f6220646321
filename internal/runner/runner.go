package runner

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"toden-backend/internal/core"
	"toden-backend/internal/predictor"
	"toden-backend/internal/storage"
	"toden-backend/pkg/api"
)

const (
	argumentErrorType = "ArgumentError"
	configErrorType   = "ConfigError"
)

// Variant selects the output shape of a run.
type Variant string

const (
	Local Variant = "local"
	Blob  Variant = "blob"
)

type PredictorLoader func() (predictor.Predictor, error)

type StoreLoader func(ctx context.Context) (storage.ObjectStore, error)

// Runner executes a single prediction and writes exactly one JSON line to Out.
// Logs never go to Out.
type Runner struct {
	LoadPredictor PredictorLoader
	LoadStore     StoreLoader
	Out           io.Writer
}

type Args struct {
	PagsTxtPath string
	Params      core.PredictParams
	ResultId    string
	BaseTmpPath string
}

func argumentError(expected string, count, got int) error {
	return core.TypedErrorf(core.MissingInput, argumentErrorType,
		"Incorrect number of arguments. Expected %d (%s), got %d.", count, expected, got)
}

func ParseLocalArgs(args []string) (Args, error) {
	if len(args) != 5 {
		return Args{}, argumentError("pags_txt_path, alpha, clusters, result_id, base_tmp_path", 5, len(args))
	}

	params, err := core.ParsePredictParams(args[1], args[2])
	if err != nil {
		return Args{}, err
	}

	return Args{PagsTxtPath: args[0], Params: params, ResultId: args[3], BaseTmpPath: args[4]}, nil
}

func ParseBlobArgs(args []string) (Args, error) {
	if len(args) != 4 {
		return Args{}, argumentError("pags_txt_path, alpha, clusters, result_id", 4, len(args))
	}

	params, err := core.ParsePredictParams(args[1], args[2])
	if err != nil {
		return Args{}, err
	}

	return Args{PagsTxtPath: args[0], Params: params, ResultId: args[3]}, nil
}

func (r *Runner) loadPredictor() (predictor.Predictor, error) {
	p, err := r.LoadPredictor()
	if err != nil {
		return nil, core.TypedErrorf(core.ExternalLibraryError, "ImportError", "Failed to load predictor: %v", err)
	}
	return p, nil
}

// RunLocal runs a prediction that writes its files under the base tmp path
// and prints {"result": ...}.
func (r *Runner) RunLocal(ctx context.Context, rawArgs []string) error {
	err := r.runLocal(ctx, rawArgs)
	if err != nil {
		slog.Error("prediction failed", "error", err)
		r.writeFailure(Local, err)
	}
	return err
}

func (r *Runner) runLocal(ctx context.Context, rawArgs []string) error {
	args, err := ParseLocalArgs(rawArgs)
	if err != nil {
		return err
	}

	p, err := r.loadPredictor()
	if err != nil {
		return err
	}
	defer p.Release()

	result, err := p.Predict(ctx, predictor.PredictInput{
		InputPath:   args.PagsTxtPath,
		Alpha:       args.Params.Alpha,
		NumClusters: args.Params.NumClusters,
		ResultId:    args.ResultId,
		BaseTmpPath: args.BaseTmpPath,
	})
	if err != nil {
		return err
	}

	r.write(api.ResultResponse{Result: result})
	return nil
}

// RunBlob runs an in memory prediction and uploads its csv outputs under
// predictions/<result_id>/, printing {"success": true}.
func (r *Runner) RunBlob(ctx context.Context, rawArgs []string) error {
	err := r.runBlob(ctx, rawArgs)
	if err != nil {
		slog.Error("prediction upload failed", "error", err)
		r.writeFailure(Blob, err)
		return err
	}
	r.write(api.UploadResponse{Success: true})
	return nil
}

func (r *Runner) runBlob(ctx context.Context, rawArgs []string) error {
	args, err := ParseBlobArgs(rawArgs)
	if err != nil {
		return err
	}

	store, err := r.LoadStore(ctx)
	if err != nil {
		return core.NewError(core.UploadError, fmt.Errorf("error creating object store: %w", err))
	}

	p, err := r.loadPredictor()
	if err != nil {
		return err
	}
	defer p.Release()

	result, err := p.Predict(ctx, predictor.PredictInput{
		InputPath:   args.PagsTxtPath,
		Alpha:       args.Params.Alpha,
		NumClusters: args.Params.NumClusters,
		ResultId:    args.ResultId,
		InMemory:    true,
	})
	if err != nil {
		return err
	}

	keys, err := core.UploadOutputs(ctx, store, args.ResultId, result)
	if err != nil {
		return err
	}

	slog.Info("uploaded prediction outputs", "result_id", args.ResultId, "keys", keys)
	return nil
}

func (r *Runner) write(v any) {
	if err := core.WriteJSONLine(r.Out, v); err != nil {
		slog.Error("error writing runner output", "error", err)
	}
}

func (r *Runner) writeFailure(variant Variant, err error) {
	typeName := core.TypeNameOf(err, core.ExternalLibraryError)
	if variant == Blob {
		r.write(api.UploadResponse{Success: false, Error: err.Error(), Type: typeName})
		return
	}
	r.write(api.ErrorResponse{Error: err.Error(), Type: typeName})
}
