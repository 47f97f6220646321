package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
	"toden-backend/internal/core"
	"toden-backend/internal/database"
	"toden-backend/internal/messaging"
	"toden-backend/internal/predictor"
	"toden-backend/internal/storage"

	"gorm.io/gorm"
)

const DefaultPredictionTTL = 30 * time.Minute

type TaskProcessor struct {
	db        *gorm.DB
	storage   storage.ObjectStore
	publisher messaging.Publisher
	reciever  messaging.Reciever
	predictor predictor.Predictor
	resolver  *core.Resolver
	ttl       time.Duration

	stop     chan struct{}
	stopOnce sync.Once
}

func NewTaskProcessor(db *gorm.DB, storage storage.ObjectStore, publisher messaging.Publisher, reciever messaging.Reciever, predictor predictor.Predictor, resolver *core.Resolver, ttl time.Duration) *TaskProcessor {
	if ttl <= 0 {
		ttl = DefaultPredictionTTL
	}
	return &TaskProcessor{
		db:        db,
		storage:   storage,
		publisher: publisher,
		reciever:  reciever,
		predictor: predictor,
		resolver:  resolver,
		ttl:       ttl,
		stop:      make(chan struct{}),
	}
}

func (proc *TaskProcessor) Start() {
	slog.Info("starting task processor")

	tasks := proc.reciever.Tasks()
	for {
		select {
		case <-proc.stop:
			return
		case task, ok := <-tasks:
			if !ok {
				return
			}
			proc.ProcessTask(task)
		}
	}
}

// Stop makes Start return once the task in progress, if any, is finished.
func (proc *TaskProcessor) Stop() {
	slog.Info("stopping task processor")

	proc.stopOnce.Do(func() { close(proc.stop) })
	proc.publisher.Close()
	proc.reciever.Close()
}

func (proc *TaskProcessor) ProcessTask(task messaging.Task) {
	ctx := context.Background()

	var err error
	switch task.Type() {

	case messaging.PredictionQueue:
		var payload messaging.PredictionTaskPayload
		if err = json.Unmarshal(task.Payload(), &payload); err != nil {
			slog.Error("error unmarshalling prediction task", "error", err)
			if err := task.Reject(); err != nil {
				slog.Error("error rejecting message from queue", "error", err)
			}
			return
		}
		err = proc.processPredictionTask(ctx, payload)

	case messaging.CleanupQueue:
		var payload messaging.CleanupTaskPayload
		if err = json.Unmarshal(task.Payload(), &payload); err != nil {
			slog.Error("error unmarshalling cleanup task", "error", err)
			if err := task.Reject(); err != nil {
				slog.Error("error rejecting message from queue", "error", err)
			}
			return
		}
		_, err = Cleanup(ctx, proc.db, proc.storage, payload.RequestedAt)

	default:
		slog.Error("received unknown task type", "queue", task.Type())
		if err := task.Reject(); err != nil {
			slog.Error("error rejecting message from queue", "error", err)
		}
		return
	}

	if err != nil {
		slog.Error("error processing task", "queue", task.Type(), "error", err)
		if err := task.Nack(); err != nil {
			slog.Error("error reporting processing failure on message from queue", "error", err)
		}
	} else {
		slog.Info("successfully processed task", "queue", task.Type())
		if err := task.Ack(); err != nil {
			slog.Error("error acknowledging message from queue", "error", err)
		}
	}
}

func (proc *TaskProcessor) processPredictionTask(ctx context.Context, payload messaging.PredictionTaskPayload) error {
	slog.Info("processing prediction task", "prediction_id", payload.PredictionId)

	prediction, err := database.GetPrediction(ctx, proc.db, payload.PredictionId)
	if err != nil {
		if errors.Is(err, database.ErrPredictionNotFound) {
			slog.Warn("prediction no longer exists, skipping task", "prediction_id", payload.PredictionId)
			return nil
		}
		return err
	}

	if prediction.Status != database.PredictionQueued {
		slog.Warn("prediction is not queued, skipping task", "prediction_id", prediction.Id, "status", prediction.Status)
		return nil
	}

	if err := database.UpdatePredictionStatus(ctx, proc.db, prediction.Id, database.PredictionRunning); err != nil {
		return fmt.Errorf("error updating prediction status: %w", err)
	}

	result, outputs, runErr := proc.runPrediction(ctx, prediction)
	if runErr != nil {
		slog.Error("prediction failed", "prediction_id", prediction.Id, "error", runErr)
		typeName := core.TypeNameOf(runErr, core.ExternalLibraryError)
		if err := database.FailPrediction(ctx, proc.db, prediction.Id, runErr.Error(), typeName, proc.ttl); err != nil {
			return err
		}
		return runErr
	}

	if err := database.CompletePrediction(ctx, proc.db, prediction.Id, result, outputs, proc.ttl); err != nil {
		return err
	}

	slog.Info("prediction completed", "prediction_id", prediction.Id, "outputs", len(outputs))
	return nil
}

func (proc *TaskProcessor) inputSource(ctx context.Context, prediction database.Prediction) (core.FileSource, error) {
	if !prediction.IsUpload {
		return core.FileSource{Selection: prediction.RequestedInput}, nil
	}

	data, err := proc.storage.GetObject(ctx, prediction.InputKey)
	if err != nil {
		return core.FileSource{}, core.NewError(core.IOError, fmt.Errorf("error loading uploaded input: %w", err))
	}
	return core.FileSource{Upload: &core.Upload{Name: prediction.RequestedInput, Data: data}}, nil
}

func (proc *TaskProcessor) runPrediction(ctx context.Context, prediction database.Prediction) (json.RawMessage, []string, error) {
	src, err := proc.inputSource(ctx, prediction)
	if err != nil {
		return nil, nil, err
	}

	inputPath, cleanup, err := proc.resolver.ResolvePath(src, ".txt", "No file provided")
	defer cleanup()
	if err != nil {
		return nil, nil, err
	}

	resultId := prediction.Id.String()
	result, err := proc.predictor.Predict(ctx, predictor.PredictInput{
		InputPath:   inputPath,
		Alpha:       prediction.Alpha,
		NumClusters: prediction.Clusters,
		ResultId:    resultId,
		InMemory:    true,
	})
	if err != nil {
		return nil, nil, err
	}

	outputs, err := core.UploadOutputs(ctx, proc.storage, resultId, result)
	if err != nil {
		return nil, outputs, err
	}

	stripped, err := core.StripOutputs(result)
	if err != nil {
		return nil, outputs, err
	}

	return stripped, outputs, nil
}
