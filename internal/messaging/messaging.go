package messaging

import (
	"context"
	"time"

	"github.com/google/uuid"
)

const (
	PredictionQueue = "prediction_queue"
	CleanupQueue    = "cleanup_queue"
	RetryDelay      = 5 * time.Second
	MaxConnectRetry = 5
)

var queues = []string{PredictionQueue, CleanupQueue}

type Task interface {
	Type() string

	Payload() []byte

	Ack() error

	Nack() error

	Reject() error
}

type PredictionTaskPayload struct {
	PredictionId uuid.UUID
}

type CleanupTaskPayload struct {
	RequestedAt time.Time
}

type Publisher interface {
	PublishPredictionTask(ctx context.Context, payload PredictionTaskPayload) error

	PublishCleanupTask(ctx context.Context, payload CleanupTaskPayload) error

	Close()
}

type Reciever interface {
	Tasks() <-chan Task

	Close()
}
