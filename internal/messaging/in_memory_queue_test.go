package messaging

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInMemoryQueue(t *testing.T) {
	queue := NewInMemoryQueue()
	ctx := context.Background()

	payload := PredictionTaskPayload{PredictionId: uuid.New()}
	require.NoError(t, queue.PublishPredictionTask(ctx, payload))
	require.NoError(t, queue.PublishCleanupTask(ctx, CleanupTaskPayload{RequestedAt: time.Now().UTC()}))

	task := <-queue.Tasks()
	assert.Equal(t, PredictionQueue, task.Type())

	var received PredictionTaskPayload
	require.NoError(t, json.Unmarshal(task.Payload(), &received))
	assert.Equal(t, payload, received)
	require.NoError(t, task.Ack())

	task = <-queue.Tasks()
	assert.Equal(t, CleanupQueue, task.Type())

	queue.Close()
	queue.Close()

	_, ok := <-queue.Tasks()
	assert.False(t, ok)

	require.Error(t, queue.PublishPredictionTask(ctx, payload))
}

func TestInMemoryQueue_PublishRespectsContext(t *testing.T) {
	queue := &InMemoryQueue{tasks: make(chan Task)}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	err := queue.PublishPredictionTask(ctx, PredictionTaskPayload{PredictionId: uuid.New()})
	require.ErrorIs(t, err, context.DeadlineExceeded)
}
