package queue_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/licensekit/pkg/queue"
)

type capturingStorage struct {
	created []*queue.Task
}

func (c *capturingStorage) CreateTask(_ context.Context, task *queue.Task) error {
	c.created = append(c.created, task)
	return nil
}

type testPayload struct {
	Value string `json:"value"`
}

func TestEnqueuer_Enqueue(t *testing.T) {
	t.Parallel()

	t.Run("defaults", func(t *testing.T) {
		t.Parallel()
		storage := &capturingStorage{}
		enq, err := queue.NewEnqueuer(storage)
		require.NoError(t, err)

		require.NoError(t, enq.Enqueue(context.Background(), testPayload{Value: "hello"}))
		require.Len(t, storage.created, 1)

		task := storage.created[0]
		assert.Equal(t, queue.DefaultQueueName, task.Queue)
		assert.Equal(t, "queue_test.testPayload", task.TaskName)
		assert.Equal(t, queue.TaskStatusPending, task.Status)
		assert.Equal(t, queue.DefaultMaxAttempts, task.MaxAttempts)
		assert.Zero(t, task.Attempts)

		var decoded testPayload
		require.NoError(t, json.Unmarshal(task.Payload, &decoded))
		assert.Equal(t, "hello", decoded.Value)
	})

	t.Run("options", func(t *testing.T) {
		t.Parallel()
		storage := &capturingStorage{}
		enq, err := queue.NewEnqueuer(storage, queue.WithDefaultQueue("billing"))
		require.NoError(t, err)

		before := time.Now()
		require.NoError(t, enq.Enqueue(context.Background(), testPayload{},
			queue.WithMaxAttempts(3),
			queue.WithDelay(time.Minute),
			queue.WithTaskName("custom.name"),
		))
		require.Len(t, storage.created, 1)

		task := storage.created[0]
		assert.Equal(t, "billing", task.Queue)
		assert.Equal(t, "custom.name", task.TaskName)
		assert.Equal(t, int8(3), task.MaxAttempts)
		assert.True(t, task.ScheduledAt.After(before.Add(50*time.Second)))
	})

	t.Run("nil payload rejected", func(t *testing.T) {
		t.Parallel()
		enq, err := queue.NewEnqueuer(&capturingStorage{})
		require.NoError(t, err)
		assert.ErrorIs(t, enq.Enqueue(context.Background(), nil), queue.ErrPayloadNil)
	})

	t.Run("nil storage rejected", func(t *testing.T) {
		t.Parallel()
		_, err := queue.NewEnqueuer(nil)
		assert.ErrorIs(t, err, queue.ErrStorageNil)
	})
}

func TestNewTaskHandler_NameMatchesEnqueuedTask(t *testing.T) {
	t.Parallel()

	storage := &capturingStorage{}
	enq, err := queue.NewEnqueuer(storage)
	require.NoError(t, err)
	require.NoError(t, enq.Enqueue(context.Background(), testPayload{Value: "x"}))

	handler := queue.NewTaskHandler(func(_ context.Context, p testPayload) error {
		return nil
	})
	assert.Equal(t, storage.created[0].TaskName, handler.Name())
}

func TestBackoff_Polynomial(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 30*time.Second, queue.Backoff(1))
	assert.Equal(t, 2*time.Minute, queue.Backoff(2))
	assert.Equal(t, 270*time.Second, queue.Backoff(3))
	assert.Equal(t, 8*time.Minute, queue.Backoff(4))
}
