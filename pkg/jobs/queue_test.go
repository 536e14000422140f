package jobs

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueueRetriesUntilSuccess(t *testing.T) {
	var calls int32
	done := make(chan Job, 1)
	q := NewQueue("test", func(ctx context.Context, job Job) error {
		if atomic.AddInt32(&calls, 1) < 3 {
			return errors.New("transient")
		}
		done <- job
		return nil
	}, QueueConfig{MaxRetries: 5, RetryDelay: time.Millisecond})
	q.Start(context.Background())
	defer q.Stop()

	require.NoError(t, q.Enqueue(Job{ID: "1", Type: "delete", Payload: "student/stu-1/a.pdf"}))
	select {
	case job := <-done:
		assert.Equal(t, 2, job.Attempt)
		assert.Equal(t, "student/stu-1/a.pdf", job.Payload)
	case <-time.After(2 * time.Second):
		t.Fatal("job was not retried to completion")
	}
}

func TestQueueGivesUpAfterMaxRetries(t *testing.T) {
	var calls int32
	q := NewQueue("test", func(ctx context.Context, job Job) error {
		atomic.AddInt32(&calls, 1)
		return errors.New("permanent")
	}, QueueConfig{MaxRetries: 2, RetryDelay: time.Millisecond})
	q.Start(context.Background())
	defer q.Stop()

	require.NoError(t, q.Enqueue(Job{ID: "1"}))
	assert.Eventually(t, func() bool { return atomic.LoadInt32(&calls) == 3 }, 2*time.Second, 5*time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestQueueEnqueueGuards(t *testing.T) {
	block := make(chan struct{})
	q := NewQueue("test", func(ctx context.Context, job Job) error {
		<-block
		return nil
	}, QueueConfig{Workers: 1, BufferSize: 1})

	assert.Error(t, q.Enqueue(Job{ID: "early"}))

	q.Start(context.Background())
	require.NoError(t, q.Enqueue(Job{ID: "1"}))
	assert.Eventually(t, func() bool { return len(q.jobs) == 0 }, time.Second, time.Millisecond)
	require.NoError(t, q.Enqueue(Job{ID: "2"}))
	err := q.Enqueue(Job{ID: "3"})
	assert.True(t, errors.Is(err, ErrQueueFull))

	close(block)
	q.Stop()
	assert.Error(t, q.Enqueue(Job{ID: "late"}))
}
