package job

import (
	"context"
	"testing"
	"time"

	"github.com/akolanti/TenderRAG/internal/data/store"
	"github.com/akolanti/TenderRAG/internal/domain/jobModel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnqueue(t *testing.T) {
	ctx := context.Background()
	s := NewService(store.InitInMemoryJobStore(), 1)

	require.NoError(t, s.Enqueue(ctx, jobModel.Job{Id: "a", JobType: jobModel.JobTypeBuild}))
	assert.EqualValues(t, 1, s.Enqueued())

	saved, ok := s.Status(ctx, "a")
	require.True(t, ok)
	assert.Equal(t, jobModel.JobStatusQueued, saved.Status)

	queued := <-s.JobChannel
	assert.Equal(t, "a", queued.Id)
	assert.True(t, <-s.DispatcherChannel)
}

func TestEnqueue_FullQueueRecordsError(t *testing.T) {
	s := NewService(store.InitInMemoryJobStore(), 1)
	require.NoError(t, s.Enqueue(context.Background(), jobModel.Job{Id: "first"}))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := s.Enqueue(ctx, jobModel.Job{Id: "second"})
	assert.ErrorIs(t, err, ErrQueueFull)
	assert.EqualValues(t, 1, s.Enqueued())

	rejected, ok := s.Status(context.Background(), "second")
	require.True(t, ok)
	assert.Equal(t, jobModel.JobStatusError, rejected.Status)
	assert.True(t, rejected.Error.Retry)
}

func TestJob_FailAndFinished(t *testing.T) {
	j := jobModel.Job{Id: "x", Status: jobModel.JobStatusRunning}
	assert.False(t, j.Finished())

	failed := j.Fail(422, "every document was skipped", false)
	assert.True(t, failed.Finished())
	assert.Equal(t, jobModel.Error, failed.CurrentStep)
	assert.Equal(t, 422, failed.Error.Code)
	assert.Equal(t, jobModel.JobStatusRunning, j.Status)
}
