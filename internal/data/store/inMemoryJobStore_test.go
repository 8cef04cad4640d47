package store

import (
	"context"
	"testing"
	"time"

	"github.com/akolanti/TenderRAG/internal/domain/jobModel"
	"github.com/stretchr/testify/assert"
)

func TestInMemoryJobStore_Expiry(t *testing.T) {
	ctx := context.Background()
	clock := time.Unix(1700000000, 0)
	s := InitInMemoryJobStore()
	s.ttl = time.Hour
	s.now = func() time.Time { return clock }

	_ = s.SaveJob(ctx, jobModel.Job{Id: "old", Status: jobModel.JobStatusComplete})
	clock = clock.Add(30 * time.Minute)
	_ = s.SaveJob(ctx, jobModel.Job{Id: "recent", Status: jobModel.JobStatusQueued})

	clock = clock.Add(45 * time.Minute)
	_, found := s.GetJob(ctx, "old")
	assert.False(t, found)
	_, found = s.GetJob(ctx, "recent")
	assert.True(t, found)

	// the next save drops what expired
	_ = s.SaveJob(ctx, jobModel.Job{Id: "new"})
	assert.Len(t, s.jobMap, 2)
}
