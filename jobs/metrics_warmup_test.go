package jobs

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	jobmetrics "github.com/odyssey-erp/bizbilling/internal/jobs"
	"github.com/odyssey-erp/bizbilling/internal/metrics"
	"github.com/odyssey-erp/bizbilling/internal/shared"
)

type fakeLister struct {
	ids   []uuid.UUID
	since time.Time
}

func (f *fakeLister) ActiveBusinesses(_ context.Context, since time.Time) ([]uuid.UUID, error) {
	f.since = since
	return f.ids, nil
}

type fakeRefresher struct {
	mu        sync.Mutex
	refreshed []uuid.UUID
	failFor   uuid.UUID
	lockSeen  bool
	client    *redis.Client
}

func (f *fakeRefresher) Refresh(ctx context.Context, id uuid.UUID) (metrics.Dashboard, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.client != nil {
		f.lockSeen = f.client.Exists(ctx, shared.MetricsWarmupLockKey).Val() == 1
	}
	if id == f.failFor {
		return metrics.Dashboard{}, errors.New("db timeout")
	}
	f.refreshed = append(f.refreshed, id)
	return metrics.Dashboard{BusinessID: id}, nil
}

func newWarmupJob(t *testing.T, lister *fakeLister, refresher *fakeRefresher) (*MetricsWarmupJob, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	refresher.client = client

	job := NewMetricsWarmupJob(lister, refresher, client, nil, jobmetrics.NewMetrics(prometheus.NewRegistry()))
	job.clock = func() time.Time { return time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC) }
	return job, mr
}

func TestMetricsWarmupRefreshesActiveBusinesses(t *testing.T) {
	a, b := uuid.New(), uuid.New()
	lister := &fakeLister{ids: []uuid.UUID{a, b}}
	refresher := &fakeRefresher{}
	job, mr := newWarmupJob(t, lister, refresher)

	task, err := NewMetricsWarmupTask(MetricsWarmupPayload{LookbackMinutes: 30})
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task))

	assert.Equal(t, []uuid.UUID{a, b}, refresher.refreshed)
	assert.True(t, refresher.lockSeen)
	assert.Equal(t, time.Date(2024, 3, 15, 11, 30, 0, 0, time.UTC), lister.since)
	assert.False(t, mr.Exists(shared.MetricsWarmupLockKey))
}

func TestMetricsWarmupSkipsWhenLocked(t *testing.T) {
	refresher := &fakeRefresher{}
	job, mr := newWarmupJob(t, &fakeLister{ids: []uuid.UUID{uuid.New()}}, refresher)
	require.NoError(t, mr.Set(shared.MetricsWarmupLockKey, "other-worker"))

	require.NoError(t, job.Handle(context.Background(), asynq.NewTask(TaskMetricsWarmup, nil)))
	assert.Empty(t, refresher.refreshed)

	held, err := mr.Get(shared.MetricsWarmupLockKey)
	require.NoError(t, err)
	assert.Equal(t, "other-worker", held)
}

func TestMetricsWarmupContinuesPastFailures(t *testing.T) {
	a, b := uuid.New(), uuid.New()
	refresher := &fakeRefresher{failFor: a}
	job, mr := newWarmupJob(t, &fakeLister{ids: []uuid.UUID{a, b}}, refresher)

	err := job.Handle(context.Background(), asynq.NewTask(TaskMetricsWarmup, nil))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "db timeout")
	assert.Equal(t, []uuid.UUID{b}, refresher.refreshed)
	assert.False(t, mr.Exists(shared.MetricsWarmupLockKey))
}

func TestMetricsWarmupBadPayload(t *testing.T) {
	job, _ := newWarmupJob(t, &fakeLister{}, &fakeRefresher{})
	err := job.Handle(context.Background(), asynq.NewTask(TaskMetricsWarmup, []byte("[")))
	require.ErrorIs(t, err, asynq.SkipRetry)
}
