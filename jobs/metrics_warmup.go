package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	jobmetrics "github.com/odyssey-erp/bizbilling/internal/jobs"
	"github.com/odyssey-erp/bizbilling/internal/metrics"
	"github.com/odyssey-erp/bizbilling/internal/shared"
)

const (
	// MetricsWarmupSpec runs the warmup every 15 minutes.
	MetricsWarmupSpec = "*/15 * * * *"

	defaultWarmupLookback = 24 * time.Hour
	warmupLockTTL         = 10 * time.Minute
	warmupScopeTimeout    = 20 * time.Second
)

// releaseLock deletes the lock only while it still holds our token.
var releaseLock = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

// ActiveBusinessLister finds businesses worth warming.
type ActiveBusinessLister interface {
	ActiveBusinesses(ctx context.Context, since time.Time) ([]uuid.UUID, error)
}

// DashboardRefresher recomputes and caches one dashboard.
type DashboardRefresher interface {
	Refresh(ctx context.Context, businessID uuid.UUID) (metrics.Dashboard, error)
}

// MetricsWarmupJob pre-populates dashboard caches for recently active businesses.
type MetricsWarmupJob struct {
	Businesses ActiveBusinessLister
	Dashboards DashboardRefresher
	Redis      *redis.Client
	Logger     *slog.Logger
	Metrics    *jobmetrics.Metrics
	clock      func() time.Time
}

// NewMetricsWarmupJob wires dependencies for the warmup handler.
func NewMetricsWarmupJob(businesses ActiveBusinessLister, dashboards DashboardRefresher, client *redis.Client, logger *slog.Logger, m *jobmetrics.Metrics) *MetricsWarmupJob {
	return &MetricsWarmupJob{
		Businesses: businesses,
		Dashboards: dashboards,
		Redis:      client,
		Logger:     logger,
		Metrics:    m,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Handle processes metrics warmup tasks. Only one worker warms at a time;
// the others skip.
func (j *MetricsWarmupJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Businesses == nil || j.Dashboards == nil {
		return errors.New("metrics warmup: handler not configured")
	}
	var payload MetricsWarmupPayload
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return fmt.Errorf("decode %s: %v: %w", t.Type(), err, asynq.SkipRetry)
		}
	}
	lookback := defaultWarmupLookback
	if payload.LookbackMinutes > 0 {
		lookback = time.Duration(payload.LookbackMinutes) * time.Minute
	}

	logger := j.logger().With(slog.Duration("lookback", lookback))
	release, acquired, err := j.acquire(ctx)
	if err != nil {
		return err
	}
	if !acquired {
		j.metrics().Skipped(TaskMetricsWarmup, "locked")
		logger.Info("warmup already running elsewhere")
		return nil
	}
	defer release()

	tracker := j.metrics().Track(TaskMetricsWarmup)
	var resultErr error
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	now := j.now()
	ids, err := j.Businesses.ActiveBusinesses(ctx, now.Add(-lookback))
	if err != nil {
		resultErr = err
		logger.Error("load active businesses", slog.Any("error", err))
		return resultErr
	}
	if len(ids) == 0 {
		logger.Info("no active businesses to warm")
		return nil
	}

	var failed []error
	for _, id := range ids {
		scopeCtx, cancel := context.WithTimeout(ctx, warmupScopeTimeout)
		d, err := j.Dashboards.Refresh(scopeCtx, id)
		cancel()
		if err != nil {
			logger.Error("warm dashboard", slog.String("business_id", id.String()), slog.Any("error", err))
			failed = append(failed, fmt.Errorf("%s: %w", id, err))
			continue
		}
		if len(d.Degraded) > 0 {
			logger.Warn("dashboard warmed with degraded figures",
				slog.String("business_id", id.String()),
				slog.Any("degraded", d.Degraded))
		}
	}
	resultErr = errors.Join(failed...)
	logger.Info("completed metrics warmup",
		slog.Int("businesses", len(ids)),
		slog.Int("failed", len(failed)),
		slog.Duration("duration", time.Since(now)))
	return resultErr
}

func (j *MetricsWarmupJob) acquire(ctx context.Context) (func(), bool, error) {
	if j.Redis == nil {
		return func() {}, true, nil
	}
	token := uuid.NewString()
	ok, err := j.Redis.SetNX(ctx, shared.MetricsWarmupLockKey, token, warmupLockTTL).Result()
	if err != nil {
		return nil, false, fmt.Errorf("metrics warmup: acquire lock: %w", err)
	}
	if !ok {
		return nil, false, nil
	}
	return func() {
		// ctx may already be cancelled; the lock must still go.
		releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
		defer cancel()
		if err := releaseLock.Run(releaseCtx, j.Redis, []string{shared.MetricsWarmupLockKey}, token).Err(); err != nil {
			j.logger().Warn("release warmup lock", slog.Any("error", err))
		}
	}, true, nil
}

func (j *MetricsWarmupJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskMetricsWarmup))
	}
	return slog.Default().With(slog.String("job", TaskMetricsWarmup))
}

func (j *MetricsWarmupJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}

func (j *MetricsWarmupJob) now() time.Time {
	if j.clock != nil {
		return j.clock()
	}
	return time.Now().UTC()
}
