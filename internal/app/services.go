package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/odyssey-erp/bizbilling/internal/fx"
	"github.com/odyssey-erp/bizbilling/internal/invoicing"
	"github.com/odyssey-erp/bizbilling/internal/metrics"
	"github.com/odyssey-erp/bizbilling/internal/observability"
	"github.com/odyssey-erp/bizbilling/internal/platform/cache"
	"github.com/odyssey-erp/bizbilling/internal/platform/db"
	"github.com/odyssey-erp/bizbilling/jobs"
)

// Services bundles the engine services and their connections.
type Services struct {
	Pool        *pgxpool.Pool
	Redis       *redis.Client
	Jobs        *jobs.Client
	Telemetry   *observability.Metrics
	Converter   fx.Converter
	MetricsRepo *metrics.PostgresRepository
	Metrics     *metrics.Service
	Invoicing   *invoicing.Service
}

// RedisOpts returns the asynq connection options for cfg.
func (c *Config) RedisOpts() asynq.RedisClientOpt {
	return asynq.RedisClientOpt{Addr: c.RedisAddr, Password: c.RedisPassword, DB: c.RedisDB}
}

// NewServices connects to PostgreSQL and Redis and wires the engine.
func NewServices(ctx context.Context, cfg *Config, logger *slog.Logger) (*Services, error) {
	pool, err := db.New(ctx, cfg.PGDSN, db.PoolOptions{MaxConns: cfg.PGMaxConns})
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	redisClient, err := cache.New(ctx, cache.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("connect redis: %w", err)
	}

	s := &Services{
		Pool:      pool,
		Redis:     redisClient,
		Jobs:      jobs.NewClient(cfg.RedisOpts()),
		Telemetry: observability.NewMetrics(),
	}
	s.Converter = NewConverter(cfg, redisClient, logger)

	s.MetricsRepo = metrics.NewPostgresRepository(pool)
	metricsCache := metrics.NewCache(redisClient, cfg.MetricsCacheTTL, s.Telemetry)
	s.Metrics = metrics.NewService(s.MetricsRepo, metrics.Config{
		Converter:         s.Converter,
		Cache:             metricsCache,
		Logger:            logger,
		ReportingCurrency: cfg.ReportingCurrency,
	})

	s.Invoicing = invoicing.NewService(invoicing.NewRepository(pool), invoicing.ServiceConfig{
		Publisher: invoicing.NewMultiPublisher(
			jobs.NewPublisher(s.Jobs, logger),
			metrics.NewInvalidator(metricsCache),
		),
		Logger:      logger,
		Recorder:    s.Telemetry,
		MaxAttempts: cfg.ReconcileMaxAttempts,
	})
	return s, nil
}

// NewConverter builds the rate converter. Without an API key only same-currency
// amounts convert and the rest are reported as unavailable.
func NewConverter(cfg *Config, client *redis.Client, logger *slog.Logger) fx.Converter {
	var source fx.RateSource = fx.StaticRates{}
	if cfg.FXEnabled() {
		source = fx.NewHTTPRateSource(cfg.FXAPIBaseURL, cfg.FXAPIKey, fx.HTTPOptions{Logger: logger})
	} else {
		logger.Warn("FX_API_KEY not set, foreign currency amounts will be excluded from reports")
	}
	return fx.NewRateConverter(fx.NewCachedRateSource(source, client, cfg.FXRateTTL, logger))
}

// Close releases every connection.
func (s *Services) Close() {
	if s == nil {
		return
	}
	if s.Jobs != nil {
		_ = s.Jobs.Close()
	}
	if s.Redis != nil {
		_ = s.Redis.Close()
	}
	if s.Pool != nil {
		s.Pool.Close()
	}
}
