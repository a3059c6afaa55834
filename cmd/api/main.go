package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/ssgreg/logf"

	"api-demo/cacheaside"
	"api-demo/config"
	"api-demo/httpapi"
	"api-demo/kv"
	"api-demo/logging"
	"api-demo/middleware/ratelimit"
	"api-demo/middleware/ratelimit/application"
	"api-demo/middleware/ratelimit/domain"
	"api-demo/middleware/ratelimit/infra"
)

func main() {
	if err := run(); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "api: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		return fmt.Errorf("config error: %w", err)
	}

	logger, closeLog, err := logging.New(cfg.Log)
	if err != nil {
		return fmt.Errorf("logger error: %w", err)
	}
	defer closeLog()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var (
		store kv.Store
		rdb   *redis.Client
	)
	switch cfg.Store.Backend {
	case config.BackendMemory:
		logger.Warn("using in-memory store; state is local to this process")
		store = kv.NewMemoryStore()
	default:
		rdb = redis.NewClient(&redis.Options{
			Addr:        cfg.Redis.Addr,
			Password:    cfg.Redis.Password,
			DB:          cfg.Redis.DB,
			DialTimeout: cfg.Redis.DialTimeout,
		})
		defer func() { _ = rdb.Close() }()
		redisStore := kv.NewRedisStore(rdb, kv.WithOpTimeout(cfg.Redis.OpTimeout))
		if err := waitForStore(ctx, redisStore, cfg.Redis.StartupRetries, logger); err != nil {
			return fmt.Errorf("redis ping error: %w", err)
		}
		store = redisStore
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	rlMetrics := ratelimit.NewPrometheusMetrics(ratelimit.PrometheusMetricsOpts{})
	rlMetrics.MustRegister(reg)
	cacheMetrics := cacheaside.NewPrometheusMetrics(cacheaside.PrometheusMetricsOpts{})
	cacheMetrics.MustRegister(reg)

	var statsStore domain.StatsStore
	if cfg.RateStats.Enabled {
		if rdb != nil {
			statsStore = infra.NewRedisStatsStore(
				rdb,
				infra.WithStatsPrefix(cfg.RateStats.Prefix),
				infra.WithStatsTTL(cfg.RateStats.TTL),
				infra.WithStatsBucket(cfg.RateStats.Bucket),
				infra.WithStatsTrackKeys(cfg.RateStats.TrackKeys),
			)
		} else {
			statsStore = infra.NewMemoryStatsStore(infra.WithTrackKeys(cfg.RateStats.TrackKeys))
		}
	}

	routerOpts := httpapi.RouterOptions{
		Logger: logger,
		Store:  store,
		RateLimit: ratelimit.Options{
			Limiter: application.Service{
				Store:  store,
				Limit:  cfg.Rate.Limit,
				Window: cfg.Rate.Window,
				Prefix: cfg.Rate.Prefix,
			},
			Stats:               statsStore,
			Metrics:             rlMetrics,
			KeyHeader:           cfg.Rate.KeyHeader,
			TrustXForwardedFor:  cfg.Rate.TrustXFF,
			AddRateLimitHeaders: cfg.Rate.AddHeaders,
		},
		Concurrency: &ratelimit.ConcurrencyOptions{
			Max:            cfg.Concurrency.Max,
			RejectStatus:   http.StatusServiceUnavailable,
			AcquireTimeout: cfg.Concurrency.Timeout,
			Metrics:        rlMetrics,
		},
		Cache: cacheaside.Runner{
			Store:          store,
			ComputeTimeout: cfg.Cache.ComputeTimeout,
			Metrics:        cacheMetrics,
		},
		SlowKey:      cfg.Cache.SlowKey,
		ReportKey:    cfg.Cache.ReportKey,
		SlowTTL:      cfg.Cache.SlowTTL,
		ComputeDelay: cfg.Cache.ComputeDelay,
		Gatherer:     reg,
	}
	if cfg.Burst.Enabled {
		buckets := infra.NewBucketStore(cfg.Burst.RPS, cfg.Burst.Size)
		buckets.StartJanitor(ctx)
		routerOpts.Burst = &ratelimit.BurstOptions{
			Limiter:             application.BurstService{Store: buckets, Prefix: cfg.Rate.Prefix},
			Stats:               statsStore,
			Metrics:             rlMetrics,
			KeyHeader:           cfg.Rate.KeyHeader,
			TrustXForwardedFor:  cfg.Rate.TrustXFF,
			AddRateLimitHeaders: cfg.Rate.AddHeaders,
		}
	}

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           httpapi.NewRouter(routerOpts),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       90 * time.Second,
	}

	shutdownDone := make(chan struct{})
	go func() {
		defer close(shutdownDone)
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("graceful shutdown failed", logf.Error(err))
		}
	}()

	logger.Info("api listening", logf.String("addr", cfg.ListenAddr), logf.String("store", cfg.Store.Backend))
	logger.Info("rate limit",
		logf.Int("limit", cfg.Rate.Limit), logf.Duration("window", cfg.Rate.Window),
		logf.String("key_header", cfg.Rate.KeyHeader), logf.Bool("trust_xff", cfg.Rate.TrustXFF))
	logger.Info("rate stats", logf.Bool("enabled", cfg.RateStats.Enabled), logf.String("bucket", cfg.RateStats.Bucket))
	logger.Info("burst guard",
		logf.Bool("enabled", cfg.Burst.Enabled), logf.Float64("rps", cfg.Burst.RPS), logf.Int("size", cfg.Burst.Size))
	logger.Info("concurrency",
		logf.Int("max", cfg.Concurrency.Max), logf.Duration("acquire_timeout", cfg.Concurrency.Timeout))

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server error: %w", err)
	}
	<-shutdownDone
	logger.Info("api stopped")
	return nil
}

// waitForStore tenta o ping inicial com backoff exponencial (o Redis pode subir
// depois da API). Só é usado no startup; requisições nunca fazem retry.
func waitForStore(ctx context.Context, store kv.Store, retries uint64, logger *logf.Logger) error {
	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewExponentialBackOff(), retries), ctx)
	return backoff.RetryNotify(
		func() error { return store.Ping(ctx) },
		policy,
		func(err error, next time.Duration) {
			logger.Warn("store not reachable yet, retrying", logf.Error(err), logf.Duration("next_in", next))
		},
	)
}
