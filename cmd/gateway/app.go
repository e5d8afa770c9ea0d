package main

import (
	"context"
	"fmt"
	"net/http"

	"llm_router/internal/catalog"
	"llm_router/internal/chat"
	"llm_router/internal/config"
	"llm_router/internal/httpapi"
	"llm_router/internal/keypool"
	"llm_router/internal/logging"
	"llm_router/internal/metrics"
	"llm_router/internal/providers"
	"llm_router/internal/queue"
	"llm_router/internal/ratelimit"
	"llm_router/internal/storage"
)

// app holds the long-lived components of a running router.
type app struct {
	deps     *httpapi.Dependencies
	archiver *logging.ArchiveWorker

	closers []func() error
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			logging.Warningf("Failed to release resource: %v", err)
		}
	}
}

// newApp connects the stores and assembles the request dependencies.
func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	a := &app{}
	ok := false
	defer func() {
		if !ok {
			a.close()
		}
	}()

	db, err := storage.NewDB(storage.DBConfig{
		DSN:             cfg.Database.URL,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		ConnMaxIdleTime: cfg.Database.ConnMaxIdleTime,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	a.closers = append(a.closers, db.Close)

	if cfg.Database.AutoMigrate {
		if err := db.Migrate(ctx); err != nil {
			return nil, fmt.Errorf("failed to migrate database: %w", err)
		}
	}

	var enc *storage.Encryption
	if cfg.Encryption.Key != "" {
		enc, err = storage.NewEncryptionFromBase64(cfg.Encryption.Key)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize encryption: %w", err)
		}
	} else {
		logging.Warningf("ENCRYPTION_KEY is not set, pooled secrets are stored in plaintext")
	}

	health := map[string]httpapi.HealthChecker{"database": db}

	var rdb *storage.RedisClient
	if cfg.Redis.Enabled {
		rcfg := storage.DefaultRedisConfig()
		rcfg.URL = cfg.Redis.URL
		if cfg.Redis.Address != "" {
			rcfg.Address = cfg.Redis.Address
		}
		rcfg.Password = cfg.Redis.Password
		rcfg.DB = cfg.Redis.DB
		rcfg.PoolSize = cfg.Redis.PoolSize
		rcfg.MinIdleConns = cfg.Redis.MinIdleConns
		rcfg.DialTimeout = cfg.Redis.DialTimeout
		rcfg.ReadTimeout = cfg.Redis.ReadTimeout
		rcfg.WriteTimeout = cfg.Redis.WriteTimeout

		rdb, err = storage.NewRedisClient(rcfg)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, rdb.Close)
		health["redis"] = rdb
	}

	prom := metrics.NewPrometheus()
	repo := storage.NewCredentialRepository(db, enc)
	if err := prom.Register(metrics.NewPoolCollector(repo, cfg.Pool.QueryTimeout)); err != nil {
		return nil, fmt.Errorf("failed to register pool collector: %w", err)
	}

	pool := keypool.NewManager(repo, keypool.Config{
		QueryTimeout:   cfg.Pool.QueryTimeout,
		CandidateLimit: cfg.Pool.CandidateLimit,
		UsageLocation:  cfg.Pool.UsageLocation,
	}, keypool.WithObserver(prom))

	factory := providers.NewFactory(providers.FactoryConfig{
		DefaultKeys:   cfg.Providers.DefaultKeys,
		BaseURLs:      cfg.Providers.BaseURLs,
		BedrockRegion: cfg.Providers.BedrockRegion,
		HTTPClient:    providerHTTPClient(cfg),
	})

	sinkHooks, err := a.telemetry(ctx, cfg, rdb)
	if err != nil {
		return nil, err
	}

	orchestrator := chat.NewOrchestrator(chat.Config{
		MaxOutputTokens: cfg.Chat.MaxOutputTokens,
		RepairTimeout:   cfg.Chat.RepairTimeout,
	}, chat.WithHooks(chat.MultiHooks{chat.NewLogHooks(), prom, sinkHooks}))

	cat := catalog.Default()
	a.deps = &httpapi.Dependencies{
		Models:             catalog.NewResolver(cat, catalog.NewInferrer(cfg.Providers.InferenceDefault), cfg.Chat.DefaultModel),
		Catalog:            cat,
		Credentials:        keypool.NewIssuer(pool, keypool.StaticCredentials(cfg.Providers.DefaultKeys)),
		Pool:               pool,
		Clients:            factory,
		Orchestrator:       orchestrator,
		Metrics:            prom,
		Observer:           prom,
		RateLimit:          newLimiter(cfg, rdb),
		RateLimitPerMinute: cfg.RateLimit.PerMinute,
		Health:             health,
		HeartbeatInterval:  httpapi.DefaultHeartbeatInterval,
	}

	ok = true
	return a, nil
}

// telemetry builds the session record pipeline. Disabled telemetry returns
// hooks that drop every record.
func (a *app) telemetry(ctx context.Context, cfg *config.Config, rdb *storage.RedisClient) (*logging.SinkHooks, error) {
	t := cfg.Telemetry
	if !t.Enabled {
		return logging.NewSinkHooks(logging.NewNoopSink()), nil
	}

	qcfg := queue.DefaultConfig(t.QueueName)
	qcfg.Capacity = t.QueueSize
	qcfg.BatchSize = t.BatchSize
	qcfg.BatchTimeout = t.BatchTimeout
	qcfg.MaxRetries = t.MaxRetries
	qcfg.RetryBackoff = t.RetryBackoff

	var (
		q   queue.Queue
		dlq queue.DeadLetterQueue
		err error
	)
	if t.Backend == "redis" {
		if rdb == nil {
			return nil, fmt.Errorf("telemetry backend redis requires REDIS_URL or REDIS_ADDRESS")
		}
		if q, err = queue.NewRedisQueue(rdb.Client(), qcfg); err != nil {
			return nil, fmt.Errorf("failed to create telemetry queue: %w", err)
		}
		if dlq, err = queue.NewRedisDeadLetterQueue(rdb.Client(), qcfg); err != nil {
			return nil, fmt.Errorf("failed to create telemetry dead letter queue: %w", err)
		}
	} else {
		q = queue.NewMemoryQueue(qcfg)
		dlq = queue.NewMemoryDeadLetterQueue()
	}
	a.closers = append(a.closers, q.Close, dlq.Close)

	writer, err := logging.NewS3Writer(ctx, logging.S3Config{
		Bucket:          t.S3Bucket,
		Region:          t.S3Region,
		Prefix:          t.S3Prefix,
		PodName:         t.PodName,
		Endpoint:        t.S3Endpoint,
		AccessKeyID:     t.S3AccessKey,
		SecretAccessKey: t.S3SecretKey,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create S3 writer: %w", err)
	}

	a.archiver = logging.NewArchiveWorker(q, dlq, writer, qcfg)
	logging.Infof("Session telemetry enabled (backend=%s, bucket=%s)", t.Backend, t.S3Bucket)
	return logging.NewSinkHooks(logging.NewQueueSink(q)), nil
}

func newLimiter(cfg *config.Config, rdb *storage.RedisClient) ratelimit.Limiter {
	switch {
	case cfg.RateLimit.PerMinute <= 0:
		return ratelimit.NewNoopLimiter()
	case cfg.RateLimitUsesRedis() && rdb != nil:
		return ratelimit.NewRedisLimiter(rdb.Client())
	default:
		return ratelimit.NewLocalLimiter()
	}
}

// providerHTTPClient bounds the wait for response headers only, so long
// completion streams are not cut off.
func providerHTTPClient(cfg *config.Config) *http.Client {
	if cfg.Providers.RequestTimeout <= 0 {
		return nil
	}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.ResponseHeaderTimeout = cfg.Providers.RequestTimeout
	return &http.Client{Transport: transport}
}
