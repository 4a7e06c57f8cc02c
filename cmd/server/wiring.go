package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	credhandler "shebacred/internal/credential/handler"
	credmetrics "shebacred/internal/credential/metrics"
	credservice "shebacred/internal/credential/service"
	credstore "shebacred/internal/credential/store"
	"shebacred/internal/extraction"
	jwttoken "shebacred/internal/jwt_token"
	"shebacred/internal/ocr"
	"shebacred/internal/platform/config"
	platformmetrics "shebacred/internal/platform/metrics"
	"shebacred/internal/platform/postgres"
	"shebacred/internal/platform/ratelimit"
	redisclient "shebacred/internal/platform/redis"
	dochandler "shebacred/internal/verification/handler"
	"shebacred/internal/verification/matcher"
	vermetrics "shebacred/internal/verification/metrics"
	"shebacred/internal/verification/service"
	docstore "shebacred/internal/verification/store"
	audit "shebacred/pkg/platform/audit"
	"shebacred/pkg/platform/audit/publisher"
	"shebacred/pkg/platform/audit/publishers/compliance"
	kafkaaudit "shebacred/pkg/platform/audit/store/kafka"
	auditmemory "shebacred/pkg/platform/audit/store/memory"
	auditpostgres "shebacred/pkg/platform/audit/store/postgres"
	"shebacred/pkg/platform/circuit"
	"shebacred/pkg/platform/tx"
)

type app struct {
	router    http.Handler
	storage   string
	auditSink string
	closers   []func()
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

// registryStore is what both the registry service and the matcher read from.
type registryStore interface {
	credservice.Store
	matcher.Registry
}

// build connects optional infrastructure and assembles services. Each
// backend falls back to an in-process implementation when unconfigured.
func build(ctx context.Context, cfg config.Server, log *slog.Logger, reg *prometheus.Registry) (*app, error) {
	a := &app{storage: "memory", auditSink: "memory"}
	var checks []healthCheck

	db, err := postgres.Open(ctx, postgres.Config{
		URL:             cfg.Postgres.URL,
		MaxOpenConns:    cfg.Postgres.MaxOpenConns,
		MaxIdleConns:    cfg.Postgres.MaxIdleConns,
		ConnMaxLifetime: cfg.Postgres.ConnMaxLifetime,
	})
	if err != nil {
		return nil, err
	}
	if db != nil {
		a.closers = append(a.closers, func() { _ = db.Close() })
		if err := postgres.Migrate(ctx, db); err != nil {
			a.close()
			return nil, err
		}
		a.storage = "postgres"
		checks = append(checks, healthCheck{"postgres", func(ctx context.Context) error { return postgres.Health(ctx, db) }})
	}

	rdb, err := redisclient.New(ctx, cfg.Redis)
	if err != nil {
		a.close()
		return nil, err
	}
	if rdb != nil {
		a.closers = append(a.closers, func() { _ = rdb.Close() })
		checks = append(checks, healthCheck{"redis", rdb.Health})
	}

	auditStore, err := buildAuditStore(ctx, cfg, db, a, &checks)
	if err != nil {
		a.close()
		return nil, err
	}

	credMetrics := credmetrics.NewWithRegisterer(reg)
	verMetrics := vermetrics.NewWithRegisterer(reg)
	httpMetrics := platformmetrics.NewWithRegisterer(reg)

	var (
		registry  registryStore
		documents service.DocumentStore
		credTx    tx.Runner
		docTx     tx.Runner
	)
	if db != nil {
		registry = credstore.NewPostgres(db)
		documents = docstore.NewPostgres(db)
		credTx = tx.NewSQLRunner(db)
		docTx = tx.NewSQLRunner(db)
	} else {
		registry = credstore.NewInMemoryStore()
		documents = docstore.NewInMemoryStore()
		credTx = tx.NewShardedRunner()
		docTx = tx.NewShardedRunner()
	}
	if rdb != nil {
		registry = credstore.NewCachedStore(registry, rdb.Client, cfg.Redis.CacheTTL,
			credstore.WithCacheMetrics(credMetrics),
			credstore.WithCacheLogger(log),
			credstore.WithCacheBreaker(circuit.New("registry-cache")),
		)
	}

	var limiter ratelimit.Store = ratelimit.NewMemoryStore()
	if rdb != nil {
		limiter = ratelimit.NewFailoverStore(ratelimit.NewRedisStore(rdb.Client), circuit.New("rate-limit"), log)
	}

	credentials := credservice.New(registry, compliance.New(auditStore, compliance.WithLogger(log)),
		credservice.WithTxRunner(credTx),
		credservice.WithMetrics(credMetrics),
		credservice.WithLogger(log),
	)

	m := matcher.New(registry,
		matcher.WithExtractor(extraction.New()),
		matcher.WithMetrics(verMetrics),
		matcher.WithLogger(log),
	)

	auditPublisher := publisher.NewPublisher(auditStore, publisher.WithLogger(log))
	a.closers = append(a.closers, auditPublisher.Close)

	opts := []service.Option{
		service.WithTxRunner(docTx),
		service.WithAuditPublisher(auditPublisher),
		service.WithMetrics(verMetrics),
		service.WithLogger(log),
		service.WithBatchLimits(cfg.Verification.BatchMaxTexts, cfg.Verification.BatchConcurrency),
	}
	if cfg.OCREnabled() {
		recognizer, err := ocr.NewVisionRecognizer(ctx, cfg.OCR.CredentialsFile,
			ocr.WithMaxRetries(cfg.OCR.MaxRetries),
			ocr.WithLanguageHints(cfg.OCR.LanguageHints...),
			ocr.WithLogger(log),
		)
		if err != nil {
			a.close()
			return nil, err
		}
		a.closers = append(a.closers, func() { _ = recognizer.Close() })
		opts = append(opts, service.WithRecognizer(recognizer))
	} else {
		log.Warn("text recognition disabled: GOOGLE_APPLICATION_CREDENTIALS not set")
	}
	verification := service.New(documents, registry, m, opts...)

	if cfg.UsesDevSigningKey() {
		log.Warn("using development JWT signing key")
	}
	tokens := jwttoken.NewJWTServiceAdapter(jwttoken.NewJWTService(cfg.JWTSigningKey, cfg.JWTIssuer))

	a.router = newRouter(routerDeps{
		logger:      log,
		metrics:     httpMetrics,
		gatherer:    reg,
		validator:   tokens,
		limiter:     limiter,
		submitLimit: cfg.Verification.SubmitLimit,
		submitEvery: cfg.Verification.SubmitWindow,
		documents:   dochandler.New(verification, log, cfg.PublicBaseURL, dochandler.WithMaxImageBytes(cfg.OCR.MaxImageBytes)),
		credentials: credhandler.New(credentials, log),
		checks:      checks,
	})
	return a, nil
}

// buildAuditStore prefers Kafka, then PostgreSQL, then memory.
func buildAuditStore(ctx context.Context, cfg config.Server, db *sql.DB, a *app, checks *[]healthCheck) (audit.Store, error) {
	switch {
	case len(cfg.Kafka.Brokers) > 0:
		store, err := kafkaaudit.New(cfg.Kafka.Brokers, cfg.Kafka.AuditTopic)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, store.Close)
		ensureCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		if err := store.EnsureTopic(ensureCtx, 3, 1); err != nil {
			return nil, fmt.Errorf("ensure audit topic: %w", err)
		}
		a.auditSink = "kafka"
		*checks = append(*checks, healthCheck{"kafka", store.Health})
		return store, nil
	case db != nil:
		a.auditSink = "postgres"
		return auditpostgres.New(db), nil
	default:
		return auditmemory.NewInMemoryStore(), nil
	}
}
