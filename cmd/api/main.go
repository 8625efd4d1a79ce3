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

	"datavend_backend/internal/adapters/storage"
	amigoclient "datavend_backend/internal/amigo/client"
	"datavend_backend/internal/catalog"
	"datavend_backend/internal/events"
	apphttp "datavend_backend/internal/http"
	"datavend_backend/internal/http/router"
	"datavend_backend/internal/notification"
	paymentsclient "datavend_backend/internal/payments/client"
	"datavend_backend/internal/purchases"
	"datavend_backend/internal/webhook"
	"datavend_backend/platform/cache"
	"datavend_backend/platform/config"
	"datavend_backend/platform/db"
	"datavend_backend/platform/egress"
	"datavend_backend/platform/logger"
	"datavend_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	// Initialize structured logger
	log := logger.New(cfg.Env)
	log.Info("starting server", "env", cfg.Env, "addr", cfg.HTTPAddr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ========================================================================
	// Infrastructure Layer
	// ========================================================================

	var pool *pgxpool.Pool
	if err := withRetry(ctx, log, "database connection", 5, 2*time.Second, func() error {
		p, err := db.NewPool(ctx, cfg)
		if err != nil {
			return err
		}
		pool = p
		return nil
	}); err != nil {
		log.Error("failed to connect to database", "error", err)
		panic("failed to connect to database: " + err.Error())
	}
	defer pool.Close()
	log.Info("database connection established")

	if err := withRetry(ctx, log, "database migrations", 5, 2*time.Second, func() error {
		return db.RunMigrations(ctx, pool)
	}); err != nil {
		log.Error("failed to run database migrations", "error", err)
		panic("failed to run database migrations: " + err.Error())
	}
	log.Info("database migrations complete")

	plans, err := catalog.Resolve(cfg.GetPlanCatalogFile())
	if err != nil {
		log.Error("failed to load plan catalog", "error", err, "file", cfg.GetPlanCatalogFile())
		panic("failed to load plan catalog: " + err.Error())
	}
	log.Info("plan catalog loaded", "plans", plans.Len())

	outbound, err := egress.NewClient(egress.Options{
		ProxyURL: cfg.GetEgressProxyURL(),
		Timeout:  cfg.GetOutboundTimeout(),
	})
	if err != nil {
		log.Error("failed to build outbound client", "error", err, "proxy", egress.Redact(cfg.GetEgressProxyURL()))
		panic("failed to build outbound client: " + err.Error())
	}
	if cfg.GetEgressProxyURL() != "" {
		log.Info("outbound calls routed through proxy", "proxy", egress.Redact(cfg.GetEgressProxyURL()))
	}

	// Event bus for decoupled communication between modules
	eventBus := events.NewInMemoryBus(log)

	deduper, closeRedis := initDeduper(ctx, cfg, log)
	if closeRedis != nil {
		defer closeRedis()
	}
	archiver := initArchiver(ctx, cfg, log)

	// Shared validator instance for dependency injection
	val := validator.New()

	// ========================================================================
	// Domain Modules (Composition Root)
	// ========================================================================

	// Notification module subscribes to domain events (not HTTP-facing)
	notification.New(log).RegisterHandlers(eventBus)

	verifier := paymentsclient.New(outbound, cfg.GetFlutterwaveBaseURL(), cfg.GetFlutterwaveSecretKey(), log)
	dispenser := amigoclient.New(outbound, cfg.GetAmigoBaseURL(), cfg.GetAmigoAPIKey(), log)

	purchasesModule := purchases.NewModule(pool, plans, verifier, dispenser, eventBus, val, log, cfg.GetPhoneDefaultRegion())
	webhookModule := webhook.NewModule(
		webhook.NewExactMatchAuthenticator(cfg.GetFlutterwaveSecretHash()),
		deduper,
		archiver,
		eventBus,
		log,
	)

	// ========================================================================
	// HTTP Layer
	// ========================================================================

	app := &apphttp.App{
		Config:   cfg,
		Logger:   log,
		Health:   db.NewPoolAdapter(pool),
		EventBus: eventBus,
		Modules: []apphttp.Module{
			purchasesModule,
			webhookModule,
		},
	}

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router.New(app),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("server listening", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutdown signal received, gracefully shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error("server error", "error", err)
		panic("server error: " + err.Error())
	}
	eventBus.Wait()
	log.Info("server stopped")
}

func initDeduper(ctx context.Context, cfg *config.Config, log *logger.Logger) (webhook.Deduper, func()) {
	if !cfg.IsRedisEnabled() {
		log.Warn("REDIS_URL not configured; webhook de-duplication disabled")
		return nil, nil
	}

	client, err := cache.NewClient(ctx, cfg)
	if err != nil {
		log.Error("failed to connect to redis; webhook de-duplication disabled", "error", err)
		return nil, nil
	}

	return webhook.NewRedisDeduper(client, cfg.GetWebhookDedupTTL()), func() {
		_ = client.Close()
	}
}

func initArchiver(ctx context.Context, cfg *config.Config, log *logger.Logger) webhook.Archiver {
	if !cfg.IsMinIOEnabled() {
		log.Warn("MINIO_ENDPOINT not configured; webhook archive disabled")
		return nil
	}

	storageSvc, err := storage.NewMinIOService(cfg)
	if err != nil {
		log.Error("failed to initialize storage service; webhook archive disabled", "error", err)
		return nil
	}

	bucket := cfg.GetMinioBucketWebhooks()
	if err := withRetry(ctx, log, "ensure webhook bucket", 5, 2*time.Second, func() error {
		return storageSvc.EnsureBucketExists(ctx, bucket)
	}); err != nil {
		log.Error("failed to ensure storage bucket exists; webhook archive disabled", "error", err, "bucket", bucket)
		return nil
	}

	log.Info("storage service initialized", "webhookBucket", bucket)
	return webhook.NewBucketArchiver(storageSvc, bucket)
}

func withRetry(ctx context.Context, log *logger.Logger, name string, attempts int, baseDelay time.Duration, fn func() error) error {
	if attempts < 1 {
		return fmt.Errorf("%s: invalid retry attempts", name)
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err
		log.Warn("retryable operation failed", "operation", name, "attempt", attempt, "error", err)

		if attempt < attempts {
			delay := time.Duration(attempt*attempt) * baseDelay
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
	}

	return fmt.Errorf("%s: %w", name, lastErr)
}
