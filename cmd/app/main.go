// File: cmd/app/main.go
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"activity-engine/internal/config"
	"activity-engine/internal/domain/ports/adapter"
	"activity-engine/internal/domain/ports/repository"
	mediaAdapters "activity-engine/internal/infra/adapters/media"
	payAdapters "activity-engine/internal/infra/adapters/payment"
	"activity-engine/internal/infra/api"
	pg "activity-engine/internal/infra/db/postgres"
	"activity-engine/internal/infra/logging"
	"activity-engine/internal/infra/metrics"
	"activity-engine/internal/infra/presence"
	red "activity-engine/internal/infra/redis"
	"activity-engine/internal/infra/sched"
	"activity-engine/internal/infra/worker"
	"activity-engine/internal/usecase"
	"activity-engine/internal/validation"
)

// set with -ldflags "-X main.version=... -X main.commit=..."
var (
	version = "dev"
	commit  = "none"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// ---- Config ----
	cfg, err := config.LoadConfig()
	if err != nil {
		boot := zerolog.New(os.Stderr).With().Timestamp().Logger()
		boot.Fatal().Err(err).Msg("config")
	}
	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	if cfg.Runtime.Dev {
		logger.Warn().Msg("[DEV MODE] Enabled")
	}

	metrics.MustRegister()
	metrics.SetBuildInfo(version, commit)

	// ---- Postgres ----
	pool, err := pg.Connect(ctx, cfg.Database)
	if err != nil {
		logger.Fatal().Err(err).Msg("postgres")
	}
	defer pool.Close()
	if cfg.Database.Migrate {
		if err := pg.Migrate(ctx, pool); err != nil {
			logger.Fatal().Err(err).Msg("migrate")
		}
		logger.Info().Msg("schema applied")
	}
	go pg.ReportPoolStats(ctx, pool, 15*time.Second)

	// ---- Repositories ----
	userRepo := pg.NewPostgresUserRepo(pool)
	payRepo := pg.NewPaymentRepo(pool)
	var activityRepo repository.ActivityRepository = pg.NewActivityRepo(pool)
	txm := pg.NewTxManager(pool)

	// ---- Redis (optional) ----
	var (
		locker  adapter.Locker
		limiter api.Limiter
	)
	if cfg.Redis.URL != "" {
		redisClient, err := red.NewClient(ctx, cfg.Redis)
		if err != nil {
			logger.Fatal().Err(err).Msg("redis")
		}
		defer redisClient.Close()
		locker = red.NewLocker(redisClient)
		limiter = red.NewRateLimiter(redisClient)
		activityRepo = pg.NewActivityRepoCacheDecorator(activityRepo, redisClient, cfg.Redis.TTL)
		logger.Info().Dur("cache_ttl", cfg.Redis.TTL).Msg("redis enabled")
	} else {
		logger.Warn().Msg("redis.url not set; verify locking, rate limiting and activity cache disabled")
	}

	// ---- Adapters ----
	gateway, err := newGateway(cfg.Payment, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("payment gateway")
	}
	store, err := mediaAdapters.NewS3Store(cfg.Media)
	if err != nil {
		logger.Fatal().Err(err).Msg("media store")
	}
	registry := presence.NewRegistry(logger)
	metrics.TrackPresence(registry.ConnectionCount)

	// ---- Use cases ----
	v := validation.New()
	saga := usecase.NewMediaSaga(store, usecase.MediaLimits{MaxFiles: cfg.Media.MaxFiles, MaxFileSize: cfg.Media.MaxFileSize}, logger)
	userUC := usecase.NewUserUseCase(userRepo, txm, logger)
	activityUC := usecase.NewActivityUseCase(userRepo, activityRepo, txm, saga, v, cfg.Payment.Currency, logger)
	rosterUC := usecase.NewRosterUseCase(activityRepo, userRepo, txm, registry, v, logger)
	paymentUC := usecase.NewPaymentUseCase(payRepo, activityRepo, userRepo, txm, gateway, locker, registry, v, usecase.PaymentOptions{
		ReturnURL:    cfg.Payment.ReturnURL,
		DefaultPhone: cfg.Payment.DefaultCustomerPhone,
		LockTTL:      cfg.Payment.VerifyLockTTL,
	}, logger)

	// ---- Reconciler ----
	if cfg.Reconciler.Enabled {
		workers := worker.NewPool(cfg.Reconciler.Workers, logger)
		workers.Start(ctx)
		defer workers.Stop()
		reconciler := sched.NewPaymentReconciler(paymentUC, workers, cfg.Reconciler, logger)
		go reconciler.Start(ctx)
		logger.Info().Dur("interval", cfg.Reconciler.Interval).Msg("payment reconciler started")
	}

	// ---- HTTP ----
	auth := api.NewAuthenticator(api.NewAuthManager(cfg.Auth), userUC)
	router := api.NewRouter(api.Deps{
		Handlers:  api.NewHandlers(activityUC, rosterUC, paymentUC, userUC, logger),
		Auth:      auth,
		Limiter:   limiter,
		Presence:  presence.Handler(registry, auth.Authenticate, cfg.HTTP.AllowedOrigins, logger),
		Health:    func(ctx context.Context) error { return pool.Ping(ctx) },
		HTTP:      cfg.HTTP,
		RateLimit: cfg.RateLimit,
		Logger:    logger,
	})
	server := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logger.Info().Str("addr", server.Addr).Str("gateway", gateway.Name()).Msg("http listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("http server error")
			cancel()
		}
	}()

	// ---- Graceful shutdown ----
	<-ctx.Done()
	logger.Info().Msg("shutdown requested")
	shutdownCtx, stop := context.WithTimeout(context.Background(), 15*time.Second)
	defer stop()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("http shutdown")
	}
}

func newGateway(cfg config.PaymentConfig, logger *zerolog.Logger) (adapter.PaymentGateway, error) {
	switch cfg.Provider {
	case "cashfree":
		logger.Info().Str("environment", cfg.Cashfree.Environment).Msg("payment gateway: cashfree")
		return payAdapters.NewCashfreeGateway(cfg.Cashfree)
	case "stripe":
		logger.Info().Msg("payment gateway: stripe")
		return payAdapters.NewStripeGateway(cfg.Stripe)
	default:
		logger.Warn().Msg("payment gateway: noop (orders are never paid)")
		return payAdapters.NewNoopPaymentGateway(), nil
	}
}
