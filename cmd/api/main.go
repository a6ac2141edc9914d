package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/access-gate-service/internal/api/http"
	"github.com/spec-kit/access-gate-service/internal/api/http/handlers"
	"github.com/spec-kit/access-gate-service/internal/auth"
	"github.com/spec-kit/access-gate-service/internal/clock"
	"github.com/spec-kit/access-gate-service/internal/config"
	"github.com/spec-kit/access-gate-service/internal/events"
	"github.com/spec-kit/access-gate-service/internal/gateway"
	"github.com/spec-kit/access-gate-service/internal/observability"
	"github.com/spec-kit/access-gate-service/internal/persistence"
	"github.com/spec-kit/access-gate-service/internal/repository"
	"github.com/spec-kit/access-gate-service/internal/scheduler"
	"github.com/spec-kit/access-gate-service/internal/service"
	"github.com/spec-kit/access-gate-service/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	if cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	redis := persistence.NewRedis(cfg.Redis, logger)
	defer redis.Close()

	metrics := observability.NewMetrics()
	systemClock := clock.System()
	provider := config.EnvGateProvider{}

	pool := pg.PoolHandle()
	tokenRepo := repository.NewTokenRepository(pool)
	membershipRepo := repository.NewMembershipRepository(pool)
	admissionRepo := repository.NewAdmissionRepository(pool)

	var gate gateway.ChannelGateway
	if cfg.Gateway.BaseURL != "" {
		gate = gateway.NewWebhookGateway(cfg.Gateway, logger)
	} else {
		logger.Warn("GATEWAY_BASE_URL not set; channel operations are logged only")
		gate = gateway.NewLoggingGateway(logger)
	}

	dispatcher := events.NewInMemoryDispatcher()

	tokenService := service.NewTokenService(service.TokenDependencies{
		Pool:           pool,
		TokenRepo:      tokenRepo,
		MembershipRepo: membershipRepo,
		Gateway:        gate,
		GatewayTimeout: cfg.Gateway.CallTimeout,
		Dispatcher:     dispatcher,
		Provider:       provider,
		Clock:          systemClock,
		Logger:         logger,
	})
	membershipService := service.NewMembershipService(service.MembershipDependencies{
		MembershipRepo: membershipRepo,
		Gateway:        gate,
		GatewayTimeout: cfg.Gateway.CallTimeout,
		Dispatcher:     dispatcher,
		Clock:          systemClock,
		Logger:         logger,
	})
	admissionService := service.NewAdmissionService(service.AdmissionDependencies{
		AdmissionRepo:  admissionRepo,
		Gateway:        gate,
		GatewayTimeout: cfg.Gateway.CallTimeout,
		Dispatcher:     dispatcher,
		Provider:       provider,
		Clock:          systemClock,
		Logger:         logger,
	})
	statsService := service.NewStatsService(tokenRepo, membershipRepo, admissionRepo)
	authService := service.NewAuthService(cfg.Auth)

	notificationService := service.NewNotificationService(dispatcher, logger, cfg.Notification)
	worker.StartNotificationWorker(notificationService)

	sched := scheduler.New(scheduler.Dependencies{
		Provider:    provider,
		Memberships: membershipService,
		Admissions:  admissionService,
		Tokens:      tokenService,
		Locker:      scheduler.NewRedisLocker(redis.Client),
		Metrics:     metrics,
		Clock:       systemClock,
		Logger:      logger,
	})
	sched.Start()

	authMiddleware := auth.NewAuthMiddleware(authService.TokenManager())

	app := fiber.New(fiber.Config{AppName: cfg.App.Name})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(pg, redis),
		Auth:           handlers.NewAuthHandler(authService),
		Tokens:         handlers.NewTokensHandler(tokenService),
		Admissions:     handlers.NewAdmissionsHandler(admissionService),
		Memberships:    handlers.NewMembershipsHandler(membershipService),
		Stats:          handlers.NewStatsHandler(statsService),
		AuthMiddleware: authMiddleware,
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	sched.Stop()
	_ = app.Shutdown()
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
