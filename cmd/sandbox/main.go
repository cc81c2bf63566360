package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	httptransport "github.com/spec-kit/leadcrm/internal/api/http"
	"github.com/spec-kit/leadcrm/internal/api/http/handlers"
	"github.com/spec-kit/leadcrm/internal/config"
	"github.com/spec-kit/leadcrm/internal/events"
	"github.com/spec-kit/leadcrm/internal/observability"
	"github.com/spec-kit/leadcrm/internal/persistence"
	"github.com/spec-kit/leadcrm/internal/repository"
	"github.com/spec-kit/leadcrm/internal/service"
	"github.com/spec-kit/leadcrm/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	base, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer base.Sync() //nolint:errcheck
	logger := observability.ForApp(base, cfg.App, "sandbox")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	readiness := map[string]handlers.Pinger{}
	userRepo := repository.NewMemoryUserRepository()
	leadRepo := repository.NewMemoryLeadRepository()
	if pool := pg.PoolHandle(); pool != nil {
		userRepo = repository.NewUserRepository(pool)
		leadRepo = repository.NewLeadRepository(pool)
		readiness["postgres"] = pg
	} else {
		logger.Info("sandbox data is kept in memory")
	}

	var revocations persistence.KeyValueStore = persistence.NewMemoryStore()
	if cfg.Sandbox.RevocationDriver == config.StorageDriverRedis {
		redis, err := persistence.NewRedis(ctx, cfg.Redis)
		if err != nil {
			logger.Fatal("failed to connect redis", zap.Error(err))
		}
		defer redis.Close()
		revocations = persistence.NewRedisStore(redis.Client, cfg.Storage.KeyPrefix+"sandbox:")
		readiness["redis"] = redis
	}

	dispatcher := events.NewInMemoryDispatcher()
	notifier := service.NewNotificationService(logger, cfg.Notify)
	notifications := worker.StartNotificationWorker(ctx, dispatcher, notifier, logger, cfg.Notify.QueueSize)
	defer notifications.Stop()

	server := httptransport.NewServer(cfg, logger, httptransport.Dependencies{
		Users:       userRepo,
		Leads:       leadRepo,
		Revocations: revocations,
		Dispatcher:  dispatcher,
		Metrics:     observability.NewMetrics(),
		Readiness:   readiness,
	})

	if err := server.Auth.SeedAdmin(ctx, cfg.Sandbox.SeedAdminEmail, cfg.Sandbox.SeedAdminPassword); err != nil {
		logger.Fatal("failed to seed admin", zap.Error(err))
	}

	go func() {
		logger.Info("sandbox listening", zap.String("addr", cfg.Sandbox.Addr()))
		if err := server.App.Listen(cfg.Sandbox.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	_ = server.App.Shutdown()
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
