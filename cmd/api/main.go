package main

import (
	"context"
	"fmt"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/sendbridge/core/internal/classify"
	"github.com/sendbridge/core/internal/config"
	"github.com/sendbridge/core/internal/escalate"
	"github.com/sendbridge/core/internal/handler"
	"github.com/sendbridge/core/internal/infra/postgresql"
	"github.com/sendbridge/core/internal/infra/postgresql/migrations"
	infraredis "github.com/sendbridge/core/internal/infra/redis"
	"github.com/sendbridge/core/internal/observability"
	"github.com/sendbridge/core/internal/provider"
	"github.com/sendbridge/core/internal/queue"
	"github.com/sendbridge/core/internal/repository"
	"github.com/sendbridge/core/internal/routing"
	"github.com/sendbridge/core/internal/service"
	"github.com/sendbridge/core/internal/transport"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.LogLevel)
	if err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	if err := run(cfg, logger); err != nil {
		logger.Fatal("api terminated", zap.Error(err))
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := postgresql.NewPostgres(cfg.DatabaseDSN)
	if err != nil {
		return fmt.Errorf("postgres initialization failed: %w", err)
	}
	if err := migrations.Migrate(db); err != nil {
		return fmt.Errorf("database migrations failed: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("postgres underlying db init failed: %w", err)
	}
	defer sqlDB.Close()

	rdb, err := infraredis.NewRedis(cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("redis initialization failed: %w", err)
	}
	defer rdb.Close()

	broker, err := queue.NewRabbitMQ(cfg.RabbitMQURL)
	if err != nil {
		return fmt.Errorf("rabbitmq initialization failed: %w", err)
	}
	defer broker.Close()

	metrics := observability.NewMetrics()

	idem, err := infraredis.NewIdempotencyManager(rdb, cfg.IdempotencyFailOpen, logger)
	if err != nil {
		return fmt.Errorf("idempotency manager init failed: %w", err)
	}
	idem.SetDegradeHook(metrics.IncCacheUnavailable)

	limiter, err := infraredis.NewSlidingLimiter(rdb)
	if err != nil {
		return fmt.Errorf("rate limiter init failed: %w", err)
	}

	registry, err := buildProviderRegistry(cfg)
	if err != nil {
		return fmt.Errorf("provider registry init failed: %w", err)
	}

	escalator, err := buildEscalator(cfg, logger)
	if err != nil {
		return fmt.Errorf("escalator init failed: %w", err)
	}
	if escalator != nil {
		escalator.SetResultHook(metrics.IncEscalation)
	}

	transactionRepo := repository.NewGormTransactionRepo(db)
	publisher := queue.NewRabbitMQPublisher(broker)

	dispatcher, err := service.NewDispatcher(
		repository.NewGormCustomerRepo(db),
		transactionRepo,
		repository.NewGormProviderErrorRepo(db),
		idem,
		limiter,
		routing.NewRouter(),
		registry,
		classify.NewTableClassifier(),
		escalator,
		publisher,
		logger,
	)
	if err != nil {
		return fmt.Errorf("dispatcher init failed: %w", err)
	}
	dispatcher.SetMetrics(metrics)

	app := fiber.New(fiber.Config{
		ErrorHandler:          transport.ErrorHandler(logger),
		DisableStartupMessage: true,
	})
	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(metrics.HTTPMiddleware())

	handler.RegisterHealthRoutes(app, sqlDB, rdb, broker)
	app.Get("/metrics", adaptor.HTTPHandler(metrics.Handler()))
	if err := handler.RegisterDispatchRoutes(app, dispatcher, transactionRepo); err != nil {
		return fmt.Errorf("route registration failed: %w", err)
	}

	worker := service.NewWebhookWorker(
		queue.NewRabbitMQConsumer(broker, cfg.WebhookConcurrency, logger),
		cfg.WebhookConcurrency,
		logger,
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("api listening", zap.Int("port", cfg.APIPort))
		return app.Listen(fmt.Sprintf(":%d", cfg.APIPort))
	})
	g.Go(func() error {
		return worker.Run(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		return app.ShutdownWithTimeout(shutdownTimeout)
	})

	if err := g.Wait(); err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}

func buildProviderRegistry(cfg *config.Config) (*provider.Registry, error) {
	timeout := time.Duration(cfg.ProviderTimeoutSeconds) * time.Second

	specs := []struct {
		name, url, key string
	}{
		{routing.ProviderSavanna, cfg.SavannaURL, cfg.SavannaAPIKey},
		{routing.ProviderNexora, cfg.NexoraURL, cfg.NexoraAPIKey},
		{routing.ProviderMailbridge, cfg.MailbridgeURL, cfg.MailbridgeKey},
		{routing.ProviderTopupgo, cfg.TopupgoURL, cfg.TopupgoAPIKey},
		{routing.ProviderAirtouch, cfg.AirtouchURL, cfg.AirtouchKey},
	}

	providers := make([]provider.Provider, 0, len(specs))
	for _, s := range specs {
		p, err := provider.NewHTTPProvider(s.name, s.url, s.key, timeout)
		if err != nil {
			return nil, fmt.Errorf("provider %q: %w", s.name, err)
		}
		providers = append(providers, p)
	}

	return provider.NewRegistry(providers...), nil
}

// buildEscalator wires the operator alert channels. Alerting is optional:
// with no channels configured, escalations are logged only.
func buildEscalator(cfg *config.Config, logger *zap.Logger) (*escalate.Escalator, error) {
	timeout := time.Duration(cfg.ProviderTimeoutSeconds) * time.Second

	var sms, email provider.Provider
	if cfg.AlertSMSURL != "" {
		p, err := provider.NewHTTPProvider("alert-sms", cfg.AlertSMSURL, cfg.AlertSMSAPIKey, timeout)
		if err != nil {
			return nil, fmt.Errorf("alert sms channel: %w", err)
		}
		sms = p
	}
	if cfg.AlertEmailURL != "" {
		p, err := provider.NewHTTPProvider("alert-email", cfg.AlertEmailURL, cfg.AlertEmailKey, timeout)
		if err != nil {
			return nil, fmt.Errorf("alert email channel: %w", err)
		}
		email = p
	}

	return escalate.NewEscalator(sms, email, cfg.AlertPhone, cfg.AlertEmail, logger), nil
}
