package main

import (
	"context"
	"fmt"
	"time"

	"akun/internal/cache"
	"akun/internal/config"
	"akun/internal/handlers"
	applogger "akun/internal/logger"
	"akun/internal/middleware"
	"akun/internal/notify"
	"akun/internal/repositories"
	"akun/internal/services"
	"akun/pkg/rabbitmq"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// dependencies are the external resources the application is built on.
type dependencies struct {
	db     *gorm.DB
	redis  redis.UniversalClient
	broker notify.Broker
	mailer notify.Mailer
}

// newBroker returns the job queue selected by QUEUE_DRIVER.
func newBroker(cfg *config.Config, log *zap.Logger) (notify.Broker, error) {
	switch cfg.QueueDriver {
	case "amqp":
		client, err := rabbitmq.NewClient(rabbitmq.Config{URL: cfg.RabbitMQURL, Queue: cfg.EmailQueue})
		if err != nil {
			return nil, err
		}
		return client, nil
	case "memory":
		return notify.NewChannelBroker(256, cfg.WorkerConcurrency, applogger.WithComponent(log, "broker")), nil
	default:
		return nil, fmt.Errorf("unsupported queue driver %q", cfg.QueueDriver)
	}
}

// newApp wires repositories, services and handlers into a Fiber app and
// starts the email worker on the broker.
func newApp(cfg *config.Config, log *zap.Logger, deps dependencies) (*fiber.App, error) {
	redisCache := cache.NewRedisCache(deps.redis)

	// --- Notification pipeline ---
	taskStore := notify.NewCacheTaskStore(redisCache, cfg.TaskResultTTL)
	worker := notify.NewWorker(taskStore, deps.mailer, cfg.MailRetryBase, applogger.WithComponent(log, "worker"))
	if err := deps.broker.Consume(worker.Handle); err != nil {
		return nil, fmt.Errorf("failed to start email worker: %w", err)
	}
	dispatcher := notify.NewDispatcher(deps.broker, taskStore, applogger.WithComponent(log, "dispatcher"))

	// --- Repositories ---
	userRepo := repositories.NewGORMUserRepository(deps.db)
	codeRepo := repositories.NewGORMVerificationCodeRepository(deps.db)

	// --- Services ---
	serviceLog := applogger.WithComponent(log, "service")
	verificationService := services.NewVerificationService(
		codeRepo,
		cache.NewCodeCache(redisCache, cfg.CodeCacheTTL),
		dispatcher,
		cfg.CodeTTL,
		cfg.CodeCooldown,
		serviceLog,
	)
	authService := services.NewAuthService(userRepo, cfg.JWTSecret, cfg.AccessTokenTTL, cfg.BcryptCost, serviceLog)
	accountService := services.NewAccountService(userRepo, verificationService, authService, serviceLog)

	// --- Fiber App ---
	httpLog := applogger.WithComponent(log, "http")
	app := fiber.New(fiber.Config{
		AppName:      "akun",
		ErrorHandler: handlers.ErrorHandler(httpLog),
	})
	app.Use(recover.New())
	app.Use(logger.New())

	// --- Routes ---
	requireAuth := middleware.AuthRequired(authService, httpLog)
	handlers.NewAuthHandler(authService, verificationService, accountService, httpLog).RegisterRoutes(app, requireAuth)
	handlers.NewUserHandler(accountService, httpLog).RegisterRoutes(app, requireAuth)
	handlers.NewTaskHandler(dispatcher, httpLog).RegisterRoutes(app)

	// --- Health Check Endpoint ---
	app.Get("/health", func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
		defer cancel()

		status, code := "healthy", fiber.StatusOK
		database, cacheState := "up", "up"
		if sqlDB, err := deps.db.DB(); err != nil || sqlDB.PingContext(ctx) != nil {
			database, status, code = "down", "unhealthy", fiber.StatusServiceUnavailable
		}
		if err := deps.redis.Ping(ctx).Err(); err != nil {
			cacheState, status, code = "down", "unhealthy", fiber.StatusServiceUnavailable
		}
		return c.Status(code).JSON(fiber.Map{
			"status":   status,
			"time":     time.Now().Format(time.RFC3339),
			"database": database,
			"redis":    cacheState,
		})
	})

	return app, nil
}
