package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"akun/internal/config"
	applogger "akun/internal/logger"
	"akun/internal/notify"
	"akun/internal/repositories"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

func main() {
	// --- Configuration ---
	// Settings come from defaults overridden by environment variables.
	cfg, err := config.Load(viper.New())
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	logger := applogger.New(cfg.LogLevel, cfg.AppEnv)
	defer logger.Sync()

	// --- Database ---
	db, err := repositories.OpenDatabase(cfg.DBDriver, cfg.DatabaseDSN)
	if err != nil {
		logger.Fatal("failed to open database", zap.Error(err))
	}
	if err := repositories.Migrate(db); err != nil {
		logger.Fatal("failed to migrate database", zap.Error(err))
	}
	sqlDB, err := db.DB()
	if err != nil {
		logger.Fatal("failed to access database pool", zap.Error(err))
	}
	defer sqlDB.Close()

	// --- Redis ---
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	defer redisClient.Close()
	pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	if err := redisClient.Ping(pingCtx).Err(); err != nil {
		cancel()
		logger.Fatal("failed to connect to redis", zap.String("addr", cfg.RedisAddr), zap.Error(err))
	}
	cancel()

	// --- Queue ---
	broker, err := newBroker(cfg, logger)
	if err != nil {
		logger.Fatal("failed to initialize email queue", zap.String("driver", cfg.QueueDriver), zap.Error(err))
	}

	mailer := notify.NewSMTPMailer(notify.SMTPConfig{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUsername,
		Password: cfg.SMTPPassword,
		From:     cfg.SMTPFrom,
	})

	app, err := newApp(cfg, logger, dependencies{
		db:     db,
		redis:  redisClient,
		broker: broker,
		mailer: mailer,
	})
	if err != nil {
		logger.Fatal("failed to build application", zap.Error(err))
	}

	// --- Start HTTP Server ---
	logger.Info("starting server", zap.String("addr", cfg.AppPort), zap.String("env", cfg.AppEnv))

	// Graceful shutdown handling
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		if err := app.Listen(cfg.AppPort); err != nil {
			logger.Fatal("server failed to start", zap.Error(err))
		}
	}()

	// Wait for interrupt signal to gracefully shut down the server
	<-quit
	logger.Info("shutting down server")

	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		logger.Error("error during fiber shutdown", zap.Error(err))
	}
	// Closing the broker drains the in-memory workers.
	if err := broker.Close(); err != nil {
		logger.Error("error closing email queue", zap.Error(err))
	}

	logger.Info("server gracefully stopped")
}
