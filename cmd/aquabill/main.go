// Package main запускает HTTP-сервер сервиса aquabill.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/mmeshcher/aquabill/internal/cache"
	"github.com/mmeshcher/aquabill/internal/compliance"
	"github.com/mmeshcher/aquabill/internal/config"
	"github.com/mmeshcher/aquabill/internal/events"
	"github.com/mmeshcher/aquabill/internal/gateway"
	"github.com/mmeshcher/aquabill/internal/handler"
	"github.com/mmeshcher/aquabill/internal/middleware"
	"github.com/mmeshcher/aquabill/internal/receipt"
	"github.com/mmeshcher/aquabill/internal/repository"
	"github.com/mmeshcher/aquabill/internal/service"
)

func main() {
	_ = godotenv.Load()

	logger, _ := zap.NewProduction()
	defer logger.Sync()

	sugar := logger.Sugar()

	cfg, err := config.Parse()
	if err != nil {
		sugar.Fatalw("configuration error", "error", err.Error())
	}

	repo, err := repository.NewPostgresRepository(cfg.DatabaseURI)
	if err != nil {
		sugar.Fatalw("database initialization error", "error", err.Error())
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	opts := service.Options{
		Company: receipt.Company{
			Name:    cfg.CompanyName,
			Address: cfg.CompanyAddress,
			Contact: cfg.CompanyContact,
		},
		LegalRequirements: cfg.LegalRequirements,
		Issuer: receipt.Company{
			Name:    cfg.IssuerName,
			Address: cfg.IssuerAddress,
			Contact: cfg.IssuerContact,
		},
		IssuerLegalRequirements: cfg.IssuerLegalRequirements,
		OverdueInterval:         cfg.OverdueCheckInterval,
		Logger:                  logger,
	}

	var store *cache.Store
	if cfg.RedisAddr != "" {
		store = cache.New(cfg.RedisAddr)
		defer store.Close()

		if err := store.Ping(ctx); err != nil {
			sugar.Fatalw("redis initialization error", "error", err.Error())
		}
		opts.Idempotency = store
		sugar.Infow("redis enabled", "addr", cfg.RedisAddr)
	}

	var producer *events.Producer
	if len(cfg.KafkaBrokers) > 0 {
		producer = events.NewProducer(cfg.KafkaBrokers, "aquabill", 1024, logger)
		opts.Publisher = producer
		sugar.Infow("kafka events enabled", "brokers", cfg.KafkaBrokers, "topic", events.TopicBilling)
	}

	if cfg.PaymentGatewayAddress != "" {
		opts.Gateway = gateway.NewClient(cfg.PaymentGatewayAddress)
	} else {
		sugar.Warn("payment gateway address is not set, card payments are simulated")
	}

	if cfg.GeminiAPIKey != "" {
		composer, err := compliance.NewGenAIComposer(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
		if err != nil {
			sugar.Fatalw("genai initialization error", "error", err.Error())
		}
		opts.Composer = composer
	}

	svc := service.NewService(repo, opts)
	defer svc.Close()

	var sessions middleware.SessionStore
	if store != nil {
		sessions = store
	}
	if cfg.JWTSecret == "" {
		sugar.Warn("JWT secret is not set, sessions will not survive a restart")
	}
	authMiddleware := middleware.NewAuthMiddleware(cfg.JWTSecret, cfg.SessionTTL, sessions, svc, logger)
	h := handler.NewHandler(svc, logger, authMiddleware)

	r := h.SetupRouter()

	server := &http.Server{
		Addr:              cfg.RunAddress,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)

	// Фоновый перевод просроченных счетов
	g.Go(func() error {
		<-svc.StartOverdueUpdates(ctx)
		return nil
	})

	g.Go(func() error {
		sugar.Infow("starting aquabill server", "addr", cfg.RunAddress)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	// Graceful shutdown при отмене контекста (сигнал или ошибка в другой горутине)
	g.Go(func() error {
		<-ctx.Done()
		sugar.Info("shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown error: %w", err)
		}
		sugar.Info("server stopped gracefully")
		return nil
	})

	err = g.Wait()

	if producer != nil {
		_ = producer.Close()
	}

	if err != nil {
		sugar.Fatalw("application terminated with error", "error", err)
	}
}
