package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"audience-bot/internal/adapters/exporter"
	"audience-bot/internal/adapters/parser"
	"audience-bot/internal/cache"
	"audience-bot/internal/core/services"
	"audience-bot/internal/pkg/config"
	"audience-bot/internal/ports"
	"audience-bot/internal/server"
	"audience-bot/internal/server/usecase"
	"audience-bot/internal/storage"
	"audience-bot/internal/telegram/router"
)

func main() {
	if err := run(); err != nil {
		slog.Error("application run failed", "error", err)
		os.Exit(1)
	}
}

// run инкапсулирует всю логику инициализации и запуска приложения.
func run() error {
	// 1. Загрузка конфигурации
	cfg, err := config.LoadConfig()
	if err != nil {
		// Логгер еще не инициализирован, выводим в stderr
		_, _ = fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// 2. Инициализация логгера
	var level slog.Level
	switch cfg.Logging.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	var handler slog.Handler
	switch cfg.Logging.Format {
	case "text":
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	default:
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	}
	logger := slog.New(handler)
	slog.SetDefault(logger)

	// 3. Валидация конфигурации (после инициализации логгера)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}

	appCtx, appCancel := context.WithCancel(context.Background())
	defer appCancel()

	// 4. Опциональный стек обогащения: роутер клиентов Telegram и сервис
	var tgRouter *router.Router
	var enricher ports.Enricher
	if cfg.Enrichment.Enabled {
		tgRouter, err = router.NewRouter(appCtx,
			router.WithServerConfigs(cfg.TelegramAPI.Servers),
			router.WithHealthCheckInterval(time.Duration(cfg.TelegramAPI.HealthCheckIntervalSeconds)*time.Second),
		)
		if err != nil {
			return fmt.Errorf("failed to create telegram router: %w", err)
		}

		enricher = services.NewEnrichmentService(tgRouter,
			services.WithPoolSize(cfg.Enrichment.PoolSize),
			services.WithClientRetryPause(time.Duration(cfg.Enrichment.ClientRetryPauseSeconds)*time.Second),
			services.WithOperationTimeout(time.Duration(cfg.Enrichment.OperationTimeoutSeconds)*time.Second),
		)
	}

	// 5. Инициализация зависимостей пайплайна
	taskStore := server.NewTaskStore()
	cacheStore := cache.NewCacheStore()
	tempStore, err := storage.NewDiskStorage("")
	if err != nil {
		return fmt.Errorf("failed to create temp storage: %w", err)
	}

	parserSvc := parser.NewMultiFormatParser()
	extractorSvc := services.NewExtractionService()
	reporterSvc := services.NewReportingService(services.ReportPolicy{
		Threshold:  cfg.Report.TextThreshold,
		ForceExcel: cfg.Report.ForceExcel,
	}, exporter.NewExcelRenderer())

	processor := usecase.NewProcessChatUseCase(cfg, parserSvc, extractorSvc, reporterSvc, enricher, cacheStore, logger)

	// 6. Создание HTTP-сервера
	srv, err := server.New(cfg, processor, taskStore, cacheStore, tempStore)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	// 7. Запуск сервера и graceful shutdown
	serverDone := make(chan struct{})
	go func() {
		defer close(serverDone)
		slog.Info("Starting server", "addr", cfg.Address())
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("Server error", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("Signal received, shutting down...")

	// Сначала отменяем контекст приложения, чтобы остановить фоновые
	// процессы (клиенты Telegram).
	appCancel()
	slog.Info("Application context canceled, waiting for background services to stop...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), time.Duration(cfg.Server.ShutdownTimeoutSeconds)*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
	}

	<-serverDone
	slog.Info("HTTP server stopped")

	if tgRouter != nil {
		tgRouter.Stop()
	}

	slog.Info("Application exited gracefully")
	return nil
}
