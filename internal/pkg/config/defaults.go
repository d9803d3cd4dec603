package config

import "time"

// Значения конфигурации по умолчанию.
const (
	// Сервер
	DefaultServerHost      = "0.0.0.0"
	DefaultServerPort      = 8080
	DefaultReadTimeout     = 10 * time.Second
	DefaultWriteTimeout    = 10 * time.Second
	DefaultIdleTimeout     = 60 * time.Second
	DefaultShutdownTimeout = 15 * time.Second
	DefaultMaxUploadSizeMB = 10
	DefaultCleanupInterval = 1 * time.Hour

	// Обработка
	DefaultTaskTimeout     = 600 * time.Second
	DefaultCacheTTL        = 60 * time.Minute
	DefaultMaxMessages     = 200_000
	DefaultMaxTotalBytesMB = 50

	// Отчет
	DefaultReportTextThreshold = 50

	// Обогащение
	DefaultEnrichmentPoolSize         = 1
	DefaultEnrichmentClientRetryPause = 1 * time.Second
	DefaultEnrichmentOperationTimeout = 5 * time.Second

	// Telegram API
	DefaultHealthCheckInterval = 30 * time.Second

	// Логирование
	DefaultLogLevel  = "info"
	DefaultLogFormat = "json"
)
