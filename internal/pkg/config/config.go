// Package config предоставляет управление конфигурацией бэкенд-сервера
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v2"
)

// Server содержит конфигурацию HTTP-сервера
type Server struct {
	Host                   string `yaml:"host"`
	Port                   int    `yaml:"port"`
	ShutdownTimeoutSeconds int    `yaml:"shutdown_timeout_seconds"`
	MaxUploadSizeMB        int    `yaml:"max_upload_size_mb"`
}

// Processing содержит конфигурацию пайплайна обработки
type Processing struct {
	// TaskTimeoutSeconds — бюджет времени на одну задачу; 0 — без ограничений.
	TaskTimeoutSeconds int `yaml:"task_timeout_seconds"`
	CacheTTLMinutes    int `yaml:"cache_ttl_minutes"`
	MaxMessages        int `yaml:"max_messages"`
	MaxTotalBytesMB    int `yaml:"max_total_bytes_mb"`
}

// Report содержит конфигурацию выбора формата отчета
type Report struct {
	// TextThreshold — порог числа участников: строго большее значение
	// переключает доставку с текста на Excel.
	TextThreshold int  `yaml:"text_threshold"`
	ForceExcel    bool `yaml:"force_excel"`
}

// TelegramAPIServer содержит конфигурацию одного сервера Telegram API
type TelegramAPIServer struct {
	APIID       int    `yaml:"api_id"`
	APIHash     string `yaml:"api_hash"`
	PhoneNumber string `yaml:"phone_number"`
	SessionFile string `yaml:"session_file"`
}

// TelegramAPI содержит конфигурацию Telegram API для обогащения
type TelegramAPI struct {
	Servers                    []TelegramAPIServer `yaml:"servers"`
	HealthCheckIntervalSeconds int                 `yaml:"health_check_interval_seconds"`
}

// Enrichment содержит конфигурацию сервиса обогащения профилей
type Enrichment struct {
	Enabled                 bool `yaml:"enabled"`
	PoolSize                int  `yaml:"pool_size"`
	ClientRetryPauseSeconds int  `yaml:"client_retry_pause_seconds"`
	OperationTimeoutSeconds int  `yaml:"operation_timeout_seconds"`
}

// Logging содержит конфигурацию логирования
type Logging struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, text
}

// Config содержит конфигурацию приложения
type Config struct {
	Server      Server      `yaml:"server"`
	Processing  Processing  `yaml:"processing"`
	Report      Report      `yaml:"report"`
	TelegramAPI TelegramAPI `yaml:"telegram_api"`
	Enrichment  Enrichment  `yaml:"enrichment"`
	Logging     Logging     `yaml:"logging"`
}

// LoadConfig загружает конфигурацию приложения из config.yml,
// переменных окружения или .env файла
func LoadConfig() (*Config, error) {
	// Загрузка переменных окружения из .env файла, если он существует
	if err := godotenv.Load(); err != nil {
		// Отсутствие .env не ошибка: полагаемся на окружение или config.yml
	}

	cfg, err := loadFromYAML("config.yml")
	if err != nil {
		// Если YAML недоступен, собираем конфигурацию из окружения
		cfg = loadFromEnv()
	}

	cfg.applyDefaults()
	return cfg, nil
}

// loadFromYAML загружает конфигурацию из YAML-файла
func loadFromYAML(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("не удалось прочитать файл конфигурации %s: %w", filename, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("не удалось разобрать YAML конфигурацию: %w", err)
	}

	return &cfg, nil
}

// loadFromEnv загружает конфигурацию из переменных окружения
func loadFromEnv() *Config {
	return &Config{
		Server: Server{
			Host:            getEnv("SERVER_HOST", DefaultServerHost),
			Port:            getEnvInt("SERVER_PORT", DefaultServerPort),
			MaxUploadSizeMB: getEnvInt("MAX_UPLOAD_SIZE_MB", DefaultMaxUploadSizeMB),
		},
		Processing: Processing{
			TaskTimeoutSeconds: getEnvInt("TASK_TIMEOUT_SECONDS", int(DefaultTaskTimeout/time.Second)),
			CacheTTLMinutes:    getEnvInt("CACHE_TTL_MINUTES", int(DefaultCacheTTL/time.Minute)),
			MaxMessages:        getEnvInt("MAX_MESSAGES", DefaultMaxMessages),
			MaxTotalBytesMB:    getEnvInt("MAX_TOTAL_BYTES_MB", DefaultMaxTotalBytesMB),
		},
		Report: Report{
			TextThreshold: getEnvInt("REPORT_TEXT_THRESHOLD", DefaultReportTextThreshold),
			ForceExcel:    getEnv("REPORT_FORCE_EXCEL", "") == "true",
		},
	}
}

// applyDefaults заполняет нулевые поля значениями по умолчанию
func (c *Config) applyDefaults() {
	if c.Server.Host == "" {
		c.Server.Host = DefaultServerHost
	}
	if c.Server.Port == 0 {
		c.Server.Port = DefaultServerPort
	}
	if c.Server.ShutdownTimeoutSeconds == 0 {
		c.Server.ShutdownTimeoutSeconds = int(DefaultShutdownTimeout / time.Second)
	}
	if c.Server.MaxUploadSizeMB == 0 {
		c.Server.MaxUploadSizeMB = DefaultMaxUploadSizeMB
	}
	if c.Processing.CacheTTLMinutes == 0 {
		c.Processing.CacheTTLMinutes = int(DefaultCacheTTL / time.Minute)
	}
	if c.Processing.MaxMessages == 0 {
		c.Processing.MaxMessages = DefaultMaxMessages
	}
	if c.Processing.MaxTotalBytesMB == 0 {
		c.Processing.MaxTotalBytesMB = DefaultMaxTotalBytesMB
	}
	if c.Report.TextThreshold == 0 {
		c.Report.TextThreshold = DefaultReportTextThreshold
	}
	if c.TelegramAPI.HealthCheckIntervalSeconds == 0 {
		c.TelegramAPI.HealthCheckIntervalSeconds = int(DefaultHealthCheckInterval / time.Second)
	}
	if c.Enrichment.PoolSize == 0 {
		c.Enrichment.PoolSize = DefaultEnrichmentPoolSize
	}
	if c.Enrichment.ClientRetryPauseSeconds == 0 {
		c.Enrichment.ClientRetryPauseSeconds = int(DefaultEnrichmentClientRetryPause / time.Second)
	}
	if c.Enrichment.OperationTimeoutSeconds == 0 {
		c.Enrichment.OperationTimeoutSeconds = int(DefaultEnrichmentOperationTimeout / time.Second)
	}
	if c.Logging.Level == "" {
		c.Logging.Level = DefaultLogLevel
	}
	if c.Logging.Format == "" {
		c.Logging.Format = DefaultLogFormat
	}
}

// Address возвращает адрес сервера в формате "host:port"
func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// TaskTimeout возвращает бюджет времени задачи; 0 — без ограничений.
func (c *Config) TaskTimeout() time.Duration {
	return time.Duration(c.Processing.TaskTimeoutSeconds) * time.Second
}

// CacheTTL возвращает срок жизни записей кэша результатов.
func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.Processing.CacheTTLMinutes) * time.Minute
}

// MaxTotalBytes возвращает лимит суммарного размера входных файлов.
func (c *Config) MaxTotalBytes() int {
	return c.Processing.MaxTotalBytesMB << 20
}

// Validate проверяет, являются ли значения конфигурации допустимыми
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port должен быть действительным номером порта (1-65535)")
	}
	if c.Server.ShutdownTimeoutSeconds <= 0 {
		return fmt.Errorf("server.shutdown_timeout_seconds должно быть положительным")
	}
	if c.Server.MaxUploadSizeMB <= 0 {
		return fmt.Errorf("server.max_upload_size_mb должно быть положительным")
	}

	if c.Processing.TaskTimeoutSeconds < 0 {
		return fmt.Errorf("processing.task_timeout_seconds должно быть неотрицательным (0 для отсутствия ограничений)")
	}
	if c.Processing.CacheTTLMinutes <= 0 {
		return fmt.Errorf("processing.cache_ttl_minutes должно быть положительным целым числом")
	}
	if c.Processing.MaxMessages <= 0 {
		return fmt.Errorf("processing.max_messages должно быть положительным")
	}
	if c.Processing.MaxTotalBytesMB <= 0 {
		return fmt.Errorf("processing.max_total_bytes_mb должно быть положительным")
	}

	if c.Report.TextThreshold <= 0 {
		return fmt.Errorf("report.text_threshold должно быть положительным")
	}

	// Секции Telegram API и обогащения проверяются только когда обогащение включено
	if c.Enrichment.Enabled {
		if len(c.TelegramAPI.Servers) == 0 {
			return fmt.Errorf("enrichment включено, но конфигурация telegram_api.servers пуста")
		}
		for i, s := range c.TelegramAPI.Servers {
			if s.APIID <= 0 {
				return fmt.Errorf("telegram_api.servers[%d].api_id должно быть положительным целым числом", i)
			}
			if s.APIHash == "" {
				return fmt.Errorf("telegram_api.servers[%d].api_hash не может быть пустым", i)
			}
			if s.PhoneNumber == "" {
				return fmt.Errorf("telegram_api.servers[%d].phone_number не может быть пустым", i)
			}
		}
		if c.TelegramAPI.HealthCheckIntervalSeconds <= 0 {
			return fmt.Errorf("telegram_api.health_check_interval_seconds должно быть положительным")
		}
		if c.Enrichment.PoolSize <= 0 {
			return fmt.Errorf("enrichment.pool_size должно быть положительным")
		}
		if c.Enrichment.ClientRetryPauseSeconds <= 0 {
			return fmt.Errorf("enrichment.client_retry_pause_seconds должно быть положительным")
		}
	}

	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
		// all good
	default:
		return fmt.Errorf("logging.level должен быть одним из: debug, info, warn, error")
	}

	return nil
}

// getEnv извлекает значение переменной окружения или возвращает значение по умолчанию
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt извлекает целочисленное значение переменной окружения
func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return parsed
}
