package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v2"
)

// ColumnWidths определяет ширину колонок для текстового статуса сессии.
type ColumnWidths struct {
	User int `yaml:"user"`
	Name int `yaml:"name"`
}

// BotConfig содержит конфигурацию для Telegram-бота
type BotConfig struct {
	Token                  string       `yaml:"token"`
	BackendURL             string       `yaml:"backend_url"`
	PollingIntervalSeconds int          `yaml:"polling_interval_seconds"`
	MaxFiles               int          `yaml:"max_files"`
	MaxFileSizeMB          int          `yaml:"max_file_size_mb"`
	SessionTTLMinutes      int          `yaml:"session_ttl_minutes"`
	HTTPTimeoutSeconds     int          `yaml:"http_timeout_seconds"`
	ReportTextThreshold    int          `yaml:"report_text_threshold"`
	Render                 ColumnWidths `yaml:"render"`
}

// Logging содержит конфигурацию логирования бота.
type Logging struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Config является оберткой для соответствия структуре YAML файла.
type Config struct {
	Bot     BotConfig `yaml:"bot"`
	Logging Logging   `yaml:"logging"`
}

// LoadBotConfig загружает конфигурацию бота из указанного файла.
func LoadBotConfig(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read bot config file %s: %w", filename, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal bot config: %w", err)
	}

	// Устанавливаем значения по умолчанию
	botCfg := &cfg.Bot
	if botCfg.PollingIntervalSeconds == 0 {
		botCfg.PollingIntervalSeconds = DefaultPollingIntervalSeconds
	}
	if botCfg.MaxFiles == 0 {
		botCfg.MaxFiles = DefaultMaxFiles
	}
	if botCfg.MaxFileSizeMB == 0 {
		botCfg.MaxFileSizeMB = DefaultMaxFileSizeMB
	}
	if botCfg.SessionTTLMinutes == 0 {
		botCfg.SessionTTLMinutes = DefaultSessionTTLMinutes
	}
	if botCfg.HTTPTimeoutSeconds == 0 {
		botCfg.HTTPTimeoutSeconds = DefaultHTTPTimeoutSeconds
	}
	if botCfg.ReportTextThreshold == 0 {
		botCfg.ReportTextThreshold = DefaultReportTextThreshold
	}
	if botCfg.Render.User == 0 {
		botCfg.Render.User = DefaultUserColumnWidth
	}
	if botCfg.Render.Name == 0 {
		botCfg.Render.Name = DefaultNameColumnWidth
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}

	return &cfg, nil
}

// Validate проверяет корректность конфигурации бота.
func (c *Config) Validate() error {
	if c.Bot.Token == "" || c.Bot.Token == "YOUR_TELEGRAM_BOT_TOKEN" {
		return fmt.Errorf("bot.token is not configured")
	}
	if c.Bot.BackendURL == "" {
		return fmt.Errorf("bot.backend_url cannot be empty")
	}
	if c.Bot.PollingIntervalSeconds <= 0 {
		return fmt.Errorf("bot.polling_interval_seconds must be positive")
	}
	if c.Bot.MaxFiles <= 0 {
		return fmt.Errorf("bot.max_files must be positive")
	}
	if c.Bot.MaxFileSizeMB <= 0 {
		return fmt.Errorf("bot.max_file_size_mb must be positive")
	}
	if c.Bot.SessionTTLMinutes <= 0 {
		return fmt.Errorf("bot.session_ttl_minutes must be positive")
	}
	return nil
}
