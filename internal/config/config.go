package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// Store backends.
const (
	BackendSQLite = "sqlite"
	BackendSheets = "sheets"
	BackendMemory = "memory"
)

type Config struct {
	TelegramToken string  `env:"TELEGRAM_BOT_TOKEN" yaml:"-"`
	AdminTGIDs    []int64 `env:"ADMIN_TG_IDS" envSeparator:"," yaml:"admin_tg_ids"`

	StoreBackend string `env:"STORE_BACKEND" yaml:"store_backend"`
	SQLitePath   string `env:"SQLITE_PATH" yaml:"sqlite_path"`

	SpreadsheetID            string `env:"GOOGLE_SHEETS_SPREADSHEET_ID" yaml:"spreadsheet_id"`
	GoogleServiceAccountJSON string `env:"GOOGLE_SERVICE_ACCOUNT_JSON" yaml:"google_service_account_json"`

	PaymentProvider      string `env:"PAYMENT_PROVIDER" yaml:"payment_provider"`
	PaymentWebhookSecret string `env:"PAYMENT_WEBHOOK_SECRET" yaml:"-"`

	HTTPAddr      string `env:"HTTP_ADDR" yaml:"http_addr"`
	BasePublicURL string `env:"BASE_PUBLIC_URL" yaml:"base_public_url"`

	Weather Weather `envPrefix:"WEATHER_" yaml:"weather"`

	LogLevel string `env:"LOG_LEVEL" yaml:"log_level"`
}

type Weather struct {
	ServiceKey      string        `env:"SERVICE_KEY" yaml:"-"`
	BaseURL         string        `env:"BASE_URL" yaml:"base_url"`
	NX              int           `env:"GRID_NX" yaml:"grid_nx"`
	NY              int           `env:"GRID_NY" yaml:"grid_ny"`
	Timeout         time.Duration `env:"TIMEOUT" yaml:"timeout"`
	RefreshInterval time.Duration `env:"REFRESH_INTERVAL" yaml:"refresh_interval"`
}

// Load builds the configuration: the optional YAML file named by
// CONFIG_FILE first, then environment variables on top, then defaults.
// Secrets are read from the environment only.
func Load() (Config, error) {
	var c Config
	if path := strings.TrimSpace(os.Getenv("CONFIG_FILE")); path != "" {
		if err := loadFile(path, &c); err != nil {
			return c, err
		}
	}
	if err := env.Parse(&c); err != nil {
		return c, fmt.Errorf("parse env: %w", err)
	}
	c.applyDefaults()
	return c, c.Validate()
}

func loadFile(path string, c *Config) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(b, c); err != nil {
		return fmt.Errorf("parse yaml: %w", err)
	}
	return nil
}

func (c *Config) applyDefaults() {
	c.TelegramToken = strings.TrimSpace(c.TelegramToken)
	c.StoreBackend = strings.ToLower(strings.TrimSpace(c.StoreBackend))
	if c.StoreBackend == "" {
		c.StoreBackend = BackendSQLite
	}
	if c.SQLitePath == "" {
		c.SQLitePath = "club-events.db"
	}
	if c.PaymentProvider == "" {
		c.PaymentProvider = "stub"
	}
	if c.PaymentWebhookSecret == "" {
		c.PaymentWebhookSecret = "change-me"
	}
	if c.HTTPAddr == "" {
		c.HTTPAddr = ":8080"
	}
	c.BasePublicURL = strings.TrimRight(strings.TrimSpace(c.BasePublicURL), "/")

	// Seoul city hall grid by default.
	if c.Weather.NX == 0 && c.Weather.NY == 0 {
		c.Weather.NX, c.Weather.NY = 60, 127
	}
	if c.Weather.Timeout == 0 {
		c.Weather.Timeout = 5 * time.Second
	}
	if c.Weather.RefreshInterval == 0 {
		c.Weather.RefreshInterval = time.Hour
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
}

// Validate reports settings the selected backend cannot run without.
func (c Config) Validate() error {
	switch c.StoreBackend {
	case BackendSQLite, BackendMemory:
	case BackendSheets:
		if c.SpreadsheetID == "" {
			return fmt.Errorf("GOOGLE_SHEETS_SPREADSHEET_ID is empty")
		}
		if c.GoogleServiceAccountJSON == "" {
			return fmt.Errorf("GOOGLE_SERVICE_ACCOUNT_JSON is empty")
		}
	default:
		return fmt.Errorf("unknown store backend: %s", c.StoreBackend)
	}
	return nil
}

// IsAdmin reports whether tgID is listed in ADMIN_TG_IDS.
func (c Config) IsAdmin(tgID int64) bool {
	for _, id := range c.AdminTGIDs {
		if id == tgID {
			return true
		}
	}
	return false
}

// WeatherConfigured reports whether a weather credential is present.
func (c Config) WeatherConfigured() bool {
	return strings.TrimSpace(c.Weather.ServiceKey) != ""
}

// SlogLevel maps LOG_LEVEL onto a slog level.
func (c Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
