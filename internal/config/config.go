package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Balance strategy names accepted by BALANCE_STRATEGY.
const (
	StrategyLedger       = "ledger"
	StrategyMaterialized = "materialized"
)

// Config represents the full application configuration surface.
type Config struct {
	Server    ServerConfig
	Sheets    SheetsConfig
	Retry     RetryConfig
	Balance   BalanceConfig
	Session   SessionConfig
	Reconcile ReconcileConfig
	Alerts    AlertsConfig
	MongoDB   MongoDBConfig
}

// ServerConfig holds HTTP server related options.
type ServerConfig struct {
	Port string
}

// SheetsConfig contains configuration required to interact with the backing
// spreadsheet, including the names of the individual sheets.
type SheetsConfig struct {
	CredentialsPath   string
	SpreadsheetID     string
	ItemsSheet        string
	UsersSheet        string
	TransactionsSheet string
	CountsSheet       string
	BalancesSheet     string
}

// RetryConfig controls the exponential backoff wrapper around sheet calls.
type RetryConfig struct {
	Attempts  int
	BaseDelay time.Duration
}

// BalanceConfig selects the balance strategy and cache windows.
type BalanceConfig struct {
	Strategy     string
	CacheTTL     time.Duration // balances; the backing store is rate limited
	ReferenceTTL time.Duration // near-static items/users
}

// SessionConfig holds cookie session options.
type SessionConfig struct {
	CookieName string
	TTL        time.Duration
}

// ReconcileConfig holds the schedule of the balance repair pass.
type ReconcileConfig struct {
	CronSchedule string
}

// AlertsConfig holds the optional low-stock webhook target.
type AlertsConfig struct {
	WebhookURL string
}

// MongoDBConfig holds the optional reconciliation report archive settings.
type MongoDBConfig struct {
	URI    string
	DBName string
}

// Load reads environment variables (optionally from the provided file) and
// materializes a Config instance.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("failed loading env file %s: %w", envFile, err)
			}
		}
	} else {
		// Ignore the returned error here; missing .env files are acceptable when
		// configuration comes from the environment directly.
		_ = godotenv.Load()
	}

	cfg := &Config{
		Server: ServerConfig{
			Port: getenvWithDefault("APP_PORT", "8080"),
		},
		Sheets: SheetsConfig{
			CredentialsPath:   os.Getenv("GOOGLE_SHEETS_CREDENTIALS_PATH"),
			SpreadsheetID:     os.Getenv("SPREADSHEET_ID"),
			ItemsSheet:        getenvWithDefault("SHEET_ITEMS", "ITEMS"),
			UsersSheet:        getenvWithDefault("SHEET_USERS", "USERS"),
			TransactionsSheet: getenvWithDefault("SHEET_TRANSACTIONS", "TRANSACTIONS"),
			CountsSheet:       getenvWithDefault("SHEET_COUNTS", "COUNTS"),
			BalancesSheet:     getenvWithDefault("SHEET_BALANCES", "BALANCES"),
		},
		Retry: RetryConfig{
			Attempts:  getenvInt("SHEETS_RETRY_ATTEMPTS", 4),
			BaseDelay: time.Duration(getenvInt("SHEETS_RETRY_BASE_DELAY_MS", 250)) * time.Millisecond,
		},
		Balance: BalanceConfig{
			Strategy:     getenvWithDefault("BALANCE_STRATEGY", StrategyLedger),
			CacheTTL:     time.Duration(getenvInt("BALANCE_CACHE_TTL_SECONDS", 5)) * time.Second,
			ReferenceTTL: time.Duration(getenvInt("REFERENCE_CACHE_TTL_MINUTES", 5)) * time.Minute,
		},
		Session: SessionConfig{
			CookieName: getenvWithDefault("SESSION_COOKIE_NAME", "estoque_session"),
			TTL:        time.Duration(getenvInt("SESSION_TTL_HOURS", 12)) * time.Hour,
		},
		Reconcile: ReconcileConfig{
			CronSchedule: getenvWithDefault("RECONCILE_CRON_SCHEDULE", "0 3 * * *"),
		},
		Alerts: AlertsConfig{
			WebhookURL: os.Getenv("ALERT_WEBHOOK_URL"),
		},
		MongoDB: MongoDBConfig{
			URI:    os.Getenv("MONGODB_URI"),
			DBName: getenvWithDefault("MONGODB_DB_NAME", "estoque"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate ensures that required configuration fields are populated.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config is nil")
	}

	if c.Server.Port == "" {
		return errors.New("APP_PORT must be provided")
	}

	if c.Sheets.CredentialsPath == "" {
		return errors.New("GOOGLE_SHEETS_CREDENTIALS_PATH must be provided")
	}

	if c.Sheets.SpreadsheetID == "" {
		return errors.New("SPREADSHEET_ID must be provided")
	}

	switch c.Balance.Strategy {
	case StrategyLedger, StrategyMaterialized:
	default:
		return fmt.Errorf("BALANCE_STRATEGY must be %q or %q, got %q", StrategyLedger, StrategyMaterialized, c.Balance.Strategy)
	}

	if c.Retry.Attempts < 1 {
		return errors.New("SHEETS_RETRY_ATTEMPTS must be at least 1")
	}

	if c.Balance.CacheTTL < 0 || c.Balance.ReferenceTTL < 0 {
		return errors.New("cache TTLs must not be negative")
	}

	if c.Reconcile.CronSchedule == "" {
		return errors.New("RECONCILE_CRON_SCHEDULE must be provided")
	}

	return nil
}

func getenvWithDefault(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getenvInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}
