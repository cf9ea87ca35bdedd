package config

import (
	"fmt"
	"net/url"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"
)

// MinSessionSecretLength matches the HMAC key size of HS256.
const MinSessionSecretLength = 32

type Config struct {
	// HTTP Server
	Port string

	// Logging
	LogLevel  string
	LogFormat string

	// Record source
	DataBackend string
	DataDir     string

	// Google Sheets
	GoogleSpreadsheetID      string
	GoogleServiceAccountFile string
	GoogleServiceAccountJSON string
	ExpensesSheetName        string
	InvestmentsSheetName     string
	SpreadsheetURL           string

	// Refresh
	SourceTimeout   time.Duration
	RefreshRetries  int
	RefreshBackoff  time.Duration
	RefreshInterval time.Duration

	// Identity
	IdentityBackend        string
	SQLiteDBPath           string
	BootstrapUsersFile     string
	BootstrapAdminUsername string
	BootstrapAdminPassword string

	// Sessions
	SessionSecret       string
	SessionSecretFile   string
	SessionCookieSecure bool
	SessionMaxAge       time.Duration

	// AMQP
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Charts
	ChartFontFile  string
	ChartCacheSize int
}

func Load() *Config {
	cfg := &Config{
		Port:      getEnv("PORT", "8081"),
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "text"),

		DataBackend: getEnv("DATA_BACKEND", "memory"),
		DataDir:     getEnv("DATA_DIR", "data"),

		GoogleSpreadsheetID:      getEnv("GOOGLE_SPREADSHEET_ID", ""),
		GoogleServiceAccountFile: getEnv("GOOGLE_SERVICE_ACCOUNT_FILE", getEnv("GOOGLE_APPLICATION_CREDENTIALS", "")),
		GoogleServiceAccountJSON: getEnv("GOOGLE_SERVICE_ACCOUNT_JSON", ""),
		ExpensesSheetName:        getEnv("EXPENSES_SHEET_NAME", "Expenses"),
		InvestmentsSheetName:     getEnv("INVESTMENTS_SHEET_NAME", "Mutual Funds and Investments"),
		SpreadsheetURL:           getEnv("SPREADSHEET_URL", ""),

		SourceTimeout:   getEnvDuration("SOURCE_TIMEOUT", 15*time.Second),
		RefreshRetries:  getEnvInt("REFRESH_RETRIES", 3),
		RefreshBackoff:  getEnvDuration("REFRESH_BACKOFF", 500*time.Millisecond),
		RefreshInterval: getEnvDuration("REFRESH_INTERVAL", 0),

		IdentityBackend:        getEnv("IDENTITY_BACKEND", "memory"),
		SQLiteDBPath:           getEnv("SQLITE_DB_PATH", "./data/spendboard.db"),
		BootstrapUsersFile:     getEnv("BOOTSTRAP_USERS_FILE", ""),
		BootstrapAdminUsername: getEnv("BOOTSTRAP_ADMIN_USERNAME", ""),
		BootstrapAdminPassword: getEnv("BOOTSTRAP_ADMIN_PASSWORD", ""),

		SessionSecret:       getEnv("SESSION_SECRET", ""),
		SessionSecretFile:   getEnv("SESSION_SECRET_FILE", ""),
		SessionCookieSecure: getEnvBool("SESSION_COOKIE_SECURE", false),
		SessionMaxAge:       getEnvDuration("SESSION_MAX_AGE", 0),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "spendboard"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "refresh_requests"),

		ChartFontFile:  getEnv("CHART_FONT_FILE", ""),
		ChartCacheSize: getEnvInt("CHART_CACHE_SIZE", 64),
	}

	if cfg.SpreadsheetURL == "" && cfg.GoogleSpreadsheetID != "" {
		cfg.SpreadsheetURL = "https://docs.google.com/spreadsheets/d/" + url.PathEscape(cfg.GoogleSpreadsheetID)
	}

	return cfg
}

// SessionKey returns the session signing key, read from SESSION_SECRET_FILE
// when SESSION_SECRET is unset. Surrounding whitespace in the file is ignored.
func (c *Config) SessionKey() ([]byte, error) {
	if c.SessionSecret != "" {
		return []byte(c.SessionSecret), nil
	}
	if c.SessionSecretFile == "" {
		return nil, fmt.Errorf("SESSION_SECRET or SESSION_SECRET_FILE is required")
	}
	b, err := os.ReadFile(c.SessionSecretFile)
	if err != nil {
		return nil, fmt.Errorf("read session secret file: %w", err)
	}
	return []byte(strings.TrimSpace(string(b))), nil
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	validLevels := []string{"debug", "info", "warn", "warning", "error"}
	if !slices.Contains(validLevels, strings.ToLower(c.LogLevel)) {
		errors = append(errors, fmt.Sprintf("invalid log level '%s': must be one of %v", c.LogLevel, validLevels[:4]))
	}
	validFormats := []string{"text", "json"}
	if !slices.Contains(validFormats, strings.ToLower(c.LogFormat)) {
		errors = append(errors, fmt.Sprintf("invalid log format '%s': must be one of %v", c.LogFormat, validFormats))
	}

	validBackends := []string{"memory", "sheets"}
	if !slices.Contains(validBackends, c.DataBackend) {
		errors = append(errors, fmt.Sprintf("invalid data backend '%s': must be one of %v", c.DataBackend, validBackends))
	}

	if c.DataBackend == "sheets" {
		if c.GoogleSpreadsheetID == "" {
			errors = append(errors, "Google Spreadsheet ID is required when using sheets backend")
		}
		hasFile := c.GoogleServiceAccountFile != ""
		hasJSON := c.GoogleServiceAccountJSON != ""
		if !hasFile && !hasJSON {
			errors = append(errors, "one of GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE or GOOGLE_APPLICATION_CREDENTIALS must be provided for sheets backend")
		}
		if hasFile && !hasJSON {
			if _, err := os.Stat(c.GoogleServiceAccountFile); os.IsNotExist(err) {
				errors = append(errors, fmt.Sprintf("Google service account file does not exist: %s", c.GoogleServiceAccountFile))
			}
		}
	}
	if strings.TrimSpace(c.ExpensesSheetName) == "" {
		errors = append(errors, "expenses sheet name cannot be empty")
	}
	if strings.TrimSpace(c.InvestmentsSheetName) == "" {
		errors = append(errors, "investments sheet name cannot be empty")
	}

	if c.SourceTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("invalid source timeout %v: must be positive", c.SourceTimeout))
	}
	if c.RefreshRetries < 0 || c.RefreshRetries > 10 {
		errors = append(errors, fmt.Sprintf("invalid refresh retries %d: must be between 0 and 10", c.RefreshRetries))
	}
	if c.RefreshBackoff <= 0 {
		errors = append(errors, fmt.Sprintf("invalid refresh backoff %v: must be positive", c.RefreshBackoff))
	}
	if c.RefreshInterval != 0 && c.RefreshInterval < 10*time.Second {
		errors = append(errors, fmt.Sprintf("invalid refresh interval %v: must be 0 (off) or at least 10 seconds", c.RefreshInterval))
	}

	validIdentity := []string{"memory", "sqlite"}
	if !slices.Contains(validIdentity, c.IdentityBackend) {
		errors = append(errors, fmt.Sprintf("invalid identity backend '%s': must be one of %v", c.IdentityBackend, validIdentity))
	}
	if c.IdentityBackend == "sqlite" && c.SQLiteDBPath == "" {
		errors = append(errors, "SQLite database path cannot be empty when using sqlite identity backend")
	}
	if c.BootstrapUsersFile != "" {
		if _, err := os.Stat(c.BootstrapUsersFile); os.IsNotExist(err) {
			errors = append(errors, fmt.Sprintf("bootstrap users file does not exist: %s", c.BootstrapUsersFile))
		}
	}
	if c.BootstrapAdminUsername != "" && c.BootstrapAdminPassword == "" {
		errors = append(errors, "BOOTSTRAP_ADMIN_PASSWORD is required when BOOTSTRAP_ADMIN_USERNAME is set")
	}

	if key, err := c.SessionKey(); err != nil {
		errors = append(errors, err.Error())
	} else if len(key) < MinSessionSecretLength {
		errors = append(errors, fmt.Sprintf("session secret must be at least %d bytes", MinSessionSecretLength))
	}
	if c.SessionMaxAge < 0 {
		errors = append(errors, fmt.Sprintf("invalid session max age %v: must not be negative", c.SessionMaxAge))
	}

	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL: %v", err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPQueue == "" {
			errors = append(errors, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
	}

	if c.ChartFontFile != "" {
		if _, err := os.Stat(c.ChartFontFile); os.IsNotExist(err) {
			errors = append(errors, fmt.Sprintf("chart font file does not exist: %s", c.ChartFontFile))
		}
	}
	if c.ChartCacheSize < 1 || c.ChartCacheSize > 4096 {
		errors = append(errors, fmt.Sprintf("invalid chart cache size %d: must be between 1 and 4096", c.ChartCacheSize))
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}
