package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"pmpv/internal/core"
)

// DefaultSuppliers seed every empty quarter slot.
const DefaultSuppliers = "PETROBRAS,GALP,PETRORECONCAVO,BRAVA,ENEVA,ORIZON"

type Config struct {
	// HTTP Server
	Port string

	// Database
	SQLiteDBPath string

	// AMQP (empty URL disables result events)
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Reports
	ExportDir                string
	GoogleSpreadsheetID      string
	GoogleServiceAccountFile string
	GoogleServiceAccountJSON string

	// Quarter defaults
	DefaultSuppliers  []string
	DefaultStartMonth string

	// Backups (empty dir disables scheduled backups)
	BackupDir      string
	BackupInterval time.Duration
	BackupKeep     int

	// Backend selection
	DataBackend string

	LogLevel string
}

func Load() *Config {
	cfg := &Config{
		Port:         getEnv("PORT", "8081"),
		SQLiteDBPath: getEnv("SQLITE_DB_PATH", "./data/pmpv.db"),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "pmpv"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "pmpv_results"),

		ExportDir:                getEnv("EXPORT_DIR", "./exports"),
		GoogleSpreadsheetID:      getEnv("GOOGLE_SPREADSHEET_ID", ""),
		GoogleServiceAccountFile: getEnv("GOOGLE_SERVICE_ACCOUNT_FILE", ""),
		GoogleServiceAccountJSON: getEnv("GOOGLE_SERVICE_ACCOUNT_JSON", ""),

		DefaultSuppliers:  splitList(getEnv("DEFAULT_SUPPLIERS", DefaultSuppliers)),
		DefaultStartMonth: getEnv("DEFAULT_START_MONTH", "January"),

		BackupDir:      getEnv("BACKUP_DIR", ""),
		BackupInterval: getEnvDuration("BACKUP_INTERVAL", 24*time.Hour),
		BackupKeep:     getEnvInt("BACKUP_KEEP", 7),

		DataBackend: getEnv("DATA_BACKEND", "sqlite"),
		LogLevel:    strings.ToLower(getEnv("LOG_LEVEL", "info")),
	}

	return cfg
}

// QuarterDefaults returns the quarter configuration for new sessions.
func (c *Config) QuarterDefaults() core.QuarterConfig {
	return core.QuarterConfig{StartMonth: c.DefaultStartMonth}
}

// GoogleEnabled reports whether reports are also pushed to Google Sheets.
func (c *Config) GoogleEnabled() bool {
	return c.GoogleSpreadsheetID != ""
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	// Validate port
	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	// Validate data backend
	validBackends := []string{"memory", "sqlite"}
	isValidBackend := false
	for _, backend := range validBackends {
		if c.DataBackend == backend {
			isValidBackend = true
			break
		}
	}
	if !isValidBackend {
		errors = append(errors, fmt.Sprintf("invalid data backend '%s': must be one of %v", c.DataBackend, validBackends))
	}

	// Validate SQLite configuration if backend is sqlite
	if c.DataBackend == "sqlite" {
		if c.SQLiteDBPath == "" {
			errors = append(errors, "SQLite database path cannot be empty when using sqlite backend")
		} else {
			dir := filepath.Dir(c.SQLiteDBPath)
			if dir != "." && dir != "" {
				if _, err := os.Stat(dir); os.IsNotExist(err) {
					if err := os.MkdirAll(dir, 0755); err != nil {
						errors = append(errors, fmt.Sprintf("cannot create SQLite database directory '%s': %v", dir, err))
					}
				}
			}
		}
	}

	// Validate AMQP URL if provided
	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
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

	if c.ExportDir == "" {
		errors = append(errors, "export directory cannot be empty")
	}

	if c.GoogleServiceAccountFile != "" {
		if _, err := os.Stat(c.GoogleServiceAccountFile); os.IsNotExist(err) {
			errors = append(errors, fmt.Sprintf("Google service account file does not exist: %s", c.GoogleServiceAccountFile))
		}
	}

	if _, err := core.ParseMonth(c.DefaultStartMonth); err != nil {
		errors = append(errors, fmt.Sprintf("invalid default start month '%s': %v", c.DefaultStartMonth, err))
	}

	if len(c.DefaultSuppliers) > 50 {
		errors = append(errors, fmt.Sprintf("too many default suppliers %d: must be at most 50", len(c.DefaultSuppliers)))
	}

	// Validate backup schedule if enabled
	if c.BackupDir != "" {
		if c.DataBackend != "sqlite" {
			errors = append(errors, "scheduled backups require the sqlite backend")
		}
		if c.BackupInterval < time.Minute {
			errors = append(errors, fmt.Sprintf("invalid backup interval %v: must be at least 1 minute", c.BackupInterval))
		}
	}
	if c.BackupKeep < 0 {
		errors = append(errors, fmt.Sprintf("invalid backup keep %d: must not be negative", c.BackupKeep))
	}

	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		errors = append(errors, fmt.Sprintf("invalid log level '%s': must be one of debug, info, warn, error", c.LogLevel))
	}

	// Return combined errors
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

// splitList parses a comma separated list, dropping blanks.
func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
