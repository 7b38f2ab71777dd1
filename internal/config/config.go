package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	// HTTP server
	Port string

	// Persistence backend: "memory" or "sqlite"
	Backend    string
	SQLitePath string

	// AMQP; empty URL disables async messaging and the engine falls
	// back to in-process notification.
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Export spreadsheet; empty id disables the sheet exporter.
	SpreadsheetID string
	SheetName     string

	// Attachments: "fs", "gcs" or "none"
	BlobBackend   string
	AttachmentDir string
	StorageBucket string
	StoragePrefix string

	// Decision mail; empty addr makes the worker log instead of send.
	SMTPAddr     string
	SMTPFrom     string
	SMTPUser     string
	SMTPPassword string

	// Optional policy table override; empty uses the embedded table.
	PolicyFile string

	// Worker
	ReconcileInterval time.Duration
}

func Load() *Config {
	return &Config{
		Port: getEnv("PORT", "8080"),

		Backend:    getEnv("DATA_BACKEND", "memory"),
		SQLitePath: getEnv("SQLITE_DB_PATH", "./data/lofawell.db"),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "lofawell"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "lofawell_events"),

		SpreadsheetID: getEnv("GOOGLE_SPREADSHEET_ID", ""),
		SheetName:     getEnv("GOOGLE_SHEET_NAME", "Applications"),

		BlobBackend:   getEnv("BLOB_BACKEND", "fs"),
		AttachmentDir: getEnv("ATTACHMENT_DIR", "./data/attachments"),
		StorageBucket: getEnv("STORAGE_BUCKET", ""),
		StoragePrefix: getEnv("STORAGE_PREFIX", "attachments"),

		SMTPAddr:     getEnv("SMTP_ADDR", ""),
		SMTPFrom:     getEnv("SMTP_FROM", "welfare@example.com"),
		SMTPUser:     getEnv("SMTP_USER", ""),
		SMTPPassword: getEnv("SMTP_PASSWORD", ""),

		PolicyFile: getEnv("POLICY_FILE", ""),

		ReconcileInterval: getEnvDuration("RECONCILE_INTERVAL", 10*time.Minute),
	}
}

// Validate collects every problem instead of failing on the first, so
// a misconfigured deployment reports all of it in one pass.
func (c *Config) Validate() error {
	var errs []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		errs = append(errs, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errs = append(errs, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	switch c.Backend {
	case "memory", "sqlite":
	default:
		errs = append(errs, fmt.Sprintf("invalid data backend '%s': must be one of [memory sqlite]", c.Backend))
	}

	if c.Backend == "sqlite" {
		if c.SQLitePath == "" {
			errs = append(errs, "SQLite database path cannot be empty when using sqlite backend")
		} else if dir := filepath.Dir(c.SQLitePath); dir != "." && dir != "" {
			if _, err := os.Stat(dir); os.IsNotExist(err) {
				if err := os.MkdirAll(dir, 0755); err != nil {
					errs = append(errs, fmt.Sprintf("cannot create SQLite database directory '%s': %v", dir, err))
				}
			}
		}
	}

	if c.AMQPURL != "" {
		if parsed, err := url.Parse(c.AMQPURL); err != nil {
			errs = append(errs, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsed.Scheme != "amqp" && parsed.Scheme != "amqps" {
			errs = append(errs, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsed.Scheme))
		}
		if c.AMQPExchange == "" {
			errs = append(errs, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPQueue == "" {
			errs = append(errs, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
	}

	switch c.BlobBackend {
	case "fs":
		if c.AttachmentDir == "" {
			errs = append(errs, "attachment directory cannot be empty when using fs blob backend")
		}
	case "gcs":
		if c.StorageBucket == "" {
			errs = append(errs, "storage bucket is required when using gcs blob backend")
		}
	case "none":
	default:
		errs = append(errs, fmt.Sprintf("invalid blob backend '%s': must be one of [fs gcs none]", c.BlobBackend))
	}

	if c.PolicyFile != "" {
		if _, err := os.Stat(c.PolicyFile); os.IsNotExist(err) {
			errs = append(errs, fmt.Sprintf("policy file does not exist: %s", c.PolicyFile))
		}
	}

	if c.ReconcileInterval < time.Second {
		errs = append(errs, fmt.Sprintf("invalid reconcile interval %v: must be at least 1 second", c.ReconcileInterval))
	} else if c.ReconcileInterval > 24*time.Hour {
		errs = append(errs, fmt.Sprintf("invalid reconcile interval %v: must be at most 24 hours", c.ReconcileInterval))
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errs, "\n- "))
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
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
