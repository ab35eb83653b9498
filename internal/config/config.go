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
	// HTTP Server
	Port string

	// Timezone for all calendar math. Empty means the host's local zone.
	Timezone string

	// Database
	SQLiteDBPath string

	// AMQP change-notification channel
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Google Calendar backend
	GoogleCalendarID string

	// Reminder worker
	ReminderSchedule  string
	ReminderLookahead time.Duration

	// Backend selection
	DataBackend string
}

func Load() *Config {
	cfg := &Config{
		Port:     getEnv("PORT", "8081"),
		Timezone: getEnv("TIMEZONE", ""),

		SQLiteDBPath: getEnv("SQLITE_DB_PATH", "./data/hearth.db"),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "hearth"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "calendar_changes"),

		GoogleCalendarID: getEnv("GOOGLE_CALENDAR_ID", ""),

		ReminderSchedule:  getEnv("REMINDER_SCHEDULE", "* * * * *"),
		ReminderLookahead: getEnvDuration("REMINDER_LOOKAHEAD", 24*time.Hour),

		DataBackend: getEnv("DATA_BACKEND", "memory"),
	}

	return cfg
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

	// Validate timezone if provided
	if c.Timezone != "" {
		if _, err := time.LoadLocation(c.Timezone); err != nil {
			errors = append(errors, fmt.Sprintf("invalid timezone '%s': %v", c.Timezone, err))
		}
	}

	// Validate data backend
	validBackends := []string{"memory", "sqlite", "google"}
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
			// Check if directory exists or can be created
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

	// Validate Google Calendar configuration if backend is google
	if c.DataBackend == "google" {
		if c.GoogleCalendarID == "" {
			errors = append(errors, "GOOGLE_CALENDAR_ID is required when using google backend")
		}

		hasJSON := os.Getenv("GOOGLE_SERVICE_ACCOUNT_JSON") != ""
		hasFile := os.Getenv("GOOGLE_SERVICE_ACCOUNT_FILE") != "" ||
			os.Getenv("GOOGLE_APPLICATION_CREDENTIALS") != ""
		if !hasJSON && !hasFile {
			errors = append(errors, "either GOOGLE_SERVICE_ACCOUNT_JSON or GOOGLE_SERVICE_ACCOUNT_FILE must be provided for google backend")
		}
	}

	// Validate reminder worker configuration
	if fields := strings.Fields(c.ReminderSchedule); len(fields) != 5 {
		errors = append(errors, fmt.Sprintf("invalid reminder schedule '%s': must be a 5-field cron expression", c.ReminderSchedule))
	}

	if c.ReminderLookahead < time.Minute {
		errors = append(errors, fmt.Sprintf("invalid reminder lookahead %v: must be at least 1 minute", c.ReminderLookahead))
	} else if c.ReminderLookahead > 30*24*time.Hour {
		errors = append(errors, fmt.Sprintf("invalid reminder lookahead %v: must be at most 30 days", c.ReminderLookahead))
	}

	// Return combined errors
	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
}

// Location resolves the configured timezone, falling back to the host zone.
func (c *Config) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.Local, nil
	}
	return time.LoadLocation(c.Timezone)
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
