package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	Environment string
	Server      ServerConfig
	ClinicAPI   ClinicAPIConfig
	Redis       RedisConfig
	Auth        AuthConfig
	Scheduling  SchedulingConfig
	Dashboard   DashboardConfig
	OTEL        OTELConfig
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Host           string
	Port           int
	AllowedOrigins []string
}

// ClinicAPIConfig holds the upstream clinic REST backend configuration
type ClinicAPIConfig struct {
	BaseURL      string
	ServiceToken string
	Timeout      time.Duration
	RetryReads   bool
	Timezone     string
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
	Enabled  bool
}

// AuthConfig holds the bearer token verification settings
type AuthConfig struct {
	JWTSecret string
	Issuer    string
	// Disabled lets local development run without tokens; every request acts as DevRole.
	Disabled bool
	DevRole  string
}

// SchedulingConfig holds booking rules
type SchedulingConfig struct {
	DefaultClinicID     string
	BusinessHoursStart  string
	BusinessHoursEnd    string
	DefaultSlotDuration time.Duration
}

// DashboardConfig holds the stats polling settings
type DashboardConfig struct {
	PollInterval time.Duration
	ClinicIDs    []string
}

// OTELConfig holds OpenTelemetry configuration
type OTELConfig struct {
	ServiceName    string
	ServiceVersion string
	Endpoint       string
	Enabled        bool
}

// LoadDotEnv copies KEY=VALUE files into the environment. Variables already
// set win, and missing files are skipped. With no paths it reads ./.env.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, path := range paths {
		if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(path); err != nil {
			return fmt.Errorf("failed to load %s: %w", path, err)
		}
	}
	return nil
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		Environment: getEnv("APP_ENV", "development"),
		Server: ServerConfig{
			Host:           getEnv("SERVER_HOST", "0.0.0.0"),
			Port:           getEnvAsInt("SERVER_PORT", 8080),
			AllowedOrigins: getEnvAsList("CORS_ALLOWED_ORIGINS", []string{"*"}),
		},
		ClinicAPI: ClinicAPIConfig{
			BaseURL:      getEnv("CLINIC_API_URL", "http://localhost:5000/api"),
			ServiceToken: getEnv("CLINIC_API_TOKEN", ""),
			Timeout:      getEnvAsDuration("CLINIC_API_TIMEOUT", 10*time.Second),
			RetryReads:   getEnvAsBool("CLINIC_API_RETRY_READS", true),
			Timezone:     getEnv("CLINIC_TIMEZONE", "Local"),
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnvAsInt("REDIS_PORT", 6379),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
			Enabled:  getEnvAsBool("REDIS_ENABLED", true),
		},
		Auth: AuthConfig{
			JWTSecret: getEnv("JWT_SECRET", ""),
			Issuer:    getEnv("JWT_ISSUER", ""),
			Disabled:  getEnvAsBool("AUTH_DISABLED", false),
			DevRole:   getEnv("AUTH_DEV_ROLE", "Admin"),
		},
		Scheduling: SchedulingConfig{
			DefaultClinicID:     getEnv("DEFAULT_CLINIC_ID", ""),
			BusinessHoursStart:  getEnv("BUSINESS_HOURS_START", "08:00"),
			BusinessHoursEnd:    getEnv("BUSINESS_HOURS_END", "18:00"),
			DefaultSlotDuration: getEnvAsDuration("DEFAULT_SLOT_DURATION", 30*time.Minute),
		},
		Dashboard: DashboardConfig{
			PollInterval: getEnvAsDuration("DASHBOARD_POLL_INTERVAL", time.Minute),
			ClinicIDs:    getEnvAsList("DASHBOARD_CLINIC_IDS", nil),
		},
		OTEL: OTELConfig{
			ServiceName:    getEnv("OTEL_SERVICE_NAME", "clinicdesk"),
			ServiceVersion: getEnv("OTEL_SERVICE_VERSION", "1.0.0"),
			Endpoint:       getEnv("OTEL_ENDPOINT", ""),
			Enabled:        getEnvAsBool("OTEL_ENABLED", false),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks settings that would otherwise fail at first use
func (c *Config) Validate() error {
	if strings.TrimSpace(c.ClinicAPI.BaseURL) == "" {
		return fmt.Errorf("CLINIC_API_URL is required")
	}
	if !c.Auth.Disabled && c.Auth.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required unless AUTH_DISABLED=true")
	}
	if _, err := time.Parse("15:04", c.Scheduling.BusinessHoursStart); err != nil {
		return fmt.Errorf("invalid BUSINESS_HOURS_START %q: %w", c.Scheduling.BusinessHoursStart, err)
	}
	if _, err := time.Parse("15:04", c.Scheduling.BusinessHoursEnd); err != nil {
		return fmt.Errorf("invalid BUSINESS_HOURS_END %q: %w", c.Scheduling.BusinessHoursEnd, err)
	}
	if c.Scheduling.BusinessHoursStart >= c.Scheduling.BusinessHoursEnd {
		return fmt.Errorf("business hours must start before they end")
	}
	if c.Scheduling.DefaultSlotDuration <= 0 {
		return fmt.Errorf("DEFAULT_SLOT_DURATION must be positive")
	}
	return nil
}

// Location returns the clinic timezone used for business hours and day bounds
func (c *ClinicAPIConfig) Location() *time.Location {
	if c.Timezone == "" || c.Timezone == "Local" {
		return time.Local
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

// RedisAddr returns the Redis address
func (c *RedisConfig) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvAsList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
