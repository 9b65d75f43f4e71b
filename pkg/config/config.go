package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application. Environment variables
// are read here and nowhere else.
type Config struct {
	// Server
	Port string
	Env  string // development, staging, production

	// Database
	Database DatabaseConfig

	// Redis
	Redis RedisConfig

	// External APIs
	Weather  WeatherConfig
	Holidays HolidayConfig

	// Pipeline
	Pipeline PipelineConfig

	// Logging
	LogLevel  string
	LogFormat string
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
	Enabled  bool
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	Host     string
	Port     string
	Name     string
	User     string
	Password string
	URL      string
	Enabled  bool

	// Connection Pool
	MaxConns        int
	MinConns        int
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

// WeatherConfig holds the weather archive API configuration.
type WeatherConfig struct {
	BaseURL   string
	Latitude  float64
	Longitude float64
	Enabled   bool
}

// HolidayConfig holds the public holiday API configuration. CalendarURL is
// the HTML fallback scraped when the JSON API is unavailable.
type HolidayConfig struct {
	BaseURL     string
	CountryCode string
	CalendarURL string
	Enabled     bool
}

// PipelineConfig holds the forecasting pipeline defaults.
type PipelineConfig struct {
	MinRows      int
	MinTrainRows int
	TestFraction float64
	Horizon      int
	Confidence   float64
	LeadTimeDays int
	ServiceLevel float64
	OrderCost    float64
	HoldingCost  float64
	Lags         []int
	Windows      []int
}

// Load reads configuration from environment variables. Only this function
// calls os.Getenv.
func Load() (*Config, error) {
	loadEnvFile()

	cfg := &Config{
		// Server
		Port: getEnv("PORT", "8090"),
		Env:  getEnv("ENV", "development"),

		// Database
		Database: DatabaseConfig{
			Host:            getEnv("DB_HOST", "localhost"),
			Port:            getEnv("DB_PORT", "5432"),
			Name:            getEnv("DB_NAME", "demandcast"),
			User:            getEnv("DB_USER", "demandcast"),
			Password:        getEnv("DB_PASSWORD", ""),
			URL:             getEnv("DATABASE_URL", ""),
			Enabled:         getEnvAsBool("DB_ENABLED", false),
			MaxConns:        getEnvAsInt("DB_MAX_CONNS", 25),
			MinConns:        getEnvAsInt("DB_MIN_CONNS", 5),
			MaxConnLifetime: getEnvAsDuration("DB_MAX_CONN_LIFETIME", "1h"),
			MaxConnIdleTime: getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", "30m"),
		},

		// Redis
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
			Enabled:  getEnvAsBool("REDIS_ENABLED", false),
		},

		// External APIs
		Weather: WeatherConfig{
			BaseURL:   getEnv("WEATHER_BASE_URL", "https://archive-api.open-meteo.com/v1/archive"),
			Latitude:  getEnvAsFloat("WEATHER_LATITUDE", 37.57),
			Longitude: getEnvAsFloat("WEATHER_LONGITUDE", 126.98),
			Enabled:   getEnvAsBool("WEATHER_ENABLED", false),
		},

		Holidays: HolidayConfig{
			BaseURL:     getEnv("HOLIDAY_BASE_URL", "https://date.nager.at/api/v3"),
			CountryCode: getEnv("HOLIDAY_COUNTRY", "KR"),
			CalendarURL: getEnv("HOLIDAY_CALENDAR_URL", ""),
			Enabled:     getEnvAsBool("HOLIDAY_ENABLED", false),
		},

		// Pipeline
		Pipeline: PipelineConfig{
			MinRows:      getEnvAsInt("PIPELINE_MIN_ROWS", 10),
			MinTrainRows: getEnvAsInt("PIPELINE_MIN_TRAIN_ROWS", 20),
			TestFraction: getEnvAsFloat("PIPELINE_TEST_FRACTION", 0.2),
			Horizon:      getEnvAsInt("PIPELINE_HORIZON", 30),
			Confidence:   getEnvAsFloat("PIPELINE_CONFIDENCE", 0.95),
			LeadTimeDays: getEnvAsInt("PIPELINE_LEAD_TIME_DAYS", 7),
			ServiceLevel: getEnvAsFloat("PIPELINE_SERVICE_LEVEL", 0.95),
			OrderCost:    getEnvAsFloat("PIPELINE_ORDER_COST", 50),
			HoldingCost:  getEnvAsFloat("PIPELINE_HOLDING_COST", 2),
			Lags:         getEnvAsInts("PIPELINE_LAGS", []int{1, 7, 14}),
			Windows:      getEnvAsInts("PIPELINE_WINDOWS", []int{7, 14, 30}),
		},

		// Logging
		LogLevel:  getEnv("LOG_LEVEL", "debug"),
		LogFormat: getEnv("LOG_FORMAT", "json"),
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// validate checks if required configuration values are set
func (c *Config) validate() error {
	if c.Database.Enabled && c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required when DB_ENABLED=true")
	}

	if c.Env != "development" && c.Env != "staging" && c.Env != "production" {
		return fmt.Errorf("ENV must be one of: development, staging, production")
	}

	if c.Pipeline.TestFraction <= 0 || c.Pipeline.TestFraction >= 1 {
		return fmt.Errorf("PIPELINE_TEST_FRACTION must be in (0, 1)")
	}

	if c.Pipeline.Horizon < 1 {
		return fmt.Errorf("PIPELINE_HORIZON must be at least 1")
	}

	return nil
}

// loadEnvFile tries to load .env from multiple locations
func loadEnvFile() {
	paths := []string{
		".env",
	}

	if exe, err := os.Executable(); err == nil {
		exeDir := filepath.Dir(exe)
		paths = append(paths,
			filepath.Join(exeDir, ".env"),
			filepath.Join(exeDir, "..", ".env"),
		)
	}

	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			_ = godotenv.Load(path)
			return
		}
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsDuration(key string, defaultValue string) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		valueStr = defaultValue
	}

	duration, err := time.ParseDuration(valueStr)
	if err != nil {
		duration, _ = time.ParseDuration(defaultValue)
	}

	return duration
}

// getEnvAsInts parses a comma-separated list of integers.
func getEnvAsInts(key string, defaultValue []int) []int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	parts := strings.Split(valueStr, ",")
	values := make([]int, 0, len(parts))
	for _, p := range parts {
		v, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return defaultValue
		}
		values = append(values, v)
	}
	return values
}
