package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Addr               string        `yaml:"addr"`
	DatabaseURL        string        `yaml:"databaseUrl"`
	JWTSecret          string        `yaml:"jwtSecret"`
	Environment        string        `yaml:"environment"`
	LogLevel           string        `yaml:"logLevel"`
	LogFormat          string        `yaml:"logFormat"`
	TokenTTL           time.Duration `yaml:"tokenTtl"`
	SeedAdminEmail     string        `yaml:"seedAdminEmail"`
	SeedAdminPassword  string        `yaml:"seedAdminPassword"`
	RunMigrations      bool          `yaml:"runMigrations"`
	RunSeed            bool          `yaml:"runSeed"`
	MaxBodyBytes       int64         `yaml:"maxBodyBytes"`
	RateLimitPerMinute int           `yaml:"rateLimitPerMinute"`
	MetricsEnabled     bool          `yaml:"metricsEnabled"`
	TxRetryMaxElapsed  time.Duration `yaml:"txRetryMaxElapsed"`
}

func Defaults() Config {
	return Config{
		Addr:               ":8080",
		Environment:        "development",
		LogLevel:           "info",
		LogFormat:          "json",
		TokenTTL:           12 * time.Hour,
		RunMigrations:      true,
		RunSeed:            true,
		MaxBodyBytes:       1048576,
		RateLimitPerMinute: 60,
		MetricsEnabled:     true,
		TxRetryMaxElapsed:  2 * time.Second,
	}
}

// Load reads KPIEVAL_CONFIG (if set) over the defaults and then applies
// environment overrides.
func Load() (Config, error) {
	cfg := Defaults()
	if path := os.Getenv("KPIEVAL_CONFIG"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
		if err := Parse(data, &cfg); err != nil {
			return Config{}, err
		}
	}
	applyEnv(&cfg)
	return cfg, nil
}

// Parse decodes YAML into cfg, leaving fields absent from data untouched.
func Parse(data []byte, cfg *Config) error {
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}
	return nil
}

func applyEnv(cfg *Config) {
	cfg.Addr = getEnv("APP_ADDR", cfg.Addr)
	cfg.DatabaseURL = getEnv("DATABASE_URL", cfg.DatabaseURL)
	cfg.JWTSecret = getEnv("JWT_SECRET", cfg.JWTSecret)
	cfg.Environment = getEnv("APP_ENV", cfg.Environment)
	cfg.LogLevel = getEnv("LOG_LEVEL", cfg.LogLevel)
	cfg.LogFormat = getEnv("LOG_FORMAT", cfg.LogFormat)
	cfg.TokenTTL = getEnvDuration("TOKEN_TTL", cfg.TokenTTL)
	cfg.SeedAdminEmail = getEnv("SEED_ADMIN_EMAIL", cfg.SeedAdminEmail)
	cfg.SeedAdminPassword = getEnv("SEED_ADMIN_PASSWORD", cfg.SeedAdminPassword)
	cfg.RunMigrations = getEnvBool("RUN_MIGRATIONS", cfg.RunMigrations)
	cfg.RunSeed = getEnvBool("RUN_SEED", cfg.RunSeed)
	cfg.MaxBodyBytes = int64(getEnvInt("MAX_BODY_BYTES", int(cfg.MaxBodyBytes)))
	cfg.RateLimitPerMinute = getEnvInt("RATE_LIMIT_PER_MINUTE", cfg.RateLimitPerMinute)
	cfg.MetricsEnabled = getEnvBool("METRICS_ENABLED", cfg.MetricsEnabled)
	cfg.TxRetryMaxElapsed = getEnvDuration("TX_RETRY_MAX_ELAPSED", cfg.TxRetryMaxElapsed)
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvInt(key string, fallback int) int {
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

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func (c Config) IsProduction() bool {
	return c.Environment == "production"
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.DatabaseURL) == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if c.IsProduction() {
		if strings.TrimSpace(c.JWTSecret) == "" {
			return fmt.Errorf("JWT_SECRET must be set to a strong value in production")
		}
		if c.RunSeed && strings.TrimSpace(c.SeedAdminPassword) == "" {
			return fmt.Errorf("SEED_ADMIN_PASSWORD must be changed or RUN_SEED disabled in production")
		}
	}
	if c.MaxBodyBytes < 1024 {
		return fmt.Errorf("MAX_BODY_BYTES must be at least 1024")
	}
	if c.RateLimitPerMinute <= 0 {
		return fmt.Errorf("RATE_LIMIT_PER_MINUTE must be positive")
	}
	if c.TokenTTL <= 0 {
		return fmt.Errorf("TOKEN_TTL must be positive")
	}
	return nil
}
