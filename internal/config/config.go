package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config aggregates runtime configuration for the service.
type Config struct {
	App        AppConfig
	Postgres   PostgresConfig
	Redis      RedisConfig
	Logger     LoggerConfig
	Auth       AuthConfig
	Assignment AssignmentConfig
}

// AppConfig controls server level behavior.
type AppConfig struct {
	Name                  string
	Env                   string
	Host                  string
	Port                  string
	Version               string
	RequestTimeoutSeconds int
}

// PostgresConfig holds DB connection values.
type PostgresConfig struct {
	DSN            string
	MaxConns       int32
	MinConns       int32
	RunMigrations  bool
	ConnMaxIdleSec int32
	ConnMaxLifeSec int32
}

// RedisConfig holds Redis connection values. An empty Addr disables Redis.
type RedisConfig struct {
	Addr                     string
	Password                 string
	DB                       int
	DirectoryCacheTTLSeconds int
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string
}

// AuthConfig defines authentication parameters.
type AuthConfig struct {
	JWTSecret             string
	AccessTokenTTLMinutes int
	BcryptCost            int
	// LoginRatePerMinute throttles login and register per client; 0 disables.
	LoginRatePerMinute int
	LoginBurst         int
}

// AssignmentConfig controls the auto-assignment random source.
type AssignmentConfig struct {
	// Seed fixes the picker sequence when non-zero.
	Seed uint64
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	maxConns := int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10))
	minConns := int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2))
	runMigrations := getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true)
	connMaxIdle := int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30))
	connMaxLife := int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300))

	seed, err := strconv.ParseUint(getEnv("ASSIGNMENT_SEED", "0"), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid ASSIGNMENT_SEED: %w", err)
	}

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "helpdesk-service"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "8080"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
		},
		Postgres: PostgresConfig{
			DSN:            os.Getenv("POSTGRES_DSN"),
			MaxConns:       maxConns,
			MinConns:       minConns,
			RunMigrations:  runMigrations,
			ConnMaxIdleSec: connMaxIdle,
			ConnMaxLifeSec: connMaxLife,
		},
		Redis: RedisConfig{
			Addr:                     os.Getenv("REDIS_ADDR"),
			Password:                 os.Getenv("REDIS_PASSWORD"),
			DB:                       redisDB,
			DirectoryCacheTTLSeconds: getEnvAsInt("DIRECTORY_CACHE_TTL_SECONDS", 30),
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Auth: AuthConfig{
			JWTSecret:             getEnv("AUTH_JWT_SECRET", devJWTSecret),
			AccessTokenTTLMinutes: getEnvAsInt("AUTH_ACCESS_TOKEN_TTL_MINUTES", 60),
			BcryptCost:            getEnvAsInt("AUTH_BCRYPT_COST", 12),
			LoginRatePerMinute:    getEnvAsInt("AUTH_LOGIN_RATE_PER_MINUTE", 10),
			LoginBurst:            getEnvAsInt("AUTH_LOGIN_BURST", 5),
		},
		Assignment: AssignmentConfig{
			Seed: seed,
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

const devJWTSecret = "dev-secret"

// Validate rejects settings the service cannot run with. Outside development
// the built-in JWT secret is refused.
func (c *Config) Validate() error {
	var errs []error
	if c.Auth.JWTSecret == "" {
		errs = append(errs, errors.New("AUTH_JWT_SECRET must not be empty"))
	}
	if c.App.Env == "production" && c.Auth.JWTSecret == devJWTSecret {
		errs = append(errs, errors.New("AUTH_JWT_SECRET must be set in production"))
	}
	if c.Auth.BcryptCost < 4 || c.Auth.BcryptCost > 31 {
		errs = append(errs, fmt.Errorf("AUTH_BCRYPT_COST %d outside 4..31", c.Auth.BcryptCost))
	}
	if c.Auth.LoginRatePerMinute > 0 && c.Auth.LoginBurst <= 0 {
		errs = append(errs, errors.New("AUTH_LOGIN_BURST must be positive when throttling is enabled"))
	}
	if c.Postgres.MaxConns > 0 && c.Postgres.MinConns > c.Postgres.MaxConns {
		errs = append(errs, fmt.Errorf("POSTGRES_MIN_CONNS %d exceeds POSTGRES_MAX_CONNS %d", c.Postgres.MinConns, c.Postgres.MaxConns))
	}
	return errors.Join(errs...)
}

// Addr returns the HTTP bind address.
func (a AppConfig) Addr() string {
	return fmt.Sprintf("%s:%s", a.Host, a.Port)
}

// DirectoryCacheTTL returns how long candidate pools stay cached.
func (r RedisConfig) DirectoryCacheTTL() time.Duration {
	if r.DirectoryCacheTTLSeconds <= 0 {
		return 0
	}
	return time.Duration(r.DirectoryCacheTTLSeconds) * time.Second
}

// RequestTimeout returns the configured request timeout duration.
func (a AppConfig) RequestTimeout() time.Duration {
	if a.RequestTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(a.RequestTimeoutSeconds) * time.Second
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsBool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return parsed
}
