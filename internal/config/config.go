package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Credential backends accepted by ADMIN_CONSOLE_CREDENTIAL_BACKEND.
const (
	BackendFile   = "file"
	BackendRedis  = "redis"
	BackendMemory = "memory"
)

// Config aggregates runtime configuration for the API and the console.
type Config struct {
	App      AppConfig
	Postgres PostgresConfig
	Redis    RedisConfig
	Logger   LoggerConfig
	Auth     AuthConfig
	Console  ConsoleConfig
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
	MigrationsDir  string
	ConnMaxIdleSec int32
	ConnMaxLifeSec int32
}

// RedisConfig holds Redis connection values.
type RedisConfig struct {
	Addr               string
	Password           string
	DB                 int
	PingTimeoutSeconds int
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string
}

// AuthConfig defines authentication parameters.
type AuthConfig struct {
	JWTSecret              string
	TokenLifetimeHours     int
	BcryptCost             int
	LoginAttemptsPerMinute int
	BootstrapAdminEmail    string
	BootstrapAdminPassword string
	BootstrapAdminName     string
}

// ConsoleConfig configures the operator-side session core.
type ConsoleConfig struct {
	APIBaseURL           string
	CredentialBackend    string
	CredentialFile       string
	CredentialPassphrase string
	RoutesFile           string
	RequestTimeoutSecond int
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

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "admin-console-api"),
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
			MigrationsDir:  getEnv("POSTGRES_MIGRATIONS_DIR", "migrations"),
			ConnMaxIdleSec: connMaxIdle,
			ConnMaxLifeSec: connMaxLife,
		},
		Redis: RedisConfig{
			Addr:               getEnv("REDIS_ADDR", "127.0.0.1:6379"),
			Password:           os.Getenv("REDIS_PASSWORD"),
			DB:                 redisDB,
			PingTimeoutSeconds: getEnvAsInt("REDIS_PING_TIMEOUT_SECONDS", 2),
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Auth: AuthConfig{
			JWTSecret:              getEnv("AUTH_JWT_SECRET", "dev-secret"),
			TokenLifetimeHours:     getEnvAsInt("AUTH_TOKEN_LIFETIME_HOURS", 12),
			BcryptCost:             getEnvAsInt("AUTH_BCRYPT_COST", 12),
			LoginAttemptsPerMinute: getEnvAsInt("AUTH_LOGIN_ATTEMPTS_PER_MINUTE", 10),
			BootstrapAdminEmail:    getEnv("AUTH_BOOTSTRAP_ADMIN_EMAIL", "admin@casino.local"),
			BootstrapAdminPassword: os.Getenv("AUTH_BOOTSTRAP_ADMIN_PASSWORD"),
			BootstrapAdminName:     getEnv("AUTH_BOOTSTRAP_ADMIN_NAME", "Console Administrator"),
		},
		Console: ConsoleConfig{
			APIBaseURL:           getEnv("ADMIN_CONSOLE_API_URL", "http://127.0.0.1:8080/api"),
			CredentialBackend:    getEnv("ADMIN_CONSOLE_CREDENTIAL_BACKEND", BackendFile),
			CredentialFile:       CredentialFilePath(),
			CredentialPassphrase: os.Getenv("ADMIN_CONSOLE_CREDENTIAL_PASSPHRASE"),
			RoutesFile:           os.Getenv("ADMIN_CONSOLE_ROUTES_FILE"),
			RequestTimeoutSecond: getEnvAsInt("ADMIN_CONSOLE_TIMEOUT_SECONDS", 10),
		},
	}

	switch cfg.Console.CredentialBackend {
	case BackendFile, BackendRedis, BackendMemory:
	default:
		return nil, fmt.Errorf("invalid ADMIN_CONSOLE_CREDENTIAL_BACKEND %q", cfg.Console.CredentialBackend)
	}

	return cfg, nil
}

// Addr returns the HTTP bind address.
func (a AppConfig) Addr() string {
	return fmt.Sprintf("%s:%s", a.Host, a.Port)
}

// RequestTimeout returns the configured request timeout duration.
func (a AppConfig) RequestTimeout() time.Duration {
	if a.RequestTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(a.RequestTimeoutSeconds) * time.Second
}

// PingTimeout bounds the connection check made when the client is built.
func (r RedisConfig) PingTimeout() time.Duration {
	if r.PingTimeoutSeconds <= 0 {
		return 2 * time.Second
	}
	return time.Duration(r.PingTimeoutSeconds) * time.Second
}

// TokenLifetime returns how long issued bearer tokens stay valid.
func (a AuthConfig) TokenLifetime() time.Duration {
	if a.TokenLifetimeHours <= 0 {
		return 12 * time.Hour
	}
	return time.Duration(a.TokenLifetimeHours) * time.Hour
}

// RequestTimeout returns the console's per-request timeout.
func (c ConsoleConfig) RequestTimeout() time.Duration {
	if c.RequestTimeoutSecond <= 0 {
		return 0
	}
	return time.Duration(c.RequestTimeoutSecond) * time.Second
}

// CredentialFilePath resolves the well-known location of the persisted
// console credential.
func CredentialFilePath() string {
	if path := os.Getenv("ADMIN_CONSOLE_CREDENTIAL_FILE"); path != "" {
		return path
	}
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return filepath.Join(dir, "admin-console", "credential.json")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "admin-console", "credential.json")
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
