package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Store drivers.
const (
	StoreDriverPostgres = "postgres"
	StoreDriverSQLite   = "sqlite"
)

// Config aggregates runtime configuration for the monitor.
type Config struct {
	App          AppConfig
	Store        StoreConfig
	Postgres     PostgresConfig
	SQLite       SQLiteConfig
	Redis        RedisConfig
	Logger       LoggerConfig
	SLA          SLAConfig
	Notification NotificationConfig
	Auth         AuthConfig
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

// StoreConfig selects the ticket store backend.
type StoreConfig struct {
	Driver          string
	ConnectAttempts int
	ConnectBackoff  time.Duration
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

// SQLiteConfig holds the local store path.
type SQLiteConfig struct {
	DSN string
}

// RedisConfig holds Redis connection values.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Enabled  bool
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level       string
	Format      string
	Service     string
	Development bool
}

// SLAConfig controls the evaluation loop and the policy source.
type SLAConfig struct {
	Interval          time.Duration
	CycleTimeout      time.Duration
	ThresholdFraction float64
	PolicyPath        string
	WatchPolicy       bool
	LeaseKey          string
}

// NotificationConfig holds alert channel endpoints.
type NotificationConfig struct {
	WebhookURL      string
	RedisChannel    string
	NATSURL         string
	NATSSubject     string
	DispatchTimeout time.Duration
	LogAlerts       bool
}

// AuthConfig protects mutating ops API routes. An empty secret leaves them open.
type AuthConfig struct {
	JWTSecret       string
	TokenTTLMinutes int
}

// Load reads configuration from environment variables, applying defaults where possible.
// envFiles are passed to godotenv; an absent file is not an error.
func Load(envFiles ...string) (*Config, error) {
	_ = godotenv.Load(envFiles...)

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	threshold, err := strconv.ParseFloat(getEnv("SLA_THRESHOLD_FRACTION", "0.15"), 64)
	if err != nil {
		return nil, fmt.Errorf("invalid SLA_THRESHOLD_FRACTION: %w", err)
	}
	if threshold <= 0 || threshold > 1 {
		return nil, fmt.Errorf("invalid SLA_THRESHOLD_FRACTION: %v not in (0,1]", threshold)
	}

	driver := strings.ToLower(getEnv("STORE_DRIVER", StoreDriverPostgres))
	if driver != StoreDriverPostgres && driver != StoreDriverSQLite {
		return nil, fmt.Errorf("invalid STORE_DRIVER %q", driver)
	}

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "sla-monitor"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "8080"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
		},
		Store: StoreConfig{
			Driver:          driver,
			ConnectAttempts: getEnvAsInt("STORE_CONNECT_ATTEMPTS", 10),
			ConnectBackoff:  getEnvAsDuration("STORE_CONNECT_BACKOFF", 2*time.Second),
		},
		Postgres: PostgresConfig{
			DSN:            os.Getenv("POSTGRES_DSN"),
			MaxConns:       int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10)),
			MinConns:       int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2)),
			RunMigrations:  getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true),
			ConnMaxIdleSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30)),
			ConnMaxLifeSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300)),
		},
		SQLite: SQLiteConfig{
			DSN: getEnv("SQLITE_DSN", "data/sla_monitor.sqlite"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "127.0.0.1:6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
			Enabled:  getEnvAsBool("REDIS_ENABLED", true),
		},
		Logger: LoggerConfig{
			Level:       getEnv("LOG_LEVEL", "info"),
			Format:      getEnv("LOG_FORMAT", "json"),
			Service:     getEnv("APP_NAME", "sla-monitor"),
			Development: getEnv("APP_ENV", "development") == "development",
		},
		SLA: SLAConfig{
			Interval:          getEnvAsDuration("SLA_CHECK_INTERVAL", 60*time.Second),
			CycleTimeout:      getEnvAsDuration("SLA_CYCLE_TIMEOUT", 10*time.Minute),
			ThresholdFraction: threshold,
			PolicyPath:        getEnv("SLA_POLICY_PATH", "sla_config.yaml"),
			WatchPolicy:       getEnvAsBool("SLA_WATCH_POLICY", true),
			LeaseKey:          getEnv("SLA_LEASE_KEY", "sla-monitor:cycle-lease"),
		},
		Notification: NotificationConfig{
			WebhookURL:      getEnv("NOTIFY_WEBHOOK_URL", os.Getenv("SLACK_WEBHOOK_URL")),
			RedisChannel:    os.Getenv("NOTIFY_REDIS_CHANNEL"),
			NATSURL:         os.Getenv("NOTIFY_NATS_URL"),
			NATSSubject:     getEnv("NOTIFY_NATS_SUBJECT", "sla.alerts"),
			DispatchTimeout: getEnvAsDuration("NOTIFY_DISPATCH_TIMEOUT", 5*time.Second),
			LogAlerts:       getEnvAsBool("NOTIFY_LOG_ALERTS", true),
		},
		Auth: AuthConfig{
			JWTSecret:       os.Getenv("AUTH_JWT_SECRET"),
			TokenTTLMinutes: getEnvAsInt("AUTH_TOKEN_TTL_MINUTES", 60),
		},
	}

	if cfg.SLA.Interval <= 0 {
		return nil, fmt.Errorf("invalid SLA_CHECK_INTERVAL: %s", cfg.SLA.Interval)
	}
	if cfg.SLA.CycleTimeout <= 0 {
		return nil, fmt.Errorf("invalid SLA_CYCLE_TIMEOUT: %s", cfg.SLA.CycleTimeout)
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

// getEnvAsDuration accepts Go durations ("90s") or bare seconds ("90").
func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	if secs, err := strconv.Atoi(val); err == nil {
		return time.Duration(secs) * time.Second
	}
	parsed, err := time.ParseDuration(val)
	if err != nil {
		return fallback
	}
	return parsed
}
