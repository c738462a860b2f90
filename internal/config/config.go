package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config aggregates runtime configuration for the service.
type Config struct {
	App      AppConfig
	Postgres PostgresConfig
	Redis    RedisConfig
	Logger   LoggerConfig
	Auth     AuthConfig
	CoreAPI  CoreAPIConfig
	Cache    CacheConfig
	Queue    QueueConfig
	Mail     MailConfig
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

// RedisConfig holds Redis connection values.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string
}

// AuthConfig defines bearer token validation parameters.
type AuthConfig struct {
	JWTSecret       string
	Issuer          string
	TokenTTLMinutes int
}

// CoreAPIConfig points at the directory service that owns users, departments and grades.
type CoreAPIConfig struct {
	BaseURL        string
	TimeoutSeconds int
}

// CacheConfig bounds the reference data cache.
type CacheConfig struct {
	TTLMinutes int
	MaxEntries int
}

// QueueConfig configures the notification broker.
type QueueConfig struct {
	Driver                   string
	Stream                   string
	Group                    string
	Consumer                 string
	DeadLetterStream         string
	MaxDeliveries            int
	VisibilityTimeoutSeconds int
	BlockSeconds             int
	Concurrency              int
	MaxLen                   int64
	// MetricsAddr is where the standalone worker serves /metrics. Empty disables it.
	MetricsAddr string
}

// MailConfig configures outbound email.
type MailConfig struct {
	Driver        string
	Host          string
	Port          int
	Username      string
	Password      string
	FromAddress   string
	FromName      string
	RatePerSecond float64
	Burst         int
}

const (
	QueueDriverRedis  = "redis"
	QueueDriverMemory = "memory"
	MailDriverSMTP    = "smtp"
	MailDriverNoop    = "noop"
)

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	hostname, _ := os.Hostname()
	if hostname == "" {
		hostname = "timeoff-worker"
	}

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "timeoff-service"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "8080"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
		},
		Postgres: PostgresConfig{
			DSN:            os.Getenv("POSTGRES_DSN"),
			MaxConns:       int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10)),
			MinConns:       int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2)),
			RunMigrations:  getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true),
			ConnMaxIdleSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30)),
			ConnMaxLifeSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300)),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "127.0.0.1:6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Auth: AuthConfig{
			JWTSecret:       os.Getenv("AUTH_JWT_SECRET"),
			Issuer:          os.Getenv("AUTH_JWT_ISSUER"),
			TokenTTLMinutes: getEnvAsInt("AUTH_TOKEN_TTL_MINUTES", 60),
		},
		CoreAPI: CoreAPIConfig{
			BaseURL:        os.Getenv("CORE_API_BASE_URL"),
			TimeoutSeconds: getEnvAsInt("CORE_API_TIMEOUT_SECONDS", 10),
		},
		Cache: CacheConfig{
			TTLMinutes: getEnvAsInt("REFERENCE_CACHE_TTL_MINUTES", 30),
			MaxEntries: getEnvAsInt("REFERENCE_CACHE_MAX_ENTRIES", 64),
		},
		Queue: QueueConfig{
			Driver:                   strings.ToLower(getEnv("QUEUE_DRIVER", QueueDriverRedis)),
			Stream:                   getEnv("QUEUE_STREAM", "timeoff.notifications"),
			Group:                    getEnv("QUEUE_GROUP", "email-sender"),
			Consumer:                 getEnv("QUEUE_CONSUMER", hostname),
			DeadLetterStream:         getEnv("QUEUE_DEAD_LETTER_STREAM", "timeoff.notifications.dead"),
			MaxDeliveries:            getEnvAsInt("QUEUE_MAX_DELIVERIES", 10),
			VisibilityTimeoutSeconds: getEnvAsInt("QUEUE_VISIBILITY_TIMEOUT_SECONDS", 60),
			BlockSeconds:             getEnvAsInt("QUEUE_BLOCK_SECONDS", 5),
			Concurrency:              getEnvAsInt("QUEUE_CONCURRENCY", 4),
			MaxLen:                   int64(getEnvAsInt("QUEUE_MAX_LEN", 100000)),
			MetricsAddr:              os.Getenv("WORKER_METRICS_ADDR"),
		},
		Mail: MailConfig{
			Driver:        strings.ToLower(getEnv("MAIL_DRIVER", MailDriverNoop)),
			Host:          os.Getenv("SMTP_HOST"),
			Port:          getEnvAsInt("SMTP_PORT", 587),
			Username:      os.Getenv("SMTP_USERNAME"),
			Password:      os.Getenv("SMTP_PASSWORD"),
			FromAddress:   getEnv("MAIL_FROM_ADDRESS", "noreply@example.com"),
			FromName:      getEnv("MAIL_FROM_NAME", "Time Off"),
			RatePerSecond: getEnvAsFloat("MAIL_RATE_PER_SECOND", 5),
			Burst:         getEnvAsInt("MAIL_BURST", 5),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	var errs []error
	if c.Auth.JWTSecret == "" {
		errs = append(errs, errors.New("AUTH_JWT_SECRET is required"))
	}
	if c.CoreAPI.BaseURL == "" {
		errs = append(errs, errors.New("CORE_API_BASE_URL is required"))
	}
	switch c.Queue.Driver {
	case QueueDriverRedis, QueueDriverMemory:
	default:
		errs = append(errs, fmt.Errorf("unsupported QUEUE_DRIVER %q", c.Queue.Driver))
	}
	switch c.Mail.Driver {
	case MailDriverSMTP:
		if c.Mail.Host == "" {
			errs = append(errs, errors.New("SMTP_HOST is required when MAIL_DRIVER=smtp"))
		}
	case MailDriverNoop:
	default:
		errs = append(errs, fmt.Errorf("unsupported MAIL_DRIVER %q", c.Mail.Driver))
	}
	return errors.Join(errs...)
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

// Timeout returns the per-call HTTP timeout.
func (c CoreAPIConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// TTL returns how long reference data stays cached.
func (c CacheConfig) TTL() time.Duration {
	return time.Duration(c.TTLMinutes) * time.Minute
}

// VisibilityTimeout is how long a delivery may stay unacknowledged before redelivery.
func (q QueueConfig) VisibilityTimeout() time.Duration {
	return time.Duration(q.VisibilityTimeoutSeconds) * time.Second
}

// BlockTimeout bounds a single receive call.
func (q QueueConfig) BlockTimeout() time.Duration {
	return time.Duration(q.BlockSeconds) * time.Second
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

func getEnvAsFloat(key string, fallback float64) float64 {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(val, 64)
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
