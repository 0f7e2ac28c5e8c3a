package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Storage drivers understood by the bootstrap.
const (
	StorageDriverPostgres = "postgres"
	StorageDriverBolt     = "bolt"
)

// Lock backends understood by the bootstrap.
const (
	LockBackendMemory = "memory"
	LockBackendRedis  = "redis"
)

// Config aggregates runtime configuration for the service.
type Config struct {
	App          AppConfig
	Storage      StorageConfig
	Postgres     PostgresConfig
	Bolt         BoltConfig
	Redis        RedisConfig
	Lock         LockConfig
	Engine       EngineConfig
	Logger       LoggerConfig
	Auth         AuthConfig
	Notification NotificationConfig
	Reconcile    ReconcileConfig
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

// StorageConfig selects the persistence engine.
type StorageConfig struct {
	Driver string
}

// PostgresConfig holds DB connection values.
type PostgresConfig struct {
	DSN            string
	MaxConns       int32
	MinConns       int32
	RunMigrations  bool
	MigrationsPath string
	ConnMaxIdleSec int32
	ConnMaxLifeSec int32
	// LockTimeoutMs bounds row lock waits; 0 leaves the server default.
	LockTimeoutMs   int
	ConnectAttempts int
	ApplicationName string
}

// BoltConfig holds the embedded store location.
type BoltConfig struct {
	Path string
}

// RedisConfig holds Redis connection values.
type RedisConfig struct {
	// Addr may list several comma separated cluster nodes.
	Addr      string
	Password  string
	DB        int
	TimeoutMs int
}

// LockConfig selects how per-ticket and per-pair critical sections are serialized.
type LockConfig struct {
	Backend    string
	TTLSeconds int
}

// EngineConfig tunes the lifecycle and friendship engines.
type EngineConfig struct {
	MaxRetries int
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string
	// Format is "json" or "console".
	Format string
}

// AuthConfig defines authentication parameters.
type AuthConfig struct {
	JWTSecret             string
	JWTIssuer             string
	AccessTokenTTLMinutes int
	BcryptCost            int
}

// NotificationConfig holds stub notification endpoints.
type NotificationConfig struct {
	EmailFrom  string
	WebhookURL string
	QueueSize  int
}

// ReconcileConfig schedules the invariant audit. An empty schedule disables it.
type ReconcileConfig struct {
	Schedule string
}

// Load reads configuration from the given env files (default .env) and environment
// variables, applying defaults where possible.
func Load(envFiles ...string) (*Config, error) {
	_ = godotenv.Load(envFiles...)

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	dsn := os.Getenv("POSTGRES_DSN")
	driver := strings.ToLower(getEnv("STORAGE_DRIVER", ""))
	if driver == "" {
		driver = StorageDriverBolt
		if dsn != "" {
			driver = StorageDriverPostgres
		}
	}
	if driver != StorageDriverPostgres && driver != StorageDriverBolt {
		return nil, fmt.Errorf("invalid STORAGE_DRIVER %q", driver)
	}
	if driver == StorageDriverPostgres && dsn == "" {
		return nil, fmt.Errorf("STORAGE_DRIVER=postgres requires POSTGRES_DSN")
	}

	lockBackend := strings.ToLower(getEnv("LOCK_BACKEND", LockBackendMemory))
	if lockBackend != LockBackendMemory && lockBackend != LockBackendRedis {
		return nil, fmt.Errorf("invalid LOCK_BACKEND %q", lockBackend)
	}

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "taskboard"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "9090"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 10),
		},
		Storage: StorageConfig{
			Driver: driver,
		},
		Postgres: PostgresConfig{
			DSN:             dsn,
			MaxConns:        int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10)),
			MinConns:        int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2)),
			RunMigrations:   getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true),
			MigrationsPath:  getEnv("POSTGRES_MIGRATIONS_PATH", "migrations"),
			ConnMaxIdleSec:  int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30)),
			ConnMaxLifeSec:  int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300)),
			LockTimeoutMs:   getEnvAsInt("POSTGRES_LOCK_TIMEOUT_MS", 5000),
			ConnectAttempts: getEnvAsInt("POSTGRES_CONNECT_ATTEMPTS", 5),
			ApplicationName: getEnv("APP_NAME", "taskboard"),
		},
		Bolt: BoltConfig{
			Path: getEnv("BOLT_PATH", "data/taskboard.db"),
		},
		Redis: RedisConfig{
			Addr:      getEnv("REDIS_ADDR", "127.0.0.1:6379"),
			Password:  os.Getenv("REDIS_PASSWORD"),
			DB:        redisDB,
			TimeoutMs: getEnvAsInt("REDIS_TIMEOUT_MS", 0),
		},
		Lock: LockConfig{
			Backend:    lockBackend,
			TTLSeconds: getEnvAsInt("LOCK_TTL_SECONDS", 15),
		},
		Engine: EngineConfig{
			MaxRetries: getEnvAsInt("ENGINE_MAX_RETRIES", 3),
		},
		Logger: LoggerConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
		Auth: AuthConfig{
			JWTSecret:             getEnv("AUTH_JWT_SECRET", "dev-secret"),
			JWTIssuer:             getEnv("AUTH_JWT_ISSUER", "taskboard"),
			AccessTokenTTLMinutes: getEnvAsInt("AUTH_ACCESS_TOKEN_TTL_MINUTES", 60),
			BcryptCost:            getEnvAsInt("AUTH_BCRYPT_COST", 12),
		},
		Notification: NotificationConfig{
			EmailFrom:  getEnv("NOTIFY_EMAIL_FROM", "noreply@example.com"),
			WebhookURL: getEnv("NOTIFY_WEBHOOK_URL", ""),
			QueueSize:  getEnvAsInt("NOTIFY_QUEUE_SIZE", 256),
		},
		Reconcile: ReconcileConfig{
			Schedule: reconcileSchedule(),
		},
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

// TTL returns the lease duration for distributed locks.
func (l LockConfig) TTL() time.Duration {
	if l.TTLSeconds <= 0 {
		return 15 * time.Second
	}
	return time.Duration(l.TTLSeconds) * time.Second
}

// reconcileSchedule reads RECONCILE_SCHEDULE; "off" disables the audit.
func reconcileSchedule() string {
	schedule := getEnv("RECONCILE_SCHEDULE", "@every 10m")
	if strings.EqualFold(schedule, "off") {
		return ""
	}
	return schedule
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
