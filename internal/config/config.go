package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config aggregates runtime configuration for the service.
type Config struct {
	App          AppConfig
	Postgres     PostgresConfig
	Redis        RedisConfig
	Logger       LoggerConfig
	Auth         AuthConfig
	Gateway      GatewayConfig
	Notification NotificationConfig
	Gate         GateSettings
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

// AuthConfig defines operator authentication parameters.
type AuthConfig struct {
	JWTSecret             string
	AccessTokenTTLMinutes int
	OperatorEmail         string
	OperatorPasswordHash  string
	BcryptCost            int
}

// GatewayConfig configures the external channel gateway client.
type GatewayConfig struct {
	BaseURL     string
	AuthToken   string
	CallTimeout time.Duration
	RetryMax    int
}

// NotificationConfig holds stub notification endpoints.
type NotificationConfig struct {
	WebhookURL string
}

// GateSettings are the operator-tunable knobs of the admission engine.
// They are re-read at each sweep tick via a GateProvider so changes take
// effect without a restart.
type GateSettings struct {
	DefaultTokenValidFor    time.Duration
	AdmissionDelay          time.Duration
	MembershipSweepInterval time.Duration
	QueueSweepInterval      time.Duration
	RetentionWindow         time.Duration
	CleanupHourUTC          int
	CleanupMinuteUTC        int
	Plans                   map[string]time.Duration
}

// GateProvider supplies current gate settings. The scheduler and services
// call it per operation rather than caching the values.
type GateProvider interface {
	Gate() GateSettings
}

// EnvGateProvider reads gate settings from the environment on every call.
type EnvGateProvider struct{}

// Gate implements GateProvider.
func (EnvGateProvider) Gate() GateSettings { return loadGateSettings() }

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "access-gate-service"),
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
			JWTSecret:             getEnv("AUTH_JWT_SECRET", "dev-secret"),
			AccessTokenTTLMinutes: getEnvAsInt("AUTH_ACCESS_TOKEN_TTL_MINUTES", 60),
			OperatorEmail:         getEnv("AUTH_OPERATOR_EMAIL", ""),
			OperatorPasswordHash:  getEnv("AUTH_OPERATOR_PASSWORD_HASH", ""),
			BcryptCost:            getEnvAsInt("AUTH_BCRYPT_COST", 12),
		},
		Gateway: GatewayConfig{
			BaseURL:     getEnv("GATEWAY_BASE_URL", ""),
			AuthToken:   os.Getenv("GATEWAY_AUTH_TOKEN"),
			CallTimeout: getEnvAsDuration("GATEWAY_CALL_TIMEOUT", 10*time.Second),
			RetryMax:    getEnvAsInt("GATEWAY_RETRY_MAX", 2),
		},
		Notification: NotificationConfig{
			WebhookURL: getEnv("NOTIFY_WEBHOOK_URL", ""),
		},
		Gate: loadGateSettings(),
	}

	return cfg, nil
}

func loadGateSettings() GateSettings {
	hour, minute := parseClockOfDay(getEnv("GATE_CLEANUP_AT_UTC", "03:30"))
	return GateSettings{
		DefaultTokenValidFor:    getEnvAsDuration("GATE_DEFAULT_TOKEN_VALID_FOR", 24*time.Hour),
		AdmissionDelay:          getEnvAsDuration("GATE_ADMISSION_DELAY", 10*time.Minute),
		MembershipSweepInterval: getEnvAsDuration("GATE_MEMBERSHIP_SWEEP_INTERVAL", time.Minute),
		QueueSweepInterval:      getEnvAsDuration("GATE_QUEUE_SWEEP_INTERVAL", time.Minute),
		RetentionWindow:         getEnvAsDuration("GATE_RETENTION_WINDOW", 30*24*time.Hour),
		CleanupHourUTC:          hour,
		CleanupMinuteUTC:        minute,
		Plans:                   parsePlans(getEnv("GATE_PLANS", "")),
	}
}

// parsePlans reads "monthly:720h,weekly:168h" style plan definitions.
// Malformed entries are skipped.
func parsePlans(raw string) map[string]time.Duration {
	plans := make(map[string]time.Duration)
	for _, entry := range strings.Split(raw, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		parts := strings.SplitN(entry, ":", 2)
		if len(parts) != 2 {
			continue
		}
		dur, err := time.ParseDuration(strings.TrimSpace(parts[1]))
		if err != nil || dur <= 0 {
			continue
		}
		plans[strings.TrimSpace(parts[0])] = dur
	}
	return plans
}

func parseClockOfDay(raw string) (hour, minute int) {
	parts := strings.SplitN(raw, ":", 2)
	if len(parts) != 2 {
		return 3, 30
	}
	h, errH := strconv.Atoi(parts[0])
	m, errM := strconv.Atoi(parts[1])
	if errH != nil || errM != nil || h < 0 || h > 23 || m < 0 || m > 59 {
		return 3, 30
	}
	return h, m
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

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(val)
	if err != nil || parsed <= 0 {
		return fallback
	}
	return parsed
}
