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
	Queues       QueueConfig
	Pipeline     PipelineConfig
	Classifier   ClassifierConfig
	Retrieval    RetrievalConfig
	Sink         SinkConfig
	Notification NotificationConfig
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

// AuthConfig defines authentication parameters for the submission API.
type AuthConfig struct {
	JWTSecret             string
	AccessTokenTTLMinutes int
}

// QueueConfig names the stage hand-off queues. The names are deployment
// convention, not protocol.
type QueueConfig struct {
	Ingest     string
	Classify   string
	Enrich     string
	Assignment string
}

// PipelineConfig controls worker and reconciler behavior.
type PipelineConfig struct {
	Stages                 []string
	PopTimeoutSeconds      int
	StoreBackoffSeconds    int
	ReconcileEnabled       bool
	ReconcileIntervalSec   int
	ReconcileStuckAfterSec int
	ReconcileBatchSize     int
}

// ClassifierConfig points at the external classification collaborator.
type ClassifierConfig struct {
	BaseURL        string
	APIKey         string
	Model          string
	TimeoutSeconds int
	MaxAttempts    int
	RetryBackoffMS int
}

// RetrievalConfig points at the knowledge-base retrieval collaborator.
type RetrievalConfig struct {
	BaseURL        string
	Collection     string
	TopK           int
	TimeoutSeconds int
}

// SinkConfig points at the external ticket-management system. When
// Authoritative is true the sink is the system of record for ticket status
// and a failed classification publish blocks pipeline progression; when
// false publishes are best-effort mirrors.
type SinkConfig struct {
	BaseURL        string
	Authoritative  bool
	TimeoutSeconds int
}

// NotificationConfig holds stub notification endpoints.
type NotificationConfig struct {
	EmailFrom  string
	WebhookURL string
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "ticket-triage"),
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
		},
		Queues: QueueConfig{
			Ingest:     getEnv("QUEUE_INGEST", "tickets"),
			Classify:   getEnv("QUEUE_CLASSIFY", "classify"),
			Enrich:     getEnv("QUEUE_ENRICH", "rag"),
			Assignment: getEnv("QUEUE_ASSIGNMENT", "assignment"),
		},
		Pipeline: PipelineConfig{
			Stages:                 getEnvAsList("PIPELINE_STAGES", []string{"ingest", "classify", "enrich", "assign"}),
			PopTimeoutSeconds:      getEnvAsInt("PIPELINE_POP_TIMEOUT_SECONDS", 5),
			StoreBackoffSeconds:    getEnvAsInt("PIPELINE_STORE_BACKOFF_SECONDS", 5),
			ReconcileEnabled:       getEnvAsBool("RECONCILE_ENABLED", true),
			ReconcileIntervalSec:   getEnvAsInt("RECONCILE_INTERVAL_SECONDS", 300),
			ReconcileStuckAfterSec: getEnvAsInt("RECONCILE_STUCK_AFTER_SECONDS", 900),
			ReconcileBatchSize:     getEnvAsInt("RECONCILE_BATCH_SIZE", 50),
		},
		Classifier: ClassifierConfig{
			BaseURL:        getEnv("CLASSIFIER_BASE_URL", "https://api.groq.com/openai/v1"),
			APIKey:         os.Getenv("CLASSIFIER_API_KEY"),
			Model:          getEnv("CLASSIFIER_MODEL", "openai/gpt-oss-120b"),
			TimeoutSeconds: getEnvAsInt("CLASSIFIER_TIMEOUT_SECONDS", 60),
			MaxAttempts:    getEnvAsInt("CLASSIFIER_MAX_ATTEMPTS", 3),
			RetryBackoffMS: getEnvAsInt("CLASSIFIER_RETRY_BACKOFF_MS", 500),
		},
		Retrieval: RetrievalConfig{
			BaseURL:        getEnv("RETRIEVAL_BASE_URL", "http://127.0.0.1:6333"),
			Collection:     getEnv("RETRIEVAL_COLLECTION", "kb_docs"),
			TopK:           getEnvAsInt("RETRIEVAL_TOP_K", 3),
			TimeoutSeconds: getEnvAsInt("RETRIEVAL_TIMEOUT_SECONDS", 10),
		},
		Sink: SinkConfig{
			BaseURL:        getEnv("SINK_BASE_URL", ""),
			Authoritative:  getEnvAsBool("SINK_AUTHORITATIVE", false),
			TimeoutSeconds: getEnvAsInt("SINK_TIMEOUT_SECONDS", 10),
		},
		Notification: NotificationConfig{
			EmailFrom:  getEnv("NOTIFY_EMAIL_FROM", "noreply@example.com"),
			WebhookURL: getEnv("NOTIFY_WEBHOOK_URL", ""),
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

// PopTimeout returns the blocking-pop timeout for worker loops.
func (p PipelineConfig) PopTimeout() time.Duration {
	if p.PopTimeoutSeconds <= 0 {
		return 5 * time.Second
	}
	return time.Duration(p.PopTimeoutSeconds) * time.Second
}

// StageEnabled reports whether the named stage should run in this process.
func (p PipelineConfig) StageEnabled(name string) bool {
	for _, s := range p.Stages {
		if strings.EqualFold(s, name) {
			return true
		}
	}
	return false
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

func getEnvAsList(key string, fallback []string) []string {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parts := strings.Split(val, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}
