package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"llm_router/internal/models"
)

// Config holds configuration for the router.
type Config struct {
	HTTP       HTTPConfig
	Database   DatabaseConfig
	Redis      RedisConfig
	Pool       PoolConfig
	Providers  ProvidersConfig
	Chat       ChatConfig
	Telemetry  TelemetryConfig
	RateLimit  RateLimitConfig
	Encryption EncryptionConfig
	LogLevel   string
}

// HTTPConfig holds listener settings
type HTTPConfig struct {
	Port            string
	ReadTimeout     time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
	AutoMigrate     bool
}

// RedisConfig holds Redis connection settings. Redis is optional; with
// Enabled false the router uses in-process queue and rate limiter backends.
type RedisConfig struct {
	Enabled      bool
	URL          string
	Address      string
	Password     string
	DB           int
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// PoolConfig holds credential pool settings
type PoolConfig struct {
	QueryTimeout   time.Duration
	CandidateLimit int
	UsageLocation  *time.Location // calendar of the daily usage table
}

// ProvidersConfig holds provider defaults
type ProvidersConfig struct {
	DefaultKeys      map[models.ProviderKind]string
	BaseURLs         map[models.ProviderKind]string
	BedrockRegion    string
	InferenceDefault models.ProviderKind
	RequestTimeout   time.Duration
}

// ChatConfig holds chat session settings
type ChatConfig struct {
	DefaultModel    string
	MaxOutputTokens int64
	RepairTimeout   time.Duration
}

// TelemetryConfig holds the session telemetry pipeline settings
type TelemetryConfig struct {
	Enabled      bool
	Backend      string // "memory" or "redis"
	QueueName    string
	QueueSize    int
	BatchSize    int
	BatchTimeout time.Duration
	MaxRetries   int
	RetryBackoff time.Duration

	S3Bucket    string
	S3Region    string
	S3Prefix    string
	S3Endpoint  string // S3-compatible endpoint such as MinIO
	S3AccessKey string
	S3SecretKey string
	PodName     string
}

// RateLimitConfig holds per-client request limits
type RateLimitConfig struct {
	PerMinute int    // 0 disables limiting
	Backend   string // "redis" or "local"
}

// EncryptionConfig holds the at-rest key for pooled secrets
type EncryptionConfig struct {
	Key string // base64; empty stores secrets in plaintext
}

func getEnvInt(key string, defaultValue int) int {
	val := os.Getenv(key)
	if val == "" {
		return defaultValue
	}

	intVal, err := strconv.Atoi(val)
	if err != nil {
		return defaultValue
	}

	return intVal
}

func getEnvInt64(key string, defaultValue int64) int64 {
	val := os.Getenv(key)
	if val == "" {
		return defaultValue
	}
	intVal, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return defaultValue
	}
	return intVal
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return defaultValue
	}

	duration, err := time.ParseDuration(val)
	if err != nil {
		return defaultValue
	}

	return duration
}

func getEnvString(key string, defaultValue string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultValue
	}
	return val
}

func getEnvBool(key string, defaultValue bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return defaultValue
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return defaultValue
	}
	return b
}

// bedrockDefaultKey prefers a Bedrock API key and otherwise renders the AWS
// key pair as ACCESS:SECRET[:SESSION_TOKEN].
func bedrockDefaultKey() string {
	if key := os.Getenv("BEDROCK_API_KEY"); key != "" {
		return key
	}
	access, secret := os.Getenv("AWS_ACCESS_KEY_ID"), os.Getenv("AWS_SECRET_ACCESS_KEY")
	if access == "" || secret == "" {
		return ""
	}
	pair := access + ":" + secret
	if token := os.Getenv("AWS_SESSION_TOKEN"); token != "" {
		pair += ":" + token
	}
	return pair
}

// compact drops empty values so that "not configured" reads as absent.
func compact(m map[models.ProviderKind]string) map[models.ProviderKind]string {
	for k, v := range m {
		if strings.TrimSpace(v) == "" {
			delete(m, k)
		}
	}
	return m
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	usageTZ := getEnvString("POOL_USAGE_TIMEZONE", "UTC")
	usageLoc, err := time.LoadLocation(usageTZ)
	if err != nil {
		return nil, fmt.Errorf("invalid POOL_USAGE_TIMEZONE %q: %w", usageTZ, err)
	}

	inferDefault := models.ProviderOpenAI
	if v := os.Getenv("INFER_DEFAULT_PROVIDER"); v != "" {
		inferDefault, err = models.ParseProviderKind(v)
		if err != nil {
			return nil, fmt.Errorf("invalid INFER_DEFAULT_PROVIDER: %w", err)
		}
	}

	redisURL := getEnvString("REDIS_URL", "")
	redisAddr := getEnvString("REDIS_ADDRESS", "")

	cfg := &Config{
		HTTP: HTTPConfig{
			Port:            getEnvString("HTTP_PORT", "8080"),
			ReadTimeout:     getEnvDuration("HTTP_READ_TIMEOUT", 30*time.Second),
			IdleTimeout:     getEnvDuration("HTTP_IDLE_TIMEOUT", 120*time.Second),
			ShutdownTimeout: getEnvDuration("HTTP_SHUTDOWN_TIMEOUT", 30*time.Second),
		},
		Database: DatabaseConfig{
			URL:             dbURL,
			MaxOpenConns:    getEnvInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getEnvInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getEnvDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
			ConnMaxIdleTime: getEnvDuration("DB_CONN_MAX_IDLE_TIME", 1*time.Minute),
			AutoMigrate:     getEnvBool("DB_AUTO_MIGRATE", true),
		},
		Redis: RedisConfig{
			Enabled:      redisURL != "" || redisAddr != "",
			URL:          redisURL,
			Address:      redisAddr,
			Password:     getEnvString("REDIS_PASSWORD", ""),
			DB:           getEnvInt("REDIS_DB", 0),
			PoolSize:     getEnvInt("REDIS_POOL_SIZE", 10),
			MinIdleConns: getEnvInt("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  getEnvDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  getEnvDuration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: getEnvDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Pool: PoolConfig{
			QueryTimeout:   getEnvDuration("POOL_QUERY_TIMEOUT", 5*time.Second),
			CandidateLimit: getEnvInt("POOL_CANDIDATE_LIMIT", 10),
			UsageLocation:  usageLoc,
		},
		Providers: ProvidersConfig{
			DefaultKeys: compact(map[models.ProviderKind]string{
				models.ProviderAnthropic: os.Getenv("ANTHROPIC_API_KEY"),
				models.ProviderOpenAI:    os.Getenv("OPENAI_API_KEY"),
				models.ProviderGoogle:    os.Getenv("GOOGLE_API_KEY"),
				models.ProviderBedrock:   bedrockDefaultKey(),
			}),
			BaseURLs: compact(map[models.ProviderKind]string{
				models.ProviderAnthropic: os.Getenv("ANTHROPIC_BASE_URL"),
				models.ProviderOpenAI:    os.Getenv("OPENAI_BASE_URL"),
				models.ProviderGoogle:    os.Getenv("GOOGLE_BASE_URL"),
			}),
			BedrockRegion:    getEnvString("AWS_REGION", "us-east-1"),
			InferenceDefault: inferDefault,
			RequestTimeout:   getEnvDuration("PROVIDER_REQUEST_TIMEOUT", 10*time.Minute),
		},
		Chat: ChatConfig{
			DefaultModel:    getEnvString("CHAT_DEFAULT_MODEL", "claude-sonnet-4"),
			MaxOutputTokens: getEnvInt64("CHAT_MAX_OUTPUT_TOKENS", 64000),
			RepairTimeout:   getEnvDuration("CHAT_REPAIR_TIMEOUT", 60*time.Second),
		},
		Telemetry: TelemetryConfig{
			Enabled:      getEnvBool("TELEMETRY_ENABLED", os.Getenv("TELEMETRY_S3_BUCKET") != ""),
			Backend:      getEnvString("TELEMETRY_QUEUE_BACKEND", "memory"),
			QueueName:    getEnvString("TELEMETRY_QUEUE_NAME", "sessions"),
			QueueSize:    getEnvInt("TELEMETRY_QUEUE_SIZE", 10000),
			BatchSize:    getEnvInt("TELEMETRY_BATCH_SIZE", 100),
			BatchTimeout: getEnvDuration("TELEMETRY_BATCH_TIMEOUT", 5*time.Second),
			MaxRetries:   getEnvInt("TELEMETRY_MAX_RETRIES", 3),
			RetryBackoff: getEnvDuration("TELEMETRY_RETRY_BACKOFF", time.Second),
			S3Bucket:     getEnvString("TELEMETRY_S3_BUCKET", ""),
			S3Region:     getEnvString("TELEMETRY_S3_REGION", getEnvString("AWS_REGION", "us-east-1")),
			S3Prefix:     getEnvString("TELEMETRY_S3_PREFIX", "sessions/"),
			S3Endpoint:   getEnvString("TELEMETRY_S3_ENDPOINT", ""),
			S3AccessKey:  getEnvString("TELEMETRY_S3_ACCESS_KEY", ""),
			S3SecretKey:  getEnvString("TELEMETRY_S3_SECRET_KEY", ""),
			PodName:      getEnvString("POD_NAME", "router-0"),
		},
		RateLimit: RateLimitConfig{
			PerMinute: getEnvInt("RATE_LIMIT_PER_MINUTE", 0),
			Backend:   getEnvString("RATE_LIMIT_BACKEND", "redis"),
		},
		Encryption: EncryptionConfig{
			Key: getEnvString("ENCRYPTION_KEY", ""),
		},
		LogLevel: getEnvString("LOG_LEVEL", "info"),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.Telemetry.Backend {
	case "memory":
	case "redis":
		if !c.Redis.Enabled {
			return fmt.Errorf("TELEMETRY_QUEUE_BACKEND=redis requires REDIS_URL or REDIS_ADDRESS")
		}
	default:
		return fmt.Errorf("invalid TELEMETRY_QUEUE_BACKEND %q", c.Telemetry.Backend)
	}

	if c.Telemetry.Enabled && c.Telemetry.S3Bucket == "" {
		return fmt.Errorf("TELEMETRY_ENABLED requires TELEMETRY_S3_BUCKET")
	}

	switch c.RateLimit.Backend {
	case "redis", "local":
	default:
		return fmt.Errorf("invalid RATE_LIMIT_BACKEND %q", c.RateLimit.Backend)
	}

	if c.Pool.CandidateLimit <= 0 {
		return fmt.Errorf("POOL_CANDIDATE_LIMIT must be positive")
	}
	if c.Chat.MaxOutputTokens <= 0 {
		return fmt.Errorf("CHAT_MAX_OUTPUT_TOKENS must be positive")
	}
	return nil
}

// RateLimitUsesRedis reports whether the Redis limiter should be used; it
// falls back to the local limiter when Redis is not configured.
func (c *Config) RateLimitUsesRedis() bool {
	return c.RateLimit.Backend == "redis" && c.Redis.Enabled
}
