package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"llm_router/internal/models"
)

// clearEnv blanks every variable Load reads so host settings do not leak in.
func clearEnv(t *testing.T) {
	for _, key := range []string{
		"DATABASE_URL", "REDIS_URL", "REDIS_ADDRESS", "POOL_USAGE_TIMEZONE",
		"POOL_CANDIDATE_LIMIT", "INFER_DEFAULT_PROVIDER", "ANTHROPIC_API_KEY",
		"OPENAI_API_KEY", "GOOGLE_API_KEY", "BEDROCK_API_KEY", "AWS_ACCESS_KEY_ID",
		"AWS_SECRET_ACCESS_KEY", "AWS_SESSION_TOKEN", "AWS_REGION", "OPENAI_BASE_URL",
		"ANTHROPIC_BASE_URL", "GOOGLE_BASE_URL", "CHAT_DEFAULT_MODEL",
		"CHAT_MAX_OUTPUT_TOKENS", "TELEMETRY_QUEUE_BACKEND", "RATE_LIMIT_BACKEND",
		"RATE_LIMIT_PER_MINUTE", "POOL_QUERY_TIMEOUT", "TELEMETRY_ENABLED",
		"TELEMETRY_S3_BUCKET",
	} {
		t.Setenv(key, "")
	}
}

func TestLoad_RequiresDatabaseURL(t *testing.T) {
	clearEnv(t)

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DATABASE_URL")
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("DATABASE_URL", "postgres://localhost/llmrouter")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.HTTP.Port)
	assert.Equal(t, 5*time.Second, cfg.Pool.QueryTimeout)
	assert.Equal(t, 10, cfg.Pool.CandidateLimit)
	assert.Equal(t, time.UTC, cfg.Pool.UsageLocation)
	assert.Equal(t, models.ProviderOpenAI, cfg.Providers.InferenceDefault)
	assert.Equal(t, "us-east-1", cfg.Providers.BedrockRegion)
	assert.Empty(t, cfg.Providers.DefaultKeys)
	assert.Equal(t, "claude-sonnet-4", cfg.Chat.DefaultModel)
	assert.Equal(t, int64(64000), cfg.Chat.MaxOutputTokens)
	assert.Equal(t, 60*time.Second, cfg.Chat.RepairTimeout)
	assert.False(t, cfg.Redis.Enabled)
	assert.Equal(t, "memory", cfg.Telemetry.Backend)
	assert.False(t, cfg.Telemetry.Enabled)
	assert.Zero(t, cfg.RateLimit.PerMinute)
	assert.False(t, cfg.RateLimitUsesRedis())
}

func TestLoad_ProviderKeys(t *testing.T) {
	clearEnv(t)
	t.Setenv("DATABASE_URL", "postgres://localhost/llmrouter")
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("AWS_ACCESS_KEY_ID", "AKIDEXAMPLE")
	t.Setenv("AWS_SECRET_ACCESS_KEY", "secret")
	t.Setenv("OPENAI_BASE_URL", "http://localhost:9999/v1")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sk-test", cfg.Providers.DefaultKeys[models.ProviderOpenAI])
	assert.Equal(t, "AKIDEXAMPLE:secret", cfg.Providers.DefaultKeys[models.ProviderBedrock])
	_, ok := cfg.Providers.DefaultKeys[models.ProviderAnthropic]
	assert.False(t, ok)
	assert.Equal(t, "http://localhost:9999/v1", cfg.Providers.BaseURLs[models.ProviderOpenAI])
}

func TestBedrockDefaultKey(t *testing.T) {
	clearEnv(t)

	assert.Empty(t, bedrockDefaultKey())

	t.Setenv("AWS_ACCESS_KEY_ID", "AK")
	assert.Empty(t, bedrockDefaultKey(), "a lone access key is not a credential")

	t.Setenv("AWS_SECRET_ACCESS_KEY", "SK")
	t.Setenv("AWS_SESSION_TOKEN", "TOK")
	assert.Equal(t, "AK:SK:TOK", bedrockDefaultKey())

	t.Setenv("BEDROCK_API_KEY", "bedrock-bearer")
	assert.Equal(t, "bedrock-bearer", bedrockDefaultKey())
}

func TestLoad_Overrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("DATABASE_URL", "postgres://localhost/llmrouter")
	t.Setenv("POOL_USAGE_TIMEZONE", "Asia/Tokyo")
	t.Setenv("POOL_QUERY_TIMEOUT", "250ms")
	t.Setenv("INFER_DEFAULT_PROVIDER", "Anthropic")
	t.Setenv("REDIS_ADDRESS", "localhost:6379")
	t.Setenv("TELEMETRY_QUEUE_BACKEND", "redis")
	t.Setenv("RATE_LIMIT_PER_MINUTE", "60")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "Asia/Tokyo", cfg.Pool.UsageLocation.String())
	assert.Equal(t, 250*time.Millisecond, cfg.Pool.QueryTimeout)
	assert.Equal(t, models.ProviderAnthropic, cfg.Providers.InferenceDefault)
	assert.True(t, cfg.Redis.Enabled)
	assert.Equal(t, 60, cfg.RateLimit.PerMinute)
	assert.True(t, cfg.RateLimitUsesRedis())
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"bad timezone", map[string]string{"POOL_USAGE_TIMEZONE": "Mars/Olympus"}},
		{"bad inference default", map[string]string{"INFER_DEFAULT_PROVIDER": "cohere"}},
		{"redis queue without redis", map[string]string{"TELEMETRY_QUEUE_BACKEND": "redis"}},
		{"unknown queue backend", map[string]string{"TELEMETRY_QUEUE_BACKEND": "kafka"}},
		{"unknown rate limit backend", map[string]string{"RATE_LIMIT_BACKEND": "memcached"}},
		{"telemetry without bucket", map[string]string{"TELEMETRY_ENABLED": "true"}},
		{"zero candidate limit", map[string]string{"POOL_CANDIDATE_LIMIT": "0"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			t.Setenv("DATABASE_URL", "postgres://localhost/llmrouter")
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestGetEnvHelpers(t *testing.T) {
	t.Setenv("TEST_INT", "not-a-number")
	assert.Equal(t, 7, getEnvInt("TEST_INT", 7))

	t.Setenv("TEST_DURATION", "90s")
	assert.Equal(t, 90*time.Second, getEnvDuration("TEST_DURATION", time.Second))

	t.Setenv("TEST_BOOL", "false")
	assert.False(t, getEnvBool("TEST_BOOL", true))

	t.Setenv("TEST_BOOL", "maybe")
	assert.True(t, getEnvBool("TEST_BOOL", true))
}
