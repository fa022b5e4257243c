package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var configKeys = []string{
	"SERVICE_NAME", "LOG_LEVEL", "PAYMENT_LIST_URL", "PAYMENT_HEADERS", "PAYMENT_AUTHORIZATION",
	"PAYMENT_ACCEPT", "PAYMENT_TIMEOUT", "PAYMENT_WORKERS", "PAYMENT_MESSAGES_FILE", "PAYMENT_RULES_FILE",
	"REDIRECT_LISTEN_ADDR", "METRICS_ADDR", "KAFKA_ENABLED", "KAFKA_BROKERS", "KAFKA_RESULTS_TOPIC",
	"KAFKA_RESULTS_GROUP_ID", "DB_ENABLED", "DB_AUTO_MIGRATE", "DB_HOST", "DB_PORT", "DB_NAME", "DB_USER",
	"DB_PASSWORD", "DB_SSLMODE", "NOTIFY_TO_EMAIL", "SMTP_HOST", "SMTP_PORT", "SMTP_FROM", "SMTP_USERNAME",
	"SMTP_PASSWORD", "OTEL_EXPORTER_OTLP_TRACES_ENDPOINT", "OTEL_TRACES_SAMPLE_RATIO",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range configKeys {
		t.Setenv(k, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "payment-session-client", cfg.ServiceName)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, 30*time.Second, cfg.Payment.Transport.Timeout)
	assert.Equal(t, "application/json", cfg.Payment.Transport.Accept)
	assert.Nil(t, cfg.Payment.Transport.Headers)
	assert.Equal(t, 4, cfg.Payment.Workers)
	assert.Equal(t, ":3000", cfg.Redirect.ListenAddr)
	assert.False(t, cfg.Kafka.Enabled)
	assert.Equal(t, []string{"localhost:9092"}, cfg.Kafka.Brokers)
	assert.False(t, cfg.Database.Enabled)
	assert.Equal(t, 5432, cfg.Database.Port)
	assert.Equal(t, "disable", cfg.Database.SSLMode)
	assert.False(t, cfg.Email.Enabled)
	assert.Equal(t, "payment-session-client", cfg.Telemetry.ServiceName)
	assert.Equal(t, 1.0, cfg.Telemetry.SampleRatio)
}

func TestLoadOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("PAYMENT_LIST_URL", "https://api.example.com/lists/abc")
	t.Setenv("PAYMENT_HEADERS", "X-Merchant=shop-1, Authorization=Basic old==, broken")
	t.Setenv("PAYMENT_AUTHORIZATION", "Basic bmV3")
	t.Setenv("PAYMENT_TIMEOUT", "5s")
	t.Setenv("PAYMENT_WORKERS", "8")
	t.Setenv("KAFKA_ENABLED", "true")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092 ,")
	t.Setenv("DB_ENABLED", "1")
	t.Setenv("DB_PORT", "6543")
	t.Setenv("NOTIFY_TO_EMAIL", "ops@example.com")
	t.Setenv("LOG_LEVEL", "DEBUG")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "https://api.example.com/lists/abc", cfg.Payment.ListURL)
	assert.Equal(t, map[string]string{
		"X-Merchant":    "shop-1",
		"Authorization": "Basic bmV3",
	}, cfg.Payment.Transport.Headers)
	assert.Equal(t, 5*time.Second, cfg.Payment.Transport.Timeout)
	assert.Equal(t, 8, cfg.Payment.Workers)
	assert.True(t, cfg.Kafka.Enabled)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	assert.True(t, cfg.Database.Enabled)
	assert.Equal(t, 6543, cfg.Database.Port)
	assert.True(t, cfg.Email.Enabled)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestLoadInvalid(t *testing.T) {
	for key, value := range map[string]string{
		"PAYMENT_TIMEOUT":          "soon",
		"PAYMENT_WORKERS":          "many",
		"KAFKA_ENABLED":            "maybe",
		"DB_PORT":                  "postgres",
		"OTEL_TRACES_SAMPLE_RATIO": "half",
	} {
		t.Run(key, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(key, value)
			_, err := Load()
			assert.ErrorContains(t, err, key)
		})
	}
}

func TestParseHeaders(t *testing.T) {
	assert.Nil(t, parseHeaders(""))
	assert.Nil(t, parseHeaders("novalue, =x"))
	assert.Equal(t, map[string]string{"A": "b=c", "D": ""}, parseHeaders("A=b=c,D="))
}
