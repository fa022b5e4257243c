package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/AnthonyGillesRudolfo/Payment-Session-Client/internal/email"
	postgres "github.com/AnthonyGillesRudolfo/Payment-Session-Client/internal/storage/postgres"
	"github.com/AnthonyGillesRudolfo/Payment-Session-Client/internal/telemetry"
	"github.com/AnthonyGillesRudolfo/Payment-Session-Client/internal/transport"
)

// Config aggregates runtime configuration grouped by concern.
type Config struct {
	ServiceName string
	LogLevel    string
	Payment     PaymentConfig
	Redirect    RedirectConfig
	Metrics     MetricsConfig
	Kafka       KafkaConfig
	Database    DatabaseConfig
	Email       EmailConfig
	Telemetry   telemetry.Config
}

type PaymentConfig struct {
	ListURL   string
	Transport transport.Config
	Workers   int
	// Optional YAML overlays for the message catalog and the validation rules.
	MessagesFile string
	RulesFile    string
}

type RedirectConfig struct {
	ListenAddr string
}

type MetricsConfig struct {
	Addr string
}

type KafkaConfig struct {
	Enabled      bool
	Brokers      []string
	ResultsTopic string
	ResultsGroup string
}

type DatabaseConfig struct {
	Enabled     bool
	AutoMigrate bool
	postgres.DatabaseConfig
}

type EmailConfig struct {
	Enabled   bool
	Recipient string
	SMTP      email.SMTPConfig
}

// Load reads configuration from environment variables, applying sensible defaults.
func Load() (Config, error) {
	cfg := Config{
		ServiceName: getEnv("SERVICE_NAME", "payment-session-client"),
		LogLevel:    strings.ToLower(getEnv("LOG_LEVEL", "info")),
		Payment: PaymentConfig{
			ListURL: getEnv("PAYMENT_LIST_URL", ""),
			Transport: transport.Config{
				Headers: parseHeaders(getEnv("PAYMENT_HEADERS", "")),
				Accept:  getEnv("PAYMENT_ACCEPT", "application/json"),
			},
			MessagesFile: getEnv("PAYMENT_MESSAGES_FILE", ""),
			RulesFile:    getEnv("PAYMENT_RULES_FILE", ""),
		},
		Redirect: RedirectConfig{
			ListenAddr: getEnv("REDIRECT_LISTEN_ADDR", ":3000"),
		},
		Metrics: MetricsConfig{
			Addr: getEnv("METRICS_ADDR", ":9090"),
		},
		Kafka: KafkaConfig{
			Brokers:      splitAndTrim(getEnv("KAFKA_BROKERS", "localhost:9092")),
			ResultsTopic: getEnv("KAFKA_RESULTS_TOPIC", "payment-results.v1"),
			ResultsGroup: getEnv("KAFKA_RESULTS_GROUP_ID", "result-workers"),
		},
		Email: EmailConfig{
			Recipient: getEnv("NOTIFY_TO_EMAIL", ""),
			SMTP: email.SMTPConfig{
				Host:     getEnv("SMTP_HOST", "localhost"),
				Port:     getEnv("SMTP_PORT", "1025"),
				From:     getEnv("SMTP_FROM", "no-reply@example.local"),
				Username: getEnv("SMTP_USERNAME", ""),
				Password: getEnv("SMTP_PASSWORD", ""),
			},
		},
		Telemetry: telemetry.Config{
			Endpoint: getEnv("OTEL_EXPORTER_OTLP_TRACES_ENDPOINT", ""),
		},
	}
	cfg.Telemetry.ServiceName = cfg.ServiceName
	cfg.Email.Enabled = cfg.Email.Recipient != ""

	// PAYMENT_AUTHORIZATION is the usual way to hand over merchant
	// credentials; it wins over an Authorization entry in PAYMENT_HEADERS.
	if auth := getEnv("PAYMENT_AUTHORIZATION", ""); auth != "" {
		if cfg.Payment.Transport.Headers == nil {
			cfg.Payment.Transport.Headers = make(map[string]string)
		}
		cfg.Payment.Transport.Headers["Authorization"] = auth
	}

	var err error
	if cfg.Payment.Transport.Timeout, err = parseDuration("PAYMENT_TIMEOUT", "30s"); err != nil {
		return Config{}, err
	}
	if cfg.Payment.Workers, err = parseInt("PAYMENT_WORKERS", "4"); err != nil {
		return Config{}, err
	}
	if cfg.Kafka.Enabled, err = parseBool("KAFKA_ENABLED", "false"); err != nil {
		return Config{}, err
	}
	if cfg.Database.Enabled, err = parseBool("DB_ENABLED", "false"); err != nil {
		return Config{}, err
	}
	if cfg.Database.AutoMigrate, err = parseBool("DB_AUTO_MIGRATE", "false"); err != nil {
		return Config{}, err
	}
	if cfg.Telemetry.SampleRatio, err = parseFloat("OTEL_TRACES_SAMPLE_RATIO", "1"); err != nil {
		return Config{}, err
	}

	port, err := parseInt("DB_PORT", "5432")
	if err != nil {
		return Config{}, err
	}
	cfg.Database.DatabaseConfig = postgres.DatabaseConfig{
		Host:     getEnv("DB_HOST", "localhost"),
		Port:     port,
		Database: getEnv("DB_NAME", "paymentsessions"),
		User:     getEnv("DB_USER", "paymentsessions"),
		Password: getEnv("DB_PASSWORD", ""),
		SSLMode:  getEnv("DB_SSLMODE", "disable"),
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}

func parseInt(key, fallback string) (int, error) {
	n, err := strconv.Atoi(getEnv(key, fallback))
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	return n, nil
}

func parseBool(key, fallback string) (bool, error) {
	b, err := strconv.ParseBool(getEnv(key, fallback))
	if err != nil {
		return false, fmt.Errorf("parse %s: %w", key, err)
	}
	return b, nil
}

func parseFloat(key, fallback string) (float64, error) {
	f, err := strconv.ParseFloat(getEnv(key, fallback), 64)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	return f, nil
}

func parseDuration(key, fallback string) (time.Duration, error) {
	d, err := time.ParseDuration(getEnv(key, fallback))
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	return d, nil
}

// parseHeaders reads "Name=value,Other=value". Values may contain '='.
func parseHeaders(raw string) map[string]string {
	out := make(map[string]string)
	for _, part := range splitAndTrim(raw) {
		name, value, ok := strings.Cut(part, "=")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			continue
		}
		out[name] = strings.TrimSpace(value)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func splitAndTrim(raw string) []string {
	parts := strings.Split(raw, ",")
	var out []string
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
