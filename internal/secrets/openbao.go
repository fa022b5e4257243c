package secrets

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
)

var ErrOpenBaoSecretNotFound = errors.New("openbao secret path not found")

// Config locates the KV v2 secret that holds the merchant credentials
// (PAYMENT_AUTHORIZATION, PAYMENT_HEADERS, DB_PASSWORD, SMTP_PASSWORD, ...).
type Config struct {
	Addr      string
	Token     string
	Mount     string
	Path      string
	Namespace string
	// Override lets secret values replace variables already set in the environment.
	Override bool
}

// Enabled reports whether enough is configured to reach OpenBao.
func (c Config) Enabled() bool {
	return c.Addr != "" && c.Token != "" && c.Path != ""
}

// ConfigFromEnv reads OPENBAO_* variables.
func ConfigFromEnv() Config {
	cfg := Config{
		Addr:      strings.TrimRight(strings.TrimSpace(os.Getenv("OPENBAO_ADDR")), "/"),
		Token:     os.Getenv("OPENBAO_TOKEN"),
		Mount:     strings.Trim(strings.TrimSpace(os.Getenv("OPENBAO_MOUNT")), "/"),
		Path:      strings.Trim(strings.TrimSpace(os.Getenv("OPENBAO_SECRET_PATH")), "/"),
		Namespace: strings.TrimSpace(os.Getenv("OPENBAO_NAMESPACE")),
	}
	if cfg.Mount == "" {
		cfg.Mount = "secret"
	}
	cfg.Override, _ = strconv.ParseBool(os.Getenv("OPENBAO_OVERRIDE"))
	return cfg
}

// BootstrapFromOpenBao loads secrets from an OpenBao KV path and exports them as environment variables.
// When OpenBao configuration variables are not present, the function is a no-op so local .env workflows keep working.
func BootstrapFromOpenBao(ctx context.Context, logger *zap.Logger) error {
	_, err := Bootstrap(ctx, ConfigFromEnv(), nil, logger)
	return err
}

// Bootstrap exports the secret at cfg into the environment and returns the
// sorted names it set. client may be nil.
func Bootstrap(ctx context.Context, cfg Config, client *http.Client, logger *zap.Logger) ([]string, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if !cfg.Enabled() {
		return nil, nil
	}
	if client == nil {
		client = &http.Client{
			Timeout:   5 * time.Second,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		}
	}

	secrets, err := readSecrets(ctx, client, cfg)
	if err != nil {
		return nil, err
	}

	var exported []string
	for k, v := range secrets {
		if _, set := os.LookupEnv(k); set && !cfg.Override {
			continue
		}
		if err := os.Setenv(k, v); err != nil {
			return exported, fmt.Errorf("export %s: %w", k, err)
		}
		exported = append(exported, k)
	}
	sort.Strings(exported)
	logger.Named("secrets").Info("openbao secrets exported",
		zap.String("path", cfg.Mount+"/"+cfg.Path),
		zap.Strings("keys", exported),
	)
	return exported, nil
}

func readSecrets(ctx context.Context, client *http.Client, cfg Config) (map[string]string, error) {
	req, err := http.NewRequestWithContext(
		ctx,
		http.MethodGet,
		fmt.Sprintf("%s/v1/%s/data/%s", cfg.Addr, cfg.Mount, cfg.Path),
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("create OpenBao request: %w", err)
	}

	req.Header.Set("X-Vault-Token", cfg.Token)
	if cfg.Namespace != "" {
		req.Header.Set("X-Vault-Namespace", cfg.Namespace)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("call OpenBao: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		// continue
	case http.StatusNotFound:
		return nil, ErrOpenBaoSecretNotFound
	default:
		return nil, fmt.Errorf("openbao request failed: status=%d", resp.StatusCode)
	}

	var payload struct {
		Data struct {
			Data map[string]any `json:"data"`
		} `json:"data"`
	}

	dec := json.NewDecoder(resp.Body)
	dec.UseNumber()
	if err := dec.Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode OpenBao response: %w", err)
	}

	out := make(map[string]string, len(payload.Data.Data))
	for k, v := range payload.Data.Data {
		switch val := v.(type) {
		case string:
			out[k] = val
		case json.Number:
			out[k] = val.String()
		case bool:
			out[k] = strconv.FormatBool(val)
		default:
			// nested values have no env representation
		}
	}

	return out, nil
}
