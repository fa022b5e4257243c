package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseEndpoint(t *testing.T) {
	tests := []struct {
		raw  string
		want endpoint
	}{
		{"", endpoint{host: "localhost:4318", path: "/v1/traces", insecure: true}},
		{"collector:4318", endpoint{host: "collector:4318", path: "/v1/traces", insecure: true}},
		{"http://jaeger:4318/v1/traces", endpoint{host: "jaeger:4318", path: "/v1/traces", insecure: true}},
		{"https://otel.example.com/custom", endpoint{host: "otel.example.com", path: "/custom", insecure: false}},
		{"https://otel.example.com", endpoint{host: "otel.example.com", path: "/v1/traces", insecure: false}},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, err := parseEndpoint(tt.raw)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := parseEndpoint("http://[::1")
	assert.Error(t, err)
}

func TestInitTracer(t *testing.T) {
	tp, err := InitTracer(context.Background(), Config{ServiceName: "paysession-test", Endpoint: "127.0.0.1:1"}, nil)
	require.NoError(t, err)
	_, span := tp.Tracer("test").Start(context.Background(), "span")
	span.End()
	assert.True(t, span.SpanContext().IsValid())

	// nothing listens on the endpoint; shutdown still returns
	cancelled, cancel := context.WithCancel(context.Background())
	cancel()
	_ = tp.Shutdown(cancelled)
}
