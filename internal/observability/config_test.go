package observability

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/lukasai/lukas/internal/config"
	"github.com/lukasai/lukas/internal/observability/tracing"
)

func TestLoadConfigDefaultsFromAppConfig(t *testing.T) {
	cfg := LoadConfig(config.Config{AppName: "lukas-api", AppVersion: "1.4.0", Environment: "staging"})

	assert.Equal(t, "lukas-api", cfg.ServiceName)
	assert.Equal(t, "1.4.0", cfg.Version)
	assert.Equal(t, "grpc", cfg.OtelExporterProtocol)
	assert.False(t, cfg.OtelEnabled)
	assert.Equal(t, tracing.DefaultRouteParams, cfg.TraceRouteParams)
	assert.Equal(t, map[string]string{"service": "lukas-api", "env": "staging"}, cfg.ConstLabels())
	assert.False(t, cfg.Debug())
}

func TestLoadConfigEnvOverrides(t *testing.T) {
	t.Setenv("DEPLOYMENT_ENV", "local")
	t.Setenv("OTEL_ENABLED", "yes")
	t.Setenv("OTEL_EXPORTER_OTLP_PROTOCOL", "grpc")
	t.Setenv("OTEL_EXPORTER_OTLP_TRACES_PROTOCOL", "HTTP")
	t.Setenv("OTEL_SAMPLING_RATIO", "not-a-number")
	t.Setenv("OTEL_TRACE_ROUTE_PARAMS", " feature, ,provider ")

	cfg := LoadConfig(config.Config{Environment: "production"})

	assert.Equal(t, "lukas", cfg.ServiceName)
	assert.Equal(t, "local", cfg.Environment)
	assert.True(t, cfg.OtelEnabled)
	assert.Equal(t, "http", cfg.OtelExporterProtocol)
	assert.InDelta(t, 0.1, cfg.OtelSamplingRatio, 1e-9)
	assert.Equal(t, []string{"feature", "provider"}, cfg.TraceRouteParams)
	assert.True(t, cfg.Debug())
}
