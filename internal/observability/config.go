package observability

import (
	"os"
	"strconv"
	"strings"

	"github.com/lukasai/lukas/internal/config"
	"github.com/lukasai/lukas/internal/observability/tracing"
)

const defaultServiceName = "lukas"

// Config holds observability settings. Values come from the application
// config first; OTEL_* and DEPLOYMENT_ENV variables override them.
type Config struct {
	ServiceName string
	Environment string
	Version     string

	LogLevel  string
	LogFormat string

	OtelEnabled          bool
	OtelExporterEndpoint string
	OtelExporterProtocol string
	OtelSamplingRatio    float64

	// TraceRouteParams are route parameters copied onto request spans.
	TraceRouteParams []string
}

func LoadConfig(cfg config.Config) Config {
	out := Config{
		ServiceName: firstNonEmpty(cfg.AppName, defaultServiceName),
		Environment: envOr("DEPLOYMENT_ENV", cfg.Environment),
		Version:     envOr("SERVICE_VERSION", cfg.AppVersion),

		LogLevel:  strings.ToLower(envOr("LOG_LEVEL", "info")),
		LogFormat: strings.ToLower(envOr("LOG_FORMAT", "json")),

		// exporting is opt-in outside production
		OtelEnabled:          envBool("OTEL_ENABLED", cfg.IsProduction()),
		OtelExporterEndpoint: envOr("OTEL_EXPORTER_OTLP_ENDPOINT", cfg.OTLPEndpoint),
		OtelExporterProtocol: strings.ToLower(envOr("OTEL_EXPORTER_OTLP_TRACES_PROTOCOL", envOr("OTEL_EXPORTER_OTLP_PROTOCOL", "grpc"))),
		OtelSamplingRatio:    envFloat("OTEL_SAMPLING_RATIO", 0.1),

		TraceRouteParams: envList("OTEL_TRACE_ROUTE_PARAMS", tracing.DefaultRouteParams),
	}
	return out
}

// ConstLabels are attached to every series this service exports.
func (c Config) ConstLabels() map[string]string {
	return map[string]string{
		"service": c.ServiceName,
		"env":     c.Environment,
	}
}

func (c Config) Debug() bool {
	if strings.EqualFold(strings.TrimSpace(c.LogLevel), "debug") {
		return true
	}
	switch strings.ToLower(strings.TrimSpace(c.Environment)) {
	case "dev", "development", "local", "test":
		return true
	}
	return false
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if trimmed := strings.TrimSpace(v); trimmed != "" {
			return trimmed
		}
	}
	return ""
}

func envOr(key, def string) string {
	return firstNonEmpty(os.Getenv(key), def)
}

func envBool(key string, def bool) bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(key))) {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	}
	return def
}

func envFloat(key string, def float64) float64 {
	parsed, err := strconv.ParseFloat(strings.TrimSpace(os.Getenv(key)), 64)
	if err != nil {
		return def
	}
	return parsed
}

func envList(key string, def []string) []string {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return append([]string(nil), def...)
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
