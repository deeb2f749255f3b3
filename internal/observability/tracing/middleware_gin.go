package tracing

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/baggage"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	obscontext "github.com/lukasai/lukas/internal/observability/context"
)

// MiddlewareConfig controls span naming and which route parameters are
// copied onto request spans as "lukas.<param>" attributes.
type MiddlewareConfig struct {
	ServiceName string
	RouteParams []string
}

// DefaultRouteParams are the accounting dimensions carried in API paths.
var DefaultRouteParams = []string{"feature", "provider", "code"}

// GinMiddleware instruments inbound HTTP requests. Spans never carry user
// ids; the caller's role is recorded once authentication has run.
func GinMiddleware(cfg MiddlewareConfig) gin.HandlerFunc {
	name := strings.TrimSpace(cfg.ServiceName)
	if name == "" {
		name = "lukas"
	}
	tracer := otel.Tracer(name + "/http")
	params := cfg.RouteParams

	return func(c *gin.Context) {
		ctx := ExtractContext(c.Request.Context(), propagation.HeaderCarrier(c.Request.Header))
		method := strings.ToUpper(c.Request.Method)
		ctx, span := tracer.Start(ctx, "HTTP "+method, trace.WithSpanKind(trace.SpanKindServer))
		defer span.End()

		if requestID := obscontext.RequestIDFromContext(ctx); requestID != "" {
			ctx = withRequestBaggage(ctx, requestID)
			span.SetAttributes(attribute.String("request_id", requestID))
		}

		c.Request = c.Request.WithContext(ctx)
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unknown"
		}
		status := c.Writer.Status()
		span.SetName("HTTP " + method + " " + route)

		attrs := []attribute.KeyValue{
			attribute.String("http.method", c.Request.Method),
			attribute.String("http.route", route),
			attribute.Int("http.status_code", status),
			attribute.Int64("http.server_duration_ms", time.Since(start).Milliseconds()),
		}
		for _, param := range params {
			if value := strings.TrimSpace(c.Param(param)); value != "" {
				attrs = append(attrs, attribute.String("lukas."+param, value))
			}
		}
		// handlers replace the request context after auth, so read it back here
		if role, _ := obscontext.ActorFromContext(c.Request.Context()); role != "" {
			attrs = append(attrs, attribute.String("enduser.role", role))
		}
		span.SetAttributes(SafeAttributes(attrs...)...)

		if status >= http.StatusInternalServerError {
			if lastErr := c.Errors.Last(); lastErr != nil {
				if safeErr := SafeError(lastErr.Err); safeErr != nil {
					span.RecordError(safeErr)
				}
			}
			span.SetStatus(codes.Error, http.StatusText(status))
		}
	}
}

func withRequestBaggage(ctx context.Context, requestID string) context.Context {
	member, err := baggage.NewMember("request_id", requestID)
	if err != nil {
		return ctx
	}
	bag, err := baggage.New(member)
	if err != nil {
		return ctx
	}
	return baggage.ContextWithBaggage(ctx, bag)
}
