package tracing

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"

	"github.com/lukasai/lukas/pkg/errs"
)

// ExtractContext reads W3C trace headers from the carrier.
func ExtractContext(ctx context.Context, carrier propagation.TextMapCarrier) context.Context {
	return otel.GetTextMapPropagator().Extract(ctx, carrier)
}

var blockedAttributeKeys = map[attribute.Key]struct{}{
	"user_id":       {},
	"prompt":        {},
	"authorization": {},
	"email":         {},
}

// SafeAttributes drops attributes that could carry personal data.
func SafeAttributes(attrs ...attribute.KeyValue) []attribute.KeyValue {
	out := make([]attribute.KeyValue, 0, len(attrs))
	for _, attr := range attrs {
		if _, blocked := blockedAttributeKeys[attr.Key]; blocked {
			continue
		}
		out = append(out, attr)
	}
	return out
}

// SafeError reduces an error to its classification so provider payloads
// never reach the trace backend.
func SafeError(err error) error {
	if err == nil {
		return nil
	}
	if e, ok := errs.As(err); ok {
		return errors.New(string(e.Kind) + ":" + e.Code)
	}
	return errors.New("internal_error")
}
