package domain

import (
	"context"

	"github.com/lukasai/lukas/internal/auth"
)

// Provider is one AI backend. Implementations must be safe for concurrent use.
type Provider interface {
	Name() string
	DefaultModel() string
	Complete(ctx context.Context, req CompletionRequest) (Completion, error)
}

// Providers resolves a provider by name; an empty name selects the default.
type Providers interface {
	Get(name string) (Provider, bool)
	Names() []string
}

type Service interface {
	// Invoke checks quota, calls the provider and records the usage event,
	// on success and on provider failure.
	Invoke(ctx context.Context, actor auth.Principal, req InvokeRequest) (*InvokeResponse, error)
}
