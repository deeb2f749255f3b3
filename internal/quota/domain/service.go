package domain

import (
	"context"

	"github.com/lukasai/lukas/internal/auth"
)

type Service interface {
	// Check never blocks; it only reports the decision.
	Check(ctx context.Context, actor auth.Principal, userID string, feature string) (Decision, error)
	// Guard returns ErrQuotaExceeded for an exceeded quota unless quota mode is advisory.
	Guard(ctx context.Context, actor auth.Principal, userID string, feature string) (Decision, error)
}
