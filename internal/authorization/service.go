package authorization

import (
	"context"

	"github.com/google/uuid"

	"github.com/lukasai/lukas/internal/auth"
)

// Service checks whether a principal may perform an action on an object.
type Service interface {
	Authorize(ctx context.Context, actor auth.Principal, object string, action string) error
	// AuthorizeUser checks action on data owned by userID. Acting on another
	// user's data requires the "<action>_any" permission.
	AuthorizeUser(ctx context.Context, actor auth.Principal, userID uuid.UUID, object string, action string) error
}
