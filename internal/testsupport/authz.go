package testsupport

import (
	"testing"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/lukasai/lukas/internal/auth"
	"github.com/lukasai/lukas/internal/authorization"
)

// Authz returns the real policy set backed by an in-memory enforcer.
func Authz(t *testing.T) authorization.Service {
	t.Helper()
	enforcer, err := authorization.NewMemoryEnforcer()
	if err != nil {
		t.Fatalf("enforcer: %v", err)
	}
	return authorization.NewService(authorization.Params{Log: zap.NewNop(), Enforcer: enforcer})
}

func User() auth.Principal {
	return auth.Principal{UserID: uuid.New(), Role: auth.RoleUser}
}

func Admin() auth.Principal {
	return auth.Principal{UserID: uuid.New(), Role: auth.RoleAdmin}
}
