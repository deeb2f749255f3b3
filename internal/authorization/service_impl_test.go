package authorization

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/lukasai/lukas/internal/auth"
)

func newTestService(t *testing.T) Service {
	t.Helper()
	enforcer, err := NewMemoryEnforcer()
	require.NoError(t, err)
	return NewService(Params{Log: zap.NewNop(), Enforcer: enforcer})
}

func TestUserActsOnOwnData(t *testing.T) {
	svc := newTestService(t)
	user := auth.Principal{UserID: uuid.New(), Role: auth.RoleUser}

	assert.NoError(t, svc.AuthorizeUser(context.Background(), user, user.UserID, ObjectUsage, ActionRecord))
	assert.ErrorIs(t, svc.AuthorizeUser(context.Background(), user, uuid.New(), ObjectUsage, ActionRecord), ErrForbidden)
}

func TestServiceRecordsForAnyUser(t *testing.T) {
	svc := newTestService(t)
	service := auth.System()

	assert.NoError(t, svc.AuthorizeUser(context.Background(), service, uuid.New(), ObjectUsage, ActionRecord))
	assert.ErrorIs(t, svc.Authorize(context.Background(), service, ObjectPlan, ActionManage), ErrForbidden)
}

func TestAdminInheritsServicePermissions(t *testing.T) {
	svc := newTestService(t)
	admin := auth.Principal{UserID: uuid.New(), Role: auth.RoleAdmin}

	assert.NoError(t, svc.AuthorizeUser(context.Background(), admin, uuid.New(), ObjectReport, ActionRead))
	assert.NoError(t, svc.Authorize(context.Background(), admin, ObjectPlan, ActionManage))
	assert.NoError(t, svc.AuthorizeUser(context.Background(), admin, uuid.New(), ObjectUsage, ActionCompensate))
}

func TestUserCannotCompensate(t *testing.T) {
	svc := newTestService(t)
	user := auth.Principal{UserID: uuid.New(), Role: auth.RoleUser}
	assert.ErrorIs(t, svc.AuthorizeUser(context.Background(), user, user.UserID, ObjectUsage, ActionCompensate), ErrForbidden)
}

func TestZeroPrincipalRejected(t *testing.T) {
	svc := newTestService(t)
	assert.ErrorIs(t, svc.Authorize(context.Background(), auth.Principal{}, ObjectUsage, ActionRead), ErrInvalidActor)
}
