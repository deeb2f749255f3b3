package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	auditdomain "github.com/lukasai/lukas/internal/audit/domain"
	"github.com/lukasai/lukas/internal/audit/repository"
	"github.com/lukasai/lukas/internal/auth"
	"github.com/lukasai/lukas/internal/authorization"
	"github.com/lukasai/lukas/internal/clock"
	obscontext "github.com/lukasai/lukas/internal/observability/context"
	"github.com/lukasai/lukas/internal/testsupport"
)

func newService(t *testing.T) (auditdomain.Service, *clock.FakeClock) {
	t.Helper()
	clk := clock.NewFakeClock(time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC))
	svc := NewService(Params{
		DB:    testsupport.OpenDB(t),
		Log:   zap.NewNop(),
		GenID: testsupport.MustNode(t),
		Clock: clk,
		Authz: testsupport.Authz(t),
		Repo:  repository.Provide(),
	})
	return svc, clk
}

func TestRecordMasksAndAttributes(t *testing.T) {
	svc, _ := newService(t)
	admin := testsupport.Admin()
	target := uuid.New()

	ctx := obscontext.WithRequestID(context.Background(), "req-9")
	err := svc.Record(ctx, admin, auditdomain.Entry{
		Action:     "subscription.assign",
		TargetType: "subscription",
		TargetID:   "123",
		UserID:     &target,
		Metadata:   map[string]any{"plan_code": "pro", "webhook_secret": "whsec_abcdefgh"},
		IPAddress:  "203.0.113.7",
	})
	require.NoError(t, err)

	resp, err := svc.List(context.Background(), admin, auditdomain.ListRequest{UserID: target.String()})
	require.NoError(t, err)
	require.Len(t, resp.AuditLogs, 1)

	entry := resp.AuditLogs[0]
	assert.Equal(t, "admin", entry.ActorType)
	require.NotNil(t, entry.ActorID)
	assert.Equal(t, admin.UserID.String(), *entry.ActorID)
	assert.Equal(t, "pro", entry.Metadata["plan_code"])
	assert.Equal(t, "whsec_****efgh", entry.Metadata["webhook_secret"])
	assert.Equal(t, "req-9", entry.Metadata["request_id"])
	require.NotNil(t, entry.IPAddress)
	assert.Nil(t, entry.UserAgent)
}

func TestRecordSystemActor(t *testing.T) {
	svc, _ := newService(t)

	require.NoError(t, svc.Record(context.Background(), auth.System(), auditdomain.Entry{Action: "payment.webhook"}))

	resp, err := svc.List(context.Background(), testsupport.Admin(), auditdomain.ListRequest{})
	require.NoError(t, err)
	require.Len(t, resp.AuditLogs, 1)
	assert.Equal(t, "system", resp.AuditLogs[0].ActorType)
	assert.Nil(t, resp.AuditLogs[0].ActorID)
	assert.Equal(t, "unknown", resp.AuditLogs[0].TargetType)
}

func TestRecordRequiresAction(t *testing.T) {
	svc, _ := newService(t)
	err := svc.Record(context.Background(), testsupport.User(), auditdomain.Entry{Action: "  "})
	assert.ErrorIs(t, err, auditdomain.ErrInvalidAction)
}

func TestListIsAdminOnly(t *testing.T) {
	svc, _ := newService(t)
	_, err := svc.List(context.Background(), testsupport.User(), auditdomain.ListRequest{})
	assert.ErrorIs(t, err, authorization.ErrForbidden)
}

func TestListPagesNewestFirst(t *testing.T) {
	svc, clk := newService(t)
	admin := testsupport.Admin()

	for _, action := range []string{"plan.upsert", "suggestion.apply", "usage.compensate"} {
		require.NoError(t, svc.Record(context.Background(), admin, auditdomain.Entry{Action: action}))
		clk.Advance(time.Minute)
	}

	first, err := svc.List(context.Background(), admin, auditdomain.ListRequest{PageSize: 2})
	require.NoError(t, err)
	require.Len(t, first.AuditLogs, 2)
	assert.True(t, first.HasMore)
	assert.Equal(t, "usage.compensate", first.AuditLogs[0].Action)

	second, err := svc.List(context.Background(), admin, auditdomain.ListRequest{PageSize: 2, PageToken: first.NextPageToken})
	require.NoError(t, err)
	require.Len(t, second.AuditLogs, 1)
	assert.Equal(t, "plan.upsert", second.AuditLogs[0].Action)
	assert.False(t, second.HasMore)

	filtered, err := svc.List(context.Background(), admin, auditdomain.ListRequest{Action: "suggestion.apply"})
	require.NoError(t, err)
	assert.Len(t, filtered.AuditLogs, 1)

	_, err = svc.List(context.Background(), admin, auditdomain.ListRequest{PageToken: "%%%"})
	assert.ErrorIs(t, err, auditdomain.ErrInvalidPageToken)
}

func TestListRejectsInvertedRange(t *testing.T) {
	svc, _ := newService(t)
	start := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	end := start.Add(-time.Hour)
	_, err := svc.List(context.Background(), testsupport.Admin(), auditdomain.ListRequest{StartAt: &start, EndAt: &end})
	assert.ErrorIs(t, err, auditdomain.ErrInvalidTimeRange)
}
