package service

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/lukasai/lukas/internal/auth"
	"github.com/lukasai/lukas/internal/authorization"
	"github.com/lukasai/lukas/internal/clock"
	"github.com/lukasai/lukas/internal/testsupport"
	usagedomain "github.com/lukasai/lukas/internal/usage/domain"
	"github.com/lukasai/lukas/internal/usage/repository"
)

var testNow = time.Date(2026, time.March, 15, 12, 0, 0, 0, time.UTC)

func setupUsageService(t *testing.T) (usagedomain.Service, *gorm.DB, *clock.FakeClock) {
	t.Helper()
	db := testsupport.OpenDB(t)
	fake := clock.NewFakeClock(testNow)
	svc := NewService(ServiceParam{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: testsupport.MustNode(t),
		Clock: fake,
		Authz: testsupport.Authz(t),
		Repo:  repository.Provide(),
	})
	return svc, db, fake
}

func TestRecordComputesTokensAndDefaults(t *testing.T) {
	svc, _, _ := setupUsageService(t)
	user := testsupport.User()

	event, err := svc.Record(context.Background(), user, usagedomain.RecordRequest{
		Feature:        "document_analysis",
		Model:          "gpt-4o-mini",
		InputTokens:    1200,
		OutputTokens:   300,
		Cost:           0.0042,
		ResponseTimeMS: 850,
	})
	require.NoError(t, err)

	assert.Equal(t, user.UserID, event.UserID)
	assert.Equal(t, usagedomain.FeatureDocumentAnalysis, event.Feature)
	assert.EqualValues(t, 1500, event.TokensUsed)
	assert.True(t, event.Success)
	assert.EqualValues(t, 1, event.Units)
	assert.Equal(t, usagedomain.KindUsage, event.Kind)
	assert.True(t, testNow.Equal(event.OccurredAt))
}

func TestRecordValidation(t *testing.T) {
	svc, db, _ := setupUsageService(t)
	user := testsupport.User()
	mismatch := int64(10)

	cases := []struct {
		name string
		req  usagedomain.RecordRequest
		want error
	}{
		{name: "unknown feature", req: usagedomain.RecordRequest{Feature: "translation"}, want: usagedomain.ErrInvalidFeature},
		{name: "negative input", req: usagedomain.RecordRequest{Feature: "chat", InputTokens: -1}, want: usagedomain.ErrInvalidInputTokens},
		{name: "negative output", req: usagedomain.RecordRequest{Feature: "chat", OutputTokens: -1}, want: usagedomain.ErrInvalidOutputTokens},
		{name: "tokens mismatch", req: usagedomain.RecordRequest{Feature: "chat", InputTokens: 5, OutputTokens: 6, TokensUsed: &mismatch}, want: usagedomain.ErrInvalidTokensUsed},
		{name: "negative cost", req: usagedomain.RecordRequest{Feature: "chat", Cost: -0.01}, want: usagedomain.ErrInvalidCost},
		{name: "nan cost", req: usagedomain.RecordRequest{Feature: "chat", Cost: math.NaN()}, want: usagedomain.ErrInvalidCost},
		{name: "negative latency", req: usagedomain.RecordRequest{Feature: "chat", ResponseTimeMS: -5}, want: usagedomain.ErrInvalidResponseTime},
		{name: "future event", req: usagedomain.RecordRequest{Feature: "chat", OccurredAt: testNow.Add(time.Hour)}, want: usagedomain.ErrInvalidOccurredAt},
		{name: "bad user", req: usagedomain.RecordRequest{Feature: "chat", UserID: "not-a-uuid"}, want: usagedomain.ErrInvalidUser},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Record(context.Background(), user, tc.req)
			assert.True(t, errors.Is(err, tc.want), "expected %v, got %v", tc.want, err)
		})
	}
	assert.Equal(t, 0, testsupport.CountRows(t, db, "usage_events"))
}

func TestRecordMatchingTokensUsedAccepted(t *testing.T) {
	svc, _, _ := setupUsageService(t)
	total := int64(11)
	event, err := svc.Record(context.Background(), testsupport.User(), usagedomain.RecordRequest{
		Feature: "chat", InputTokens: 5, OutputTokens: 6, TokensUsed: &total,
	})
	require.NoError(t, err)
	assert.EqualValues(t, 11, event.TokensUsed)
}

func TestRecordForAnotherUserRequiresPermission(t *testing.T) {
	svc, _, _ := setupUsageService(t)
	other := testsupport.User()

	_, err := svc.Record(context.Background(), testsupport.User(), usagedomain.RecordRequest{
		UserID:  other.UserID.String(),
		Feature: "chat",
	})
	assert.ErrorIs(t, err, authorization.ErrForbidden)

	event, err := svc.Record(context.Background(), auth.System(), usagedomain.RecordRequest{
		UserID:  other.UserID.String(),
		Feature: "chat",
	})
	require.NoError(t, err)
	assert.Equal(t, other.UserID, event.UserID)
}

func TestRecordIdempotent(t *testing.T) {
	svc, db, _ := setupUsageService(t)
	user := testsupport.User()
	req := usagedomain.RecordRequest{Feature: "chat", InputTokens: 10, IdempotencyKey: "idem-key"}

	first, err := svc.Record(context.Background(), user, req)
	require.NoError(t, err)
	second, err := svc.Record(context.Background(), user, req)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 1, testsupport.CountRows(t, db, "usage_events"))
}

func TestRecordConcurrentIdempotent(t *testing.T) {
	svc, db, _ := setupUsageService(t)
	user := testsupport.User()
	req := usagedomain.RecordRequest{Feature: "workflow", IdempotencyKey: "idem-concurrent"}

	var wg sync.WaitGroup
	errCh := make(chan error, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Record(context.Background(), user, req)
			errCh <- err
		}()
	}
	wg.Wait()
	close(errCh)
	for err := range errCh {
		require.NoError(t, err)
	}
	assert.Equal(t, 1, testsupport.CountRows(t, db, "usage_events"))
}

func TestCompensateAppendsReversal(t *testing.T) {
	svc, db, _ := setupUsageService(t)
	user := testsupport.User()
	admin := testsupport.Admin()

	original, err := svc.Record(context.Background(), user, usagedomain.RecordRequest{
		Feature: "meeting_summary", InputTokens: 100, OutputTokens: 50, Cost: 0.5,
		OccurredAt: testNow.Add(-48 * time.Hour),
	})
	require.NoError(t, err)

	_, err = svc.Compensate(context.Background(), user, usagedomain.CompensateRequest{EventID: original.ID.String()})
	assert.ErrorIs(t, err, authorization.ErrForbidden)

	comp, err := svc.Compensate(context.Background(), admin, usagedomain.CompensateRequest{
		EventID: original.ID.String(),
		Reason:  "provider outage",
	})
	require.NoError(t, err)
	assert.Equal(t, usagedomain.KindCompensation, comp.Kind)
	assert.EqualValues(t, -1, comp.Units)
	assert.EqualValues(t, -150, comp.TokensUsed)
	assert.InDelta(t, -0.5, comp.Cost, 1e-9)
	assert.True(t, original.OccurredAt.Equal(comp.OccurredAt))
	require.NotNil(t, comp.CompensatesID)
	assert.Equal(t, original.ID, *comp.CompensatesID)

	_, err = svc.Compensate(context.Background(), admin, usagedomain.CompensateRequest{EventID: original.ID.String()})
	assert.ErrorIs(t, err, usagedomain.ErrAlreadyCompensated)

	_, err = svc.Compensate(context.Background(), admin, usagedomain.CompensateRequest{EventID: comp.ID.String()})
	assert.ErrorIs(t, err, usagedomain.ErrCompensationReversal)

	assert.Equal(t, 2, testsupport.CountRows(t, db, "usage_events"))
}

func TestCompensateUnknownEvent(t *testing.T) {
	svc, _, _ := setupUsageService(t)
	_, err := svc.Compensate(context.Background(), testsupport.Admin(), usagedomain.CompensateRequest{EventID: "12345"})
	assert.ErrorIs(t, err, usagedomain.ErrUsageEventNotFound)

	_, err = svc.Compensate(context.Background(), testsupport.Admin(), usagedomain.CompensateRequest{EventID: "abc"})
	assert.ErrorIs(t, err, usagedomain.ErrInvalidEventID)
}

func TestGetHidesOtherUsersEvents(t *testing.T) {
	svc, _, _ := setupUsageService(t)
	owner := testsupport.User()

	event, err := svc.Record(context.Background(), owner, usagedomain.RecordRequest{Feature: "chat"})
	require.NoError(t, err)

	got, err := svc.Get(context.Background(), owner, event.ID.String())
	require.NoError(t, err)
	assert.Equal(t, event.ID, got.ID)

	_, err = svc.Get(context.Background(), testsupport.User(), event.ID.String())
	assert.ErrorIs(t, err, usagedomain.ErrUsageEventNotFound)
}

func TestListPaginatesNewestFirst(t *testing.T) {
	svc, _, _ := setupUsageService(t)
	user := testsupport.User()

	var ids []string
	for i := 0; i < 5; i++ {
		event, err := svc.Record(context.Background(), user, usagedomain.RecordRequest{Feature: "chat"})
		require.NoError(t, err)
		ids = append(ids, event.ID.String())
	}
	_, err := svc.Record(context.Background(), user, usagedomain.RecordRequest{Feature: "workflow"})
	require.NoError(t, err)

	page, err := svc.List(context.Background(), user, usagedomain.ListRequest{Feature: "chat", PageSize: 3})
	require.NoError(t, err)
	require.Len(t, page.UsageEvents, 3)
	assert.True(t, page.HasMore)
	assert.Equal(t, ids[4], page.UsageEvents[0].ID.String())

	next, err := svc.List(context.Background(), user, usagedomain.ListRequest{Feature: "chat", PageSize: 3, PageToken: page.NextPageToken})
	require.NoError(t, err)
	require.Len(t, next.UsageEvents, 2)
	assert.False(t, next.HasMore)
	assert.Equal(t, ids[0], next.UsageEvents[1].ID.String())
}
