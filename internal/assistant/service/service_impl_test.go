package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/alicebob/miniredis/v2"
	"github.com/bwmarrin/snowflake"
	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	assistantdomain "github.com/lukasai/lukas/internal/assistant/domain"
	"github.com/lukasai/lukas/internal/assistant/provider"
	"github.com/lukasai/lukas/internal/auth"
	"github.com/lukasai/lukas/internal/authorization"
	"github.com/lukasai/lukas/internal/clock"
	"github.com/lukasai/lukas/internal/config"
	quotadomain "github.com/lukasai/lukas/internal/quota/domain"
	"github.com/lukasai/lukas/internal/ratelimit"
	"github.com/lukasai/lukas/internal/testsupport"
	usagedomain "github.com/lukasai/lukas/internal/usage/domain"
	"github.com/lukasai/lukas/pkg/errs"
)

var testNow = time.Date(2026, time.March, 15, 12, 0, 0, 0, time.UTC)

type fakeProvider struct {
	clock *clock.FakeClock
	err   error
	calls []assistantdomain.CompletionRequest
}

func (p *fakeProvider) Name() string         { return "openai" }
func (p *fakeProvider) DefaultModel() string { return "gpt-4o-mini" }

func (p *fakeProvider) Complete(_ context.Context, req assistantdomain.CompletionRequest) (assistantdomain.Completion, error) {
	p.calls = append(p.calls, req)
	p.clock.Advance(250 * time.Millisecond)
	if p.err != nil {
		return assistantdomain.Completion{}, p.err
	}
	return assistantdomain.Completion{Content: "hello", InputTokens: 1000, OutputTokens: 1000}, nil
}

type mockQuota struct{ mock.Mock }

func (m *mockQuota) Check(ctx context.Context, actor auth.Principal, userID, feature string) (quotadomain.Decision, error) {
	args := m.Called(ctx, actor, userID, feature)
	return args.Get(0).(quotadomain.Decision), args.Error(1)
}

func (m *mockQuota) Guard(ctx context.Context, actor auth.Principal, userID, feature string) (quotadomain.Decision, error) {
	args := m.Called(ctx, actor, userID, feature)
	return args.Get(0).(quotadomain.Decision), args.Error(1)
}

type mockUsage struct{ mock.Mock }

func (m *mockUsage) Record(ctx context.Context, actor auth.Principal, req usagedomain.RecordRequest) (*usagedomain.UsageEvent, error) {
	args := m.Called(ctx, actor, req)
	event, _ := args.Get(0).(*usagedomain.UsageEvent)
	return event, args.Error(1)
}

func (m *mockUsage) Compensate(ctx context.Context, actor auth.Principal, req usagedomain.CompensateRequest) (*usagedomain.UsageEvent, error) {
	args := m.Called(ctx, actor, req)
	event, _ := args.Get(0).(*usagedomain.UsageEvent)
	return event, args.Error(1)
}

func (m *mockUsage) Get(ctx context.Context, actor auth.Principal, id string) (*usagedomain.UsageEvent, error) {
	args := m.Called(ctx, actor, id)
	event, _ := args.Get(0).(*usagedomain.UsageEvent)
	return event, args.Error(1)
}

func (m *mockUsage) List(ctx context.Context, actor auth.Principal, req usagedomain.ListRequest) (usagedomain.ListResponse, error) {
	args := m.Called(ctx, actor, req)
	return args.Get(0).(usagedomain.ListResponse), args.Error(1)
}

type fixture struct {
	svc      assistantdomain.Service
	provider *fakeProvider
	quota    *mockQuota
	usage    *mockUsage
	redis    *miniredis.Miniredis
}

func newFixture(t *testing.T, limits config.RateLimitConfig) *fixture {
	t.Helper()
	fake := clock.NewFakeClock(testNow)
	f := &fixture{
		provider: &fakeProvider{clock: fake},
		quota:    &mockQuota{},
		usage:    &mockUsage{},
		redis:    miniredis.RunT(t),
	}
	client := redis.NewClient(&redis.Options{Addr: f.redis.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	cfg := config.Config{RateLimit: limits}
	limiter := ratelimit.NewAssistantLimiter(cfg, ratelimit.NewTokenBucket(client), ratelimit.NewLocker(client), nil, zap.NewNop())

	f.svc = NewService(ServiceParam{
		Config:    cfg,
		Log:       zap.NewNop(),
		Clock:     fake,
		Authz:     testsupport.Authz(t),
		Quota:     f.quota,
		Usage:     f.usage,
		Providers: provider.NewStaticRegistry("openai", f.provider),
		Limiter:   limiter,
	})
	return f
}

func unlimited(userID, feature string) quotadomain.Decision {
	return quotadomain.Decision{UserID: userID, Feature: feature, Plan: "pro", Allowed: true}
}

func limited(userID, feature string, limit, used int64) quotadomain.Decision {
	remaining, exceeded := quotadomain.Decide(&limit, used)
	return quotadomain.Decision{
		UserID: userID, Feature: feature, Plan: "basic",
		Allowed: !exceeded, Exceeded: exceeded, Limit: &limit, Used: used, Remaining: remaining,
	}
}

func chatRequest() assistantdomain.InvokeRequest {
	return assistantdomain.InvokeRequest{
		Feature:  "chat",
		Messages: []assistantdomain.Message{{Content: "hi"}},
	}
}

func TestInvokeRecordsSuccessfulCall(t *testing.T) {
	f := newFixture(t, config.RateLimitConfig{})
	user := testsupport.User()
	uid := user.UserID.String()

	f.quota.On("Guard", mock.Anything, user, uid, "chat").Return(unlimited(uid, "chat"), nil).Once()
	f.usage.On("Record", mock.Anything, auth.System(), mock.MatchedBy(func(req usagedomain.RecordRequest) bool {
		return req.UserID == uid &&
			req.Feature == "chat" &&
			req.Provider == "openai" &&
			req.Model == "gpt-4o-mini" &&
			req.InputTokens == 1000 && req.OutputTokens == 1000 &&
			req.Success != nil && *req.Success &&
			req.ResponseTimeMS == 250 &&
			len(req.IdempotencyKey) > len("assistant_")
	})).Return(&usagedomain.UsageEvent{ID: snowflake.ID(42)}, nil).Once()

	resp, err := f.svc.Invoke(context.Background(), user, chatRequest())
	require.NoError(t, err)
	assert.Equal(t, "hello", resp.Content)
	assert.InDelta(t, 0.00075, resp.Cost, 1e-9)
	assert.EqualValues(t, 42, resp.UsageEventID)
	assert.EqualValues(t, 250, resp.ResponseTimeMS)
	require.NotNil(t, resp.Quota)
	assert.EqualValues(t, 1, resp.Quota.Used)

	require.Len(t, f.provider.calls, 1)
	sent := f.provider.calls[0]
	assert.Equal(t, 1024, sent.MaxTokens)
	assert.Contains(t, sent.System, "Lukas")
	assert.Equal(t, assistantdomain.RoleUser, sent.Messages[0].Role)
	f.quota.AssertExpectations(t)
	f.usage.AssertExpectations(t)
}

func TestInvokeProviderFailureRecordsFailedUsage(t *testing.T) {
	f := newFixture(t, config.RateLimitConfig{})
	user := testsupport.User()
	uid := user.UserID.String()
	f.provider.err = errors.New("dial tcp 10.0.0.1:443: connection refused")

	f.quota.On("Guard", mock.Anything, user, uid, "chat").Return(unlimited(uid, "chat"), nil)
	f.usage.On("Record", mock.Anything, auth.System(), mock.MatchedBy(func(req usagedomain.RecordRequest) bool {
		return req.Success != nil && !*req.Success && req.Cost == 0 && req.Metadata["error"] != nil
	})).Return(&usagedomain.UsageEvent{ID: 7}, nil).Once()

	_, err := f.svc.Invoke(context.Background(), user, chatRequest())
	require.ErrorIs(t, err, assistantdomain.ErrProviderUnavailable)

	e, ok := errs.As(err)
	require.True(t, ok)
	assert.NotContains(t, e.Message, "dial tcp")
	f.usage.AssertExpectations(t)
}

func TestInvokeQuotaExceededSkipsProvider(t *testing.T) {
	f := newFixture(t, config.RateLimitConfig{})
	user := testsupport.User()
	uid := user.UserID.String()

	f.quota.On("Guard", mock.Anything, user, uid, "document_analysis").
		Return(limited(uid, "document_analysis", 50, 50), quotadomain.ErrQuotaExceeded)

	req := chatRequest()
	req.Feature = "document_analysis"
	_, err := f.svc.Invoke(context.Background(), user, req)
	assert.ErrorIs(t, err, quotadomain.ErrQuotaExceeded)
	assert.Empty(t, f.provider.calls)
	f.usage.AssertNotCalled(t, "Record", mock.Anything, mock.Anything, mock.Anything)
}

func TestInvokeLastUnitReportsExhaustedQuota(t *testing.T) {
	f := newFixture(t, config.RateLimitConfig{})
	user := testsupport.User()
	uid := user.UserID.String()

	f.quota.On("Guard", mock.Anything, user, uid, "document_analysis").
		Return(limited(uid, "document_analysis", 50, 49), nil).Twice()
	f.usage.On("Record", mock.Anything, auth.System(), mock.Anything).
		Return(&usagedomain.UsageEvent{ID: 9}, nil).Once()

	req := chatRequest()
	req.Feature = "document_analysis"
	resp, err := f.svc.Invoke(context.Background(), user, req)
	require.NoError(t, err)
	require.NotNil(t, resp.Quota)

	got := resp.Quota
	assert.EqualValues(t, 50, got.Used)
	require.NotNil(t, got.Remaining)
	assert.EqualValues(t, 0, *got.Remaining)
	assert.True(t, got.Exceeded)
	assert.False(t, got.Allowed)
	assert.Equal(t, !got.Exceeded, got.Allowed)
}

func TestAfterCallKeepsAdvisoryAllowed(t *testing.T) {
	d := limited("u", "document_analysis", 50, 50)
	d.Advisory = true
	d.Allowed = true

	got := afterCall(d)
	assert.EqualValues(t, 51, got.Used)
	assert.True(t, got.Exceeded)
	assert.True(t, got.Allowed)
}

func TestTruncateKeepsRuneBoundary(t *testing.T) {
	msg := "a" + strings.Repeat("é", 300)

	got := truncate(msg, 500)
	assert.True(t, utf8.ValidString(got))
	assert.Len(t, got, 499)
	assert.Equal(t, "short", truncate("short", 500))
}

func TestInvokeLimitedPlanRechecksUnderLock(t *testing.T) {
	f := newFixture(t, config.RateLimitConfig{Enabled: true, QuotaLockTTL: time.Minute})
	user := testsupport.User()
	uid := user.UserID.String()

	f.quota.On("Guard", mock.Anything, user, uid, "document_analysis").
		Return(limited(uid, "document_analysis", 50, 49), nil).Once()
	f.quota.On("Guard", mock.Anything, user, uid, "document_analysis").
		Return(limited(uid, "document_analysis", 50, 50), quotadomain.ErrQuotaExceeded).Once()

	req := chatRequest()
	req.Feature = "document_analysis"
	_, err := f.svc.Invoke(context.Background(), user, req)
	assert.ErrorIs(t, err, quotadomain.ErrQuotaExceeded)
	assert.Empty(t, f.provider.calls)
	f.quota.AssertNumberOfCalls(t, "Guard", 2)

	lockKey := fmt.Sprintf("assistant:quota:%s:%s", uid, "document_analysis")
	assert.False(t, f.redis.Exists(lockKey))
}

func TestInvokeLimitedPlanLockHeld(t *testing.T) {
	f := newFixture(t, config.RateLimitConfig{Enabled: true, QuotaLockTTL: time.Minute})
	user := testsupport.User()
	uid := user.UserID.String()

	lockKey := fmt.Sprintf("assistant:quota:%s:%s", uid, "document_analysis")
	require.NoError(t, f.redis.Set(lockKey, "other-owner"))
	f.quota.On("Guard", mock.Anything, user, uid, "document_analysis").
		Return(limited(uid, "document_analysis", 50, 10), nil).Once()

	req := chatRequest()
	req.Feature = "document_analysis"
	_, err := f.svc.Invoke(context.Background(), user, req)
	assert.ErrorIs(t, err, assistantdomain.ErrQuotaBusy)
	assert.Empty(t, f.provider.calls)
}

func TestInvokeRateLimited(t *testing.T) {
	f := newFixture(t, config.RateLimitConfig{Enabled: true, AssistantUserRate: 0.001, AssistantUserBurst: 1})
	user := testsupport.User()
	uid := user.UserID.String()

	f.quota.On("Guard", mock.Anything, user, uid, "chat").Return(unlimited(uid, "chat"), nil)
	f.usage.On("Record", mock.Anything, mock.Anything, mock.Anything).Return(&usagedomain.UsageEvent{ID: 1}, nil)

	_, err := f.svc.Invoke(context.Background(), user, chatRequest())
	require.NoError(t, err)

	_, err = f.svc.Invoke(context.Background(), user, chatRequest())
	assert.ErrorIs(t, err, assistantdomain.ErrRateLimited)
	assert.Len(t, f.provider.calls, 1)
}

func TestInvokeValidation(t *testing.T) {
	f := newFixture(t, config.RateLimitConfig{})
	user := testsupport.User()
	temperature := 3.0

	cases := []struct {
		name   string
		mutate func(*assistantdomain.InvokeRequest)
		want   error
	}{
		{"unknown feature", func(r *assistantdomain.InvokeRequest) { r.Feature = "teleport" }, assistantdomain.ErrInvalidFeature},
		{"no messages", func(r *assistantdomain.InvokeRequest) { r.Messages = nil }, assistantdomain.ErrInvalidMessages},
		{"blank messages", func(r *assistantdomain.InvokeRequest) {
			r.Messages = []assistantdomain.Message{{Content: "  "}}
		}, assistantdomain.ErrInvalidMessages},
		{"bad role", func(r *assistantdomain.InvokeRequest) {
			r.Messages = []assistantdomain.Message{{Role: "tool", Content: "x"}}
		}, assistantdomain.ErrInvalidMessages},
		{"too many tokens", func(r *assistantdomain.InvokeRequest) { r.MaxTokens = 8193 }, assistantdomain.ErrInvalidMaxTokens},
		{"negative tokens", func(r *assistantdomain.InvokeRequest) { r.MaxTokens = -1 }, assistantdomain.ErrInvalidMaxTokens},
		{"temperature", func(r *assistantdomain.InvokeRequest) { r.Temperature = &temperature }, assistantdomain.ErrInvalidTemperature},
		{"provider", func(r *assistantdomain.InvokeRequest) { r.Provider = "gemini" }, assistantdomain.ErrInvalidProvider},
		{"user", func(r *assistantdomain.InvokeRequest) { r.UserID = "nope" }, assistantdomain.ErrInvalidUser},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := chatRequest()
			tc.mutate(&req)
			_, err := f.svc.Invoke(context.Background(), user, req)
			assert.ErrorIs(t, err, tc.want)
		})
	}
	assert.Empty(t, f.provider.calls)
}

func TestInvokeForOtherUserForbidden(t *testing.T) {
	f := newFixture(t, config.RateLimitConfig{})
	req := chatRequest()
	req.UserID = testsupport.User().UserID.String()

	_, err := f.svc.Invoke(context.Background(), testsupport.User(), req)
	assert.ErrorIs(t, err, authorization.ErrForbidden)
}
