package server

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	aggregatedomain "github.com/lukasai/lukas/internal/aggregate/domain"
	assistantdomain "github.com/lukasai/lukas/internal/assistant/domain"
	auditdomain "github.com/lukasai/lukas/internal/audit/domain"
	"github.com/lukasai/lukas/internal/auth"
	paymentdomain "github.com/lukasai/lukas/internal/payment/domain"
	quotadomain "github.com/lukasai/lukas/internal/quota/domain"
	reportdomain "github.com/lukasai/lukas/internal/report/domain"
	usagedomain "github.com/lukasai/lukas/internal/usage/domain"
)

type mockUsageService struct{ mock.Mock }

func (m *mockUsageService) Record(ctx context.Context, actor auth.Principal, req usagedomain.RecordRequest) (*usagedomain.UsageEvent, error) {
	args := m.Called(ctx, actor, req)
	event, _ := args.Get(0).(*usagedomain.UsageEvent)
	return event, args.Error(1)
}

func (m *mockUsageService) Compensate(ctx context.Context, actor auth.Principal, req usagedomain.CompensateRequest) (*usagedomain.UsageEvent, error) {
	args := m.Called(ctx, actor, req)
	event, _ := args.Get(0).(*usagedomain.UsageEvent)
	return event, args.Error(1)
}

func (m *mockUsageService) Get(ctx context.Context, actor auth.Principal, id string) (*usagedomain.UsageEvent, error) {
	args := m.Called(ctx, actor, id)
	event, _ := args.Get(0).(*usagedomain.UsageEvent)
	return event, args.Error(1)
}

func (m *mockUsageService) List(ctx context.Context, actor auth.Principal, req usagedomain.ListRequest) (usagedomain.ListResponse, error) {
	args := m.Called(ctx, actor, req)
	return args.Get(0).(usagedomain.ListResponse), args.Error(1)
}

type mockAggregateService struct{ mock.Mock }

func (m *mockAggregateService) Aggregate(ctx context.Context, actor auth.Principal, req aggregatedomain.AggregateRequest) (aggregatedomain.Aggregate, error) {
	args := m.Called(ctx, actor, req)
	return args.Get(0).(aggregatedomain.Aggregate), args.Error(1)
}

func (m *mockAggregateService) CountInPeriod(ctx context.Context, userID uuid.UUID, feature string, period aggregatedomain.Period) (int64, error) {
	args := m.Called(ctx, userID, feature, period)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockAggregateService) Overall(ctx context.Context, userID uuid.UUID, period aggregatedomain.Period) (aggregatedomain.Aggregate, error) {
	args := m.Called(ctx, userID, period)
	return args.Get(0).(aggregatedomain.Aggregate), args.Error(1)
}

func (m *mockAggregateService) ByFeature(ctx context.Context, userID uuid.UUID, period aggregatedomain.Period) ([]aggregatedomain.Aggregate, error) {
	args := m.Called(ctx, userID, period)
	out, _ := args.Get(0).([]aggregatedomain.Aggregate)
	return out, args.Error(1)
}

type mockQuotaService struct{ mock.Mock }

func (m *mockQuotaService) Check(ctx context.Context, actor auth.Principal, userID string, feature string) (quotadomain.Decision, error) {
	args := m.Called(ctx, actor, userID, feature)
	return args.Get(0).(quotadomain.Decision), args.Error(1)
}

func (m *mockQuotaService) Guard(ctx context.Context, actor auth.Principal, userID string, feature string) (quotadomain.Decision, error) {
	args := m.Called(ctx, actor, userID, feature)
	return args.Get(0).(quotadomain.Decision), args.Error(1)
}

type mockReportService struct{ mock.Mock }

func (m *mockReportService) Summarize(ctx context.Context, actor auth.Principal, req reportdomain.SummaryRequest) (reportdomain.Summary, error) {
	args := m.Called(ctx, actor, req)
	return args.Get(0).(reportdomain.Summary), args.Error(1)
}

func (m *mockReportService) RenderSummaryPDF(ctx context.Context, actor auth.Principal, req reportdomain.SummaryRequest) ([]byte, error) {
	args := m.Called(ctx, actor, req)
	out, _ := args.Get(0).([]byte)
	return out, args.Error(1)
}

func (m *mockReportService) CreateSuggestion(ctx context.Context, actor auth.Principal, req reportdomain.CreateSuggestionRequest) (*reportdomain.Suggestion, error) {
	args := m.Called(ctx, actor, req)
	out, _ := args.Get(0).(*reportdomain.Suggestion)
	return out, args.Error(1)
}

func (m *mockReportService) ListSuggestions(ctx context.Context, actor auth.Principal, req reportdomain.ListSuggestionsRequest) (reportdomain.ListSuggestionsResponse, error) {
	args := m.Called(ctx, actor, req)
	return args.Get(0).(reportdomain.ListSuggestionsResponse), args.Error(1)
}

func (m *mockReportService) GetSuggestion(ctx context.Context, actor auth.Principal, id string) (*reportdomain.Suggestion, error) {
	args := m.Called(ctx, actor, id)
	out, _ := args.Get(0).(*reportdomain.Suggestion)
	return out, args.Error(1)
}

func (m *mockReportService) UpdateSuggestion(ctx context.Context, actor auth.Principal, req reportdomain.UpdateSuggestionRequest) (*reportdomain.Suggestion, error) {
	args := m.Called(ctx, actor, req)
	out, _ := args.Get(0).(*reportdomain.Suggestion)
	return out, args.Error(1)
}

func (m *mockReportService) DeleteSuggestion(ctx context.Context, actor auth.Principal, id string) error {
	return m.Called(ctx, actor, id).Error(0)
}

func (m *mockReportService) ApplySuggestion(ctx context.Context, actor auth.Principal, id string) (*reportdomain.Suggestion, error) {
	args := m.Called(ctx, actor, id)
	out, _ := args.Get(0).(*reportdomain.Suggestion)
	return out, args.Error(1)
}

type mockAssistantService struct{ mock.Mock }

func (m *mockAssistantService) Invoke(ctx context.Context, actor auth.Principal, req assistantdomain.InvokeRequest) (*assistantdomain.InvokeResponse, error) {
	args := m.Called(ctx, actor, req)
	out, _ := args.Get(0).(*assistantdomain.InvokeResponse)
	return out, args.Error(1)
}

type mockPaymentService struct{ mock.Mock }

func (m *mockPaymentService) HandleWebhook(ctx context.Context, provider string, payload []byte, headers http.Header) (paymentdomain.WebhookResult, error) {
	args := m.Called(ctx, provider, payload, headers)
	return args.Get(0).(paymentdomain.WebhookResult), args.Error(1)
}

type mockAuditService struct{ mock.Mock }

func (m *mockAuditService) Record(ctx context.Context, actor auth.Principal, entry auditdomain.Entry) error {
	return m.Called(ctx, actor, entry).Error(0)
}

func (m *mockAuditService) List(ctx context.Context, actor auth.Principal, req auditdomain.ListRequest) (auditdomain.ListResponse, error) {
	args := m.Called(ctx, actor, req)
	return args.Get(0).(auditdomain.ListResponse), args.Error(1)
}
