package service

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	aggregaterepository "github.com/lukasai/lukas/internal/aggregate/repository"
	aggregateservice "github.com/lukasai/lukas/internal/aggregate/service"
	"github.com/lukasai/lukas/internal/authorization"
	"github.com/lukasai/lukas/internal/clock"
	"github.com/lukasai/lukas/internal/providers/pdf"
	reportdomain "github.com/lukasai/lukas/internal/report/domain"
	"github.com/lukasai/lukas/internal/testsupport"
	usagedomain "github.com/lukasai/lukas/internal/usage/domain"
	"github.com/lukasai/lukas/pkg/repository"
)

var testNow = time.Date(2026, time.March, 15, 12, 0, 0, 0, time.UTC)

type fixture struct {
	db    *gorm.DB
	node  *snowflake.Node
	clock *clock.FakeClock
	svc   reportdomain.Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := testsupport.OpenDB(t)
	node := testsupport.MustNode(t)
	fake := clock.NewFakeClock(testNow)
	authz := testsupport.Authz(t)

	aggregates := aggregateservice.NewService(aggregateservice.ServiceParam{
		DB:    db,
		Log:   zap.NewNop(),
		Authz: authz,
		Repo:  aggregaterepository.Provide(),
	})
	svc := NewService(ServiceParam{
		DB:          db,
		Log:         zap.NewNop(),
		GenID:       node,
		Clock:       fake,
		Authz:       authz,
		Aggregates:  aggregates,
		Suggestions: repository.ProvideStore[reportdomain.Suggestion](db),
		PDF:         pdf.New(),
	})
	return &fixture{db: db, node: node, clock: fake, svc: svc}
}

func TestSummarizeEmptyPeriod(t *testing.T) {
	f := newFixture(t)
	user := testsupport.User()

	got, err := f.svc.Summarize(context.Background(), user, reportdomain.SummaryRequest{})
	require.NoError(t, err)
	assert.Equal(t, user.UserID, got.UserID)
	assert.True(t, got.PeriodStart.Equal(time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC)))
	assert.True(t, got.PeriodEnd.Equal(time.Date(2026, time.April, 1, 0, 0, 0, 0, time.UTC)))
	assert.Zero(t, got.TotalCost)
	assert.Zero(t, got.TotalTokens)
	assert.Zero(t, got.TotalRequests)
	assert.Zero(t, got.SuccessRate)
	assert.NotNil(t, got.Features)
	assert.Empty(t, got.Features)
}

func TestSummarizeTotalsAndBreakdown(t *testing.T) {
	f := newFixture(t)
	user := testsupport.User()
	at := testNow.Add(-24 * time.Hour)

	testsupport.SeedUsage(t, f.db, f.node, user.UserID, usagedomain.FeatureChat, 3, at,
		testsupport.UsageRow{Cost: 0.02, InputTokens: 50, OutputTokens: 50, ResponseTimeMS: 100})
	testsupport.SeedUsage(t, f.db, f.node, user.UserID, usagedomain.FeatureDocumentAnalysis, 1, at,
		testsupport.UsageRow{Cost: 0.1, InputTokens: 400, OutputTokens: 100, ResponseTimeMS: 500, Failed: true})

	got, err := f.svc.Summarize(context.Background(), user, reportdomain.SummaryRequest{})
	require.NoError(t, err)
	assert.EqualValues(t, 4, got.TotalRequests)
	assert.EqualValues(t, 800, got.TotalTokens)
	assert.InDelta(t, 0.16, got.TotalCost, 1e-9)
	assert.InDelta(t, 75, got.SuccessRate, 1e-9)
	require.Len(t, got.Features, 2)

	byFeature := map[string]reportdomain.FeatureSummary{}
	for _, row := range got.Features {
		byFeature[row.Feature] = row
	}
	assert.EqualValues(t, 3, byFeature["chat"].UsageCount)
	assert.InDelta(t, 100, byFeature["chat"].SuccessRate, 1e-9)
	assert.EqualValues(t, 1, byFeature["document_analysis"].UsageCount)
	assert.Zero(t, byFeature["document_analysis"].SuccessRate)
}

func TestSummarizeRejectsHalfOpenPeriod(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Summarize(context.Background(), testsupport.User(), reportdomain.SummaryRequest{
		PeriodStart: testNow,
	})
	assert.ErrorIs(t, err, reportdomain.ErrInvalidPeriod)
}

func TestSummarizeOtherUserForbidden(t *testing.T) {
	f := newFixture(t)
	other := testsupport.User()

	_, err := f.svc.Summarize(context.Background(), testsupport.User(), reportdomain.SummaryRequest{
		UserID: other.UserID.String(),
	})
	assert.ErrorIs(t, err, authorization.ErrForbidden)

	_, err = f.svc.Summarize(context.Background(), testsupport.Admin(), reportdomain.SummaryRequest{
		UserID: other.UserID.String(),
	})
	assert.NoError(t, err)
}

func TestRenderSummaryPDF(t *testing.T) {
	f := newFixture(t)
	user := testsupport.User()
	testsupport.SeedUsage(t, f.db, f.node, user.UserID, usagedomain.FeatureChat, 2, testNow.Add(-time.Hour),
		testsupport.UsageRow{Cost: 0.01, InputTokens: 10, OutputTokens: 10, ResponseTimeMS: 100})
	_, err := f.svc.CreateSuggestion(context.Background(), user, reportdomain.CreateSuggestionRequest{
		Title: "Use a smaller model for chat",
	})
	require.NoError(t, err)

	out, err := f.svc.RenderSummaryPDF(context.Background(), user, reportdomain.SummaryRequest{})
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF")))
}

func TestCreateSuggestionDefaults(t *testing.T) {
	f := newFixture(t)
	user := testsupport.User()

	got, err := f.svc.CreateSuggestion(context.Background(), user, reportdomain.CreateSuggestionRequest{
		Title:       "  Cache repeated summaries  ",
		Description: " ",
	})
	require.NoError(t, err)
	assert.Equal(t, "Cache repeated summaries", got.Title)
	assert.Nil(t, got.Description)
	assert.Nil(t, got.Feature)
	assert.Equal(t, reportdomain.ImpactMedium, got.Impact)
	assert.Equal(t, reportdomain.SuggestionStatusProposed, got.Status())
	assert.Equal(t, user.UserID, got.UserID)
	assert.EqualValues(t, 1, testsupport.CountRows(t, f.db, "optimization_suggestions"))
}

func TestCreateSuggestionValidation(t *testing.T) {
	f := newFixture(t)
	user := testsupport.User()

	cases := []struct {
		name string
		req  reportdomain.CreateSuggestionRequest
		want error
	}{
		{"empty title", reportdomain.CreateSuggestionRequest{Title: " "}, reportdomain.ErrInvalidTitle},
		{"bad impact", reportdomain.CreateSuggestionRequest{Title: "x", Impact: "huge"}, reportdomain.ErrInvalidImpact},
		{"negative savings", reportdomain.CreateSuggestionRequest{Title: "x", EstimatedSavings: -1}, reportdomain.ErrInvalidEstimatedSavings},
		{"unknown feature", reportdomain.CreateSuggestionRequest{Title: "x", Feature: "teleport"}, reportdomain.ErrInvalidFeature},
		{"bad user", reportdomain.CreateSuggestionRequest{Title: "x", UserID: "nope"}, reportdomain.ErrInvalidUser},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.svc.CreateSuggestion(context.Background(), user, tc.req)
			assert.ErrorIs(t, err, tc.want)
		})
	}
	assert.EqualValues(t, 0, testsupport.CountRows(t, f.db, "optimization_suggestions"))
}

func TestApplySuggestion(t *testing.T) {
	f := newFixture(t)
	user := testsupport.User()
	created, err := f.svc.CreateSuggestion(context.Background(), user, reportdomain.CreateSuggestionRequest{Title: "Batch requests"})
	require.NoError(t, err)

	f.clock.Advance(time.Hour)
	applied, err := f.svc.ApplySuggestion(context.Background(), user, created.ID.String())
	require.NoError(t, err)
	assert.True(t, applied.IsApplied)
	require.NotNil(t, applied.AppliedAt)
	assert.True(t, applied.AppliedAt.Equal(testNow.Add(time.Hour)))

	_, err = f.svc.ApplySuggestion(context.Background(), user, created.ID.String())
	assert.ErrorIs(t, err, reportdomain.ErrSuggestionApplied)

	title := "Renamed"
	_, err = f.svc.UpdateSuggestion(context.Background(), user, reportdomain.UpdateSuggestionRequest{
		ID:    created.ID.String(),
		Title: &title,
	})
	assert.ErrorIs(t, err, reportdomain.ErrSuggestionApplied)

	err = f.svc.DeleteSuggestion(context.Background(), user, created.ID.String())
	assert.ErrorIs(t, err, reportdomain.ErrSuggestionApplied)

	stored, err := f.svc.GetSuggestion(context.Background(), user, created.ID.String())
	require.NoError(t, err)
	assert.Equal(t, "Batch requests", stored.Title)
	assert.Equal(t, reportdomain.SuggestionStatusApplied, stored.Status())
}

func TestUpdateAndDeleteProposedSuggestion(t *testing.T) {
	f := newFixture(t)
	user := testsupport.User()
	created, err := f.svc.CreateSuggestion(context.Background(), user, reportdomain.CreateSuggestionRequest{Title: "Trim prompts"})
	require.NoError(t, err)

	title := "Trim system prompts"
	impact := "low"
	savings := 3.25
	updated, err := f.svc.UpdateSuggestion(context.Background(), user, reportdomain.UpdateSuggestionRequest{
		ID:               created.ID.String(),
		Title:            &title,
		Impact:           &impact,
		EstimatedSavings: &savings,
	})
	require.NoError(t, err)
	assert.Equal(t, title, updated.Title)
	assert.Equal(t, reportdomain.ImpactLow, updated.Impact)
	assert.InDelta(t, savings, updated.EstimatedSavings, 1e-9)

	require.NoError(t, f.svc.DeleteSuggestion(context.Background(), user, created.ID.String()))
	_, err = f.svc.GetSuggestion(context.Background(), user, created.ID.String())
	assert.ErrorIs(t, err, reportdomain.ErrSuggestionNotFound)
}

func TestSuggestionHiddenFromOtherUsers(t *testing.T) {
	f := newFixture(t)
	owner := testsupport.User()
	created, err := f.svc.CreateSuggestion(context.Background(), owner, reportdomain.CreateSuggestionRequest{Title: "Private"})
	require.NoError(t, err)

	stranger := testsupport.User()
	_, err = f.svc.GetSuggestion(context.Background(), stranger, created.ID.String())
	assert.ErrorIs(t, err, reportdomain.ErrSuggestionNotFound)
	_, err = f.svc.ApplySuggestion(context.Background(), stranger, created.ID.String())
	assert.ErrorIs(t, err, reportdomain.ErrSuggestionNotFound)

	_, err = f.svc.GetSuggestion(context.Background(), owner, "not-an-id")
	assert.ErrorIs(t, err, reportdomain.ErrInvalidSuggestionID)
}

func TestListSuggestionsPagination(t *testing.T) {
	f := newFixture(t)
	user := testsupport.User()
	ids := make([]snowflake.ID, 0, 5)
	for i := 0; i < 5; i++ {
		s, err := f.svc.CreateSuggestion(context.Background(), user, reportdomain.CreateSuggestionRequest{Title: "s"})
		require.NoError(t, err)
		ids = append(ids, s.ID)
	}
	_, err := f.svc.ApplySuggestion(context.Background(), user, ids[0].String())
	require.NoError(t, err)

	first, err := f.svc.ListSuggestions(context.Background(), user, reportdomain.ListSuggestionsRequest{PageSize: 3})
	require.NoError(t, err)
	require.Len(t, first.Suggestions, 3)
	assert.True(t, first.HasMore)
	assert.Equal(t, ids[4], first.Suggestions[0].ID)

	second, err := f.svc.ListSuggestions(context.Background(), user, reportdomain.ListSuggestionsRequest{
		PageSize:  3,
		PageToken: first.NextPageToken,
	})
	require.NoError(t, err)
	require.Len(t, second.Suggestions, 2)
	assert.False(t, second.HasMore)
	assert.Equal(t, ids[0], second.Suggestions[1].ID)

	applied := true
	onlyApplied, err := f.svc.ListSuggestions(context.Background(), user, reportdomain.ListSuggestionsRequest{Applied: &applied})
	require.NoError(t, err)
	require.Len(t, onlyApplied.Suggestions, 1)
	assert.Equal(t, ids[0], onlyApplied.Suggestions[0].ID)

	_, err = f.svc.ListSuggestions(context.Background(), user, reportdomain.ListSuggestionsRequest{PageToken: "%%%"})
	assert.ErrorIs(t, err, reportdomain.ErrInvalidPageToken)
}

func TestFormatCount(t *testing.T) {
	cases := map[int64]string{
		0:        "0",
		999:      "999",
		1000:     "1,000",
		1234567:  "1,234,567",
		-45000:   "-45,000",
		10000000: "10,000,000",
	}
	for in, want := range cases {
		assert.Equal(t, want, formatCount(in))
	}
}
