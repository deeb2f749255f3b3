package service

import (
	"context"
	"errors"
	"io"
	"math"
	"strings"
	"unicode/utf8"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	aggregatedomain "github.com/lukasai/lukas/internal/aggregate/domain"
	"github.com/lukasai/lukas/internal/auth"
	"github.com/lukasai/lukas/internal/authorization"
	"github.com/lukasai/lukas/internal/clock"
	"github.com/lukasai/lukas/internal/providers/pdf"
	reportdomain "github.com/lukasai/lukas/internal/report/domain"
	usagedomain "github.com/lukasai/lukas/internal/usage/domain"
	"github.com/lukasai/lukas/pkg/db/option"
	"github.com/lukasai/lukas/pkg/db/pagination"
	"github.com/lukasai/lukas/pkg/repository"
	"github.com/lukasai/lukas/pkg/rls"
)

const (
	maxTitleLength     = 200
	pdfSuggestionLimit = 5
)

type ServiceParam struct {
	fx.In

	DB          *gorm.DB
	Log         *zap.Logger
	GenID       *snowflake.Node
	Clock       clock.Clock
	Authz       authorization.Service
	Aggregates  aggregatedomain.Service
	Suggestions repository.Repository[reportdomain.Suggestion]
	PDF         pdf.Provider
}

type Service struct {
	db  *gorm.DB
	log *zap.Logger

	genID       *snowflake.Node
	clock       clock.Clock
	authz       authorization.Service
	aggregates  aggregatedomain.Service
	suggestions repository.Repository[reportdomain.Suggestion]
	pdf         pdf.Provider
}

func NewService(p ServiceParam) reportdomain.Service {
	return &Service{
		db:  p.DB,
		log: p.Log.Named("report.service"),

		genID:       p.GenID,
		clock:       p.Clock,
		authz:       p.Authz,
		aggregates:  p.Aggregates,
		suggestions: p.Suggestions,
		pdf:         p.PDF,
	}
}

func (s *Service) Summarize(ctx context.Context, actor auth.Principal, req reportdomain.SummaryRequest) (reportdomain.Summary, error) {
	userID, err := resolveUser(actor, req.UserID)
	if err != nil {
		return reportdomain.Summary{}, err
	}
	period, err := s.resolvePeriod(req)
	if err != nil {
		return reportdomain.Summary{}, err
	}
	if err := s.authz.AuthorizeUser(ctx, actor, userID, authorization.ObjectReport, authorization.ActionRead); err != nil {
		return reportdomain.Summary{}, err
	}

	overall, err := s.aggregates.Overall(ctx, userID, period)
	if err != nil {
		return reportdomain.Summary{}, err
	}
	rows, err := s.aggregates.ByFeature(ctx, userID, period)
	if err != nil {
		return reportdomain.Summary{}, err
	}

	summary := reportdomain.Summary{
		UserID:          userID,
		PeriodStart:     period.Start,
		PeriodEnd:       period.End,
		TotalCost:       overall.TotalCost,
		TotalTokens:     overall.TotalTokens,
		TotalRequests:   overall.UsageCount,
		AvgResponseTime: overall.AvgResponseTime,
		SuccessRate:     overall.SuccessRate,
		Features:        make([]reportdomain.FeatureSummary, 0, len(rows)),
	}
	for _, row := range rows {
		summary.Features = append(summary.Features, reportdomain.FeatureSummary{
			Feature:         row.Feature,
			UsageCount:      row.UsageCount,
			TotalCost:       row.TotalCost,
			TotalTokens:     row.TotalTokens,
			AvgResponseTime: row.AvgResponseTime,
			SuccessRate:     row.SuccessRate,
		})
	}
	return summary, nil
}

func (s *Service) RenderSummaryPDF(ctx context.Context, actor auth.Principal, req reportdomain.SummaryRequest) ([]byte, error) {
	summary, err := s.Summarize(ctx, actor, req)
	if err != nil {
		return nil, err
	}

	applied := false
	open, err := s.ListSuggestions(ctx, actor, reportdomain.ListSuggestionsRequest{
		UserID:   summary.UserID.String(),
		Applied:  &applied,
		PageSize: pdfSuggestionLimit,
	})
	if err != nil {
		return nil, err
	}

	reader, err := s.pdf.GenerateUsageSummary(ctx, toSummaryData(summary, open.Suggestions, s.clock.Now()))
	if err != nil {
		return nil, err
	}
	if reader == nil {
		return nil, nil
	}
	return io.ReadAll(reader)
}

func (s *Service) CreateSuggestion(ctx context.Context, actor auth.Principal, req reportdomain.CreateSuggestionRequest) (*reportdomain.Suggestion, error) {
	userID, err := resolveUser(actor, req.UserID)
	if err != nil {
		return nil, err
	}
	title, err := normalizeTitle(req.Title)
	if err != nil {
		return nil, err
	}
	impact, err := parseImpact(req.Impact)
	if err != nil {
		return nil, err
	}
	if err := validateSavings(req.EstimatedSavings); err != nil {
		return nil, err
	}
	feature, err := normalizeFeature(req.Feature)
	if err != nil {
		return nil, err
	}
	if err := s.authz.AuthorizeUser(ctx, actor, userID, authorization.ObjectSuggestion, authorization.ActionManage); err != nil {
		return nil, err
	}

	now := s.clock.Now()
	suggestion := &reportdomain.Suggestion{
		ID:               s.genID.Generate(),
		UserID:           userID,
		Title:            title,
		Description:      optionalString(req.Description),
		Impact:           impact,
		EstimatedSavings: req.EstimatedSavings,
		Feature:          feature,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	err = rls.Transaction(ctx, s.db, userID, func(tx *gorm.DB) error {
		return s.suggestions.WithTrx(tx).Create(ctx, suggestion)
	})
	if err != nil {
		return nil, err
	}
	return suggestion, nil
}

func (s *Service) ListSuggestions(ctx context.Context, actor auth.Principal, req reportdomain.ListSuggestionsRequest) (reportdomain.ListSuggestionsResponse, error) {
	userID, err := resolveUser(actor, req.UserID)
	if err != nil {
		return reportdomain.ListSuggestionsResponse{}, err
	}
	if err := s.authz.AuthorizeUser(ctx, actor, userID, authorization.ObjectSuggestion, authorization.ActionRead); err != nil {
		return reportdomain.ListSuggestionsResponse{}, err
	}

	limit := pagination.Pagination{PageSize: req.PageSize}.Limit()
	opts := []option.QueryOption{
		option.WithOrder("id", true),
		option.WithLimit(limit + 1),
	}
	if req.Applied != nil {
		opts = append(opts, option.WithWhere("is_applied = ?", *req.Applied))
	}
	if token := strings.TrimSpace(req.PageToken); token != "" {
		cursor, err := pagination.DecodeCursor(token)
		if err != nil {
			return reportdomain.ListSuggestionsResponse{}, reportdomain.ErrInvalidPageToken
		}
		beforeID, err := snowflake.ParseString(cursor.ID)
		if err != nil || beforeID == 0 {
			return reportdomain.ListSuggestionsResponse{}, reportdomain.ErrInvalidPageToken
		}
		opts = append(opts, option.WithWhere("id < ?", beforeID))
	}

	var items []*reportdomain.Suggestion
	err = rls.Transaction(ctx, s.db, userID, func(tx *gorm.DB) error {
		var err error
		items, err = s.suggestions.WithTrx(tx).Find(ctx, &reportdomain.Suggestion{UserID: userID}, opts...)
		return err
	})
	if err != nil {
		return reportdomain.ListSuggestionsResponse{}, err
	}

	page, pageInfo := pagination.BuildCursorPageInfo(items, limit, func(item *reportdomain.Suggestion) string {
		token, err := pagination.EncodeCursor(pagination.Cursor{ID: item.ID.String()})
		if err != nil {
			return ""
		}
		return token
	})
	out := make([]reportdomain.Suggestion, 0, len(page))
	for _, item := range page {
		out = append(out, *item)
	}
	return reportdomain.ListSuggestionsResponse{PageInfo: pageInfo, Suggestions: out}, nil
}

func (s *Service) GetSuggestion(ctx context.Context, actor auth.Principal, id string) (*reportdomain.Suggestion, error) {
	return s.loadForActor(ctx, actor, id, authorization.ActionRead)
}

func (s *Service) UpdateSuggestion(ctx context.Context, actor auth.Principal, req reportdomain.UpdateSuggestionRequest) (*reportdomain.Suggestion, error) {
	fields := map[string]any{}
	if req.Title != nil {
		title, err := normalizeTitle(*req.Title)
		if err != nil {
			return nil, err
		}
		fields["title"] = title
	}
	if req.Description != nil {
		fields["description"] = optionalString(*req.Description)
	}
	if req.Impact != nil {
		impact, err := parseImpact(*req.Impact)
		if err != nil {
			return nil, err
		}
		fields["impact"] = impact
	}
	if req.EstimatedSavings != nil {
		if err := validateSavings(*req.EstimatedSavings); err != nil {
			return nil, err
		}
		fields["estimated_savings"] = *req.EstimatedSavings
	}
	if req.Feature != nil {
		feature, err := normalizeFeature(*req.Feature)
		if err != nil {
			return nil, err
		}
		fields["feature"] = feature
	}

	existing, err := s.loadForActor(ctx, actor, req.ID, authorization.ActionManage)
	if err != nil {
		return nil, err
	}

	var updated *reportdomain.Suggestion
	err = s.withProposed(ctx, existing, func(store repository.Repository[reportdomain.Suggestion], current *reportdomain.Suggestion) error {
		fields["updated_at"] = s.clock.Now()
		if _, err := store.Update(ctx, current.ID, fields); err != nil {
			return err
		}
		updated, err = store.FindOne(ctx, &reportdomain.Suggestion{ID: current.ID})
		return err
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (s *Service) DeleteSuggestion(ctx context.Context, actor auth.Principal, id string) error {
	existing, err := s.loadForActor(ctx, actor, id, authorization.ActionManage)
	if err != nil {
		return err
	}
	return s.withProposed(ctx, existing, func(store repository.Repository[reportdomain.Suggestion], current *reportdomain.Suggestion) error {
		_, err := store.Delete(ctx, current.ID)
		return err
	})
}

func (s *Service) ApplySuggestion(ctx context.Context, actor auth.Principal, id string) (*reportdomain.Suggestion, error) {
	existing, err := s.loadForActor(ctx, actor, id, authorization.ActionManage)
	if err != nil {
		return nil, err
	}

	var applied *reportdomain.Suggestion
	err = s.withProposed(ctx, existing, func(store repository.Repository[reportdomain.Suggestion], current *reportdomain.Suggestion) error {
		now := s.clock.Now()
		if _, err := store.Update(ctx, current.ID, map[string]any{
			"is_applied": true,
			"applied_at": now,
			"updated_at": now,
		}); err != nil {
			return err
		}
		current.IsApplied = true
		current.AppliedAt = &now
		current.UpdatedAt = now
		applied = current
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("suggestion applied",
		zap.String("suggestion_id", applied.ID.String()),
		zap.Float64("estimated_savings", applied.EstimatedSavings),
	)
	return applied, nil
}

// withProposed re-reads the suggestion under a row lock and only calls fn
// while it is still proposed.
func (s *Service) withProposed(
	ctx context.Context,
	existing *reportdomain.Suggestion,
	fn func(store repository.Repository[reportdomain.Suggestion], current *reportdomain.Suggestion) error,
) error {
	return rls.Transaction(ctx, s.db, existing.UserID, func(tx *gorm.DB) error {
		store := s.suggestions.WithTrx(tx)
		current, err := store.FindOne(ctx, &reportdomain.Suggestion{ID: existing.ID}, option.WithLockForUpdate())
		if err != nil {
			return err
		}
		if current == nil {
			return reportdomain.ErrSuggestionNotFound
		}
		if current.Status() != reportdomain.SuggestionStatusProposed {
			return reportdomain.ErrSuggestionApplied
		}
		return fn(store, current)
	})
}

func (s *Service) loadForActor(ctx context.Context, actor auth.Principal, rawID string, action string) (*reportdomain.Suggestion, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(rawID))
	if err != nil || id == 0 {
		return nil, reportdomain.ErrInvalidSuggestionID
	}
	suggestion, err := s.suggestions.FindOne(ctx, &reportdomain.Suggestion{ID: id})
	if err != nil {
		return nil, err
	}
	if suggestion == nil {
		return nil, reportdomain.ErrSuggestionNotFound
	}
	if err := s.authz.AuthorizeUser(ctx, actor, suggestion.UserID, authorization.ObjectSuggestion, action); err != nil {
		if errors.Is(err, authorization.ErrForbidden) && !actor.Owns(suggestion.UserID) {
			return nil, reportdomain.ErrSuggestionNotFound
		}
		return nil, err
	}
	return suggestion, nil
}

func (s *Service) resolvePeriod(req reportdomain.SummaryRequest) (aggregatedomain.Period, error) {
	if req.PeriodStart.IsZero() && req.PeriodEnd.IsZero() {
		start, end := clock.MonthBounds(s.clock.Now())
		return aggregatedomain.Period{Start: start, End: end}, nil
	}
	period := aggregatedomain.Period{Start: req.PeriodStart, End: req.PeriodEnd}.UTC()
	if !period.Valid() {
		return aggregatedomain.Period{}, reportdomain.ErrInvalidPeriod
	}
	return period, nil
}

func resolveUser(actor auth.Principal, raw string) (uuid.UUID, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		if actor.UserID == uuid.Nil {
			return uuid.Nil, reportdomain.ErrInvalidUser
		}
		return actor.UserID, nil
	}
	userID, err := uuid.Parse(raw)
	if err != nil || userID == uuid.Nil {
		return uuid.Nil, reportdomain.ErrInvalidUser
	}
	return userID, nil
}

func normalizeTitle(raw string) (string, error) {
	title := strings.TrimSpace(raw)
	if title == "" || utf8.RuneCountInString(title) > maxTitleLength {
		return "", reportdomain.ErrInvalidTitle
	}
	return title, nil
}

func parseImpact(raw string) (reportdomain.Impact, error) {
	switch reportdomain.Impact(strings.ToLower(strings.TrimSpace(raw))) {
	case reportdomain.ImpactLow:
		return reportdomain.ImpactLow, nil
	case reportdomain.ImpactMedium, "":
		return reportdomain.ImpactMedium, nil
	case reportdomain.ImpactHigh:
		return reportdomain.ImpactHigh, nil
	default:
		return "", reportdomain.ErrInvalidImpact
	}
}

func validateSavings(v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return reportdomain.ErrInvalidEstimatedSavings
	}
	return nil
}

func normalizeFeature(raw string) (*string, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	feature, ok := usagedomain.ParseFeature(raw)
	if !ok {
		return nil, reportdomain.ErrInvalidFeature
	}
	value := string(feature)
	return &value, nil
}

func optionalString(v string) *string {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil
	}
	return &v
}
