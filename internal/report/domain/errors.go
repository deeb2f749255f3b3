package domain

import "github.com/lukasai/lukas/pkg/errs"

var (
	ErrInvalidUser             = errs.Validation("invalid_user", "user_id")
	ErrInvalidPeriod           = errs.Validation("invalid_period", "period")
	ErrInvalidSuggestionID     = errs.Validation("invalid_suggestion_id", "id")
	ErrInvalidTitle            = errs.Validation("invalid_title", "title")
	ErrInvalidImpact           = errs.Validation("invalid_impact", "impact")
	ErrInvalidEstimatedSavings = errs.Validation("invalid_estimated_savings", "estimated_savings")
	ErrInvalidFeature          = errs.Validation("invalid_feature", "feature")
	ErrInvalidPageToken        = errs.Validation("invalid_page_token", "page_token")

	ErrSuggestionNotFound = errs.NotFound("suggestion_not_found")

	ErrSuggestionApplied = errs.Conflict("suggestion_already_applied")
)
