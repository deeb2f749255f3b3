package domain

import "github.com/lukasai/lukas/pkg/errs"

var (
	ErrInvalidUser           = errs.Validation("invalid_user", "user_id")
	ErrInvalidFeature        = errs.Validation("invalid_feature", "feature")
	ErrInvalidInputTokens    = errs.Validation("invalid_input_tokens", "input_tokens")
	ErrInvalidOutputTokens   = errs.Validation("invalid_output_tokens", "output_tokens")
	ErrInvalidTokensUsed     = errs.Validation("invalid_tokens_used", "tokens_used")
	ErrInvalidCost           = errs.Validation("invalid_cost", "cost")
	ErrInvalidResponseTime   = errs.Validation("invalid_response_time", "response_time_ms")
	ErrInvalidOccurredAt     = errs.Validation("invalid_occurred_at", "occurred_at")
	ErrInvalidIdempotencyKey = errs.Validation("invalid_idempotency_key", "idempotency_key")
	ErrInvalidEventID        = errs.Validation("invalid_event_id", "id")
	ErrInvalidPeriod         = errs.Validation("invalid_period", "period")
	ErrInvalidPageToken      = errs.Validation("invalid_page_token", "page_token")

	ErrUsageEventNotFound = errs.NotFound("usage_event_not_found")

	ErrAlreadyCompensated   = errs.Conflict("usage_event_already_compensated")
	ErrCompensationReversal = errs.Conflict("compensation_cannot_be_compensated")
)
