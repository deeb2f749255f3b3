package domain

import "github.com/lukasai/lukas/pkg/errs"

var (
	ErrInvalidUser        = errs.Validation("invalid_user", "user_id")
	ErrInvalidFeature     = errs.Validation("invalid_feature", "feature")
	ErrInvalidMessages    = errs.Validation("invalid_messages", "messages")
	ErrInvalidMaxTokens   = errs.Validation("invalid_max_tokens", "max_tokens")
	ErrInvalidTemperature = errs.Validation("invalid_temperature", "temperature")
	ErrInvalidProvider    = errs.Validation("invalid_provider", "provider")

	ErrRateLimited = errs.RateLimited("assistant_rate_limited")
	ErrQuotaBusy   = errs.RateLimited("quota_check_in_progress")

	ErrProviderUnavailable = errs.ExternalService("ai_provider_unavailable")
)
