package domain

import "github.com/lukasai/lukas/pkg/errs"

var (
	ErrInvalidUser         = errs.Validation("invalid_user", "user_id")
	ErrInvalidPlan         = errs.Validation("invalid_plan", "plan_code")
	ErrInvalidSubscription = errs.Validation("invalid_subscription", "id")
	ErrInvalidProvider     = errs.Validation("invalid_provider", "provider")
	ErrInvalidStatus       = errs.Validation("invalid_status", "status")
	ErrInvalidPeriod       = errs.Validation("invalid_period", "current_period_end")
	ErrUnknownSubscriber   = errs.Validation("unknown_subscriber", "user_id")

	ErrSubscriptionNotFound = errs.NotFound("subscription_not_found")

	ErrInvalidTransition = errs.Conflict("invalid_transition")
)
