package domain

import "github.com/lukasai/lukas/pkg/errs"

var (
	ErrInvalidCode         = errs.Validation("invalid_plan_code", "code")
	ErrInvalidDisplayName  = errs.Validation("invalid_display_name", "display_name")
	ErrInvalidPrice        = errs.Validation("invalid_price", "price")
	ErrInvalidCurrency     = errs.Validation("invalid_currency", "currency")
	ErrInvalidBillingCycle = errs.Validation("invalid_billing_cycle", "billing_cycle")
	ErrInvalidFeature      = errs.Validation("invalid_feature", "feature")
	ErrInvalidLimit        = errs.Validation("invalid_limit", "features")

	ErrPlanNotFound = errs.NotFound("plan_not_found")
)
