package domain

import "github.com/lukasai/lukas/pkg/errs"

var (
	ErrInvalidUser    = errs.Validation("invalid_user", "user_id")
	ErrInvalidFeature = errs.Validation("invalid_feature", "feature")

	ErrQuotaExceeded = errs.QuotaExceeded("quota_exceeded")
)
