package authorization

import "github.com/lukasai/lukas/pkg/errs"

var (
	ErrForbidden     = errs.Authorization("forbidden")
	ErrInvalidActor  = errs.Authorization("invalid_actor")
	ErrInvalidObject = errs.Validation("invalid_object", "object")
	ErrInvalidAction = errs.Validation("invalid_action", "action")
)
