package domain

import (
	"errors"

	"github.com/lukasai/lukas/pkg/errs"
)

var (
	ErrInvalidProvider = errs.Validation("invalid_provider", "provider")
	ErrInvalidPayload  = errs.Validation("invalid_payload", "payload")
	ErrInvalidEvent    = errs.Validation("invalid_event", "payload")
	ErrInvalidConfig   = errs.Validation("invalid_config", "provider")

	ErrProviderNotFound      = errs.NotFound("payment_provider_not_found")
	ErrProviderNotConfigured = errs.NotFound("payment_provider_not_configured")

	ErrInvalidSignature = errs.Authorization("invalid_signature")

	// ErrEventIgnored never leaves the package; ignored deliveries succeed.
	ErrEventIgnored = errors.New("event_ignored")
)
