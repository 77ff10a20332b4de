package domain

import "errors"

var (
	// Common domain errors
	ErrNotFound           = errors.New("entity not found")
	ErrAlreadyExists      = errors.New("entity already exists")
	ErrInvalidArgument    = errors.New("invalid argument")
	ErrInvalidExecContext = errors.New("invalid execution context")
	ErrReadDatabaseRow    = errors.New("failed to read database row")
	ErrOperationFailed    = errors.New("operation failed")
	ErrStoreUnavailable   = errors.New("shared store unavailable")

	// Promo codes
	ErrPromoCodeNotFound   = errors.New("promo code not found")
	ErrPromoCodeExpired    = errors.New("promo code has expired")
	ErrUsageLimitReached   = errors.New("promo code usage limit reached")
	ErrPerUserLimitReached = errors.New("promo code per-user limit reached")
	ErrGenerationExhausted = errors.New("could not generate unique promo codes")

	// Rate limiting
	ErrRateLimited = errors.New("rate limit exceeded")
)
