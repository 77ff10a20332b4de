package domain

import "errors"

// Stable machine-readable error codes exposed to callers.
const (
	CodeValidation          = "validation_error"
	CodeNotFound            = "not_found"
	CodeExpired             = "expired"
	CodeUsageLimitReached   = "usage_limit_reached"
	CodePerUserLimitReached = "per_user_limit_reached"
	CodeGenerationExhausted = "generation_exhausted"
	CodeStoreUnavailable    = "store_unavailable"
	CodeRateLimited         = "rate_limited"
	CodeInternal            = "internal_error"
)

var codeTable = []struct {
	err  error
	code string
}{
	{ErrInvalidArgument, CodeValidation},
	{ErrPromoCodeNotFound, CodeNotFound},
	{ErrNotFound, CodeNotFound},
	{ErrPromoCodeExpired, CodeExpired},
	{ErrUsageLimitReached, CodeUsageLimitReached},
	{ErrPerUserLimitReached, CodePerUserLimitReached},
	{ErrGenerationExhausted, CodeGenerationExhausted},
	{ErrStoreUnavailable, CodeStoreUnavailable},
	{ErrRateLimited, CodeRateLimited},
}

// Code returns the machine-readable code for err, or CodeInternal when err
// does not wrap a known domain error.
func Code(err error) string {
	if err == nil {
		return ""
	}
	for _, c := range codeTable {
		if errors.Is(err, c.err) {
			return c.code
		}
	}
	return CodeInternal
}

// Retryable reports whether the caller may retry the same request later.
// Generation exhaustion is retryable only with different parameters, so it
// is reported as not retryable here.
func Retryable(err error) bool {
	return errors.Is(err, ErrStoreUnavailable) || errors.Is(err, ErrRateLimited)
}
