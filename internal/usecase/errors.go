package usecase

import (
	"context"
	"errors"
	"fmt"

	"launchpad/internal/domain"
)

var rejections = []error{
	domain.ErrInvalidArgument,
	domain.ErrPromoCodeNotFound,
	domain.ErrPromoCodeExpired,
	domain.ErrUsageLimitReached,
	domain.ErrPerUserLimitReached,
	domain.ErrGenerationExhausted,
}

// isDomainRejection reports business-rule errors that go back to the caller as is.
func isDomainRejection(err error) bool {
	for _, r := range rejections {
		if errors.Is(err, r) {
			return true
		}
	}
	return false
}

// failClosed maps infrastructure failures on write paths. Timeouts become
// ErrStoreUnavailable; anything already classified passes through.
func failClosed(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, domain.ErrStoreUnavailable), isDomainRejection(err):
		return err
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}
	return err
}
