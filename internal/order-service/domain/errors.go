package domain

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidRequest      = errors.New("invalid request")
	ErrOrderNotFound       = errors.New("order not found")
	ErrLineNotFound        = errors.New("order line not found")
	ErrOrderHasLines       = errors.New("order still has lines")
	ErrUserNotFound        = errors.New("user not found")
	ErrItemNotFound        = errors.New("catalog item not found")
	ErrInsufficientStock   = errors.New("insufficient stock")
	ErrUpstreamUnavailable = errors.New("upstream service unavailable")
	ErrAlreadyOwned        = errors.New("item already in library")
	ErrNoFreeLicense       = errors.New("no free license available")
	ErrDuplicateRequest    = errors.New("request with this idempotency key is still in progress")
)

// Invalidf builds an ErrInvalidRequest with a human readable reason.
func Invalidf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidRequest, fmt.Sprintf(format, args...))
}

// Validate checks the shape of a purchase request. It does not consult any
// collaborator.
func (c CreateOrder) Validate() error {
	if c.UserID == "" {
		return Invalidf("userId is required")
	}
	if len(c.Lines) == 0 {
		return Invalidf("at least one line is required")
	}
	for i, l := range c.Lines {
		if err := l.Validate(); err != nil {
			return fmt.Errorf("line %d: %w", i, err)
		}
	}
	return nil
}

func (l LineRequest) Validate() error {
	if l.ItemID == "" {
		return Invalidf("itemId is required")
	}
	if l.Quantity < 1 {
		return Invalidf("quantity must be at least 1")
	}
	return nil
}
