package fulfillment

import (
	"errors"
	"fmt"
)

// ErrOrderNotFound is returned when the targeted order does not exist.
var ErrOrderNotFound = errors.New("order not found")

// ErrItemNotFound is returned when the targeted item does not exist or does
// not belong to the targeted order.
var ErrItemNotFound = errors.New("order item not found")

// ErrPermissionDenied is returned when the caller is not the vendor that
// owns the targeted item or order.
var ErrPermissionDenied = errors.New("caller is not the owning vendor")

// ErrPaymentRequired is returned when an item action arrives before the
// parent order is paid.
var ErrPaymentRequired = errors.New("order is not paid")

// TransitionError rejects an action whose precondition state does not hold.
// It carries current vs. required so vendor tooling can explain why the
// action is disabled.
type TransitionError struct {
	Entity   string // "order" or "item"
	EntityID string
	Current  string
	Required string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("transition not allowed: %s %s is %q, requires %q", e.Entity, e.EntityID, e.Current, e.Required)
}
