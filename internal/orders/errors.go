package orders

import "errors"

var (
	// Validation, rejected before any side effect.
	ErrGuestEmailRequired = errors.New("either user id or guest email is required")

	// Not found, terminal for the request.
	ErrOrderNotFound = errors.New("order not found")

	// Conflict, retryable with fresh data.
	ErrStockReservationFailed  = errors.New("stock reservation failed")
	ErrInvalidStatusTransition = errors.New("invalid status transition")
)
