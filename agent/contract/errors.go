package contract

import (
	"errors"
	"fmt"
)

var (
	ErrModelInvoke   = errors.New("model invoke failed")
	ErrPromptMissing = errors.New("required prompt is missing")
	ErrValidation    = errors.New("validation failed")

	ErrNotFound            = errors.New("not found")
	ErrSessionNotFound     = fmt.Errorf("session %w", ErrNotFound)
	ErrCustomerNotFound    = fmt.Errorf("customer %w", ErrNotFound)
	ErrProductNotFound     = fmt.Errorf("product %w", ErrNotFound)
	ErrOrderNotFound       = fmt.Errorf("order %w", ErrNotFound)
	ErrTransactionNotFound = fmt.Errorf("transaction %w", ErrNotFound)
	ErrTrackingNotFound    = fmt.Errorf("tracking number %w", ErrNotFound)

	ErrEmptyCart         = fmt.Errorf("%w: cart is empty", ErrValidation)
	ErrInsufficientStock = fmt.Errorf("%w: insufficient stock", ErrValidation)

	ErrPaymentFailed    = errors.New("payment failed")
	ErrStoreUnavailable = errors.New("session store unavailable")
)
