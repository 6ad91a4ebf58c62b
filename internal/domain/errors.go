package domain

import "errors"

// Failure classes shared by every operation. Callers wrap them with
// fmt.Errorf("%w: ...") and handlers match with errors.Is to pick the
// HTTP status. Every failure aborts the operation with no partial
// state change.
var (
	ErrNotFound            = errors.New("not found")
	ErrUnauthorized        = errors.New("unauthorized")
	ErrInvalidArgument     = errors.New("invalid argument")
	ErrInsufficientPayment = errors.New("insufficient payment")
	ErrOutsideWindow       = errors.New("outside time window")
	ErrConflict            = errors.New("conflict")
)
