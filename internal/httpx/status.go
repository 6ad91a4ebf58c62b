// Package httpx maps domain failure classes onto HTTP statuses so
// every handler rejects the same way.
package httpx

import (
	"errors"
	"net/http"

	"github.com/shopfront/ledger/internal/domain"
)

// StatusFor picks the response status for a repository or validation
// error. Anything unrecognized is an internal error and should not
// leak its message to the client.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrUnauthorized):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrInvalidArgument):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrInsufficientPayment):
		return http.StatusPaymentRequired
	case errors.Is(err, domain.ErrOutsideWindow):
		return http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrConflict):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
