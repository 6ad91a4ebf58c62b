// Package auth reads the identity and payment that the transport
// attaches to every call. The gateway (or whatever fronts the ledger)
// is trusted to have authenticated the caller; the ledger only
// consumes the result.
package auth

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/shopfront/ledger/internal/domain"
)

const (
	CallerHeader  = "X-Caller-ID"
	PaymentHeader = "X-Payment-Amount"
)

// Caller returns the authenticated caller identity, or "" when the
// call carries none.
func Caller(r *http.Request) string {
	return r.Header.Get(CallerHeader)
}

// RequireCaller is Caller for mutating operations, where an anonymous
// call is rejected.
func RequireCaller(r *http.Request) (string, error) {
	caller := Caller(r)
	if caller == "" {
		return "", fmt.Errorf("%w: missing caller identity", domain.ErrUnauthorized)
	}
	return caller, nil
}

// Payment returns the attached payment amount. A missing header means
// no payment was attached, which is zero, not an error.
func Payment(r *http.Request) (int64, error) {
	raw := r.Header.Get(PaymentHeader)
	if raw == "" {
		return 0, nil
	}
	amount, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || amount < 0 {
		return 0, fmt.Errorf("%w: malformed payment amount %q", domain.ErrInvalidArgument, raw)
	}
	return amount, nil
}
