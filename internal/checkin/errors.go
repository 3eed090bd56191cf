package checkin

import "errors"

// Validation errors. None of them mutate state or emit events.
var (
	ErrInvalidCode    = errors.New("invalid check-in code")
	ErrCodeNotFound   = errors.New("code does not match any guest")
	ErrEventMismatch  = errors.New("code belongs to a different event")
	ErrAlreadyArrived = errors.New("guest already arrived")
)

// IsValidation reports whether err is a rejection of the scanned code rather
// than a storage failure.
func IsValidation(err error) bool {
	return errors.Is(err, ErrInvalidCode) ||
		errors.Is(err, ErrCodeNotFound) ||
		errors.Is(err, ErrEventMismatch) ||
		errors.Is(err, ErrAlreadyArrived)
}
