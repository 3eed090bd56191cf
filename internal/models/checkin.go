package models

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound       = errors.New("record not found")
	ErrAlreadyArrived = errors.New("guest already arrived")
)

// ErrGuestNotFound is returned when the guest row itself is missing, as
// opposed to a row it references.
var ErrGuestNotFound = fmt.Errorf("guest %w", ErrNotFound)

// CheckInSnapshot is what the store observed inside one check-in transaction.
// Seating and Table are nil for a guest without a seat.
type CheckInSnapshot struct {
	Guest          Guest
	Seating        *Seating
	Table          *Table
	OccupiedBefore int
	OccupiedAfter  int
}
