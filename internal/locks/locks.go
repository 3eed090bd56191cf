// Package locks serializes check-ins that touch the same table.
package locks

import (
	"context"
	"fmt"
)

// Locker grants exclusive access to a key until the returned unlock func is
// called. Unlock is safe to call more than once.
type Locker interface {
	Lock(ctx context.Context, key string) (unlock func(), err error)
}

func TableKey(tableID int64) string {
	return fmt.Sprintf("table:%d", tableID)
}

// GuestKey is used for guests without a seat so their check-ins still
// serialize with each other without touching any table.
func GuestKey(guestID int64) string {
	return fmt.Sprintf("guest:%d", guestID)
}
