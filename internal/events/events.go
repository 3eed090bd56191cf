// Package events defines the domain events produced by a check-in, the policy
// deciding which of them are persisted as notifications, and their wire form.
package events

import (
	"fmt"
	"time"

	"ms-checkin/internal/models"
	"ms-checkin/internal/occupancy"
)

type Kind string

const (
	KindGuestArrived    Kind = "guest_arrived"
	KindTableAlmostFull Kind = "table_almost_full"
	KindTableFull       Kind = "table_full"
	KindTableOverbooked Kind = "table_overbooked"
)

// Event is one of *GuestArrived, *TableAlmostFull, *TableFull or
// *TableOverbooked. The set is closed.
type Event interface {
	Kind() Kind
	Base() *Meta
	isEvent()
}

// Meta is shared by every variant. NotificationID is set once the event has
// been mirrored into the notification log.
type Meta struct {
	EventID        int64
	NotificationID int64
	At             time.Time
}

func (m *Meta) Base() *Meta { return m }

type GuestRef struct {
	ID     int64
	Name   string
	Gender string
}

type TableRef struct {
	ID       int64
	Number   int
	Hall     string
	Occupied int
	Capacity int
}

func (t TableRef) Percentage() float64 {
	return occupancy.Percentage(t.Occupied, t.Capacity)
}

func (t TableRef) Status() occupancy.Status {
	return occupancy.Classify(t.Occupied, t.Capacity)
}

// GuestArrived is emitted for every successful check-in. Table and Seat are
// nil when the guest has no seating.
type GuestArrived struct {
	Meta
	Guest GuestRef
	Table *TableRef
	Seat  *int
}

type TableAlmostFull struct {
	Meta
	Table TableRef
}

type TableFull struct {
	Meta
	Table TableRef
}

type TableOverbooked struct {
	Meta
	Table TableRef
}

func (*GuestArrived) Kind() Kind    { return KindGuestArrived }
func (*TableAlmostFull) Kind() Kind { return KindTableAlmostFull }
func (*TableFull) Kind() Kind       { return KindTableFull }
func (*TableOverbooked) Kind() Kind { return KindTableOverbooked }

func (*GuestArrived) isEvent()    {}
func (*TableAlmostFull) isEvent() {}
func (*TableFull) isEvent()       {}
func (*TableOverbooked) isEvent() {}

func NewGuestRef(g models.Guest) GuestRef {
	return GuestRef{ID: g.ID, Name: g.DisplayName(), Gender: g.Gender}
}

func NewTableRef(t models.Table, occupied int) TableRef {
	return TableRef{ID: t.ID, Number: t.TableNumber, Hall: t.HallType, Occupied: occupied, Capacity: t.Size}
}

// ForCrossing returns the table event announcing a move into status, or nil
// for statuses that are never announced.
func ForCrossing(meta Meta, status occupancy.Status, table TableRef) Event {
	switch status {
	case occupancy.AlmostFull:
		return &TableAlmostFull{Meta: meta, Table: table}
	case occupancy.Full:
		return &TableFull{Meta: meta, Table: table}
	case occupancy.Overbooked:
		return &TableOverbooked{Meta: meta, Table: table}
	default:
		return nil
	}
}

// NotificationKind is the persistence policy: it returns the notification type
// for events that need explicit acknowledgment and false for transient ones.
func NotificationKind(e Event) (string, bool) {
	switch ev := e.(type) {
	case *GuestArrived:
		if ev.Table == nil {
			return models.NotificationArrivedNoSeat, true
		}
	case *TableFull:
		return models.NotificationTableFull, true
	case *TableOverbooked:
		return models.NotificationTableOverbooked, true
	}
	return "", false
}

func Persistent(e Event) bool {
	_, ok := NotificationKind(e)
	return ok
}

func Severity(e Event) string {
	switch ev := e.(type) {
	case *GuestArrived:
		if ev.Table == nil {
			return "warning"
		}
		return "success"
	case *TableAlmostFull:
		return "info"
	case *TableFull:
		return "warning"
	case *TableOverbooked:
		return "error"
	}
	return "info"
}

func Text(e Event) string {
	switch ev := e.(type) {
	case *GuestArrived:
		if ev.Table == nil {
			return fmt.Sprintf("%s arrived without an assigned seat", ev.Guest.Name)
		}
		return fmt.Sprintf("%s arrived, table %d", ev.Guest.Name, ev.Table.Number)
	case *TableAlmostFull:
		return fmt.Sprintf("Table %d is almost full (%d/%d, %.1f%%)", ev.Table.Number, ev.Table.Occupied, ev.Table.Capacity, ev.Table.Percentage())
	case *TableFull:
		return fmt.Sprintf("Table %d is full (%d/%d)", ev.Table.Number, ev.Table.Occupied, ev.Table.Capacity)
	case *TableOverbooked:
		return fmt.Sprintf("Table %d is overbooked (%d/%d, %.1f%%)", ev.Table.Number, ev.Table.Occupied, ev.Table.Capacity, ev.Table.Percentage())
	}
	return ""
}

// ToNotification builds the record to persist for e, or nil if e is transient.
func ToNotification(e Event) *models.Notification {
	kind, ok := NotificationKind(e)
	if !ok {
		return nil
	}
	m := e.Base()
	n := &models.Notification{
		EventID:          m.EventID,
		NotificationType: kind,
		Message:          Text(e),
		Severity:         Severity(e),
		Persistent:       true,
		CreatedAt:        m.At,
	}
	switch ev := e.(type) {
	case *GuestArrived:
		id := ev.Guest.ID
		n.GuestID = &id
	case *TableFull:
		id := ev.Table.ID
		n.TableID = &id
	case *TableOverbooked:
		id := ev.Table.ID
		n.TableID = &id
	}
	return n
}
