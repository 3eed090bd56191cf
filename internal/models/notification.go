package models

import (
	"time"

	"github.com/uptrace/bun"
)

const (
	NotificationArrivedNoSeat   = "guest_arrived_no_seat"
	NotificationTableFull       = "table_full"
	NotificationTableOverbooked = "table_overbooked"
)

type Notification struct {
	bun.BaseModel `bun:"table:notifications,alias:n"`

	ID               int64     `bun:"id,pk,autoincrement" json:"id"`
	EventID          int64     `bun:"event_id,notnull" json:"event_id"`
	NotificationType string    `bun:"notification_type,notnull" json:"notification_type"`
	GuestID          *int64    `bun:"guest_id" json:"guest_id,omitempty"`
	TableID          *int64    `bun:"table_id" json:"table_id,omitempty"`
	Message          string    `bun:"message,notnull" json:"message"`
	Severity         string    `bun:"severity,notnull,default:'info'" json:"severity"`
	Persistent       bool      `bun:"persistent,notnull,default:true" json:"persistent"`
	IsRead           bool      `bun:"is_read,notnull,default:false" json:"is_read"`
	CreatedAt        time.Time `bun:"created_at,notnull" json:"created_at"`
}
