package models

import (
	"strings"
	"time"

	"github.com/uptrace/bun"
)

type Guest struct {
	bun.BaseModel `bun:"table:guests,alias:g"`

	ID           int64      `bun:"id,pk,autoincrement" json:"id"`
	EventID      int64      `bun:"event_id,notnull" json:"event_id"`
	FirstName    string     `bun:"first_name,notnull" json:"first_name"`
	LastName     string     `bun:"last_name" json:"last_name"`
	Gender       string     `bun:"gender" json:"gender"`
	Phone        string     `bun:"phone" json:"phone"`
	QRCode       string     `bun:"qr_code" json:"qr_code,omitempty"`
	Arrived      bool       `bun:"arrived,notnull,default:false" json:"arrived"`
	CheckInTime  *time.Time `bun:"check_in_time" json:"check_in_time,omitempty"`
	LastScanTime *time.Time `bun:"last_scan_time" json:"last_scan_time,omitempty"`
}

func (g *Guest) DisplayName() string {
	return strings.TrimSpace(g.FirstName + " " + g.LastName)
}
