package models

import (
	"context"
	"time"

	"github.com/uptrace/bun"
)

// Hall partitions.
const (
	HallA = "A"
	HallB = "B"
)

type Table struct {
	bun.BaseModel `bun:"table:tables,alias:t"`

	ID          int64   `bun:"id,pk,autoincrement" json:"id"`
	EventID     int64   `bun:"event_id,notnull" json:"event_id"`
	TableNumber int     `bun:"table_number,notnull" json:"table_number"`
	Size        int     `bun:"size,notnull" json:"size"`
	Shape       string  `bun:"shape" json:"shape,omitempty"`
	X           float64 `bun:"x" json:"x"`
	Y           float64 `bun:"y" json:"y"`
	HallType    string  `bun:"hall_type,notnull,default:'A'" json:"hall_type"`
}

// Seating links a guest to one seat of a table. GuestID is nil for free seats.
type Seating struct {
	bun.BaseModel `bun:"table:seatings,alias:s"`

	ID         int64      `bun:"id,pk,autoincrement" json:"id"`
	EventID    int64      `bun:"event_id,notnull" json:"event_id"`
	TableID    int64      `bun:"table_id,notnull" json:"table_id"`
	GuestID    *int64     `bun:"guest_id" json:"guest_id,omitempty"`
	SeatNumber int        `bun:"seat_number" json:"seat_number"`
	IsOccupied bool       `bun:"is_occupied,notnull,default:false" json:"is_occupied"`
	OccupiedAt *time.Time `bun:"occupied_at" json:"occupied_at,omitempty"`
}

var _ bun.BeforeCreateTableHook = (*Seating)(nil)

// BeforeCreateTable adds the occupied-implies-guest constraint.
func (*Seating) BeforeCreateTable(ctx context.Context, query *bun.CreateTableQuery) error {
	query.ColumnExpr("CHECK (NOT is_occupied OR guest_id IS NOT NULL)")
	return nil
}

// TableOccupancy is one row of read_occupancy.
type TableOccupancy struct {
	Table    Table
	Occupied int
}

func (o TableOccupancy) Capacity() int { return o.Table.Size }
