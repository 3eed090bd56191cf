// Package db is the guest/table store. It is the only writer of seat
// occupancy; callers serialize check-ins per table before calling CheckIn or
// OccupySeat.
package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/bun"

	"ms-checkin/internal/codes"
	"ms-checkin/internal/models"
	notificationsdb "ms-checkin/internal/notifications/db"
)

// Planner turns what a check-in observed into the notifications that must be
// written in the same transaction.
type Planner func(snap models.CheckInSnapshot) ([]*models.Notification, error)

type DB struct {
	Bun *bun.DB
}

func New(bunDB *bun.DB) *DB {
	return &DB{Bun: bunDB}
}

func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return models.ErrNotFound
	}
	return err
}

func (d *DB) GetGuest(ctx context.Context, eventID, guestID int64) (*models.Guest, error) {
	var g models.Guest
	err := d.Bun.NewSelect().
		Model(&g).
		Where("id = ?", guestID).
		Where("event_id = ?", eventID).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, notFound(err)
	}
	return &g, nil
}

func (d *DB) findGuest(ctx context.Context, eventID int64, where string, args ...interface{}) (*models.Guest, error) {
	var g models.Guest
	err := d.Bun.NewSelect().
		Model(&g).
		Where("event_id = ?", eventID).
		Where(where, args...).
		OrderExpr("id ASC").
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, notFound(err)
	}
	return &g, nil
}

// ResolveGuest finds the guest a parsed code refers to within eventID.
// A payload code is matched by phone first and then by full name.
func (d *DB) ResolveGuest(ctx context.Context, eventID int64, code codes.Code) (*models.Guest, error) {
	switch code.Kind {
	case codes.KindPayload:
		if code.Phone != "" {
			g, err := d.findGuest(ctx, eventID, "phone = ?", code.Phone)
			if err == nil || !errors.Is(err, models.ErrNotFound) {
				return g, err
			}
		}
		if code.FirstName != "" && code.LastName != "" {
			return d.findGuest(ctx, eventID, "first_name = ? AND last_name = ?", code.FirstName, code.LastName)
		}
		return nil, models.ErrNotFound
	case codes.KindLegacy:
		return d.GetGuest(ctx, eventID, code.GuestID)
	default:
		return d.findGuest(ctx, eventID, "qr_code = ?", code.Raw)
	}
}

func (d *DB) SeatingForGuest(ctx context.Context, eventID, guestID int64) (*models.Seating, error) {
	return seatingForGuest(ctx, d.Bun, eventID, guestID)
}

func seatingForGuest(ctx context.Context, idb bun.IDB, eventID, guestID int64) (*models.Seating, error) {
	var s models.Seating
	err := idb.NewSelect().
		Model(&s).
		Where("guest_id = ?", guestID).
		Where("event_id = ?", eventID).
		OrderExpr("id ASC").
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, notFound(err)
	}
	return &s, nil
}

func (d *DB) GetTable(ctx context.Context, tableID int64) (*models.Table, error) {
	return getTable(ctx, d.Bun, tableID)
}

func getTable(ctx context.Context, idb bun.IDB, tableID int64) (*models.Table, error) {
	var t models.Table
	err := idb.NewSelect().Model(&t).Where("id = ?", tableID).Limit(1).Scan(ctx)
	if err != nil {
		return nil, notFound(err)
	}
	return &t, nil
}

func countOccupied(ctx context.Context, idb bun.IDB, tableID int64) (int, error) {
	n, err := idb.NewSelect().
		Model((*models.Seating)(nil)).
		Where("table_id = ?", tableID).
		Where("is_occupied = ?", true).
		Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("count occupied seats of table %d: %w", tableID, err)
	}
	return n, nil
}

// occupy flips one seating to occupied and records the table counts around
// the change on snap.
func occupy(ctx context.Context, tx bun.Tx, seat *models.Seating, at time.Time, snap *models.CheckInSnapshot) error {
	table, err := getTable(ctx, tx, seat.TableID)
	if errors.Is(err, models.ErrNotFound) {
		return fmt.Errorf("seating %d references missing table %d", seat.ID, seat.TableID)
	}
	if err != nil {
		return fmt.Errorf("load table %d: %w", seat.TableID, err)
	}
	before, err := countOccupied(ctx, tx, table.ID)
	if err != nil {
		return err
	}
	_, err = tx.NewUpdate().
		Model((*models.Seating)(nil)).
		Set("is_occupied = ?", true).
		Set("occupied_at = ?", at).
		Where("id = ?", seat.ID).
		Where("is_occupied = ?", false).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("occupy seating %d: %w", seat.ID, err)
	}
	after, err := countOccupied(ctx, tx, table.ID)
	if err != nil {
		return err
	}

	seat.IsOccupied = true
	if seat.OccupiedAt == nil {
		seat.OccupiedAt = &at
	}
	snap.Seating = seat
	snap.Table = table
	snap.OccupiedBefore = before
	snap.OccupiedAfter = after
	return nil
}

func persist(ctx context.Context, tx bun.Tx, snap models.CheckInSnapshot, plan Planner) error {
	if plan == nil {
		return nil
	}
	notes, err := plan(snap)
	if err != nil {
		return err
	}
	for _, n := range notes {
		if err := notificationsdb.Insert(ctx, tx, n); err != nil {
			return err
		}
	}
	return nil
}

// CheckIn marks the guest arrived, occupies their seating if they have one,
// and writes the planned notifications, all in one transaction. It returns
// models.ErrAlreadyArrived if the guest was already checked in.
func (d *DB) CheckIn(ctx context.Context, guestID int64, at time.Time, plan Planner) (*models.CheckInSnapshot, error) {
	var snap models.CheckInSnapshot
	err := d.Bun.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		res, err := tx.NewUpdate().
			Model((*models.Guest)(nil)).
			Set("arrived = ?", true).
			Set("check_in_time = ?", at).
			Set("last_scan_time = ?", at).
			Where("id = ?", guestID).
			Where("arrived = ?", false).
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("mark guest %d arrived: %w", guestID, err)
		}

		var g models.Guest
		if err := tx.NewSelect().Model(&g).Where("id = ?", guestID).Limit(1).Scan(ctx); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return models.ErrGuestNotFound
			}
			return err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return models.ErrAlreadyArrived
		}
		snap.Guest = g

		seat, err := seatingForGuest(ctx, tx, g.EventID, g.ID)
		switch {
		case errors.Is(err, models.ErrNotFound):
		case err != nil:
			return fmt.Errorf("load seating of guest %d: %w", g.ID, err)
		default:
			if err := occupy(ctx, tx, seat, at, &snap); err != nil {
				return err
			}
		}
		return persist(ctx, tx, snap, plan)
	})
	if err != nil {
		return nil, err
	}
	return &snap, nil
}

// PendingSeats lists seatings of arrived guests that are not marked occupied.
func (d *DB) PendingSeats(ctx context.Context, eventID int64) ([]models.Seating, error) {
	out := []models.Seating{}
	err := d.Bun.NewSelect().
		Model(&out).
		Join("JOIN guests AS g ON g.id = s.guest_id").
		Where("s.event_id = ?", eventID).
		Where("s.is_occupied = ?", false).
		Where("g.arrived = ?", true).
		OrderExpr("s.table_id ASC, s.id ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("list pending seats: %w", err)
	}
	return out, nil
}

// OccupySeat repairs one seating whose guest has arrived but whose seat was
// never marked. The seat is stamped with the guest's arrival time. A seat
// that is already occupied yields a snapshot with equal before and after.
func (d *DB) OccupySeat(ctx context.Context, seatingID int64, plan Planner) (*models.CheckInSnapshot, error) {
	var snap models.CheckInSnapshot
	err := d.Bun.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		var seat models.Seating
		if err := tx.NewSelect().Model(&seat).Where("id = ?", seatingID).Limit(1).Scan(ctx); err != nil {
			return notFound(err)
		}
		if seat.GuestID == nil {
			return fmt.Errorf("seating %d has no guest: %w", seatingID, models.ErrNotFound)
		}
		var g models.Guest
		if err := tx.NewSelect().Model(&g).Where("id = ?", *seat.GuestID).Limit(1).Scan(ctx); err != nil {
			return notFound(err)
		}
		snap.Guest = g

		at := time.Now().UTC()
		if g.CheckInTime != nil {
			at = *g.CheckInTime
		}
		if err := occupy(ctx, tx, &seat, at, &snap); err != nil {
			return err
		}
		return persist(ctx, tx, snap, plan)
	})
	if err != nil {
		return nil, err
	}
	return &snap, nil
}

// ReadOccupancy returns every table of the event with its occupied count,
// ordered by hall and table number. An empty hall means both halls.
func (d *DB) ReadOccupancy(ctx context.Context, eventID int64, hall string) ([]models.TableOccupancy, error) {
	var tables []models.Table
	q := d.Bun.NewSelect().Model(&tables).Where("event_id = ?", eventID)
	if hall != "" {
		q = q.Where("hall_type = ?", hall)
	}
	if err := q.OrderExpr("hall_type ASC, table_number ASC").Scan(ctx); err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}

	var counts []struct {
		TableID  int64 `bun:"table_id"`
		Occupied int   `bun:"occupied"`
	}
	err := d.Bun.NewSelect().
		Model((*models.Seating)(nil)).
		Column("table_id").
		ColumnExpr("count(*) AS occupied").
		Where("event_id = ?", eventID).
		Where("is_occupied = ?", true).
		Group("table_id").
		Scan(ctx, &counts)
	if err != nil {
		return nil, fmt.Errorf("count occupancy: %w", err)
	}
	byTable := make(map[int64]int, len(counts))
	for _, c := range counts {
		byTable[c.TableID] = c.Occupied
	}

	out := make([]models.TableOccupancy, 0, len(tables))
	for _, t := range tables {
		out = append(out, models.TableOccupancy{Table: t, Occupied: byTable[t.ID]})
	}
	return out, nil
}
