package db

import (
	"context"
	"fmt"

	"ms-checkin/internal/models"
)

// Record creation belongs to the guest management side; these are used by
// the seed tool and tests.

func (d *DB) CreateEvent(ctx context.Context, e *models.Event) error {
	_, err := d.Bun.NewInsert().Model(e).Exec(ctx)
	return err
}

func (d *DB) CreateGuest(ctx context.Context, g *models.Guest) error {
	_, err := d.Bun.NewInsert().Model(g).Exec(ctx)
	return err
}

func (d *DB) CreateTable(ctx context.Context, t *models.Table) error {
	if t.HallType == "" {
		t.HallType = models.HallA
	}
	if t.HallType != models.HallA && t.HallType != models.HallB {
		return fmt.Errorf("hall type must be %q or %q, got %q", models.HallA, models.HallB, t.HallType)
	}
	_, err := d.Bun.NewInsert().Model(t).Exec(ctx)
	return err
}

// CreateSeating adds a seat to a table, optionally assigned to a guest. A
// new seating is never occupied.
func (d *DB) CreateSeating(ctx context.Context, s *models.Seating) error {
	s.IsOccupied = false
	s.OccupiedAt = nil
	_, err := d.Bun.NewInsert().Model(s).Exec(ctx)
	return err
}
