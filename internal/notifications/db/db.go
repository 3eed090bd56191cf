// Package db is the notification log: append-only records with a read flag.
package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/bun"

	"ms-checkin/internal/models"
)

type DB struct {
	Bun *bun.DB
}

func New(bunDB *bun.DB) *DB {
	return &DB{Bun: bunDB}
}

// Insert writes n through idb, which may be a transaction owned by the caller.
// n.ID is populated on success.
func Insert(ctx context.Context, idb bun.IDB, n *models.Notification) error {
	if n.EventID == 0 || n.NotificationType == "" {
		return fmt.Errorf("notification needs event_id and notification_type")
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}
	n.IsRead = false
	_, err := idb.NewInsert().Model(n).Exec(ctx)
	if err != nil {
		return fmt.Errorf("insert notification: %w", err)
	}
	return nil
}

func (d *DB) Append(ctx context.Context, n *models.Notification) error {
	return Insert(ctx, d.Bun, n)
}

// ListUnread returns the event's unread notifications, newest first. A
// non-positive limit returns all of them.
func (d *DB) ListUnread(ctx context.Context, eventID int64, limit int) ([]models.Notification, error) {
	out := []models.Notification{}
	q := d.Bun.NewSelect().
		Model(&out).
		Where("event_id = ?", eventID).
		Where("is_read = ?", false).
		OrderExpr("created_at DESC, id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("list unread notifications: %w", err)
	}
	return out, nil
}

func (d *DB) Get(ctx context.Context, id int64) (*models.Notification, error) {
	var n models.Notification
	err := d.Bun.NewSelect().
		Model(&n).
		Where("id = ?", id).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &n, nil
}

// MarkRead flags the notification as read. Marking an already read
// notification succeeds; an unknown id returns models.ErrNotFound.
func (d *DB) MarkRead(ctx context.Context, id int64) error {
	res, err := d.Bun.NewUpdate().
		Model((*models.Notification)(nil)).
		Set("is_read = ?", true).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("mark notification %d read: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return models.ErrNotFound
	}
	return nil
}
