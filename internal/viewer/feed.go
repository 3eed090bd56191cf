// Package viewer is the dashboard side of the check-in stream: a Feed that
// merges pushed frames with polled notifications, and a Client that keeps
// both flowing.
package viewer

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"ms-checkin/internal/events"
	"ms-checkin/internal/models"
)

// Auto-dismiss delays for transient entries.
const (
	ArrivalDismiss    = 3 * time.Second
	AlmostFullDismiss = 15 * time.Second
)

type Entry struct {
	Key            string
	NotificationID int64
	Type           string
	Severity       string
	Message        string
	Persistent     bool
	At             time.Time
	Expires        time.Time
}

type Feed struct {
	mu      sync.Mutex
	entries map[string]*Entry
	acked   map[int64]bool
	seq     int64
	now     func() time.Time
}

func NewFeed() *Feed {
	return &Feed{
		entries: make(map[string]*Entry),
		acked:   make(map[int64]bool),
		now:     time.Now,
	}
}

func notificationKey(id int64) string {
	return fmt.Sprintf("n:%d", id)
}

func dismissAfter(kind string) time.Duration {
	if kind == string(events.KindTableAlmostFull) {
		return AlmostFullDismiss
	}
	return ArrivalDismiss
}

// Push adds a live frame. Frames mirrored to a notification are keyed by
// its id so the same notification polled later is not shown twice.
func (f *Feed) Push(msg events.Message) {
	if msg.Type == events.TypeConnected {
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	at := msg.Timestamp
	if at.IsZero() {
		at = f.now()
	}
	if msg.NotificationID > 0 {
		if f.acked[msg.NotificationID] {
			return
		}
		key := notificationKey(msg.NotificationID)
		if _, ok := f.entries[key]; ok {
			return
		}
		f.entries[key] = &Entry{
			Key:            key,
			NotificationID: msg.NotificationID,
			Type:           msg.Type,
			Severity:       msg.Severity,
			Message:        msg.Message,
			Persistent:     true,
			At:             at,
		}
		return
	}

	f.seq++
	key := fmt.Sprintf("t:%d", f.seq)
	f.entries[key] = &Entry{
		Key:      key,
		Type:     msg.Type,
		Severity: msg.Severity,
		Message:  msg.Message,
		At:       at,
		Expires:  f.now().Add(dismissAfter(msg.Type)),
	}
}

// Reconcile merges a list_unread result. Returns how many entries were new.
func (f *Feed) Reconcile(list []models.Notification) int {
	f.mu.Lock()
	defer f.mu.Unlock()

	added := 0
	for _, n := range list {
		if n.IsRead || f.acked[n.ID] {
			continue
		}
		key := notificationKey(n.ID)
		if _, ok := f.entries[key]; ok {
			continue
		}
		f.entries[key] = &Entry{
			Key:            key,
			NotificationID: n.ID,
			Type:           n.NotificationType,
			Severity:       n.Severity,
			Message:        n.Message,
			Persistent:     true,
			At:             n.CreatedAt,
		}
		added++
	}
	return added
}

// Entries returns the visible entries, newest first, dropping transient ones
// whose delay has passed.
func (f *Feed) Entries() []Entry {
	f.mu.Lock()
	defer f.mu.Unlock()

	now := f.now()
	out := make([]Entry, 0, len(f.entries))
	for key, e := range f.entries {
		if !e.Persistent && !now.Before(e.Expires) {
			delete(f.entries, key)
			continue
		}
		out = append(out, *e)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].At.Equal(out[j].At) {
			return out[i].Key > out[j].Key
		}
		return out[i].At.After(out[j].At)
	})
	return out
}

// Acknowledge hides a persistent entry for good.
func (f *Feed) Acknowledge(id int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.acked[id] = true
	delete(f.entries, notificationKey(id))
}
