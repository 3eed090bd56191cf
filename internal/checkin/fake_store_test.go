package checkin

import (
	"context"
	"sort"
	"sync"
	"time"

	"ms-checkin/internal/codes"
	"ms-checkin/internal/models"
	seatingdb "ms-checkin/internal/seating/db"
)

// fakeStore keeps guests and seats in memory. Every step of CheckIn and
// OccupySeat yields the scheduler so unserialized callers interleave.
type fakeStore struct {
	mu            sync.Mutex
	guests        map[int64]*models.Guest
	tables        map[int64]*models.Table
	seatings      map[int64]*models.Seating
	notifications []*models.Notification
	nextID        int64
	failCheckIn   error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		guests:   make(map[int64]*models.Guest),
		tables:   make(map[int64]*models.Table),
		seatings: make(map[int64]*models.Seating),
	}
}

func (f *fakeStore) id() int64 {
	f.nextID++
	return f.nextID
}

func (f *fakeStore) addTable(eventID int64, number, size int) *models.Table {
	f.mu.Lock()
	defer f.mu.Unlock()
	t := &models.Table{ID: f.id(), EventID: eventID, TableNumber: number, Size: size, HallType: models.HallA}
	f.tables[t.ID] = t
	return t
}

// addGuest creates a guest, seated at table when it is not nil.
func (f *fakeStore) addGuest(eventID int64, name string, table *models.Table) *models.Guest {
	f.mu.Lock()
	defer f.mu.Unlock()
	g := &models.Guest{ID: f.id(), EventID: eventID, FirstName: name, QRCode: "qr-" + name}
	f.guests[g.ID] = g
	if table != nil {
		gid := g.ID
		seat := 0
		for _, s := range f.seatings {
			if s.TableID == table.ID {
				seat++
			}
		}
		s := &models.Seating{ID: f.id(), EventID: eventID, TableID: table.ID, GuestID: &gid, SeatNumber: seat + 1}
		f.seatings[s.ID] = s
	}
	return g
}

func (f *fakeStore) ResolveGuest(_ context.Context, eventID int64, code codes.Code) (*models.Guest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, g := range f.guests {
		if g.EventID != eventID {
			continue
		}
		switch code.Kind {
		case codes.KindLegacy:
			if g.ID == code.GuestID {
				cp := *g
				return &cp, nil
			}
		case codes.KindRaw:
			if g.QRCode == code.Raw {
				cp := *g
				return &cp, nil
			}
		}
	}
	return nil, models.ErrNotFound
}

func (f *fakeStore) SeatingForGuest(_ context.Context, eventID, guestID int64) (*models.Seating, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if s := f.seatingOf(guestID); s != nil {
		cp := *s
		return &cp, nil
	}
	return nil, models.ErrNotFound
}

func (f *fakeStore) seatingOf(guestID int64) *models.Seating {
	for _, s := range f.seatings {
		if s.GuestID != nil && *s.GuestID == guestID {
			return s
		}
	}
	return nil
}

func (f *fakeStore) countLocked(tableID int64) int {
	n := 0
	for _, s := range f.seatings {
		if s.TableID == tableID && s.IsOccupied {
			n++
		}
	}
	return n
}

func (f *fakeStore) count(tableID int64) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.countLocked(tableID)
}

func yield() { time.Sleep(50 * time.Microsecond) }

func (f *fakeStore) occupy(seat *models.Seating, at time.Time, snap *models.CheckInSnapshot) {
	f.mu.Lock()
	table := *f.tables[seat.TableID]
	f.mu.Unlock()

	before := f.count(table.ID)
	yield()
	f.mu.Lock()
	seat.IsOccupied = true
	seat.OccupiedAt = &at
	f.mu.Unlock()
	yield()
	after := f.count(table.ID)

	cp := *seat
	snap.Seating = &cp
	snap.Table = &table
	snap.OccupiedBefore = before
	snap.OccupiedAfter = after
}

func (f *fakeStore) save(plan seatingdb.Planner, snap models.CheckInSnapshot) error {
	if plan == nil {
		return nil
	}
	notes, err := plan(snap)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, n := range notes {
		n.ID = f.id()
		f.notifications = append(f.notifications, n)
	}
	return nil
}

func (f *fakeStore) CheckIn(_ context.Context, guestID int64, at time.Time, plan seatingdb.Planner) (*models.CheckInSnapshot, error) {
	if f.failCheckIn != nil {
		return nil, f.failCheckIn
	}
	f.mu.Lock()
	g, ok := f.guests[guestID]
	if !ok {
		f.mu.Unlock()
		return nil, models.ErrGuestNotFound
	}
	if g.Arrived {
		f.mu.Unlock()
		return nil, models.ErrAlreadyArrived
	}
	g.Arrived = true
	g.CheckInTime = &at
	snap := models.CheckInSnapshot{Guest: *g}
	seat := f.seatingOf(guestID)
	f.mu.Unlock()

	if seat != nil {
		f.occupy(seat, at, &snap)
	}
	if err := f.save(plan, snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

func (f *fakeStore) PendingSeats(_ context.Context, eventID int64) ([]models.Seating, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Seating
	for _, s := range f.seatings {
		if s.EventID != eventID || s.IsOccupied || s.GuestID == nil {
			continue
		}
		if g := f.guests[*s.GuestID]; g != nil && g.Arrived {
			out = append(out, *s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeStore) OccupySeat(_ context.Context, seatingID int64, plan seatingdb.Planner) (*models.CheckInSnapshot, error) {
	f.mu.Lock()
	seat, ok := f.seatings[seatingID]
	if !ok || seat.GuestID == nil {
		f.mu.Unlock()
		return nil, models.ErrNotFound
	}
	g := *f.guests[*seat.GuestID]
	f.mu.Unlock()

	snap := models.CheckInSnapshot{Guest: g}
	f.occupy(seat, *g.CheckInTime, &snap)
	if err := f.save(plan, snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

// markArrived flags a guest arrived without touching the seat, the state the
// repair job fixes.
func (f *fakeStore) markArrived(guestID int64, at time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	g := f.guests[guestID]
	g.Arrived = true
	g.CheckInTime = &at
}

func (f *fakeStore) notificationCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.notifications)
}
