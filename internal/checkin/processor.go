// Package checkin turns one scanned code into a seat change, the domain events
// describing it, their broadcast and the notifications that must survive it.
package checkin

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"ms-checkin/internal/codes"
	"ms-checkin/internal/events"
	"ms-checkin/internal/locks"
	"ms-checkin/internal/logger"
	"ms-checkin/internal/models"
	"ms-checkin/internal/occupancy"
	seatingdb "ms-checkin/internal/seating/db"
)

// Store is the guest/table store as seen by the processor.
type Store interface {
	ResolveGuest(ctx context.Context, eventID int64, code codes.Code) (*models.Guest, error)
	SeatingForGuest(ctx context.Context, eventID, guestID int64) (*models.Seating, error)
	CheckIn(ctx context.Context, guestID int64, at time.Time, plan seatingdb.Planner) (*models.CheckInSnapshot, error)
	PendingSeats(ctx context.Context, eventID int64) ([]models.Seating, error)
	OccupySeat(ctx context.Context, seatingID int64, plan seatingdb.Planner) (*models.CheckInSnapshot, error)
}

type Broadcaster interface {
	Broadcast(eventID int64, evs []events.Event) int
}

// Publisher mirrors event batches to an external log. Failures are logged and
// never affect the check-in.
type Publisher interface {
	Publish(ctx context.Context, eventID int64, evs []events.Event) error
}

type Processor struct {
	store     Store
	locks     locks.Locker
	hub       Broadcaster
	publisher Publisher
	log       *logger.Logger
	now       func() time.Time
	tracer    trace.Tracer
}

type Option func(*Processor)

func WithPublisher(p Publisher) Option {
	return func(proc *Processor) { proc.publisher = p }
}

func WithClock(now func() time.Time) Option {
	return func(proc *Processor) { proc.now = now }
}

func NewProcessor(store Store, locker locks.Locker, hub Broadcaster, log *logger.Logger, opts ...Option) *Processor {
	p := &Processor{
		store:  store,
		locks:  locker,
		hub:    hub,
		log:    log,
		now:    func() time.Time { return time.Now().UTC() },
		tracer: otel.Tracer("ms-checkin/checkin"),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.log == nil {
		p.log = logger.Discard()
	}
	return p
}

// Result describes a successful check-in. Seating and Table are nil for a
// guest without a seat, in which case Status is occupancy.Empty.
type Result struct {
	Guest     models.Guest
	Seating   *models.Seating
	Table     *models.Table
	Occupied  int
	Status    occupancy.Status
	Events    []events.Event
	Delivered int
}

type planned struct {
	event        events.Event
	notification *models.Notification
}

// planner builds the events of a snapshot and the notifications to persist
// with it. The store may invoke the returned Planner inside its transaction.
func planner(eventID int64, at time.Time, withArrival bool, out *[]planned) seatingdb.Planner {
	return func(snap models.CheckInSnapshot) ([]*models.Notification, error) {
		*out = (*out)[:0]
		var notes []*models.Notification
		for _, ev := range buildEvents(eventID, snap, at, withArrival) {
			n := events.ToNotification(ev)
			if n != nil {
				notes = append(notes, n)
			}
			*out = append(*out, planned{event: ev, notification: n})
		}
		return notes, nil
	}
}

// buildEvents lists the arrival first and the threshold crossing, if any,
// after it.
func buildEvents(eventID int64, snap models.CheckInSnapshot, at time.Time, withArrival bool) []events.Event {
	meta := events.Meta{EventID: eventID, At: at}
	var evs []events.Event

	if withArrival {
		arrival := &events.GuestArrived{Meta: meta, Guest: events.NewGuestRef(snap.Guest)}
		if snap.Table != nil && snap.Seating != nil {
			ref := events.NewTableRef(*snap.Table, snap.OccupiedAfter)
			seat := snap.Seating.SeatNumber
			arrival.Table = &ref
			arrival.Seat = &seat
		}
		evs = append(evs, arrival)
	}

	if snap.Table != nil {
		if status, ok := occupancy.Crossing(snap.OccupiedBefore, snap.OccupiedAfter, snap.Table.Size); ok {
			evs = append(evs, events.ForCrossing(meta, status, events.NewTableRef(*snap.Table, snap.OccupiedAfter)))
		}
	}
	return evs
}

func collect(plan []planned) []events.Event {
	evs := make([]events.Event, 0, len(plan))
	for _, p := range plan {
		if p.notification != nil {
			p.event.Base().NotificationID = p.notification.ID
		}
		evs = append(evs, p.event)
	}
	return evs
}

func (p *Processor) lockFor(ctx context.Context, guest *models.Guest, seat *models.Seating) (func(), error) {
	key := locks.GuestKey(guest.ID)
	if seat != nil {
		key = locks.TableKey(seat.TableID)
	}
	unlock, err := p.locks.Lock(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("lock %s: %w", key, err)
	}
	return unlock, nil
}

func (p *Processor) resolve(ctx context.Context, eventID int64, raw string) (*models.Guest, error) {
	code, err := codes.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCode, err)
	}
	if !code.MatchesEvent(eventID) {
		return nil, fmt.Errorf("%w: code is for event %d, not %d", ErrEventMismatch, code.EventID, eventID)
	}
	guest, err := p.store.ResolveGuest(ctx, eventID, code)
	if errors.Is(err, models.ErrNotFound) {
		return nil, ErrCodeNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("resolve code: %w", err)
	}
	if guest.Arrived {
		return nil, ErrAlreadyArrived
	}
	return guest, nil
}

// CheckIn checks in the guest identified by raw within eventID. The seat
// change, the before/after occupancy read and the notification writes happen
// under the table's lock in one store transaction; the broadcast is issued
// before the lock is released.
func (p *Processor) CheckIn(ctx context.Context, eventID int64, raw string) (res *Result, err error) {
	ctx, span := p.tracer.Start(ctx, "checkin.CheckIn", trace.WithAttributes(attribute.Int64("event.id", eventID)))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(otelcodes.Error, err.Error())
		}
		span.End()
	}()

	guest, err := p.resolve(ctx, eventID, raw)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.Int64("guest.id", guest.ID))

	seat, err := p.store.SeatingForGuest(ctx, eventID, guest.ID)
	if errors.Is(err, models.ErrNotFound) {
		seat, err = nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load seating: %w", err)
	}

	unlock, err := p.lockFor(ctx, guest, seat)
	if err != nil {
		return nil, err
	}
	defer unlock()

	at := p.now()
	var plan []planned
	snap, err := p.store.CheckIn(ctx, guest.ID, at, planner(eventID, at, true, &plan))
	switch {
	case errors.Is(err, models.ErrAlreadyArrived):
		return nil, ErrAlreadyArrived
	case errors.Is(err, models.ErrGuestNotFound):
		return nil, ErrCodeNotFound
	case err != nil:
		p.log.Error("CHECKIN", fmt.Sprintf("[event %d] guest %d: storage failure: %v", eventID, guest.ID, err))
		return nil, fmt.Errorf("check in guest %d: %w", guest.ID, err)
	}

	evs := collect(plan)
	res = &Result{
		Guest:   snap.Guest,
		Seating: snap.Seating,
		Table:   snap.Table,
		Events:  evs,
	}
	if snap.Table != nil {
		res.Occupied = snap.OccupiedAfter
		res.Status = occupancy.Classify(snap.OccupiedAfter, snap.Table.Size)
	}
	res.Delivered = p.distribute(ctx, eventID, evs)

	outcome := "arrived without seat"
	if snap.Table != nil {
		outcome = fmt.Sprintf("table %d now %d/%d (%s)", snap.Table.TableNumber, snap.OccupiedAfter, snap.Table.Size, res.Status)
	}
	p.log.LogCheckIn(eventID, guest.ID, fmt.Sprintf("%s, %d events to %d sessions", outcome, len(evs), res.Delivered))
	return res, nil
}

func (p *Processor) distribute(ctx context.Context, eventID int64, evs []events.Event) int {
	if len(evs) == 0 {
		return 0
	}
	delivered := p.hub.Broadcast(eventID, evs)
	if p.publisher != nil {
		if err := p.publisher.Publish(ctx, eventID, evs); err != nil {
			p.log.Warn("KAFKA", fmt.Sprintf("[event %d] failed to mirror %d events: %v", eventID, len(evs), err))
		}
	}
	return delivered
}

// RepairResult reports a Repair run.
type RepairResult struct {
	Fixed  int
	Events []events.Event
}

// Repair marks the seats of arrived guests that were never occupied. Each
// seat goes through the same table lock as a check-in, and only threshold
// crossings are emitted.
func (p *Processor) Repair(ctx context.Context, eventID int64) (*RepairResult, error) {
	ctx, span := p.tracer.Start(ctx, "checkin.Repair", trace.WithAttributes(attribute.Int64("event.id", eventID)))
	defer span.End()

	seats, err := p.store.PendingSeats(ctx, eventID)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("list pending seats: %w", err)
	}

	out := &RepairResult{Events: []events.Event{}}
	for _, seat := range seats {
		evs, fixed, err := p.repairSeat(ctx, eventID, seat)
		if err != nil {
			span.RecordError(err)
			return out, err
		}
		if fixed {
			out.Fixed++
		}
		out.Events = append(out.Events, evs...)
	}
	p.log.Info("CHECKIN", fmt.Sprintf("[event %d] repaired %d of %d pending seats", eventID, out.Fixed, len(seats)))
	return out, nil
}

func (p *Processor) repairSeat(ctx context.Context, eventID int64, seat models.Seating) ([]events.Event, bool, error) {
	unlock, err := p.locks.Lock(ctx, locks.TableKey(seat.TableID))
	if err != nil {
		return nil, false, fmt.Errorf("lock table %d: %w", seat.TableID, err)
	}
	defer unlock()

	var plan []planned
	snap, err := p.store.OccupySeat(ctx, seat.ID, planner(eventID, p.now(), false, &plan))
	if err != nil {
		return nil, false, fmt.Errorf("repair seating %d: %w", seat.ID, err)
	}
	evs := collect(plan)
	p.distribute(ctx, eventID, evs)
	return evs, snap.OccupiedAfter > snap.OccupiedBefore, nil
}
