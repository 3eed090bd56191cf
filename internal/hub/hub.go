// Package hub fans domain events out to the viewer sessions of one event.
//
// A Registry owns one Hub per event id, created on first use and kept for the
// life of the process. Each broadcast is delivered to a session as a single
// Batch, so a session sees either the whole batch or none of it.
package hub

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"ms-checkin/internal/events"
	"ms-checkin/internal/logger"
)

const DefaultSessionBuffer = 32

// Batch is the event list of one check-in, with each event pre-encoded to its
// JSON wire frame.
type Batch struct {
	Events []events.Event
	Frames [][]byte
}

type Session struct {
	ID       string
	EventID  int64
	JoinedAt time.Time

	send   chan Batch
	closed bool
}

// Batches yields broadcasts in order. The channel is closed when the session
// leaves or is dropped for falling behind.
func (s *Session) Batches() <-chan Batch {
	return s.send
}

type Hub struct {
	eventID  int64
	buffer   int
	log      *logger.Logger
	mu       sync.RWMutex
	sessions map[string]*Session
}

func newHub(eventID int64, buffer int, log *logger.Logger) *Hub {
	return &Hub{
		eventID:  eventID,
		buffer:   buffer,
		log:      log,
		sessions: make(map[string]*Session),
	}
}

func (h *Hub) join() *Session {
	s := &Session{
		ID:       uuid.NewString(),
		EventID:  h.eventID,
		JoinedAt: time.Now().UTC(),
		send:     make(chan Batch, h.buffer),
	}
	h.mu.Lock()
	h.sessions[s.ID] = s
	n := len(h.sessions)
	h.mu.Unlock()
	h.log.Info("HUB", fmt.Sprintf("[event %d] session %s joined (%d live)", h.eventID, s.ID, n))
	return s
}

func (h *Hub) leave(s *Session) bool {
	h.mu.Lock()
	if s.closed {
		h.mu.Unlock()
		return false
	}
	s.closed = true
	delete(h.sessions, s.ID)
	close(s.send)
	n := len(h.sessions)
	h.mu.Unlock()
	h.log.Info("HUB", fmt.Sprintf("[event %d] session %s left (%d live)", h.eventID, s.ID, n))
	return true
}

func (h *Hub) broadcast(b Batch) int {
	var slow []*Session
	delivered := 0

	h.mu.RLock()
	for _, s := range h.sessions {
		select {
		case s.send <- b:
			delivered++
		default:
			slow = append(slow, s)
		}
	}
	h.mu.RUnlock()

	for _, s := range slow {
		h.log.Warn("HUB", fmt.Sprintf("[event %d] dropping session %s: send buffer full", h.eventID, s.ID))
		h.leave(s)
	}
	return delivered
}

func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions)
}

type Registry struct {
	mu     sync.Mutex
	hubs   map[int64]*Hub
	buffer int
	log    *logger.Logger
}

func NewRegistry(sessionBuffer int, log *logger.Logger) *Registry {
	if sessionBuffer <= 0 {
		sessionBuffer = DefaultSessionBuffer
	}
	if log == nil {
		log = logger.Discard()
	}
	return &Registry{hubs: make(map[int64]*Hub), buffer: sessionBuffer, log: log}
}

func (r *Registry) hub(eventID int64, create bool) *Hub {
	r.mu.Lock()
	defer r.mu.Unlock()
	h, ok := r.hubs[eventID]
	if !ok && create {
		h = newHub(eventID, r.buffer, r.log)
		r.hubs[eventID] = h
	}
	return h
}

// Join registers a new session for eventID.
func (r *Registry) Join(eventID int64) *Session {
	return r.hub(eventID, true).join()
}

// Leave removes the session and closes its stream. Calling it again, or on a
// session already dropped by the hub, does nothing.
func (r *Registry) Leave(s *Session) {
	if s == nil {
		return
	}
	if h := r.hub(s.EventID, false); h != nil {
		h.leave(s)
	}
}

// Broadcast delivers evs, in order, to every session of eventID and returns
// how many sessions accepted the batch. It never blocks on a session; one
// whose buffer is full is dropped.
func (r *Registry) Broadcast(eventID int64, evs []events.Event) int {
	if len(evs) == 0 {
		return 0
	}
	h := r.hub(eventID, false)
	if h == nil {
		return 0
	}

	b := Batch{Events: evs, Frames: make([][]byte, 0, len(evs))}
	for _, ev := range evs {
		frame, err := events.Marshal(ev)
		if err != nil {
			r.log.Error("HUB", fmt.Sprintf("[event %d] failed to encode %s: %v", eventID, ev.Kind(), err))
			return 0
		}
		b.Frames = append(b.Frames, frame)
	}
	return h.broadcast(b)
}

func (r *Registry) SessionCount(eventID int64) int {
	h := r.hub(eventID, false)
	if h == nil {
		return 0
	}
	return h.Len()
}

// Stats returns the live session count of every known event, by event id.
func (r *Registry) Stats() map[int64]int {
	r.mu.Lock()
	hubs := make([]*Hub, 0, len(r.hubs))
	for _, h := range r.hubs {
		hubs = append(hubs, h)
	}
	r.mu.Unlock()

	out := make(map[int64]int, len(hubs))
	for _, h := range hubs {
		out[h.eventID] = h.Len()
	}
	return out
}
