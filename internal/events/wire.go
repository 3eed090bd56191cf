package events

import (
	"encoding/json"
	"time"
)

const TypeConnected = "connected"

// Message is the JSON frame pushed to viewer sessions.
type Message struct {
	Type           string     `json:"type"`
	EventID        int64      `json:"event_id"`
	SessionID      string     `json:"session_id,omitempty"`
	Guest          *WireGuest `json:"guest,omitempty"`
	Table          *WireTable `json:"table,omitempty"`
	NotificationID int64      `json:"notification_id,omitempty"`
	Persistent     bool       `json:"persistent"`
	Severity       string     `json:"severity,omitempty"`
	Message        string     `json:"message,omitempty"`
	Timestamp      time.Time  `json:"timestamp"`
}

type WireGuest struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Gender      string `json:"gender,omitempty"`
	TableNumber *int   `json:"table_number"`
	SeatNumber  *int   `json:"seat_number"`
}

type WireTable struct {
	ID                  int64   `json:"id"`
	TableNumber         int     `json:"table_number"`
	Hall                string  `json:"hall"`
	OccupiedSeats       int     `json:"occupied_seats"`
	TotalSeats          int     `json:"total_seats"`
	OccupancyPercentage float64 `json:"occupancy_percentage"`
}

func NewWireTable(t TableRef) *WireTable {
	return &WireTable{
		ID:                  t.ID,
		TableNumber:         t.Number,
		Hall:                t.Hall,
		OccupiedSeats:       t.Occupied,
		TotalSeats:          t.Capacity,
		OccupancyPercentage: t.Percentage(),
	}
}

func Encode(e Event) Message {
	m := e.Base()
	msg := Message{
		Type:           string(e.Kind()),
		EventID:        m.EventID,
		NotificationID: m.NotificationID,
		Persistent:     Persistent(e),
		Severity:       Severity(e),
		Message:        Text(e),
		Timestamp:      m.At.UTC(),
	}
	switch ev := e.(type) {
	case *GuestArrived:
		g := &WireGuest{ID: ev.Guest.ID, Name: ev.Guest.Name, Gender: ev.Guest.Gender, SeatNumber: ev.Seat}
		if ev.Table != nil {
			n := ev.Table.Number
			g.TableNumber = &n
			msg.Table = NewWireTable(*ev.Table)
		}
		msg.Guest = g
	case *TableAlmostFull:
		msg.Table = NewWireTable(ev.Table)
	case *TableFull:
		msg.Table = NewWireTable(ev.Table)
	case *TableOverbooked:
		msg.Table = NewWireTable(ev.Table)
	}
	return msg
}

func Marshal(e Event) ([]byte, error) {
	return json.Marshal(Encode(e))
}

// Connected is the greeting frame sent when a session opens.
func Connected(eventID int64, sessionID string, at time.Time) Message {
	return Message{Type: TypeConnected, EventID: eventID, SessionID: sessionID, Timestamp: at.UTC()}
}
