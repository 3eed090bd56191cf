package realtime_api

import (
	"ms-checkin/internal/checkin"
	"ms-checkin/internal/events"
	"ms-checkin/internal/models"
	"ms-checkin/internal/occupancy"
)

type guestView struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Gender      string `json:"gender,omitempty"`
	Arrived     bool   `json:"arrived"`
	CheckInTime string `json:"check_in_time,omitempty"`
}

type checkInView struct {
	Guest       guestView         `json:"guest"`
	Table       *events.WireTable `json:"table"`
	SeatNumber  *int              `json:"seat_number"`
	TableStatus *occupancy.Status `json:"table_status,omitempty"`
	Events      []events.Message  `json:"events"`
	Delivered   int               `json:"delivered"`
}

func newGuestView(g models.Guest) guestView {
	v := guestView{ID: g.ID, Name: g.DisplayName(), Gender: g.Gender, Arrived: g.Arrived}
	if g.CheckInTime != nil {
		v.CheckInTime = g.CheckInTime.UTC().Format("2006-01-02T15:04:05Z07:00")
	}
	return v
}

func messages(evs []events.Event) []events.Message {
	out := make([]events.Message, 0, len(evs))
	for _, ev := range evs {
		out = append(out, events.Encode(ev))
	}
	return out
}

func newCheckInView(res *checkin.Result) checkInView {
	v := checkInView{
		Guest:     newGuestView(res.Guest),
		Events:    messages(res.Events),
		Delivered: res.Delivered,
	}
	if res.Table != nil {
		v.Table = events.NewWireTable(events.NewTableRef(*res.Table, res.Occupied))
		status := res.Status
		v.TableStatus = &status
	}
	if res.Seating != nil {
		seat := res.Seating.SeatNumber
		v.SeatNumber = &seat
	}
	return v
}

type repairView struct {
	Fixed  int              `json:"fixed"`
	Events []events.Message `json:"events"`
}

func newRepairView(res *checkin.RepairResult) repairView {
	return repairView{Fixed: res.Fixed, Events: messages(res.Events)}
}

type tableOccupancyView struct {
	ID                  int64            `json:"id"`
	TableNumber         int              `json:"table_number"`
	Hall                string           `json:"hall"`
	Shape               string           `json:"shape,omitempty"`
	X                   float64          `json:"x"`
	Y                   float64          `json:"y"`
	Occupied            int              `json:"occupied"`
	Capacity            int              `json:"capacity"`
	Status              occupancy.Status `json:"status"`
	OccupancyPercentage float64          `json:"occupancy_percentage"`
}

type occupancyView struct {
	EventID  int64                `json:"event_id"`
	Hall     string               `json:"hall,omitempty"`
	Occupied int                  `json:"occupied"`
	Capacity int                  `json:"capacity"`
	Tables   []tableOccupancyView `json:"tables"`
}

func newOccupancyView(eventID int64, hall string, rows []models.TableOccupancy) occupancyView {
	v := occupancyView{EventID: eventID, Hall: hall, Tables: make([]tableOccupancyView, 0, len(rows))}
	for _, row := range rows {
		t := row.Table
		v.Occupied += row.Occupied
		v.Capacity += row.Capacity()
		v.Tables = append(v.Tables, tableOccupancyView{
			ID:                  t.ID,
			TableNumber:         t.TableNumber,
			Hall:                t.HallType,
			Shape:               t.Shape,
			X:                   t.X,
			Y:                   t.Y,
			Occupied:            row.Occupied,
			Capacity:            row.Capacity(),
			Status:              occupancy.Classify(row.Occupied, row.Capacity()),
			OccupancyPercentage: occupancy.Percentage(row.Occupied, row.Capacity()),
		})
	}
	return v
}
