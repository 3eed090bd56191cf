package events

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ms-checkin/internal/models"
	"ms-checkin/internal/occupancy"
)

var at = time.Date(2026, 6, 1, 19, 30, 0, 0, time.UTC)

func table(occupied int) TableRef {
	return TableRef{ID: 7, Number: 4, Hall: models.HallA, Occupied: occupied, Capacity: 10}
}

func TestNotificationPolicy(t *testing.T) {
	meta := Meta{EventID: 1, At: at}
	tb := table(10)
	seat := 3

	cases := []struct {
		name string
		ev   Event
		kind string
		ok   bool
	}{
		{"seated arrival", &GuestArrived{Meta: meta, Guest: GuestRef{ID: 1, Name: "Dana"}, Table: &tb, Seat: &seat}, "", false},
		{"arrival without seat", &GuestArrived{Meta: meta, Guest: GuestRef{ID: 1, Name: "Dana"}}, models.NotificationArrivedNoSeat, true},
		{"almost full", &TableAlmostFull{Meta: meta, Table: table(8)}, "", false},
		{"full", &TableFull{Meta: meta, Table: tb}, models.NotificationTableFull, true},
		{"overbooked", &TableOverbooked{Meta: meta, Table: table(11)}, models.NotificationTableOverbooked, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			kind, ok := NotificationKind(tc.ev)
			assert.Equal(t, tc.ok, ok)
			assert.Equal(t, tc.kind, kind)
			if tc.ok {
				assert.NotNil(t, ToNotification(tc.ev))
			} else {
				assert.Nil(t, ToNotification(tc.ev))
			}
		})
	}
}

func TestForCrossing(t *testing.T) {
	meta := Meta{EventID: 1, At: at}
	assert.Nil(t, ForCrossing(meta, occupancy.Partial, table(3)))
	assert.IsType(t, &TableAlmostFull{}, ForCrossing(meta, occupancy.AlmostFull, table(8)))
	assert.IsType(t, &TableFull{}, ForCrossing(meta, occupancy.Full, table(10)))
	assert.IsType(t, &TableOverbooked{}, ForCrossing(meta, occupancy.Overbooked, table(11)))
}

func TestToNotificationFields(t *testing.T) {
	ev := &TableOverbooked{Meta: Meta{EventID: 5, At: at}, Table: table(11)}
	n := ToNotification(ev)
	require.NotNil(t, n)
	assert.Equal(t, int64(5), n.EventID)
	assert.Equal(t, "error", n.Severity)
	assert.True(t, n.Persistent)
	require.NotNil(t, n.TableID)
	assert.Equal(t, int64(7), *n.TableID)
	assert.Nil(t, n.GuestID)
	assert.Equal(t, "Table 4 is overbooked (11/10, 110.0%)", n.Message)
	assert.Equal(t, at, n.CreatedAt)

	noSeat := ToNotification(&GuestArrived{Meta: Meta{EventID: 5, At: at}, Guest: GuestRef{ID: 9, Name: "Avi Cohen"}})
	require.NotNil(t, noSeat)
	require.NotNil(t, noSeat.GuestID)
	assert.Equal(t, int64(9), *noSeat.GuestID)
	assert.Equal(t, "Avi Cohen arrived without an assigned seat", noSeat.Message)
}

func TestEncodeGuestArrived(t *testing.T) {
	tb := table(3)
	seat := 2
	ev := &GuestArrived{
		Meta:  Meta{EventID: 1, At: at},
		Guest: GuestRef{ID: 12, Name: "Noa Levi", Gender: "female"},
		Table: &tb,
		Seat:  &seat,
	}
	raw, err := Marshal(ev)
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, json.Unmarshal(raw, &got))
	assert.Equal(t, "guest_arrived", got["type"])
	assert.Equal(t, false, got["persistent"])
	assert.NotContains(t, got, "notification_id")

	guest := got["guest"].(map[string]any)
	assert.Equal(t, "Noa Levi", guest["name"])
	assert.Equal(t, "female", guest["gender"])
	assert.Equal(t, float64(4), guest["table_number"])

	tbl := got["table"].(map[string]any)
	assert.Equal(t, float64(30), tbl["occupancy_percentage"])
	assert.Equal(t, "A", tbl["hall"])
}

func TestEncodeCarriesNotificationID(t *testing.T) {
	ev := &TableFull{Meta: Meta{EventID: 1, NotificationID: 44, At: at}, Table: table(10)}
	msg := Encode(ev)
	assert.Equal(t, int64(44), msg.NotificationID)
	assert.True(t, msg.Persistent)
	assert.Equal(t, "table_full", msg.Type)
	assert.Equal(t, 10, msg.Table.TotalSeats)
	assert.Equal(t, 100.0, msg.Table.OccupancyPercentage)
}

func TestEncodeArrivalWithoutSeat(t *testing.T) {
	msg := Encode(&GuestArrived{Meta: Meta{EventID: 1, At: at}, Guest: GuestRef{ID: 3, Name: "Avi"}})
	require.NotNil(t, msg.Guest)
	assert.Nil(t, msg.Guest.TableNumber)
	assert.Nil(t, msg.Table)
	assert.Equal(t, "warning", msg.Severity)
}
