// Package occupancy classifies a table's fill level and detects threshold
// crossings between two fill levels.
package occupancy

import "fmt"

// Status values are ordered by severity.
type Status int

const (
	Empty Status = iota
	Partial
	AlmostFull
	Full
	Overbooked
)

var statusNames = [...]string{"empty", "partial", "almost_full", "full", "overbooked"}

func (s Status) String() string {
	if s < Empty || s > Overbooked {
		return fmt.Sprintf("status(%d)", int(s))
	}
	return statusNames[s]
}

func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *Status) UnmarshalText(b []byte) error {
	for i, n := range statusNames {
		if n == string(b) {
			*s = Status(i)
			return nil
		}
	}
	return fmt.Errorf("unknown occupancy status %q", string(b))
}

// Classify returns the status of a table with the given occupied seat count.
// AlmostFull starts at 80% and is computed in integers so 8 of 10 qualifies.
func Classify(occupied, capacity int) Status {
	switch {
	case capacity <= 0 || occupied <= 0:
		return Empty
	case occupied > capacity:
		return Overbooked
	case occupied == capacity:
		return Full
	case occupied*5 >= capacity*4:
		return AlmostFull
	default:
		return Partial
	}
}

// Crossing reports the status reached when a table goes from before to after
// occupied seats, if that transition is worth announcing.
func Crossing(before, after, capacity int) (Status, bool) {
	pre := Classify(before, capacity)
	post := Classify(after, capacity)
	if post == pre || post < AlmostFull {
		return post, false
	}
	return post, true
}

// Percentage is occupied/capacity rounded to one decimal place.
func Percentage(occupied, capacity int) float64 {
	if capacity <= 0 {
		return 0
	}
	tenths := (occupied*1000 + capacity/2) / capacity
	return float64(tenths) / 10
}
