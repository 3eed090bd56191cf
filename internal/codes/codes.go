// Package codes parses the identifying codes scanned or typed at the door and
// renders a guest's code as a QR image.
package codes

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/skip2/go-qrcode"
)

var ErrInvalid = errors.New("invalid check-in code")

type Kind int

const (
	// KindPayload is a JSON object identifying the guest by phone or name.
	KindPayload Kind = iota
	// KindLegacy is GUEST_<guestID>_EVENT_<eventID>.
	KindLegacy
	// KindRaw is matched against the guest's stored qr_code value.
	KindRaw
)

type Code struct {
	Kind      Kind
	Phone     string
	FirstName string
	LastName  string
	GuestID   int64
	EventID   int64
	HasEvent  bool
	Raw       string
}

type payload struct {
	Phone     string      `json:"phone"`
	FirstName string      `json:"first_name"`
	LastName  string      `json:"last_name"`
	EventID   json.Number `json:"event_id"`
}

const legacyPrefix = "GUEST_"

func Parse(s string) (Code, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Code{}, ErrInvalid
	}
	if strings.HasPrefix(s, "{") {
		if c, ok := parsePayload(s); ok {
			return c, nil
		}
	}
	if strings.HasPrefix(s, legacyPrefix) {
		return parseLegacy(s)
	}
	return Code{Kind: KindRaw, Raw: s}, nil
}

func parsePayload(s string) (Code, bool) {
	var p payload
	if err := json.Unmarshal([]byte(s), &p); err != nil {
		return Code{}, false
	}
	c := Code{
		Kind:      KindPayload,
		Phone:     strings.TrimSpace(p.Phone),
		FirstName: strings.TrimSpace(p.FirstName),
		LastName:  strings.TrimSpace(p.LastName),
		Raw:       s,
	}
	if c.Phone == "" && (c.FirstName == "" || c.LastName == "") {
		return Code{}, false
	}
	if p.EventID != "" {
		id, err := p.EventID.Int64()
		if err != nil {
			return Code{}, false
		}
		c.EventID, c.HasEvent = id, true
	}
	return c, true
}

func parseLegacy(s string) (Code, error) {
	parts := strings.Split(s, "_")
	if len(parts) != 4 || parts[0] != "GUEST" || parts[2] != "EVENT" {
		return Code{}, fmt.Errorf("%w: %q", ErrInvalid, s)
	}
	guestID, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil || guestID <= 0 {
		return Code{}, fmt.Errorf("%w: bad guest id in %q", ErrInvalid, s)
	}
	eventID, err := strconv.ParseInt(parts[3], 10, 64)
	if err != nil || eventID <= 0 {
		return Code{}, fmt.Errorf("%w: bad event id in %q", ErrInvalid, s)
	}
	return Code{Kind: KindLegacy, GuestID: guestID, EventID: eventID, HasEvent: true, Raw: s}, nil
}

// MatchesEvent is false when the code names a different event than eventID.
func (c Code) MatchesEvent(eventID int64) bool {
	return !c.HasEvent || c.EventID == eventID
}

func Format(guestID, eventID int64) string {
	return fmt.Sprintf("%s%d_EVENT_%d", legacyPrefix, guestID, eventID)
}

// PNG renders the guest's legacy code as a QR image of size x size pixels.
func PNG(guestID, eventID int64, size int) ([]byte, error) {
	if size <= 0 {
		size = 256
	}
	return qrcode.Encode(Format(guestID, eventID), qrcode.Medium, size)
}
