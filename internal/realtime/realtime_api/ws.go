package realtime_api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"ms-checkin/internal/events"
	"ms-checkin/internal/hub"
)

// ServeWS upgrades to a websocket and streams the event's broadcasts. The
// first frame is always the connected greeting carrying the session id.
func (h *Handler) ServeWS(w http.ResponseWriter, r *http.Request) {
	eventID, err := idParam(r, "eventID")
	if err != nil {
		badRequest(w, "Invalid event", err)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already replied to the client.
		h.Logger.Warn("WS", fmt.Sprintf("[event %d] upgrade failed: %v", eventID, err))
		return
	}

	session := h.Hub.Join(eventID)
	defer h.Hub.Leave(session)

	hello, err := json.Marshal(events.Connected(eventID, session.ID, time.Now().UTC()))
	if err == nil {
		conn.SetWriteDeadline(time.Now().Add(h.WriteTimeout))
		err = conn.WriteMessage(websocket.TextMessage, hello)
	}
	if err != nil {
		conn.Close()
		return
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		h.readLoop(conn)
	}()

	h.writeLoop(conn, session, done)
	conn.Close()
	<-done
}

// readLoop discards client input and returns when the connection fails.
func (h *Handler) readLoop(conn *websocket.Conn) {
	conn.SetReadLimit(4096)
	wait := 2 * h.PingInterval
	conn.SetReadDeadline(time.Now().Add(wait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wait))
	})
	for {
		if _, _, err := conn.NextReader(); err != nil {
			return
		}
	}
}

func (h *Handler) writeLoop(conn *websocket.Conn, session *hub.Session, done <-chan struct{}) {
	ticker := time.NewTicker(h.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case batch, ok := <-session.Batches():
			if !ok {
				conn.SetWriteDeadline(time.Now().Add(h.WriteTimeout))
				conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, "session closed"))
				return
			}
			for _, frame := range batch.Frames {
				conn.SetWriteDeadline(time.Now().Add(h.WriteTimeout))
				if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
					h.Logger.Debug("WS", fmt.Sprintf("[event %d] session %s write failed: %v", session.EventID, session.ID, err))
					return
				}
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(h.WriteTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-done:
			h.Logger.Debug("WS", fmt.Sprintf("[event %d] session %s disconnected", session.EventID, session.ID))
			return
		}
	}
}
