package realtime_api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"ms-checkin/internal/events"
	"ms-checkin/internal/utils"
)

func setupSSEHeaders(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/event-stream;charset=UTF-8")
	w.Header().Set("Cache-Control", "no-cache, no-store, max-age=0, must-revalidate")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Pragma", "no-cache")
	w.Header().Set("Expires", "0")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Header().Set("X-Accel-Buffering", "no")
}

// ServeSSE streams the same frames as ServeWS as server-sent events named
// after the frame type.
func (h *Handler) ServeSSE(w http.ResponseWriter, r *http.Request) {
	eventID, err := idParam(r, "eventID")
	if err != nil {
		badRequest(w, "Invalid event", err)
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		utils.WriteJSON(w, http.StatusInternalServerError, utils.ErrorResponse("Streaming unsupported", "response writer cannot flush"))
		return
	}

	setupSSEHeaders(w)
	session := h.Hub.Join(eventID)
	defer h.Hub.Leave(session)

	hello, _ := json.Marshal(events.Connected(eventID, session.ID, time.Now().UTC()))
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", events.TypeConnected, hello)
	flusher.Flush()

	heartbeat := time.NewTicker(h.PingInterval)
	defer heartbeat.Stop()

	ctx := r.Context()
	for {
		select {
		case batch, ok := <-session.Batches():
			if !ok {
				return
			}
			for i, frame := range batch.Frames {
				if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", batch.Events[i].Kind(), frame); err != nil {
					return
				}
			}
			flusher.Flush()
		case <-heartbeat.C:
			if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
				return
			}
			flusher.Flush()
		case <-ctx.Done():
			h.Logger.Debug("SSE", fmt.Sprintf("[event %d] session %s disconnected", eventID, session.ID))
			return
		}
	}
}
