package realtime_api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"ms-checkin/internal/checkin"
	"ms-checkin/internal/codes"
	"ms-checkin/internal/hub"
	"ms-checkin/internal/logger"
	"ms-checkin/internal/models"
	"ms-checkin/internal/utils"
)

type CheckInService interface {
	CheckIn(ctx context.Context, eventID int64, code string) (*checkin.Result, error)
	Repair(ctx context.Context, eventID int64) (*checkin.RepairResult, error)
}

type NotificationStore interface {
	ListUnread(ctx context.Context, eventID int64, limit int) ([]models.Notification, error)
	Get(ctx context.Context, id int64) (*models.Notification, error)
	MarkRead(ctx context.Context, id int64) error
}

type OccupancyReader interface {
	ReadOccupancy(ctx context.Context, eventID int64, hall string) ([]models.TableOccupancy, error)
}

type Handler struct {
	Processor     CheckInService
	Notifications NotificationStore
	Occupancy     OccupancyReader
	Hub           *hub.Registry
	Logger        *logger.Logger
	PingInterval  time.Duration
	WriteTimeout  time.Duration

	upgrader websocket.Upgrader
}

func NewHandler(processor CheckInService, notifications NotificationStore, occ OccupancyReader, registry *hub.Registry, log *logger.Logger) *Handler {
	return &Handler{
		Processor:     processor,
		Notifications: notifications,
		Occupancy:     occ,
		Hub:           registry,
		Logger:        log,
		PingInterval:  30 * time.Second,
		WriteTimeout:  10 * time.Second,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
}

// Mount registers the realtime routes on r.
func (h *Handler) Mount(r chi.Router) {
	r.Post("/scan-qr", h.ScanQR)
	r.Post("/fix-seating-status/{eventID}", h.FixSeatingStatus)
	r.Get("/occupancy/{eventID}", h.GetOccupancy)
	r.Get("/notifications/{eventID}", h.ListNotifications)
	r.Get("/notification/{notificationID}", h.GetNotification)
	r.Post("/notifications/{notificationID}/mark-read", h.MarkNotificationRead)
	r.Get("/events/{eventID}/guests/{guestID}/qr.png", h.GuestQR)
	r.Get("/ws/{eventID}", h.ServeWS)
	r.Get("/sse/{eventID}", h.ServeSSE)
}

func idParam(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%s must be a positive integer", name)
	}
	return id, nil
}

// statusFor maps check-in and store errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, checkin.ErrInvalidCode), errors.Is(err, checkin.ErrEventMismatch):
		return http.StatusBadRequest
	case errors.Is(err, checkin.ErrCodeNotFound), errors.Is(err, models.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, checkin.ErrAlreadyArrived):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, message string, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		h.Logger.Error("API", fmt.Sprintf("%s %s: %v", r.Method, r.URL.Path, err))
		utils.WriteJSON(w, status, utils.ErrorResponse(message, "internal error"))
		return
	}
	utils.WriteJSON(w, status, utils.ErrorResponse(message, err.Error()))
}

func badRequest(w http.ResponseWriter, message string, err error) {
	utils.WriteJSON(w, http.StatusBadRequest, utils.ErrorResponse(message, err.Error()))
}

const maxScanBody = 16 << 10

type scanRequest struct {
	QRCode  string `json:"qr_code"`
	EventID int64  `json:"event_id"`
}

// ScanQR checks a guest in.
// Expected POST body: {"qr_code": "...", "event_id": 1}
func (h *Handler) ScanQR(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxScanBody)
	var req scanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "Invalid request body", err)
		return
	}
	if req.EventID <= 0 {
		badRequest(w, "Invalid request body", errors.New("event_id is required"))
		return
	}
	if strings.TrimSpace(req.QRCode) == "" {
		badRequest(w, "Invalid request body", errors.New("qr_code is required"))
		return
	}

	res, err := h.Processor.CheckIn(r.Context(), req.EventID, req.QRCode)
	if err != nil {
		if checkin.IsValidation(err) {
			h.Logger.Info("CHECKIN", fmt.Sprintf("[event %d] scan rejected: %v", req.EventID, err))
		}
		h.fail(w, r, "Check-in failed", err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse(
		fmt.Sprintf("%s checked in", res.Guest.DisplayName()), newCheckInView(res)))
}

func (h *Handler) FixSeatingStatus(w http.ResponseWriter, r *http.Request) {
	eventID, err := idParam(r, "eventID")
	if err != nil {
		badRequest(w, "Invalid event", err)
		return
	}
	res, err := h.Processor.Repair(r.Context(), eventID)
	if err != nil {
		h.fail(w, r, "Seat repair failed", err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse(
		fmt.Sprintf("Fixed %d seats", res.Fixed), newRepairView(res)))
}

func (h *Handler) GetOccupancy(w http.ResponseWriter, r *http.Request) {
	eventID, err := idParam(r, "eventID")
	if err != nil {
		badRequest(w, "Invalid event", err)
		return
	}
	hall := strings.ToUpper(r.URL.Query().Get("hall"))
	if hall != "" && hall != models.HallA && hall != models.HallB {
		badRequest(w, "Invalid hall", fmt.Errorf("hall must be %s or %s", models.HallA, models.HallB))
		return
	}
	rows, err := h.Occupancy.ReadOccupancy(r.Context(), eventID, hall)
	if err != nil {
		h.fail(w, r, "Failed to read occupancy", err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("Occupancy", newOccupancyView(eventID, hall, rows)))
}

func (h *Handler) ListNotifications(w http.ResponseWriter, r *http.Request) {
	eventID, err := idParam(r, "eventID")
	if err != nil {
		badRequest(w, "Invalid event", err)
		return
	}
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err = strconv.Atoi(raw)
		if err != nil || limit < 0 {
			badRequest(w, "Invalid limit", errors.New("limit must be a non-negative integer"))
			return
		}
	}
	list, err := h.Notifications.ListUnread(r.Context(), eventID, limit)
	if err != nil {
		h.fail(w, r, "Failed to list notifications", err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse(fmt.Sprintf("%d unread", len(list)), list))
}

func (h *Handler) GetNotification(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "notificationID")
	if err != nil {
		badRequest(w, "Invalid notification", err)
		return
	}
	n, err := h.Notifications.Get(r.Context(), id)
	if err != nil {
		h.fail(w, r, "Notification not found", err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("Notification", n))
}

func (h *Handler) MarkNotificationRead(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "notificationID")
	if err != nil {
		badRequest(w, "Invalid notification", err)
		return
	}
	err = h.Notifications.MarkRead(r.Context(), id)
	if errors.Is(err, models.ErrNotFound) {
		// Acks race with retention; an unknown id counts as already read.
		h.Logger.Debug("API", fmt.Sprintf("mark-read of unknown notification %d", id))
		err = nil
	}
	if err != nil {
		h.fail(w, r, "Failed to mark notification read", err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("Notification marked read", map[string]int64{"id": id}))
}

// GuestQR renders the guest's door code as a PNG.
func (h *Handler) GuestQR(w http.ResponseWriter, r *http.Request) {
	eventID, err := idParam(r, "eventID")
	if err != nil {
		badRequest(w, "Invalid event", err)
		return
	}
	guestID, err := idParam(r, "guestID")
	if err != nil {
		badRequest(w, "Invalid guest", err)
		return
	}
	size, _ := strconv.Atoi(r.URL.Query().Get("size"))
	if size > 1024 {
		size = 1024
	}
	png, err := codes.PNG(guestID, eventID, size)
	if err != nil {
		h.fail(w, r, "Failed to render QR code", err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Disposition", fmt.Sprintf("inline; filename=guest_%d.png", guestID))
	w.Write(png)
}
