package desk

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"convoydesk/internal/domain"
	"convoydesk/internal/domain/booking"
	"convoydesk/internal/domain/reconcile"
	"convoydesk/internal/pkg/response"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	desk *Desk
}

func NewHandler(desk *Desk) *Handler {
	return &Handler{desk: desk}
}

// RegisterRoutes expects a group already scoped to /guilds/:guildID and guarded for staff.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	bookings := rg.Group("/bookings")
	{
		bookings.GET("", h.ListBookings)
		bookings.POST("", h.CreateBooking)
		bookings.GET("/:id", h.GetBooking)
		bookings.PATCH("/:id", h.EditBooking)
		bookings.DELETE("/:id", h.RemoveBooking)
		bookings.POST("/:id/status", h.ChangeStatus)
		bookings.POST("/:id/request-info", h.RequestInfo)
		bookings.POST("/:id/resync", h.Resync)
	}
}

// Actor is the display identity recorded for staff actions.
func Actor(c *gin.Context) string {
	if name := c.GetString("username"); name != "" {
		return name
	}
	return c.GetString("user_id")
}

func bookingID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid booking ID")
		return 0, false
	}
	return id, true
}

// RespondError maps booking errors onto the response envelope.
func RespondError(c *gin.Context, err error) {
	var verr *booking.ValidationError
	switch {
	case errors.As(err, &verr):
		response.ErrorWithDetails(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid booking fields", verr.Fields)
	case errors.Is(err, booking.ErrValidation), errors.Is(err, booking.ErrConfirmationRequired), errors.Is(err, ErrEmptyMessage):
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
	case errors.Is(err, booking.ErrMissingDeclineReason):
		response.Error(c, http.StatusBadRequest, "MISSING_DECLINE_REASON", "A reason is required to decline a booking")
	case errors.Is(err, booking.ErrNotFound):
		response.Error(c, http.StatusNotFound, "NOT_FOUND", "Booking not found")
	case errors.Is(err, booking.ErrConflictDetection):
		_ = c.Error(err)
		response.Error(c, http.StatusServiceUnavailable, "CONFLICT_DETECTION_FAILED", "Could not check for conflicts, try again")
	case errors.Is(err, reconcile.ErrNotMaterialized):
		response.Error(c, http.StatusConflict, "NOT_MATERIALIZED", "Booking has no channel yet")
	case errors.Is(err, reconcile.ErrExternalSync):
		_ = c.Error(err)
		response.Error(c, http.StatusBadGateway, "EXTERNAL_SYNC_FAILED", "Chat platform did not accept the change")
	default:
		response.Internal(c, err, "Something went wrong")
	}
}

// ListBookings accepts ?status=ACCEPTED,REVIEW.
func (h *Handler) ListBookings(c *gin.Context) {
	var statuses []domain.BookingStatus
	if raw := c.Query("status"); raw != "" {
		for _, part := range strings.Split(raw, ",") {
			st, err := domain.ParseBookingStatus(part)
			if err != nil {
				response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
				return
			}
			statuses = append(statuses, st)
		}
	}

	list, err := h.desk.List(c.Request.Context(), c.Param("guildID"), statuses)
	if err != nil {
		RespondError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"bookings": list})
}

func (h *Handler) GetBooking(c *gin.Context) {
	id, ok := bookingID(c)
	if !ok {
		return
	}
	b, err := h.desk.Get(c.Request.Context(), c.Param("guildID"), id)
	if err != nil {
		RespondError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"booking": b})
}

// CreateBooking files a booking on behalf of a requester.
func (h *Handler) CreateBooking(c *gin.Context) {
	var req booking.CreateInput
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
		return
	}
	req.GuildID = c.Param("guildID")

	b, err := h.desk.Submit(c.Request.Context(), req)
	if err != nil {
		RespondError(c, err)
		return
	}
	response.Success(c, http.StatusCreated, gin.H{"booking": b})
}

func (h *Handler) EditBooking(c *gin.Context) {
	id, ok := bookingID(c)
	if !ok {
		return
	}
	var req booking.EditInput
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
		return
	}
	req.GuildID = c.Param("guildID")
	req.BookingID = id
	req.Actor = Actor(c)

	b, res, err := h.desk.Edit(c.Request.Context(), req)
	if err != nil {
		RespondError(c, err)
		return
	}
	data := gin.H{"booking": b}
	if res.HasConflict() {
		data["conflict"] = res
	}
	response.Success(c, http.StatusOK, data)
}

type statusRequest struct {
	Status string `json:"status" binding:"required"`
	Reason string `json:"reason"`
}

func (h *Handler) ChangeStatus(c *gin.Context) {
	id, ok := bookingID(c)
	if !ok {
		return
	}
	var req statusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
		return
	}
	st, err := domain.ParseBookingStatus(req.Status)
	if err != nil {
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return
	}

	b, err := h.desk.ChangeStatus(c.Request.Context(), booking.TransitionInput{
		GuildID:   c.Param("guildID"),
		BookingID: id,
		Status:    st,
		Actor:     Actor(c),
		Reason:    req.Reason,
	})
	if err != nil {
		RespondError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"booking": b})
}

// RemoveBooking requires ?confirm=DELETE.
func (h *Handler) RemoveBooking(c *gin.Context) {
	id, ok := bookingID(c)
	if !ok {
		return
	}
	if err := h.desk.Remove(c.Request.Context(), c.Param("guildID"), id, c.Query("confirm"), Actor(c)); err != nil {
		RespondError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"deleted": id})
}

type infoRequest struct {
	Message string `json:"message" binding:"required"`
}

func (h *Handler) RequestInfo(c *gin.Context) {
	id, ok := bookingID(c)
	if !ok {
		return
	}
	var req infoRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
		return
	}
	if err := h.desk.RequestInfo(c.Request.Context(), c.Param("guildID"), id, Actor(c), req.Message); err != nil {
		RespondError(c, err)
		return
	}
	response.Success(c, http.StatusAccepted, gin.H{"sent": true})
}

func (h *Handler) Resync(c *gin.Context) {
	id, ok := bookingID(c)
	if !ok {
		return
	}
	b, err := h.desk.ResyncBooking(c.Request.Context(), c.Param("guildID"), id, Actor(c))
	if err != nil {
		RespondError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"booking": b})
}
