package intake

import (
	"errors"
	"net/http"

	"convoydesk/internal/domain/desk"
	"convoydesk/internal/pkg/response"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes expects an authenticated group scoped to /guilds/:guildID.
// Any member of the guild may file a request for themselves.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	intake := rg.Group("/intake")
	{
		intake.POST("/step1", h.SaveStep1)
		intake.GET("/draft", h.GetDraft)
		intake.DELETE("/draft", h.CancelDraft)
		intake.POST("/complete", h.Complete)
	}
}

func (h *Handler) respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrValidation):
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
	case errors.Is(err, ErrDraftExpired):
		response.Error(c, http.StatusGone, "DRAFT_EXPIRED", "The request form expired, start again")
	case errors.Is(err, ErrDraftNotFound):
		response.Error(c, http.StatusNotFound, "NOT_FOUND", "No request in progress")
	default:
		desk.RespondError(c, err)
	}
}

func (h *Handler) SaveStep1(c *gin.Context) {
	var req Step1
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
		return
	}
	d, err := h.service.SaveStep1(c.Request.Context(), c.Param("guildID"), c.GetString("user_id"), c.GetString("username"), req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	response.Success(c, http.StatusCreated, gin.H{"expires_at": d.ExpiresAt})
}

func (h *Handler) GetDraft(c *gin.Context) {
	d, err := h.service.Draft(c.Request.Context(), c.Param("guildID"), c.GetString("user_id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"expires_at": d.ExpiresAt})
}

func (h *Handler) CancelDraft(c *gin.Context) {
	if err := h.service.Cancel(c.Request.Context(), c.Param("guildID"), c.GetString("user_id")); err != nil {
		response.Internal(c, err, "Failed to discard request")
		return
	}
	response.Success(c, http.StatusOK, gin.H{"discarded": true})
}

func (h *Handler) Complete(c *gin.Context) {
	var req Step2
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
		return
	}
	b, err := h.service.Complete(c.Request.Context(), c.Param("guildID"), c.GetString("user_id"), req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	response.Success(c, http.StatusCreated, gin.H{"booking": b})
}
