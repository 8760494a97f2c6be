package closure

import (
	"errors"
	"net/http"
	"strconv"

	"convoydesk/internal/pkg/response"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes expects a group already scoped to /guilds/:guildID and guarded for staff.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/closures", h.ListClosures)
	rg.POST("/closures", h.CreateClosure)
	rg.DELETE("/closures/:id", h.DeleteClosure)
}

func (h *Handler) ListClosures(c *gin.Context) {
	list, err := h.service.List(c.Request.Context(), c.Param("guildID"))
	if err != nil {
		response.Internal(c, err, "Failed to load closures")
		return
	}
	response.Success(c, http.StatusOK, gin.H{"closures": list})
}

func (h *Handler) CreateClosure(c *gin.Context) {
	var req CreateInput
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
		return
	}

	cl, err := h.service.Create(c.Request.Context(), c.Param("guildID"), c.GetString("user_id"), req)
	if err != nil {
		if errors.Is(err, ErrValidation) {
			response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
			return
		}
		response.Internal(c, err, "Failed to create closure")
		return
	}
	response.Success(c, http.StatusCreated, gin.H{"closure": cl})
}

func (h *Handler) DeleteClosure(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid closure ID")
		return
	}

	if err := h.service.Delete(c.Request.Context(), c.Param("guildID"), id); err != nil {
		if errors.Is(err, ErrNotFound) {
			response.Error(c, http.StatusNotFound, "NOT_FOUND", "Closure not found")
			return
		}
		response.Internal(c, err, "Failed to delete closure")
		return
	}
	response.Success(c, http.StatusOK, gin.H{"deleted": id})
}
