package guildconfig

import (
	"errors"
	"net/http"

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
	rg.GET("/config", h.GetConfig)
	rg.PATCH("/config", h.UpdateConfig)
}

func (h *Handler) GetConfig(c *gin.Context) {
	cfg, err := h.service.Get(c.Request.Context(), c.Param("guildID"))
	if err != nil {
		response.Internal(c, err, "Failed to load configuration")
		return
	}
	response.Success(c, http.StatusOK, gin.H{"config": cfg})
}

func (h *Handler) UpdateConfig(c *gin.Context) {
	var req UpdateInput
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
		return
	}

	cfg, err := h.service.Update(c.Request.Context(), c.Param("guildID"), req)
	if err != nil {
		if errors.Is(err, ErrValidation) {
			response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
			return
		}
		response.Internal(c, err, "Failed to save configuration")
		return
	}
	response.Success(c, http.StatusOK, gin.H{"config": cfg})
}
