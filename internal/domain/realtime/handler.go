package realtime

import (
	"log"
	"net/http"

	"convoydesk/internal/pkg/response"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	hub *Hub
}

func NewHandler(hub *Hub) *Handler {
	return &Handler{hub: hub}
}

// RegisterRoutes expects an authenticated, staff-only group. Events carry
// full bookings including internal notes.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/ws", h.WebSocket)
}

// WebSocket upgrades the request. ?guild=<id> subscribes immediately; more
// guilds can be added with subscribe messages.
func (h *Handler) WebSocket(c *gin.Context) {
	userID := c.GetString("user_id")
	if userID == "" {
		response.Error(c, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required")
		return
	}
	allowed := c.GetStringSlice("guild_ids")

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("realtime_upgrade_error user=%s err=%v", userID, err)
		return
	}

	var initial []string
	if g := c.Query("guild"); g != "" {
		initial = append(initial, g)
	}
	h.hub.Serve(conn, userID, allowed, initial)
}
