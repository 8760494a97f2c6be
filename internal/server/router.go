// Package server assembles the HTTP surface.
package server

import (
	"net/http"

	"convoydesk/internal/domain/closure"
	"convoydesk/internal/domain/desk"
	"convoydesk/internal/domain/guildconfig"
	"convoydesk/internal/domain/intake"
	"convoydesk/internal/domain/realtime"
	"convoydesk/internal/middleware"
	jwtsvc "convoydesk/internal/pkg/jwt"
	"convoydesk/internal/pkg/response"

	"github.com/gin-gonic/gin"
)

type Handlers struct {
	Desk     *desk.Handler
	Closures *closure.Handler
	Configs  *guildconfig.Handler
	Intake   *intake.Handler
	Realtime *realtime.Handler
}

// NewRouter mounts everything under /api/v1. Guild routes require a token
// covering the guild; booking, closure and config management and the live
// dashboard feed are staff only.
func NewRouter(j *jwtsvc.Service, corsOrigins []string, h Handlers) *gin.Engine {
	r := gin.New()
	r.Use(gin.Logger(), middleware.RequestID(), middleware.ErrorLogger(), middleware.CORS(corsOrigins))

	v1 := r.Group("/api/v1")
	{
		v1.GET("/health", func(c *gin.Context) {
			response.Success(c, http.StatusOK, gin.H{"status": "ok"})
		})

		authed := v1.Group("/")
		authed.Use(middleware.JWTAuth(j))

		live := authed.Group("")
		live.Use(middleware.StaffOnly())
		h.Realtime.RegisterRoutes(live)

		guild := authed.Group("/guilds/:guildID")
		guild.Use(middleware.RequireGuild())
		{
			// requesters
			h.Intake.RegisterRoutes(guild)

			// staff
			staff := guild.Group("")
			staff.Use(middleware.StaffOnly())
			h.Desk.RegisterRoutes(staff)
			h.Closures.RegisterRoutes(staff)
			h.Configs.RegisterRoutes(staff)
		}
	}
	return r
}
