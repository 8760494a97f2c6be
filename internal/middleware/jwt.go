package middleware

import (
	"net/http"
	"strings"

	"convoydesk/internal/pkg/jwt"
	"convoydesk/internal/pkg/response"

	"github.com/gin-gonic/gin"
)

// JWTAuth validates the bearer token and stores the identity in the context
// under user_id, username, role and guild_ids. Browsers cannot set headers
// on websocket upgrades, so a token query parameter is accepted there.
func JWTAuth(jwtService *jwt.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenStr := ""
		authHeader := c.GetHeader("Authorization")
		switch {
		case authHeader != "":
			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
				response.Abort(c, http.StatusUnauthorized, "INVALID_AUTH_FORMAT", "Authorization header must be 'Bearer <token>'")
				return
			}
			tokenStr = strings.TrimSpace(parts[1])
		case isWebSocketUpgrade(c):
			tokenStr = c.Query("token")
		}
		if tokenStr == "" {
			response.Abort(c, http.StatusUnauthorized, "AUTH_HEADER_MISSING", "Authorization header is required")
			return
		}

		claims, err := jwtService.ValidateToken(tokenStr)
		if err != nil {
			response.Abort(c, http.StatusUnauthorized, "INVALID_TOKEN", "Invalid or expired token")
			return
		}

		c.Set("user_id", claims.UserID)
		c.Set("username", claims.Username)
		c.Set("role", claims.Role)
		c.Set("guild_ids", claims.GuildIDs)
		c.Next()
	}
}

func isWebSocketUpgrade(c *gin.Context) bool {
	return strings.EqualFold(c.GetHeader("Upgrade"), "websocket")
}

// RequireGuild rejects requests for a :guildID the token does not cover.
// Admins pass for every guild.
func RequireGuild() gin.HandlerFunc {
	return func(c *gin.Context) {
		guildID := c.Param("guildID")
		if c.GetString("role") == RoleAdmin {
			c.Next()
			return
		}
		for _, g := range c.GetStringSlice("guild_ids") {
			if g == guildID {
				c.Next()
				return
			}
		}
		response.Abort(c, http.StatusForbidden, "FORBIDDEN", "No access to this guild")
	}
}
