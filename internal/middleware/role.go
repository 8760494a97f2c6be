package middleware

import (
	"net/http"

	"convoydesk/internal/pkg/response"

	"github.com/gin-gonic/gin"
)

const (
	RoleAdmin  = "admin"
	RoleStaff  = "staff"
	RoleMember = "member"
)

// RequireRole ensures that the authenticated user has one of the roles
func RequireRole(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		role, exists := c.Get("role")
		if !exists {
			response.Abort(c, http.StatusUnauthorized, "UNAUTHORIZED", "Role not found in token")
			return
		}

		for _, r := range roles {
			if role.(string) == r {
				c.Next()
				return
			}
		}
		response.Abort(c, http.StatusForbidden, "FORBIDDEN", "Access denied: insufficient permissions")
	}
}

// StaffOnly lets guild staff and admins through
func StaffOnly() gin.HandlerFunc {
	return RequireRole(RoleStaff, RoleAdmin)
}
