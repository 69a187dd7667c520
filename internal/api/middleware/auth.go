package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"medic-workbook/backend/pkg/jwt"
	"medic-workbook/backend/pkg/response"
)

// JWTAuth verifies the access token and injects user_id and role.
// The token comes from "Authorization: Bearer <token>", or from the
// access_token query parameter when allowQuery is set (EventSource cannot send headers).
func JWTAuth(jwtMgr *jwt.Manager, allowQuery bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := ""
		if authHeader := c.GetHeader("Authorization"); authHeader != "" {
			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || parts[0] != "Bearer" {
				response.Unauthorized(c, 10002, "malformed authorization header")
				c.Abort()
				return
			}
			token = parts[1]
		} else if allowQuery {
			token = c.Query("access_token")
		}
		if token == "" {
			response.Unauthorized(c, 10002, "missing credentials")
			c.Abort()
			return
		}

		claims, err := jwtMgr.ParseToken(token)
		if err != nil {
			response.Unauthorized(c, 10002, "token invalid or expired")
			c.Abort()
			return
		}

		c.Set("user_id", claims.UserID)
		c.Set("role", claims.Role)

		c.Next()
	}
}

// RoleAuth allows the request only for one of allowedRoles.
func RoleAuth(allowedRoles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		role, exists := c.Get("role")
		if !exists {
			response.Unauthorized(c, 10002, "not authenticated")
			c.Abort()
			return
		}

		userRole, _ := role.(string)
		for _, r := range allowedRoles {
			if userRole == r {
				c.Next()
				return
			}
		}

		response.Forbidden(c, 10003, "forbidden")
		c.Abort()
	}
}
