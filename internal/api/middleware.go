package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Operator roles. Every admin route names the roles it admits.
const (
	RoleAdmin  = "admin"
	RoleBroker = "broker"
	RoleCA     = "ca"
	RoleLawyer = "lawyer"
)

const (
	apiKeyHeader = "X-API-Key"

	ctxOperatorKey  = "operator_key"
	ctxOperatorRole = "operator_role"
)

// RequireRole authenticates the operator API key and authorizes it against
// the allowed roles. Keys map to exactly one role.
func RequireRole(keys map[string]string, allowed ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.GetHeader(apiKeyHeader)
		if key == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Missing API key",
			})
			return
		}

		role, ok := keys[key]
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Invalid API key",
			})
			return
		}

		for _, a := range allowed {
			if role == a {
				c.Set(ctxOperatorKey, key)
				c.Set(ctxOperatorRole, role)
				c.Next()
				return
			}
		}
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
			"error": "This role cannot perform that action",
		})
	}
}

// actorID identifies the authenticated operator for audit records. The key
// itself never lands in the database; its tail is enough to tell operators
// of the same role apart.
func actorID(c *gin.Context) string {
	role := c.GetString(ctxOperatorRole)
	if role == "" {
		return "unknown"
	}
	key := c.GetString(ctxOperatorKey)
	if len(key) > 4 {
		key = key[len(key)-4:]
	}
	return role + ":" + key
}
