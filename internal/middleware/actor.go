package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/bayani-hr/payroll-api/internal/models"
	appErrors "github.com/bayani-hr/payroll-api/pkg/errors"
	"github.com/bayani-hr/payroll-api/pkg/response"
)

// Context keys for the actor identity propagated by the gateway.
const (
	ContextActorIDKey   = "actorID"
	ContextActorRoleKey = "actorRole"

	HeaderActorID   = "X-Actor-ID"
	HeaderActorRole = "X-Actor-Role"
)

// Actor extracts the gateway-supplied actor identity headers into the
// request context. Authentication itself happens upstream.
func Actor() gin.HandlerFunc {
	return func(c *gin.Context) {
		if id := c.GetHeader(HeaderActorID); id != "" {
			c.Set(ContextActorIDKey, id)
		}
		if raw := c.GetHeader(HeaderActorRole); raw != "" {
			role := models.Role(raw)
			if role.Valid() {
				c.Set(ContextActorRoleKey, role)
			}
		}
		c.Next()
	}
}

// RequireRole aborts the request unless the actor carries one of the
// allowed roles.
func RequireRole(allowed ...models.Role) gin.HandlerFunc {
	permitted := make(map[models.Role]bool, len(allowed))
	for _, role := range allowed {
		permitted[role] = true
	}
	return func(c *gin.Context) {
		value, exists := c.Get(ContextActorRoleKey)
		if !exists {
			response.Error(c, appErrors.Clone(appErrors.ErrForbidden, "actor role is required"))
			c.Abort()
			return
		}
		role, ok := value.(models.Role)
		if !ok || !permitted[role] {
			response.Error(c, appErrors.Clone(appErrors.ErrForbidden, "insufficient role"))
			c.Abort()
			return
		}
		c.Next()
	}
}
