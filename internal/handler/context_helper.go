package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/bayani-hr/payroll-api/internal/middleware"
	"github.com/bayani-hr/payroll-api/internal/models"
)

func actorID(c *gin.Context) string {
	value, exists := c.Get(middleware.ContextActorIDKey)
	if !exists {
		return ""
	}
	id, _ := value.(string)
	return id
}

func actorRole(c *gin.Context) models.Role {
	value, exists := c.Get(middleware.ContextActorRoleKey)
	if !exists {
		return ""
	}
	role, _ := value.(models.Role)
	return role
}
