// internal/handlers/common.go
package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/marketbridge/wholesale-backend/internal/models"
	"github.com/marketbridge/wholesale-backend/internal/utils"
)

// currentActor pulls the authenticated user out of the request context.
// Handlers behind AuthRequired can rely on it; it writes the error
// response itself when the context is missing or malformed.
func currentActor(c *gin.Context) (uuid.UUID, models.UserType, bool) {
	userIDStr, exists := utils.GetUserIDFromContext(c)
	if !exists {
		utils.UnauthorizedResponse(c, "")
		return uuid.Nil, "", false
	}

	userID, err := uuid.Parse(userIDStr)
	if err != nil {
		utils.BadRequestResponse(c, "Invalid user ID", nil)
		return uuid.Nil, "", false
	}

	userType, _ := utils.GetUserTypeFromContext(c)
	return userID, models.UserType(userType), true
}

func pathUUID(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		utils.BadRequestResponse(c, "Invalid "+name, nil)
		return uuid.Nil, false
	}
	return id, true
}
