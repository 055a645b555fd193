package handlers

import (
	"errors"
	"net/http"

	"restaurant_backend/internal/services"
	"restaurant_backend/pkg/utils"

	"github.com/gin-gonic/gin"
)

// actorFromContext rebuilds the acting user from the claims AuthMiddleware
// stored in the gin context. On failure it writes the 401 response itself and
// returns ok=false.
func actorFromContext(c *gin.Context) (services.Actor, bool) {
	userIDRaw, exists := c.Get("userID")
	if !exists {
		utils.LogError(errors.New("userID not found in context"), "actorFromContext: userID not in context")
		utils.RespondWithError(c, utils.NewAPIError(http.StatusUnauthorized, utils.ErrCodeUnauthorized, "User not authenticated.", "Missing user ID in context"))
		return services.Actor{}, false
	}
	userID, ok := userIDRaw.(int64)
	if !ok {
		utils.LogError(errors.New("userID is not of type int64"), "actorFromContext: userID type assertion failed")
		utils.RespondWithError(c, utils.NewAPIError(http.StatusUnauthorized, utils.ErrCodeUnauthorized, "User ID format incorrect.", "Invalid user ID format in context"))
		return services.Actor{}, false
	}
	return services.Actor{
		UserID: userID,
		Role:   c.GetString("userRole"),
	}, true
}
