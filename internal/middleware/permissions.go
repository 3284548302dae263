package middleware

import (
	"log"

	"mutaengine_back_end/internal/utils"

	"github.com/gin-gonic/gin"
)

// RequireCapability refuse la requête si l'utilisateur authentifié n'a pas la capacité.
// À monter après AuthRequired.
func RequireCapability(capability string) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := CurrentUser(c)
		if !ok {
			utils.RespondError(c, utils.AuthenticationFailed("Authentication credentials were not provided."))
			return
		}
		if !user.Can(capability) {
			log.Printf("🚫 Permission refusée: %s pour utilisateur %s", capability, user.ID)
			utils.RespondError(c, utils.PermissionDenied("You do not have permission to perform this action."))
			return
		}
		c.Next()
	}
}
