package middleware

import (
	"log"
	"strings"

	"mutaengine_back_end/internal/models"
	"mutaengine_back_end/internal/utils"

	"github.com/gin-gonic/gin"
)

const userKey = "user"

// AuthRequired valide l'access token et place l'utilisateur dans le context Gin.
// Les navigateurs ne peuvent pas poser de header sur un upgrade WebSocket : le token
// est alors accepté en query (?token=).
func AuthRequired(issuer *utils.TokenIssuer) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString, ok := bearerToken(c)
		if !ok {
			utils.RespondError(c, utils.AuthenticationFailed("Authentication credentials were not provided."))
			return
		}

		claims, err := issuer.Parse(tokenString, utils.TokenTypeAccess)
		if err != nil {
			log.Printf("❌ JWT refusé sur %s: %v", c.FullPath(), err)
			utils.RespondError(c, utils.AuthenticationFailed("Given token not valid for any token type"))
			return
		}

		user := claims.User()
		c.Set(userKey, user)
		c.Set("user_id", user.ID)
		c.Set("email", user.Email)
		c.Next()
	}
}

func bearerToken(c *gin.Context) (string, bool) {
	header := c.GetHeader("Authorization")
	if header == "" {
		if strings.EqualFold(c.GetHeader("Upgrade"), "websocket") {
			if token := c.Query("token"); token != "" {
				return token, true
			}
		}
		return "", false
	}
	parts := strings.Fields(header)
	if len(parts) != 2 || parts[0] != "Bearer" {
		return "", false
	}
	return parts[1], true
}

// CurrentUser retourne l'utilisateur posé par AuthRequired
func CurrentUser(c *gin.Context) (models.User, bool) {
	v, ok := c.Get(userKey)
	if !ok {
		return models.User{}, false
	}
	user, ok := v.(models.User)
	return user, ok
}
