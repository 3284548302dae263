package handlers

import (
	"log"
	"net/http"

	"mutaengine_back_end/internal/services"
	"mutaengine_back_end/internal/utils"

	"github.com/gin-gonic/gin"
	"github.com/markbates/goth/gothic"
)

// OAuthHandler porte le flux redirect navigateur (gothic + cookie store)
type OAuthHandler struct {
	auth *services.AuthService
}

func NewOAuthHandler(auth *services.AuthService) *OAuthHandler {
	return &OAuthHandler{auth: auth}
}

// gothic.GetProviderName lit le provider dans la query
func withProvider(c *gin.Context) bool {
	provider := c.Param("provider")
	if provider == "" {
		utils.RespondError(c, utils.Validationf("no provider specified"))
		return false
	}
	q := c.Request.URL.Query()
	q.Set("provider", provider)
	c.Request.URL.RawQuery = q.Encode()
	return true
}

// @Summary Redirige vers le fournisseur OAuth
// @Tags auth
// @Produce json
// @Param provider path string true "provider"
// @Success 307
// @Failure 400 {object} utils.Envelope
// @Router /auth/{provider}/ [get]
func (h *OAuthHandler) BeginAuth(c *gin.Context) {
	if !withProvider(c) {
		return
	}
	gothic.BeginAuthHandler(c.Writer, c.Request)
}

// @Summary Retour du fournisseur OAuth
// @Tags auth
// @Produce json
// @Param provider path string true "provider"
// @Success 200 {object} utils.Envelope
// @Failure 400 {object} utils.Envelope
// @Router /auth/{provider}/callback/ [get]
func (h *OAuthHandler) CallbackAuth(c *gin.Context) {
	if !withProvider(c) {
		return
	}

	identity, err := gothic.CompleteUserAuth(c.Writer, c.Request)
	if err != nil {
		log.Printf("❌ OAuth %s: %v", c.Param("provider"), err)
		utils.RespondError(c, utils.AuthenticationFailed("OAuth sign-in failed"))
		return
	}

	res, err := h.auth.SignInWithIdentity(c.Request.Context(), c.Param("provider"), identity)
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	utils.Respond(c, http.StatusOK, "Login successful", res)
}
