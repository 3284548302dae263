package user

import (
	"net/http"

	"mutaengine_back_end/internal/utils"

	"github.com/gin-gonic/gin"
)

// @Summary Envoie le lien de réinitialisation
// @Tags auth
// @Accept json
// @Produce json
// @Success 200 {object} utils.Envelope
// @Failure 400 {object} utils.Envelope
// @Router /auth/password-reset/ [post]
func (h *AuthHandler) RequestPasswordReset(c *gin.Context) {
	var input struct {
		Email string `json:"email" binding:"required,email"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		utils.Respond(c, http.StatusBadRequest, "Invalid email address.", gin.H{"error": "Enter a valid email address."})
		return
	}

	err := h.auth.RequestPasswordReset(c.Request.Context(), input.Email)
	if utils.IsKind(err, utils.KindValidation) {
		utils.Respond(c, http.StatusBadRequest, "Invalid email address.", gin.H{"error": errorMessage(err)})
		return
	}
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	utils.Respond(c, http.StatusOK, "Password reset email sent.", gin.H{})
}

// @Summary Applique le nouveau mot de passe
// @Tags auth
// @Accept json
// @Produce json
// @Success 200 {object} utils.Envelope
// @Failure 400 {object} utils.Envelope
// @Router /auth/password-reset/confirm/ [post]
func (h *AuthHandler) ConfirmPasswordReset(c *gin.Context) {
	var input struct {
		UID         string `json:"uid" binding:"required"`
		Token       string `json:"token" binding:"required"`
		NewPassword string `json:"new_password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		utils.Respond(c, http.StatusBadRequest, "Invalid token or password reset failed.", gin.H{"error": err.Error()})
		return
	}

	err := h.auth.ConfirmPasswordReset(c.Request.Context(), input.UID, input.Token, input.NewPassword)
	if utils.IsKind(err, utils.KindValidation) {
		utils.Respond(c, http.StatusBadRequest, "Invalid token or password reset failed.", gin.H{"error": errorMessage(err)})
		return
	}
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	utils.Respond(c, http.StatusOK, "Password has been reset successfully.", gin.H{})
}
