package user

import (
	"errors"
	"net/http"

	"mutaengine_back_end/internal/middleware"
	"mutaengine_back_end/internal/services"
	"mutaengine_back_end/internal/utils"

	"github.com/gin-gonic/gin"
)

type AuthHandler struct {
	auth *services.AuthService
}

func NewAuthHandler(auth *services.AuthService) *AuthHandler {
	return &AuthHandler{auth: auth}
}

// ================== AUTH LOCALE ==================

// @Summary Inscription locale
// @Tags auth
// @Accept json
// @Produce json
// @Param body body services.RegisterInput true "payload"
// @Success 201 {object} utils.Envelope
// @Failure 400 {object} utils.Envelope
// @Router /auth/register/ [post]
func (h *AuthHandler) Register(c *gin.Context) {
	var input services.RegisterInput
	if err := c.ShouldBindJSON(&input); err != nil {
		utils.Respond(c, http.StatusBadRequest, "User registration failed", gin.H{"error": err.Error()})
		return
	}

	user, err := h.auth.Register(c.Request.Context(), input)
	if err != nil {
		if utils.IsKind(err, utils.KindValidation) {
			utils.Respond(c, http.StatusBadRequest, "User registration failed", gin.H{"error": errorMessage(err)})
			return
		}
		utils.RespondError(c, err)
		return
	}
	utils.Respond(c, http.StatusCreated, "User registered successfully", services.ProfileOf(user))
}

// @Summary Connexion par username ou email
// @Tags auth
// @Accept json
// @Produce json
// @Param body body services.LoginInput true "payload"
// @Success 200 {object} utils.Envelope
// @Failure 400 {object} utils.Envelope
// @Router /auth/login/ [post]
func (h *AuthHandler) Login(c *gin.Context) {
	var input services.LoginInput
	if err := c.ShouldBindJSON(&input); err != nil {
		utils.Respond(c, http.StatusBadRequest, "Invalid credentials", gin.H{"error": err.Error()})
		return
	}

	res, err := h.auth.Login(c.Request.Context(), input)
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	utils.Respond(c, http.StatusOK, "Login successful", res)
}

// @Summary Rotation du refresh token
// @Tags auth
// @Accept json
// @Produce json
// @Success 200 {object} utils.Envelope
// @Failure 400 {object} utils.Envelope
// @Router /auth/token/refresh/ [post]
func (h *AuthHandler) Refresh(c *gin.Context) {
	var input struct {
		Refresh string `json:"refresh" binding:"required"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		utils.RespondError(c, utils.Validationf("refresh: This field is required."))
		return
	}

	res, err := h.auth.Refresh(c.Request.Context(), input.Refresh)
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	utils.Respond(c, http.StatusOK, "Token refreshed", gin.H{"access": res.Access, "refresh": res.Refresh})
}

// @Summary Révoque le refresh token
// @Tags auth
// @Accept json
// @Produce json
// @Security BearerAuth
// @Success 204
// @Failure 400 {object} utils.Envelope
// @Router /auth/logout/ [post]
func (h *AuthHandler) Logout(c *gin.Context) {
	user, _ := middleware.CurrentUser(c)
	var input struct {
		Refresh string `json:"refresh" binding:"required"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		utils.RespondError(c, utils.Validationf("refresh: This field is required."))
		return
	}

	if err := h.auth.Logout(c.Request.Context(), user.ID, input.Refresh); err != nil {
		utils.RespondError(c, err)
		return
	}
	utils.Respond(c, http.StatusOK, "Logged out", gin.H{})
}

// ================== AUTH SOCIALE ==================

// SocialSignIn échange un access token Google/Facebook obtenu côté front
// @Summary Connexion Google ou Facebook par access token
// @Tags auth
// @Accept json
// @Produce json
// @Param provider path string true "provider"
// @Success 200 {object} utils.Envelope
// @Failure 400 {object} utils.Envelope
// @Router /auth/social/{provider}/ [post]
func (h *AuthHandler) SocialSignIn(c *gin.Context) {
	var input struct {
		AccessToken string `json:"access_token" binding:"required"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		utils.Respond(c, http.StatusBadRequest, "Invalid credentials", gin.H{"error": err.Error()})
		return
	}

	res, err := h.auth.SocialSignIn(c.Request.Context(), c.Param("provider"), input.AccessToken)
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	utils.Respond(c, http.StatusOK, "Login successful", res)
}

func errorMessage(err error) string {
	var appErr *utils.AppError
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	return err.Error()
}
