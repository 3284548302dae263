package payement

import (
	"io"
	"net/http"

	"mutaengine_back_end/internal/services"
	"mutaengine_back_end/internal/utils"

	"github.com/gin-gonic/gin"
)

// limite Stripe recommandée pour les payloads de webhook
const MaxBodyBytes = int64(65536)

type WebhookHandler struct {
	webhooks *services.WebhookService
}

func NewWebhookHandler(webhooks *services.WebhookService) *WebhookHandler {
	return &WebhookHandler{webhooks: webhooks}
}

// StripeWebhook répond 200 dès que la signature est valide, même si l'événement est ignoré
// @Summary Webhook Stripe signé
// @Tags payments
// @Produce json
// @Param Stripe-Signature header string true "signature Stripe"
// @Success 200 {object} utils.Envelope
// @Failure 400 {object} utils.Envelope
// @Router /api/stripe/webhook/ [post]
func (h *WebhookHandler) StripeWebhook(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, MaxBodyBytes)
	payload, err := io.ReadAll(c.Request.Body)
	if err != nil {
		utils.RespondError(c, utils.SignatureError(err, "Invalid payload or signature."))
		return
	}

	if _, err := h.webhooks.Handle(c.Request.Context(), payload, c.GetHeader("Stripe-Signature")); err != nil {
		utils.RespondError(c, err)
		return
	}
	utils.Respond(c, http.StatusOK, "Webhook processed", gin.H{"status": "success"})
}
