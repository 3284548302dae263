package invoice

import (
	"net/http"
	"time"

	"mutaengine_back_end/internal/middleware"
	"mutaengine_back_end/internal/services"
	"mutaengine_back_end/internal/utils"

	"github.com/gin-gonic/gin"
)

type InvoiceHandler struct {
	orders *services.OrderService
	urlTTL time.Duration
}

func NewInvoiceHandler(orders *services.OrderService, urlTTL time.Duration) *InvoiceHandler {
	return &InvoiceHandler{orders: orders, urlTTL: urlTTL}
}

// GET /api/order/:id/invoice/
// @Summary URL signée de la facture
// @Tags orders
// @Produce json
// @Param id path string true "id"
// @Security BearerAuth
// @Success 200 {object} utils.Envelope
// @Failure 400 {object} utils.Envelope
// @Router /api/order/{id}/invoice/ [get]
func (h *InvoiceHandler) GetInvoiceURL(c *gin.Context) {
	user, _ := middleware.CurrentUser(c)
	orderID := c.Param("id")

	url, err := h.orders.InvoiceURL(c.Request.Context(), user.ID, orderID)
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	utils.Respond(c, http.StatusOK, "Invoice fetched successfully.", gin.H{
		"order_id":    orderID,
		"invoice_ref": utils.InvoiceReference(orderID),
		"url":         url,
		"expires_in":  int(h.urlTTL.Seconds()),
	})
}
