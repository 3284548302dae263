package user

import (
	"net/http"
	"time"

	"mutaengine_back_end/internal/middleware"
	"mutaengine_back_end/internal/models"
	"mutaengine_back_end/internal/services"
	"mutaengine_back_end/internal/utils"

	"github.com/gin-gonic/gin"
)

type OrderHandler struct {
	checkout *services.CheckoutService
	orders   *services.OrderService
}

func NewOrderHandler(checkout *services.CheckoutService, orders *services.OrderService) *OrderHandler {
	return &OrderHandler{checkout: checkout, orders: orders}
}

type orderItemView struct {
	ID           string `json:"id"`
	Product      string `json:"product"`
	ProductTitle string `json:"product_title"`
	ProductPrice string `json:"product_price"`
	Quantity     int    `json:"quantity"`
	TotalPrice   string `json:"total_price"`
}

type orderView struct {
	ID              string             `json:"id"`
	User            string             `json:"user"`
	Items           []orderItemView    `json:"items"`
	TotalAmount     string             `json:"total_amount"`
	ExternalOrderID string             `json:"external_order_id"`
	PaymentURL      string             `json:"payment_url"`
	Status          models.OrderStatus `json:"status"`
	CreatedAt       time.Time          `json:"created_at"`
}

func viewOrder(o models.Order) orderView {
	items := make([]orderItemView, 0, len(o.Items))
	for _, it := range o.Items {
		items = append(items, orderItemView{
			ID:           it.ID,
			Product:      it.ProductID,
			ProductTitle: it.ProductTitle,
			ProductPrice: it.UnitPrice.StringFixed(2),
			Quantity:     it.Quantity,
			TotalPrice:   it.Price.StringFixed(2),
		})
	}
	return orderView{
		ID:              o.ID,
		User:            o.UserID,
		Items:           items,
		TotalAmount:     o.TotalAmount.StringFixed(2),
		ExternalOrderID: o.ExternalOrderID,
		PaymentURL:      o.PaymentURL,
		Status:          o.Status,
		CreatedAt:       o.CreatedAt,
	}
}

// CreateOrder fige le panier et renvoie l'URL de paiement Stripe
// @Summary Ouvre une session Stripe Checkout
// @Tags orders
// @Accept json
// @Produce json
// @Security BearerAuth
// @Success 201 {object} utils.Envelope
// @Failure 400 {object} utils.Envelope
// @Router /api/order/ [post]
func (h *OrderHandler) CreateOrder(c *gin.Context) {
	user, _ := middleware.CurrentUser(c)

	res, err := h.checkout.CreateOrder(c.Request.Context(), user)
	if err != nil {
		if utils.IsKind(err, utils.KindValidation) {
			utils.Respond(c, http.StatusBadRequest, errorMessage(err), gin.H{})
			return
		}
		if utils.IsKind(err, utils.KindProvider) {
			utils.Respond(c, http.StatusInternalServerError, errorMessage(err), gin.H{"error": "payment provider error"})
			return
		}
		utils.RespondError(c, err)
		return
	}
	utils.Respond(c, http.StatusCreated, "Order created successfully.", res)
}

// GetMyOrders : commandes de l'utilisateur connecté
// @Summary Historique des commandes
// @Tags orders
// @Produce json
// @Security BearerAuth
// @Success 200 {object} utils.Envelope
// @Failure 400 {object} utils.Envelope
// @Router /api/order/ [get]
func (h *OrderHandler) GetMyOrders(c *gin.Context) {
	user, _ := middleware.CurrentUser(c)

	orders, err := h.orders.ListOrders(c.Request.Context(), user.ID)
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	views := make([]orderView, 0, len(orders))
	for _, o := range orders {
		views = append(views, viewOrder(o))
	}
	utils.Respond(c, http.StatusOK, "Orders fetched successfully.", views)
}
