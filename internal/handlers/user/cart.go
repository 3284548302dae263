package user

import (
	"context"
	"errors"
	"io"
	"net/http"

	"mutaengine_back_end/internal/cache"
	"mutaengine_back_end/internal/middleware"
	"mutaengine_back_end/internal/models"
	"mutaengine_back_end/internal/services"
	"mutaengine_back_end/internal/utils"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

// CartFeed est la source du flux temps réel. *cache.CartStore l'implémente.
type CartFeed interface {
	Get(ctx context.Context, userID string) (*models.Cart, error)
	Subscribe(ctx context.Context, userID string) *redis.PubSub
}

type CartHandler struct {
	carts   *services.CartService
	feed    CartFeed
	origins []string
}

func NewCartHandler(carts *services.CartService, feed CartFeed, allowedOrigins []string) *CartHandler {
	return &CartHandler{carts: carts, feed: feed, origins: allowedOrigins}
}

type cartLineView struct {
	Product      string `json:"product"`
	ProductTitle string `json:"product_title"`
	ImageURL     string `json:"image_url,omitempty"`
	ProductPrice string `json:"product_price"`
	Quantity     int    `json:"quantity"`
	TotalPrice   string `json:"total_price"`
}

type cartView struct {
	User           string         `json:"user"`
	Items          []cartLineView `json:"items"`
	TotalCartPrice string         `json:"total_cart_price"`
}

func lineView(item models.CartItem) cartLineView {
	return cartLineView{
		Product:      item.ProductID,
		ProductTitle: item.Title,
		ImageURL:     item.ImageURL,
		ProductPrice: item.Price.StringFixed(2),
		Quantity:     item.Quantity,
		TotalPrice:   item.TotalPrice().StringFixed(2),
	}
}

func viewCart(cart *models.Cart) cartView {
	items := make([]cartLineView, 0, len(cart.Items))
	for _, item := range cart.Items {
		items = append(items, lineView(item))
	}
	return cartView{User: cart.UserID, Items: items, TotalCartPrice: cart.Total().StringFixed(2)}
}

type cartInput struct {
	ProductID string `json:"product_id"`
	Quantity  *int   `json:"quantity"`
}

// un body absent équivaut à un product_id manquant
func bindCartInput(c *gin.Context) (cartInput, bool) {
	var input cartInput
	if err := c.ShouldBindJSON(&input); err != nil && !errors.Is(err, io.EOF) {
		utils.RespondError(c, utils.Validationf("%s", err.Error()))
		return input, false
	}
	return input, true
}

// @Summary Panier courant
// @Tags cart
// @Produce json
// @Security BearerAuth
// @Success 200 {object} utils.Envelope
// @Failure 400 {object} utils.Envelope
// @Router /api/cart/ [get]
func (h *CartHandler) GetCart(c *gin.Context) {
	user, _ := middleware.CurrentUser(c)
	cart, err := h.carts.Get(c.Request.Context(), user.ID)
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	utils.Respond(c, http.StatusOK, "Cart retrieved successfully", viewCart(cart))
}

// @Summary Ajoute au panier
// @Tags cart
// @Accept json
// @Produce json
// @Security BearerAuth
// @Success 200 {object} utils.Envelope
// @Failure 400 {object} utils.Envelope
// @Router /api/cart/ [post]
func (h *CartHandler) AddToCart(c *gin.Context) {
	user, _ := middleware.CurrentUser(c)
	input, ok := bindCartInput(c)
	if !ok {
		return
	}

	line, err := h.carts.Add(c.Request.Context(), user.ID, input.ProductID, input.Quantity)
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	utils.Respond(c, http.StatusOK, "Product added to cart", lineView(*line))
}

// @Summary Retire ou décrémente une ligne
// @Tags cart
// @Produce json
// @Security BearerAuth
// @Success 204
// @Failure 400 {object} utils.Envelope
// @Router /api/cart/ [delete]
func (h *CartHandler) RemoveFromCart(c *gin.Context) {
	user, _ := middleware.CurrentUser(c)
	input, ok := bindCartInput(c)
	if !ok {
		return
	}

	outcome, err := h.carts.Remove(c.Request.Context(), user.ID, input.ProductID, input.Quantity)
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	if outcome == cache.LineNotInCart {
		utils.Respond(c, http.StatusNotFound, "Product not in cart", gin.H{})
		return
	}
	utils.Respond(c, http.StatusNoContent, "Product removed from cart", nil)
}
