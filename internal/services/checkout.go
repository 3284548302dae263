package services

import (
	"context"
	"errors"
	"log"
	"time"

	"mutaengine_back_end/internal/cache"
	"mutaengine_back_end/internal/models"
	"mutaengine_back_end/internal/payment"
	"mutaengine_back_end/internal/repository"
	"mutaengine_back_end/internal/utils"

	"github.com/google/uuid"
)

type CartReader interface {
	Get(ctx context.Context, userID string) (*models.Cart, error)
}

type CheckoutConfig struct {
	Currency   string
	SuccessURL string
	CancelURL  string
	Timeout    time.Duration
}

type CheckoutResult struct {
	CheckoutURL string `json:"checkout_url"`
	OrderID     string `json:"order_id"`
}

type CheckoutService struct {
	carts    CartReader
	orders   repository.OrderRepository
	provider payment.Provider
	cfg      CheckoutConfig
}

func NewCheckoutService(carts CartReader, orders repository.OrderRepository, provider payment.Provider, cfg CheckoutConfig) *CheckoutService {
	return &CheckoutService{carts: carts, orders: orders, provider: provider, cfg: cfg}
}

// CreateOrder ouvre une session de paiement puis fige le panier en commande PENDING.
// Le panier n'est pas vidé ici, seulement quand le paiement est confirmé.
func (s *CheckoutService) CreateOrder(ctx context.Context, user models.User) (*CheckoutResult, error) {
	cart, err := s.carts.Get(ctx, user.ID)
	if errors.Is(err, cache.ErrCartNotFound) {
		return nil, utils.NotFound("Cart Not Found")
	}
	if err != nil {
		return nil, utils.Internal(err, "lecture panier")
	}
	if len(cart.Items) == 0 {
		return nil, utils.Validationf("Your cart is empty.")
	}

	orderID := uuid.NewString()
	total := cart.Total()

	providerCtx := ctx
	if s.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		providerCtx, cancel = context.WithTimeout(ctx, s.cfg.Timeout)
		defer cancel()
	}

	session, err := s.provider.CreateCheckoutSession(providerCtx, payment.CheckoutRequest{
		OrderID:       orderID,
		CustomerEmail: user.Email,
		Amount:        total,
		Currency:      s.cfg.Currency,
		SuccessURL:    s.cfg.SuccessURL,
		CancelURL:     s.cfg.CancelURL,
	})
	if err != nil {
		log.Printf("❌ Session de paiement refusée pour %s: %v", user.ID, err)
		return nil, utils.ProviderError(err, "Failed to create Stripe payment intent.")
	}

	order := &models.Order{
		ID:              orderID,
		UserID:          user.ID,
		TotalAmount:     total,
		Status:          models.OrderStatusPending,
		ExternalOrderID: session.ID,
		PaymentURL:      session.URL,
	}
	items := make([]models.OrderItem, 0, len(cart.Items))
	for _, line := range cart.Items {
		items = append(items, models.OrderItem{
			ID:           uuid.NewString(),
			ProductID:    line.ProductID,
			ProductTitle: line.Title,
			Quantity:     line.Quantity,
			UnitPrice:    line.Price,
			Price:        line.TotalPrice(),
		})
	}

	if err := s.orders.CreateWithItems(ctx, order, items); err != nil {
		log.Printf("❌ Commande %s non enregistrée, expiration de la session %s: %v", orderID, session.ID, err)
		// contexte détaché : la requête peut déjà être annulée
		expireCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.expireTimeout())
		defer cancel()
		if expErr := s.provider.ExpireCheckoutSession(expireCtx, session.ID); expErr != nil {
			log.Printf("⚠️ Expiration session %s échouée: %v", session.ID, expErr)
		}
		return nil, utils.Internal(err, "enregistrement commande")
	}

	log.Printf("✅ Commande %s créée (%s %s, %d lignes)", orderID, total.StringFixed(2), s.cfg.Currency, len(items))
	return &CheckoutResult{CheckoutURL: session.URL, OrderID: orderID}, nil
}

func (s *CheckoutService) expireTimeout() time.Duration {
	if s.cfg.Timeout > 0 {
		return s.cfg.Timeout
	}
	return 15 * time.Second
}
