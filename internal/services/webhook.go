package services

import (
	"context"
	"errors"
	"log"

	"mutaengine_back_end/internal/cache"
	"mutaengine_back_end/internal/models"
	"mutaengine_back_end/internal/payment"
	"mutaengine_back_end/internal/repository"
	"mutaengine_back_end/internal/utils"
)

type CartClearer interface {
	Clear(ctx context.Context, userID string) error
}

type InvoiceWaker interface {
	Wake()
}

// WebhookOutcome résume ce que le webhook a produit, pour les logs et les tests
type WebhookOutcome struct {
	EventID      string
	EventType    string
	Ignored      bool
	OrderID      string
	Status       models.OrderStatus
	Transitioned bool
}

type WebhookService struct {
	provider payment.Provider
	orders   repository.OrderRepository
	carts    CartClearer
	invoices InvoiceWaker
	audit    utils.AuditLogger
}

func NewWebhookService(provider payment.Provider, orders repository.OrderRepository, carts CartClearer, invoices InvoiceWaker, audit utils.AuditLogger) *WebhookService {
	return &WebhookService{provider: provider, orders: orders, carts: carts, invoices: invoices, audit: audit}
}

// Handle vérifie la signature puis règle la commande.
// Seule la transition gagnante vide le panier et réveille l'envoi de facture.
func (s *WebhookService) Handle(ctx context.Context, payload []byte, signature string) (*WebhookOutcome, error) {
	event, err := s.provider.ParseWebhook(payload, signature)
	if err != nil {
		log.Printf("❌ Webhook rejeté: %v", err)
		return nil, utils.SignatureError(err, "Invalid payload or signature.")
	}

	out := &WebhookOutcome{EventID: event.ID, EventType: event.Type}
	if event.Kind == payment.EventIgnored {
		log.Printf("📥 Webhook %s (%s) ignoré", event.ID, event.Type)
		out.Ignored = true
		return out, nil
	}

	to := models.OrderStatusCompleted
	if event.Kind == payment.EventFailed {
		to = models.OrderStatusFailed
	}

	res, err := s.orders.Settle(ctx, repository.Settlement{
		EventID:         event.ID,
		EventType:       event.Type,
		ExternalOrderID: event.ExternalID,
		OrderID:         event.OrderID,
		To:              to,
	})
	if err != nil {
		return nil, utils.Internal(err, "règlement commande")
	}
	if res.Order == nil {
		log.Printf("⚠️ Webhook %s: aucune commande pour %s/%s", event.ID, event.ExternalID, event.OrderID)
		return out, nil
	}

	out.OrderID = res.Order.ID
	out.Status = res.Order.Status
	if !res.Transitioned {
		log.Printf("📥 Webhook %s: commande %s déjà %s, rien à faire", event.ID, res.Order.ID, res.Order.Status)
		return out, nil
	}
	out.Transitioned = true
	log.Printf("✅ Commande %s passée à %s (%s)", res.Order.ID, to, event.Type)

	action := utils.ActionOrderFailed
	if to == models.OrderStatusCompleted {
		action = utils.ActionOrderCompleted
	}
	s.audit.Record(ctx, utils.NewAuditEntry(models.User{ID: res.Order.UserID}, action, utils.ResourceOrder, res.Order.ID,
		map[string]string{"status": string(models.OrderStatusPending)}, map[string]string{"status": string(to), "event": event.ID}))

	if to == models.OrderStatusCompleted {
		if err := s.carts.Clear(ctx, res.Order.UserID); err != nil && !errors.Is(err, cache.ErrCartNotFound) {
			log.Printf("⚠️ Panier de %s non vidé après paiement: %v", res.Order.UserID, err)
		} else {
			log.Printf("🧹 Panier de %s vidé", res.Order.UserID)
		}
		s.invoices.Wake()
	}
	return out, nil
}
