package services

import (
	"context"
	"errors"
	"time"

	"mutaengine_back_end/internal/models"
	"mutaengine_back_end/internal/repository"
	"mutaengine_back_end/internal/utils"
)

type OrderService struct {
	orders repository.OrderRepository
	jobs   repository.InvoiceJobRepository
	store  ObjectStore
	urlTTL time.Duration
}

func NewOrderService(orders repository.OrderRepository, jobs repository.InvoiceJobRepository, store ObjectStore, urlTTL time.Duration) *OrderService {
	return &OrderService{orders: orders, jobs: jobs, store: store, urlTTL: urlTTL}
}

// ListOrders : les commandes du user avec leurs lignes, par date de création puis id
func (s *OrderService) ListOrders(ctx context.Context, userID string) ([]models.Order, error) {
	orders, err := s.orders.ListByUser(ctx, userID)
	if err != nil {
		return nil, utils.Internal(err, "liste des commandes")
	}
	return orders, nil
}

// GetOrder ne révèle pas l'existence des commandes des autres users
func (s *OrderService) GetOrder(ctx context.Context, userID, orderID string) (*models.Order, error) {
	order, err := s.orders.FindByID(ctx, orderID)
	if errors.Is(err, repository.ErrOrderNotFound) || (err == nil && order.UserID != userID) {
		return nil, utils.NotFound("Order not found.")
	}
	if err != nil {
		return nil, utils.Internal(err, "lecture commande")
	}
	return order, nil
}

// InvoiceURL signe l'URL du PDF archivé. NotFound tant que la facture n'est pas envoyée.
func (s *OrderService) InvoiceURL(ctx context.Context, userID, orderID string) (string, error) {
	order, err := s.GetOrder(ctx, userID, orderID)
	if err != nil {
		return "", err
	}

	job, err := s.jobs.FindByOrderID(ctx, order.ID)
	if errors.Is(err, repository.ErrInvoiceJobNotFound) || (err == nil && (job.Status != models.InvoiceJobSent || job.ObjectKey == "")) {
		return "", utils.NotFound("Invoice not available yet.")
	}
	if err != nil {
		return "", utils.Internal(err, "lecture facture")
	}

	url, err := s.store.PresignedURL(ctx, job.ObjectKey, s.urlTTL)
	if err != nil {
		return "", utils.Internal(err, "signature URL facture")
	}
	return url, nil
}
