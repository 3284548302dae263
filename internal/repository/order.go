package repository

import (
	"context"
	"errors"
	"time"

	"mutaengine_back_end/internal/models"

	"gorm.io/gorm"
)

var ErrOrderNotFound = errors.New("order not found")

// errSettleNoop annule la transaction de règlement sans erreur pour l'appelant
var errSettleNoop = errors.New("settlement without transition")

// Settlement décrit un événement de paiement à appliquer à une commande
type Settlement struct {
	EventID   string
	EventType string
	// ExternalOrderID (session) prioritaire, OrderID sert de repli
	ExternalOrderID string
	OrderID         string
	To              models.OrderStatus
}

type SettleResult struct {
	Order        *models.Order
	Transitioned bool
}

type OrderRepository interface {
	CreateWithItems(ctx context.Context, order *models.Order, items []models.OrderItem) error
	FindByID(ctx context.Context, id string) (*models.Order, error)
	ListByUser(ctx context.Context, userID string) ([]models.Order, error)
	Settle(ctx context.Context, s Settlement) (*SettleResult, error)
}

type orderRepoImpl struct {
	db  *gorm.DB
	now func() time.Time
}

func NewOrderRepository(db *gorm.DB) OrderRepository {
	return &orderRepoImpl{db: db, now: time.Now}
}

// CreateWithItems : la commande et ses lignes sont écrites ensemble ou pas du tout
func (r *orderRepoImpl) CreateWithItems(ctx context.Context, order *models.Order, items []models.OrderItem) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("Items").Create(order).Error; err != nil {
			return err
		}
		for i := range items {
			items[i].OrderID = order.ID
		}
		if len(items) > 0 {
			if err := tx.Create(&items).Error; err != nil {
				return err
			}
		}
		order.Items = items
		return nil
	})
}

func (r *orderRepoImpl) FindByID(ctx context.Context, id string) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).Preload("Items").Where("id = ?", id).First(&order).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *orderRepoImpl) ListByUser(ctx context.Context, userID string) ([]models.Order, error) {
	orders := []models.Order{}
	err := r.db.WithContext(ctx).
		Preload("Items").
		Where("user_id = ?", userID).
		Order("created_at ASC, id ASC").
		Find(&orders).Error
	return orders, err
}

// Settle applique la transition dans une seule transaction.
// Le UPDATE ... WHERE status = 'PENDING' est le compare-and-set : seul un RowsAffected de 1
// compte comme transition. Les commandes inconnues ou déjà terminées ne laissent aucune trace.
func (r *orderRepoImpl) Settle(ctx context.Context, s Settlement) (*SettleResult, error) {
	res := &SettleResult{}
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var order models.Order
		q := tx.Preload("Items")
		if s.ExternalOrderID != "" {
			q = q.Where("external_order_id = ?", s.ExternalOrderID)
		} else {
			q = q.Where("id = ?", s.OrderID)
		}
		err := q.First(&order).Error
		if errors.Is(err, gorm.ErrRecordNotFound) && s.ExternalOrderID != "" && s.OrderID != "" {
			err = tx.Preload("Items").Where("id = ?", s.OrderID).First(&order).Error
		}
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return errSettleNoop
		}
		if err != nil {
			return err
		}
		res.Order = &order

		now := r.now().UTC()
		update := tx.Model(&models.Order{}).
			Where("id = ? AND status = ?", order.ID, models.OrderStatusPending).
			Updates(map[string]any{"status": s.To, "updated_at": now})
		if update.Error != nil {
			return update.Error
		}
		if update.RowsAffected != 1 {
			return errSettleNoop
		}

		if s.EventID != "" {
			if err := tx.Create(&models.WebhookEvent{
				EventID:     s.EventID,
				EventType:   s.EventType,
				OrderID:     order.ID,
				ProcessedAt: now,
			}).Error; err != nil {
				return err
			}
		}

		if s.To == models.OrderStatusCompleted {
			if err := tx.Create(&models.InvoiceJob{
				OrderID:       order.ID,
				Status:        models.InvoiceJobPending,
				NextAttemptAt: now,
			}).Error; err != nil {
				return err
			}
		}

		order.Status = s.To
		order.UpdatedAt = now
		res.Transitioned = true
		return nil
	})
	if errors.Is(err, errSettleNoop) {
		return res, nil
	}
	if err != nil {
		return nil, err
	}
	return res, nil
}
