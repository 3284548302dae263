package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "PENDING"
	OrderStatusCompleted OrderStatus = "COMPLETED"
	OrderStatusFailed    OrderStatus = "FAILED"
)

// Terminal : le statut ne bouge plus une fois sorti de PENDING
func (s OrderStatus) Terminal() bool {
	return s == OrderStatusCompleted || s == OrderStatusFailed
}

type Order struct {
	ID              string          `gorm:"primaryKey;size:36" json:"id"`
	UserID          string          `gorm:"size:36;index;not null" json:"user"`
	TotalAmount     decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"total_amount"`
	Status          OrderStatus     `gorm:"size:16;index;not null" json:"status"`
	ExternalOrderID string          `gorm:"size:255;uniqueIndex;not null" json:"external_order_id"`
	PaymentURL      string          `gorm:"size:2000" json:"payment_url"`
	Items           []OrderItem     `gorm:"foreignKey:OrderID" json:"items"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// OrderItem est la photo figée d'une ligne de panier au checkout
type OrderItem struct {
	ID           string          `gorm:"primaryKey;size:36" json:"id"`
	OrderID      string          `gorm:"size:36;index;not null" json:"order"`
	ProductID    string          `gorm:"size:36;not null" json:"product"`
	ProductTitle string          `gorm:"size:255" json:"product_title"`
	Quantity     int             `gorm:"not null" json:"quantity"`
	UnitPrice    decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"unit_price"`
	Price        decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"price"`
	CreatedAt    time.Time       `json:"created_at"`
}
