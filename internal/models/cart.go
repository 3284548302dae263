package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// CartItem est une ligne du panier, stockée dans le document Redis du user
type CartItem struct {
	ProductID string          `json:"product"`
	Title     string          `json:"product_title"`
	ImageURL  string          `json:"image_url,omitempty"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"product_price"`
}

// TotalPrice = prix unitaire × quantité
func (i CartItem) TotalPrice() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

type Cart struct {
	UserID    string     `json:"user"`
	Items     []CartItem `json:"items"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// Total additionne les lignes. Un panier vide vaut 0.
func (c *Cart) Total() decimal.Decimal {
	total := decimal.Zero
	for _, item := range c.Items {
		total = total.Add(item.TotalPrice())
	}
	return total
}

// Find retourne l'index de la ligne du produit, -1 si absente
func (c *Cart) Find(productID string) int {
	for i, item := range c.Items {
		if item.ProductID == productID {
			return i
		}
	}
	return -1
}
