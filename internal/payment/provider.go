// Package payment isole le fournisseur de paiement hébergé (Stripe Checkout).
package payment

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
)

var ErrInvalidSignature = errors.New("invalid webhook signature")

type CheckoutRequest struct {
	OrderID       string
	CustomerEmail string
	Amount        decimal.Decimal
	Currency      string
	SuccessURL    string
	CancelURL     string
}

type CheckoutSession struct {
	ID  string
	URL string
}

type EventKind int

const (
	EventIgnored EventKind = iota
	EventCompleted
	EventFailed
)

// Event est un webhook vérifié, déjà traduit pour le rapprochement des commandes
type Event struct {
	ID   string
	Type string
	Kind EventKind
	// ExternalID : id de session checkout, ou id de l'objet quand order_id manque
	ExternalID string
	OrderID    string
}

type Provider interface {
	CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (*CheckoutSession, error)
	ExpireCheckoutSession(ctx context.Context, sessionID string) error
	ParseWebhook(payload []byte, signature string) (*Event, error)
}

// ToMinorUnits convertit un montant décimal en centimes
func ToMinorUnits(amount decimal.Decimal) int64 {
	return amount.Shift(2).Round(0).IntPart()
}
