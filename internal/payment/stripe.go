package payment

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/stripe/stripe-go/v83"
	"github.com/stripe/stripe-go/v83/checkout/session"
	"github.com/stripe/stripe-go/v83/webhook"
)

// Types d'événements Stripe traités
const (
	EventCheckoutCompleted          = "checkout.session.completed"
	EventCheckoutAsyncSucceeded     = "checkout.session.async_payment_succeeded"
	EventCheckoutAsyncFailed        = "checkout.session.async_payment_failed"
	EventCheckoutExpired            = "checkout.session.expired"
	EventPaymentIntentPaymentFailed = "payment_intent.payment_failed"
)

const lineItemName = "Total Cart Purchase"

type StripeProvider struct {
	sessions      *session.Client
	webhookSecret string
}

// NewStripeProvider construit le client de sessions. backend nil = API Stripe par défaut.
func NewStripeProvider(secretKey, webhookSecret string, backend stripe.Backend) *StripeProvider {
	if backend == nil {
		backend = stripe.GetBackend(stripe.APIBackend)
	}
	return &StripeProvider{
		sessions:      &session.Client{B: backend, Key: secretKey},
		webhookSecret: webhookSecret,
	}
}

func (p *StripeProvider) CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (*CheckoutSession, error) {
	params := &stripe.CheckoutSessionParams{
		Mode:              stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL:        stripe.String(req.SuccessURL),
		CancelURL:         stripe.String(req.CancelURL),
		ClientReferenceID: stripe.String(req.OrderID),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency: stripe.String(req.Currency),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name: stripe.String(lineItemName),
					},
					UnitAmount: stripe.Int64(ToMinorUnits(req.Amount)),
				},
				Quantity: stripe.Int64(1),
			},
		},
		PaymentIntentData: &stripe.CheckoutSessionPaymentIntentDataParams{
			Metadata: map[string]string{"order_id": req.OrderID},
		},
	}
	params.Context = ctx
	params.AddMetadata("order_id", req.OrderID)
	if req.CustomerEmail != "" {
		params.CustomerEmail = stripe.String(req.CustomerEmail)
	}

	s, err := p.sessions.New(params)
	if err != nil {
		return nil, fmt.Errorf("création session Stripe: %w", err)
	}
	log.Printf("💳 Session Stripe %s créée pour la commande %s", s.ID, req.OrderID)
	return &CheckoutSession{ID: s.ID, URL: s.URL}, nil
}

func (p *StripeProvider) ExpireCheckoutSession(ctx context.Context, sessionID string) error {
	params := &stripe.CheckoutSessionExpireParams{}
	params.Context = ctx
	if _, err := p.sessions.Expire(sessionID, params); err != nil {
		return fmt.Errorf("expiration session Stripe %s: %w", sessionID, err)
	}
	log.Printf("🧹 Session Stripe %s expirée", sessionID)
	return nil
}

// objet minimal lu dans event.data.object, session ou payment intent
type eventObject struct {
	ID                string            `json:"id"`
	ClientReferenceID string            `json:"client_reference_id"`
	Metadata          map[string]string `json:"metadata"`
}

func (p *StripeProvider) ParseWebhook(payload []byte, signature string) (*Event, error) {
	event, err := webhook.ConstructEventWithOptions(payload, signature, p.webhookSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}

	out := &Event{ID: event.ID, Type: string(event.Type)}
	switch out.Type {
	case EventCheckoutCompleted, EventCheckoutAsyncSucceeded:
		out.Kind = EventCompleted
	case EventCheckoutAsyncFailed, EventCheckoutExpired, EventPaymentIntentPaymentFailed:
		out.Kind = EventFailed
	default:
		return out, nil
	}

	if event.Data == nil || len(event.Data.Raw) == 0 {
		return nil, fmt.Errorf("%w: événement %s sans objet", ErrInvalidSignature, event.ID)
	}
	var obj eventObject
	if err := json.Unmarshal(event.Data.Raw, &obj); err != nil {
		return nil, fmt.Errorf("%w: objet illisible: %v", ErrInvalidSignature, err)
	}

	if out.Type == EventPaymentIntentPaymentFailed {
		if orderID := obj.Metadata["order_id"]; orderID != "" {
			out.OrderID = orderID
		} else {
			out.ExternalID = obj.ID
		}
		return out, nil
	}

	out.ExternalID = obj.ID
	out.OrderID = obj.ClientReferenceID
	return out, nil
}
