package services

import (
	"context"
	"errors"

	"mutaengine_back_end/internal/cache"
	"mutaengine_back_end/internal/models"
	"mutaengine_back_end/internal/repository"
	"mutaengine_back_end/internal/utils"
)

type CartStore interface {
	GetOrCreate(ctx context.Context, userID string) (*models.Cart, error)
	Add(ctx context.Context, userID string, product models.Product, quantity int) (*models.CartItem, error)
	Remove(ctx context.Context, userID, productID string, quantity *int) (cache.RemoveOutcome, error)
}

// CartService relie le panier Redis au catalogue
type CartService struct {
	store    CartStore
	products repository.ProductRepository
}

func NewCartService(store CartStore, products repository.ProductRepository) *CartService {
	return &CartService{store: store, products: products}
}

func (s *CartService) Get(ctx context.Context, userID string) (*models.Cart, error) {
	cart, err := s.store.GetOrCreate(ctx, userID)
	if err != nil {
		return nil, utils.Internal(err, "lecture panier")
	}
	return cart, nil
}

// Add : quantity nil vaut 1
func (s *CartService) Add(ctx context.Context, userID, productID string, quantity *int) (*models.CartItem, error) {
	if productID == "" {
		return nil, utils.Validationf("Product ID is required")
	}
	qty := 1
	if quantity != nil {
		qty = *quantity
	}

	product, err := s.products.FindByID(ctx, productID)
	if errors.Is(err, repository.ErrProductNotFound) {
		return nil, utils.NotFound("Product not found.")
	}
	if err != nil {
		return nil, utils.Internal(err, "lecture produit")
	}

	line, err := s.store.Add(ctx, userID, *product, qty)
	if err != nil {
		return nil, wrapCartError(err)
	}
	return line, nil
}

func (s *CartService) Remove(ctx context.Context, userID, productID string, quantity *int) (cache.RemoveOutcome, error) {
	if productID == "" {
		return cache.LineNotInCart, utils.Validationf("Product ID is required")
	}
	outcome, err := s.store.Remove(ctx, userID, productID, quantity)
	if errors.Is(err, cache.ErrCartNotFound) {
		return outcome, utils.NotFound("Cart Not Found")
	}
	if err != nil {
		return outcome, wrapCartError(err)
	}
	return outcome, nil
}

func wrapCartError(err error) error {
	var appErr *utils.AppError
	if errors.As(err, &appErr) {
		return err
	}
	return utils.Internal(err, "mise à jour panier")
}
