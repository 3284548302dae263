package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"mutaengine_back_end/internal/models"
	"mutaengine_back_end/internal/utils"

	"github.com/redis/go-redis/v9"
)

const (
	CartTTL = 30 * 24 * time.Hour

	CartEventUpdated = "updated"
	CartEventCleared = "cleared"

	maxCartTxRetries = 20
)

var (
	ErrCartNotFound   = errors.New("cart not found")
	ErrCartContention = errors.New("cart update aborted after too many concurrent writes")
)

// RemoveOutcome décrit ce que Remove a fait de la ligne
type RemoveOutcome int

const (
	LineNotInCart RemoveOutcome = iota
	LineRemoved
	LineDecremented
)

func CartKey(userID string) string     { return "cart:" + userID }
func CartChannel(userID string) string { return "cart_events:" + userID }

// CartStore garde un document JSON par user sous cart:<user_id>.
// Toutes les écritures passent par WATCH/MULTI pour ne perdre aucun incrément concurrent.
type CartStore struct {
	rdb *redis.Client
	now func() time.Time
}

func NewCartStore(rdb *redis.Client) *CartStore {
	return &CartStore{rdb: rdb, now: time.Now}
}

// GetOrCreate est idempotent : un seul panier par user, créé via SETNX
func (s *CartStore) GetOrCreate(ctx context.Context, userID string) (*models.Cart, error) {
	cart := s.newCart(userID)
	data, err := json.Marshal(cart)
	if err != nil {
		return nil, err
	}

	created, err := s.rdb.SetNX(ctx, CartKey(userID), data, CartTTL).Result()
	if err != nil {
		return nil, fmt.Errorf("création panier: %w", err)
	}
	if created {
		return cart, nil
	}
	return s.Get(ctx, userID)
}

func (s *CartStore) Get(ctx context.Context, userID string) (*models.Cart, error) {
	return decodeCart(s.rdb.Get(ctx, CartKey(userID)))
}

// Add ajoute quantity au produit, ou crée la ligne. Le prix est rafraîchi au prix catalogue.
func (s *CartStore) Add(ctx context.Context, userID string, product models.Product, quantity int) (*models.CartItem, error) {
	if quantity < 1 {
		return nil, utils.Validationf("Quantity must be at least 1.")
	}

	var line models.CartItem
	_, err := s.update(ctx, userID, true, CartEventUpdated, func(cart *models.Cart) (bool, error) {
		if i := cart.Find(product.ID); i >= 0 {
			cart.Items[i].Quantity += quantity
			cart.Items[i].Price = product.Price
			cart.Items[i].Title = product.Title
			cart.Items[i].ImageURL = product.ImageURL
			line = cart.Items[i]
			return true, nil
		}
		line = models.CartItem{
			ProductID: product.ID,
			Title:     product.Title,
			ImageURL:  product.ImageURL,
			Quantity:  quantity,
			Price:     product.Price,
		}
		cart.Items = append(cart.Items, line)
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	return &line, nil
}

// Remove supprime la ligne si quantity est nil, vaut 0 ou dépasse la quantité en panier,
// sinon décrémente. Une quantité égale laisse une ligne à zéro.
func (s *CartStore) Remove(ctx context.Context, userID, productID string, quantity *int) (RemoveOutcome, error) {
	if quantity != nil && *quantity < 0 {
		return LineNotInCart, utils.Validationf("Quantity must be a positive number.")
	}
	if quantity != nil && *quantity == 0 {
		quantity = nil
	}

	outcome := LineNotInCart
	_, err := s.update(ctx, userID, false, CartEventUpdated, func(cart *models.Cart) (bool, error) {
		i := cart.Find(productID)
		if i < 0 {
			outcome = LineNotInCart
			return false, nil
		}
		if quantity == nil || cart.Items[i].Quantity < *quantity {
			cart.Items = append(cart.Items[:i], cart.Items[i+1:]...)
			outcome = LineRemoved
			return true, nil
		}
		cart.Items[i].Quantity -= *quantity
		outcome = LineDecremented
		return true, nil
	})
	if err != nil {
		return LineNotInCart, err
	}
	return outcome, nil
}

// Clear vide les lignes mais garde le panier
func (s *CartStore) Clear(ctx context.Context, userID string) error {
	_, err := s.update(ctx, userID, false, CartEventCleared, func(cart *models.Cart) (bool, error) {
		cart.Items = []models.CartItem{}
		return true, nil
	})
	return err
}

// Subscribe ouvre le flux des événements du panier. L'appelant ferme le PubSub.
func (s *CartStore) Subscribe(ctx context.Context, userID string) *redis.PubSub {
	return s.rdb.Subscribe(ctx, CartChannel(userID))
}

func (s *CartStore) newCart(userID string) *models.Cart {
	now := s.now().UTC()
	return &models.Cart{UserID: userID, Items: []models.CartItem{}, CreatedAt: now, UpdatedAt: now}
}

// update applique mutate dans une transaction optimiste et rejoue en cas de conflit.
// mutate retourne false quand il n'y a rien à écrire.
func (s *CartStore) update(ctx context.Context, userID string, create bool, event string, mutate func(*models.Cart) (bool, error)) (*models.Cart, error) {
	key := CartKey(userID)
	var result *models.Cart
	var changed bool

	txf := func(tx *redis.Tx) error {
		cart, err := decodeCart(tx.Get(ctx, key))
		if errors.Is(err, ErrCartNotFound) && create {
			cart, err = s.newCart(userID), nil
		}
		if err != nil {
			return err
		}

		changed, err = mutate(cart)
		if err != nil {
			return err
		}
		result = cart
		if !changed {
			return nil
		}

		cart.UpdatedAt = s.now().UTC()
		data, err := json.Marshal(cart)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, CartTTL)
			return nil
		})
		return err
	}

	for attempt := 0; attempt < maxCartTxRetries; attempt++ {
		err := s.rdb.Watch(ctx, txf, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return nil, err
		}
		if changed {
			s.publish(ctx, userID, event)
		}
		return result, nil
	}
	return nil, ErrCartContention
}

func (s *CartStore) publish(ctx context.Context, userID, event string) {
	if err := s.rdb.Publish(ctx, CartChannel(userID), event).Err(); err != nil {
		log.Printf("⚠️ Publication événement panier %s échouée: %v", userID, err)
	}
}

func decodeCart(cmd *redis.StringCmd) (*models.Cart, error) {
	data, err := cmd.Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCartNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("lecture panier: %w", err)
	}

	var cart models.Cart
	if err := json.Unmarshal(data, &cart); err != nil {
		return nil, fmt.Errorf("panier corrompu: %w", err)
	}
	if cart.Items == nil {
		cart.Items = []models.CartItem{}
	}
	return &cart, nil
}
