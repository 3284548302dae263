package cache

import (
	"context"
	"sync"
	"testing"
	"time"

	"mutaengine_back_end/internal/models"
	"mutaengine_back_end/internal/utils"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCartStore(t *testing.T) (*CartStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewCartStore(rdb), mr
}

func product(id, price string) models.Product {
	return models.Product{ID: id, Title: "Product " + id, Price: decimal.RequireFromString(price)}
}

func intPtr(v int) *int { return &v }

func TestGetOrCreateIsIdempotent(t *testing.T) {
	store, mr := newTestCartStore(t)
	ctx := context.Background()

	first, err := store.GetOrCreate(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, first.Items)

	_, err = store.Add(ctx, "u1", product("p1", "10"), 1)
	require.NoError(t, err)

	second, err := store.GetOrCreate(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, second.Items, 1)
	assert.Equal(t, first.CreatedAt.Unix(), second.CreatedAt.Unix())

	ttl := mr.TTL(CartKey("u1"))
	assert.Equal(t, CartTTL, ttl)
}

func TestGetMissingCart(t *testing.T) {
	store, _ := newTestCartStore(t)
	_, err := store.Get(context.Background(), "nobody")
	assert.ErrorIs(t, err, ErrCartNotFound)
}

func TestEmptyCartIsDistinctFromNoCart(t *testing.T) {
	store, _ := newTestCartStore(t)
	ctx := context.Background()

	_, err := store.GetOrCreate(ctx, "u1")
	require.NoError(t, err)

	cart, err := store.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, cart.Items)
	assert.True(t, cart.Total().IsZero())
}

func TestAddUpsertsLine(t *testing.T) {
	store, _ := newTestCartStore(t)
	ctx := context.Background()

	line, err := store.Add(ctx, "u1", product("p1", "10"), 2)
	require.NoError(t, err)
	assert.Equal(t, 2, line.Quantity)

	line, err = store.Add(ctx, "u1", product("p1", "12"), 3)
	require.NoError(t, err)
	assert.Equal(t, 5, line.Quantity)
	assert.True(t, decimal.RequireFromString("12").Equal(line.Price), "price refreshed on add")

	_, err = store.Add(ctx, "u1", product("p2", "5"), 1)
	require.NoError(t, err)

	cart, err := store.Get(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, cart.Items, 2)
	assert.True(t, decimal.RequireFromString("65").Equal(cart.Total()))
}

func TestAddRejectsNonPositiveQuantity(t *testing.T) {
	store, _ := newTestCartStore(t)
	_, err := store.Add(context.Background(), "u1", product("p1", "10"), 0)
	assert.True(t, utils.IsKind(err, utils.KindValidation))
}

func TestConcurrentAddsNeverLoseIncrements(t *testing.T) {
	store, _ := newTestCartStore(t)
	ctx := context.Background()

	const workers = 8
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := store.Add(ctx, "u1", product("p1", "10"), 1)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	cart, err := store.Get(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, cart.Items, 1)
	assert.Equal(t, workers, cart.Items[0].Quantity)
}

func TestRemove(t *testing.T) {
	ctx := context.Background()

	cases := []struct {
		name      string
		quantity  *int
		outcome   RemoveOutcome
		remaining []int
	}{
		{"no quantity deletes the line", nil, LineRemoved, nil},
		{"zero quantity deletes the line", intPtr(0), LineRemoved, nil},
		{"quantity above line deletes", intPtr(5), LineRemoved, nil},
		{"quantity below line decrements", intPtr(1), LineDecremented, []int{2}},
		{"equal quantity leaves a zero line", intPtr(3), LineDecremented, []int{0}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			store, _ := newTestCartStore(t)
			_, err := store.Add(ctx, "u1", product("p1", "10"), 3)
			require.NoError(t, err)

			outcome, err := store.Remove(ctx, "u1", "p1", tc.quantity)
			require.NoError(t, err)
			assert.Equal(t, tc.outcome, outcome)

			cart, err := store.Get(ctx, "u1")
			require.NoError(t, err)
			var got []int
			for _, item := range cart.Items {
				got = append(got, item.Quantity)
			}
			assert.Equal(t, tc.remaining, got)
		})
	}
}

func TestRemoveMissingLineAndMissingCart(t *testing.T) {
	store, _ := newTestCartStore(t)
	ctx := context.Background()

	_, err := store.Remove(ctx, "u1", "p1", nil)
	assert.ErrorIs(t, err, ErrCartNotFound)

	_, err = store.GetOrCreate(ctx, "u1")
	require.NoError(t, err)

	outcome, err := store.Remove(ctx, "u1", "p1", nil)
	require.NoError(t, err)
	assert.Equal(t, LineNotInCart, outcome)
}

func TestClearKeepsCart(t *testing.T) {
	store, _ := newTestCartStore(t)
	ctx := context.Background()

	_, err := store.Add(ctx, "u1", product("p1", "10"), 2)
	require.NoError(t, err)
	require.NoError(t, store.Clear(ctx, "u1"))

	cart, err := store.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, cart.Items)

	assert.ErrorIs(t, store.Clear(ctx, "other"), ErrCartNotFound)
}

func TestMutationsArePublished(t *testing.T) {
	store, _ := newTestCartStore(t)
	ctx := context.Background()

	sub := store.Subscribe(ctx, "u1")
	defer sub.Close()
	_, err := sub.Receive(ctx)
	require.NoError(t, err)
	ch := sub.Channel()

	_, err = store.Add(ctx, "u1", product("p1", "10"), 1)
	require.NoError(t, err)
	require.NoError(t, store.Clear(ctx, "u1"))

	for _, want := range []string{CartEventUpdated, CartEventCleared} {
		select {
		case msg := <-ch:
			assert.Equal(t, want, msg.Payload)
		case <-time.After(2 * time.Second):
			t.Fatalf("no %s event received", want)
		}
	}
}
