package services

import (
	"context"
	"testing"
	"time"

	"mutaengine_back_end/internal/cache"
	"mutaengine_back_end/internal/models"
	"mutaengine_back_end/internal/repository"
	"mutaengine_back_end/internal/utils"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var admin = models.User{ID: "admin", IsSuperuser: true}

func TestCatalogLifecycle(t *testing.T) {
	audit := &fakeAudit{}
	svc := NewCatalogService(repository.NewProductRepository(newTestDB(t)), audit)
	ctx := context.Background()

	created, err := svc.Create(ctx, admin, ProductInput{Title: strPtr("  Keyboard "), Price: decPtr("49.90"), Category: strPtr("gear")})
	require.NoError(t, err)
	assert.Equal(t, "Keyboard", created.Title)

	got, err := svc.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("49.90").Equal(got.Price))

	updated, err := svc.Update(ctx, admin, created.ID, ProductInput{Price: decPtr("39.90")}, false)
	require.NoError(t, err)
	assert.Equal(t, "Keyboard", updated.Title)
	assert.Equal(t, "gear", updated.Category)
	assert.True(t, decimal.RequireFromString("39.90").Equal(updated.Price))

	list, err := svc.List(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	require.NoError(t, svc.Delete(ctx, admin, created.ID))
	_, err = svc.Get(ctx, created.ID)
	assert.True(t, utils.IsKind(err, utils.KindNotFound))

	err = svc.Delete(ctx, admin, created.ID)
	assert.True(t, utils.IsKind(err, utils.KindNotFound))

	assert.Equal(t, []string{utils.ActionProductCreate, utils.ActionProductUpdate, utils.ActionProductDelete}, audit.actions())
}

func TestCatalogValidation(t *testing.T) {
	svc := NewCatalogService(repository.NewProductRepository(newTestDB(t)), &fakeAudit{})
	ctx := context.Background()

	cases := map[string]ProductInput{
		"missing price":   {Title: strPtr("Mouse")},
		"blank title":     {Title: strPtr("   "), Price: decPtr("10")},
		"zero price":      {Title: strPtr("Mouse"), Price: decPtr("0")},
		"three decimals":  {Title: strPtr("Mouse"), Price: decPtr("10.999")},
		"too many digits": {Title: strPtr("Mouse"), Price: decPtr("100000000")},
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := svc.Create(ctx, admin, in)
			require.Error(t, err)
			assert.True(t, utils.IsKind(err, utils.KindValidation))
		})
	}

	p, err := svc.Create(ctx, admin, ProductInput{Title: strPtr("Mouse"), Price: decPtr("10")})
	require.NoError(t, err)
	_, err = svc.Update(ctx, admin, p.ID, ProductInput{Title: strPtr("Mouse")}, true)
	assert.True(t, utils.IsKind(err, utils.KindValidation))
}

func TestCartServiceAddAndRemove(t *testing.T) {
	products := repository.NewProductRepository(newTestDB(t))
	ctx := context.Background()
	p := testProduct("p1", "12.50")
	require.NoError(t, products.Create(ctx, &p))
	svc := NewCartService(newTestCartStore(t), products)

	cart, err := svc.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, cart.Items)

	line, err := svc.Add(ctx, "u1", "p1", nil)
	require.NoError(t, err)
	assert.Equal(t, 1, line.Quantity)

	line, err = svc.Add(ctx, "u1", "p1", intPtr(3))
	require.NoError(t, err)
	assert.Equal(t, 4, line.Quantity)
	assert.Equal(t, "Product p1", line.Title)

	outcome, err := svc.Remove(ctx, "u1", "p1", intPtr(5))
	require.NoError(t, err)
	assert.Equal(t, cache.LineRemoved, outcome)

	_, err = svc.Add(ctx, "u1", "missing", nil)
	assert.True(t, utils.IsKind(err, utils.KindNotFound))
	assert.Equal(t, "Product not found.", appMessage(err))

	_, err = svc.Add(ctx, "u1", "", nil)
	assert.True(t, utils.IsKind(err, utils.KindValidation))

	_, err = svc.Add(ctx, "u1", "p1", intPtr(0))
	assert.True(t, utils.IsKind(err, utils.KindValidation))

	_, err = svc.Remove(ctx, "nobody", "p1", nil)
	assert.True(t, utils.IsKind(err, utils.KindNotFound))
	assert.Equal(t, "Cart Not Found", appMessage(err))
}

func TestOrderServiceScopesToOwner(t *testing.T) {
	db := newTestDB(t)
	orders := repository.NewOrderRepository(db)
	jobs := repository.NewInvoiceJobRepository(db)
	store := newFakeStore()
	svc := NewOrderService(orders, jobs, store, time.Hour)
	ctx := context.Background()

	list, err := svc.ListOrders(ctx, "u1")
	require.NoError(t, err)
	assert.NotNil(t, list)
	assert.Empty(t, list)

	order := &models.Order{ID: "o1", UserID: "u1", TotalAmount: decimal.RequireFromString("10"), Status: models.OrderStatusPending, ExternalOrderID: "cs_1"}
	require.NoError(t, orders.CreateWithItems(ctx, order, nil))

	_, err = svc.GetOrder(ctx, "u2", "o1")
	assert.True(t, utils.IsKind(err, utils.KindNotFound))

	_, err = svc.InvoiceURL(ctx, "u1", "o1")
	assert.True(t, utils.IsKind(err, utils.KindNotFound))
	assert.Equal(t, "Invoice not available yet.", appMessage(err))

	_, err = orders.Settle(ctx, repository.Settlement{ExternalOrderID: "cs_1", To: models.OrderStatusCompleted})
	require.NoError(t, err)
	job, err := jobs.FindByOrderID(ctx, "o1")
	require.NoError(t, err)
	claimed, err := jobs.ClaimDue(ctx, time.Now(), 10, time.Minute)
	require.NoError(t, err)
	require.Len(t, claimed, 1)
	require.NoError(t, store.Put(ctx, InvoiceKey("o1"), []byte("pdf"), "application/pdf"))
	require.NoError(t, jobs.MarkSent(ctx, job.ID, InvoiceKey("o1")))

	url, err := svc.InvoiceURL(ctx, "u1", "o1")
	require.NoError(t, err)
	assert.Contains(t, url, "invoices/o1.pdf")

	_, err = svc.InvoiceURL(ctx, "u2", "o1")
	assert.True(t, utils.IsKind(err, utils.KindNotFound))
}
