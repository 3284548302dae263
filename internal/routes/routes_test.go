package routes

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"mutaengine_back_end/internal/cache"
	"mutaengine_back_end/internal/config"
	"mutaengine_back_end/internal/database"
	"mutaengine_back_end/internal/handlers"
	"mutaengine_back_end/internal/handlers/invoice"
	"mutaengine_back_end/internal/handlers/payement"
	"mutaengine_back_end/internal/handlers/product"
	"mutaengine_back_end/internal/handlers/user"
	"mutaengine_back_end/internal/models"
	"mutaengine_back_end/internal/payment"
	"mutaengine_back_end/internal/repository"
	"mutaengine_back_end/internal/services"
	"mutaengine_back_end/internal/utils"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/markbates/goth"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v83"
	"github.com/stripe/stripe-go/v83/webhook"
)

const webhookSecret = "whsec_routes_test"

func init() {
	gin.SetMode(gin.TestMode)
}

type recordingMailer struct {
	mu   sync.Mutex
	sent []utils.Email
}

func (m *recordingMailer) Send(_ context.Context, email utils.Email) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, email)
	return nil
}

type memoryStore struct{}

func (memoryStore) Put(context.Context, string, []byte, string) error { return nil }

func (memoryStore) PresignedURL(_ context.Context, key string, _ time.Duration) (string, error) {
	return "https://minio.test/" + key, nil
}

type noIdentities struct{}

func (noIdentities) FetchUser(context.Context, string, string) (goth.User, error) {
	return goth.User{}, assert.AnError
}

type noWake struct{}

func (noWake) Wake() {}

type app struct {
	router *gin.Engine
	issuer *utils.TokenIssuer
}

func stripeBackend(t *testing.T) stripe.Backend {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"cs_test_1","object":"checkout.session","url":"https://checkout.stripe.com/c/pay/cs_test_1"}`))
	}))
	t.Cleanup(srv.Close)
	return stripe.GetBackendWithConfig(stripe.APIBackend, &stripe.BackendConfig{
		URL:               stripe.String(srv.URL),
		HTTPClient:        srv.Client(),
		MaxNetworkRetries: stripe.Int64(0),
		LeveledLogger:     &stripe.LeveledLogger{Level: stripe.LevelNull},
	})
}

func newApp(t *testing.T) *app {
	t.Helper()
	return newAppWithAuth(t, services.AuthConfig{FrontendURL: "https://front.test"})
}

func newAppWithAuth(t *testing.T, authCfg services.AuthConfig) *app {
	t.Helper()
	db, err := database.OpenSQL(config.Database{Driver: "sqlite", DSN: ":memory:"})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	users := repository.NewUserRepository(db)
	products := repository.NewProductRepository(db)
	orders := repository.NewOrderRepository(db)
	jobs := repository.NewInvoiceJobRepository(db)
	carts := cache.NewCartStore(rdb)
	issuer := utils.NewTokenIssuer("routes-secret", 15*time.Minute, time.Hour)
	provider := payment.NewStripeProvider("sk_test_123", webhookSecret, stripeBackend(t))
	audit := utils.LogAuditLogger{}

	authSvc := services.NewAuthService(users, cache.NewTokenStore(rdb), issuer, &recordingMailer{}, noIdentities{}, authCfg)
	cartSvc := services.NewCartService(carts, products)
	orderSvc := services.NewOrderService(orders, jobs, memoryStore{}, time.Hour)
	checkout := services.NewCheckoutService(carts, orders, provider, services.CheckoutConfig{
		Currency:   "usd",
		SuccessURL: "https://front.test/payment/success",
		CancelURL:  "https://front.test/payment/cancel",
		Timeout:    5 * time.Second,
	})

	r := gin.New()
	RegisterRoutes(r, Deps{
		Issuer:   issuer,
		Redis:    rdb,
		Auth:     user.NewAuthHandler(authSvc),
		OAuth:    handlers.NewOAuthHandler(authSvc),
		Cart:     user.NewCartHandler(cartSvc, carts, nil),
		Orders:   user.NewOrderHandler(checkout, orderSvc),
		Products: product.NewProductHandler(services.NewCatalogService(products, audit)),
		Invoices: invoice.NewInvoiceHandler(orderSvc, time.Hour),
		Webhooks: payement.NewWebhookHandler(services.NewWebhookService(provider, orders, carts, noWake{}, audit)),
	})
	return &app{router: r, issuer: issuer}
}

type response struct {
	code   int
	body   []byte
	header http.Header
}

func (r response) envelope(t *testing.T) map[string]any {
	t.Helper()
	var env map[string]any
	require.NoError(t, json.Unmarshal(r.body, &env), string(r.body))
	return env
}

func (r response) data(t *testing.T) map[string]any {
	t.Helper()
	data, ok := r.envelope(t)["data"].(map[string]any)
	require.True(t, ok, string(r.body))
	return data
}

func (a *app) do(t *testing.T, method, path, token string, body any, headers ...string) response {
	t.Helper()
	var buf bytes.Buffer
	switch b := body.(type) {
	case nil:
	case []byte:
		buf.Write(b)
	default:
		require.NoError(t, json.NewEncoder(&buf).Encode(b))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	return response{code: w.Code, body: w.Body.Bytes(), header: w.Header()}
}

func (a *app) token(t *testing.T, u models.User) string {
	t.Helper()
	pair, err := a.issuer.Issue(u)
	require.NoError(t, err)
	return pair.Access
}

func signedEvent(t *testing.T, id, eventType string, object map[string]any) ([]byte, string) {
	t.Helper()
	payload, err := json.Marshal(map[string]any{
		"id":          id,
		"object":      "event",
		"type":        eventType,
		"api_version": "2020-08-27",
		"data":        map[string]any{"object": object},
	})
	require.NoError(t, err)
	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   payload,
		Secret:    webhookSecret,
		Timestamp: time.Now(),
	})
	return signed.Payload, signed.Header
}

func TestHealth(t *testing.T) {
	a := newApp(t)
	res := a.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, res.code)
	assert.NotEmpty(t, res.header.Get("X-Request-ID"))
}

func TestAccountFlow(t *testing.T) {
	a := newApp(t)

	res := a.do(t, http.MethodPost, "/auth/register/", "", map[string]string{
		"username": "alice", "first_name": "Alice", "last_name": "Liddell",
		"email": "alice@x.io", "password": "Sup3r!pass",
	})
	require.Equal(t, http.StatusCreated, res.code, string(res.body))
	assert.Equal(t, "alice", res.data(t)["username"])

	res = a.do(t, http.MethodPost, "/auth/login/", "", map[string]string{"username_or_email": "alice", "password": "nope"})
	assert.Equal(t, http.StatusUnauthorized, res.code)

	res = a.do(t, http.MethodPost, "/auth/login/", "", map[string]string{"username_or_email": "alice@x.io", "password": "Sup3r!pass"})
	require.Equal(t, http.StatusOK, res.code, string(res.body))
	tokens := res.data(t)
	access, _ := tokens["access"].(string)
	refresh, _ := tokens["refresh"].(string)
	require.NotEmpty(t, access)
	require.NotEmpty(t, refresh)

	res = a.do(t, http.MethodPost, "/auth/token/refresh/", "", map[string]string{"refresh": refresh})
	require.Equal(t, http.StatusOK, res.code, string(res.body))
	rotated, _ := res.data(t)["refresh"].(string)

	res = a.do(t, http.MethodPost, "/auth/logout/", "", map[string]string{"refresh": rotated})
	assert.Equal(t, http.StatusUnauthorized, res.code)

	res = a.do(t, http.MethodPost, "/auth/logout/", access, map[string]string{"refresh": rotated})
	assert.Equal(t, http.StatusOK, res.code, string(res.body))

	res = a.do(t, http.MethodPost, "/auth/token/refresh/", "", map[string]string{"refresh": rotated})
	assert.Equal(t, http.StatusUnauthorized, res.code)
}

func TestSwaggerDocument(t *testing.T) {
	a := newApp(t)
	res := a.do(t, http.MethodGet, "/swagger/doc.json", "", nil)
	require.Equal(t, http.StatusOK, res.code)

	var doc struct {
		Swagger string                    `json:"swagger"`
		Paths   map[string]map[string]any `json:"paths"`
	}
	require.NoError(t, json.Unmarshal(res.body, &doc), string(res.body))
	assert.Equal(t, "2.0", doc.Swagger)
	assert.Contains(t, doc.Paths["/auth/login/"], "post")
	assert.Contains(t, doc.Paths["/api/cart/"], "delete")
	assert.Contains(t, doc.Paths["/api/stripe/webhook/"], "post")

	res = a.do(t, http.MethodGet, "/swagger/index.html", "", nil)
	assert.Equal(t, http.StatusOK, res.code)
}

func TestRecaptchaRequiredWhenConfigured(t *testing.T) {
	siteverify := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		score := "0.1"
		if r.FormValue("response") == "human" {
			score = "0.9"
		}
		_, _ = w.Write([]byte(`{"success":true,"score":` + score + `}`))
	}))
	t.Cleanup(siteverify.Close)

	a := newAppWithAuth(t, services.AuthConfig{
		FrontendURL: "https://front.test",
		Captcha:     utils.NewRecaptchaClient(utils.RecaptchaConfig{Secret: "shh", URL: siteverify.URL}),
	})
	form := map[string]string{
		"username": "alice", "first_name": "Alice", "last_name": "Liddell",
		"email": "alice@x.io", "password": "Sup3r!pass", "recaptcha": "bot",
	}
	res := a.do(t, http.MethodPost, "/auth/register/", "", form)
	require.Equal(t, http.StatusBadRequest, res.code)
	assert.Equal(t, "Invalid reCAPTCHA. Please try again.", res.data(t)["error"])

	form["recaptcha"] = "human"
	res = a.do(t, http.MethodPost, "/auth/register/", "", form)
	require.Equal(t, http.StatusCreated, res.code, string(res.body))

	res = a.do(t, http.MethodPost, "/auth/login/", "", map[string]string{"username_or_email": "alice", "password": "Sup3r!pass"})
	assert.Equal(t, http.StatusBadRequest, res.code)

	res = a.do(t, http.MethodPost, "/auth/login/", "", map[string]string{
		"username_or_email": "alice", "password": "Sup3r!pass", "recaptcha": "human",
	})
	assert.Equal(t, http.StatusOK, res.code, string(res.body))
}

func TestRegisterIsRateLimited(t *testing.T) {
	a := newApp(t)
	for i := 0; i < 3; i++ {
		res := a.do(t, http.MethodPost, "/auth/register/", "", map[string]string{})
		require.Equal(t, http.StatusBadRequest, res.code)
	}
	res := a.do(t, http.MethodPost, "/auth/register/", "", map[string]string{})
	assert.Equal(t, http.StatusTooManyRequests, res.code)
}

func TestCatalogRequiresCapability(t *testing.T) {
	a := newApp(t)
	alice := a.token(t, models.User{ID: "u1", Email: "alice@x.io"})
	admin := a.token(t, models.User{ID: "admin", IsSuperuser: true})

	res := a.do(t, http.MethodGet, "/api/products/", "", nil)
	assert.Equal(t, http.StatusUnauthorized, res.code)

	body := map[string]any{"title": "Keyboard", "price": "49.90"}
	res = a.do(t, http.MethodPost, "/api/products/", alice, body)
	assert.Equal(t, http.StatusForbidden, res.code)

	res = a.do(t, http.MethodPost, "/api/products/", admin, body)
	require.Equal(t, http.StatusCreated, res.code, string(res.body))
	id, _ := res.data(t)["id"].(string)
	require.NotEmpty(t, id)

	res = a.do(t, http.MethodPatch, "/api/products/"+id+"/", admin, map[string]any{"price": "39.90"})
	require.Equal(t, http.StatusOK, res.code, string(res.body))
	assert.Equal(t, "Keyboard", res.data(t)["title"])

	res = a.do(t, http.MethodPut, "/api/products/"+id+"/", admin, map[string]any{"price": "39.90"})
	assert.Equal(t, http.StatusBadRequest, res.code)

	res = a.do(t, http.MethodGet, "/api/products/"+id+"/", alice, nil)
	assert.Equal(t, http.StatusOK, res.code)

	res = a.do(t, http.MethodDelete, "/api/products/"+id+"/", admin, nil)
	assert.Equal(t, http.StatusNoContent, res.code)
	assert.Empty(t, res.body)

	res = a.do(t, http.MethodGet, "/api/products/"+id+"/", alice, nil)
	assert.Equal(t, http.StatusNotFound, res.code)
}

func TestCartCheckoutAndWebhook(t *testing.T) {
	a := newApp(t)
	alice := a.token(t, models.User{ID: "u1", Email: "alice@x.io"})
	admin := a.token(t, models.User{ID: "admin", IsSuperuser: true})

	res := a.do(t, http.MethodPost, "/api/products/", admin, map[string]any{"title": "Keyboard", "price": "12.50"})
	require.Equal(t, http.StatusCreated, res.code, string(res.body))
	productID, _ := res.data(t)["id"].(string)

	res = a.do(t, http.MethodPost, "/api/cart/", alice, nil)
	assert.Equal(t, http.StatusBadRequest, res.code)

	res = a.do(t, http.MethodPost, "/api/cart/", alice, map[string]any{"product_id": productID, "quantity": 2})
	require.Equal(t, http.StatusOK, res.code, string(res.body))
	assert.Equal(t, "25.00", res.data(t)["total_price"])

	res = a.do(t, http.MethodGet, "/api/cart/", alice, nil)
	require.Equal(t, http.StatusOK, res.code)
	assert.Equal(t, "25.00", res.data(t)["total_cart_price"])

	res = a.do(t, http.MethodDelete, "/api/cart/", alice, map[string]any{"product_id": "missing"})
	assert.Equal(t, http.StatusNotFound, res.code)
	assert.Equal(t, "Product not in cart", res.envelope(t)["message"])

	res = a.do(t, http.MethodPost, "/api/order/", alice, nil)
	require.Equal(t, http.StatusCreated, res.code, string(res.body))
	order := res.data(t)
	orderID, _ := order["order_id"].(string)
	assert.Equal(t, "https://checkout.stripe.com/c/pay/cs_test_1", order["checkout_url"])

	res = a.do(t, http.MethodPost, "/api/stripe/webhook/", "", []byte(`{"id":"evt_x"}`), "Stripe-Signature", "t=1,v1=bad")
	assert.Equal(t, http.StatusBadRequest, res.code)

	payload, sig := signedEvent(t, "evt_1", "checkout.session.completed", map[string]any{
		"id": "cs_test_1", "object": "checkout.session", "client_reference_id": orderID,
	})
	for i := 0; i < 2; i++ {
		res = a.do(t, http.MethodPost, "/api/stripe/webhook/", "", payload, "Stripe-Signature", sig)
		require.Equal(t, http.StatusOK, res.code, string(res.body))
		assert.Equal(t, "success", res.data(t)["status"])
	}

	res = a.do(t, http.MethodGet, "/api/cart/", alice, nil)
	require.Equal(t, http.StatusOK, res.code)
	assert.Empty(t, res.data(t)["items"])

	res = a.do(t, http.MethodGet, "/api/order/", alice, nil)
	require.Equal(t, http.StatusOK, res.code)
	orders, ok := res.envelope(t)["data"].([]any)
	require.True(t, ok)
	require.Len(t, orders, 1)
	first, _ := orders[0].(map[string]any)
	assert.Equal(t, string(models.OrderStatusCompleted), first["status"])
	assert.Equal(t, "25.00", first["total_amount"])

	// la facture n'est pas encore archivée
	res = a.do(t, http.MethodGet, "/api/order/"+orderID+"/invoice/", alice, nil)
	assert.Equal(t, http.StatusNotFound, res.code)
}

func TestCheckoutWithoutCart(t *testing.T) {
	a := newApp(t)
	res := a.do(t, http.MethodPost, "/api/order/", a.token(t, models.User{ID: "ghost"}), nil)
	assert.Equal(t, http.StatusNotFound, res.code)
}

func TestCorsConfig(t *testing.T) {
	all := corsConfig([]string{"*"})
	assert.True(t, all.AllowAllOrigins)
	assert.False(t, all.AllowCredentials)

	listed := corsConfig([]string{"https://front.test"})
	assert.False(t, listed.AllowAllOrigins)
	assert.Equal(t, []string{"https://front.test"}, listed.AllowOrigins)
}

func TestCartWebSocketStreamsChanges(t *testing.T) {
	a := newApp(t)
	alice := a.token(t, models.User{ID: "u1", Email: "alice@x.io"})
	admin := a.token(t, models.User{ID: "admin", IsSuperuser: true})

	res := a.do(t, http.MethodPost, "/api/products/", admin, map[string]any{"title": "Mouse", "price": "5"})
	require.Equal(t, http.StatusCreated, res.code, string(res.body))
	productID, _ := res.data(t)["id"].(string)

	srv := httptest.NewServer(a.router)
	t.Cleanup(srv.Close)
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/cart/ws?token=" + alice

	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	read := func() map[string]any {
		t.Helper()
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
		var msg map[string]any
		require.NoError(t, conn.ReadJSON(&msg))
		return msg
	}

	assert.Equal(t, "cart_snapshot", read()["type"])

	res = a.do(t, http.MethodPost, "/api/cart/", alice, map[string]any{"product_id": productID})
	require.Equal(t, http.StatusOK, res.code, string(res.body))

	msg := read()
	assert.Equal(t, "cart_updated", msg["type"])
	cart, ok := msg["cart"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "5.00", cart["total_cart_price"])
}
