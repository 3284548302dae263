package routes

import (
	"net/http"
	"slices"
	"time"

	_ "mutaengine_back_end/docs"
	"mutaengine_back_end/internal/handlers"
	"mutaengine_back_end/internal/handlers/invoice"
	"mutaengine_back_end/internal/handlers/payement"
	"mutaengine_back_end/internal/handlers/product"
	"mutaengine_back_end/internal/handlers/user"
	"mutaengine_back_end/internal/middleware"
	"mutaengine_back_end/internal/models"
	"mutaengine_back_end/internal/utils"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// Deps regroupe ce que main construit une fois et injecte dans les routes
type Deps struct {
	Issuer      *utils.TokenIssuer
	Redis       *redis.Client
	CORSOrigins []string

	Auth     *user.AuthHandler
	OAuth    *handlers.OAuthHandler
	Cart     *user.CartHandler
	Orders   *user.OrderHandler
	Products *product.ProductHandler
	Invoices *invoice.InvoiceHandler
	Webhooks *payement.WebhookHandler
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", middleware.RequestIDHeader},
		ExposeHeaders:    []string{middleware.RequestIDHeader},
		AllowWebSockets:  true,
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(origins) == 0 || slices.Contains(origins, "*") {
		cfg.AllowAllOrigins = true
		cfg.AllowCredentials = false
	} else {
		cfg.AllowOrigins = origins
	}
	return cfg
}

// rateLimit ne fait rien sans Redis
func rateLimit(rdb *redis.Client, scope string, limit int64, window time.Duration) gin.HandlerFunc {
	if rdb == nil {
		return func(c *gin.Context) { c.Next() }
	}
	return middleware.RateLimit(rdb, scope, limit, window)
}

func RegisterRoutes(r *gin.Engine, d Deps) {
	r.Use(middleware.RequestID(), middleware.Logger(), middleware.Recovery(), cors.New(corsConfig(d.CORSOrigins)))

	r.GET("/health", func(c *gin.Context) {
		utils.Respond(c, http.StatusOK, "ok", gin.H{"status": "healthy"})
	})

	// documentation OpenAPI : /swagger/index.html et /swagger/doc.json
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	authRequired := middleware.AuthRequired(d.Issuer)

	// Auth
	auth := r.Group("/auth")
	{
		auth.POST("/register/", rateLimit(d.Redis, "register", middleware.RegisterMaxAttempts, middleware.RegisterWindow), d.Auth.Register)
		auth.POST("/login/", d.Auth.Login)
		auth.POST("/token/refresh/", d.Auth.Refresh)
		auth.POST("/logout/", authRequired, d.Auth.Logout)
		auth.POST("/password-reset/", rateLimit(d.Redis, "forgot_password", middleware.PasswordResetMaxAttempts, middleware.PasswordResetWindow), d.Auth.RequestPasswordReset)
		auth.POST("/password-reset/confirm/", d.Auth.ConfirmPasswordReset)
		auth.POST("/social/:provider/", rateLimit(d.Redis, "social", middleware.SocialSignInMaxAttempts, middleware.SocialSignInWindow), d.Auth.SocialSignIn)
		auth.GET("/:provider/", d.OAuth.BeginAuth)
		auth.GET("/:provider/callback/", d.OAuth.CallbackAuth)
	}

	// Stripe signe le payload : pas de JWT
	r.POST("/api/stripe/webhook/", d.Webhooks.StripeWebhook)

	api := r.Group("/api", authRequired)
	{
		manage := middleware.RequireCapability(models.CapCatalogManage)
		api.GET("/products/", d.Products.ListProducts)
		api.POST("/products/", manage, d.Products.CreateProduct)
		api.GET("/products/:id/", d.Products.GetProduct)
		api.PUT("/products/:id/", manage, d.Products.UpdateProduct)
		api.PATCH("/products/:id/", manage, d.Products.UpdateProduct)
		api.DELETE("/products/:id/", manage, d.Products.DeleteProduct)

		api.GET("/cart/", d.Cart.GetCart)
		api.POST("/cart/", d.Cart.AddToCart)
		api.DELETE("/cart/", d.Cart.RemoveFromCart)
		api.GET("/cart/ws", d.Cart.CartWebSocket)

		api.POST("/order/", d.Orders.CreateOrder)
		api.GET("/order/", d.Orders.GetMyOrders)
		api.GET("/order/:id/invoice/", d.Invoices.GetInvoiceURL)
	}
}
