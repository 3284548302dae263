package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"mutaengine_back_end/internal/cache"
	"mutaengine_back_end/internal/config"
	"mutaengine_back_end/internal/database"
	"mutaengine_back_end/internal/handlers"
	"mutaengine_back_end/internal/handlers/invoice"
	"mutaengine_back_end/internal/handlers/payement"
	"mutaengine_back_end/internal/handlers/product"
	"mutaengine_back_end/internal/handlers/user"
	"mutaengine_back_end/internal/payment"
	"mutaengine_back_end/internal/repository"
	"mutaengine_back_end/internal/routes"
	"mutaengine_back_end/internal/services"
	"mutaengine_back_end/internal/utils"

	"github.com/gin-gonic/gin"
)

// @title Mutaengine API
// @version 1.0
// @description Catalogue, panier, paiement Stripe et factures PDF.
// @BasePath /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("❌ ", err)
	}
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.OpenSQL(cfg.Database)
	if err != nil {
		log.Fatal("❌ ", err)
	}
	if err := database.Migrate(db); err != nil {
		log.Fatal("❌ Migration impossible: ", err)
	}

	rdb, err := database.ConnectRedis(ctx, cfg.Redis)
	if err != nil {
		log.Fatal("❌ ", err)
	}
	defer rdb.Close()

	minioClient, err := database.ConnectMinIO(ctx, cfg.MinIO)
	if err != nil {
		log.Fatal("❌ ", err)
	}

	var audit utils.AuditLogger = utils.LogAuditLogger{}
	scylla, err := database.ConnectScylla(cfg.Scylla)
	switch {
	case err != nil:
		log.Println("⚠️ Audit sur les logs uniquement:", err)
	case scylla != nil:
		defer scylla.Close()
		audit = utils.NewScyllaAuditLogger(scylla)
	}

	config.SetupOAuth(cfg)

	// Repositories
	users := repository.NewUserRepository(db)
	products := repository.NewProductRepository(db)
	orders := repository.NewOrderRepository(db)
	jobs := repository.NewInvoiceJobRepository(db)

	carts := cache.NewCartStore(rdb)
	tokens := cache.NewTokenStore(rdb)
	issuer := utils.NewTokenIssuer(cfg.JWT.Secret, cfg.JWT.AccessTTL, cfg.JWT.RefreshTTL)
	mailer := utils.NewSMTPMailer(utils.SMTPConfig{
		Host:     cfg.SMTP.Host,
		Port:     cfg.SMTP.Port,
		Username: cfg.SMTP.Username,
		Password: cfg.SMTP.Password,
		From:     cfg.SMTP.From,
	})
	store := services.NewMinioStore(minioClient, cfg.MinIO.Bucket)
	provider := payment.NewStripeProvider(cfg.Stripe.SecretKey, cfg.Stripe.WebhookSecret, nil)

	// Services
	dispatcher := services.NewInvoiceDispatcher(jobs, orders, users, utils.ChromeRenderer{}, store, mailer, audit, services.InvoiceConfig{
		CompanyName:  cfg.Invoice.CompanyName,
		SupportEmail: cfg.Invoice.SupportEmail,
		PollInterval: cfg.Invoice.PollInterval,
		MaxAttempts:  cfg.Invoice.MaxAttempts,
	})
	authCfg := services.AuthConfig{FrontendURL: cfg.FrontendURL}
	if cfg.Recaptcha.SecretKey != "" {
		authCfg.Captcha = utils.NewRecaptchaClient(utils.RecaptchaConfig{
			Secret:   cfg.Recaptcha.SecretKey,
			URL:      cfg.Recaptcha.VerificationURL,
			MinScore: cfg.Recaptcha.MinScore,
			Timeout:  cfg.Recaptcha.Timeout,
		})
	} else {
		log.Println("⚠️  RECAPTCHA_SECRET_KEY absent : vérification reCAPTCHA désactivée")
	}
	authSvc := services.NewAuthService(users, tokens, issuer, mailer, services.GothResolver{}, authCfg)
	catalog := services.NewCatalogService(products, audit)
	cartSvc := services.NewCartService(carts, products)
	checkout := services.NewCheckoutService(carts, orders, provider, services.CheckoutConfig{
		Currency:   cfg.Stripe.Currency,
		SuccessURL: cfg.Stripe.SuccessURL,
		CancelURL:  cfg.Stripe.CancelURL,
		Timeout:    cfg.Stripe.Timeout,
	})
	orderSvc := services.NewOrderService(orders, jobs, store, cfg.Invoice.URLTTL)
	webhooks := services.NewWebhookService(provider, orders, carts, dispatcher, audit)

	workerDone := make(chan struct{})
	go func() {
		defer close(workerDone)
		dispatcher.Run(ctx)
	}()

	r := gin.New()
	routes.RegisterRoutes(r, routes.Deps{
		Issuer:      issuer,
		Redis:       rdb,
		CORSOrigins: cfg.CORSOrigins,
		Auth:        user.NewAuthHandler(authSvc),
		OAuth:       handlers.NewOAuthHandler(authSvc),
		Cart:        user.NewCartHandler(cartSvc, carts, cfg.CORSOrigins),
		Orders:      user.NewOrderHandler(checkout, orderSvc),
		Products:    product.NewProductHandler(catalog),
		Invoices:    invoice.NewInvoiceHandler(orderSvc, cfg.Invoice.URLTTL),
		Webhooks:    payement.NewWebhookHandler(webhooks),
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		log.Println("🚀 Serveur Mutaengine lancé sur le port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("❌ ", err)
		}
	}()

	<-ctx.Done()
	log.Println("🛑 Arrêt en cours...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Println("⚠️ Arrêt HTTP forcé:", err)
	}
	<-workerDone
	log.Println("✅ Serveur arrêté")
}
