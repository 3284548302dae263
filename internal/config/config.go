package config

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

type Config struct {
	Env         string   `env:"APP_ENV" envDefault:"development"`
	Port        string   `env:"PORT" envDefault:"8080"`
	BaseURL     string   `env:"BASE_URL" envDefault:"http://localhost:8080"`
	FrontendURL string   `env:"FRONTEND_URL" envDefault:"http://localhost:3000"`
	CORSOrigins []string `env:"CORS_ORIGINS" envSeparator:"," envDefault:"http://localhost:3000"`

	Database  Database  `envPrefix:"DB_"`
	Redis     Redis     `envPrefix:"REDIS_"`
	Stripe    Stripe    `envPrefix:"STRIPE_"`
	JWT       JWT       `envPrefix:"JWT_"`
	SMTP      SMTP      `envPrefix:"SMTP_"`
	MinIO     MinIO     `envPrefix:"MINIO_"`
	Scylla    Scylla    `envPrefix:"SCYLLA_"`
	OAuth     OAuth     `envPrefix:"OAUTH_"`
	Invoice   Invoice   `envPrefix:"INVOICE_"`
	Recaptcha Recaptcha `envPrefix:"RECAPTCHA_"`
}

type Database struct {
	Driver string `env:"DRIVER" envDefault:"mysql"`
	DSN    string `env:"DSN,required"`
}

type Redis struct {
	Addr     string `env:"ADDR" envDefault:"localhost:6379"`
	Password string `env:"PASSWORD"`
	DB       int    `env:"DB" envDefault:"0"`
}

type Stripe struct {
	SecretKey     string        `env:"SECRET_KEY,required"`
	WebhookSecret string        `env:"WEBHOOK_SECRET,required"`
	Currency      string        `env:"CURRENCY" envDefault:"usd"`
	SuccessURL    string        `env:"SUCCESS_URL" envDefault:"http://localhost:3000/payment/success"`
	CancelURL     string        `env:"CANCEL_URL" envDefault:"http://localhost:3000/payment/cancel"`
	Timeout       time.Duration `env:"TIMEOUT" envDefault:"15s"`
}

type JWT struct {
	Secret     string        `env:"SECRET,required"`
	AccessTTL  time.Duration `env:"ACCESS_TTL" envDefault:"15m"`
	RefreshTTL time.Duration `env:"REFRESH_TTL" envDefault:"168h"`
}

type SMTP struct {
	Host     string `env:"HOST" envDefault:"localhost"`
	Port     int    `env:"PORT" envDefault:"587"`
	Username string `env:"USERNAME"`
	Password string `env:"PASSWORD"`
	From     string `env:"FROM" envDefault:"noreply@mutaengine.com"`
}

type MinIO struct {
	Endpoint  string `env:"ENDPOINT" envDefault:"localhost:9000"`
	AccessKey string `env:"ACCESS_KEY"`
	SecretKey string `env:"SECRET_KEY"`
	Bucket    string `env:"BUCKET" envDefault:"invoices"`
	UseSSL    bool   `env:"USE_SSL" envDefault:"false"`
}

type Scylla struct {
	Hosts    []string      `env:"HOSTS" envSeparator:","`
	Keyspace string        `env:"KEYSPACE" envDefault:"mutaengine_audit"`
	Username string        `env:"USERNAME"`
	Password string        `env:"PASSWORD"`
	Timeout  time.Duration `env:"TIMEOUT" envDefault:"5s"`
}

type OAuth struct {
	SessionSecret        string `env:"SESSION_SECRET"`
	GoogleClientID       string `env:"GOOGLE_CLIENT_ID"`
	GoogleClientSecret   string `env:"GOOGLE_CLIENT_SECRET"`
	FacebookClientID     string `env:"FACEBOOK_CLIENT_ID"`
	FacebookClientSecret string `env:"FACEBOOK_CLIENT_SECRET"`
}

type Invoice struct {
	CompanyName  string        `env:"COMPANY_NAME" envDefault:"Mutaengine"`
	SupportEmail string        `env:"SUPPORT_EMAIL" envDefault:"support@mutaengine.com"`
	PollInterval time.Duration `env:"POLL_INTERVAL" envDefault:"30s"`
	MaxAttempts  int           `env:"MAX_ATTEMPTS" envDefault:"5"`
	URLTTL       time.Duration `env:"URL_TTL" envDefault:"1h"`
}

// Recaptcha sans SECRET_KEY : vérification désactivée
type Recaptcha struct {
	SecretKey       string        `env:"SECRET_KEY"`
	VerificationURL string        `env:"VERIFICATION_URL" envDefault:"https://www.google.com/recaptcha/api/siteverify"`
	MinScore        float64       `env:"MIN_SCORE" envDefault:"0.5"`
	Timeout         time.Duration `env:"TIMEOUT" envDefault:"5s"`
}

func (c Config) IsProduction() bool { return c.Env == "production" }

// Load lit le .env (optionnel) puis les variables d'environnement
func Load() (*Config, error) {
	if err := godotenv.Load(".env"); err != nil {
		log.Println("⚠️  Aucun fichier .env trouvé, on continue avec les variables d'environnement du système")
	} else {
		log.Println("✅ Fichier .env chargé avec succès")
	}
	return Parse(env.Options{})
}

// Parse est séparé de Load pour pouvoir injecter l'environnement dans les tests
func Parse(opts env.Options) (*Config, error) {
	cfg := &Config{}
	if err := env.ParseWithOptions(cfg, opts); err != nil {
		return nil, fmt.Errorf("configuration invalide: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.Database.Driver {
	case "mysql", "sqlite":
	default:
		return fmt.Errorf("DB_DRIVER inconnu: %q", c.Database.Driver)
	}
	c.Stripe.Currency = strings.ToLower(c.Stripe.Currency)
	if c.Invoice.MaxAttempts < 1 {
		return fmt.Errorf("INVOICE_MAX_ATTEMPTS doit être >= 1")
	}
	return nil
}
