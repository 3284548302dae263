package config

import (
	"errors"
	"log"
	"net/http"

	"github.com/gorilla/sessions"
	"github.com/markbates/goth"
	"github.com/markbates/goth/gothic"
	"github.com/markbates/goth/providers/facebook"
	"github.com/markbates/goth/providers/google"
)

// SetupOAuth enregistre les providers goth configurés et le cookie store de gothic.
// Retourne le nombre de providers actifs.
func SetupOAuth(cfg *Config) int {
	secret := cfg.OAuth.SessionSecret
	if secret == "" {
		secret = cfg.JWT.Secret
	}

	store := sessions.NewCookieStore([]byte(secret))
	store.MaxAge(86400 * 30)
	store.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   86400 * 30,
		HttpOnly: true,
		Secure:   cfg.IsProduction(),
		SameSite: http.SameSiteLaxMode,
	}
	gothic.Store = store

	// le handler gin recopie :provider dans la query
	gothic.GetProviderName = func(req *http.Request) (string, error) {
		if provider := req.URL.Query().Get("provider"); provider != "" {
			return provider, nil
		}
		return "", errors.New("provider not found")
	}

	var providers []goth.Provider
	if cfg.OAuth.GoogleClientID != "" && cfg.OAuth.GoogleClientSecret != "" {
		providers = append(providers, google.New(
			cfg.OAuth.GoogleClientID,
			cfg.OAuth.GoogleClientSecret,
			cfg.BaseURL+"/auth/google/callback/",
			"email", "profile",
		))
		log.Println("✅ Google OAuth activé")
	}
	if cfg.OAuth.FacebookClientID != "" && cfg.OAuth.FacebookClientSecret != "" {
		providers = append(providers, facebook.New(
			cfg.OAuth.FacebookClientID,
			cfg.OAuth.FacebookClientSecret,
			cfg.BaseURL+"/auth/facebook/callback/",
			"email",
		))
		log.Println("✅ Facebook OAuth activé")
	}

	if len(providers) == 0 {
		log.Println("⚠️ Aucun provider OAuth configuré")
		return 0
	}
	goth.UseProviders(providers...)
	log.Printf("✅ %d OAuth provider(s) initialisé(s)", len(providers))
	return len(providers)
}
