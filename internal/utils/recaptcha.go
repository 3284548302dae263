package utils

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	DefaultRecaptchaURL      = "https://www.google.com/recaptcha/api/siteverify"
	DefaultRecaptchaMinScore = 0.5
)

type RecaptchaConfig struct {
	Secret   string
	URL      string
	MinScore float64
	Timeout  time.Duration
}

// RecaptchaClient vérifie un token reCAPTCHA v3 auprès de l'API siteverify
type RecaptchaClient struct {
	cfg    RecaptchaConfig
	client *http.Client
}

func NewRecaptchaClient(cfg RecaptchaConfig) *RecaptchaClient {
	if cfg.URL == "" {
		cfg.URL = DefaultRecaptchaURL
	}
	if cfg.MinScore <= 0 {
		cfg.MinScore = DefaultRecaptchaMinScore
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	return &RecaptchaClient{cfg: cfg, client: &http.Client{Timeout: cfg.Timeout}}
}

type siteverifyResponse struct {
	Success bool     `json:"success"`
	Score   float64  `json:"score"`
	Errors  []string `json:"error-codes"`
}

// Verify renvoie false si Google refuse le token ou si le score est sous le seuil.
// Une erreur n'est renvoyée que si l'API est injoignable ou répond n'importe quoi.
func (r *RecaptchaClient) Verify(ctx context.Context, token string) (bool, error) {
	if token == "" {
		return false, nil
	}
	form := url.Values{"secret": {r.cfg.Secret}, "response": {token}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.cfg.URL, strings.NewReader(form.Encode()))
	if err != nil {
		return false, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := r.client.Do(req)
	if err != nil {
		return false, fmt.Errorf("siteverify: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("siteverify: statut %d", resp.StatusCode)
	}

	var out siteverifyResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return false, fmt.Errorf("siteverify: réponse illisible: %w", err)
	}
	return out.Success && out.Score >= r.cfg.MinScore, nil
}
