package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"math"
	"net/url"
	"strings"
	"time"

	"mutaengine_back_end/internal/models"
	"mutaengine_back_end/internal/repository"
	"mutaengine_back_end/internal/utils"

	"github.com/google/uuid"
	"github.com/markbates/goth"
)

// TokenStore regroupe l'état d'authentification conservé dans Redis.
// *cache.TokenStore l'implémente.
type TokenStore interface {
	StoreRefreshToken(ctx context.Context, userID, jti string, ttl time.Duration) error
	RefreshTokenActive(ctx context.Context, userID, jti string) (bool, error)
	RevokeRefreshToken(ctx context.Context, userID, jti string) error
	StoreResetToken(ctx context.Context, userID, token string, ttl time.Duration) error
	ResetTokenValid(ctx context.Context, userID, token string) (bool, error)
	ConsumeResetToken(ctx context.Context, userID, token string) (bool, error)
	CooldownRemaining(ctx context.Context, identity string) (time.Duration, error)
	RecordLoginFailure(ctx context.Context, identity string) (int64, error)
	ResetLoginAttempts(ctx context.Context, identity string) error
}

// IdentityResolver échange un access token fournisseur contre l'identité de l'utilisateur.
type IdentityResolver interface {
	FetchUser(ctx context.Context, provider, accessToken string) (goth.User, error)
}

// GothResolver passe par les providers goth enregistrés par config.SetupOAuth.
type GothResolver struct{}

func (GothResolver) FetchUser(_ context.Context, providerName, accessToken string) (goth.User, error) {
	provider, err := goth.GetProvider(providerName)
	if err != nil {
		return goth.User{}, err
	}
	raw, err := json.Marshal(map[string]string{"AccessToken": accessToken})
	if err != nil {
		return goth.User{}, err
	}
	session, err := provider.UnmarshalSession(string(raw))
	if err != nil {
		return goth.User{}, err
	}
	return provider.FetchUser(session)
}

// CaptchaVerifier valide le token reCAPTCHA envoyé par le front.
// *utils.RecaptchaClient l'implémente.
type CaptchaVerifier interface {
	Verify(ctx context.Context, token string) (bool, error)
}

// AuthConfig.Captcha nil désactive la vérification reCAPTCHA
type AuthConfig struct {
	FrontendURL string
	ResetTTL    time.Duration
	Captcha     CaptchaVerifier
}

type RegisterInput struct {
	Username  string `json:"username" binding:"required"`
	FirstName string `json:"first_name" binding:"required"`
	LastName  string `json:"last_name" binding:"required"`
	Email     string `json:"email" binding:"required,email"`
	Password  string `json:"password" binding:"required"`
	Recaptcha string `json:"recaptcha"`
}

type LoginInput struct {
	UsernameOrEmail string `json:"username_or_email" binding:"required"`
	Password        string `json:"password" binding:"required"`
	Recaptcha       string `json:"recaptcha"`
}

// Profile est la vue publique d'un utilisateur renvoyée par les endpoints d'auth
type Profile struct {
	Username  string `json:"username"`
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

func ProfileOf(u *models.User) Profile {
	return Profile{Username: u.Username, Email: u.Email, FirstName: u.FirstName, LastName: u.LastName}
}

type AuthResult struct {
	Refresh string  `json:"refresh"`
	Access  string  `json:"access"`
	User    Profile `json:"user"`
	Created *bool   `json:"created,omitempty"`
}

type AuthService struct {
	users      repository.UserRepository
	tokens     TokenStore
	issuer     *utils.TokenIssuer
	mailer     Mailer
	identities IdentityResolver
	cfg        AuthConfig
}

func NewAuthService(users repository.UserRepository, tokens TokenStore, issuer *utils.TokenIssuer, mailer Mailer, identities IdentityResolver, cfg AuthConfig) *AuthService {
	if cfg.ResetTTL <= 0 {
		cfg.ResetTTL = time.Hour
	}
	return &AuthService{users: users, tokens: tokens, issuer: issuer, mailer: mailer, identities: identities, cfg: cfg}
}

func (s *AuthService) checkCaptcha(ctx context.Context, token string) error {
	if s.cfg.Captcha == nil {
		return nil
	}
	ok, err := s.cfg.Captcha.Verify(ctx, token)
	if err != nil {
		return utils.Internal(err, "recaptcha verification")
	}
	if !ok {
		return utils.Validationf("Invalid reCAPTCHA. Please try again.")
	}
	return nil
}

func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*models.User, error) {
	if err := s.checkCaptcha(ctx, in.Recaptcha); err != nil {
		return nil, err
	}
	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.TrimSpace(in.Email)

	taken, err := s.users.UsernameExists(ctx, in.Username)
	if err != nil {
		return nil, utils.Internal(err, "username lookup")
	}
	if taken {
		return nil, utils.Validationf("This username is already taken. Please choose another one.")
	}
	taken, err = s.users.EmailExists(ctx, in.Email)
	if err != nil {
		return nil, utils.Internal(err, "email lookup")
	}
	if taken {
		return nil, utils.Validationf("This email is already registered. Please use a different email.")
	}
	if _, err := utils.ValidatePassword(in.Password, in.Username, in.Email); err != nil {
		return nil, err
	}

	hash, err := utils.HashPassword(in.Password)
	if err != nil {
		return nil, utils.Internal(err, "hash password")
	}
	user := &models.User{
		ID:        uuid.NewString(),
		Username:  in.Username,
		Email:     in.Email,
		FirstName: in.FirstName,
		LastName:  in.LastName,
		Password:  hash,
		Provider:  models.ProviderLocal,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, utils.Internal(err, "create user")
	}
	log.Printf("✅ Utilisateur inscrit : %s", user.ID)
	return user, nil
}

func (s *AuthService) Login(ctx context.Context, in LoginInput) (*AuthResult, error) {
	if err := s.checkCaptcha(ctx, in.Recaptcha); err != nil {
		return nil, err
	}
	identity, password := strings.TrimSpace(in.UsernameOrEmail), in.Password

	wait, err := s.tokens.CooldownRemaining(ctx, identity)
	if err != nil {
		return nil, utils.Internal(err, "login cooldown")
	}
	if wait > 0 {
		return nil, utils.RateLimited("Too many failed login attempts. Try again in %d minutes.", int(math.Ceil(wait.Minutes())))
	}

	user, err := s.users.FindByUsernameOrEmail(ctx, identity)
	if errors.Is(err, repository.ErrUserNotFound) {
		return nil, utils.NotFound("User not found.")
	}
	if err != nil {
		return nil, utils.Internal(err, "find user")
	}

	ok, err := utils.VerifyPassword(password, user.Password)
	if err != nil {
		log.Printf("❌ Hash de mot de passe illisible pour %s : %v", user.ID, err)
		return nil, utils.Internal(err, "verify password")
	}
	if !ok {
		if n, err := s.tokens.RecordLoginFailure(ctx, identity); err != nil {
			log.Printf("⚠️ Compteur de tentatives indisponible : %v", err)
		} else {
			log.Printf("⚠️ Échec de connexion %d pour %s", n, user.ID)
		}
		return nil, utils.AuthenticationFailed("Incorrect password.")
	}
	if err := s.tokens.ResetLoginAttempts(ctx, identity); err != nil {
		log.Printf("⚠️ Reset des tentatives échoué : %v", err)
	}
	return s.issue(ctx, user)
}

func (s *AuthService) issue(ctx context.Context, user *models.User) (*AuthResult, error) {
	pair, err := s.issuer.Issue(*user)
	if err != nil {
		return nil, utils.Internal(err, "issue tokens")
	}
	if err := s.tokens.StoreRefreshToken(ctx, user.ID, pair.RefreshJTI, s.issuer.RefreshTTL()); err != nil {
		return nil, utils.Internal(err, "store refresh token")
	}
	return &AuthResult{Refresh: pair.Refresh, Access: pair.Access, User: ProfileOf(user)}, nil
}

// Refresh fait tourner le refresh token : l'ancien est révoqué, une nouvelle paire est émise.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*AuthResult, error) {
	claims, err := s.issuer.Parse(refreshToken, utils.TokenTypeRefresh)
	if err != nil {
		return nil, utils.AuthenticationFailed("Invalid or expired token.")
	}
	active, err := s.tokens.RefreshTokenActive(ctx, claims.UserID, claims.ID)
	if err != nil {
		return nil, utils.Internal(err, "refresh lookup")
	}
	if !active {
		return nil, utils.AuthenticationFailed("Invalid or expired token.")
	}

	user, err := s.users.FindByID(ctx, claims.UserID)
	if errors.Is(err, repository.ErrUserNotFound) {
		return nil, utils.AuthenticationFailed("Invalid or expired token.")
	}
	if err != nil {
		return nil, utils.Internal(err, "find user")
	}
	if err := s.tokens.RevokeRefreshToken(ctx, claims.UserID, claims.ID); err != nil {
		return nil, utils.Internal(err, "revoke refresh token")
	}
	return s.issue(ctx, user)
}

// Logout révoque le refresh token de l'utilisateur authentifié
func (s *AuthService) Logout(ctx context.Context, userID, refreshToken string) error {
	claims, err := s.issuer.Parse(refreshToken, utils.TokenTypeRefresh)
	if err != nil || claims.UserID != userID {
		return utils.AuthenticationFailed("Invalid or expired token.")
	}
	if err := s.tokens.RevokeRefreshToken(ctx, userID, claims.ID); err != nil {
		return utils.Internal(err, "revoke refresh token")
	}
	log.Printf("👋 Déconnexion : %s", userID)
	return nil
}

func (s *AuthService) RequestPasswordReset(ctx context.Context, email string) error {
	user, err := s.users.FindByEmail(ctx, strings.TrimSpace(email))
	if errors.Is(err, repository.ErrUserNotFound) {
		return utils.Validationf("No user is associated with this email address.")
	}
	if err != nil {
		return utils.Internal(err, "find user")
	}

	token := strings.ReplaceAll(uuid.NewString(), "-", "")
	if err := s.tokens.StoreResetToken(ctx, user.ID, token, s.cfg.ResetTTL); err != nil {
		return utils.Internal(err, "store reset token")
	}

	link := fmt.Sprintf("%s/reset-password/?token=%s&uid=%s",
		strings.TrimRight(s.cfg.FrontendURL, "/"), url.QueryEscape(token), url.QueryEscape(user.ID))
	if err := s.mailer.Send(ctx, utils.PasswordResetEmail(user.Email, user.Username, link)); err != nil {
		return utils.Internal(err, "send reset email")
	}
	log.Printf("📧 Lien de réinitialisation envoyé pour %s", user.ID)
	return nil
}

func (s *AuthService) ConfirmPasswordReset(ctx context.Context, uid, token, newPassword string) error {
	user, err := s.users.FindByID(ctx, uid)
	if errors.Is(err, repository.ErrUserNotFound) {
		return utils.Validationf("Invalid reset link.")
	}
	if err != nil {
		return utils.Internal(err, "find user")
	}

	valid, err := s.tokens.ResetTokenValid(ctx, user.ID, token)
	if err != nil {
		return utils.Internal(err, "reset token lookup")
	}
	if !valid {
		return utils.Validationf("Invalid or expired token.")
	}
	// un mot de passe refusé ne consomme pas le lien
	if _, err := utils.ValidatePassword(newPassword, user.Username, user.Email); err != nil {
		return err
	}
	consumed, err := s.tokens.ConsumeResetToken(ctx, user.ID, token)
	if err != nil {
		return utils.Internal(err, "consume reset token")
	}
	if !consumed {
		return utils.Validationf("Invalid or expired token.")
	}

	hash, err := utils.HashPassword(newPassword)
	if err != nil {
		return utils.Internal(err, "hash password")
	}
	if err := s.users.UpdatePassword(ctx, user.ID, hash); err != nil {
		return utils.Internal(err, "update password")
	}
	log.Printf("🔑 Mot de passe réinitialisé : %s", user.ID)
	return nil
}

// SocialSignIn valide un access token Google/Facebook et connecte l'utilisateur
func (s *AuthService) SocialSignIn(ctx context.Context, provider, accessToken string) (*AuthResult, error) {
	label := providerLabel(provider)
	if strings.TrimSpace(accessToken) == "" {
		return nil, utils.Validationf("access_token is required")
	}
	identity, err := s.identities.FetchUser(ctx, provider, accessToken)
	if err != nil {
		log.Printf("❌ FetchUser %s : %v", provider, err)
		return nil, utils.AuthenticationFailed("Invalid or expired %s token", label)
	}
	return s.SignInWithIdentity(ctx, provider, identity)
}

// SignInWithIdentity retrouve l'utilisateur par email ou le crée
func (s *AuthService) SignInWithIdentity(ctx context.Context, provider string, identity goth.User) (*AuthResult, error) {
	email := strings.TrimSpace(identity.Email)
	if email == "" || identity.UserID == "" {
		return nil, utils.AuthenticationFailed("Invalid %s token", providerLabel(provider))
	}

	created := false
	user, err := s.users.FindByEmail(ctx, email)
	if errors.Is(err, repository.ErrUserNotFound) {
		user, err = s.createSocialUser(ctx, provider, email, identity)
		created = true
	}
	if err != nil {
		return nil, utils.Internal(err, "social user")
	}

	res, err := s.issue(ctx, user)
	if err != nil {
		return nil, err
	}
	res.Created = &created
	return res, nil
}

func (s *AuthService) createSocialUser(ctx context.Context, provider, email string, identity goth.User) (*models.User, error) {
	username, _, _ := strings.Cut(email, "@")
	taken, err := s.users.UsernameExists(ctx, username)
	if err != nil {
		return nil, err
	}
	if taken {
		username = username + "-" + uuid.NewString()[:6]
	}
	user := &models.User{
		ID:             uuid.NewString(),
		Username:       username,
		Email:          email,
		FirstName:      identity.FirstName,
		LastName:       identity.LastName,
		Provider:       provider,
		ProviderUserID: identity.UserID,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}
	log.Printf("✅ Compte %s créé : %s", provider, user.ID)
	return user, nil
}

func providerLabel(provider string) string {
	switch provider {
	case models.ProviderGoogle:
		return "Google"
	case models.ProviderFacebook:
		return "Facebook"
	}
	return provider
}
