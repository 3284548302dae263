package utils

import (
	"errors"
	"fmt"
	"time"

	"mutaengine_back_end/internal/models"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	TokenTypeAccess  = "access"
	TokenTypeRefresh = "refresh"
)

var ErrTokenInvalid = errors.New("token invalide")

// Claims portés par les access et refresh tokens
type Claims struct {
	UserID      string `json:"user_id"`
	Username    string `json:"username"`
	Email       string `json:"email"`
	IsSuperuser bool   `json:"is_superuser"`
	TokenType   string `json:"token_type"`
	jwt.RegisteredClaims
}

// TokenPair est renvoyé au login, au refresh et au social sign-in
type TokenPair struct {
	Access     string `json:"access"`
	Refresh    string `json:"refresh"`
	RefreshJTI string `json:"-"`
}

type TokenIssuer struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

func NewTokenIssuer(secret string, accessTTL, refreshTTL time.Duration) *TokenIssuer {
	return &TokenIssuer{secret: []byte(secret), accessTTL: accessTTL, refreshTTL: refreshTTL, now: time.Now}
}

func (t *TokenIssuer) RefreshTTL() time.Duration { return t.refreshTTL }

// Issue signe un access token et un refresh token pour l'utilisateur
func (t *TokenIssuer) Issue(user models.User) (*TokenPair, error) {
	access, _, err := t.sign(user, TokenTypeAccess, t.accessTTL)
	if err != nil {
		return nil, err
	}
	refresh, jti, err := t.sign(user, TokenTypeRefresh, t.refreshTTL)
	if err != nil {
		return nil, err
	}
	return &TokenPair{Access: access, Refresh: refresh, RefreshJTI: jti}, nil
}

func (t *TokenIssuer) sign(user models.User, tokenType string, ttl time.Duration) (string, string, error) {
	now := t.now()
	jti := uuid.NewString()
	claims := Claims{
		UserID:      user.ID,
		Username:    user.Username,
		Email:       user.Email,
		IsSuperuser: user.IsSuperuser,
		TokenType:   tokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti,
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return "", "", fmt.Errorf("signature JWT: %w", err)
	}
	return signed, jti, nil
}

// Parse valide la signature, l'expiration et le type du token
func (t *TokenIssuer) Parse(tokenString, tokenType string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("méthode de signature inattendue: %v", token.Header["alg"])
		}
		return t.secret, nil
	}, jwt.WithTimeFunc(t.now))
	if err != nil || !token.Valid {
		return nil, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}
	if claims.TokenType != tokenType || claims.UserID == "" {
		return nil, ErrTokenInvalid
	}
	return claims, nil
}

// User reconstruit l'identité authentifiée depuis les claims
func (c *Claims) User() models.User {
	return models.User{ID: c.UserID, Username: c.Username, Email: c.Email, IsSuperuser: c.IsSuperuser}
}
