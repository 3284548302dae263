package cache

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	LoginMaxAttempts = 5
	LoginCooldown    = 15 * time.Minute
)

// TokenStore : refresh tokens, tokens de reset et compteurs de login dans Redis
type TokenStore struct {
	rdb *redis.Client
}

func NewTokenStore(rdb *redis.Client) *TokenStore {
	return &TokenStore{rdb: rdb}
}

// --- Refresh Tokens ---

func refreshKey(userID, jti string) string { return fmt.Sprintf("refresh:%s:%s", userID, jti) }

func (s *TokenStore) StoreRefreshToken(ctx context.Context, userID, jti string, ttl time.Duration) error {
	return s.rdb.Set(ctx, refreshKey(userID, jti), "1", ttl).Err()
}

func (s *TokenStore) RefreshTokenActive(ctx context.Context, userID, jti string) (bool, error) {
	n, err := s.rdb.Exists(ctx, refreshKey(userID, jti)).Result()
	return n > 0, err
}

// RevokeRefreshToken supprime le refresh token (logout)
func (s *TokenStore) RevokeRefreshToken(ctx context.Context, userID, jti string) error {
	return s.rdb.Del(ctx, refreshKey(userID, jti)).Err()
}

// --- Reset de mot de passe ---

func resetKey(userID string) string { return "password_reset:" + userID }

func (s *TokenStore) StoreResetToken(ctx context.Context, userID, token string, ttl time.Duration) error {
	return s.rdb.Set(ctx, resetKey(userID), token, ttl).Err()
}

// ResetTokenValid compare sans consommer
func (s *TokenStore) ResetTokenValid(ctx context.Context, userID, token string) (bool, error) {
	stored, err := s.rdb.Get(ctx, resetKey(userID)).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return subtle.ConstantTimeCompare([]byte(stored), []byte(token)) == 1, nil
}

// ConsumeResetToken valide le token et le supprime. Un mauvais token ne consomme rien.
func (s *TokenStore) ConsumeResetToken(ctx context.Context, userID, token string) (bool, error) {
	ok, err := s.ResetTokenValid(ctx, userID, token)
	if err != nil || !ok {
		return false, err
	}
	// DEL retourne 0 si un autre appel l'a consommé entre-temps
	n, err := s.rdb.Del(ctx, resetKey(userID)).Result()
	return n == 1, err
}

// --- Rate limiting du login ---

func loginAttemptsKey(identity string) string { return "login_attempts:" + identity }
func loginCooldownKey(identity string) string { return "login_cooldown:" + identity }

// CooldownRemaining retourne le temps restant de blocage, 0 si l'identité peut se connecter
func (s *TokenStore) CooldownRemaining(ctx context.Context, identity string) (time.Duration, error) {
	ttl, err := s.rdb.TTL(ctx, loginCooldownKey(identity)).Result()
	if err != nil {
		return 0, err
	}
	if ttl < 0 {
		return 0, nil
	}
	return ttl, nil
}

// RecordLoginFailure incrémente les échecs et active le cooldown au seuil
func (s *TokenStore) RecordLoginFailure(ctx context.Context, identity string) (int64, error) {
	pipe := s.rdb.TxPipeline()
	incr := pipe.Incr(ctx, loginAttemptsKey(identity))
	pipe.Expire(ctx, loginAttemptsKey(identity), LoginCooldown)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, err
	}

	attempts := incr.Val()
	if attempts >= LoginMaxAttempts {
		pipe := s.rdb.TxPipeline()
		pipe.Set(ctx, loginCooldownKey(identity), "1", LoginCooldown)
		pipe.Del(ctx, loginAttemptsKey(identity))
		if _, err := pipe.Exec(ctx); err != nil {
			return attempts, err
		}
	}
	return attempts, nil
}

// ResetLoginAttempts après un login réussi
func (s *TokenStore) ResetLoginAttempts(ctx context.Context, identity string) error {
	return s.rdb.Del(ctx, loginAttemptsKey(identity), loginCooldownKey(identity)).Err()
}
