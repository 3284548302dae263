package middleware

import (
	"fmt"
	"log"
	"math"
	"strconv"
	"time"

	"mutaengine_back_end/internal/utils"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

const (
	RegisterMaxAttempts      = 3
	RegisterWindow           = 30 * time.Minute
	PasswordResetMaxAttempts = 3
	PasswordResetWindow      = 10 * time.Minute
	SocialSignInMaxAttempts  = 20
	SocialSignInWindow       = time.Minute
)

// RateLimit limite les requêtes par IP sur une fenêtre fixe.
// La clé est "<scope>_attempts:<ip>". Redis indisponible : la requête passe.
func RateLimit(rdb *redis.Client, scope string, limit int64, window time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		key := scope + "_attempts:" + c.ClientIP()

		count, err := rdb.Incr(ctx, key).Result()
		if err == nil && count == 1 {
			err = rdb.Expire(ctx, key, window).Err()
		}
		if err != nil {
			log.Printf("⚠️ Rate limit %s indisponible: %v", scope, err)
			c.Next()
			return
		}

		remaining := limit - count
		c.Header("X-RateLimit-Limit", strconv.FormatInt(limit, 10))
		if remaining >= 0 {
			c.Header("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))
			c.Next()
			return
		}

		wait, err := rdb.TTL(ctx, key).Result()
		if err != nil || wait < 0 {
			wait = window
		}
		c.Header("Retry-After", strconv.Itoa(int(math.Ceil(wait.Seconds()))))
		utils.RespondError(c, utils.RateLimited("Too many requests. Try again in %s.", humanMinutes(wait)))
	}
}

func humanMinutes(d time.Duration) string {
	m := int(math.Ceil(d.Minutes()))
	if m <= 1 {
		return "1 minute"
	}
	return fmt.Sprintf("%d minutes", m)
}
