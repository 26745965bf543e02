package api

import (
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"kitchenline/server/internal/utils"
)

const actorContextKey = "actor_id"

// ActorMiddleware определяет, кто выполняет запрос.
// Порядок: заголовок X-Actor-Id, затем сессия в Redis по Bearer токену,
// иначе system. Аутентификация здесь не валидируется, это только атрибуция.
func ActorMiddleware(redisUtil *utils.RedisClient) gin.HandlerFunc {
	return func(c *gin.Context) {
		actorID := c.GetHeader("X-Actor-Id")

		if actorID == "" && redisUtil != nil {
			token := c.GetHeader("Authorization")
			if len(token) > 7 && token[:7] == "Bearer " {
				sessionActor, err := redisUtil.Get(fmt.Sprintf("session:%s", token[7:]))
				if err == nil && sessionActor != "" {
					actorID = sessionActor
				}
			}
		}

		if actorID == "" {
			actorID = "system"
		}

		c.Set(actorContextKey, actorID)
		c.Next()
	}
}

// actorFrom достает ID актора из контекста запроса
func actorFrom(c *gin.Context) string {
	if actor, ok := c.Get(actorContextKey); ok {
		if s, ok := actor.(string); ok && s != "" {
			return s
		}
	}
	return "system"
}

// RateLimitMiddleware ограничивает частоту запросов через Redis INCR+EXPIRE.
// При недоступном Redis пропускает все запросы (fail-open).
func RateLimitMiddleware(redisUtil *utils.RedisClient, limit int, window time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		if redisUtil == nil {
			c.Next()
			return
		}

		key := fmt.Sprintf("rate:%s:%s", c.FullPath(), c.ClientIP())
		count, err := redisUtil.Increment(key)
		if err != nil {
			log.Printf("⚠️ Rate limit: Redis недоступен, пропускаем: %v", err)
			c.Next()
			return
		}
		if count == 1 {
			if err := redisUtil.Expire(key, window); err != nil {
				log.Printf("⚠️ Rate limit: не удалось выставить TTL: %v", err)
			}
		}

		if count > int64(limit) {
			c.JSON(http.StatusTooManyRequests, gin.H{"error": "too many requests"})
			c.Abort()
			return
		}
		c.Next()
	}
}
