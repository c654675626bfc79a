package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"bookswap/config"
	"bookswap/models"

	"github.com/go-redis/redis/v8"
)

var RedisClient *redis.Client

// InboxCacheTTL - кеш короткий, входящие и так перечитываются
// клиентом после каждой мутации
const InboxCacheTTL = 30 * time.Second

func InitRedis() error {
	if config.AppConfig == nil {
		return fmt.Errorf("AppConfig is not loaded")
	}

	redisConfig := config.AppConfig.Redis
	RedisClient = redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", redisConfig.Host, redisConfig.Port),
		Password: redisConfig.Password,
		DB:       redisConfig.DB,
	})

	// Тест соединения
	_, err := RedisClient.Ping(context.Background()).Result()
	if err != nil {
		RedisClient = nil
		return fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return nil
}

func CloseRedis() error {
	if RedisClient != nil {
		return RedisClient.Close()
	}
	return nil
}

func inboxCacheKey(userID int64, page int) string {
	return fmt.Sprintf("inbox:%d:%d", userID, page)
}

// GetCachedInbox возвращает закешированную страницу входящих.
// Без Redis (или при промахе) вернет nil - кеш строго опционален.
func GetCachedInbox(ctx context.Context, userID int64, page int) []models.ThreadSummary {
	if RedisClient == nil {
		return nil
	}
	data, err := RedisClient.Get(ctx, inboxCacheKey(userID, page)).Bytes()
	if err != nil {
		return nil
	}
	var summaries []models.ThreadSummary
	if err := json.Unmarshal(data, &summaries); err != nil {
		return nil
	}
	return summaries
}

// CacheInbox сохраняет страницу входящих
func CacheInbox(ctx context.Context, userID int64, page int, summaries []models.ThreadSummary) {
	if RedisClient == nil {
		return
	}
	data, err := json.Marshal(summaries)
	if err != nil {
		return
	}
	if err := RedisClient.Set(ctx, inboxCacheKey(userID, page), data, InboxCacheTTL).Err(); err != nil {
		log.Printf("failed to cache inbox for user %d: %v", userID, err)
	}
}

// InvalidateInbox сбрасывает кеш входящих участников диалога.
// Вызывается на отправке, удалении сообщения и создании диалога.
func InvalidateInbox(ctx context.Context, userIDs ...int64) {
	if RedisClient == nil {
		return
	}
	for _, userID := range userIDs {
		pattern := fmt.Sprintf("inbox:%d:*", userID)
		keys, err := RedisClient.Keys(ctx, pattern).Result()
		if err != nil || len(keys) == 0 {
			continue
		}
		if err := RedisClient.Del(ctx, keys...).Err(); err != nil {
			log.Printf("failed to invalidate inbox cache for user %d: %v", userID, err)
		}
	}
}
