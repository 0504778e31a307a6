package infra

import "fmt"

const (
	// RedisNamespace Базовый префикс для изоляции данных проекта в Redis
	RedisNamespace = "shuma"
)

// Каналы Pub/Sub (события)
const (
	// RedisChanInvalidate: другие инстансы/админ-API публикуют сюда область инвалидации (all, securityConfig, ipBans...).
	RedisChanInvalidate = RedisNamespace + ":dashboard:invalidate"
)

// InvalidateChannelFor: канал инвалидации конкретного окружения (staging, prod...).
func InvalidateChannelFor(env string) string {
	if env == "" {
		return RedisChanInvalidate
	}
	return fmt.Sprintf("%s:%s:dashboard:invalidate", RedisNamespace, env)
}
