package infra

const (
	// RedisNamespace Базовый префикс для изоляции данных проекта в Redis
	RedisNamespace = "guardian"
)

// Ключи для Sets (состояние)
const (
	RedisKeyBlockedIPs     = RedisNamespace + ":network:blocked_ips"
	RedisKeyLockBlockedIPs = RedisNamespace + ":lock:warmup:blocked_ips"
)

// Каналы Pub/Sub (события). Формат сообщения: "ip:on" / "ip:off".
const (
	RedisChanIPBlock = RedisNamespace + ":network:ip-block-signal"
)
