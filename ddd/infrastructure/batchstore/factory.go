package batchstore

import (
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"

	"sermon-publisher/ddd/domain/repo"
)

// New store 为 redis 时必须提供客户端
func New(store string, client redis.UniversalClient) (repo.BatchStore, error) {
	switch strings.ToLower(store) {
	case "", "redis":
		if client == nil {
			return nil, fmt.Errorf("redis batch store requires a redis client")
		}
		return NewRedisStore(client), nil
	case "memory":
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unsupported batch store %q", store)
	}
}
