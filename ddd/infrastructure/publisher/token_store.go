package publisher

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"sermon-publisher/pkg/redisclient"
)

// Token OAuth 访问令牌
type Token struct {
	AccessToken string    `json:"access_token"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// Valid 没有过期时间的令牌视为有效，直到平台返回 401
func (t Token) Valid(now time.Time) bool {
	if t.AccessToken == "" {
		return false
	}
	return t.ExpiresAt.IsZero() || now.Before(t.ExpiresAt)
}

// TokenStore 多个进程之间共享刷新后的令牌
type TokenStore interface {
	Load(ctx context.Context) (Token, bool, error)
	Save(ctx context.Context, t Token) error
}

// MemoryTokenStore 进程内令牌缓存
type MemoryTokenStore struct {
	mu  sync.RWMutex
	tok Token
	set bool
}

func (s *MemoryTokenStore) Load(context.Context) (Token, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tok, s.set, nil
}

func (s *MemoryTokenStore) Save(_ context.Context, t Token) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tok, s.set = t, true
	return nil
}

// RedisTokenStore 令牌按剩余有效期写入 redis
type RedisTokenStore struct {
	client redis.UniversalClient
	key    string
}

func NewRedisTokenStore(client redis.UniversalClient) *RedisTokenStore {
	return &RedisTokenStore{client: client, key: redisclient.Key("publisher", "oauth_token")}
}

func (s *RedisTokenStore) Load(ctx context.Context) (Token, bool, error) {
	raw, err := s.client.Get(ctx, s.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return Token{}, false, nil
	}
	if err != nil {
		return Token{}, false, err
	}
	var t Token
	if err := json.Unmarshal(raw, &t); err != nil {
		return Token{}, false, nil
	}
	return t, true, nil
}

func (s *RedisTokenStore) Save(ctx context.Context, t Token) error {
	body, err := json.Marshal(t)
	if err != nil {
		return err
	}
	var ttl time.Duration
	if !t.ExpiresAt.IsZero() {
		ttl = time.Until(t.ExpiresAt)
		if ttl <= 0 {
			return s.client.Del(ctx, s.key).Err()
		}
	}
	return s.client.Set(ctx, s.key, body, ttl).Err()
}
