package publisher

import (
	"net/http"

	"github.com/redis/go-redis/v9"

	"sermon-publisher/pkg/config"
)

// New share_tokens 开启且有 redis 时，刷新后的令牌在所有 worker 之间共享
func New(cfg config.PublisherConfig, rdb redis.UniversalClient) *Client {
	httpClient := &http.Client{}
	var store TokenStore = &MemoryTokenStore{}
	if cfg.ShareTokens && rdb != nil {
		store = NewRedisTokenStore(rdb)
	}
	return NewClient(cfg, NewTokenManager(cfg, httpClient, store), WithHTTPClient(httpClient))
}
