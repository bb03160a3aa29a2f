package resource

import (
	"context"
	"sync"

	"github.com/redis/go-redis/v9"

	"sermon-publisher/pkg/assert"
	"sermon-publisher/pkg/config"
	"sermon-publisher/pkg/logger"
	"sermon-publisher/pkg/manager"
	"sermon-publisher/pkg/redisclient"
)

var (
	redisResourceOnce      sync.Once
	singletonRedisResource *RedisResource
)

// RedisResource 批次状态与共享 OAuth 令牌使用的 redis 连接
type RedisResource struct {
	client *redisclient.Client
}

func DefaultRedisResource() *RedisResource {
	assert.NotCircular()
	redisResourceOnce.Do(func() {
		singletonRedisResource = &RedisResource{}
	})
	assert.NotNil(singletonRedisResource)
	return singletonRedisResource
}

func (r *RedisResource) MustOpen() {
	if r.client != nil {
		return
	}
	cfg := config.GetGlobalConfig()
	if cfg == nil {
		panic("global config not initialized before RedisResource")
	}
	client, err := redisclient.New(context.Background(), cfg.Redis)
	if err != nil {
		panic(err.Error())
	}
	r.client = client
	logger.Info("Redis resource initialized", map[string]interface{}{
		"addr":        cfg.Redis.GetRedisAddr(),
		"batch_store": cfg.Batch.Store,
		"share_token": cfg.Publisher.ShareTokens,
	})
}

func (r *RedisResource) Close() {
	if r.client == nil {
		return
	}
	if err := r.client.Close(); err != nil {
		logger.Warnf("Close redis failed error=%v", err)
	}
	r.client = nil
}

// Client 资源未打开时返回 nil
func (r *RedisResource) Client() *redis.Client {
	if r.client == nil {
		return nil
	}
	return r.client.Raw()
}

type RedisResourcePlugin struct{}

func (p *RedisResourcePlugin) Name() string {
	return "redisResource"
}

// MustCreateResource 只有 redis 批次存储或共享令牌开启时才需要连接
func (p *RedisResourcePlugin) MustCreateResource() manager.Resource {
	cfg := config.GetGlobalConfig()
	if cfg == nil || (cfg.Batch.Store != "redis" && !cfg.Publisher.ShareTokens) {
		return nil
	}
	return DefaultRedisResource()
}
