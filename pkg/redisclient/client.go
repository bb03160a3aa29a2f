package redisclient

import (
	"context"
	"crypto/tls"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"sermon-publisher/pkg/config"
)

// Namespace 所有键的公共前缀
const Namespace = "sermon"

// Client 批次状态和 OAuth 令牌缓存共用的 redis 连接
type Client struct {
	native *redis.Client
}

// Options 把配置转换为 go-redis 选项，未配置的超时使用默认值
func Options(cfg config.RedisConfig) *redis.Options {
	opts := &redis.Options{
		Addr:         cfg.GetRedisAddr(),
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		DialTimeout:  orDefault(cfg.DialTimeout, 5*time.Second),
		ReadTimeout:  orDefault(cfg.ReadTimeout, 3*time.Second),
		WriteTimeout: orDefault(cfg.WriteTimeout, 3*time.Second),
	}
	if cfg.EnableTLS {
		opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	return opts
}

// New 建立连接并 PING，失败时不返回半初始化的客户端
func New(ctx context.Context, cfg config.RedisConfig) (*Client, error) {
	cli := redis.NewClient(Options(cfg))
	pingCtx, cancel := context.WithTimeout(ctx, orDefault(cfg.DialTimeout, 5*time.Second))
	defer cancel()
	if err := cli.Ping(pingCtx).Err(); err != nil {
		_ = cli.Close()
		return nil, fmt.Errorf("ping redis %s: %w", cfg.GetRedisAddr(), err)
	}
	return &Client{native: cli}, nil
}

func (c *Client) Raw() *redis.Client {
	return c.native
}

func (c *Client) Close() error {
	return c.native.Close()
}

// Key 拼接带命名空间的键，例如 Key("batch", id) => sermon:batch:<id>
func Key(parts ...string) string {
	return Namespace + ":" + strings.Join(parts, ":")
}

func orDefault(v, fallback time.Duration) time.Duration {
	if v <= 0 {
		return fallback
	}
	return v
}
