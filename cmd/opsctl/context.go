package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/gofrs/flock"
	"github.com/golang-jwt/jwt/v5"

	"sermon-publisher/pkg/config"
	"sermon-publisher/pkg/middleware"
	"sermon-publisher/pkg/registry"
)

const defaultRequestTimeout = 10 * time.Minute

type globalOptions struct {
	configPath string
	server     string
	operator   string
	timeout    time.Duration
	json       bool
}

type commandContext struct {
	opts *globalOptions
	cfg  *config.Config
}

func newCommandContext(opts *globalOptions) *commandContext {
	return &commandContext{opts: opts}
}

// ensureConfig 未指定配置文件且 CONFIG_PATH 为空时使用默认配置
func (c *commandContext) ensureConfig() (*config.Config, error) {
	if c.cfg != nil {
		return c.cfg, nil
	}
	path := strings.TrimSpace(c.opts.configPath)
	if path == "" {
		path = os.Getenv("CONFIG_PATH")
	}
	if path == "" {
		c.cfg = config.Default()
		return c.cfg, nil
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load config %s: %w", path, err)
	}
	c.cfg = cfg
	return cfg, nil
}

func (c *commandContext) operator() string {
	if op := strings.TrimSpace(c.opts.operator); op != "" {
		return op
	}
	if user := os.Getenv("USER"); user != "" {
		return user
	}
	return "opsctl"
}

func (c *commandContext) requestTimeout() time.Duration {
	if c.opts.timeout > 0 {
		return c.opts.timeout
	}
	return defaultRequestTimeout
}

// resolveServer --server 优先，其次 etcd 中第一个 api 实例，最后回落到本机端口
func (c *commandContext) resolveServer(ctx context.Context) (string, error) {
	if server := strings.TrimRight(strings.TrimSpace(c.opts.server), "/"); server != "" {
		if !strings.Contains(server, "://") {
			server = "http://" + server
		}
		return server, nil
	}
	cfg := c.cfg
	if !cfg.ServiceRegistry.Enabled {
		return fmt.Sprintf("http://127.0.0.1:%d", cfg.Server.Port), nil
	}

	discovery, err := registry.NewServiceDiscovery(cfg.Etcd)
	if err != nil {
		return "", fmt.Errorf("connect etcd: %w", err)
	}
	defer discovery.Close()

	lookupCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	instances, err := discovery.DiscoverService(lookupCtx, cfg.ServiceRegistry.ServiceName)
	if err != nil {
		return "", err
	}
	// worker 进程不提供管理接口
	instances = registry.WithRole(instances, registry.RoleAPI)
	if len(instances) == 0 {
		return "", fmt.Errorf("no live %s api instance registered in etcd", cfg.ServiceRegistry.ServiceName)
	}
	return "http://" + instances[0].Address, nil
}

func (c *commandContext) adminToken() (string, error) {
	return middleware.SignAdminToken(c.cfg.JWT.Secret, c.cfg.JWT.Issuer, c.operator(), jwt.RegisteredClaims{
		IssuedAt:  jwt.NewNumericDate(time.Now()),
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(c.requestTimeout() + time.Minute)),
	})
}

var errBulkLocked = errors.New("another bulk operation is running on this host")

// withHostLock 同一台机器上只允许一个批量命令同时执行
func (c *commandContext) withHostLock(fn func() error) error {
	lock := flock.New(c.cfg.Bulk.LockFile)
	locked, err := lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock %s: %w", c.cfg.Bulk.LockFile, err)
	}
	if !locked {
		return errBulkLocked
	}
	defer func() { _ = lock.Unlock() }()
	return fn()
}
