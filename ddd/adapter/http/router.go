package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"sermon-publisher/pkg/config"
	"sermon-publisher/pkg/manager"
	"sermon-publisher/pkg/metrics"
	"sermon-publisher/pkg/middleware"
)

func init() {
	manager.RegisterControllerPlugin(&BatchControllerPlugin{})
	manager.RegisterControllerPlugin(&VideoControllerPlugin{})
	manager.RegisterControllerPlugin(&BulkControllerPlugin{})
}

// HealthFunc 返回附加的健康信息，nil 表示不附加
type HealthFunc func() map[string]interface{}

// NewEngine 创建 Gin 引擎：公共中间件、健康检查、指标以及所有已注册控制器的路由
func NewEngine(cfg *config.Config, health HealthFunc) *gin.Engine {
	engine := NewHealthEngine(cfg, health)
	manager.RegisterAllRoutes(engine)
	return engine
}

// NewHealthEngine 只有健康检查和指标，供纯 Worker 进程使用
func NewHealthEngine(cfg *config.Config, health HealthFunc) *gin.Engine {
	if cfg.Server.Mode != "" {
		gin.SetMode(cfg.Server.Mode)
	}
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(middleware.RequestContextMiddleware())
	engine.Use(middleware.AccessLogMiddleware())

	engine.GET("/health", func(c *gin.Context) {
		body := gin.H{
			"status":    "ok",
			"service":   cfg.ServiceRegistry.ServiceName,
			"timestamp": time.Now().Unix(),
		}
		if health != nil {
			for k, v := range health() {
				body[k] = v
			}
		}
		c.JSON(http.StatusOK, body)
	})

	if cfg.Metrics.Enabled {
		engine.GET(cfg.Metrics.Path, gin.WrapH(metrics.Handler()))
	}
	return engine
}
