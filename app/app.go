package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	apphttp "sermon-publisher/ddd/adapter/http"
	"sermon-publisher/ddd/application/app"
	"sermon-publisher/ddd/infrastructure/database/persistence"
	"sermon-publisher/ddd/infrastructure/queue"
	"sermon-publisher/internal/resource"
	"sermon-publisher/pkg/config"
	"sermon-publisher/pkg/logger"
	"sermon-publisher/pkg/manager"
	"sermon-publisher/pkg/observability"
	"sermon-publisher/pkg/registry"
	"sermon-publisher/pkg/task"

	_ "sermon-publisher/ddd/adapter/component"
	_ "sermon-publisher/ddd/adapter/grpc"
	_ "sermon-publisher/ddd/infrastructure/worker"
)

// Options 启动选项
type Options struct {
	// Name 日志和 profiling 中的应用名
	Name string
	// WorkerOnly 只运行任务消费和维护任务，HTTP 只保留健康检查
	WorkerOnly bool
}

func Run(opts Options) {
	if opts.Name == "" {
		opts.Name = "sermon-publisher"
	}
	// 先使用标准输出确保能看到日志
	fmt.Printf("[STARTUP] Starting %s...\n", opts.Name)

	cfgPath := resolveConfigPath()
	cfg, err := config.Load(cfgPath)
	if err != nil {
		fmt.Printf("[ERROR] Failed to load config (%s): %v\n", cfgPath, err)
		os.Exit(1)
	}
	if opts.WorkerOnly {
		cfg.Worker.Enabled = true
	}
	// 设置全局配置（必须在资源管理器初始化之前）
	config.SetGlobalConfig(cfg)
	fmt.Printf("[STARTUP] Config file loaded: %s\n", cfgPath)

	logService := logger.NewLogger(cfg)
	logger.SetGlobalLogger(logService)
	defer logService.Close()
	logger.Debug("Logger initialized", map[string]interface{}{
		"level":  cfg.Log.Level,
		"format": cfg.Log.Format,
		"output": cfg.Log.Output,
	})

	profiler := observability.StartProfiling(cfg.Profiling, opts.Name)
	defer observability.StopProfiling(profiler)

	logger.Infof("%s starting dispatch=%s worker_enabled=%t tool_mode=%s", opts.Name, cfg.Dispatch.Driver, cfg.Worker.Enabled, cfg.Generation.ToolMode)

	if cfg.Worker.Enabled {
		checkGenerationTools(cfg.Generation)
	}

	logger.Infof("Initializing resource manager...")
	manager.MustInitResources()
	defer manager.CloseResources()

	db := resource.DefaultMysqlResource().MainDB()
	if cfg.Database.AutoMigrate {
		if err := persistence.AutoMigrate(db); err != nil {
			logger.Fatal(fmt.Sprintf("Failed to migrate database error=%v", err))
		}
	}

	deps := &manager.Dependencies{
		DB:          db,
		Config:      cfg,
		BatchApp:    app.DefaultBatchApp(),
		BulkApp:     app.DefaultBulkApp(),
		IngestApp:   app.DefaultIngestApp(),
		Pipeline:    app.DefaultPipeline(),
		Maintenance: app.DefaultMaintenance(),
	}

	logger.Infof("Initializing components...")
	manager.MustInitComponents(deps)
	logger.Infof("All components initialized")

	var router http.Handler
	health := func() map[string]interface{} {
		return map[string]interface{}{
			"queue_depth":      queue.DefaultJobQueue().Size(),
			"background_tasks": task.Names(),
		}
	}
	if opts.WorkerOnly {
		router = apphttp.NewHealthEngine(cfg, health)
	} else {
		router = apphttp.NewEngine(cfg, health)
	}

	addr := net.JoinHostPort(cfg.Server.Host, strconv.Itoa(cfg.Server.Port))
	server := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal(fmt.Sprintf("Failed to start HTTP server error=%v", err))
		}
	}()
	logger.Infof("HTTP server started addr=%s health_url=http://%s/health", addr, addr)

	serviceRegistry := registerService(cfg, opts.WorkerOnly)

	// 等待中断信号
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Infof("Received shutdown signal, shutting down...")

	if serviceRegistry != nil {
		if err := serviceRegistry.Deregister(); err != nil {
			logger.Warnf("Service deregister failed error=%v", err)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Warnf("HTTP server forced to close error=%v", err)
	}

	logger.Infof("Shutting down components...")
	manager.Shutdown()
	logger.Infof("%s exited safely", opts.Name)
}

// checkGenerationTools exec 模式下外部命令缺失直接在启动阶段失败
func checkGenerationTools(cfg config.GenerationConfig) {
	if strings.EqualFold(cfg.ToolMode, "mock") {
		return
	}
	for _, bin := range []string{cfg.FFmpeg.BinaryPath, cfg.FFmpeg.ProbePath, cfg.Synthesizer.BinaryPath} {
		if _, err := exec.LookPath(bin); err != nil {
			logger.Fatal(fmt.Sprintf("Generation tool not found, install it or set generation.tool_mode=mock binary=%s error=%s", bin, err.Error()))
		}
	}
}

func registerService(cfg *config.Config, workerOnly bool) *registry.ServiceRegistry {
	if !cfg.ServiceRegistry.Enabled {
		return nil
	}
	host := cfg.ServiceRegistry.RegisterHost
	if host == "" {
		host, _ = os.Hostname()
	}
	inst := registry.Instance{
		ServiceID:   cfg.ServiceRegistry.ServiceID,
		Address:     net.JoinHostPort(host, strconv.Itoa(cfg.Server.Port)),
		GRPCAddress: net.JoinHostPort(host, strconv.Itoa(cfg.GRPCServer.Port)),
		Role:        registry.RoleAPI,
	}
	if inst.ServiceID == "" {
		inst.ServiceID = fmt.Sprintf("%s-%d", host, cfg.Server.Port)
	}
	if workerOnly {
		inst.Role = registry.RoleWorker
	}
	r, err := registry.NewServiceRegistry(cfg.Etcd, cfg.ServiceRegistry, inst)
	if err != nil {
		logger.Warnf("Service registry unavailable error=%v", err)
		return nil
	}
	if err := r.Register(); err != nil {
		logger.Warnf("Service register failed error=%v", err)
		_ = r.Deregister()
		return nil
	}
	return r
}

// resolveConfigPath 根据环境选择配置文件，支持CONFIG_PATH覆盖、CONFIG_ENV区分环境
func resolveConfigPath() string {
	if path := os.Getenv("CONFIG_PATH"); path != "" {
		return path
	}

	env := strings.ToLower(strings.TrimSpace(os.Getenv("CONFIG_ENV")))
	if env == "" {
		env = "dev"
	}

	switch env {
	case "prod", "production":
		return "configs/config_prod.yaml"
	case "dev", "development":
		return "configs/config.dev.yaml"
	default:
		return fmt.Sprintf("configs/config.%s.yaml", env)
	}
}
