package grpc

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"sermon-publisher/pkg/logger"
	"sermon-publisher/pkg/manager"
)

// Probe 返回 nil 表示依赖可用
type Probe func(ctx context.Context) error

// HealthServer 标准 grpc 健康检查服务，按探针结果切换 SERVING / NOT_SERVING
type HealthServer struct {
	service  string
	probes   map[string]Probe
	interval time.Duration

	server *grpc.Server
	health *health.Server

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewHealthServer service 为对外暴露的服务名，空字符串代表整体状态
func NewHealthServer(service string, probes map[string]Probe, interval time.Duration) *HealthServer {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	hs := health.NewServer()
	srv := grpc.NewServer()
	healthpb.RegisterHealthServer(srv, hs)
	return &HealthServer{
		service:  service,
		probes:   probes,
		interval: interval,
		server:   srv,
		health:   hs,
	}
}

// Check 执行一次全部探针并更新状态
func (s *HealthServer) Check(ctx context.Context) healthpb.HealthCheckResponse_ServingStatus {
	status := healthpb.HealthCheckResponse_SERVING
	for name, probe := range s.probes {
		probeCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		err := probe(probeCtx)
		cancel()
		if err != nil {
			logger.Warnf("Health probe failed probe=%s error=%v", name, err)
			status = healthpb.HealthCheckResponse_NOT_SERVING
		}
	}
	s.health.SetServingStatus("", status)
	s.health.SetServingStatus(s.service, status)
	return status
}

// Serve 在 lis 上提供服务并周期性刷新状态，直到 Stop
func (s *HealthServer) Serve(lis net.Listener) error {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	s.mu.Lock()
	s.cancel, s.done = cancel, done
	s.mu.Unlock()

	s.Check(ctx)
	go func() {
		defer close(done)
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.Check(ctx)
			}
		}
	}()

	if err := s.server.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return err
	}
	return nil
}

// Stop 标记为 NOT_SERVING 后优雅关闭
func (s *HealthServer) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.mu.Unlock()
	if cancel != nil {
		cancel()
		<-done
	}
	s.health.Shutdown()
	s.server.GracefulStop()
}

// HealthServerComponentPlugin 在 grpc_server 端口上启动健康检查服务
type HealthServerComponentPlugin struct{}

func (p *HealthServerComponentPlugin) Name() string { return "grpcHealthServer" }

func (p *HealthServerComponentPlugin) MustCreateComponent(deps *manager.Dependencies) manager.Component {
	cfg := deps.Config
	if cfg == nil || cfg.GRPCServer.Port <= 0 {
		return nil
	}
	probes := map[string]Probe{}
	if deps.DB != nil {
		probes["database"] = func(ctx context.Context) error {
			sqlDB, err := deps.DB.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		}
	}
	return &healthComponent{
		addr:   fmt.Sprintf("%s:%d", cfg.GRPCServer.Host, cfg.GRPCServer.Port),
		server: NewHealthServer(cfg.ServiceRegistry.ServiceName, probes, 0),
	}
}

type healthComponent struct {
	addr   string
	server *HealthServer
}

func (c *healthComponent) Start() error {
	lis, err := net.Listen("tcp", c.addr)
	if err != nil {
		return fmt.Errorf("listen grpc %s: %w", c.addr, err)
	}
	go func() {
		logger.Infof("gRPC health server started address=%s", c.addr)
		if err := c.server.Serve(lis); err != nil {
			logger.Errorf("gRPC server encountered an error error=%v", err)
		}
	}()
	return nil
}

func (c *healthComponent) Stop() error {
	logger.Infof("Stopping gRPC server... address=%s", c.addr)
	c.server.Stop()
	return nil
}

func (c *healthComponent) GetName() string { return "grpcHealthServer" }
