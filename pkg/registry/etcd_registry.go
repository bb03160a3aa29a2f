package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	clientv3 "go.etcd.io/etcd/client/v3"

	"sermon-publisher/pkg/config"
	"sermon-publisher/pkg/logger"
)

const keyPrefix = "/services"

// 实例角色：api 进程对外提供 HTTP 管理接口，worker 进程只消费任务
const (
	RoleAPI    = "api"
	RoleWorker = "worker"
)

// Instance 注册到 etcd 的实例信息，以 JSON 保存在 /services/<name>/<id>
type Instance struct {
	ServiceID   string    `json:"service_id"`
	Address     string    `json:"address"`
	GRPCAddress string    `json:"grpc_address,omitempty"`
	Role        string    `json:"role"`
	StartedAt   time.Time `json:"started_at"`
}

// ServiceRegistry 以租约方式注册一个实例，租约丢失后自动重新注册
type ServiceRegistry struct {
	client      *clientv3.Client
	serviceName string
	instance    Instance
	ttl         int64

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	running bool
	leaseID clientv3.LeaseID
}

func newEtcdClient(cfg config.EtcdConfig) (*clientv3.Client, error) {
	dialTimeout := cfg.DialTimeout
	if dialTimeout <= 0 {
		dialTimeout = 5 * time.Second
	}
	client, err := clientv3.New(clientv3.Config{
		Endpoints:   cfg.Endpoints,
		DialTimeout: dialTimeout,
		Username:    cfg.Username,
		Password:    cfg.Password,
	})
	if err != nil {
		return nil, fmt.Errorf("create etcd client: %w", err)
	}
	return client, nil
}

func NewServiceRegistry(etcdCfg config.EtcdConfig, svcCfg config.ServiceRegistryConfig, inst Instance) (*ServiceRegistry, error) {
	client, err := newEtcdClient(etcdCfg)
	if err != nil {
		return nil, err
	}
	ttl := int64(svcCfg.TTL.Seconds())
	if ttl <= 0 {
		ttl = 30
	}
	if inst.ServiceID == "" {
		inst.ServiceID = svcCfg.ServiceID
	}
	if inst.StartedAt.IsZero() {
		inst.StartedAt = time.Now()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &ServiceRegistry{
		client:      client,
		serviceName: svcCfg.ServiceName,
		instance:    inst,
		ttl:         ttl,
		ctx:         ctx,
		cancel:      cancel,
		done:        make(chan struct{}),
	}, nil
}

func serviceKey(serviceName, serviceID string) string {
	return fmt.Sprintf("%s/%s/%s", keyPrefix, serviceName, serviceID)
}

// Register 首次注册同步完成，之后由后台协程续约
func (r *ServiceRegistry) Register() error {
	ch, err := r.putWithLease()
	if err != nil {
		return err
	}
	r.running = true
	go r.keepAlive(ch)
	logger.Infof("Service registered key=%s addr=%s role=%s", serviceKey(r.serviceName, r.instance.ServiceID), r.instance.Address, r.instance.Role)
	return nil
}

func (r *ServiceRegistry) putWithLease() (<-chan *clientv3.LeaseKeepAliveResponse, error) {
	value, err := json.Marshal(r.instance)
	if err != nil {
		return nil, err
	}
	lease, err := r.client.Grant(r.ctx, r.ttl)
	if err != nil {
		return nil, fmt.Errorf("grant lease: %w", err)
	}
	r.leaseID = lease.ID
	key := serviceKey(r.serviceName, r.instance.ServiceID)
	if _, err := r.client.Put(r.ctx, key, string(value), clientv3.WithLease(lease.ID)); err != nil {
		return nil, fmt.Errorf("put %s: %w", key, err)
	}
	return r.client.KeepAlive(r.ctx, lease.ID)
}

// keepAlive 续约通道关闭说明租约已失效（etcd 重启或网络分区），按退避重新注册
func (r *ServiceRegistry) keepAlive(ch <-chan *clientv3.LeaseKeepAliveResponse) {
	defer close(r.done)
	backoff := time.Second
	for {
		for range ch {
		}
		if r.ctx.Err() != nil {
			return
		}
		logger.Warn("Service lease lost, re-registering", map[string]interface{}{
			"service_id": r.instance.ServiceID,
		})
		for {
			select {
			case <-r.ctx.Done():
				return
			case <-time.After(backoff):
			}
			next, err := r.putWithLease()
			if err == nil {
				ch, backoff = next, time.Second
				break
			}
			logger.Warnf("Service re-register failed error=%v", err)
			if backoff < 30*time.Second {
				backoff *= 2
			}
		}
	}
}

// Deregister 撤销租约并关闭客户端
func (r *ServiceRegistry) Deregister() error {
	r.cancel()
	if r.running {
		<-r.done
	}
	if r.leaseID != 0 {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if _, err := r.client.Revoke(ctx, r.leaseID); err != nil {
			logger.Warnf("Revoke lease failed error=%v", err)
		}
	}
	if err := r.client.Close(); err != nil {
		return fmt.Errorf("close etcd client: %w", err)
	}
	logger.Infof("Service deregistered service_id=%s", r.instance.ServiceID)
	return nil
}
