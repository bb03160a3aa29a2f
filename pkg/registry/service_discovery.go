package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	clientv3 "go.etcd.io/etcd/client/v3"

	"sermon-publisher/pkg/config"
)

// ServiceDiscovery 查询 etcd 中注册的实例，供运维命令使用
type ServiceDiscovery struct {
	client *clientv3.Client
}

func NewServiceDiscovery(etcdCfg config.EtcdConfig) (*ServiceDiscovery, error) {
	client, err := newEtcdClient(etcdCfg)
	if err != nil {
		return nil, err
	}
	return &ServiceDiscovery{client: client}, nil
}

// DiscoverService 列出 serviceName 下所有存活实例
func (sd *ServiceDiscovery) DiscoverService(ctx context.Context, serviceName string) ([]Instance, error) {
	prefix := fmt.Sprintf("%s/%s/", keyPrefix, serviceName)
	resp, err := sd.client.Get(ctx, prefix, clientv3.WithPrefix())
	if err != nil {
		return nil, fmt.Errorf("get service instances: %w", err)
	}
	instances := make([]Instance, 0, len(resp.Kvs))
	for _, kv := range resp.Kvs {
		instances = append(instances, decodeInstance(strings.TrimPrefix(string(kv.Key), prefix), kv.Value))
	}
	return instances, nil
}

func (sd *ServiceDiscovery) Close() error {
	return sd.client.Close()
}

// decodeInstance 兼容只保存了地址字符串的旧注册值
func decodeInstance(serviceID string, value []byte) Instance {
	var inst Instance
	if err := json.Unmarshal(value, &inst); err != nil || inst.Address == "" {
		return Instance{ServiceID: serviceID, Address: strings.TrimSpace(string(value))}
	}
	if inst.ServiceID == "" {
		inst.ServiceID = serviceID
	}
	return inst
}

// WithRole 过滤出指定角色的实例，未声明角色的实例视为 api
func WithRole(instances []Instance, role string) []Instance {
	out := make([]Instance, 0, len(instances))
	for _, inst := range instances {
		r := inst.Role
		if r == "" {
			r = RoleAPI
		}
		if r == role {
			out = append(out, inst)
		}
	}
	return out
}
