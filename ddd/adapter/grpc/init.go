package grpc

import "sermon-publisher/pkg/manager"

func init() {
	manager.RegisterComponentPlugin(&HealthServerComponentPlugin{})
}
