package worker

import "sermon-publisher/pkg/manager"

func init() {
	manager.RegisterComponentPlugin(&JobWorkerComponentPlugin{})
}
