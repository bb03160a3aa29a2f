package observability

import (
	"os"
	"runtime"

	"github.com/grafana/pyroscope-go"

	"sermon-publisher/pkg/config"
	"sermon-publisher/pkg/logger"
)

// StartProfiling 启动 pyroscope 持续采样，未启用时返回 nil
func StartProfiling(cfg config.ProfilingConfig, appName string) *pyroscope.Profiler {
	if !cfg.Enabled || cfg.ServerAddress == "" {
		return nil
	}

	runtime.SetMutexProfileFraction(5)
	runtime.SetBlockProfileRate(5)

	hostname, _ := os.Hostname()
	profiler, err := pyroscope.Start(pyroscope.Config{
		ApplicationName: appName,
		ServerAddress:   cfg.ServerAddress,
		Tags:            map[string]string{"hostname": hostname},
		ProfileTypes: []pyroscope.ProfileType{
			pyroscope.ProfileCPU,
			pyroscope.ProfileAllocObjects,
			pyroscope.ProfileAllocSpace,
			pyroscope.ProfileInuseObjects,
			pyroscope.ProfileInuseSpace,
			pyroscope.ProfileGoroutines,
			pyroscope.ProfileMutexCount,
			pyroscope.ProfileBlockCount,
		},
	})
	if err != nil {
		logger.Warnf("Pyroscope profiler not started: %v", err)
		return nil
	}
	logger.Infof("Pyroscope profiler started app=%s server=%s", appName, cfg.ServerAddress)
	return profiler
}

// StopProfiling 停止采样
func StopProfiling(p *pyroscope.Profiler) {
	if p == nil {
		return
	}
	if err := p.Stop(); err != nil {
		logger.Warnf("Pyroscope profiler stop failed: %v", err)
	}
}
