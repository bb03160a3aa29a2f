package app

import (
	"fmt"
	"net"
	"sync"

	"github.com/redis/go-redis/v9"

	"sermon-publisher/ddd/domain/port"
	"sermon-publisher/ddd/domain/repo"
	"sermon-publisher/ddd/domain/service"
	"sermon-publisher/ddd/domain/vo"
	"sermon-publisher/ddd/infrastructure/batchstore"
	"sermon-publisher/ddd/infrastructure/database/persistence"
	"sermon-publisher/ddd/infrastructure/dispatch"
	"sermon-publisher/ddd/infrastructure/executor"
	"sermon-publisher/ddd/infrastructure/publisher"
	"sermon-publisher/ddd/infrastructure/queue"
	"sermon-publisher/ddd/infrastructure/source"
	"sermon-publisher/ddd/infrastructure/storage"
	"sermon-publisher/internal/resource"
	"sermon-publisher/pkg/assert"
	"sermon-publisher/pkg/config"
)

var (
	singlePipeline    service.VideoPipelineService
	oncePipeline      sync.Once
	singleMaintenance service.MaintenanceService
	onceMaintenance   sync.Once
	singleDispatcher  port.JobDispatcher
	onceDispatcher    sync.Once
)

func mustConfig() *config.Config {
	cfg := config.GetGlobalConfig()
	if cfg == nil {
		panic("global config not initialized")
	}
	return cfg
}

// redisClient redis 资源未打开时返回 nil 接口
func redisClient() redis.UniversalClient {
	c := resource.DefaultRedisResource().Client()
	if c == nil {
		return nil
	}
	return c
}

func defaultVideoRepo() repo.VideoRecordRepository {
	db := resource.DefaultMysqlResource().MainDB()
	assert.NotNil(db)
	return persistence.NewVideoRecordRepository(db)
}

func defaultBatchStore(cfg *config.Config) repo.BatchStore {
	store, err := batchstore.New(cfg.Batch.Store, redisClient())
	if err != nil {
		panic(fmt.Sprintf("failed to create batch store: %v", err))
	}
	return store
}

func defaultSourceValidator(cfg *config.Config) *source.URLValidator {
	return source.NewURLValidator(net.DefaultResolver, cfg.Batch.ResolveTimeout)
}

// DefaultDispatcher 按配置投递到 kafka / rabbitmq / 本地队列
func DefaultDispatcher() port.JobDispatcher {
	assert.NotCircular()
	onceDispatcher.Do(func() {
		d, err := dispatch.NewDispatcher(mustConfig(), queue.DefaultJobQueue())
		if err != nil {
			panic(fmt.Sprintf("failed to create job dispatcher: %v", err))
		}
		singleDispatcher = d
	})
	assert.NotNil(singleDispatcher)
	return singleDispatcher
}

// DefaultPipeline 生成 + 发布流水线
func DefaultPipeline() service.VideoPipelineService {
	assert.NotCircular()
	oncePipeline.Do(func() {
		cfg := mustConfig()
		tools := executor.NewTools(cfg.Generation)
		orchestrator := service.NewGenerationOrchestrator(tools.Synthesizer, tools.Compositor, tools.Selector, service.GenerationOptions{
			WorkDir:     cfg.Generation.WorkDir,
			OutputDir:   cfg.Generation.OutputDir,
			Language:    cfg.Generation.Language,
			Timeout:     cfg.Generation.Timeout,
			MaxDuration: cfg.Generation.MaxAudioDuration,
		})
		singlePipeline = service.NewVideoPipelineService(
			defaultVideoRepo(),
			orchestrator,
			publisher.New(cfg.Publisher, redisClient()),
			storage.NewMinioStorageFromResource(resource.DefaultMinioResource()),
			service.PipelineOptions{
				PublishDefaults: vo.PublishDefaults{
					Title:         cfg.Publisher.DefaultTitle,
					CategoryID:    cfg.Publisher.CategoryID,
					PrivacyStatus: cfg.Publisher.PrivacyStatus,
					Language:      cfg.Publisher.DefaultLanguage,
				},
				RetryBaseDelay: cfg.Worker.RetryBaseDelay,
			},
		)
	})
	assert.NotNil(singlePipeline)
	return singlePipeline
}

// DefaultMaintenance 超时清扫和自动重试
func DefaultMaintenance() service.MaintenanceService {
	assert.NotCircular()
	onceMaintenance.Do(func() {
		cfg := mustConfig()
		singleMaintenance = service.NewMaintenanceService(defaultVideoRepo(), DefaultDispatcher(), service.MaintenanceOptions{
			StuckAfter:     cfg.StuckThreshold(),
			RetryBaseDelay: cfg.Worker.RetryBaseDelay,
			MaxRetries:     vo.MaxRetryCount,
		})
	})
	assert.NotNil(singleMaintenance)
	return singleMaintenance
}
