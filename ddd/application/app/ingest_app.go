package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"sermon-publisher/ddd/domain/entity"
	"sermon-publisher/ddd/domain/gateway"
	"sermon-publisher/ddd/domain/repo"
	"sermon-publisher/ddd/domain/service"
	"sermon-publisher/ddd/domain/vo"
	"sermon-publisher/ddd/infrastructure/source"
	"sermon-publisher/pkg/assert"
	"sermon-publisher/pkg/logger"
)

// batchApprover 批量提交的来源自动审核时记录的审核人
const batchApprover = "system:batch"

var (
	singleIngestApp IngestApp
	onceIngestApp   sync.Once
)

// IngestApp 消费任务队列中的消息，实现 port.JobHandler
type IngestApp interface {
	// HandleJob 按任务类型分发
	HandleJob(ctx context.Context, job vo.VideoJob) error
	// ProcessBatchItem 抓取来源、建档、生成并发布，最后向批次汇报一次结果
	ProcessBatchItem(ctx context.Context, job vo.VideoJob) error
	// ProcessVideo 已有视频记录的生成与发布
	ProcessVideo(ctx context.Context, job vo.VideoJob) error
}

type ingestAppImpl struct {
	videos   repo.VideoRecordRepository
	fetcher  gateway.SourceFetcher
	pipeline service.VideoPipelineService
	batches  BatchApp
	now      func() time.Time
}

func DefaultIngestApp() IngestApp {
	assert.NotCircular()
	onceIngestApp.Do(func() {
		cfg := mustConfig()
		singleIngestApp = NewIngestAppWith(defaultVideoRepo(), source.NewPageFetcher(cfg.Batch), DefaultPipeline(), DefaultBatchApp())
	})
	assert.NotNil(singleIngestApp)
	return singleIngestApp
}

func NewIngestAppWith(videos repo.VideoRecordRepository, fetcher gateway.SourceFetcher, pipeline service.VideoPipelineService, batches BatchApp) IngestApp {
	return &ingestAppImpl{
		videos:   videos,
		fetcher:  fetcher,
		pipeline: pipeline,
		batches:  batches,
		now:      time.Now,
	}
}

func (a *ingestAppImpl) HandleJob(ctx context.Context, job vo.VideoJob) error {
	if err := job.Validate(); err != nil {
		return entity.NewValidationError("handle job", err)
	}
	ctx = logger.WithFields(ctx, map[string]interface{}{
		"job_id": job.JobID,
		"kind":   string(job.Kind),
	})
	switch job.Kind {
	case vo.JobKindBatchItem:
		return a.ProcessBatchItem(ctx, job)
	default:
		return a.ProcessVideo(ctx, job)
	}
}

func (a *ingestAppImpl) ProcessBatchItem(ctx context.Context, job vo.VideoJob) (err error) {
	ctx = logger.WithFields(ctx, map[string]interface{}{
		"batch_id": job.BatchID,
		"source":   job.SourceURL,
	})
	log := logger.FromContext(ctx)

	// 任何退出路径都恰好汇报一次
	defer func() {
		r := recover()
		outcome, detail := vo.ItemSucceeded, ""
		switch {
		case r != nil:
			outcome, detail = vo.ItemFailed, fmt.Sprintf("panic: %v", r)
		case err != nil:
			outcome, detail = vo.ItemFailed, err.Error()
		}
		// 汇报不受上游取消影响
		if reportErr := a.batches.ReportItemOutcome(context.WithoutCancel(ctx), job.BatchID, job.SourceURL, outcome, detail); reportErr != nil {
			log.WithError(reportErr).Warn("batch outcome not recorded")
		}
		// 汇报之后交还给工作协程的 recover
		if r != nil {
			panic(r)
		}
	}()

	sermon, err := a.fetcher.Fetch(ctx, job.SourceURL)
	if err != nil {
		log.WithError(err).Warn("failed to fetch sermon source")
		return err
	}

	v := entity.NewVideoRecord(sermon, sermon.BuildScript(), job.BatchID, a.now())
	if err := a.videos.Create(ctx, v); err != nil {
		return fmt.Errorf("create video record: %w", err)
	}
	log.WithField("video_id", v.ID()).Info("video record created from batch source")

	approver := job.ApprovedBy
	if approver == "" {
		approver = batchApprover
	}
	_, err = a.pipeline.Process(ctx, v.ID(), service.ProcessOptions{
		AutoApprove: job.AutoApprove,
		ApprovedBy:  approver,
	})
	return err
}

func (a *ingestAppImpl) ProcessVideo(ctx context.Context, job vo.VideoJob) error {
	_, err := a.pipeline.Process(ctx, job.VideoID, service.ProcessOptions{
		AutoApprove: job.AutoApprove,
		ApprovedBy:  job.ApprovedBy,
	})
	return err
}
