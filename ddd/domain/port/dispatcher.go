package port

import (
	"context"

	"sermon-publisher/ddd/domain/vo"
)

// JobDispatcher 投递异步任务（kafka / rabbitmq / 进程内队列）
type JobDispatcher interface {
	Dispatch(ctx context.Context, job vo.VideoJob) error
}

// JobHandler 消费端处理单个任务
type JobHandler interface {
	HandleJob(ctx context.Context, job vo.VideoJob) error
}
