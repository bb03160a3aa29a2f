package vo

import (
	"encoding/json"
	"fmt"
	"time"
)

// JobKind 异步任务类型
type JobKind string

const (
	// JobKindBatchItem 批量提交中的单个来源：抓取、建档、生成、发布
	JobKindBatchItem JobKind = "batch_item"
	// JobKindVideo 已存在的视频记录：生成并发布
	JobKindVideo JobKind = "video"
)

// VideoJob 投递到任务队列的消息
type VideoJob struct {
	JobID       string    `json:"job_id"`
	Kind        JobKind   `json:"kind"`
	BatchID     string    `json:"batch_id,omitempty"`
	SourceURL   string    `json:"source_url,omitempty"`
	VideoID     string    `json:"video_id,omitempty"`
	AutoApprove bool      `json:"auto_approve,omitempty"`
	ApprovedBy  string    `json:"approved_by,omitempty"`
	EnqueuedAt  time.Time `json:"enqueued_at"`
}

// Key 分区键，同一批次或同一视频落到同一分区
func (j VideoJob) Key() string {
	if j.BatchID != "" {
		return j.BatchID
	}
	return j.VideoID
}

// Validate 校验消息必填字段
func (j VideoJob) Validate() error {
	switch j.Kind {
	case JobKindBatchItem:
		if j.BatchID == "" || j.SourceURL == "" {
			return fmt.Errorf("batch item job requires batch_id and source_url")
		}
	case JobKindVideo:
		if j.VideoID == "" {
			return fmt.Errorf("video job requires video_id")
		}
	default:
		return fmt.Errorf("unknown job kind %q", j.Kind)
	}
	return nil
}

func (j VideoJob) Marshal() ([]byte, error) {
	return json.Marshal(j)
}

// UnmarshalVideoJob 解码并校验消息
func UnmarshalVideoJob(data []byte) (VideoJob, error) {
	var job VideoJob
	if err := json.Unmarshal(data, &job); err != nil {
		return VideoJob{}, fmt.Errorf("decode video job: %w", err)
	}
	if err := job.Validate(); err != nil {
		return VideoJob{}, err
	}
	return job, nil
}
