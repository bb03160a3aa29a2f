package vo

import "time"

// BatchStatus 批量提交状态
type BatchStatus string

const (
	BatchStatusStarted    BatchStatus = "started"
	BatchStatusProcessing BatchStatus = "processing"
	BatchStatusCompleted  BatchStatus = "completed"
)

func (s BatchStatus) String() string {
	return string(s)
}

// ItemOutcome 单个来源的处理结果
type ItemOutcome string

const (
	ItemSucceeded ItemOutcome = "succeeded"
	ItemFailed    ItemOutcome = "failed"
)

func (o ItemOutcome) IsValid() bool {
	return o == ItemSucceeded || o == ItemFailed
}

// InvalidSource 被拒绝的来源及原因
type InvalidSource struct {
	Source string `json:"source"`
	Reason string `json:"reason"`
}

// BatchActivity 批次活动日志条目
type BatchActivity struct {
	Timestamp time.Time `json:"timestamp"`
	Message   string    `json:"message"`
}
