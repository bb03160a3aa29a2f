package vo

// VideoStatus 视频记录状态
type VideoStatus string

const (
	// VideoStatusPending 待审核
	VideoStatusPending VideoStatus = "pending"
	// VideoStatusApproved 已审核，等待生成
	VideoStatusApproved VideoStatus = "approved"
	// VideoStatusProcessing 生成/发布中
	VideoStatusProcessing VideoStatus = "processing"
	// VideoStatusUploaded 已发布
	VideoStatusUploaded VideoStatus = "uploaded"
	// VideoStatusFailed 失败
	VideoStatusFailed VideoStatus = "failed"
	// VideoStatusRejected 已拒绝
	VideoStatusRejected VideoStatus = "rejected"
	// VideoStatusArchived 已归档
	VideoStatusArchived VideoStatus = "archived"
)

// VideoTrigger 触发状态迁移的事件
type VideoTrigger string

const (
	TriggerApprove    VideoTrigger = "approve"
	TriggerReject     VideoTrigger = "reject"
	TriggerStart      VideoTrigger = "start"
	TriggerComplete   VideoTrigger = "complete"
	TriggerFail       VideoTrigger = "fail"
	TriggerRetryReset VideoTrigger = "retry_reset"
	TriggerArchive    VideoTrigger = "archive"
)

// MaxRetryCount 自动重试上限
const MaxRetryCount = 3

// videoTransitions 唯一的状态迁移表，表外的 (状态, 事件) 组合一律拒绝
var videoTransitions = map[VideoStatus]map[VideoTrigger]VideoStatus{
	VideoStatusPending: {
		TriggerApprove: VideoStatusApproved,
		TriggerReject:  VideoStatusRejected,
	},
	VideoStatusApproved: {
		TriggerReject: VideoStatusRejected,
		TriggerStart:  VideoStatusProcessing,
	},
	VideoStatusProcessing: {
		TriggerComplete: VideoStatusUploaded,
		TriggerFail:     VideoStatusFailed,
	},
	VideoStatusFailed: {
		TriggerRetryReset: VideoStatusPending,
	},
	VideoStatusUploaded: {
		TriggerArchive: VideoStatusArchived,
	},
}

// AllVideoStatuses 全部状态
func AllVideoStatuses() []VideoStatus {
	return []VideoStatus{
		VideoStatusPending, VideoStatusApproved, VideoStatusProcessing, VideoStatusUploaded,
		VideoStatusFailed, VideoStatusRejected, VideoStatusArchived,
	}
}

// AllVideoTriggers 全部事件
func AllVideoTriggers() []VideoTrigger {
	return []VideoTrigger{
		TriggerApprove, TriggerReject, TriggerStart, TriggerComplete,
		TriggerFail, TriggerRetryReset, TriggerArchive,
	}
}

// IsValid 检查状态是否有效
func (s VideoStatus) IsValid() bool {
	switch s {
	case VideoStatusPending, VideoStatusApproved, VideoStatusProcessing, VideoStatusUploaded,
		VideoStatusFailed, VideoStatusRejected, VideoStatusArchived:
		return true
	default:
		return false
	}
}

func (s VideoStatus) String() string {
	return string(s)
}

// Next 查表得到事件触发后的状态
func (s VideoStatus) Next(trigger VideoTrigger) (VideoStatus, bool) {
	next, ok := videoTransitions[s][trigger]
	return next, ok
}

// CanTransitionTo 检查是否存在到目标状态的迁移
func (s VideoStatus) CanTransitionTo(target VideoStatus) bool {
	for _, next := range videoTransitions[s] {
		if next == target {
			return true
		}
	}
	return false
}

// IsTerminal 没有任何出边的状态
func (s VideoStatus) IsTerminal() bool {
	return len(videoTransitions[s]) == 0
}

// ParseVideoStatus 解析状态字符串
func ParseVideoStatus(s string) (VideoStatus, bool) {
	status := VideoStatus(s)
	return status, status.IsValid()
}
