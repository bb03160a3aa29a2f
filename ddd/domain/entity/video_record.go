package entity

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"sermon-publisher/ddd/domain/vo"
)

// VideoRecord 一条讲道视频从审核到发布的生命周期。
// 状态只能通过迁移方法修改，迁移前先查表并检查前置条件，失败时不做任何修改。
type VideoRecord struct {
	id              string
	batchID         string
	sermon          vo.SermonContent
	script          string
	status          vo.VideoStatus
	videoPath       string
	thumbnailPath   string
	outputBytes     int64
	externalID      string
	externalURL     string
	retryCount      int
	permanent       bool
	errorMessage    string
	errorCategory   vo.ErrorCategory
	approvedBy      string
	rejectionReason string
	metadata        vo.VideoMetadata

	approvedAt            *time.Time
	processingStartedAt   *time.Time
	processingCompletedAt *time.Time
	failedAt              *time.Time
	nextRetryAt           *time.Time
	lastRetryAt           *time.Time
	archivedAt            *time.Time
	createdAt             time.Time
	updatedAt             time.Time
}

// NewVideoRecord 创建待审核的视频记录
func NewVideoRecord(sermon vo.SermonContent, script, batchID string, now time.Time) *VideoRecord {
	if strings.TrimSpace(script) == "" {
		script = sermon.BuildScript()
	}
	return &VideoRecord{
		id:        uuid.NewString(),
		batchID:   batchID,
		sermon:    sermon,
		script:    vo.Truncate(script, vo.MaxScriptLength),
		status:    vo.VideoStatusPending,
		metadata:  vo.VideoMetadata{Title: vo.Truncate(sermon.Title, vo.MaxTitleLength)},
		createdAt: now,
		updatedAt: now,
	}
}

// Getters
func (v *VideoRecord) ID() string { return v.id }
func (v *VideoRecord) BatchID() string { return v.batchID }
func (v *VideoRecord) Sermon() vo.SermonContent { return v.sermon }
func (v *VideoRecord) Script() string { return v.script }
func (v *VideoRecord) Status() vo.VideoStatus { return v.status }
func (v *VideoRecord) VideoPath() string { return v.videoPath }
func (v *VideoRecord) ThumbnailPath() string { return v.thumbnailPath }
func (v *VideoRecord) OutputBytes() int64 { return v.outputBytes }
func (v *VideoRecord) ExternalID() string { return v.externalID }
func (v *VideoRecord) ExternalURL() string { return v.externalURL }
func (v *VideoRecord) RetryCount() int { return v.retryCount }
func (v *VideoRecord) Permanent() bool { return v.permanent }
func (v *VideoRecord) ErrorMessage() string { return v.errorMessage }
func (v *VideoRecord) ErrorCategory() vo.ErrorCategory { return v.errorCategory }
func (v *VideoRecord) ApprovedBy() string { return v.approvedBy }
func (v *VideoRecord) RejectionReason() string { return v.rejectionReason }
func (v *VideoRecord) Metadata() vo.VideoMetadata { return v.metadata }
func (v *VideoRecord) ApprovedAt() *time.Time { return v.approvedAt }
func (v *VideoRecord) ProcessingStartedAt() *time.Time { return v.processingStartedAt }
func (v *VideoRecord) ProcessingCompletedAt() *time.Time { return v.processingCompletedAt }
func (v *VideoRecord) FailedAt() *time.Time { return v.failedAt }
func (v *VideoRecord) NextRetryAt() *time.Time { return v.nextRetryAt }
func (v *VideoRecord) LastRetryAt() *time.Time { return v.lastRetryAt }
func (v *VideoRecord) ArchivedAt() *time.Time { return v.archivedAt }
func (v *VideoRecord) CreatedAt() time.Time { return v.createdAt }
func (v *VideoRecord) UpdatedAt() time.Time { return v.updatedAt }

// PublishTitle 发布标题：元数据标题优先
func (v *VideoRecord) PublishTitle() string {
	if v.metadata.Title != "" {
		return v.metadata.Title
	}
	return v.sermon.Title
}

// HasArtifacts 是否已有生成产物
func (v *VideoRecord) HasArtifacts() bool {
	return v.videoPath != "" || v.thumbnailPath != ""
}

func (v *VideoRecord) next(trigger vo.VideoTrigger) (vo.VideoStatus, error) {
	next, ok := v.status.Next(trigger)
	if !ok {
		return "", newTransitionError(v.status, trigger, "")
	}
	return next, nil
}

// Approve pending → approved
func (v *VideoRecord) Approve(by string, now time.Time) error {
	next, err := v.next(vo.TriggerApprove)
	if err != nil {
		return err
	}
	v.status = next
	v.approvedBy = by
	v.approvedAt = timePtr(now)
	v.updatedAt = now
	return nil
}

// Reject pending|approved → rejected
func (v *VideoRecord) Reject(reason string, now time.Time) error {
	next, err := v.next(vo.TriggerReject)
	if err != nil {
		return err
	}
	v.status = next
	v.rejectionReason = reason
	v.updatedAt = now
	return nil
}

// Start approved → processing
func (v *VideoRecord) Start(now time.Time) error {
	next, err := v.next(vo.TriggerStart)
	if err != nil {
		return err
	}
	v.status = next
	v.processingStartedAt = timePtr(now)
	v.processingCompletedAt = nil
	v.updatedAt = now
	return nil
}

// RecordArtifacts 生成成功后记录产物路径，仅在 processing 中允许
func (v *VideoRecord) RecordArtifacts(a vo.GenerationArtifacts, now time.Time) error {
	if v.status != vo.VideoStatusProcessing {
		return NewDomainError("can only record artifacts for processing videos, status: " + v.status.String())
	}
	if a.VideoPath == "" || a.OutputBytes <= 0 {
		return NewDomainError("generation artifacts must include a non-empty video file")
	}
	v.videoPath = a.VideoPath
	v.thumbnailPath = a.ThumbnailPath
	v.outputBytes = a.OutputBytes
	if a.Duration > 0 {
		v.metadata.Duration = a.Duration.Seconds()
	}
	v.updatedAt = now
	return nil
}

// BeginPublish 进入发布阶段，processingStartedAt 重新计时
func (v *VideoRecord) BeginPublish(now time.Time) error {
	if v.status != vo.VideoStatusProcessing {
		return NewDomainError("can only publish processing videos, status: " + v.status.String())
	}
	v.processingStartedAt = timePtr(now)
	v.updatedAt = now
	return nil
}

// Complete processing → uploaded，要求已有非空产物和外部 ID
func (v *VideoRecord) Complete(result vo.PublishResult, now time.Time) error {
	next, err := v.next(vo.TriggerComplete)
	if err != nil {
		return err
	}
	if v.videoPath == "" || v.outputBytes <= 0 {
		return newTransitionError(v.status, vo.TriggerComplete, "no generated output")
	}
	if strings.TrimSpace(result.ExternalID) == "" {
		return newTransitionError(v.status, vo.TriggerComplete, "missing external id")
	}
	v.status = next
	v.externalID = result.ExternalID
	v.externalURL = result.ExternalURL
	v.errorMessage = ""
	v.errorCategory = vo.ErrorCategoryNone
	v.processingCompletedAt = timePtr(now)
	v.updatedAt = now
	return nil
}

// RecordLatePublish 记录在被标记为 failed 之后才完成的发布。
// 外部 ID 保留下来，记录转为永久失败，不再自动重试。
func (v *VideoRecord) RecordLatePublish(result vo.PublishResult, now time.Time) error {
	if v.status != vo.VideoStatusFailed {
		return NewDomainError("late publish can only be recorded on failed videos, status: " + v.status.String())
	}
	if strings.TrimSpace(result.ExternalID) == "" {
		return NewDomainError("late publish requires an external id")
	}
	v.externalID = result.ExternalID
	v.externalURL = result.ExternalURL
	v.permanent = true
	v.nextRetryAt = nil
	v.errorMessage = "published after being marked failed: " + v.errorMessage
	v.updatedAt = now
	return nil
}

// Failure 失败详情
type Failure struct {
	Message   string
	Category  vo.ErrorCategory
	Permanent bool
}

// FailureFromError 根据错误构造失败详情
func FailureFromError(err error) Failure {
	if err == nil {
		return Failure{Message: "unknown error", Category: vo.ErrorCategoryUnknown}
	}
	return Failure{
		Message:   err.Error(),
		Category:  CategoryOf(err),
		Permanent: IsPermanent(err),
	}
}

// Fail processing → failed，重试次数加一
func (v *VideoRecord) Fail(f Failure, now time.Time) error {
	next, err := v.next(vo.TriggerFail)
	if err != nil {
		return err
	}
	category := f.Category
	if !category.IsValid() {
		category = vo.ClassifyErrorMessage(f.Message)
	}
	v.status = next
	v.errorMessage = f.Message
	v.errorCategory = category
	v.permanent = f.Permanent || vo.MessageMarksPermanent(f.Message)
	v.retryCount++
	v.failedAt = timePtr(now)
	v.nextRetryAt = nil
	v.updatedAt = now
	return nil
}

func retryLimit(limit int) int {
	if limit <= 0 {
		return vo.MaxRetryCount
	}
	return limit
}

// RetryEligible 失败且未达到重试上限、不是永久性错误
func (v *VideoRecord) RetryEligible(limit int) bool {
	return v.status == vo.VideoStatusFailed && v.retryCount < retryLimit(limit) && !v.permanent
}

// ScheduleRetry 记录下次自动重试时间：failedAt + base * 2^retryCount
func (v *VideoRecord) ScheduleRetry(base time.Duration) bool {
	if !v.RetryEligible(vo.MaxRetryCount) || v.failedAt == nil || base <= 0 {
		v.nextRetryAt = nil
		return false
	}
	at := v.failedAt.Add(base * time.Duration(1<<uint(v.retryCount)))
	v.nextRetryAt = &at
	return true
}

// RetryReset failed → pending，清除错误和产物，limit<=0 时使用默认上限 3
func (v *VideoRecord) RetryReset(limit int, now time.Time) error {
	next, err := v.next(vo.TriggerRetryReset)
	if err != nil {
		return err
	}
	if v.permanent {
		return newTransitionError(v.status, vo.TriggerRetryReset, "permanent failure")
	}
	if v.retryCount >= retryLimit(limit) {
		return newTransitionError(v.status, vo.TriggerRetryReset, "retry limit reached")
	}
	v.status = next
	v.errorMessage = ""
	v.errorCategory = vo.ErrorCategoryNone
	v.videoPath = ""
	v.thumbnailPath = ""
	v.outputBytes = 0
	v.approvedAt = nil
	v.processingStartedAt = nil
	v.processingCompletedAt = nil
	v.nextRetryAt = nil
	v.lastRetryAt = timePtr(now)
	v.updatedAt = now
	return nil
}

// Archive uploaded → archived
func (v *VideoRecord) Archive(now time.Time) error {
	next, err := v.next(vo.TriggerArchive)
	if err != nil {
		return err
	}
	v.status = next
	v.archivedAt = timePtr(now)
	v.updatedAt = now
	return nil
}

// UpdateMetadata 修改白名单内的展示元数据，不影响状态
func (v *VideoRecord) UpdateMetadata(fields map[string]interface{}, now time.Time) error {
	next, err := v.metadata.Apply(fields)
	if err != nil {
		return NewDomainError(err.Error())
	}
	v.metadata = next
	v.updatedAt = now
	return nil
}

// IsStuck processing 超过 threshold 仍未结束
func (v *VideoRecord) IsStuck(now time.Time, threshold time.Duration) bool {
	if v.status != vo.VideoStatusProcessing || v.processingStartedAt == nil {
		return false
	}
	return now.Sub(*v.processingStartedAt) > threshold
}

func timePtr(t time.Time) *time.Time {
	return &t
}

// VideoRecordState 持久化快照，仅供仓储层转换使用
type VideoRecordState struct {
	ID                    string
	BatchID               string
	Sermon                vo.SermonContent
	Script                string
	Status                vo.VideoStatus
	VideoPath             string
	ThumbnailPath         string
	OutputBytes           int64
	ExternalID            string
	ExternalURL           string
	RetryCount            int
	Permanent             bool
	ErrorMessage          string
	ErrorCategory         vo.ErrorCategory
	ApprovedBy            string
	RejectionReason       string
	Metadata              vo.VideoMetadata
	ApprovedAt            *time.Time
	ProcessingStartedAt   *time.Time
	ProcessingCompletedAt *time.Time
	FailedAt              *time.Time
	NextRetryAt           *time.Time
	LastRetryAt           *time.Time
	ArchivedAt            *time.Time
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

// State 导出快照
func (v *VideoRecord) State() VideoRecordState {
	return VideoRecordState{
		ID:                    v.id,
		BatchID:               v.batchID,
		Sermon:                v.sermon,
		Script:                v.script,
		Status:                v.status,
		VideoPath:             v.videoPath,
		ThumbnailPath:         v.thumbnailPath,
		OutputBytes:           v.outputBytes,
		ExternalID:            v.externalID,
		ExternalURL:           v.externalURL,
		RetryCount:            v.retryCount,
		Permanent:             v.permanent,
		ErrorMessage:          v.errorMessage,
		ErrorCategory:         v.errorCategory,
		ApprovedBy:            v.approvedBy,
		RejectionReason:       v.rejectionReason,
		Metadata:              v.metadata,
		ApprovedAt:            v.approvedAt,
		ProcessingStartedAt:   v.processingStartedAt,
		ProcessingCompletedAt: v.processingCompletedAt,
		FailedAt:              v.failedAt,
		NextRetryAt:           v.nextRetryAt,
		LastRetryAt:           v.lastRetryAt,
		ArchivedAt:            v.archivedAt,
		CreatedAt:             v.createdAt,
		UpdatedAt:             v.updatedAt,
	}
}

// RestoreVideoRecord 从快照重建实体
func RestoreVideoRecord(s VideoRecordState) *VideoRecord {
	return &VideoRecord{
		id:                    s.ID,
		batchID:               s.BatchID,
		sermon:                s.Sermon,
		script:                s.Script,
		status:                s.Status,
		videoPath:             s.VideoPath,
		thumbnailPath:         s.ThumbnailPath,
		outputBytes:           s.OutputBytes,
		externalID:            s.ExternalID,
		externalURL:           s.ExternalURL,
		retryCount:            s.RetryCount,
		permanent:             s.Permanent,
		errorMessage:          s.ErrorMessage,
		errorCategory:         s.ErrorCategory,
		approvedBy:            s.ApprovedBy,
		rejectionReason:       s.RejectionReason,
		metadata:              s.Metadata,
		approvedAt:            s.ApprovedAt,
		processingStartedAt:   s.ProcessingStartedAt,
		processingCompletedAt: s.ProcessingCompletedAt,
		failedAt:              s.FailedAt,
		nextRetryAt:           s.NextRetryAt,
		lastRetryAt:           s.LastRetryAt,
		archivedAt:            s.ArchivedAt,
		createdAt:             s.CreatedAt,
		updatedAt:             s.UpdatedAt,
	}
}
