package dao

import (
	"context"
	"time"

	"gorm.io/gorm"

	"sermon-publisher/ddd/infrastructure/database/po"
	"sermon-publisher/pkg/logger"
)

// VideoRecordDAO 视频记录数据访问对象
type VideoRecordDAO struct {
	db *gorm.DB
}

func NewVideoRecordDAO(db *gorm.DB) *VideoRecordDAO {
	return &VideoRecordDAO{db: db}
}

// DB 当前绑定的连接（事务内为 tx）
func (d *VideoRecordDAO) DB() *gorm.DB {
	return d.db
}

// Create 创建视频记录
func (d *VideoRecordDAO) Create(ctx context.Context, record *po.VideoRecord) error {
	if err := d.db.WithContext(ctx).Create(record).Error; err != nil {
		logger.Errorf("Error creating video record video_uuid=%s error=%v", record.VideoUUID, err)
		return err
	}
	return nil
}

// FindByUUID 根据UUID查询，不存在时返回 gorm.ErrRecordNotFound
func (d *VideoRecordDAO) FindByUUID(ctx context.Context, videoUUID string) (*po.VideoRecord, error) {
	var record po.VideoRecord
	if err := d.db.WithContext(ctx).Where("video_uuid = ?", videoUUID).First(&record).Error; err != nil {
		return nil, err
	}
	return &record, nil
}

// FindByUUIDs 批量查询
func (d *VideoRecordDAO) FindByUUIDs(ctx context.Context, uuids []string) ([]*po.VideoRecord, error) {
	var list []*po.VideoRecord
	if len(uuids) == 0 {
		return list, nil
	}
	err := d.db.WithContext(ctx).Where("video_uuid IN ?", uuids).Order("id ASC").Find(&list).Error
	return list, err
}

// UpdateIfStatus 仅当状态仍为 expected 时更新，返回受影响行数
func (d *VideoRecordDAO) UpdateIfStatus(ctx context.Context, videoUUID, expected string, columns map[string]interface{}) (int64, error) {
	res := d.db.WithContext(ctx).Model(&po.VideoRecord{}).
		Where("video_uuid = ? AND status = ?", videoUUID, expected).
		Updates(columns)
	return res.RowsAffected, res.Error
}

// Delete 删除记录
func (d *VideoRecordDAO) Delete(ctx context.Context, videoUUID string) (int64, error) {
	res := d.db.WithContext(ctx).Where("video_uuid = ?", videoUUID).Delete(&po.VideoRecord{})
	return res.RowsAffected, res.Error
}

// QueryFilter 列表查询条件
type QueryFilter struct {
	Statuses         []string
	RetryCountBelow  int
	CreatedBefore    *time.Time
	WithoutArtifacts bool
	Limit            int
}

// PluckUUIDs 按条件查询UUID，按创建顺序
func (d *VideoRecordDAO) PluckUUIDs(ctx context.Context, f QueryFilter) ([]string, error) {
	q := d.db.WithContext(ctx).Model(&po.VideoRecord{})
	if len(f.Statuses) > 0 {
		q = q.Where("status IN ?", f.Statuses)
	}
	if f.RetryCountBelow > 0 {
		q = q.Where("retry_count < ?", f.RetryCountBelow)
	}
	if f.CreatedBefore != nil {
		q = q.Where("created_at < ?", *f.CreatedBefore)
	}
	if f.WithoutArtifacts {
		q = q.Where("(video_path = '' OR video_path IS NULL)")
	}
	if f.Limit > 0 {
		q = q.Limit(f.Limit)
	}
	var ids []string
	err := q.Order("id ASC").Pluck("video_uuid", &ids).Error
	return ids, err
}

// FindStuckProcessing processing 且开始时间早于 before
func (d *VideoRecordDAO) FindStuckProcessing(ctx context.Context, before time.Time, limit int) ([]*po.VideoRecord, error) {
	var list []*po.VideoRecord
	err := d.db.WithContext(ctx).
		Where("status = ? AND processing_started_at IS NOT NULL AND processing_started_at < ?", "processing", before).
		Order("processing_started_at ASC").
		Limit(limit).
		Find(&list).Error
	return list, err
}

// FindDueForRetry failed、非永久错误、未超过重试上限且到期
func (d *VideoRecordDAO) FindDueForRetry(ctx context.Context, now time.Time, maxRetries, limit int) ([]*po.VideoRecord, error) {
	var list []*po.VideoRecord
	err := d.db.WithContext(ctx).
		Where("status = ? AND permanent = ? AND retry_count < ?", "failed", false, maxRetries).
		Where("next_retry_at IS NOT NULL AND next_retry_at <= ?", now).
		Order("next_retry_at ASC").
		Limit(limit).
		Find(&list).Error
	return list, err
}
