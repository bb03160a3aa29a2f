package persistence

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"sermon-publisher/ddd/domain/entity"
	"sermon-publisher/ddd/domain/repo"
	"sermon-publisher/ddd/domain/vo"
	"sermon-publisher/ddd/infrastructure/database/convertor"
	"sermon-publisher/ddd/infrastructure/database/dao"
	"sermon-publisher/ddd/infrastructure/database/po"
)

// videoRecordRepositoryImpl 视频记录仓储实现
type videoRecordRepositoryImpl struct {
	dao       *dao.VideoRecordDAO
	convertor *convertor.VideoRecordConvertor
}

// NewVideoRecordRepository 创建视频记录仓储实现
func NewVideoRecordRepository(db *gorm.DB) repo.VideoRecordRepository {
	return &videoRecordRepositoryImpl{
		dao:       dao.NewVideoRecordDAO(db),
		convertor: convertor.NewVideoRecordConvertor(),
	}
}

// AutoMigrate 建表
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&po.VideoRecord{})
}

func (r *videoRecordRepositoryImpl) Create(ctx context.Context, v *entity.VideoRecord) error {
	p, err := r.convertor.ToPO(v)
	if err != nil {
		return fmt.Errorf("failed to convert entity to po: %w", err)
	}
	if err := r.dao.Create(ctx, p); err != nil {
		return translate("create video", err)
	}
	return nil
}

func (r *videoRecordRepositoryImpl) Get(ctx context.Context, id string) (*entity.VideoRecord, error) {
	p, err := r.dao.FindByUUID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, entity.Errorf(entity.KindNotFound, "get video", "video %s not found", id)
		}
		return nil, err
	}
	return r.convertor.ToEntity(p)
}

// Save 以状态为条件更新；0 行时区分记录不存在和状态已被他人修改
func (r *videoRecordRepositoryImpl) Save(ctx context.Context, v *entity.VideoRecord, expected vo.VideoStatus) error {
	p, err := r.convertor.ToPO(v)
	if err != nil {
		return fmt.Errorf("failed to convert entity to po: %w", err)
	}
	affected, err := r.dao.UpdateIfStatus(ctx, v.ID(), expected.String(), r.convertor.ToUpdateColumns(p))
	if err != nil {
		return translate("save video", err)
	}
	if affected > 0 {
		return nil
	}
	current, err := r.dao.FindByUUID(ctx, v.ID())
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entity.Errorf(entity.KindNotFound, "save video", "video %s not found", v.ID())
		}
		return err
	}
	return entity.Errorf(entity.KindConcurrency, "save video",
		"video %s status is %s, expected %s", v.ID(), current.Status, expected)
}

func (r *videoRecordRepositoryImpl) Delete(ctx context.Context, id string) error {
	affected, err := r.dao.Delete(ctx, id)
	if err != nil {
		return err
	}
	if affected == 0 {
		return entity.Errorf(entity.KindNotFound, "delete video", "video %s not found", id)
	}
	return nil
}

func (r *videoRecordRepositoryImpl) FindByIDs(ctx context.Context, ids []string) ([]*entity.VideoRecord, error) {
	list, err := r.dao.FindByUUIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	return r.convertor.ToEntityList(list)
}

func (r *videoRecordRepositoryImpl) FindIDs(ctx context.Context, q repo.VideoQuery) ([]string, error) {
	statuses := make([]string, 0, len(q.Statuses))
	for _, s := range q.Statuses {
		statuses = append(statuses, s.String())
	}
	return r.dao.PluckUUIDs(ctx, dao.QueryFilter{
		Statuses:         statuses,
		RetryCountBelow:  q.RetryCountBelow,
		CreatedBefore:    q.CreatedBefore,
		WithoutArtifacts: q.WithoutArtifacts,
		Limit:            q.Limit,
	})
}

func (r *videoRecordRepositoryImpl) FindStuckProcessing(ctx context.Context, startedBefore time.Time, limit int) ([]*entity.VideoRecord, error) {
	list, err := r.dao.FindStuckProcessing(ctx, startedBefore, limit)
	if err != nil {
		return nil, err
	}
	return r.convertor.ToEntityList(list)
}

func (r *videoRecordRepositoryImpl) FindDueForRetry(ctx context.Context, now time.Time, limit int) ([]*entity.VideoRecord, error) {
	list, err := r.dao.FindDueForRetry(ctx, now, vo.MaxRetryCount, limit)
	if err != nil {
		return nil, err
	}
	return r.convertor.ToEntityList(list)
}

// Transaction 外层开启事务，嵌套调用由 gorm 转为 SAVEPOINT
func (r *videoRecordRepositoryImpl) Transaction(ctx context.Context, fn func(tx repo.VideoRecordRepository) error) error {
	return r.dao.DB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&videoRecordRepositoryImpl{
			dao:       dao.NewVideoRecordDAO(tx),
			convertor: r.convertor,
		})
	})
}

// translate 唯一键冲突（重复的 external_id）按并发冲突处理
func translate(op string, err error) error {
	if errors.Is(err, gorm.ErrDuplicatedKey) || isUniqueViolation(err) {
		return entity.NewConcurrencyError(op, err)
	}
	return err
}

// isUniqueViolation lib/pq 的错误不经过 gorm 的翻译
func isUniqueViolation(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "duplicate key") || strings.Contains(msg, "unique constraint")
}
