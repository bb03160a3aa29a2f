package app

import (
	"context"
	"sync"

	"sermon-publisher/ddd/application/dto"
	"sermon-publisher/ddd/domain/entity"
	"sermon-publisher/ddd/domain/repo"
	"sermon-publisher/pkg/assert"
	"sermon-publisher/pkg/errno"
)

var (
	singleVideoApp VideoApp
	onceVideoApp   sync.Once
)

type VideoApp interface {
	// GetVideo 查询视频记录及发布地址
	GetVideo(ctx context.Context, videoID string) (*dto.VideoDto, error)
}

type videoAppImpl struct {
	videos repo.VideoRecordRepository
}

func DefaultVideoApp() VideoApp {
	assert.NotCircular()
	onceVideoApp.Do(func() {
		singleVideoApp = NewVideoAppWith(defaultVideoRepo())
	})
	assert.NotNil(singleVideoApp)
	return singleVideoApp
}

func NewVideoAppWith(videos repo.VideoRecordRepository) VideoApp {
	return &videoAppImpl{videos: videos}
}

func (a *videoAppImpl) GetVideo(ctx context.Context, videoID string) (*dto.VideoDto, error) {
	if videoID == "" {
		return nil, errno.ErrIDsRequired
	}
	v, err := a.videos.Get(ctx, videoID)
	if err != nil {
		if entity.IsKind(err, entity.KindNotFound) {
			return nil, errno.NewBizError(errno.ErrVideoNotFound, err)
		}
		return nil, errno.NewBizError(errno.ErrDatabase, err)
	}
	return dto.NewVideoDto(v), nil
}
