package http

import (
	"sync"

	"github.com/gin-gonic/gin"

	"sermon-publisher/ddd/application/app"
	"sermon-publisher/ddd/application/cqe"
	"sermon-publisher/pkg/assert"
	"sermon-publisher/pkg/errno"
	"sermon-publisher/pkg/manager"
	"sermon-publisher/pkg/restapi"
)

var (
	videoControllerOnce      sync.Once
	singletonVideoController VideoController
)

type VideoControllerPlugin struct {
}

func (p *VideoControllerPlugin) Name() string {
	return "videoControllerPlugin"
}

func (p *VideoControllerPlugin) MustCreateController() manager.Controller {
	assert.NotCircular()
	videoControllerOnce.Do(func() {
		singletonVideoController = NewVideoController(app.DefaultVideoApp())
	})
	assert.NotNil(singletonVideoController)
	return singletonVideoController
}

type VideoController interface {
	manager.Controller
}

type videoControllerImpl struct {
	videoApp app.VideoApp
}

func NewVideoController(videoApp app.VideoApp) VideoController {
	return &videoControllerImpl{videoApp: videoApp}
}

func (c *videoControllerImpl) RegisterRoutes(router gin.IRouter) {
	router.GET("/videos/:video_id", c.GetVideo)
}

// GetVideo GET /videos/:video_id
func (c *videoControllerImpl) GetVideo(ctx *gin.Context) {
	var req cqe.QueryVideoReq
	if err := ctx.ShouldBindUri(&req); err != nil {
		restapi.Failed(ctx, errno.NewBizError(errno.ErrInvalidParam, err))
		return
	}
	resp, err := c.videoApp.GetVideo(ctx.Request.Context(), req.VideoID)
	if err != nil {
		restapi.Failed(ctx, err)
		return
	}
	restapi.Success(ctx, resp)
}
