package http

import (
	"sync"

	"github.com/gin-gonic/gin"

	"sermon-publisher/ddd/application/app"
	"sermon-publisher/ddd/application/cqe"
	"sermon-publisher/ddd/application/dto"
	"sermon-publisher/pkg/assert"
	"sermon-publisher/pkg/config"
	"sermon-publisher/pkg/errno"
	"sermon-publisher/pkg/manager"
	"sermon-publisher/pkg/middleware"
	"sermon-publisher/pkg/restapi"
)

var (
	bulkControllerOnce      sync.Once
	singletonBulkController BulkController
)

type BulkControllerPlugin struct {
}

func (p *BulkControllerPlugin) Name() string {
	return "bulkControllerPlugin"
}

func (p *BulkControllerPlugin) MustCreateController() manager.Controller {
	assert.NotCircular()
	bulkControllerOnce.Do(func() {
		var jwtCfg config.JWTConfig
		if cfg := config.GetGlobalConfig(); cfg != nil {
			jwtCfg = cfg.JWT
		}
		singletonBulkController = NewBulkController(app.DefaultBulkApp(), jwtCfg)
	})
	assert.NotNil(singletonBulkController)
	return singletonBulkController
}

type BulkController interface {
	manager.Controller
}

type bulkControllerImpl struct {
	bulkApp app.BulkApp
	jwt     config.JWTConfig
}

func NewBulkController(bulkApp app.BulkApp, jwt config.JWTConfig) BulkController {
	return &bulkControllerImpl{bulkApp: bulkApp, jwt: jwt}
}

func (c *bulkControllerImpl) RegisterRoutes(router gin.IRouter) {
	admin := router.Group("/admin/videos/bulk", middleware.AdminAuthMiddleware(c.jwt.Secret, c.jwt.Issuer))
	admin.POST("/approve", c.Approve)
	admin.POST("/reject", c.Reject)
	admin.POST("/retry-failed", c.RetryFailed)
	admin.POST("/cleanup", c.Cleanup)
	admin.POST("/update-metadata", c.UpdateMetadata)
}

// Approve POST /admin/videos/bulk/approve
func (c *bulkControllerImpl) Approve(ctx *gin.Context) {
	var req cqe.BulkApproveReq
	if !bindJSON(ctx, &req) {
		return
	}
	if req.ApprovedBy == "" {
		req.ApprovedBy = ctx.GetString("operator")
	}
	respond(ctx)(c.bulkApp.BulkApprove(ctx.Request.Context(), &req))
}

func (c *bulkControllerImpl) Reject(ctx *gin.Context) {
	var req cqe.BulkRejectReq
	if !bindJSON(ctx, &req) {
		return
	}
	respond(ctx)(c.bulkApp.BulkReject(ctx.Request.Context(), &req))
}

// RetryFailed 请求体可以为空
func (c *bulkControllerImpl) RetryFailed(ctx *gin.Context) {
	var req cqe.BulkRetryReq
	if ctx.Request.ContentLength != 0 && !bindJSON(ctx, &req) {
		return
	}
	respond(ctx)(c.bulkApp.BulkRetryFailed(ctx.Request.Context(), &req))
}

// Cleanup 请求体可以为空，使用默认清理条件
func (c *bulkControllerImpl) Cleanup(ctx *gin.Context) {
	var req cqe.BulkCleanupReq
	if ctx.Request.ContentLength != 0 && !bindJSON(ctx, &req) {
		return
	}
	respond(ctx)(c.bulkApp.BulkCleanup(ctx.Request.Context(), &req))
}

func (c *bulkControllerImpl) UpdateMetadata(ctx *gin.Context) {
	var req cqe.BulkUpdateMetadataReq
	if !bindJSON(ctx, &req) {
		return
	}
	respond(ctx)(c.bulkApp.BulkUpdateMetadata(ctx.Request.Context(), &req))
}

func bindJSON(ctx *gin.Context, req interface{}) bool {
	if err := ctx.ShouldBindJSON(req); err != nil {
		restapi.Failed(ctx, errno.NewBizError(errno.ErrInvalidParam, err))
		return false
	}
	return true
}

func respond(ctx *gin.Context) func(*dto.BulkResultDto, error) {
	return func(resp *dto.BulkResultDto, err error) {
		if err != nil {
			restapi.Failed(ctx, err)
			return
		}
		restapi.Success(ctx, resp)
	}
}
