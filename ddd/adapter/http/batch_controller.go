package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"sermon-publisher/ddd/application/app"
	"sermon-publisher/ddd/application/cqe"
	"sermon-publisher/ddd/domain/vo"
	"sermon-publisher/pkg/assert"
	"sermon-publisher/pkg/errno"
	"sermon-publisher/pkg/logger"
	"sermon-publisher/pkg/manager"
	"sermon-publisher/pkg/restapi"
)

var (
	batchControllerOnce      sync.Once
	singletonBatchController BatchController
)

type BatchControllerPlugin struct {
}

func (p *BatchControllerPlugin) Name() string {
	return "batchControllerPlugin"
}

func (p *BatchControllerPlugin) MustCreateController() manager.Controller {
	assert.NotCircular()
	batchControllerOnce.Do(func() {
		singletonBatchController = NewBatchController(app.DefaultBatchApp(), 2*time.Second)
	})
	assert.NotNil(singletonBatchController)
	return singletonBatchController
}

type BatchController interface {
	manager.Controller
}

type batchControllerImpl struct {
	batchApp     app.BatchApp
	pollInterval time.Duration
	upgrader     websocket.Upgrader
}

// NewBatchController pollInterval 为进度推送间隔
func NewBatchController(batchApp app.BatchApp, pollInterval time.Duration) BatchController {
	return &batchControllerImpl{
		batchApp:     batchApp,
		pollInterval: pollInterval,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

func (c *batchControllerImpl) RegisterRoutes(router gin.IRouter) {
	batches := router.Group("/batches")
	batches.POST("", c.CreateBatch)
	batches.GET("/:batch_id", c.GetBatch)
	batches.GET("/:batch_id/stream", c.StreamBatch)
}

// CreateBatch POST /batches
func (c *batchControllerImpl) CreateBatch(ctx *gin.Context) {
	var req cqe.CreateBatchReq
	if err := ctx.ShouldBindJSON(&req); err != nil {
		restapi.Failed(ctx, errno.NewBizError(errno.ErrInvalidParam, err))
		return
	}
	resp, err := c.batchApp.CreateBatch(ctx.Request.Context(), &req)
	if err != nil {
		restapi.Failed(ctx, err)
		return
	}
	restapi.Created(ctx, resp)
}

// GetBatch GET /batches/:batch_id，未知或已过期返回 404
func (c *batchControllerImpl) GetBatch(ctx *gin.Context) {
	var req cqe.QueryBatchReq
	if err := ctx.ShouldBindUri(&req); err != nil {
		restapi.Failed(ctx, errno.NewBizError(errno.ErrInvalidParam, err))
		return
	}
	resp, err := c.batchApp.GetStatus(ctx.Request.Context(), req.BatchID)
	if err != nil {
		restapi.Failed(ctx, err)
		return
	}
	restapi.Success(ctx, resp)
}

// StreamBatch 通过 websocket 推送批次进度，批次完成或过期后关闭
func (c *batchControllerImpl) StreamBatch(ctx *gin.Context) {
	batchID := ctx.Param("batch_id")
	reqCtx := ctx.Request.Context()
	first, err := c.batchApp.GetStatus(reqCtx, batchID)
	if err != nil {
		restapi.Failed(ctx, err)
		return
	}

	conn, err := c.upgrader.Upgrade(ctx.Writer, ctx.Request, nil)
	if err != nil {
		logger.FromContext(reqCtx).WithError(err).Warn("websocket upgrade failed")
		return
	}
	defer conn.Close()

	// 客户端关闭连接时结束推送
	streamCtx, cancel := context.WithCancel(context.WithoutCancel(reqCtx))
	defer cancel()
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	status := first
	for {
		_ = conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
		if err := conn.WriteJSON(status); err != nil {
			return
		}
		if status.Status == vo.BatchStatusCompleted.String() {
			c.closeStream(conn, "batch completed")
			return
		}
		select {
		case <-streamCtx.Done():
			return
		case <-ticker.C:
		}
		next, err := c.batchApp.GetStatus(streamCtx, batchID)
		if err != nil {
			c.closeStream(conn, "batch expired")
			return
		}
		status = next
	}
}

func (c *batchControllerImpl) closeStream(conn *websocket.Conn, reason string) {
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, reason)
	_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
}
