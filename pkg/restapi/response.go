package restapi

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"sermon-publisher/pkg/errno"
	"sermon-publisher/pkg/logger"
)

// Response 统一响应结构
type Response struct {
	Code      int         `json:"code"`
	Message   string      `json:"message"`
	Data      interface{} `json:"data,omitempty"`
	RequestID string      `json:"request_id,omitempty"`
}

// Success 成功响应
func Success(ctx *gin.Context, data interface{}) {
	ctx.JSON(http.StatusOK, Response{
		Code:      errno.OK.Code,
		Message:   errno.OK.Message,
		Data:      data,
		RequestID: ctx.GetString("request_id"),
	})
}

// Created 201 响应
func Created(ctx *gin.Context, data interface{}) {
	ctx.JSON(http.StatusCreated, Response{
		Code:      errno.OK.Code,
		Message:   errno.OK.Message,
		Data:      data,
		RequestID: ctx.GetString("request_id"),
	})
}

// Failed 失败响应，按错误类型决定 HTTP 状态码
func Failed(ctx *gin.Context, err error) {
	status, code, msg := http.StatusInternalServerError, errno.ErrInternalServer.Code, errno.ErrInternalServer.Message

	var biz *errno.BizError
	var no *errno.Errno
	switch {
	case errors.As(err, &biz):
		status, code, msg = biz.Errno.HTTPStatus(), biz.Errno.Code, biz.Error()
	case errors.As(err, &no):
		status, code, msg = no.HTTPStatus(), no.Code, no.Message
	default:
		logger.Error("Unhandled request error", map[string]interface{}{
			"path":       ctx.FullPath(),
			"error":      err.Error(),
			"request_id": ctx.GetString("request_id"),
		})
	}

	ctx.AbortWithStatusJSON(status, Response{
		Code:      code,
		Message:   msg,
		RequestID: ctx.GetString("request_id"),
	})
}
