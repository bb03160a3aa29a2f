package errno

import "fmt"

// code=0 请求成功
// code=4xx 客户端请求错误
// code=5xx 服务器端错误
// code=2xxxx 业务处理错误码

type Errno struct {
	Code    int
	Message string
}

// Error 实现error接口
func (e *Errno) Error() string {
	return e.Message
}

// HTTPStatus 业务码统一映射为 400，其余按 HTTP 语义返回
func (e *Errno) HTTPStatus() int {
	if e.Code >= 400 && e.Code < 600 {
		return e.Code
	}
	if e.Code == 200 {
		return 200
	}
	return 400
}

// BizError 携带底层原因的业务错误
type BizError struct {
	Errno *Errno
	Cause error
}

func NewBizError(no *Errno, cause error) *BizError {
	return &BizError{Errno: no, Cause: cause}
}

func (e *BizError) Error() string {
	if e.Cause == nil {
		return e.Errno.Message
	}
	return fmt.Sprintf("%s: %v", e.Errno.Message, e.Cause)
}

func (e *BizError) Unwrap() error {
	return e.Cause
}

var (
	OK = &Errno{Code: 200, Message: "Success"}

	ErrInvalidParam   = &Errno{Code: 400, Message: "Invalid parameter"}
	ErrUnauthorized   = &Errno{Code: 401, Message: "Unauthorized"}
	ErrNotFound       = &Errno{Code: 404, Message: "Not found"}
	ErrConflict       = &Errno{Code: 409, Message: "Conflict"}
	ErrInternalServer = &Errno{Code: 500, Message: "Internal server error"}
	ErrDatabase       = &Errno{Code: 501, Message: "Database error"}
	ErrUnavailable    = &Errno{Code: 503, Message: "Service unavailable"}

	// 批量提交
	ErrNoValidSources  = &Errno{Code: 20001, Message: "No valid source references"}
	ErrBatchNotFound   = &Errno{Code: 404, Message: "Batch not found"}
	ErrSourcesRequired = &Errno{Code: 20002, Message: "At least one source is required"}

	// 视频记录
	ErrVideoNotFound       = &Errno{Code: 404, Message: "Video not found"}
	ErrInvalidTransition   = &Errno{Code: 20010, Message: "Invalid video status transition"}
	ErrIDsRequired         = &Errno{Code: 20011, Message: "Video ids are required"}
	ErrMetadataRequired    = &Errno{Code: 20012, Message: "No allowed metadata fields supplied"}
	ErrQueueFull           = &Errno{Code: 20013, Message: "Job queue is full"}
	ErrBulkOperationLocked = &Errno{Code: 20014, Message: "Another bulk operation is running"}
)
