package errors

import (
	"fmt"
	"runtime"
	"strings"
	"time"
)

// ErrorCode 错误码类型
type ErrorCode int

// 错误码定义（按模块分组）
const (
	// 通用错误 (1000-1999)
	ErrUnknown          ErrorCode = 1000
	ErrInvalidParam     ErrorCode = 1001
	ErrNotFound         ErrorCode = 1002
	ErrAlreadyExists    ErrorCode = 1003
	ErrPermissionDenied ErrorCode = 1004
	ErrTimeout          ErrorCode = 1005
	ErrNotImplemented   ErrorCode = 1006

	// 输入错误 (2000-2999)：请求本身不合法，不产生任何状态变化
	ErrBadURLScheme  ErrorCode = 2000
	ErrNotAFile      ErrorCode = 2001
	ErrDuplicateGame ErrorCode = 2002
	ErrUnknownFormat ErrorCode = 2003
	ErrNoAttachment  ErrorCode = 2004
	ErrDownloadHTTP  ErrorCode = 2005

	// 协议错误 (3000-3999)：GlkOte状态机拒绝当前回合
	ErrUnknownWindow        ErrorCode = 3000
	ErrConflictingInputMode ErrorCode = 3001
	ErrInvalidHyperlink     ErrorCode = 3002
	ErrExpectedHyperlink    ErrorCode = 3003
	ErrNoInputExpected      ErrorCode = 3004
	ErrInputConstruction    ErrorCode = 3005
	ErrStateUpdateRejected  ErrorCode = 3006
	ErrProtocolMisuse       ErrorCode = 3007

	// 解释器错误 (4000-4999)：子进程失败，回合中止但会话可重试
	ErrMissingGameFile    ErrorCode = 4000
	ErrInterpreterTimeout ErrorCode = 4001
	ErrInterpreterFailure ErrorCode = 4002
	ErrMalformedOutput    ErrorCode = 4003
	ErrNoUpdate           ErrorCode = 4004

	// 多路复用错误 (5000-5999)：频道/会话路由失败
	ErrChannelNotEnabled     ErrorCode = 5000
	ErrUnknownSession        ErrorCode = 5001
	ErrSessionBusy           ErrorCode = 5002
	ErrSessionBoundElsewhere ErrorCode = 5003
	ErrGameInUse             ErrorCode = 5004
	ErrSessionGuildMismatch  ErrorCode = 5005

	// 存储错误 (6000-6999)
	ErrDatabaseConnect ErrorCode = 6000
	ErrDatabaseQuery   ErrorCode = 6001
	ErrStateFile       ErrorCode = 6002
	ErrTranscript      ErrorCode = 6003
	ErrDirectory       ErrorCode = 6004

	// 配置错误 (7000-7999)
	ErrConfigLoad  ErrorCode = 7000
	ErrConfigParse ErrorCode = 7001

	// 认证错误 (8000-8999)
	ErrAuthentication ErrorCode = 8000
	ErrTokenInvalid   ErrorCode = 8001
	ErrTokenExpired   ErrorCode = 8002
)

// 错误码消息映射（消息会原样转发到聊天频道，保持英文）
var errorMessages = map[ErrorCode]string{
	ErrUnknown:          "unknown error",
	ErrInvalidParam:     "invalid parameter",
	ErrNotFound:         "not found",
	ErrAlreadyExists:    "already exists",
	ErrPermissionDenied: "permission denied",
	ErrTimeout:          "operation timed out",
	ErrNotImplemented:   "not implemented",

	ErrBadURLScheme:  "URL must start with http:// or https://",
	ErrNotAFile:      "URL does not name a file",
	ErrDuplicateGame: "game already installed",
	ErrUnknownFormat: "unrecognized game file format",
	ErrNoAttachment:  "no recently uploaded file found",
	ErrDownloadHTTP:  "download HTTP error",

	ErrUnknownWindow:        "no such window",
	ErrConflictingInputMode: "conflicting input mode",
	ErrInvalidHyperlink:     "no such hyperlink",
	ErrExpectedHyperlink:    "expected a hyperlink reference (#N)",
	ErrNoInputExpected:      "game is not expecting input",
	ErrInputConstruction:    "unable to construct input",
	ErrStateUpdateRejected:  "update rejected",
	ErrProtocolMisuse:       "turn invoked out of order",

	ErrMissingGameFile:    "game file is missing",
	ErrInterpreterTimeout: "interpreter timed out",
	ErrInterpreterFailure: "interpreter failed",
	ErrMalformedOutput:    "invalid interpreter output",
	ErrNoUpdate:           "interpreter produced no update",

	ErrChannelNotEnabled:     "channel is not enabled for play",
	ErrUnknownSession:        "no such session",
	ErrSessionBusy:           "a turn is already in progress",
	ErrSessionBoundElsewhere: "session is in use by another channel",
	ErrGameInUse:             "game still has sessions",
	ErrSessionGuildMismatch:  "session belongs to a different server",

	ErrDatabaseConnect: "database connection failed",
	ErrDatabaseQuery:   "database query failed",
	ErrStateFile:       "state file error",
	ErrTranscript:      "transcript write failed",
	ErrDirectory:       "directory error",

	ErrConfigLoad:  "config load failed",
	ErrConfigParse: "config parse failed",

	ErrAuthentication: "authentication failed",
	ErrTokenInvalid:   "invalid token",
	ErrTokenExpired:   "token has expired",
}

// AppError 应用错误结构
type AppError struct {
	Code    ErrorCode    `json:"code"`
	Message string       `json:"message"`
	Details string       `json:"details"`
	Cause   error        `json:"-"`
	Stack   []StackFrame `json:"stack,omitempty"`
}

// StackFrame 调用栈帧
type StackFrame struct {
	Function string `json:"function"`
	File     string `json:"file"`
	Line     int    `json:"line"`
}

// Error 实现error接口
func (e *AppError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %s", e.Message, e.Details)
	}
	return e.Message
}

// Unwrap 返回原始错误
func (e *AppError) Unwrap() error {
	return e.Cause
}

// WithDetails 添加详细信息
func (e *AppError) WithDetails(details string) *AppError {
	e.Details = details
	return e
}

// WithCause 添加原因错误
func (e *AppError) WithCause(cause error) *AppError {
	e.Cause = cause
	if cause != nil && e.Details == "" {
		e.Details = cause.Error()
	}
	return e
}

// New 创建新的应用错误
func New(code ErrorCode, details ...string) *AppError {
	message, ok := errorMessages[code]
	if !ok {
		message = errorMessages[ErrUnknown]
	}

	err := &AppError{
		Code:    code,
		Message: message,
	}

	if len(details) > 0 {
		err.Details = strings.Join(details, "; ")
	}

	err.captureStack(2)

	return err
}

// Newf 创建格式化的应用错误
func Newf(code ErrorCode, format string, args ...interface{}) *AppError {
	details := fmt.Sprintf(format, args...)
	return New(code, details)
}

// Wrap 包装错误
func Wrap(err error, code ErrorCode, details ...string) *AppError {
	if err == nil {
		return nil
	}

	// 如果已经是AppError，保留原始错误码
	if appErr, ok := err.(*AppError); ok {
		if len(details) > 0 {
			appErr.Details = strings.Join(details, "; ") + "; " + appErr.Details
		}
		return appErr
	}

	appErr := New(code, details...)
	appErr.Cause = err
	if appErr.Details == "" {
		appErr.Details = err.Error()
	}

	return appErr
}

// Wrapf 包装格式化错误
func Wrapf(err error, code ErrorCode, format string, args ...interface{}) *AppError {
	details := fmt.Sprintf(format, args...)
	return Wrap(err, code, details)
}

// Is 判断错误是否为指定错误码
func Is(err error, code ErrorCode) bool {
	if err == nil {
		return false
	}

	appErr, ok := err.(*AppError)
	return ok && appErr.Code == code
}

// GetCode 获取错误码
func GetCode(err error) ErrorCode {
	if err == nil {
		return 0
	}

	if appErr, ok := err.(*AppError); ok {
		return appErr.Code
	}

	return ErrUnknown
}

// captureStack 捕获调用栈
func (e *AppError) captureStack(skip int) {
	pcs := make([]uintptr, 32)
	n := runtime.Callers(skip+1, pcs)

	if n > 0 {
		frames := runtime.CallersFrames(pcs[:n])
		for {
			frame, more := frames.Next()

			// 跳过runtime和本包的调用
			if strings.Contains(frame.Function, "runtime.") ||
				strings.Contains(frame.Function, "github.com/wfunc/if-gateway/internal/errors") {
				if !more {
					break
				}
				continue
			}

			e.Stack = append(e.Stack, StackFrame{
				Function: frame.Function,
				File:     frame.File,
				Line:     frame.Line,
			})

			if !more {
				break
			}

			// 只保留前10个栈帧
			if len(e.Stack) >= 10 {
				break
			}
		}
	}
}

// GetStack 获取格式化的调用栈
func (e *AppError) GetStack() string {
	if len(e.Stack) == 0 {
		return ""
	}

	var builder strings.Builder
	for i, frame := range e.Stack {
		builder.WriteString(fmt.Sprintf("%d. %s\n   %s:%d\n",
			i+1, frame.Function, frame.File, frame.Line))
	}

	return builder.String()
}

// HTTPStatus 返回对应的HTTP状态码
func (e *AppError) HTTPStatus() int {
	switch {
	case e.Code >= 2000 && e.Code <= 2999:
		return 400 // Bad Request
	case e.Code == ErrNotFound || e.Code == ErrUnknownSession:
		return 404 // Not Found
	case e.Code == ErrPermissionDenied:
		return 403 // Forbidden
	case e.Code == ErrTimeout || e.Code == ErrInterpreterTimeout:
		return 408 // Request Timeout
	case e.Code >= 8000 && e.Code <= 8999:
		return 401 // Unauthorized
	case e.Code == ErrSessionBusy || e.Code == ErrGameInUse || e.Code == ErrSessionBoundElsewhere:
		return 409 // Conflict
	case e.Code >= 6000 && e.Code <= 6999:
		return 503 // Service Unavailable
	default:
		return 500 // Internal Server Error
	}
}

// IsTurnRetryable 判断失败后重发同一条命令是否安全
// 子进程错误不落盘任何状态，重试无副作用。
func IsTurnRetryable(err error) bool {
	if err == nil {
		return false
	}

	code := GetCode(err)
	return code >= 4000 && code <= 4999
}

// ErrorResponse API错误响应结构
type ErrorResponse struct {
	Success   bool      `json:"success"`
	Error     *AppError `json:"error,omitempty"`
	RequestID string    `json:"request_id,omitempty"`
	Timestamp int64     `json:"timestamp"`
}

// NewErrorResponse 创建错误响应
func NewErrorResponse(err *AppError, requestID string) *ErrorResponse {
	return &ErrorResponse{
		Success:   false,
		Error:     err,
		RequestID: requestID,
		Timestamp: time.Now().Unix(),
	}
}
