package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"runtime"
	"strings"
	"time"
)

// ErrorCode identifies a class of failure.
type ErrorCode int

// Error codes, grouped by module.
const (
	// general (1000-1999)
	ErrUnknown          ErrorCode = 1000
	ErrInvalidParam     ErrorCode = 1001
	ErrNotFound         ErrorCode = 1002
	ErrAlreadyExists    ErrorCode = 1003
	ErrPermissionDenied ErrorCode = 1004
	ErrTimeout          ErrorCode = 1005
	ErrCanceled         ErrorCode = 1006
	ErrNotImplemented   ErrorCode = 1007

	// game (2000-2999)
	ErrGameLocked    ErrorCode = 2000
	ErrRuleRejection ErrorCode = 2001

	// remote peers (4000-4999)
	ErrRemoteUnavailable ErrorCode = 4000
	ErrRemoteResponse    ErrorCode = 4001
	ErrMessageFormat     ErrorCode = 4002

	// storage (5000-5999)
	ErrStorageUnavailable ErrorCode = 5000
	ErrDataIntegrity      ErrorCode = 5001

	// configuration (6000-6999)
	ErrConfigLoad     ErrorCode = 6000
	ErrConfigParse    ErrorCode = 6001
	ErrConfigValidate ErrorCode = 6002
	ErrConfigMissing  ErrorCode = 6003

	// security (7000-7999)
	ErrAuthentication ErrorCode = 7000
)

// Reasons carried in Details for client-facing rejections.
const (
	ReasonMissingGameID    = "MissingGameId"
	ReasonMissingType      = "MissingType"
	ReasonMissingPlayers   = "MissingPlayers"
	ReasonDuplicatePlayers = "DuplicatePlayers"
	ReasonMissingMoveData  = "MissingMoveData"
	ReasonWaitForYourTurn  = "WaitForYourTurn"
	ReasonKickOutTooEarly  = "KickOutTooEarly"
	ReasonInvalidContent   = "InvalidContent"
	ReasonGameOver         = "GameOver"
	ReasonNotAParticipant  = "NotAParticipant"
)

var errorMessages = map[ErrorCode]string{
	ErrUnknown:          "unknown error",
	ErrInvalidParam:     "invalid request",
	ErrNotFound:         "resource not found",
	ErrAlreadyExists:    "resource already exists",
	ErrPermissionDenied: "forbidden",
	ErrTimeout:          "operation timed out",
	ErrCanceled:         "operation canceled",
	ErrNotImplemented:   "not implemented",

	ErrGameLocked:    "game is locked",
	ErrRuleRejection: "move rejected by rules",

	ErrRemoteUnavailable: "remote service unavailable",
	ErrRemoteResponse:    "unexpected remote response",
	ErrMessageFormat:     "malformed message",

	ErrStorageUnavailable: "storage unavailable",
	ErrDataIntegrity:      "stored data is corrupt",

	ErrConfigLoad:     "failed to load config",
	ErrConfigParse:    "failed to parse config",
	ErrConfigValidate: "invalid config",
	ErrConfigMissing:  "missing config value",

	ErrAuthentication: "not authorized",
}

// AppError is the error type returned across package boundaries.
type AppError struct {
	Code    ErrorCode    `json:"code"`
	Message string       `json:"message"`
	Details string       `json:"details"`
	Cause   error        `json:"-"`
	Stack   []StackFrame `json:"stack,omitempty"`

	// Rejection fields are only set for ErrRuleRejection.
	Status      int    `json:"-"`
	Body        []byte `json:"-"`
	ContentType string `json:"-"`
}

// StackFrame is one captured caller frame.
type StackFrame struct {
	Function string `json:"function"`
	File     string `json:"file"`
	Line     int    `json:"line"`
}

func (e *AppError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("[%d] %s: %s", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("[%d] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// WithDetails sets the details text.
func (e *AppError) WithDetails(details string) *AppError {
	e.Details = details
	return e
}

// WithContentType sets the media type a rejection body is rendered with.
func (e *AppError) WithContentType(contentType string) *AppError {
	e.ContentType = contentType
	return e
}

// WithCause attaches the underlying error.
func (e *AppError) WithCause(cause error) *AppError {
	e.Cause = cause
	if cause != nil && e.Details == "" {
		e.Details = cause.Error()
	}
	return e
}

// New creates an AppError for code, joining details with "; ".
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

// Newf is New with formatted details.
func Newf(code ErrorCode, format string, args ...interface{}) *AppError {
	return New(code, fmt.Sprintf(format, args...))
}

// Wrap wraps err with code. An AppError anywhere in the chain keeps its own code.
func Wrap(err error, code ErrorCode, details ...string) *AppError {
	if err == nil {
		return nil
	}

	var appErr *AppError
	if stderrors.As(err, &appErr) {
		if len(details) > 0 {
			appErr.Details = strings.Join(details, "; ") + "; " + appErr.Details
		}
		return appErr
	}

	appErr = New(code, details...)
	appErr.Cause = err
	if appErr.Details == "" {
		appErr.Details = err.Error()
	}

	return appErr
}

// Wrapf is Wrap with formatted details.
func Wrapf(err error, code ErrorCode, format string, args ...interface{}) *AppError {
	return Wrap(err, code, fmt.Sprintf(format, args...))
}

// Rejection builds a rule rejection that carries the peer's status and body verbatim.
func Rejection(status int, body []byte) *AppError {
	err := New(ErrRuleRejection, string(body))
	err.Status = status
	err.Body = body
	return err
}

// Is reports whether err carries code.
func Is(err error, code ErrorCode) bool {
	var appErr *AppError
	return stderrors.As(err, &appErr) && appErr.Code == code
}

// As returns the AppError in err's chain, if any.
func As(err error) (*AppError, bool) {
	var appErr *AppError
	ok := stderrors.As(err, &appErr)
	return appErr, ok
}

// GetCode returns the code of err, ErrUnknown for foreign errors and 0 for nil.
func GetCode(err error) ErrorCode {
	if err == nil {
		return 0
	}
	if appErr, ok := As(err); ok {
		return appErr.Code
	}
	return ErrUnknown
}

// Reason returns the details of an AppError, or "" otherwise.
func Reason(err error) string {
	if appErr, ok := As(err); ok {
		return appErr.Details
	}
	return ""
}

func (e *AppError) captureStack(skip int) {
	pcs := make([]uintptr, 32)
	n := runtime.Callers(skip+1, pcs)

	if n > 0 {
		frames := runtime.CallersFrames(pcs[:n])
		for {
			frame, more := frames.Next()

			if strings.Contains(frame.Function, "runtime.") ||
				strings.Contains(frame.Function, "github.com/wfunc/turngame/internal/errors") {
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

			if !more || len(e.Stack) >= 10 {
				break
			}
		}
	}
}

// GetStack formats the captured stack.
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

// HTTPStatus maps the code to an HTTP status.
func (e *AppError) HTTPStatus() int {
	switch e.Code {
	case ErrInvalidParam, ErrAlreadyExists, ErrMessageFormat:
		return http.StatusBadRequest
	case ErrNotFound:
		return http.StatusNotFound
	case ErrPermissionDenied:
		return http.StatusForbidden
	case ErrTimeout:
		return http.StatusRequestTimeout
	case ErrNotImplemented:
		return http.StatusNotImplemented
	case ErrGameLocked:
		return http.StatusLocked
	case ErrRuleRejection:
		if e.Status >= 400 && e.Status < 500 {
			return e.Status
		}
		return http.StatusBadRequest
	case ErrAuthentication:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

// IsClientError reports whether err should be answered with a 4xx.
func IsClientError(err error) bool {
	appErr, ok := As(err)
	if !ok {
		return false
	}
	status := appErr.HTTPStatus()
	return status >= 400 && status < 500
}

// ErrorResponse is the JSON body of a failed API call.
type ErrorResponse struct {
	Success   bool      `json:"success"`
	Error     *AppError `json:"error,omitempty"`
	RequestID string    `json:"request_id,omitempty"`
	Timestamp int64     `json:"timestamp"`
}

// NewErrorResponse wraps err for the given request.
func NewErrorResponse(err *AppError, requestID string) *ErrorResponse {
	return &ErrorResponse{
		Success:   false,
		Error:     err,
		RequestID: requestID,
		Timestamp: time.Now().Unix(),
	}
}
