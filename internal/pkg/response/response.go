package response

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/xxxsen/common/webapi/proxyutil"

	"github.com/xxxsen/groundqa/internal/pkg/errcode"
	appErr "github.com/xxxsen/groundqa/internal/pkg/errors"
)

type codeErr struct {
	code uint32
	msg  string
}

func (e codeErr) Error() string {
	return e.msg
}

func (e codeErr) Code() uint32 {
	return e.code
}

func AsCodeErr(code uint32, msg string) error {
	return codeErr{code: code, msg: msg}
}

func Success(c *gin.Context, data interface{}) {
	proxyutil.SuccessJson(c, data)
}

// Error always answers with HTTP 200; the failure is carried by the envelope code.
func Error(c *gin.Context, code int, message string) {
	proxyutil.FailJson(c, 200, AsCodeErr(uint32(code), message))
}

// Code maps an engine error onto its envelope code and a client-safe message.
func Code(err error) (int, string) {
	switch {
	case errors.Is(err, appErr.ErrConversationNotFound):
		return errcode.ErrConversationNotFound, "conversation not found"
	case errors.Is(err, appErr.ErrNotFound):
		return errcode.ErrNotFound, "not found"
	case errors.Is(err, appErr.ErrInvalid):
		return errcode.ErrInvalid, "invalid request"
	case errors.Is(err, appErr.ErrConflict):
		return errcode.ErrConflict, "conflict"
	case errors.Is(err, appErr.ErrTooMany):
		return errcode.ErrTooMany, "too many requests"
	case errors.Is(err, appErr.ErrEmbeddingFailure):
		return errcode.ErrEmbeddingFailure, "embedding failed, retry later"
	case errors.Is(err, appErr.ErrGenerationTimeout):
		return errcode.ErrGenerationTimeout, "generation timed out, retry later"
	case errors.Is(err, appErr.ErrGenerationFailure):
		return errcode.ErrGenerationFailure, "generation failed, retry later"
	default:
		return errcode.ErrInternal, "internal error"
	}
}

func Fail(c *gin.Context, err error) {
	code, msg := Code(err)
	Error(c, code, msg)
}
