package response

import (
	"context"
	stderrors "errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kart-io/legal-rag/pkg/errors"
	"github.com/kart-io/legal-rag/pkg/validator"
)

// Writer writes responses to a gin context.
type Writer struct {
	ctx       *gin.Context
	requestID string
	lang      string
}

// NewWriter creates a new response writer for the given context.
func NewWriter(c *gin.Context) *Writer {
	return &Writer{ctx: c}
}

// WithRequestID sets the request ID for responses.
func (w *Writer) WithRequestID(requestID string) *Writer {
	w.requestID = requestID
	return w
}

// WithLang sets the language for error messages.
func (w *Writer) WithLang(lang string) *Writer {
	w.lang = lang
	return w
}

func (w *Writer) prepare(r *Response) *Response {
	if w.requestID != "" {
		r.RequestID = w.requestID
	}
	return r
}

// OK sends a successful response with data.
func (w *Writer) OK(data any) {
	resp := w.prepare(Success(data))
	w.ctx.JSON(resp.HTTPStatus(), resp)
}

// Fail sends an error response using Errno.
func (w *Writer) Fail(e *errors.Errno) {
	resp := w.prepare(ErrWithLang(e, w.lang))
	w.ctx.JSON(e.HTTPStatus(), resp)
}

// FailWithError converts any error and sends it. Deadline and cancellation
// errors that carry no Errno become ErrRequestTimeout.
func (w *Writer) FailWithError(err error) {
	var e *errors.Errno
	switch {
	case stderrors.As(err, &e):
	case stderrors.Is(err, context.DeadlineExceeded), stderrors.Is(err, context.Canceled):
		e = errors.ErrRequestTimeout.WithCause(err)
	default:
		e = errors.FromError(err)
	}
	w.Fail(e)
}

// FailWithValidation sends a validation error response with field details.
func (w *Writer) FailWithValidation(verr *validator.ValidationErrors) {
	resp := w.prepare(&Response{
		Code:     errors.ErrValidation.Code,
		HTTPCode: http.StatusBadRequest,
		Message:  verr.First(),
		Data:     verr.ToMap(),
	})
	w.ctx.JSON(http.StatusBadRequest, resp)
}
