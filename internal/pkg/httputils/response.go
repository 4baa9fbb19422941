// Package httputils provides HTTP utility functions.
package httputils

import (
	stderrors "errors"

	"github.com/gin-gonic/gin"

	"github.com/kart-io/legal-rag/pkg/middleware"
	"github.com/kart-io/legal-rag/pkg/response"
	"github.com/kart-io/legal-rag/pkg/validator"
)

// WriteResponse writes the response to the client.
// It handles both success and error cases, ensuring consistent response format.
func WriteResponse(c *gin.Context, err error, data any) {
	w := response.NewWriter(c).
		WithRequestID(middleware.GetRequestID(c.Request.Context())).
		WithLang(Lang(c))

	if err != nil {
		var verr *validator.ValidationErrors
		if stderrors.As(err, &verr) {
			w.FailWithValidation(verr)
			return
		}
		w.FailWithError(err)
		return
	}
	w.OK(data)
}

// Lang returns the preferred message language, "zh" or "en".
func Lang(c *gin.Context) string {
	if lang := c.Query("lang"); lang != "" {
		return lang
	}
	al := c.GetHeader("Accept-Language")
	if len(al) >= 2 && al[:2] == "zh" {
		return "zh"
	}
	return "en"
}
