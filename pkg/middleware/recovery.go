package middleware

import (
	"fmt"
	"runtime/debug"

	"github.com/gin-gonic/gin"
	"github.com/kart-io/logger"

	"github.com/kart-io/legal-rag/pkg/errors"
	"github.com/kart-io/legal-rag/pkg/response"
)

// Recovery returns a middleware that turns a handler panic into an
// ErrInternal response and logs the stack.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				requestID := GetRequestID(c.Request.Context())
				logger.Errorw("panic recovered",
					"panic", fmt.Sprint(r),
					"path", c.Request.URL.Path,
					"request_id", requestID,
					"stack", string(debug.Stack()),
				)
				response.NewWriter(c).WithRequestID(requestID).Fail(errors.ErrInternal)
				c.Abort()
			}
		}()
		c.Next()
	}
}
