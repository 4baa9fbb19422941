package errors

import "net/http"

// OK is the code carried by successful responses.
var OK = Register(New(0, http.StatusOK, "Success", "成功"))

// Errors shared by every service.
var (
	ErrBadRequest     = Register(New(MakeCode(ServiceCommon, CategoryRequest, 0), http.StatusBadRequest, "Bad request", "请求错误"))
	ErrInvalidParam   = Register(New(MakeCode(ServiceCommon, CategoryRequest, 1), http.StatusBadRequest, "Invalid parameter", "参数无效"))
	ErrNotFound       = Register(New(MakeCode(ServiceCommon, CategoryResource, 0), http.StatusNotFound, "Resource not found", "资源不存在"))
	ErrInternal       = Register(New(MakeCode(ServiceCommon, CategoryInternal, 0), http.StatusInternalServerError, "Internal server error", "服务器内部错误"))
	ErrRequestTimeout = Register(New(MakeCode(ServiceCommon, CategoryTimeout, 0), http.StatusGatewayTimeout, "Request timeout", "请求超时"))
)
