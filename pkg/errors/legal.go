package errors

import "net/http"

// 法律检索服务错误码: 21 (业务服务范围 20-79)

var (
	// 请求校验错误 (类别 01)
	ErrValidation           = Register(New(MakeCode(ServiceLegalRAG, CategoryRequest, 0), http.StatusBadRequest, "Validation failed", "校验失败"))
	ErrEmptyQuery           = Register(New(MakeCode(ServiceLegalRAG, CategoryRequest, 1), http.StatusBadRequest, "Query text must not be empty", "查询内容不能为空"))
	ErrTooFewDocuments      = Register(New(MakeCode(ServiceLegalRAG, CategoryRequest, 2), http.StatusBadRequest, "At least two documents are required for comparison", "比较至少需要两个文档"))
	ErrInvalidBatchSettings = Register(New(MakeCode(ServiceLegalRAG, CategoryRequest, 3), http.StatusBadRequest, "Invalid batch settings", "批处理参数无效"))
	ErrInvalidMode          = Register(New(MakeCode(ServiceLegalRAG, CategoryRequest, 4), http.StatusBadRequest, "Unsupported mode", "不支持的模式"))
	ErrUnknownTool          = Register(New(MakeCode(ServiceLegalRAG, CategoryRequest, 5), http.StatusBadRequest, "Unknown tool kind", "未知的工具类型"))

	// 文档不存在 (类别 04)
	ErrDocumentNotFound = Register(New(MakeCode(ServiceLegalRAG, CategoryResource, 1), http.StatusNotFound, "Document not found", "文档不存在"))

	// 外部依赖错误 (类别 10)
	ErrProvider             = Register(New(MakeCode(ServiceLegalRAG, CategoryNetwork, 1), http.StatusBadGateway, "Upstream provider error", "上游服务错误"))
	ErrRetrievalUnavailable = Register(New(MakeCode(ServiceLegalRAG, CategoryNetwork, 2), http.StatusServiceUnavailable, "Retrieval unavailable", "检索服务不可用"))

	// 超时 (类别 11)
	ErrItemTimeout = Register(New(MakeCode(ServiceLegalRAG, CategoryTimeout, 1), http.StatusGatewayTimeout, "Batch item timed out", "批处理条目超时"))

	// 缓存 (类别 09)，仅记录日志，不返回给调用方
	ErrCache = Register(New(MakeCode(ServiceLegalRAG, CategoryCache, 1), http.StatusInternalServerError, "Result cache failure", "结果缓存失败"))

	// 生成 (类别 07)，体现为置信度为 0 的回答
	ErrSynthesis = Register(New(MakeCode(ServiceLegalRAG, CategoryInternal, 1), http.StatusInternalServerError, "Answer synthesis failed", "答案生成失败"))
)
