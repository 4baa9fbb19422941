// Package store 提供法律检索引擎的分块索引层。
//
// 该包定义了 Index 接口（向量查询、关键词查询、按文档取块），
// 以及三种实现：内存索引、PostgreSQL(pgvector) 索引和 Milvus 索引。
// 所有实现都必须支持并发调用。
package store
