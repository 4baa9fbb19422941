package store

import (
	"context"
	"strings"

	"github.com/kart-io/legal-rag/internal/pkg/rag/textutil"
)

// Chunk 表示一个不可变的文档块。
type Chunk struct {
	// ID 文档块 ID，全局唯一且稳定。
	ID string `json:"id"`
	// DocumentID 所属文档 ID。
	DocumentID string `json:"document_id"`
	// DocumentTitle 文档标题。
	DocumentTitle string `json:"document_title"`
	// ChunkType 块类型，如 definition、clause、paragraph。
	ChunkType string `json:"chunk_type"`
	// PageNumber 页码。
	PageNumber int `json:"page_number"`
	// Position 块在文档中的序号。
	Position int `json:"position"`
	// Content 块内容。
	Content string `json:"content"`
	// Concepts 块上标注的法律概念。
	Concepts []string `json:"concepts,omitempty"`
	// Embedding 嵌入向量。
	Embedding []float32 `json:"embedding,omitempty"`
}

// Candidate 是索引返回的候选块及其原始分数。
type Candidate struct {
	Chunk *Chunk
	// Score 原始分数，向量查询为余弦相似度，关键词查询为归一化排名，均在 [0,1]。
	Score float64
}

// Filter 在索引侧应用的过滤条件。空集合表示不过滤。
type Filter struct {
	DocumentIDs        []string `json:"document_ids,omitempty"`
	ChunkTypes         []string `json:"chunk_types,omitempty"`
	ExcludeDocumentIDs []string `json:"exclude_document_ids,omitempty"`
}

// Match 判断块是否满足过滤条件。
func (f Filter) Match(c *Chunk) bool {
	if len(f.DocumentIDs) > 0 && !textutil.ContainsString(f.DocumentIDs, c.DocumentID) {
		return false
	}
	if len(f.ChunkTypes) > 0 && !containsFold(f.ChunkTypes, c.ChunkType) {
		return false
	}
	if textutil.ContainsString(f.ExcludeDocumentIDs, c.DocumentID) {
		return false
	}
	return true
}

// Index 定义分块索引接口。
type Index interface {
	// VectorQuery 返回相似度不低于 threshold 的块，按相似度降序，最多 limit 条。
	VectorQuery(ctx context.Context, vector []float32, threshold float64, filter Filter, limit int) ([]Candidate, error)

	// KeywordQuery 执行全文检索，按排名降序，最多 limit 条。
	KeywordQuery(ctx context.Context, text string, filter Filter, limit int) ([]Candidate, error)

	// DocumentChunks 返回文档的全部块，按位置排序。文档不存在时返回空切片。
	DocumentChunks(ctx context.Context, documentID string) ([]*Chunk, error)
}

// KeywordScore 返回查询词在内容中的覆盖率：命中词数 / 查询词数。
func KeywordScore(queryTerms map[string]int, content string) float64 {
	if len(queryTerms) == 0 {
		return 0
	}
	terms := textutil.TermFrequencies(content)
	hits := 0
	for t := range queryTerms {
		if _, ok := terms[t]; ok {
			hits++
		}
	}
	return float64(hits) / float64(len(queryTerms))
}

func containsFold(items []string, s string) bool {
	for _, it := range items {
		if strings.EqualFold(it, s) {
			return true
		}
	}
	return false
}
