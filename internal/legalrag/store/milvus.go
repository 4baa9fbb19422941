package store

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/milvus-io/milvus/client/v2/entity"

	"github.com/kart-io/legal-rag/internal/pkg/rag/textutil"
	"github.com/kart-io/legal-rag/pkg/component/milvus"
)

// MilvusClient 是 MilvusIndex 依赖的客户端子集，*milvus.Client 满足该接口。
type MilvusClient interface {
	EnsureCollection(ctx context.Context, schema *milvus.CollectionSchema) error
	Insert(ctx context.Context, data *milvus.InsertData) error
	Search(ctx context.Context, vector []float32, topK int, filter string, outputFields []string) ([]milvus.Hit, error)
	Query(ctx context.Context, filter string, outputFields []string) ([]map[string]any, error)
}

var _ Index = (*MilvusIndex)(nil)

var milvusOutputFields = []string{"document_id", "document_title", "chunk_type", "page_number", "position", "content", "concepts"}

// MilvusIndex 基于 Milvus 的索引。
// Milvus 不提供全文排名，关键词查询在过滤后的集合上扫描并按词项覆盖率打分。
type MilvusIndex struct {
	client MilvusClient
}

// NewMilvusIndex 创建 Milvus 索引。
func NewMilvusIndex(client MilvusClient) *MilvusIndex {
	return &MilvusIndex{client: client}
}

// EnsureCollection 创建分块集合。
func (s *MilvusIndex) EnsureCollection(ctx context.Context, dimension int) error {
	return s.client.EnsureCollection(ctx, &milvus.CollectionSchema{
		Description: "legal document chunks",
		Dimension:   dimension,
		MetaFields: []milvus.MetaField{
			{Name: "document_id", DataType: entity.FieldTypeVarChar, MaxLen: 256},
			{Name: "document_title", DataType: entity.FieldTypeVarChar, MaxLen: 1024},
			{Name: "chunk_type", DataType: entity.FieldTypeVarChar, MaxLen: 64},
			{Name: "page_number", DataType: entity.FieldTypeInt64},
			{Name: "position", DataType: entity.FieldTypeInt64},
			{Name: "content", DataType: entity.FieldTypeVarChar, MaxLen: 65535},
			{Name: "concepts", DataType: entity.FieldTypeVarChar, MaxLen: 1024},
		},
	})
}

// Insert 批量写入块，所有块必须已有向量。
func (s *MilvusIndex) Insert(ctx context.Context, chunks []*Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	data := &milvus.InsertData{
		IDs:        make([]string, len(chunks)),
		Embeddings: make([][]float32, len(chunks)),
		Metadata: map[string][]any{
			"document_id":    make([]any, len(chunks)),
			"document_title": make([]any, len(chunks)),
			"chunk_type":     make([]any, len(chunks)),
			"page_number":    make([]any, len(chunks)),
			"position":       make([]any, len(chunks)),
			"content":        make([]any, len(chunks)),
			"concepts":       make([]any, len(chunks)),
		},
	}
	for i, c := range chunks {
		if len(c.Embedding) == 0 {
			return fmt.Errorf("chunk %s has no embedding", c.ID)
		}
		data.IDs[i] = c.ID
		data.Embeddings[i] = c.Embedding
		data.Metadata["document_id"][i] = c.DocumentID
		data.Metadata["document_title"][i] = c.DocumentTitle
		data.Metadata["chunk_type"][i] = c.ChunkType
		data.Metadata["page_number"][i] = int64(c.PageNumber)
		data.Metadata["position"][i] = int64(c.Position)
		data.Metadata["content"][i] = c.Content
		data.Metadata["concepts"][i] = strings.Join(c.Concepts, ",")
	}

	if err := s.client.Insert(ctx, data); err != nil {
		return fmt.Errorf("failed to insert into milvus: %w", err)
	}
	return nil
}

// VectorQuery 实现 Index。集合使用 COSINE 度量，分数即余弦相似度。
func (s *MilvusIndex) VectorQuery(ctx context.Context, vector []float32, threshold float64, filter Filter, limit int) ([]Candidate, error) {
	hits, err := s.client.Search(ctx, vector, normalizeLimit(limit), buildMilvusFilter(filter), milvusOutputFields)
	if err != nil {
		return nil, fmt.Errorf("failed to search milvus: %w", err)
	}

	out := make([]Candidate, 0, len(hits))
	for _, h := range hits {
		score := textutil.Clamp01(float64(h.Score))
		if score < threshold || score == 0 {
			continue
		}
		c := chunkFromRow(h.Fields)
		c.ID = h.ID
		out = append(out, Candidate{Chunk: c, Score: score})
	}
	return topCandidates(out, limit), nil
}

// KeywordQuery 实现 Index。
func (s *MilvusIndex) KeywordQuery(ctx context.Context, text string, filter Filter, limit int) ([]Candidate, error) {
	queryTerms := textutil.TermFrequencies(text)
	if len(queryTerms) == 0 {
		return nil, nil
	}

	rows, err := s.client.Query(ctx, buildMilvusFilter(filter), milvusOutputFields)
	if err != nil {
		return nil, fmt.Errorf("failed to query milvus: %w", err)
	}

	var out []Candidate
	for _, row := range rows {
		c := chunkFromRow(row)
		if score := KeywordScore(queryTerms, c.Content); score > 0 {
			out = append(out, Candidate{Chunk: c, Score: score})
		}
	}
	return topCandidates(out, limit), nil
}

// DocumentChunks 实现 Index。
func (s *MilvusIndex) DocumentChunks(ctx context.Context, documentID string) ([]*Chunk, error) {
	rows, err := s.client.Query(ctx, buildMilvusFilter(Filter{DocumentIDs: []string{documentID}}), milvusOutputFields)
	if err != nil {
		return nil, fmt.Errorf("failed to query milvus: %w", err)
	}

	chunks := make([]*Chunk, 0, len(rows))
	for _, row := range rows {
		chunks = append(chunks, chunkFromRow(row))
	}
	sort.Slice(chunks, func(i, j int) bool {
		if chunks[i].Position != chunks[j].Position {
			return chunks[i].Position < chunks[j].Position
		}
		return chunks[i].ID < chunks[j].ID
	})
	return chunks, nil
}

// buildMilvusFilter 把 Filter 转换为 Milvus 布尔表达式。
func buildMilvusFilter(f Filter) string {
	var parts []string
	if len(f.DocumentIDs) > 0 {
		parts = append(parts, "document_id in "+milvusList(f.DocumentIDs))
	}
	if len(f.ChunkTypes) > 0 {
		parts = append(parts, "chunk_type in "+milvusList(f.ChunkTypes))
	}
	if len(f.ExcludeDocumentIDs) > 0 {
		parts = append(parts, "document_id not in "+milvusList(f.ExcludeDocumentIDs))
	}
	return strings.Join(parts, " and ")
}

func milvusList(items []string) string {
	quoted := make([]string, len(items))
	for i, it := range items {
		quoted[i] = strconv.Quote(it)
	}
	return "[" + strings.Join(quoted, ", ") + "]"
}

func chunkFromRow(row map[string]any) *Chunk {
	c := &Chunk{
		ID:            stringField(row, milvus.PrimaryField),
		DocumentID:    stringField(row, "document_id"),
		DocumentTitle: stringField(row, "document_title"),
		ChunkType:     stringField(row, "chunk_type"),
		PageNumber:    int(intField(row, "page_number")),
		Position:      int(intField(row, "position")),
		Content:       stringField(row, "content"),
	}
	if concepts := stringField(row, "concepts"); concepts != "" {
		c.Concepts = strings.Split(concepts, ",")
	}
	return c
}

func stringField(row map[string]any, name string) string {
	s, _ := row[name].(string)
	return s
}

func intField(row map[string]any, name string) int64 {
	n, _ := row[name].(int64)
	return n
}
