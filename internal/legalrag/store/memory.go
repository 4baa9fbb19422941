package store

import (
	"context"
	"fmt"
	"os"
	"sort"
	"sync"

	"github.com/bytedance/sonic"
	"github.com/kart-io/logger"

	"github.com/kart-io/legal-rag/internal/pkg/rag/textutil"
	"github.com/kart-io/legal-rag/pkg/llm"
)

var _ Index = (*MemoryIndex)(nil)

// MemoryIndex 是进程内索引，向量查询为暴力余弦检索，关键词查询为词项覆盖率。
type MemoryIndex struct {
	mu     sync.RWMutex
	chunks map[string]*Chunk
	byDoc  map[string][]*Chunk
}

// NewMemoryIndex 创建内存索引。
func NewMemoryIndex(chunks ...*Chunk) *MemoryIndex {
	idx := &MemoryIndex{
		chunks: make(map[string]*Chunk),
		byDoc:  make(map[string][]*Chunk),
	}
	idx.Add(chunks...)
	return idx
}

// Add 写入块。相同 ID 的块会被替换。
func (m *MemoryIndex) Add(chunks ...*Chunk) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.addLocked(chunks)
}

// Replace 原子地用 chunks 替换全部内容。
func (m *MemoryIndex) Replace(chunks ...*Chunk) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.chunks = make(map[string]*Chunk, len(chunks))
	m.byDoc = make(map[string][]*Chunk)
	m.addLocked(chunks)
}

func (m *MemoryIndex) addLocked(chunks []*Chunk) {
	touched := make(map[string]struct{})
	for _, c := range chunks {
		if old, ok := m.chunks[c.ID]; ok {
			touched[old.DocumentID] = struct{}{}
		}
		m.chunks[c.ID] = c
		touched[c.DocumentID] = struct{}{}
	}

	for docID := range touched {
		var docChunks []*Chunk
		for _, c := range m.chunks {
			if c.DocumentID == docID {
				docChunks = append(docChunks, c)
			}
		}
		sort.Slice(docChunks, func(i, j int) bool {
			if docChunks[i].Position != docChunks[j].Position {
				return docChunks[i].Position < docChunks[j].Position
			}
			return docChunks[i].ID < docChunks[j].ID
		})
		if len(docChunks) == 0 {
			delete(m.byDoc, docID)
		} else {
			m.byDoc[docID] = docChunks
		}
	}
}

// Len 返回块数量。
func (m *MemoryIndex) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.chunks)
}

// Documents 返回文档 ID 列表，已排序。
func (m *MemoryIndex) Documents() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]string, 0, len(m.byDoc))
	for id := range m.byDoc {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// VectorQuery 实现 Index。
func (m *MemoryIndex) VectorQuery(ctx context.Context, vector []float32, threshold float64, filter Filter, limit int) ([]Candidate, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []Candidate
	for _, c := range m.chunks {
		if len(c.Embedding) == 0 || !filter.Match(c) {
			continue
		}
		score := textutil.Clamp01(textutil.CosineSimilarity(vector, c.Embedding))
		if score < threshold || score == 0 {
			continue
		}
		out = append(out, Candidate{Chunk: c, Score: score})
	}
	return topCandidates(out, limit), nil
}

// KeywordQuery 实现 Index。
func (m *MemoryIndex) KeywordQuery(ctx context.Context, text string, filter Filter, limit int) ([]Candidate, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	queryTerms := textutil.TermFrequencies(text)
	if len(queryTerms) == 0 {
		return nil, nil
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []Candidate
	for _, c := range m.chunks {
		if !filter.Match(c) {
			continue
		}
		if score := KeywordScore(queryTerms, c.Content); score > 0 {
			out = append(out, Candidate{Chunk: c, Score: score})
		}
	}
	return topCandidates(out, limit), nil
}

// DocumentChunks 实现 Index。
func (m *MemoryIndex) DocumentChunks(ctx context.Context, documentID string) ([]*Chunk, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	chunks := m.byDoc[documentID]
	out := make([]*Chunk, len(chunks))
	copy(out, chunks)
	return out, nil
}

// LoadCorpus 读取 JSON 语料文件（Chunk 数组），为缺少向量的块计算嵌入。
func LoadCorpus(ctx context.Context, path string, embedder llm.EmbeddingProvider) ([]*Chunk, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read corpus file: %w", err)
	}

	var chunks []*Chunk
	if err := sonic.Unmarshal(data, &chunks); err != nil {
		return nil, fmt.Errorf("failed to decode corpus file %s: %w", path, err)
	}

	if err := EmbedChunks(ctx, chunks, embedder); err != nil {
		return nil, err
	}

	logger.Infow("corpus loaded", "path", path, "chunks", len(chunks))
	return chunks, nil
}

// EmbedChunks 为缺少向量的块批量计算嵌入。
func EmbedChunks(ctx context.Context, chunks []*Chunk, embedder llm.EmbeddingProvider) error {
	var (
		pending []*Chunk
		texts   []string
	)
	for i, c := range chunks {
		if c.ID == "" {
			return fmt.Errorf("chunk %d has no id", i)
		}
		if len(c.Embedding) == 0 {
			pending = append(pending, c)
			texts = append(texts, c.Content)
		}
	}
	if len(pending) == 0 || embedder == nil {
		return nil
	}

	vectors, err := embedder.Embed(ctx, texts)
	if err != nil {
		return fmt.Errorf("failed to embed corpus chunks: %w", err)
	}
	if len(vectors) != len(pending) {
		return fmt.Errorf("embedding provider returned %d vectors for %d chunks", len(vectors), len(pending))
	}
	for i, c := range pending {
		c.Embedding = vectors[i]
	}
	return nil
}

// topCandidates 按分数降序、块 ID 升序排序并截断。
func topCandidates(cands []Candidate, limit int) []Candidate {
	sort.Slice(cands, func(i, j int) bool {
		if cands[i].Score != cands[j].Score {
			return cands[i].Score > cands[j].Score
		}
		return cands[i].Chunk.ID < cands[j].Chunk.ID
	})
	if limit > 0 && len(cands) > limit {
		cands = cands[:limit]
	}
	return cands
}
