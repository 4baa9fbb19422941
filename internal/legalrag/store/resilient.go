package store

import (
	"context"

	"github.com/kart-io/legal-rag/pkg/llm/resilience"
)

var _ Index = (*ResilientIndex)(nil)

// ResilientIndex 为索引查询增加指数退避重试与熔断，失败统一映射为 ErrProvider。
type ResilientIndex struct {
	index Index
	guard *resilience.Guard
}

// NewResilientIndex 包装索引。opts 为 nil 时使用默认重试与熔断配置。
func NewResilientIndex(index Index, name string, opts *resilience.Options) *ResilientIndex {
	return &ResilientIndex{index: index, guard: resilience.NewGuard(name, opts)}
}

// Unwrap 返回被包装的索引。
func (r *ResilientIndex) Unwrap() Index {
	return r.index
}

// Guard 返回索引使用的重试与熔断器。
func (r *ResilientIndex) Guard() *resilience.Guard {
	return r.guard
}

// VectorQuery 实现 Index。
func (r *ResilientIndex) VectorQuery(ctx context.Context, vector []float32, threshold float64, filter Filter, limit int) ([]Candidate, error) {
	var out []Candidate
	err := r.guard.Do(ctx, func() error {
		var callErr error
		out, callErr = r.index.VectorQuery(ctx, vector, threshold, filter, limit)
		return callErr
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// KeywordQuery 实现 Index。
func (r *ResilientIndex) KeywordQuery(ctx context.Context, text string, filter Filter, limit int) ([]Candidate, error) {
	var out []Candidate
	err := r.guard.Do(ctx, func() error {
		var callErr error
		out, callErr = r.index.KeywordQuery(ctx, text, filter, limit)
		return callErr
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// DocumentChunks 实现 Index。
func (r *ResilientIndex) DocumentChunks(ctx context.Context, documentID string) ([]*Chunk, error) {
	var out []*Chunk
	err := r.guard.Do(ctx, func() error {
		var callErr error
		out, callErr = r.index.DocumentChunks(ctx, documentID)
		return callErr
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
