package biz

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/kart-io/logger"

	"github.com/kart-io/legal-rag/internal/legalrag/store"
	"github.com/kart-io/legal-rag/internal/pkg/rag/textutil"
	"github.com/kart-io/legal-rag/pkg/errors"
)

// ParseCompareMode 解析比较模式，空字符串视为 similarity。
func ParseCompareMode(s string) (CompareMode, error) {
	switch m := CompareMode(strings.ToLower(strings.TrimSpace(s))); m {
	case "":
		return CompareSimilarity, nil
	case CompareSimilarity, CompareDifference, CompareCoverage:
		return m, nil
	default:
		return "", errors.ErrInvalidMode.WithMessagef("unknown comparison mode %q", s)
	}
}

// ComparatorConfig 文档比较配置。
type ComparatorConfig struct {
	SimilarityCutoff float64
	// MinTermFrequency 词项在文档中至少出现的次数，低于该值的词不计入显著词集合。
	MinTermFrequency int
	SharedTermsLimit int
	UniqueTermsLimit int
}

// DefaultComparatorConfig 返回默认配置。
func DefaultComparatorConfig() *ComparatorConfig {
	return &ComparatorConfig{
		SimilarityCutoff: 0.3,
		MinTermFrequency: 2,
		SharedTermsLimit: 10,
		UniqueTermsLimit: 20,
	}
}

// Comparator 多文档比较。
type Comparator struct {
	index  store.Index
	config *ComparatorConfig
}

// NewComparator 创建文档比较器。
func NewComparator(index store.Index, config *ComparatorConfig) *Comparator {
	if config == nil {
		config = DefaultComparatorConfig()
	}
	return &Comparator{index: index, config: config}
}

type docProfile struct {
	id     string
	terms  map[string]int
	chunks []*store.Chunk
}

// Compare 比较文档。重复 ID 去重；ID 少于 2 个或模式未知时在访问索引前返回校验错误。
// 没有任何块的 ID 视为无效，有效文档少于 2 个返回 ErrTooFewDocuments。
func (c *Comparator) Compare(ctx context.Context, documentIDs []string, mode CompareMode) (*ComparisonResult, error) {
	switch mode {
	case CompareSimilarity, CompareDifference, CompareCoverage:
	default:
		return nil, errors.ErrInvalidMode.WithMessagef("unknown comparison mode %q", mode)
	}
	ids := distinctIDs(documentIDs)
	if len(ids) < 2 {
		return nil, errors.ErrTooFewDocuments.WithMessagef("at least two distinct document ids are required, got %d", len(ids))
	}

	profiles, err := c.load(ctx, ids)
	if err != nil {
		return nil, err
	}

	result := &ComparisonResult{Mode: mode, DocumentIDs: make([]string, len(profiles))}
	for i, p := range profiles {
		result.DocumentIDs[i] = p.id
	}

	switch mode {
	case CompareSimilarity:
		result.Similarities = c.similarity(profiles)
	case CompareDifference:
		result.Differences = c.difference(profiles)
	case CompareCoverage:
		result.Coverage = coverage(profiles)
	}
	return result, nil
}

func distinctIDs(documentIDs []string) []string {
	var ids []string
	for _, id := range documentIDs {
		id = strings.TrimSpace(id)
		if id != "" && !textutil.ContainsString(ids, id) {
			ids = append(ids, id)
		}
	}
	return ids
}

func (c *Comparator) load(ctx context.Context, ids []string) ([]docProfile, error) {
	var profiles []docProfile
	var invalid []string
	for _, id := range ids {
		chunks, err := c.index.DocumentChunks(ctx, id)
		if err != nil {
			return nil, errors.ErrRetrievalUnavailable.WithCause(fmt.Errorf("load document %s: %w", id, err))
		}
		if len(chunks) == 0 {
			invalid = append(invalid, id)
			continue
		}
		var text strings.Builder
		for _, ch := range chunks {
			text.WriteString(ch.Content)
			text.WriteString("\n")
		}
		profiles = append(profiles, docProfile{
			id:     id,
			terms:  textutil.SignificantTerms(text.String(), c.config.MinTermFrequency),
			chunks: chunks,
		})
	}

	if len(invalid) > 0 {
		logger.Warnw("comparison skipped unknown documents", "document_ids", invalid)
	}
	if len(profiles) < 2 {
		return nil, errors.ErrTooFewDocuments.WithMessagef(
			"at least two documents with content are required, got %d", len(profiles))
	}
	return profiles, nil
}

// similarity 计算每对文档的 Jaccard 相似度，只报告不低于阈值的文档对。
func (c *Comparator) similarity(profiles []docProfile) []SimilarityPair {
	pairs := []SimilarityPair{}
	for i := 0; i < len(profiles); i++ {
		for j := i + 1; j < len(profiles); j++ {
			a, b := profiles[i], profiles[j]
			if b.id < a.id {
				a, b = b, a
			}
			sim := textutil.Jaccard(a.terms, b.terms)
			if sim < c.config.SimilarityCutoff || sim == 0 {
				continue
			}
			shared := make(map[string]int)
			for t, n := range a.terms {
				if m, ok := b.terms[t]; ok {
					shared[t] = n + m
				}
			}
			pairs = append(pairs, SimilarityPair{
				DocumentA:   a.id,
				DocumentB:   b.id,
				Similarity:  sim,
				SharedTerms: textutil.TopTerms(shared, c.config.SharedTermsLimit),
			})
		}
	}
	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].Similarity != pairs[j].Similarity {
			return pairs[i].Similarity > pairs[j].Similarity
		}
		if pairs[i].DocumentA != pairs[j].DocumentA {
			return pairs[i].DocumentA < pairs[j].DocumentA
		}
		return pairs[i].DocumentB < pairs[j].DocumentB
	})
	return pairs
}

// difference 计算每个文档相对其余文档并集的独有词项。
func (c *Comparator) difference(profiles []docProfile) []DocumentDifference {
	out := make([]DocumentDifference, 0, len(profiles))
	for i, p := range profiles {
		others := make(map[string]struct{})
		for j, q := range profiles {
			if i == j {
				continue
			}
			for t := range q.terms {
				others[t] = struct{}{}
			}
		}

		unique := make(map[string]int)
		for t, n := range p.terms {
			if _, ok := others[t]; !ok {
				unique[t] = n
			}
		}

		var uniqueness float64
		if len(p.terms) > 0 {
			uniqueness = float64(len(unique)) / float64(len(p.terms))
		}
		out = append(out, DocumentDifference{
			DocumentID:  p.id,
			UniqueTerms: textutil.TopTerms(unique, c.config.UniqueTermsLimit),
			Uniqueness:  uniqueness,
		})
	}
	return out
}

// coverage 按概念标签频次构建文档 × 概念矩阵，每行归一化为和 1（无概念时全 0）。
// 不在概念词表中的标签不计入。
func coverage(profiles []docProfile) *CoverageMatrix {
	concepts := ConceptNames()
	m := &CoverageMatrix{
		Concepts: concepts,
		Rows:     make(map[string]map[string]float64, len(profiles)),
	}
	for _, p := range profiles {
		counts := make(map[string]int)
		total := 0
		for _, ch := range p.chunks {
			tags := ch.Concepts
			if len(tags) == 0 {
				tags = DetectConcepts(ch.Content)
			}
			for _, t := range tags {
				if !textutil.ContainsString(concepts, t) {
					continue
				}
				counts[t]++
				total++
			}
		}

		row := make(map[string]float64, len(concepts))
		for _, concept := range concepts {
			row[concept] = 0
			if total > 0 {
				row[concept] = float64(counts[concept]) / float64(total)
			}
		}
		m.Rows[p.id] = row
	}
	return m
}
