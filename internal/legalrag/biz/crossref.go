package biz

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/kart-io/legal-rag/internal/pkg/rag/textutil"
)

// CrossRefEngine 以答案关键概念做二次检索，找出来源文档之外的相关内容。
type CrossRefEngine struct {
	retriever *Retriever
	limit     int
}

// NewCrossRefEngine 创建跨文档引用引擎，limit 非正时取 5。
func NewCrossRefEngine(retriever *Retriever, limit int) *CrossRefEngine {
	if limit <= 0 {
		limit = 5
	}
	return &CrossRefEngine{retriever: retriever, limit: limit}
}

// Find 返回不在 sourceDocs 中的引用，按相关度降序，最多 limit 条。
// allowedDocs 非空时只在这些文档内查找。
func (e *CrossRefEngine) Find(ctx context.Context, keyConcepts, sourceDocs, allowedDocs []string) ([]CrossReference, error) {
	if len(keyConcepts) == 0 {
		return []CrossReference{}, nil
	}

	var terms []string
	for _, c := range keyConcepts {
		terms = append(terms, conceptQueryTerms(c)...)
	}
	set, err := e.retriever.Retrieve(ctx, Query{
		Text:               strings.Join(textutil.UniqueStrings(terms), " "),
		DocumentIDs:        allowedDocs,
		ExcludeDocumentIDs: sourceDocs,
		Limit:              e.limit * 4,
	})
	if err != nil {
		return nil, err
	}

	refs := make([]CrossReference, 0, e.limit)
	for _, r := range set.Results {
		if textutil.ContainsString(sourceDocs, r.DocumentID) {
			continue
		}
		refs = append(refs, CrossReference{
			Title:        fmt.Sprintf("%s (page %d)", r.DocumentTitle, r.PageNumber),
			Description:  textutil.TruncateString(r.Content, 160),
			Relationship: classifyRelationship(r),
			Relevance:    r.CombinedScore,
			DocumentID:   r.DocumentID,
			ChunkID:      r.ChunkID,
		})
	}

	sort.SliceStable(refs, func(i, j int) bool {
		if refs[i].Relevance != refs[j].Relevance {
			return refs[i].Relevance > refs[j].Relevance
		}
		return refs[i].ChunkID < refs[j].ChunkID
	})
	if len(refs) > e.limit {
		refs = refs[:e.limit]
	}
	return refs, nil
}

func classifyRelationship(r SearchResult) Relationship {
	chunkType := strings.ToLower(r.ChunkType)
	switch {
	case chunkType == "case" || chunkType == "precedent" || chunkType == "judgment" ||
		textutil.ContainsString(r.Concepts, ConceptDispute):
		return RelationshipPrecedent
	case chunkType == "definition" || textutil.ContainsString(r.Concepts, ConceptDefinitions):
		return RelationshipDefinitionLink
	case chunkType == "obligation" || textutil.ContainsString(r.Concepts, ConceptObligations):
		return RelationshipObligationLink
	default:
		return RelationshipOther
	}
}
