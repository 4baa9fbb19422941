package biz

import (
	"context"
	"errors"
	"sync"

	"github.com/kart-io/legal-rag/internal/legalrag/store"
	"github.com/kart-io/legal-rag/pkg/llm"
)

// fakeEmbedder 按文本返回预设向量，未登记的文本返回零向量。
type fakeEmbedder struct {
	mu      sync.Mutex
	vectors map[string][]float32
	err     error
	calls   int
}

func (f *fakeEmbedder) Name() string { return "fake" }

func (f *fakeEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, err := f.EmbedSingle(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (f *fakeEmbedder) EmbedSingle(_ context.Context, text string) ([]float32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	if v, ok := f.vectors[text]; ok {
		return v, nil
	}
	return []float32{0, 0, 0}, nil
}

func (f *fakeEmbedder) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// fakeChat 记录最后一次提示词，返回固定答案或错误。
type fakeChat struct {
	mu         sync.Mutex
	answer     string
	err        error
	lastPrompt string
	lastSystem string
	calls      int
}

func (f *fakeChat) Name() string { return "fake-chat" }

func (f *fakeChat) Chat(ctx context.Context, _ []llm.Message) (string, error) {
	return f.Generate(ctx, "", "")
}

func (f *fakeChat) Generate(_ context.Context, prompt, system string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.lastPrompt, f.lastSystem = prompt, system
	if f.err != nil {
		return "", f.err
	}
	return f.answer, nil
}

func (f *fakeChat) prompt() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastPrompt
}

// flakyIndex 包装索引，可让某一路查询失败。
type flakyIndex struct {
	store.Index
	vectorErr  error
	keywordErr error
}

func (f *flakyIndex) VectorQuery(ctx context.Context, v []float32, th float64, filter store.Filter, limit int) ([]store.Candidate, error) {
	if f.vectorErr != nil {
		return nil, f.vectorErr
	}
	return f.Index.VectorQuery(ctx, v, th, filter, limit)
}

func (f *flakyIndex) KeywordQuery(ctx context.Context, text string, filter store.Filter, limit int) ([]store.Candidate, error) {
	if f.keywordErr != nil {
		return nil, f.keywordErr
	}
	return f.Index.KeywordQuery(ctx, text, filter, limit)
}

var errBoom = errors.New("boom")

func fixtureChunks() []*store.Chunk {
	return []*store.Chunk{
		{
			ID: "nda-1", DocumentID: "nda", DocumentTitle: "Mutual NDA", ChunkType: "definition", PageNumber: 1, Position: 0,
			Content:   "Confidential Information means any non-public information disclosed by a party.",
			Concepts:  []string{ConceptDefinitions, ConceptConfidentiality},
			Embedding: []float32{1, 0, 0},
		},
		{
			ID: "nda-2", DocumentID: "nda", DocumentTitle: "Mutual NDA", ChunkType: "clause", PageNumber: 2, Position: 1,
			Content:   "The Receiving Party shall not disclose Confidential Information and shall protect it with reasonable care.",
			Concepts:  []string{ConceptObligations, ConceptConfidentiality},
			Embedding: []float32{0.9, 0.1, 0},
		},
		{
			ID: "msa-1", DocumentID: "msa", DocumentTitle: "Master Services Agreement", ChunkType: "clause", PageNumber: 4, Position: 0,
			Content:   "Either party may terminate this Agreement upon thirty days written notice.",
			Concepts:  []string{ConceptTermination, ConceptRights},
			Embedding: []float32{0, 1, 0},
		},
		{
			ID: "msa-2", DocumentID: "msa", DocumentTitle: "Master Services Agreement", ChunkType: "clause", PageNumber: 5, Position: 1,
			Content:   "The Supplier shall pay damages for any breach and is liable for resulting losses.",
			Concepts:  []string{ConceptLiability, ConceptObligations},
			Embedding: []float32{0, 0.8, 0.6},
		},
		{
			ID: "lease-1", DocumentID: "lease", DocumentTitle: "Office Lease", ChunkType: "clause", PageNumber: 3, Position: 0,
			Content:   "The Tenant shall pay rent monthly. Disputes are resolved by arbitration in Delaware.",
			Concepts:  []string{ConceptPayment, ConceptDispute, ConceptObligations},
			Embedding: []float32{0, 0, 1},
		},
		{
			ID: "policy-1", DocumentID: "policy", DocumentTitle: "Data Policy", ChunkType: "definition", PageNumber: 1, Position: 0,
			Content:   "Confidentiality obligations survive termination of the engagement.",
			Concepts:  []string{ConceptConfidentiality, ConceptDefinitions},
			Embedding: []float32{0.5, 0.5, 0.5},
		},
	}
}

func fixtureIndex() *store.MemoryIndex {
	return store.NewMemoryIndex(fixtureChunks()...)
}

func fixtureEmbedder() *fakeEmbedder {
	return &fakeEmbedder{
		vectors: map[string][]float32{
			"confidential information":                 {1, 0, 0},
			"What is Confidential Information?":        {1, 0, 0},
			"How can a party terminate the agreement?": {0, 1, 0},
		},
	}
}

func result(id, doc string, combined float64, chunkType string, concepts ...string) SearchResult {
	return SearchResult{
		ChunkID:       id,
		DocumentID:    doc,
		DocumentTitle: "Title " + doc,
		ChunkType:     chunkType,
		PageNumber:    1,
		Content:       "Content of " + id + ".",
		Concepts:      concepts,
		CombinedScore: combined,
		Provenance:    ProvenanceHybrid,
	}
}
