// Package local implements an offline llm.Provider: feature-hashed bag-of-words
// embeddings and an extractive answer generator. It lets the service run and
// be tested without a model server.
package local

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"regexp"
	"sort"
	"strings"

	"github.com/kart-io/legal-rag/internal/pkg/rag/textutil"
	"github.com/kart-io/legal-rag/pkg/llm"
)

const ProviderName = "local"

// DefaultDimension is the embedding width.
const DefaultDimension = 256

func init() {
	llm.RegisterProvider(ProviderName, NewProvider)
}

var (
	sourceHeader = regexp.MustCompile(`^\[SOURCE (\d+)\]`)
	sentenceEnd  = regexp.MustCompile(`[.;!?]\s+`)
)

// Provider is deterministic and safe for concurrent use.
type Provider struct {
	dim          int
	maxSentences int
}

// NewProvider builds a Provider. Recognised keys: dimension, max_sentences.
func NewProvider(config map[string]any) (llm.Provider, error) {
	return New(llm.IntOption(config, "dimension", DefaultDimension), llm.IntOption(config, "max_sentences", 3)), nil
}

// New returns a Provider with the given embedding width.
func New(dim, maxSentences int) *Provider {
	if dim <= 0 {
		dim = DefaultDimension
	}
	if maxSentences <= 0 {
		maxSentences = 3
	}
	return &Provider{dim: dim, maxSentences: maxSentences}
}

func (p *Provider) Name() string {
	return ProviderName
}

// Embed hashes each text's terms into a unit vector.
func (p *Provider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out[i] = p.vector(t)
	}
	return out, nil
}

// EmbedSingle hashes one text.
func (p *Provider) EmbedSingle(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return p.vector(text), nil
}

func (p *Provider) vector(text string) []float32 {
	vec := make([]float32, p.dim)
	for term, n := range textutil.TermFrequencies(text) {
		h := fnv.New32a()
		_, _ = h.Write([]byte(term))
		sum := h.Sum32()
		sign := float32(1)
		if sum&1 == 1 {
			sign = -1
		}
		vec[int(sum>>1)%p.dim] += sign * float32(1+math.Log(float64(n)))
	}

	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm == 0 {
		return vec
	}
	scale := float32(1 / math.Sqrt(norm))
	for i := range vec {
		vec[i] *= scale
	}
	return vec
}

// Chat answers the last user message.
func (p *Provider) Chat(ctx context.Context, messages []llm.Message) (string, error) {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == llm.RoleUser {
			return p.Generate(ctx, messages[i].Content, "")
		}
	}
	return "", fmt.Errorf("local: no user message")
}

type sentence struct {
	text   string
	source string
	score  int
	order  int
}

// Generate picks the context sentences that share the most terms with the
// question and cites their source blocks.
func (p *Provider) Generate(ctx context.Context, prompt string, _ string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	question, blocks := parsePrompt(prompt)
	qTerms := textutil.TermFrequencies(question)

	var candidates []sentence
	for _, b := range blocks {
		for _, s := range sentenceEnd.Split(b.body, -1) {
			s = strings.TrimSpace(s)
			if s == "" {
				continue
			}
			score := 0
			for term := range textutil.TermFrequencies(s) {
				if _, ok := qTerms[term]; ok {
					score++
				}
			}
			if score > 0 {
				candidates = append(candidates, sentence{text: s, source: b.id, score: score, order: len(candidates)})
			}
		}
	}
	if len(candidates) == 0 {
		return "The provided sources do not directly address this question.", nil
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].score > candidates[j].score
	})
	if len(candidates) > p.maxSentences {
		candidates = candidates[:p.maxSentences]
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].order < candidates[j].order
	})

	parts := make([]string, len(candidates))
	for i, c := range candidates {
		parts[i] = fmt.Sprintf("%s [SOURCE %s].", strings.TrimRight(c.text, "."), c.source)
	}
	return strings.Join(parts, " "), nil
}

type block struct {
	id   string
	body string
}

// parsePrompt splits a synthesizer prompt into its question and source blocks.
// Without source headers the whole prompt is one block and one question.
func parsePrompt(prompt string) (string, []block) {
	var (
		question string
		blocks   []block
		current  *block
	)
	for _, line := range strings.Split(prompt, "\n") {
		trimmed := strings.TrimSpace(line)
		if m := sourceHeader.FindStringSubmatch(trimmed); m != nil {
			blocks = append(blocks, block{id: m[1]})
			current = &blocks[len(blocks)-1]
			continue
		}
		if strings.HasPrefix(trimmed, "Question:") {
			question = strings.TrimSpace(strings.TrimPrefix(trimmed, "Question:"))
			current = nil
			continue
		}
		if current != nil && trimmed != "" {
			current.body += trimmed + " "
		}
	}
	if len(blocks) == 0 {
		return prompt, []block{{id: "1", body: prompt}}
	}
	if question == "" {
		question = prompt
	}
	return question, blocks
}
