// Package textutil provides text helpers shared by the retrieval, scoring and
// comparison code.
package textutil

import (
	"crypto/sha256"
	"encoding/hex"
	"math"
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"
)

var (
	wordRegex       = regexp.MustCompile(`[a-z0-9]+(?:['-][a-z0-9]+)*`)
	whitespaceRegex = regexp.MustCompile(`\s+`)
)

// CosineSimilarity returns the cosine similarity of a and b in [-1, 1].
// Mismatched or empty vectors score 0.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dotProduct, normA, normB float64
	for i := range a {
		dotProduct += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dotProduct / (math.Sqrt(normA) * math.Sqrt(normB))
}

// NormalizeCosineSimilarity maps a cosine similarity onto [0, 1].
func NormalizeCosineSimilarity(similarity float64) float64 {
	return Clamp01((similarity + 1) / 2)
}

// Clamp01 limits v to [0, 1].
func Clamp01(v float64) float64 {
	switch {
	case math.IsNaN(v), v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}

// HashString returns the hex sha256 of s.
func HashString(s string) string {
	hash := sha256.Sum256([]byte(s))
	return hex.EncodeToString(hash[:])
}

// TruncateString cuts s to at most maxLen runes.
func TruncateString(s string, maxLen int) string {
	if maxLen < 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= maxLen {
		return s
	}
	runes := []rune(s)
	return string(runes[:maxLen])
}

// NormalizeQuery lowercases, trims and collapses internal whitespace.
func NormalizeQuery(s string) string {
	return whitespaceRegex.ReplaceAllString(strings.ToLower(strings.TrimSpace(s)), " ")
}

// Tokenize splits text into lowercase word tokens.
func Tokenize(text string) []string {
	return wordRegex.FindAllString(strings.ToLower(text), -1)
}

// CountWords returns the number of word tokens in text.
func CountWords(text string) int {
	return len(Tokenize(text))
}

// IsStopword reports whether word is a common English function word.
func IsStopword(word string) bool {
	_, ok := stopwords[word]
	return ok
}

// TermFrequencies counts non-stopword tokens of at least three characters.
func TermFrequencies(text string) map[string]int {
	freq := make(map[string]int)
	for _, tok := range Tokenize(text) {
		if len(tok) < 3 || IsStopword(tok) || isNumeric(tok) {
			continue
		}
		freq[tok]++
	}
	return freq
}

// SignificantTerms returns the terms of text occurring at least minFreq times.
func SignificantTerms(text string, minFreq int) map[string]int {
	if minFreq < 1 {
		minFreq = 1
	}
	freq := TermFrequencies(text)
	for term, n := range freq {
		if n < minFreq {
			delete(freq, term)
		}
	}
	return freq
}

// Jaccard returns |a ∩ b| / |a ∪ b| over the key sets. Two empty sets score 0.
func Jaccard[V any](a, b map[string]V) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 0
	}
	inter := 0
	for k := range a {
		if _, ok := b[k]; ok {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	return float64(inter) / float64(union)
}

// TopTerms returns at most n terms ordered by frequency desc, then term asc.
// A non-positive n returns all terms.
func TopTerms(freq map[string]int, n int) []string {
	terms := make([]string, 0, len(freq))
	for t := range freq {
		terms = append(terms, t)
	}
	sort.Slice(terms, func(i, j int) bool {
		if freq[terms[i]] != freq[terms[j]] {
			return freq[terms[i]] > freq[terms[j]]
		}
		return terms[i] < terms[j]
	})
	if n > 0 && len(terms) > n {
		terms = terms[:n]
	}
	return terms
}

// ContainsWord reports whether phrase occurs in text on word boundaries,
// ignoring case. Multi-word phrases match across single spaces.
func ContainsWord(text, phrase string) bool {
	return WordIndex(text, phrase) >= 0
}

// WordIndex returns the byte offset of the first whole-word occurrence of
// phrase in lowercase(text), or -1.
func WordIndex(text, phrase string) int {
	lower := strings.ToLower(text)
	p := strings.ToLower(strings.TrimSpace(phrase))
	if p == "" {
		return -1
	}
	offset := 0
	for {
		i := strings.Index(lower[offset:], p)
		if i < 0 {
			return -1
		}
		start := offset + i
		end := start + len(p)
		if isBoundary(lower, start-1) && isBoundary(lower, end) {
			return start
		}
		offset = start + 1
	}
}

// ReplaceWord replaces every whole-word occurrence of phrase in text with
// replacement, ignoring case.
func ReplaceWord(text, phrase, replacement string) string {
	p := strings.TrimSpace(phrase)
	if p == "" {
		return text
	}
	re := regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(p) + `\b`)
	return re.ReplaceAllLiteralString(text, replacement)
}

// ContainsString reports whether slice contains item.
func ContainsString(slice []string, item string) bool {
	for _, v := range slice {
		if v == item {
			return true
		}
	}
	return false
}

// UniqueStrings returns items without duplicates, keeping first occurrences.
func UniqueStrings(items []string) []string {
	seen := make(map[string]struct{}, len(items))
	out := make([]string, 0, len(items))
	for _, it := range items {
		if _, ok := seen[it]; ok {
			continue
		}
		seen[it] = struct{}{}
		out = append(out, it)
	}
	return out
}

func isBoundary(s string, i int) bool {
	if i < 0 || i >= len(s) {
		return true
	}
	c := s[i]
	return !(c >= 'a' && c <= 'z' || c >= '0' && c <= '9' || c == '_')
}

func isNumeric(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

var stopwords = map[string]struct{}{
	"a": {}, "about": {}, "above": {}, "after": {}, "again": {}, "against": {}, "all": {}, "also": {},
	"am": {}, "an": {}, "and": {}, "any": {}, "are": {}, "as": {}, "at": {}, "be": {}, "because": {},
	"been": {}, "before": {}, "being": {}, "below": {}, "between": {}, "both": {}, "but": {}, "by": {},
	"can": {}, "could": {}, "did": {}, "do": {}, "does": {}, "doing": {}, "down": {}, "during": {},
	"each": {}, "few": {}, "for": {}, "from": {}, "further": {}, "had": {}, "has": {}, "have": {},
	"having": {}, "he": {}, "her": {}, "here": {}, "hers": {}, "him": {}, "his": {}, "how": {},
	"i": {}, "if": {}, "in": {}, "into": {}, "is": {}, "it": {}, "its": {}, "itself": {}, "just": {},
	"me": {}, "more": {}, "most": {}, "my": {}, "no": {}, "nor": {}, "not": {}, "now": {}, "of": {},
	"off": {}, "on": {}, "once": {}, "only": {}, "or": {}, "other": {}, "our": {}, "ours": {}, "out": {},
	"over": {}, "own": {}, "same": {}, "she": {}, "should": {}, "so": {}, "some": {}, "such": {},
	"than": {}, "that": {}, "the": {}, "their": {}, "theirs": {}, "them": {}, "then": {}, "there": {},
	"these": {}, "they": {}, "this": {}, "those": {}, "through": {}, "to": {}, "too": {}, "under": {},
	"until": {}, "up": {}, "upon": {}, "very": {}, "was": {}, "we": {}, "were": {}, "what": {},
	"when": {}, "where": {}, "which": {}, "while": {}, "who": {}, "whom": {}, "why": {}, "will": {},
	"with": {}, "would": {}, "you": {}, "your": {}, "yours": {}, "herein": {}, "hereof": {},
	"hereto": {}, "hereby": {}, "thereof": {}, "therein": {}, "whereas": {},
}
