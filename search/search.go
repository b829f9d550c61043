// Package search ranks knowledge-base chunks against a query embedding
// by cosine similarity. The scan is brute force over an in-memory
// collection, which is fine at the few-thousand-chunk scale this serves.
package search

import (
	"math"
	"sort"
)

// Chunk is one stored knowledge-base fragment with its embedding.
type Chunk struct {
	Text     string
	Vector   []float64
	Metadata map[string]string
}

// Match is a ranked search result.
type Match struct {
	Text       string
	Similarity float64
	Metadata   map[string]string
}

// Collection holds chunks in insertion order. It is built once at
// startup and read-only afterwards, so no locking.
type Collection struct {
	chunks []Chunk
}

func NewCollection() *Collection {
	return &Collection{}
}

func (c *Collection) Add(chunk Chunk) {
	c.chunks = append(c.chunks, chunk)
}

func (c *Collection) Len() int {
	return len(c.chunks)
}

// TopK returns up to limit chunks ranked by descending cosine
// similarity to the query. Ties keep insertion order (stable sort).
func (c *Collection) TopK(query []float64, limit int) []Match {
	if limit <= 0 || len(c.chunks) == 0 || len(query) == 0 {
		return nil
	}

	matches := make([]Match, 0, len(c.chunks))
	for _, chunk := range c.chunks {
		matches = append(matches, Match{
			Text:       chunk.Text,
			Similarity: cosine(query, chunk.Vector),
			Metadata:   chunk.Metadata,
		})
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Similarity > matches[j].Similarity
	})

	if len(matches) > limit {
		matches = matches[:limit]
	}
	return matches
}

func cosine(a, b []float64) float64 {
	if len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
