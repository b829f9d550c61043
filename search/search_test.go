package search

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func collectionOf(vectors ...[]float64) *Collection {
	c := NewCollection()
	for i, v := range vectors {
		c.Add(Chunk{Text: string(rune('a' + i)), Vector: v})
	}
	return c
}

func TestTopKRanksByCosineSimilarity(t *testing.T) {
	c := collectionOf(
		[]float64{1, 0},
		[]float64{0, 1},
		[]float64{0.9, 0.1},
	)

	matches := c.TopK([]float64{1, 0}, 2)
	require.Len(t, matches, 2)

	assert.Equal(t, "a", matches[0].Text)
	assert.Equal(t, "c", matches[1].Text)
	assert.InDelta(t, 1.0, matches[0].Similarity, 1e-9)
	assert.Greater(t, matches[1].Similarity, 0.9)
}

func TestTopKTiesKeepInsertionOrder(t *testing.T) {
	c := collectionOf(
		[]float64{0, 1},
		[]float64{0, 2}, // same direction, same cosine
		[]float64{1, 0},
	)

	matches := c.TopK([]float64{0, 1}, 3)
	require.Len(t, matches, 3)
	assert.Equal(t, "a", matches[0].Text)
	assert.Equal(t, "b", matches[1].Text)
	assert.Equal(t, "c", matches[2].Text)
}

func TestTopKLimitLargerThanCollection(t *testing.T) {
	c := collectionOf([]float64{1, 0})
	assert.Len(t, c.TopK([]float64{1, 0}, 10), 1)
}

func TestTopKEmptyInputs(t *testing.T) {
	c := collectionOf([]float64{1, 0})
	assert.Nil(t, c.TopK(nil, 5))
	assert.Nil(t, c.TopK([]float64{1, 0}, 0))
	assert.Nil(t, NewCollection().TopK([]float64{1, 0}, 5))
}

func TestCosineMismatchedOrZeroVectors(t *testing.T) {
	assert.Zero(t, cosine([]float64{1, 0}, []float64{1}))
	assert.Zero(t, cosine([]float64{0, 0}, []float64{1, 0}))
}
