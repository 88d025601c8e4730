package vectormath

import (
	"math"
	"sort"
)

// Scored pairs an index into some vector collection with its similarity score.
type Scored struct {
	Index int
	Score float64
}

// CosineSimilarity calculates cosine similarity between two vectors.
// Vectors of different lengths and zero vectors score 0.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}

	var dotProduct float64
	var normA float64
	var normB float64

	for i := 0; i < len(a); i++ {
		dotProduct += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	// Handle zero vectors
	if normA == 0 || normB == 0 {
		return 0
	}

	return dotProduct / (math.Sqrt(normA) * math.Sqrt(normB))
}

// RankDescending scores the query vector against every candidate and returns
// all candidates ordered by descending score. Ties keep candidate order, so
// results are deterministic for a fixed input collection.
func RankDescending(query []float32, candidates [][]float32) []Scored {
	scored := make([]Scored, len(candidates))
	for i, candidate := range candidates {
		scored[i] = Scored{Index: i, Score: CosineSimilarity(query, candidate)}
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})

	return scored
}
