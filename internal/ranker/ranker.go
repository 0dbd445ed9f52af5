package ranker

import (
	"math"
	"sort"

	"medrag/internal/domain"
)

// Epsilon is added to both norms so that all-zero vectors score 0 instead of NaN.
const Epsilon = 1e-9

// Cosine returns dot(q, d) / ((|q|+eps) * (|d|+eps)).
// Vectors of different length are compared over their common prefix.
func Cosine(q, d []float64) float64 {
	return dot(q, d) / ((norm(q) + Epsilon) * (norm(d) + Epsilon))
}

// Rank scores query against every vector and returns at most k hits ordered
// by descending score. Equal scores keep the store order of docs.
// docs[i] must be the document encoded as vectors[i].
// k is not bounded here; callers validate it.
func Rank(query []float64, docs []domain.Document, vectors [][]float64, k int) []domain.Hit {
	n := len(docs)
	if len(vectors) < n {
		n = len(vectors)
	}
	hits := make([]domain.Hit, n)
	for i := 0; i < n; i++ {
		hits[i] = domain.HitFor(docs[i], Cosine(query, vectors[i]))
	}
	SortHits(hits)
	if k < 0 {
		k = 0
	}
	if k < len(hits) {
		hits = hits[:k]
	}
	return hits
}

// SortHits orders hits by descending score, stable for ties.
func SortHits(hits []domain.Hit) {
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
}

func dot(a, b []float64) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	sum := 0.0
	for i := 0; i < n; i++ {
		sum += a[i] * b[i]
	}
	return sum
}

func norm(v []float64) float64 {
	sum := 0.0
	for _, x := range v {
		sum += x * x
	}
	return math.Sqrt(sum)
}
