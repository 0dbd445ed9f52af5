package memory

import (
	"errors"
	"fmt"

	"medrag/internal/domain"
	"medrag/internal/ranker"
)

// Index is an in-memory linear-scan cosine index. Build must complete before
// Search is called; afterwards the index is read-only and safe for concurrent searches.
type Index struct {
	docs    []domain.Document
	vectors [][]float64
}

// NewIndex returns an empty index.
func NewIndex() *Index { return &Index{} }

// Name returns the identifier of this backend.
func (s *Index) Name() string { return "memory" }

// Build copies the corpus into the index.
func (s *Index) Build(docs []domain.Document, vectors [][]float64) error {
	if len(docs) != len(vectors) {
		return errors.New("documents and vectors length mismatch")
	}
	for i := 1; i < len(vectors); i++ {
		if len(vectors[i]) != len(vectors[0]) {
			return fmt.Errorf("vector dimension mismatch: %d vs %d", len(vectors[i]), len(vectors[0]))
		}
	}
	s.docs = append([]domain.Document(nil), docs...)
	s.vectors = append([][]float64(nil), vectors...)
	return nil
}

// Search scans every stored vector.
func (s *Index) Search(vector []float64, topK int) ([]domain.Hit, error) {
	return ranker.Rank(vector, s.docs, s.vectors, topK), nil
}
