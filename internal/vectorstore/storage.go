package vectorstore

import (
	"io"

	"medrag/internal/domain"
)

// Index is a similarity search backend over an ingested corpus.
// Build replaces any previous content; docs[i] is the document behind vectors[i].
// Search returns at most topK hits ordered by descending score, ties in
// build order. An empty index yields no hits and no error.
type Index interface {
	Name() string
	Build(docs []domain.Document, vectors [][]float64) error
	Search(vector []float64, topK int) ([]domain.Hit, error)
}

// Close releases resources held by idx when it implements io.Closer.
// Indexes backed by external services use it to drop their server-side data.
func Close(idx Index) error {
	if c, ok := idx.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
