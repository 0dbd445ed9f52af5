package docstore

import (
	"fmt"
	"os"

	"github.com/ternarybob/arbor"

	"medrag/internal/domain"
	"medrag/internal/embedding"
)

// Store holds the ingested corpus and the vector of every document.
// documents[i] is always paired with vectors[i]. A Store is never mutated
// after construction, so it can be shared by concurrent readers.
// The zero Store is an empty corpus.
type Store struct {
	dir       string
	embedder  string
	dimension int
	documents []domain.Document
	vectors   [][]float64
}

// Load ingests every supported file directly under dir and encodes it with emb.
// The directory is created when missing. Unreadable or malformed files are
// logged and skipped; only a failure to list the directory or to encode a
// document is returned.
func Load(dir string, emb embedding.Embedder, logger arbor.ILogger) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create docs dir %s: %w", dir, err)
	}
	docs, err := readDir(dir, logger)
	if err != nil {
		return nil, err
	}
	s, err := New(docs, emb)
	if err != nil {
		return nil, err
	}
	s.dir = dir
	logger.Info().
		Str("dir", dir).
		Str("embedder", emb.Name()).
		Int("documents", s.Len()).
		Int("dimension", s.dimension).
		Msg("Document store loaded")
	return s, nil
}

// New builds a store from documents already in memory.
func New(docs []domain.Document, emb embedding.Embedder) (*Store, error) {
	texts := make([]string, len(docs))
	for i := range docs {
		texts[i] = docs[i].Text
	}
	if err := embedding.Prepare(emb, texts); err != nil {
		return nil, fmt.Errorf("prepare %s embedder: %w", emb.Name(), err)
	}
	s := &Store{
		embedder:  emb.Name(),
		documents: make([]domain.Document, 0, len(docs)),
		vectors:   make([][]float64, 0, len(docs)),
	}
	for _, doc := range docs {
		if err := s.add(doc, emb); err != nil {
			return nil, err
		}
	}
	s.dimension = emb.Dimension()
	return s, nil
}

func (s *Store) add(doc domain.Document, emb embedding.Embedder) error {
	vec, err := emb.Embed(doc.Text)
	if err != nil {
		return fmt.Errorf("embed document %s: %w", doc.ID, err)
	}
	s.documents = append(s.documents, doc)
	s.vectors = append(s.vectors, vec)
	return nil
}

// Len returns the number of documents.
func (s *Store) Len() int { return len(s.documents) }

// Dir returns the directory the store was loaded from, empty for New.
func (s *Store) Dir() string { return s.dir }

// Embedder returns the name of the embedder that produced the vectors.
func (s *Store) Embedder() string { return s.embedder }

// Dimension returns the vector length reported by the embedder.
func (s *Store) Dimension() int { return s.dimension }

// Document returns the i-th document.
func (s *Store) Document(i int) domain.Document { return s.documents[i] }

// Vector returns a copy of the i-th vector.
func (s *Store) Vector(i int) []float64 { return append([]float64(nil), s.vectors[i]...) }

// Documents returns a copy of the documents in store order.
func (s *Store) Documents() []domain.Document {
	return append([]domain.Document(nil), s.documents...)
}

// Vectors returns a copy of the vectors in store order.
func (s *Store) Vectors() [][]float64 {
	out := make([][]float64, len(s.vectors))
	for i := range s.vectors {
		out[i] = append([]float64(nil), s.vectors[i]...)
	}
	return out
}

// Texts returns the document texts in store order.
func (s *Store) Texts() []string {
	out := make([]string, len(s.documents))
	for i := range s.documents {
		out[i] = s.documents[i].Text
	}
	return out
}
