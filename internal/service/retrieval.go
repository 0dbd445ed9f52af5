package service

import (
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/ternarybob/arbor"

	"medrag/internal/composer"
	"medrag/internal/docstore"
	"medrag/internal/domain"
	"medrag/internal/embedding"
	"medrag/internal/summarizer"
	"medrag/internal/vectorstore"
)

// IndexFactory returns a fresh, empty index backend for each load.
type IndexFactory func() vectorstore.Index

// EmbedderFactory returns the embedder for a new load. Corpus-fitted
// embedders must return a new instance each time; stateless ones may be shared.
type EmbedderFactory func() embedding.Embedder

// snapshot is one fully built corpus. It is never modified once published.
type snapshot struct {
	embedder embedding.Embedder
	store    *docstore.Store
	index    vectorstore.Index
	overview string
}

// Retriever answers questions against the most recently loaded corpus.
// Queries and Load may run concurrently: a query uses the snapshot that was
// current when it started.
type Retriever struct {
	newEmbedder          EmbedderFactory
	newIndex             IndexFactory
	summarizer           *summarizer.FrequencySummarizer
	overviewMaxSentences int
	logger               arbor.ILogger
	current              atomic.Pointer[snapshot]
}

// NewRetriever wires the retrieval pipeline. Until Load succeeds the
// retriever behaves as an empty corpus.
func NewRetriever(newEmbedder EmbedderFactory, newIndex IndexFactory, overviewMaxSentences int, logger arbor.ILogger) *Retriever {
	r := &Retriever{
		newEmbedder:          newEmbedder,
		newIndex:             newIndex,
		summarizer:           summarizer.NewFrequencySummarizer(),
		overviewMaxSentences: overviewMaxSentences,
		logger:               logger,
	}
	emb := newEmbedder()
	empty, err := docstore.New(nil, emb)
	if err != nil {
		logger.Warn().Err(err).Str("embedder", emb.Name()).Msg("Embedder rejected the empty corpus")
		empty = &docstore.Store{}
	}
	r.current.Store(&snapshot{embedder: emb, store: empty, index: emptyIndex{}})
	return r
}

// Load ingests dir into a new store and index and swaps it in.
// On error the previous corpus stays active.
func (r *Retriever) Load(dir string) error {
	emb := r.newEmbedder()
	store, err := docstore.Load(dir, emb, r.logger)
	if err != nil {
		return err
	}
	return r.publish(emb, store)
}

// Use swaps in a store built elsewhere; emb must be the embedder that encoded it.
func (r *Retriever) Use(emb embedding.Embedder, store *docstore.Store) error {
	return r.publish(emb, store)
}

func (r *Retriever) publish(emb embedding.Embedder, store *docstore.Store) error {
	idx := r.newIndex()
	if err := idx.Build(store.Documents(), store.Vectors()); err != nil {
		r.release(idx)
		return fmt.Errorf("build %s index: %w", idx.Name(), err)
	}
	// Unpunctuated corpora summarize to their full text; keep the overview to one snippet.
	overview := composer.Snippet(r.summarizer.Summarize(strings.Join(store.Texts(), "\n"), r.overviewMaxSentences))
	prev := r.current.Swap(&snapshot{embedder: emb, store: store, index: idx, overview: overview})
	r.logger.Info().
		Str("index", idx.Name()).
		Int("documents", store.Len()).
		Msg("Corpus published")
	if prev != nil {
		r.release(prev.index)
	}
	return nil
}

// release frees an index that no published snapshot refers to any more.
func (r *Retriever) release(idx vectorstore.Index) {
	if err := vectorstore.Close(idx); err != nil {
		r.logger.Warn().Err(err).Str("index", idx.Name()).Msg("Failed to release index")
	}
}

// Query encodes question, retrieves the topK closest documents and composes
// an answer with citations. topK is expected to be validated by the caller.
// Embedder and index failures are returned as errors.
func (r *Retriever) Query(question string, topK int) (domain.Answer, error) {
	snap := r.current.Load()
	hits, err := r.search(snap, question, topK)
	if err != nil {
		return domain.Answer{}, err
	}
	r.logger.Debug().
		Int("top_k", topK).
		Int("hits", len(hits)).
		Msg("Query served")
	return composer.Compose(question, hits), nil
}

// Search returns the ranked hits for question without composing an answer.
func (r *Retriever) Search(question string, topK int) ([]domain.Hit, error) {
	return r.search(r.current.Load(), question, topK)
}

func (r *Retriever) search(snap *snapshot, question string, topK int) ([]domain.Hit, error) {
	vec, err := snap.embedder.Embed(question)
	if err != nil {
		return nil, fmt.Errorf("embed question: %w", err)
	}
	hits, err := snap.index.Search(vec, topK)
	if err != nil {
		return nil, fmt.Errorf("search %s index: %w", snap.index.Name(), err)
	}
	return hits, nil
}

// Store returns the active document store.
func (r *Retriever) Store() *docstore.Store { return r.current.Load().store }

// Overview returns a short extractive summary of the active corpus.
func (r *Retriever) Overview() string { return r.current.Load().overview }

type emptyIndex struct{}

func (emptyIndex) Name() string { return "empty" }

func (emptyIndex) Build([]domain.Document, [][]float64) error { return nil }

func (emptyIndex) Search([]float64, int) ([]domain.Hit, error) { return []domain.Hit{}, nil }
