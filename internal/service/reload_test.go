package service

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"medrag/internal/composer"
	"medrag/internal/embedding"
	"medrag/internal/embedding/hashing"
	"medrag/internal/vectorstore"
	"medrag/internal/vectorstore/memory"
	"medrag/internal/vectorstore/qdrant"
)

// qdrantFake keeps uploaded points per collection and answers searches
// with every stored point in upload order.
type qdrantFake struct {
	mu          sync.Mutex
	collections map[string][]map[string]any
	failPoints  bool
}

func (f *qdrantFake) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	name, suffix, _ := strings.Cut(strings.TrimPrefix(r.URL.Path, "/collections/"), "/")
	points, exists := f.collections[name]
	switch {
	case r.Method == http.MethodDelete:
		if !exists {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		delete(f.collections, name)
	case r.Method == http.MethodPut && suffix == "":
		f.collections[name] = nil
	case r.Method == http.MethodPut && suffix == "points":
		if f.failPoints || !exists {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		var body struct {
			Points []map[string]any `json:"points"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		f.collections[name] = body.Points
	case r.Method == http.MethodPost && suffix == "points/search":
		if !exists {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		result := make([]map[string]any, 0, len(points))
		for _, p := range points {
			result = append(result, map[string]any{"score": 1.0, "payload": p["payload"]})
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"result": result})
	default:
		w.WriteHeader(http.StatusBadRequest)
	}
}

func (f *qdrantFake) setFailPoints(fail bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failPoints = fail
}

func (f *qdrantFake) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.collections)
}

func TestFailedQdrantReloadKeepsServingPreviousCorpus(t *testing.T) {
	fake := &qdrantFake{collections: map[string][]map[string]any{}}
	srv := httptest.NewServer(fake)
	defer srv.Close()

	emb := hashing.NewEmbedder(0)
	r := NewRetriever(
		func() embedding.Embedder { return emb },
		func() vectorstore.Index { return qdrant.NewIndex(qdrant.Config{URL: srv.URL, Collection: "guides"}) },
		3,
		arbor.NewLogger(),
	)
	require.NoError(t, r.Load(corpus(t, map[string]string{"a.txt": "fever cough"})))
	ans, err := r.Query("cough", 1)
	require.NoError(t, err)
	require.Len(t, ans.Citations, 1)

	fake.setFailPoints(true)
	err = r.Load(corpus(t, map[string]string{"b.txt": "broken bone", "c.txt": "sprained ankle"}))
	require.Error(t, err)
	assert.Equal(t, 1, r.Store().Len())
	assert.Equal(t, 1, fake.count())

	ans, err = r.Query("cough", 1)
	require.NoError(t, err)
	require.Len(t, ans.Citations, 1)
	assert.Equal(t, "a.txt", ans.Citations[0].DocumentID)
}

func TestQdrantReloadReleasesPreviousCollection(t *testing.T) {
	fake := &qdrantFake{collections: map[string][]map[string]any{}}
	srv := httptest.NewServer(fake)
	defer srv.Close()

	emb := hashing.NewEmbedder(0)
	r := NewRetriever(
		func() embedding.Embedder { return emb },
		func() vectorstore.Index { return qdrant.NewIndex(qdrant.Config{URL: srv.URL, Collection: "guides"}) },
		3,
		arbor.NewLogger(),
	)
	require.NoError(t, r.Load(corpus(t, map[string]string{"a.txt": "fever cough"})))
	require.NoError(t, r.Load(corpus(t, map[string]string{"b.txt": "broken bone", "c.txt": "sprained ankle"})))
	assert.Equal(t, 1, fake.count())

	ans, err := r.Query("bone", 4)
	require.NoError(t, err)
	assert.Len(t, ans.Citations, 2)
}

type emptyCorpusRejecter struct{ *hashing.Embedder }

func (emptyCorpusRejecter) Prepare(corpus []string) error {
	if len(corpus) == 0 {
		return errors.New("empty corpus")
	}
	return nil
}

func TestNewRetrieverSurvivesPrepareFailure(t *testing.T) {
	r := NewRetriever(
		func() embedding.Embedder { return emptyCorpusRejecter{hashing.NewEmbedder(0)} },
		func() vectorstore.Index { return memory.NewIndex() },
		3,
		arbor.NewLogger(),
	)
	require.NotNil(t, r.Store())
	assert.Equal(t, 0, r.Store().Len())
	ans, err := r.Query("fever", 2)
	require.NoError(t, err)
	assert.Equal(t, composer.FallbackAnswer, ans.Text)

	require.NoError(t, r.Load(corpus(t, map[string]string{"a.txt": "fever"})))
	assert.Equal(t, 1, r.Store().Len())
}

func TestOverviewIsCapped(t *testing.T) {
	long := strings.Repeat("fever cough bone ", 100)
	r := newHashingRetriever()
	require.NoError(t, r.Load(corpus(t, map[string]string{"a.txt": long, "b.txt": "line one\nline two"})))
	assert.Equal(t, composer.SnippetLength, len([]rune(r.Overview())))
	assert.NotContains(t, r.Overview(), "\n")
}
