package qdrant

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"medrag/internal/domain"
)

type fakeServer struct {
	mu          sync.Mutex
	requests    []string
	collections map[string]bool
	created     map[string]any
	points      []map[string]any
	search      map[string]any
	failPoints  bool
}

func newFakeServer() *fakeServer {
	return &fakeServer{collections: map[string]bool{}}
}

func (f *fakeServer) setFailPoints(fail bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failPoints = fail
}

func (f *fakeServer) live() map[string]bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[string]bool, len(f.collections))
	for k, v := range f.collections {
		out[k] = v
	}
	return out
}

func (f *fakeServer) seen() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.requests...)
}

func (f *fakeServer) handler(t *testing.T) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.requests = append(f.requests, r.Method+" "+r.URL.Path)
		assert.Equal(t, "k", r.Header.Get("api-key"))
		rest, ok := strings.CutPrefix(r.URL.Path, "/collections/")
		if !ok {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		name, suffix, _ := strings.Cut(rest, "/")
		switch {
		case r.Method == http.MethodDelete && suffix == "":
			if !f.collections[name] {
				w.WriteHeader(http.StatusNotFound)
				return
			}
			delete(f.collections, name)
		case r.Method == http.MethodPut && suffix == "":
			require.NoError(t, json.NewDecoder(r.Body).Decode(&f.created))
			f.collections[name] = true
		case r.Method == http.MethodPut && suffix == "points":
			if f.failPoints {
				w.WriteHeader(http.StatusInternalServerError)
				return
			}
			var body struct {
				Points []map[string]any `json:"points"`
			}
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			f.points = body.Points
		case r.Method == http.MethodPost && suffix == "points/search":
			if !f.collections[name] {
				w.WriteHeader(http.StatusNotFound)
				return
			}
			require.NoError(t, json.NewDecoder(r.Body).Decode(&f.search))
			_, _ = w.Write([]byte(`{"result":[
				{"score":0.5,"payload":{"document_id":"c","text":"tc","source":"sc","position":2}},
				{"score":0.9,"payload":{"document_id":"b","text":"tb","source":"sb","position":1}},
				{"score":0.5,"payload":{"document_id":"a","text":"ta","source":"sa","position":0}}
			]}`))
		default:
			w.WriteHeader(http.StatusBadRequest)
		}
	}
}

func TestBuildAndSearch(t *testing.T) {
	fake := newFakeServer()
	srv := httptest.NewServer(fake.handler(t))
	defer srv.Close()

	idx := NewIndex(Config{URL: srv.URL, APIKey: "k", Collection: "guides"})
	docs := []domain.Document{{ID: "a"}, {ID: "b"}, {ID: "c"}}
	require.NoError(t, idx.Build(docs, [][]float64{{1, 0}, {0, 1}, {1, 1}}))

	name := idx.Collection()
	require.True(t, strings.HasPrefix(name, "guides_"))
	_, err := uuid.Parse(strings.TrimPrefix(name, "guides_"))
	require.NoError(t, err)
	assert.Equal(t, []string{
		"PUT /collections/" + name,
		"PUT /collections/" + name + "/points",
	}, fake.seen())
	assert.Equal(t, float64(2), fake.created["vectors"].(map[string]any)["size"])
	require.Len(t, fake.points, 3)
	assert.Equal(t, idx.PointID(0), fake.points[0]["id"])

	hits, err := idx.Search([]float64{1, 0}, 3)
	require.NoError(t, err)
	assert.Equal(t, float64(3), fake.search["limit"])
	var ids []string
	for _, h := range hits {
		ids = append(ids, h.DocumentID)
	}
	assert.Equal(t, []string{"b", "a", "c"}, ids)
	assert.Equal(t, "sb", hits[0].Source)
	assert.Equal(t, "tb", hits[0].Text)
}

func TestBuildsUseSeparateCollections(t *testing.T) {
	fake := newFakeServer()
	srv := httptest.NewServer(fake.handler(t))
	defer srv.Close()

	docs := []domain.Document{{ID: "a"}}
	first := NewIndex(Config{URL: srv.URL, APIKey: "k", Collection: "guides"})
	second := NewIndex(Config{URL: srv.URL, APIKey: "k", Collection: "guides"})
	require.NoError(t, first.Build(docs, [][]float64{{1}}))
	require.NoError(t, second.Build(docs, [][]float64{{1}}))
	assert.NotEqual(t, first.Collection(), second.Collection())

	_, err := first.Search([]float64{1}, 1)
	require.NoError(t, err)

	require.NoError(t, first.Close())
	assert.False(t, fake.live()[first.Collection()])
	assert.True(t, fake.live()[second.Collection()])
	_, err = second.Search([]float64{1}, 1)
	assert.NoError(t, err)
	_, err = first.Search([]float64{1}, 1)
	assert.Error(t, err)
}

func TestFailedUploadDropsNewCollection(t *testing.T) {
	fake := newFakeServer()
	srv := httptest.NewServer(fake.handler(t))
	defer srv.Close()

	live := NewIndex(Config{URL: srv.URL, APIKey: "k", Collection: "guides"})
	require.NoError(t, live.Build([]domain.Document{{ID: "a"}}, [][]float64{{1}}))

	fake.setFailPoints(true)
	broken := NewIndex(Config{URL: srv.URL, APIKey: "k", Collection: "guides"})
	assert.Error(t, broken.Build([]domain.Document{{ID: "b"}}, [][]float64{{1}}))
	assert.Empty(t, broken.Collection())
	assert.Equal(t, map[string]bool{live.Collection(): true}, fake.live())

	hits, err := live.Search([]float64{1}, 1)
	require.NoError(t, err)
	assert.NotEmpty(t, hits)
	assert.NoError(t, broken.Close())
}

func TestRebuildDropsPreviousCollection(t *testing.T) {
	fake := newFakeServer()
	srv := httptest.NewServer(fake.handler(t))
	defer srv.Close()

	idx := NewIndex(Config{URL: srv.URL, APIKey: "k", Collection: "guides"})
	require.NoError(t, idx.Build([]domain.Document{{ID: "a"}}, [][]float64{{1}}))
	old := idx.Collection()
	require.NoError(t, idx.Build([]domain.Document{{ID: "b"}}, [][]float64{{1}}))
	assert.NotEqual(t, old, idx.Collection())
	assert.Equal(t, map[string]bool{idx.Collection(): true}, fake.live())
}

func TestSearchEmptyIndexSkipsRequest(t *testing.T) {
	fake := newFakeServer()
	srv := httptest.NewServer(fake.handler(t))
	defer srv.Close()

	idx := NewIndex(Config{URL: srv.URL, APIKey: "k", Collection: "guides"})
	require.NoError(t, idx.Build(nil, nil))
	hits, err := idx.Search([]float64{1}, 4)
	require.NoError(t, err)
	assert.Empty(t, hits)
	assert.Empty(t, fake.seen())
	assert.NoError(t, idx.Close())
}

func TestPointIDDeterministic(t *testing.T) {
	a := NewIndex(Config{Collection: "guides"})
	b := NewIndex(Config{Collection: "guides"})
	assert.Equal(t, a.PointID(3), b.PointID(3))
	assert.NotEqual(t, a.PointID(3), a.PointID(4))
	_, err := uuid.Parse(a.PointID(0))
	assert.NoError(t, err)
}

func TestBuildServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	idx := NewIndex(Config{URL: srv.URL, Collection: "guides"})
	assert.Error(t, idx.Build([]domain.Document{{ID: "a"}}, [][]float64{{1}}))
	assert.Empty(t, idx.Collection())
}
