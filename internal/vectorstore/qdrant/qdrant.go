package qdrant

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/google/uuid"

	"medrag/internal/domain"
)

// Index is a minimal REST client to Qdrant.
// Every Build writes a new collection named <collection>_<uuid>, so an index
// that is still being searched is never modified by a later build. Close
// drops the collection once the index is no longer needed.
type Index struct {
	url        string
	apiKey     string
	base       string
	collection string
	client     *http.Client
	count      int
}

// Config contains connection details for a Qdrant collection.
// Collection is the prefix of the per-build collection names.
type Config struct {
	URL        string
	APIKey     string
	Collection string
	Timeout    time.Duration
}

// NewIndex creates a Qdrant-backed index. Nothing is sent until Build.
func NewIndex(cfg Config) *Index {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	base := cfg.Collection
	if base == "" {
		base = "medrag"
	}
	return &Index{
		url:    cfg.URL,
		apiKey: cfg.APIKey,
		base:   base,
		client: &http.Client{Timeout: timeout},
	}
}

// Name returns the identifier of this backend.
func (s *Index) Name() string { return "qdrant" }

// Collection returns the collection written by the last successful Build,
// empty when nothing was created.
func (s *Index) Collection() string { return s.collection }

// PointID returns the deterministic point id for the document at position i.
func (s *Index) PointID(i int) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(s.base+"#"+strconv.Itoa(i))).String()
}

// Build uploads one point per document into a fresh collection sized for the
// vector dimension. A collection from an earlier Build of this index is
// dropped first, and the new one is dropped again if the upload fails.
func (s *Index) Build(docs []domain.Document, vectors [][]float64) error {
	if len(docs) != len(vectors) {
		return errors.New("documents and vectors length mismatch")
	}
	dimension := 0
	if len(vectors) > 0 {
		dimension = len(vectors[0])
		if dimension == 0 {
			return errors.New("qdrant: zero-dimension vectors")
		}
	}
	for i := range vectors {
		if len(vectors[i]) != dimension {
			return fmt.Errorf("vector dimension mismatch: %d vs %d", len(vectors[i]), dimension)
		}
	}
	if s.collection != "" {
		if err := s.drop(s.collection); err != nil {
			return err
		}
		s.collection, s.count = "", 0
	}
	if len(docs) == 0 {
		return nil
	}

	name := s.base + "_" + uuid.NewString()
	body := map[string]any{
		"vectors": map[string]any{
			"size":     dimension,
			"distance": "Cosine",
		},
	}
	if err := s.send(http.MethodPut, s.collectionURL(name, ""), body, nil); err != nil {
		return s.abandon(name, err)
	}
	points := make([]map[string]any, len(docs))
	for i := range docs {
		points[i] = map[string]any{
			"id":     s.PointID(i),
			"vector": vectors[i],
			"payload": map[string]any{
				"document_id": docs[i].ID,
				"text":        docs[i].Text,
				"source":      docs[i].Source,
				"position":    i,
			},
		}
	}
	if err := s.send(http.MethodPut, s.collectionURL(name, "/points?wait=true"), map[string]any{"points": points}, nil); err != nil {
		return s.abandon(name, err)
	}
	s.collection, s.count = name, len(docs)
	return nil
}

// Close drops the collection of the last Build. Later searches fail with a
// server error.
func (s *Index) Close() error {
	if s.collection == "" {
		return nil
	}
	return s.drop(s.collection)
}

// abandon drops a partially built collection and returns the build error.
func (s *Index) abandon(name string, err error) error {
	if dropErr := s.drop(name); dropErr != nil {
		return fmt.Errorf("%w (cleanup of %s: %v)", err, name, dropErr)
	}
	return err
}

// Search asks Qdrant for the topK nearest points. Results are re-sorted so
// equal scores follow build order.
func (s *Index) Search(vector []float64, topK int) ([]domain.Hit, error) {
	if s.count == 0 || topK <= 0 {
		return []domain.Hit{}, nil
	}
	req := map[string]any{
		"vector":       vector,
		"limit":        topK,
		"with_payload": true,
	}
	var resp struct {
		Result []struct {
			Score   float64 `json:"score"`
			Payload struct {
				DocumentID string `json:"document_id"`
				Text       string `json:"text"`
				Source     string `json:"source"`
				Position   int    `json:"position"`
			} `json:"payload"`
		} `json:"result"`
	}
	if err := s.send(http.MethodPost, s.collectionURL(s.collection, "/points/search"), req, &resp); err != nil {
		return nil, err
	}
	sort.SliceStable(resp.Result, func(i, j int) bool {
		a, b := resp.Result[i], resp.Result[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		return a.Payload.Position < b.Payload.Position
	})
	hits := make([]domain.Hit, 0, len(resp.Result))
	for _, r := range resp.Result {
		hits = append(hits, domain.Hit{
			DocumentID: r.Payload.DocumentID,
			Text:       r.Payload.Text,
			Source:     r.Payload.Source,
			Score:      r.Score,
		})
	}
	return hits, nil
}

func (s *Index) collectionURL(name, suffix string) string {
	return fmt.Sprintf("%s/collections/%s%s", s.url, name, suffix)
}

// drop deletes a collection; a missing collection is not an error.
func (s *Index) drop(name string) error {
	req, err := http.NewRequest(http.MethodDelete, s.collectionURL(name, ""), nil)
	if err != nil {
		return err
	}
	if s.apiKey != "" {
		req.Header.Set("api-key", s.apiKey)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("qdrant DELETE %s: %w", name, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 && resp.StatusCode != http.StatusNotFound {
		return fmt.Errorf("qdrant DELETE %s failed: %s", name, resp.Status)
	}
	return nil
}

func (s *Index) send(method, url string, body any, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequest(method, url, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if s.apiKey != "" {
		req.Header.Set("api-key", s.apiKey)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("qdrant %s %s failed: %s", method, url, resp.Status)
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}
