package hashing

// DefaultDimension is the vector length used when none is configured.
const DefaultDimension = 128

// Embedder is a cheap deterministic character-hashing embedder.
// Each code point at position i adds (code mod 31) / 100 into slot i mod D.
// It is a placeholder for a real embedding model and never fails.
type Embedder struct {
	dimension int
}

// NewEmbedder creates a hashing embedder of the given dimension.
// A non-positive dimension falls back to DefaultDimension.
func NewEmbedder(dimension int) *Embedder {
	if dimension <= 0 {
		dimension = DefaultDimension
	}
	return &Embedder{dimension: dimension}
}

// Name returns the identifier of this embedder implementation.
func (e *Embedder) Name() string { return "hashing" }

// Dimension returns the dimensionality of the produced embedding vectors.
func (e *Embedder) Dimension() int { return e.dimension }

// Embed computes the hashing embedding for the given text.
func (e *Embedder) Embed(text string) ([]float64, error) {
	return e.Encode(text), nil
}

// Encode is Embed without the error return.
func (e *Embedder) Encode(text string) []float64 {
	vec := make([]float64, e.dimension)
	i := 0
	for _, r := range text {
		vec[i%e.dimension] += float64(int(r)%31) / 100.0
		i++
	}
	return vec
}
