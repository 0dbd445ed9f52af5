package embedding

// Embedder converts free text into a fixed-length numeric vector.
// Embed must be deterministic for a given instance: the same text always
// yields the same vector.
type Embedder interface {
	Name() string
	Dimension() int
	Embed(text string) ([]float64, error)
}

// Preparer is implemented by embedders that fit themselves to the corpus
// before any text is embedded.
type Preparer interface {
	Prepare(corpus []string) error
}

// Prepare fits e to corpus when e supports it.
func Prepare(e Embedder, corpus []string) error {
	if p, ok := e.(Preparer); ok {
		return p.Prepare(corpus)
	}
	return nil
}
