package domain

// Document is a single unit of guidance loaded from the corpus directory.
type Document struct {
	ID     string
	Text   string
	Source string
}

// Hit is a document matched by a query together with its similarity score.
type Hit struct {
	DocumentID string
	Text       string
	Source     string
	Score      float64
}

// Citation references the document backing one part of a composed answer.
// Rank is 1-based and follows the order of the ranked hits.
type Citation struct {
	Rank       int     `json:"rank"`
	DocumentID string  `json:"id"`
	Source     string  `json:"source"`
	Score      float64 `json:"score"`
}

// Answer is the synthesized text for a question plus its citations.
type Answer struct {
	Text      string     `json:"answer"`
	Citations []Citation `json:"citations"`
}

// HitFor builds the hit for a document with the given score.
func HitFor(doc Document, score float64) Hit {
	return Hit{DocumentID: doc.ID, Text: doc.Text, Source: doc.Source, Score: score}
}
