package composer

import (
	"fmt"
	"strings"

	"medrag/internal/domain"
)

// FallbackAnswer is returned when no document matched the question.
const FallbackAnswer = "No relevant guidance found in the local knowledge base. Please consult up-to-date clinical guidelines."

// SnippetLength is the number of characters of each hit quoted in the answer.
const SnippetLength = 300

const (
	answerHeader = "Based on retrieved guidance, here is a synthesized recommendation:\n"
	answerFooter = "- Please verify with current clinical protocols."
)

// Compose synthesizes an answer from hits in the order given and emits one
// citation per hit with the same 1-based rank. It never reorders hits.
func Compose(question string, hits []domain.Hit) domain.Answer {
	if len(hits) == 0 {
		return domain.Answer{Text: FallbackAnswer, Citations: []domain.Citation{}}
	}
	parts := make([]string, 0, len(hits))
	citations := make([]domain.Citation, 0, len(hits))
	for i, h := range hits {
		rank := i + 1
		parts = append(parts, fmt.Sprintf("[%d] %s...", rank, Snippet(h.Text)))
		citations = append(citations, domain.Citation{
			Rank:       rank,
			DocumentID: h.DocumentID,
			Source:     h.Source,
			Score:      h.Score,
		})
	}
	var b strings.Builder
	b.WriteString(answerHeader)
	b.WriteString("- Key points: ")
	b.WriteString(strings.Join(parts, " "))
	b.WriteString("\n")
	b.WriteString(answerFooter)
	return domain.Answer{Text: b.String(), Citations: citations}
}

// Snippet returns the first SnippetLength characters of text with newlines
// replaced by spaces.
func Snippet(text string) string {
	n := 0
	for i := range text {
		if n == SnippetLength {
			text = text[:i]
			break
		}
		n++
	}
	return strings.ReplaceAll(text, "\n", " ")
}
