package safety

import "strings"

// Categories attached to a disclaimer.
const (
	CategoryGeneral = "GENERAL"
	CategoryUrgent  = "URGENT"
)

var urgentKeywords = []string{
	"suicide", "kill myself", "overdose", "chest pain", "severe bleeding", "stroke", "can't breathe",
	"cannot breathe", "anaphylaxis", "heart attack", "unconscious", "fainted", "poisoned",
}

// Check flags text that mentions a potentially urgent situation.
// It returns the matching category, empty when nothing is flagged.
func Check(text string) (bool, string) {
	t := strings.ToLower(text)
	for _, kw := range urgentKeywords {
		if strings.Contains(t, kw) {
			return true, CategoryUrgent
		}
	}
	return false, ""
}

// Disclaimer accompanies every agent response.
type Disclaimer struct {
	Disclaimer string `json:"disclaimer"`
	Privacy    string `json:"privacy"`
	Category   string `json:"category"`
}

// NewDisclaimer returns the standard disclaimer; an empty category means GENERAL.
func NewDisclaimer(category string) Disclaimer {
	if category == "" {
		category = CategoryGeneral
	}
	return Disclaimer{
		Disclaimer: "This service does not provide medical diagnosis. " +
			"Always consult a qualified healthcare professional. " +
			"In emergencies, call local emergency services.",
		Privacy:  "No personally identifiable information is stored. Session notes are de-identified.",
		Category: category,
	}
}
