package session

import (
	"errors"
	"strings"
)

// Roles recorded in a conversation.
const (
	RolePatient   = "patient"
	RoleAssistant = "assistant"
)

// ErrEmptySessionID is returned for operations without a session id.
var ErrEmptySessionID = errors.New("session id is required")

// Turn is one message of a conversation.
type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Store keeps conversation history per session id.
// Get of an unknown session returns no turns and no error.
type Store interface {
	Append(sessionID string, turn Turn) error
	Get(sessionID string) ([]Turn, error)
	Close() error
}

// Summary renders the last n turns as "P: ..." / "A: ..." lines.
// n <= 0 renders every turn.
func Summary(turns []Turn, n int) string {
	if n > 0 && len(turns) > n {
		turns = turns[len(turns)-n:]
	}
	lines := make([]string, 0, len(turns))
	for _, t := range turns {
		tag := "A"
		if t.Role == RolePatient {
			tag = "P"
		}
		lines = append(lines, tag+": "+t.Content)
	}
	return strings.Join(lines, "\n")
}
