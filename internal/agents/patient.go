package agents

import (
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/ternarybob/arbor"

	"medrag/internal/notes"
	"medrag/internal/safety"
	"medrag/internal/session"
)

// DefaultHistoryTurns is how many recent turns go into the saved session summary.
const DefaultHistoryTurns = 20

const maxNotedMessage = 1000

// PatientReplyText is the structured clarification sent for every patient message.
const PatientReplyText = "Thank you for sharing. To help further, please clarify:\n" +
	"- Onset and duration of symptoms\n" +
	"- Severity (mild/moderate/severe)\n" +
	"- Associated factors (fever, cough, chest pain, etc.)\n" +
	"- Relevant history and medications\n" +
	"I will maintain your privacy and will not store personally identifiable information."

// NotesSaver persists de-identified notes for a session.
type NotesSaver interface {
	Save(sessionID string, notes map[string]string) (notes.Location, error)
}

// PatientReply is the patient agent's answer to a chat message.
type PatientReply struct {
	SessionID string            `json:"session_id"`
	Reply     string            `json:"reply"`
	Notes     notes.Location    `json:"-"`
	Safety    safety.Disclaimer `json:"safety"`
}

// PatientAgent runs the structured patient chat and records session notes.
type PatientAgent struct {
	sessions     session.Store
	notes        NotesSaver
	historyTurns int
	validate     *validator.Validate
	logger       arbor.ILogger
}

// NewPatientAgent uses DefaultHistoryTurns when historyTurns is not positive.
func NewPatientAgent(sessions session.Store, saver NotesSaver, historyTurns int, logger arbor.ILogger) *PatientAgent {
	if historyTurns <= 0 {
		historyTurns = DefaultHistoryTurns
	}
	return &PatientAgent{
		sessions:     sessions,
		notes:        saver,
		historyTurns: historyTurns,
		validate:     newValidator(DefaultMaxTopK),
		logger:       logger,
	}
}

// Reply records the message, answers with the clarification prompt and
// saves notes containing the recent conversation.
func (a *PatientAgent) Reply(req ChatRequest) (PatientReply, error) {
	if err := check(a.validate, req); err != nil {
		return PatientReply{}, err
	}
	if err := a.sessions.Append(req.SessionID, session.Turn{Role: session.RolePatient, Content: req.Message}); err != nil {
		return PatientReply{}, fmt.Errorf("record patient turn: %w", err)
	}
	turns, err := a.sessions.Get(req.SessionID)
	if err != nil {
		return PatientReply{}, fmt.Errorf("load session: %w", err)
	}
	summary := session.Summary(turns, a.historyTurns)

	if err := a.sessions.Append(req.SessionID, session.Turn{Role: session.RoleAssistant, Content: PatientReplyText}); err != nil {
		return PatientReply{}, fmt.Errorf("record assistant turn: %w", err)
	}
	loc, err := a.notes.Save(req.SessionID, map[string]string{
		"session_summary":        summary,
		"latest_patient_message": truncate(req.Message, maxNotedMessage),
		"latest_agent_reply":     PatientReplyText,
	})
	if err != nil {
		return PatientReply{}, fmt.Errorf("save session notes: %w", err)
	}
	a.logger.Debug().Str("session_id", req.SessionID).Str("notes", loc.String()).Msg("Patient reply recorded")
	return PatientReply{SessionID: req.SessionID, Reply: PatientReplyText, Notes: loc, Safety: safety.NewDisclaimer("")}, nil
}

// NotesLocation writes a heartbeat note so a file exists and returns where it went.
func (a *PatientAgent) NotesLocation(sessionID string) (notes.Location, error) {
	if sessionID == "" {
		return notes.Location{}, session.ErrEmptySessionID
	}
	return a.notes.Save(sessionID, map[string]string{"heartbeat": "ok"})
}

func truncate(s string, n int) string {
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}
