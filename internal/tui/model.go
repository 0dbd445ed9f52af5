package tui

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"medrag/internal/agents"
	"medrag/internal/domain"
)

// ClinicalPort is the TUI-facing subset of the clinical agent.
type ClinicalPort interface {
	Recommend(req agents.RecommendRequest) (agents.Recommendation, error)
	SessionSummary(sessionID string) (agents.Recommendation, error)
}

// PatientPort is the TUI-facing subset of the patient agent.
type PatientPort interface {
	Reply(req agents.ChatRequest) (agents.PatientReply, error)
}

const (
	chatCommand    = "/chat "
	summaryCommand = "/summary"
)

// Model is the Bubble Tea model for the TUI application.
type Model struct {
	clinical  ClinicalPort
	patient   PatientPort
	sessionID string
	topK      int
	input     textinput.Model
	viewport  viewport.Model
	answer    string
	citations []domain.Citation
	overview  string
	status    string
	cursor    int
	ready     bool
	lastQuery string
}

// New creates a TUI model bound to one session.
func New(clinical ClinicalPort, patient PatientPort, sessionID string, topK int, overview string) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Ask a clinical question, /chat <message> or /summary"
	ti.Focus()
	ti.CharLimit = 0
	vp := viewport.New(0, 0)
	return Model{
		clinical:  clinical,
		patient:   patient,
		sessionID: sessionID,
		topK:      topK,
		input:     ti,
		viewport:  vp,
		overview:  overview,
		status:    "Session " + sessionID + ". Type a question.",
	}
}

// Init initializes the model (text input cursor blink).
func (m Model) Init() tea.Cmd { return textinput.Blink }

// Update handles key and window events and updates the view state.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		_, rh := resultBoxStyle.GetFrameSize()
		_, qh := queryBoxStyle.GetFrameSize()
		reserved := 2 + 1 + qh + 1 // header and overview, status, spacer
		vh := msg.Height - reserved
		if vh < 3 {
			vh = 3
		}
		m.viewport.Width = max(20, msg.Width)
		m.viewport.Height = max(3, vh-rh)
		m.viewport.SetContent(m.renderAnswer())
		return m, nil
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC || msg.Type == tea.KeyCtrlD {
			return m, tea.Quit
		}
		switch msg.String() {
		case "enter":
			if q := strings.TrimSpace(m.input.Value()); q != "" {
				m = m.submit(q)
				m.input.SetValue("")
				m.viewport.SetContent(m.renderAnswer())
				return m, nil
			}
		case "down":
			if len(m.citations) > 0 {
				m.cursor = (m.cursor + 1) % len(m.citations)
				m.viewport.SetContent(m.renderAnswer())
				return m, nil
			}
		case "up":
			if len(m.citations) > 0 {
				m.cursor = (m.cursor - 1 + len(m.citations)) % len(m.citations)
				m.viewport.SetContent(m.renderAnswer())
				return m, nil
			}
		}
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) submit(q string) Model {
	m.cursor = 0
	switch {
	case strings.HasPrefix(q, chatCommand):
		reply, err := m.patient.Reply(agents.ChatRequest{SessionID: m.sessionID, Message: strings.TrimPrefix(q, chatCommand)})
		if err != nil {
			return m.failed(err)
		}
		m.answer, m.citations, m.lastQuery = reply.Reply, nil, ""
		m.status = "Notes saved to " + reply.Notes.String()
	case q == summaryCommand:
		rec, err := m.clinical.SessionSummary(m.sessionID)
		if err != nil {
			return m.failed(err)
		}
		m.answer, m.citations, m.lastQuery = rec.Answer, rec.Citations, agents.SummaryQuestion
		m.status = "Session summary"
	default:
		rec, err := m.clinical.Recommend(agents.RecommendRequest{SessionID: m.sessionID, Question: q, TopK: m.topK})
		if err != nil {
			return m.failed(err)
		}
		m.answer, m.citations, m.lastQuery = rec.Answer, rec.Citations, q
		m.status = fmt.Sprintf("Recommendation for %q [%s]", q, rec.Safety.Category)
	}
	return m
}

func (m Model) failed(err error) Model {
	m.status = "Error: " + err.Error()
	m.answer, m.citations = "", nil
	return m
}

// View renders the TUI layout and current answer.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	header := lipgloss.NewStyle().Bold(true).Render("Medical Guideline Search")
	overview := lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Render(m.overview)
	input := queryBoxStyle.Render(m.input.View())
	status := lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Render(m.status)
	body := resultBoxStyle.Render(m.viewport.View())
	return header + "\n" + overview + "\n" + body + "\n" + input + "\n" + status
}

func (m Model) renderAnswer() string {
	if m.answer == "" {
		return "No answer yet."
	}
	var b strings.Builder
	b.WriteString(highlightBestLine(m.answer, m.lastQuery))
	if len(m.citations) > 0 {
		b.WriteString("\n\nCitations:")
	}
	for i, c := range m.citations {
		line := fmt.Sprintf("[%d] %s  score=%.3f  %s", c.Rank, c.DocumentID, c.Score, c.Source)
		if i == m.cursor {
			line = highlightStyle.Render(line)
		}
		b.WriteString("\n" + line)
	}
	return b.String()
}

var (
	resultBoxStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	queryBoxStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	highlightStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
	unicodeWordRe  = regexp.MustCompile(`\p{L}+(?:['’]\p{L}+)*`)
)

// highlightBestLine emphasises the answer line sharing the most words with query.
func highlightBestLine(text, query string) string {
	qTokens := toTokenSet(query)
	if len(qTokens) == 0 {
		return text
	}
	lines := strings.Split(text, "\n")
	bestIdx, bestScore := -1, 0
	for i, ln := range lines {
		if score := tokenOverlapScore(qTokens, ln); score > bestScore {
			bestScore, bestIdx = score, i
		}
	}
	if bestIdx >= 0 {
		lines[bestIdx] = highlightStyle.Render(lines[bestIdx])
	}
	return strings.Join(lines, "\n")
}

func toTokenSet(s string) map[string]struct{} {
	tokens := unicodeWordRe.FindAllString(strings.ToLower(s), -1)
	m := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		m[t] = struct{}{}
	}
	return m
}

func tokenOverlapScore(queryTokens map[string]struct{}, sentence string) int {
	score := 0
	tokens := unicodeWordRe.FindAllString(strings.ToLower(sentence), -1)
	seen := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		if _, ok := queryTokens[t]; ok {
			score++
		}
	}
	return score
}
