package agents

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/ternarybob/arbor"

	"medrag/internal/domain"
	"medrag/internal/safety"
)

// Defaults for ClinicalConfig.
const (
	DefaultTopK        = 4
	DefaultMaxTopK     = 10
	DefaultSummaryTopK = 3
)

// SummaryQuestion is asked when a session summary is requested.
const SummaryQuestion = "Provide a concise clinical recommendation summary based on general adult primary care guidelines."

const urgentNotice = "Your question may indicate an urgent or high-risk situation. " +
	"Please seek immediate medical attention or contact local emergency services. "

// Retriever is the retrieval entry point the clinical agent depends on.
type Retriever interface {
	Query(question string, topK int) (domain.Answer, error)
}

// ClinicalConfig bounds and defaults the number of retrieved documents.
type ClinicalConfig struct {
	DefaultTopK int
	MaxTopK     int
	SummaryTopK int
}

// Recommendation is the clinical agent's answer.
type Recommendation struct {
	Answer    string            `json:"answer"`
	Citations []domain.Citation `json:"citations"`
	Safety    safety.Disclaimer `json:"safety"`
}

// RefinedReport is the structured form of an uploaded report.
type RefinedReport struct {
	SessionID string            `json:"session_id"`
	Text      string            `json:"refined_report"`
	Safety    safety.Disclaimer `json:"safety"`
}

// ClinicalAgent produces evidence-linked recommendations from the retriever.
type ClinicalAgent struct {
	retriever Retriever
	cfg       ClinicalConfig
	validate  *validator.Validate
	logger    arbor.ILogger
}

// NewClinicalAgent fills zero config values with the package defaults.
func NewClinicalAgent(r Retriever, cfg ClinicalConfig, logger arbor.ILogger) *ClinicalAgent {
	if cfg.MaxTopK <= 0 {
		cfg.MaxTopK = DefaultMaxTopK
	}
	if cfg.DefaultTopK <= 0 {
		cfg.DefaultTopK = DefaultTopK
	}
	if cfg.SummaryTopK <= 0 {
		cfg.SummaryTopK = DefaultSummaryTopK
	}
	return &ClinicalAgent{retriever: r, cfg: cfg, validate: newValidator(cfg.MaxTopK), logger: logger}
}

// Recommend validates req, queries the retriever and attaches a disclaimer.
// Questions that trip the safety guardrails get an urgent notice prepended.
func (a *ClinicalAgent) Recommend(req RecommendRequest) (Recommendation, error) {
	if req.TopK == 0 {
		req.TopK = a.cfg.DefaultTopK
	}
	if err := check(a.validate, req); err != nil {
		return Recommendation{}, err
	}
	flagged, category := safety.Check(req.Question)
	ans, err := a.retriever.Query(req.Question, req.TopK)
	if err != nil {
		return Recommendation{}, fmt.Errorf("recommend: %w", err)
	}
	text := ans.Text
	if flagged {
		text = urgentNotice + "\n\n" + text
		a.logger.Warn().Str("session_id", req.SessionID).Str("category", category).Msg("Question flagged by safety guardrails")
	}
	a.logger.Info().
		Str("session_id", req.SessionID).
		Int("top_k", req.TopK).
		Int("citations", len(ans.Citations)).
		Msg("Recommendation composed")
	return Recommendation{Answer: text, Citations: ans.Citations, Safety: safety.NewDisclaimer(category)}, nil
}

// SessionSummary answers the fixed primary-care summary question.
func (a *ClinicalAgent) SessionSummary(sessionID string) (Recommendation, error) {
	return a.Recommend(RecommendRequest{SessionID: sessionID, Question: SummaryQuestion, TopK: a.cfg.SummaryTopK})
}

// RefineReport turns raw report text into a short structured summary:
// lines mentioning findings and lines mentioning recommendations, at most
// ten of each.
func (a *ClinicalAgent) RefineReport(req ReportRequest) (RefinedReport, error) {
	if err := check(a.validate, req); err != nil {
		return RefinedReport{}, err
	}
	var lines []string
	for _, ln := range strings.Split(req.ReportText, "\n") {
		if ln = strings.TrimSpace(ln); ln != "" {
			lines = append(lines, ln)
		}
	}
	out := []string{
		"Report Summary (auto-structured)",
		"-------------------------------",
		fmt.Sprintf("Total lines parsed: %d", len(lines)),
		"",
		"Key Findings:",
	}
	findings := matching(lines, "impression", "finding", "diagnosis", "result")
	if len(findings) == 0 {
		out = append(out, "- No explicit findings detected; please review the full text.")
	}
	out = appendBullets(out, findings)
	out = append(out, "", "Recommendations:")
	recs := matching(lines, "recommend")
	if len(recs) == 0 {
		out = append(out, "- Consider correlating with clinical presentation and current guidelines.")
	}
	out = appendBullets(out, recs)
	return RefinedReport{SessionID: req.SessionID, Text: strings.Join(out, "\n"), Safety: safety.NewDisclaimer("")}, nil
}

func matching(lines []string, keywords ...string) []string {
	var out []string
	for _, ln := range lines {
		lower := strings.ToLower(ln)
		for _, kw := range keywords {
			if strings.Contains(lower, kw) {
				out = append(out, ln)
				break
			}
		}
	}
	return out
}

func appendBullets(out, items []string) []string {
	if len(items) > 10 {
		items = items[:10]
	}
	for _, it := range items {
		out = append(out, "- "+it)
	}
	return out
}
