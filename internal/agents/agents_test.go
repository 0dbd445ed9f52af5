package agents

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"medrag/internal/composer"
	"medrag/internal/domain"
	"medrag/internal/embedding"
	"medrag/internal/embedding/hashing"
	"medrag/internal/logging"
	"medrag/internal/notes"
	"medrag/internal/safety"
	"medrag/internal/service"
	"medrag/internal/session"
	"medrag/internal/vectorstore"
	"medrag/internal/vectorstore/memory"
)

type fakeRetriever struct {
	questions []string
	topKs     []int
	answer    domain.Answer
	err       error
}

func (f *fakeRetriever) Query(question string, topK int) (domain.Answer, error) {
	f.questions = append(f.questions, question)
	f.topKs = append(f.topKs, topK)
	return f.answer, f.err
}

func TestRecommendValidation(t *testing.T) {
	cases := []struct {
		name string
		req  RecommendRequest
		want error
	}{
		{"too large", RecommendRequest{SessionID: "s", Question: "q", TopK: 11}, ErrInvalidTopK},
		{"negative", RecommendRequest{SessionID: "s", Question: "q", TopK: -1}, ErrInvalidTopK},
		{"missing question", RecommendRequest{SessionID: "s"}, ErrInvalidRequest},
		{"missing session", RecommendRequest{Question: "q"}, ErrInvalidRequest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := &fakeRetriever{}
			_, err := NewClinicalAgent(r, ClinicalConfig{}, logging.Discard()).Recommend(tc.req)
			assert.ErrorIs(t, err, tc.want)
			assert.Empty(t, r.questions)
		})
	}
}

func TestRecommendDefaultsAndBounds(t *testing.T) {
	r := &fakeRetriever{answer: domain.Answer{Text: "ok", Citations: []domain.Citation{}}}
	a := NewClinicalAgent(r, ClinicalConfig{}, logging.Discard())

	_, err := a.Recommend(RecommendRequest{SessionID: "s", Question: "fever"})
	require.NoError(t, err)
	_, err = a.Recommend(RecommendRequest{SessionID: "s", Question: "fever", TopK: DefaultMaxTopK})
	require.NoError(t, err)
	assert.Equal(t, []int{DefaultTopK, DefaultMaxTopK}, r.topKs)
}

func TestRecommendUrgentPrefix(t *testing.T) {
	r := &fakeRetriever{answer: domain.Answer{Text: "guidance", Citations: []domain.Citation{}}}
	a := NewClinicalAgent(r, ClinicalConfig{}, logging.Discard())

	rec, err := a.Recommend(RecommendRequest{SessionID: "s", Question: "I have CHEST PAIN", TopK: 2})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(rec.Answer, urgentNotice+"\n\n"))
	assert.True(t, strings.HasSuffix(rec.Answer, "guidance"))
	assert.Equal(t, safety.CategoryUrgent, rec.Safety.Category)

	rec, err = a.Recommend(RecommendRequest{SessionID: "s", Question: "mild cough", TopK: 2})
	require.NoError(t, err)
	assert.Equal(t, "guidance", rec.Answer)
	assert.Equal(t, safety.CategoryGeneral, rec.Safety.Category)
}

func TestRecommendPropagatesRetrieverError(t *testing.T) {
	r := &fakeRetriever{err: errors.New("encoder down")}
	_, err := NewClinicalAgent(r, ClinicalConfig{}, logging.Discard()).
		Recommend(RecommendRequest{SessionID: "s", Question: "fever"})
	assert.ErrorContains(t, err, "encoder down")
}

func TestRecommendEndToEnd(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "d1.txt"), []byte("fever cough"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "d2.txt"), []byte("broken bone"), 0o644))
	emb := hashing.NewEmbedder(0)
	ret := service.NewRetriever(
		func() embedding.Embedder { return emb },
		func() vectorstore.Index { return memory.NewIndex() },
		3,
		logging.Discard(),
	)
	require.NoError(t, ret.Load(dir))

	rec, err := NewClinicalAgent(ret, ClinicalConfig{}, logging.Discard()).
		Recommend(RecommendRequest{SessionID: "s", Question: "I have a cough", TopK: 1})
	require.NoError(t, err)
	require.Len(t, rec.Citations, 1)
	assert.Equal(t, "d1.txt", rec.Citations[0].DocumentID)
	assert.Contains(t, rec.Answer, "[1] fever cough...")
}

func TestSessionSummaryUsesSummaryTopK(t *testing.T) {
	r := &fakeRetriever{answer: domain.Answer{Text: composer.FallbackAnswer, Citations: []domain.Citation{}}}
	rec, err := NewClinicalAgent(r, ClinicalConfig{}, logging.Discard()).SessionSummary("s")
	require.NoError(t, err)
	assert.Equal(t, []string{SummaryQuestion}, r.questions)
	assert.Equal(t, []int{DefaultSummaryTopK}, r.topKs)
	assert.Equal(t, composer.FallbackAnswer, rec.Answer)
}

func TestRefineReport(t *testing.T) {
	a := NewClinicalAgent(&fakeRetriever{}, ClinicalConfig{}, logging.Discard())
	report := "Chest X-ray\n\nIMPRESSION: no acute disease\n  Result: normal heart size \nRecommend follow-up in 6 weeks\n"

	out, err := a.RefineReport(ReportRequest{SessionID: "s", ReportText: report})
	require.NoError(t, err)
	assert.Equal(t, "s", out.SessionID)
	assert.Equal(t, strings.Join([]string{
		"Report Summary (auto-structured)",
		"-------------------------------",
		"Total lines parsed: 4",
		"",
		"Key Findings:",
		"- IMPRESSION: no acute disease",
		"- Result: normal heart size",
		"",
		"Recommendations:",
		"- Recommend follow-up in 6 weeks",
	}, "\n"), out.Text)
}

func TestRefineReportFallbacks(t *testing.T) {
	a := NewClinicalAgent(&fakeRetriever{}, ClinicalConfig{}, logging.Discard())
	out, err := a.RefineReport(ReportRequest{SessionID: "s", ReportText: "nothing notable"})
	require.NoError(t, err)
	assert.Contains(t, out.Text, "- No explicit findings detected; please review the full text.")
	assert.Contains(t, out.Text, "- Consider correlating with clinical presentation and current guidelines.")

	_, err = a.RefineReport(ReportRequest{SessionID: "s"})
	assert.ErrorIs(t, err, ErrInvalidRequest)
}

func TestRefineReportCapsBullets(t *testing.T) {
	a := NewClinicalAgent(&fakeRetriever{}, ClinicalConfig{}, logging.Discard())
	out, err := a.RefineReport(ReportRequest{SessionID: "s", ReportText: strings.Repeat("finding\n", 15)})
	require.NoError(t, err)
	assert.Equal(t, 10, strings.Count(out.Text, "- finding"))
}

type recordingSaver struct {
	sessions []string
	saved    []map[string]string
}

func (r *recordingSaver) Save(sessionID string, n map[string]string) (notes.Location, error) {
	r.sessions = append(r.sessions, sessionID)
	r.saved = append(r.saved, n)
	return notes.Location{Kind: notes.KindLocal, Path: "/tmp/" + sessionID + ".json"}, nil
}

func TestPatientReply(t *testing.T) {
	store := session.NewMemoryStore()
	saver := &recordingSaver{}
	a := NewPatientAgent(store, saver, 0, logging.Discard())

	_, err := a.Reply(ChatRequest{SessionID: "s1", Message: "I have had a cough for a week"})
	require.NoError(t, err)
	reply, err := a.Reply(ChatRequest{SessionID: "s1", Message: strings.Repeat("x", 1500)})
	require.NoError(t, err)

	assert.Equal(t, PatientReplyText, reply.Reply)
	assert.Equal(t, "s1", reply.SessionID)
	assert.Equal(t, safety.CategoryGeneral, reply.Safety.Category)
	assert.Equal(t, "local:/tmp/s1.json", reply.Notes.String())

	turns, err := store.Get("s1")
	require.NoError(t, err)
	require.Len(t, turns, 4)
	assert.Equal(t, session.RoleAssistant, turns[3].Role)

	require.Len(t, saver.saved, 2)
	last := saver.saved[1]
	assert.Len(t, last["latest_patient_message"], 1000)
	assert.Equal(t, PatientReplyText, last["latest_agent_reply"])
	summary := last["session_summary"]
	assert.True(t, strings.HasPrefix(summary, "P: I have had a cough for a week\nA: Thank you for sharing."))
	assert.True(t, strings.HasSuffix(summary, "P: "+strings.Repeat("x", 1500)))
}

func TestPatientReplyHistoryWindow(t *testing.T) {
	saver := &recordingSaver{}
	a := NewPatientAgent(session.NewMemoryStore(), saver, 1, logging.Discard())
	_, err := a.Reply(ChatRequest{SessionID: "s", Message: "first"})
	require.NoError(t, err)
	_, err = a.Reply(ChatRequest{SessionID: "s", Message: "second"})
	require.NoError(t, err)
	assert.Equal(t, "P: second", saver.saved[1]["session_summary"])
}

func TestPatientReplyValidation(t *testing.T) {
	a := NewPatientAgent(session.NewMemoryStore(), &recordingSaver{}, 0, logging.Discard())
	_, err := a.Reply(ChatRequest{SessionID: "s"})
	assert.ErrorIs(t, err, ErrInvalidRequest)
}

func TestNotesLocationWritesHeartbeat(t *testing.T) {
	store, err := notes.NewStore(t.TempDir(), notes.OneDriveConfig{})
	require.NoError(t, err)
	a := NewPatientAgent(session.NewMemoryStore(), store, 0, logging.Discard())

	loc, err := a.NotesLocation("s9")
	require.NoError(t, err)
	assert.Equal(t, notes.KindLocal, loc.Kind)
	rec, err := store.Latest("s9")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, map[string]string{"heartbeat": "ok"}, rec.Notes)

	_, err = a.NotesLocation("")
	assert.ErrorIs(t, err, session.ErrEmptySessionID)
}
