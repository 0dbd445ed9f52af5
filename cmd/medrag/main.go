package main

import (
	"flag"
	"fmt"
	"log"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"medrag/internal/agents"
	"medrag/internal/config"
	"medrag/internal/embedding"
	"medrag/internal/embedding/hashing"
	"medrag/internal/embedding/openai"
	"medrag/internal/embedding/tfidf"
	"medrag/internal/logging"
	"medrag/internal/notes"
	"medrag/internal/service"
	"medrag/internal/session"
	"medrag/internal/tui"
	"medrag/internal/vectorstore"
	"medrag/internal/vectorstore/memory"
	"medrag/internal/vectorstore/qdrant"
)

func main() {
	_ = godotenv.Load()

	var (
		cfgPath  string
		question string
		topK     int
		demo     bool
	)
	flag.StringVar(&cfgPath, "config", "", "Path to YAML config file (optional; uses ~/.config/medrag/config.yaml if not provided)")
	flag.StringVar(&question, "q", "", "Answer one question and exit")
	flag.IntVar(&topK, "k", 0, "Number of documents to retrieve (default from config)")
	flag.BoolVar(&demo, "demo", false, "Run a scripted patient and clinician exchange and exit")
	flag.Parse()

	var cfg *config.AppConfig
	var err error
	if cfgPath == "" {
		cfg, _, err = config.LoadDefault()
	} else {
		cfg, err = config.Load(cfgPath)
	}
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger := logging.New(logging.Config{Level: cfg.Logging.Level, Output: cfg.Logging.Output, Dir: cfg.Logging.Dir})

	retriever := service.NewRetriever(embedderFactory(cfg), indexFactory(cfg), cfg.Summarizer.MaxSentences, logger)
	if err := retriever.Load(cfg.DocsDir); err != nil {
		log.Fatalf("load corpus %s: %v", cfg.DocsDir, err)
	}

	sessions, err := openSessions(cfg)
	if err != nil {
		log.Fatalf("open session store: %v", err)
	}
	defer sessions.Close()

	notesStore, err := notes.NewStore(cfg.Notes.Dir, notes.OneDriveConfig{
		Enabled:    cfg.Notes.OneDrive.Enabled,
		Token:      cfg.Notes.OneDrive.Token,
		BaseFolder: cfg.Notes.OneDrive.BaseFolder,
	})
	if err != nil {
		log.Fatalf("notes store: %v", err)
	}

	clinical := agents.NewClinicalAgent(retriever, agents.ClinicalConfig{
		DefaultTopK: cfg.Retrieval.DefaultTopK,
		MaxTopK:     cfg.Retrieval.MaxTopK,
		SummaryTopK: cfg.Retrieval.SummaryTopK,
	}, logger)
	patient := agents.NewPatientAgent(sessions, notesStore, cfg.Sessions.HistoryTurns, logger)
	sessionID := uuid.NewString()

	switch {
	case question != "":
		rec, err := clinical.Recommend(agents.RecommendRequest{SessionID: sessionID, Question: question, TopK: topK})
		if err != nil {
			log.Fatalf("recommend: %v", err)
		}
		printRecommendation(rec)
	case demo:
		if err := runDemo(clinical, patient, sessionID); err != nil {
			log.Fatalf("demo: %v", err)
		}
	default:
		m := tui.New(clinical, patient, sessionID, topK, retriever.Overview())
		if _, err := tea.NewProgram(m).Run(); err != nil {
			log.Fatal(err)
		}
	}
}

func embedderFactory(cfg *config.AppConfig) service.EmbedderFactory {
	switch cfg.Embedder.Type {
	case "hashing", "":
		emb := hashing.NewEmbedder(cfg.Embedder.Dimension)
		return func() embedding.Embedder { return emb }
	case "tfidf":
		// Fitted per corpus, so every reload gets its own instance.
		return func() embedding.Embedder { return tfidf.NewEmbedder() }
	case "openai":
		o := cfg.Embedder.OpenAI
		client, err := openai.NewClient(openai.Config{
			BaseURL:    o.BaseURL,
			APIKeyEnv:  o.APIKeyEnv,
			Model:      o.Model,
			Timeout:    time.Duration(o.TimeoutSecs) * time.Second,
			MaxRetries: o.MaxRetries,
		})
		if err != nil {
			log.Fatalf("openai embedder init failed: %v", err)
		}
		return func() embedding.Embedder { return client }
	default:
		log.Fatalf("unknown embedder: %s", cfg.Embedder.Type)
	}
	return nil
}

func indexFactory(cfg *config.AppConfig) service.IndexFactory {
	switch cfg.VectorStore.Type {
	case "memory", "":
		return func() vectorstore.Index { return memory.NewIndex() }
	case "qdrant":
		q := cfg.VectorStore.Qdrant
		if q == nil {
			log.Fatalf("qdrant config missing")
		}
		qcfg := qdrant.Config{
			URL:        q.URL,
			APIKey:     q.APIKey,
			Collection: q.Collection,
			Timeout:    time.Duration(q.TimeoutSecs) * time.Second,
		}
		return func() vectorstore.Index { return qdrant.NewIndex(qcfg) }
	default:
		log.Fatalf("unknown vector store: %s", cfg.VectorStore.Type)
	}
	return nil
}

func openSessions(cfg *config.AppConfig) (session.Store, error) {
	switch cfg.Sessions.Type {
	case "memory", "":
		return session.NewMemoryStore(), nil
	case "bolt":
		return session.OpenBoltStore(cfg.Sessions.Path)
	default:
		return nil, fmt.Errorf("unknown session store: %s", cfg.Sessions.Type)
	}
}

var (
	boldGreen = color.New(color.FgGreen, color.Bold).SprintFunc()
	boldCyan  = color.New(color.FgCyan, color.Bold).SprintFunc()
	boldRed   = color.New(color.FgRed, color.Bold).SprintFunc()
	faint     = color.New(color.Faint).SprintFunc()
)

func printRecommendation(rec agents.Recommendation) {
	category := boldGreen(rec.Safety.Category)
	if rec.Safety.Category == "URGENT" {
		category = boldRed(rec.Safety.Category)
	}
	fmt.Printf("%s [%s]\n%s\n", boldCyan("Recommendation"), category, rec.Answer)
	if len(rec.Citations) > 0 {
		fmt.Println()
		fmt.Println(boldCyan("Citations"))
	}
	for _, c := range rec.Citations {
		fmt.Printf("  [%d] %s  score=%.3f  %s\n", c.Rank, c.DocumentID, c.Score, faint(c.Source))
	}
	fmt.Println()
	fmt.Println(faint(rec.Safety.Disclaimer))
}

func runDemo(clinical *agents.ClinicalAgent, patient *agents.PatientAgent, sessionID string) error {
	fmt.Printf("Session: %s\n\n", boldCyan(sessionID))

	msg := "I have had a dry cough and mild fever for three days."
	fmt.Println(boldGreen("Patient: ") + msg)
	reply, err := patient.Reply(agents.ChatRequest{SessionID: sessionID, Message: msg})
	if err != nil {
		return err
	}
	fmt.Println(boldGreen("Assistant: ") + reply.Reply)
	fmt.Println(faint("notes: " + reply.Notes.String()))
	fmt.Println()

	rec, err := clinical.Recommend(agents.RecommendRequest{SessionID: sessionID, Question: "persistent cough with fever in adults"})
	if err != nil {
		return err
	}
	printRecommendation(rec)
	fmt.Println()

	report, err := clinical.RefineReport(agents.ReportRequest{
		SessionID:  sessionID,
		ReportText: "Chest X-ray\nImpression: no focal consolidation\nRecommend repeat imaging if symptoms persist",
	})
	if err != nil {
		return err
	}
	fmt.Println(boldCyan("Refined report"))
	fmt.Println(report.Text)
	fmt.Println()

	summary, err := clinical.SessionSummary(sessionID)
	if err != nil {
		return err
	}
	loc, err := patient.NotesLocation(sessionID)
	if err != nil {
		return err
	}
	printRecommendation(summary)
	fmt.Println(faint("session notes: " + loc.String()))
	return nil
}
