package config

import (
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// OpenAIEmbedderConfig holds configuration for the OpenAI-compatible embedder.
type OpenAIEmbedderConfig struct {
	BaseURL     string `yaml:"base_url"`
	APIKeyEnv   string `yaml:"api_key_env"`
	Model       string `yaml:"model"`
	TimeoutSecs int    `yaml:"timeout_secs"`
	MaxRetries  int    `yaml:"max_retries"`
}

// EmbedderConfig selects and configures the text embedder implementation.
// Dimension applies to the hashing embedder only.
type EmbedderConfig struct {
	Type      string                `yaml:"type"`
	Dimension int                   `yaml:"dimension"`
	OpenAI    *OpenAIEmbedderConfig `yaml:"openai,omitempty"`
}

// VectorStoreConfig selects and configures the vector index implementation.
type VectorStoreConfig struct {
	Type   string        `yaml:"type"`
	Qdrant *QdrantConfig `yaml:"qdrant,omitempty"`
}

// QdrantConfig contains connection details for a Qdrant collection.
type QdrantConfig struct {
	URL         string `yaml:"url"`
	APIKey      string `yaml:"api_key"`
	Collection  string `yaml:"collection"`
	TimeoutSecs int    `yaml:"timeout_secs"`
}

// RetrievalConfig bounds how many documents a question may retrieve.
type RetrievalConfig struct {
	DefaultTopK int `yaml:"default_top_k"`
	MaxTopK     int `yaml:"max_top_k"`
	SummaryTopK int `yaml:"summary_top_k"`
}

// SummarizerConfig configures the corpus overview.
type SummarizerConfig struct {
	MaxSentences int `yaml:"max_sentences"`
}

// SessionsConfig selects where conversation history lives.
type SessionsConfig struct {
	Type         string `yaml:"type"`
	Path         string `yaml:"path"`
	HistoryTurns int    `yaml:"history_turns"`
}

// OneDriveConfig enables the remote notes destination.
type OneDriveConfig struct {
	Enabled    bool   `yaml:"enabled"`
	Token      string `yaml:"token"`
	BaseFolder string `yaml:"base_folder"`
}

// NotesConfig configures session notes storage.
type NotesConfig struct {
	Dir      string         `yaml:"dir"`
	OneDrive OneDriveConfig `yaml:"onedrive"`
}

// LoggingConfig configures the arbor logger.
type LoggingConfig struct {
	Level  string   `yaml:"level"`
	Output []string `yaml:"output"`
	Dir    string   `yaml:"dir"`
}

// AppConfig is the root application configuration structure.
type AppConfig struct {
	DocsDir     string            `yaml:"docs_dir"`
	Embedder    EmbedderConfig    `yaml:"embedder"`
	VectorStore VectorStoreConfig `yaml:"vector_store"`
	Retrieval   RetrievalConfig   `yaml:"retrieval"`
	Summarizer  SummarizerConfig  `yaml:"summarizer"`
	Sessions    SessionsConfig    `yaml:"sessions"`
	Notes       NotesConfig       `yaml:"notes"`
	Logging     LoggingConfig     `yaml:"logging"`
}

// Load reads a config from path and applies environment overrides.
// A missing file yields the defaults.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			cfg := defaultConfig()
			applyEnv(cfg)
			return cfg, nil
		}
		return nil, err
	}
	cfg := defaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	applyConfigDefaults(cfg)
	applyEnv(cfg)
	return cfg, nil
}

// LoadDefault tries ./config.yaml first, then ~/.config/medrag/config.yaml.
// If neither exists, it writes defaults to ~/.config/medrag/config.yaml and returns them.
func LoadDefault() (*AppConfig, string, error) {
	cwdPath := "config.yaml"
	if _, err := os.Stat(cwdPath); err == nil {
		cfg, err := Load(cwdPath)
		return cfg, cwdPath, err
	}
	userPath, err := defaultUserConfigPath()
	if err != nil {
		return nil, "", err
	}
	if _, err := os.Stat(userPath); err == nil {
		cfg, err := Load(userPath)
		return cfg, userPath, err
	}
	cfg := defaultConfig()
	if err := Save(userPath, cfg); err != nil {
		return nil, "", err
	}
	applyEnv(cfg)
	return cfg, userPath, nil
}

// Save writes the config to the given path, creating directories as needed.
func Save(path string, cfg *AppConfig) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func defaultUserConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "medrag", "config.yaml"), nil
}

func defaultConfig() *AppConfig {
	return &AppConfig{
		DocsDir:     "./assets/medical_docs",
		Embedder:    EmbedderConfig{Type: "hashing", Dimension: 128},
		VectorStore: VectorStoreConfig{Type: "memory"},
		Retrieval:   RetrievalConfig{DefaultTopK: 4, MaxTopK: 10, SummaryTopK: 3},
		Summarizer:  SummarizerConfig{MaxSentences: 3},
		Sessions:    SessionsConfig{Type: "memory", Path: "./storage/sessions.db", HistoryTurns: 20},
		Notes: NotesConfig{
			Dir:      "./storage/notes",
			OneDrive: OneDriveConfig{BaseFolder: "/MedicalDecisionSupport"},
		},
		Logging: LoggingConfig{Level: "info", Output: []string{"console"}},
	}
}

// applyConfigDefaults refills values a config file cleared explicitly.
func applyConfigDefaults(cfg *AppConfig) {
	def := defaultConfig()
	if cfg.Embedder.Type == "" {
		cfg.Embedder.Type = def.Embedder.Type
	}
	if cfg.VectorStore.Type == "" {
		cfg.VectorStore.Type = def.VectorStore.Type
	}
	if cfg.Retrieval.MaxTopK <= 0 {
		cfg.Retrieval.MaxTopK = def.Retrieval.MaxTopK
	}
	if cfg.Retrieval.DefaultTopK <= 0 {
		cfg.Retrieval.DefaultTopK = def.Retrieval.DefaultTopK
	}
	if cfg.Retrieval.SummaryTopK <= 0 {
		cfg.Retrieval.SummaryTopK = def.Retrieval.SummaryTopK
	}
	if cfg.Sessions.Type == "" {
		cfg.Sessions.Type = def.Sessions.Type
	}
	if cfg.Embedder.Type == "openai" && cfg.Embedder.OpenAI == nil {
		cfg.Embedder.OpenAI = &OpenAIEmbedderConfig{}
	}
	if o := cfg.Embedder.OpenAI; o != nil {
		if o.BaseURL == "" {
			o.BaseURL = "https://api.openai.com/v1"
		}
		if o.APIKeyEnv == "" {
			o.APIKeyEnv = "OPENAI_API_KEY"
		}
		if o.Model == "" {
			o.Model = "text-embedding-3-small"
		}
		if o.TimeoutSecs == 0 {
			o.TimeoutSecs = 30
		}
	}
}

// applyEnv lets the deployment environment override file values.
func applyEnv(cfg *AppConfig) {
	if v := os.Getenv("MEDICAL_DOCS_DIR"); v != "" {
		cfg.DocsDir = v
	}
	if v := os.Getenv("LOCAL_NOTES_DIR"); v != "" {
		cfg.Notes.Dir = v
	}
	if v := os.Getenv("ONEDRIVE_ENABLED"); v != "" {
		enabled, err := strconv.ParseBool(strings.TrimSpace(v))
		cfg.Notes.OneDrive.Enabled = err == nil && enabled
	}
	if v := os.Getenv("ONEDRIVE_TOKEN"); v != "" {
		cfg.Notes.OneDrive.Token = v
	}
	if v := os.Getenv("ONEDRIVE_BASE_FOLDER"); v != "" {
		cfg.Notes.OneDrive.BaseFolder = v
	}
	if v := os.Getenv("MEDRAG_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}
