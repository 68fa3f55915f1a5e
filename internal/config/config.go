package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"docsearch/internal/domain"
)

// LLMConfig selects the chat model used for routing and answering.
type LLMConfig struct {
	Provider    string  `yaml:"provider"`
	Model       string  `yaml:"model"`
	BaseURL     string  `yaml:"base_url"`
	APIKeyEnv   string  `yaml:"api_key_env"`
	Temperature float32 `yaml:"temperature"`
	MaxTokens   int     `yaml:"max_tokens"`
	TimeoutSecs int     `yaml:"timeout_secs"`
}

// APIKey reads the key from the configured environment variable.
func (c LLMConfig) APIKey() string {
	if c.APIKeyEnv == "" {
		return ""
	}
	return os.Getenv(c.APIKeyEnv)
}

// Timeout returns the per-request timeout.
func (c LLMConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSecs) * time.Second
}

// RetrieverConfig tunes the lexical index.
type RetrieverConfig struct {
	MaxFeatures int            `yaml:"max_features"`
	TopK        map[string]int `yaml:"top_k"`
	StopWords   []string       `yaml:"stop_words,omitempty"`
}

// TopKByKind converts TopK to domain kinds, dropping unknown keys.
func (c RetrieverConfig) TopKByKind() map[domain.Kind]int {
	out := make(map[domain.Kind]int, len(c.TopK))
	for name, k := range c.TopK {
		if kind, ok := domain.ParseKind(strings.ToLower(name)); ok {
			out[kind] = k
		}
	}
	return out
}

// LoaderConfig configures how word-processor documents are split into passages.
type LoaderConfig struct {
	SentencesPerChunk int `yaml:"sentences_per_chunk"`
	OverlapSentences  int `yaml:"overlap_sentences"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Addr            string  `yaml:"addr"`
	UploadDir       string  `yaml:"upload_dir"`
	MaxDocuments    int     `yaml:"max_documents"`
	MaxUploadMB     int     `yaml:"max_upload_mb"`
	QueryRatePerSec float64 `yaml:"query_rate_per_sec"`
	QueryBurst      int     `yaml:"query_burst"`
}

// SummarizerConfig sizes the corpus digest.
type SummarizerConfig struct {
	MaxSentences int `yaml:"max_sentences"`
}

// LoggingConfig sets the log level and an optional log file.
type LoggingConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file,omitempty"`
}

// AppConfig is the root application configuration structure.
type AppConfig struct {
	LLM        LLMConfig        `yaml:"llm"`
	Retriever  RetrieverConfig  `yaml:"retriever"`
	Loader     LoaderConfig     `yaml:"loader"`
	Server     ServerConfig     `yaml:"server"`
	Summarizer SummarizerConfig `yaml:"summarizer"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// Load reads a config from a specified path. If the file does not exist, returns defaults.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return defaultConfig(), nil
		}
		return nil, err
	}
	var cfg AppConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	applyConfigDefaults(&cfg)
	return &cfg, nil
}

// LoadDefault tries ./config.yaml first, then ~/.config/docsearch/config.yaml.
// If neither exists, it writes defaults to ~/.config/docsearch/config.yaml and returns them.
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
	return filepath.Join(home, ".config", "docsearch", "config.yaml"), nil
}

func defaultConfig() *AppConfig {
	cfg := &AppConfig{}
	applyConfigDefaults(cfg)
	return cfg
}

var apiKeyEnvs = map[string]string{
	"groq":      "GROQ_API_KEY",
	"openai":    "OPENAI_API_KEY",
	"anthropic": "ANTHROPIC_API_KEY",
	"gemini":    "GEMINI_API_KEY",
}

func applyConfigDefaults(cfg *AppConfig) {
	if cfg.LLM.Provider == "" {
		cfg.LLM.Provider = "groq"
	}
	cfg.LLM.Provider = strings.ToLower(cfg.LLM.Provider)
	if cfg.LLM.APIKeyEnv == "" {
		cfg.LLM.APIKeyEnv = apiKeyEnvs[cfg.LLM.Provider]
	}
	if cfg.LLM.MaxTokens == 0 {
		cfg.LLM.MaxTokens = 1024
	}
	if cfg.LLM.TimeoutSecs == 0 {
		cfg.LLM.TimeoutSecs = 60
	}

	if cfg.Retriever.MaxFeatures == 0 {
		cfg.Retriever.MaxFeatures = 1000
	}
	if cfg.Retriever.TopK == nil {
		cfg.Retriever.TopK = map[string]int{"pdf": 5, "docx": 5, "csv": 10}
	}

	if cfg.Loader.SentencesPerChunk == 0 {
		cfg.Loader.SentencesPerChunk = 5
	}
	if cfg.Loader.OverlapSentences == 0 {
		cfg.Loader.OverlapSentences = 1
	}

	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":5000"
	}
	if cfg.Server.UploadDir == "" {
		cfg.Server.UploadDir = "uploads"
	}
	if cfg.Server.MaxDocuments == 0 {
		cfg.Server.MaxDocuments = 20
	}
	if cfg.Server.MaxUploadMB == 0 {
		cfg.Server.MaxUploadMB = 50
	}
	if cfg.Server.QueryRatePerSec == 0 {
		cfg.Server.QueryRatePerSec = 2
	}
	if cfg.Server.QueryBurst == 0 {
		cfg.Server.QueryBurst = 5
	}

	if cfg.Summarizer.MaxSentences == 0 {
		cfg.Summarizer.MaxSentences = 3
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
}
