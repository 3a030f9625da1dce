package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	supporterr "supportbot/pkg/errors"
)

// DataConfig locates the corpus source, the index artifacts and the order files.
// Relative file names are resolved against Dir.
type DataConfig struct {
	Dir       string `yaml:"dir"`
	Corpus    string `yaml:"corpus"`
	Index     string `yaml:"index"`
	Metadata  string `yaml:"metadata"`
	OrdersCSV string `yaml:"orders_csv"`
	OrdersDB  string `yaml:"orders_db"`
}

// HashedEmbedderConfig configures the local feature-hashing embedder.
type HashedEmbedderConfig struct {
	Dimension int `yaml:"dimension"`
}

// OpenAIEmbedderConfig holds configuration for the OpenAI-compatible embedder.
type OpenAIEmbedderConfig struct {
	BaseURL     string `yaml:"base_url"`
	APIKeyEnv   string `yaml:"api_key_env"`
	Model       string `yaml:"model"`
	Dimension   int    `yaml:"dimension"`
	TimeoutSecs int    `yaml:"timeout_secs"`
	BatchSize   int    `yaml:"batch_size"`
	MaxRetries  int    `yaml:"max_retries"`
}

// Timeout returns the request timeout as a duration.
func (c OpenAIEmbedderConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSecs) * time.Second
}

// EmbedderConfig selects and configures the text embedder implementation.
type EmbedderConfig struct {
	Type   string                `yaml:"type"`
	Hashed *HashedEmbedderConfig `yaml:"hashed,omitempty"`
	OpenAI *OpenAIEmbedderConfig `yaml:"openai,omitempty"`
}

// RetrievalConfig tunes how many excerpts each question retrieves.
type RetrievalConfig struct {
	TopK int `yaml:"top_k"`
}

// SummarizerConfig configures the corpus overview.
type SummarizerConfig struct {
	MaxSentences int `yaml:"max_sentences"`
}

// LogConfig controls slog output. File is only used by the chat console.
type LogConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

// AppConfig is the root application configuration structure.
type AppConfig struct {
	Data       DataConfig       `yaml:"data"`
	Embedder   EmbedderConfig   `yaml:"embedder"`
	Retrieval  RetrievalConfig  `yaml:"retrieval"`
	Summarizer SummarizerConfig `yaml:"summarizer"`
	Log        LogConfig        `yaml:"log"`
}

const (
	EmbedderHashed = "hashed"
	EmbedderOpenAI = "openai"

	localConfigName = "supportbot.yaml"
)

// Load reads a config from a specified path. If the file does not exist, returns defaults.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Default(), nil
		}
		return nil, supporterr.Wrap(err, supporterr.CodeConfigLoadFailure, "reading config", supporterr.FieldPath(path))
	}
	var cfg AppConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, supporterr.Wrap(err, supporterr.CodeConfigParseInvalid, "parsing config", supporterr.FieldPath(path))
	}
	applyConfigDefaults(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadDefault tries ./supportbot.yaml first, then ~/.config/supportbot/config.yaml.
// If neither exists, it writes defaults to ~/.config/supportbot/config.yaml and returns them.
func LoadDefault() (*AppConfig, string, error) {
	if _, err := os.Stat(localConfigName); err == nil {
		cfg, err := Load(localConfigName)
		return cfg, localConfigName, err
	}
	userPath, err := defaultUserConfigPath()
	if err != nil {
		return nil, "", supporterr.Wrap(err, supporterr.CodeConfigLoadFailure, "resolving home directory")
	}
	if _, err := os.Stat(userPath); err == nil {
		cfg, err := Load(userPath)
		return cfg, userPath, err
	}
	cfg := Default()
	if err := Save(userPath, cfg); err != nil {
		return nil, "", err
	}
	return cfg, userPath, nil
}

// Save writes the config to the given path, creating directories as needed.
func Save(path string, cfg *AppConfig) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return supporterr.Wrap(err, supporterr.CodeConfigLoadFailure, "creating config directory", supporterr.FieldPath(path))
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return supporterr.Wrap(err, supporterr.CodeConfigParseInvalid, "encoding config")
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return supporterr.Wrap(err, supporterr.CodeConfigLoadFailure, "writing config", supporterr.FieldPath(path))
	}
	return nil
}

// Default returns the built-in configuration.
func Default() *AppConfig {
	cfg := &AppConfig{}
	applyConfigDefaults(cfg)
	return cfg
}

// Validate rejects values the rest of the program cannot work with.
func (c *AppConfig) Validate() error {
	switch c.Embedder.Type {
	case EmbedderHashed:
		if c.Embedder.Hashed != nil && c.Embedder.Hashed.Dimension < 0 {
			return invalid("embedder.hashed.dimension", c.Embedder.Hashed.Dimension)
		}
	case EmbedderOpenAI:
		if c.Embedder.OpenAI.BatchSize < 0 {
			return invalid("embedder.openai.batch_size", c.Embedder.OpenAI.BatchSize)
		}
		if c.Embedder.OpenAI.MaxRetries < 0 {
			return invalid("embedder.openai.max_retries", c.Embedder.OpenAI.MaxRetries)
		}
		if c.Embedder.OpenAI.Dimension < 0 {
			return invalid("embedder.openai.dimension", c.Embedder.OpenAI.Dimension)
		}
	default:
		return invalid("embedder.type", c.Embedder.Type)
	}
	if c.Retrieval.TopK < 1 {
		return invalid("retrieval.top_k", c.Retrieval.TopK)
	}
	if c.Summarizer.MaxSentences < 1 {
		return invalid("summarizer.max_sentences", c.Summarizer.MaxSentences)
	}
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		return invalid("log.level", c.Log.Level)
	}
	return nil
}

// Path resolves a data file name against the data directory.
func (d DataConfig) Path(name string) string {
	if name == "" || filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(d.Dir, name)
}

func invalid(key string, value any) error {
	return supporterr.New(supporterr.CodeConfigValidate, fmt.Sprintf("invalid %s: %v", key, value),
		supporterr.Field("key", key), supporterr.Field("value", value))
}

func defaultUserConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "supportbot", "config.yaml"), nil
}

func applyConfigDefaults(cfg *AppConfig) {
	d := &cfg.Data
	if d.Dir == "" {
		d.Dir = "data"
	}
	if d.Corpus == "" {
		d.Corpus = "support_docs.txt"
	}
	if d.Index == "" {
		d.Index = "faiss_index.bin"
	}
	if d.Metadata == "" {
		d.Metadata = "faiss_meta.json"
	}
	if d.OrdersCSV == "" {
		d.OrdersCSV = "orders.csv"
	}
	if d.OrdersDB == "" {
		d.OrdersDB = "orders.db"
	}

	if cfg.Embedder.Type == "" {
		cfg.Embedder.Type = EmbedderHashed
	}
	cfg.Embedder.Type = strings.ToLower(cfg.Embedder.Type)
	switch cfg.Embedder.Type {
	case EmbedderHashed:
		if cfg.Embedder.Hashed == nil {
			cfg.Embedder.Hashed = &HashedEmbedderConfig{}
		}
		if cfg.Embedder.Hashed.Dimension == 0 {
			cfg.Embedder.Hashed.Dimension = 384
		}
	case EmbedderOpenAI:
		if cfg.Embedder.OpenAI == nil {
			cfg.Embedder.OpenAI = &OpenAIEmbedderConfig{}
		}
		o := cfg.Embedder.OpenAI
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
		if o.BatchSize == 0 {
			o.BatchSize = 32
		}
		if o.MaxRetries == 0 {
			o.MaxRetries = 3
		}
	}

	if cfg.Retrieval.TopK == 0 {
		cfg.Retrieval.TopK = 3
	}
	if cfg.Summarizer.MaxSentences == 0 {
		cfg.Summarizer.MaxSentences = 3
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.File == "" {
		cfg.Log.File = "supportbot.log"
	}
}
