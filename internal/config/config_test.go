package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	supporterr "supportbot/pkg/errors"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "supportbot.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad_MissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, EmbedderHashed, cfg.Embedder.Type)
	require.NotNil(t, cfg.Embedder.Hashed)
	assert.Equal(t, 384, cfg.Embedder.Hashed.Dimension)
	assert.Equal(t, 3, cfg.Retrieval.TopK)
	assert.Equal(t, "data", cfg.Data.Dir)
	assert.Equal(t, filepath.Join("data", "faiss_index.bin"), cfg.Data.Path(cfg.Data.Index))
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoad_OpenAIDefaults(t *testing.T) {
	path := writeConfig(t, `
embedder:
  type: OpenAI
  openai:
    model: nomic-embed-text
    base_url: http://localhost:11434/v1
retrieval:
  top_k: 5
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, EmbedderOpenAI, cfg.Embedder.Type)
	require.NotNil(t, cfg.Embedder.OpenAI)
	assert.Equal(t, "nomic-embed-text", cfg.Embedder.OpenAI.Model)
	assert.Equal(t, "http://localhost:11434/v1", cfg.Embedder.OpenAI.BaseURL)
	assert.Equal(t, "OPENAI_API_KEY", cfg.Embedder.OpenAI.APIKeyEnv)
	assert.Equal(t, 30*time.Second, cfg.Embedder.OpenAI.Timeout())
	assert.Equal(t, 32, cfg.Embedder.OpenAI.BatchSize)
	assert.Equal(t, 5, cfg.Retrieval.TopK)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		body string
		code supporterr.Code
	}{
		{"unknown embedder", "embedder:\n  type: bert\n", supporterr.CodeConfigValidate},
		{"negative top_k", "retrieval:\n  top_k: -1\n", supporterr.CodeConfigValidate},
		{"bad log level", "log:\n  level: loud\n", supporterr.CodeConfigValidate},
		{"malformed yaml", "embedder: [\n", supporterr.CodeConfigParseInvalid},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			require.Error(t, err)
			assert.Equal(t, tt.code, supporterr.CodeOf(err))
		})
	}
}

func TestSave_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg := Default()
	cfg.Retrieval.TopK = 7
	cfg.Data.Dir = "/srv/support"

	require.NoError(t, Save(path, cfg))
	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestDataPath_AbsoluteKept(t *testing.T) {
	d := DataConfig{Dir: "data"}
	abs := filepath.Join(t.TempDir(), "orders.db")
	assert.Equal(t, abs, d.Path(abs))
	assert.Equal(t, "", d.Path(""))
}
