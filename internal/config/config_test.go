package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_MissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "bolt", cfg.Store.Type)
	assert.Equal(t, "ragDocs", cfg.Store.DocumentsKey)
	assert.Equal(t, "geminiApiKey", cfg.Store.CredentialKey)
	assert.Equal(t, 3, cfg.Retrieval.TopK)
	assert.Equal(t, 5000, cfg.Retrieval.MaxContextChars)
	assert.Equal(t, int64(10*1024*1024), cfg.Upload.MaxFileBytes)
	assert.Equal(t, []string{"gemini-1.5-flash", "gemini-1.5-pro"}, cfg.Models.Cloud)
	assert.Equal(t, "localhost:8001", cfg.Proxy.Addr)
	assert.Equal(t, "GEMINI_API_KEY", cfg.Proxy.KeyEnv)
}

func TestLoad_PartialFileMergesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := []byte("retrieval:\n  top_k: 5\nmodels:\n  default: gpt-oss:20b\n")
	require.NoError(t, os.WriteFile(path, data, 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 5, cfg.Retrieval.TopK)
	assert.Equal(t, 5000, cfg.Retrieval.MaxContextChars)
	assert.Equal(t, "gpt-oss:20b", cfg.Models.Default)
	assert.Equal(t, "http://localhost:11434/api/generate", cfg.Models.LocalEndpoint)
	assert.Equal(t, 8192, cfg.Models.LargeContext)
}

func TestLoad_RejectsInvalidValues(t *testing.T) {
	t.Run("unknown store type", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.yaml")
		require.NoError(t, os.WriteFile(path, []byte("store:\n  type: sqlite\n"), 0o644))
		_, err := Load(path)
		assert.Error(t, err)
	})

	t.Run("proxy address without port", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.yaml")
		require.NoError(t, os.WriteFile(path, []byte("proxy:\n  addr: localhost\n"), 0o644))
		_, err := Load(path)
		assert.Error(t, err)
	})

	t.Run("redis without connection details", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.yaml")
		require.NoError(t, os.WriteFile(path, []byte("store:\n  type: redis\n"), 0o644))
		_, err := Load(path)
		assert.Error(t, err)
	})
}

func TestLoad_EnvOverridesModel(t *testing.T) {
	t.Setenv("PLOWER_MODEL", "gemini-1.5-pro")
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "gemini-1.5-pro", cfg.Models.Default)
}

func TestSave_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg := defaultConfig()
	cfg.Prompt.Language = "en"
	require.NoError(t, Save(path, cfg))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "en", loaded.Prompt.Language)
	assert.Equal(t, cfg.Models, loaded.Models)
}
