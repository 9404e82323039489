package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zalando/go-keyring"
)

// clearEnv blanks every variable Load consults so the host environment
// cannot leak into a test. Viper treats empty variables as unset.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, name := range []string{
		"GRANTS_LLM_API_KEY", "GEMINI_API_KEY", "GOOGLE_API_KEY",
		"GRANTS_LLM_OLLAMA_HOST", "OLLAMA_HOST",
		"GRANTS_DATABASE_DSN", "DATABASE_URL",
		"GRANTS_SERVER_PORT", "PORT",
		"GRANTS_SERVER_ADMIN_SECRET", "ADMIN_SECRET",
		"GRANTS_LLM_PROVIDER", "GRANTS_PIPELINE_DELAY",
	} {
		t.Setenv(name, "")
	}
	keyring.MockInit()
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ProviderGemini, cfg.LLM.Provider)
	assert.Equal(t, 3, cfg.LLM.MaxAttempts)
	assert.Equal(t, 2*time.Second, cfg.LLM.BaseBackoff)
	assert.InDelta(t, 0.3, cfg.LLM.Temperature, 1e-9)
	assert.Equal(t, 8096, cfg.LLM.MaxOutputTokens)
	assert.True(t, cfg.LLM.URLContext)
	assert.Equal(t, "data", cfg.Pipeline.OutputDir)
	assert.Equal(t, 2*time.Second, cfg.Pipeline.Delay)
	assert.Equal(t, "CAD", cfg.Pipeline.DefaultCurrency)
	assert.Equal(t, 100, cfg.Quality.MinDescriptionLength)
	assert.Equal(t, []string{"click here", "learn more"}, cfg.Quality.BoilerplatePhrases)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Empty(t, cfg.Database.DSN)
	assert.Empty(t, cfg.Storage.Bucket)

	assert.Empty(t, cfg.LLM.APIKey)
	assert.ErrorIs(t, cfg.RequireCredential(), ErrMissingCredential)
}

func TestLoadWithFileOverrides(t *testing.T) {
	clearEnv(t)

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
llm:
  provider: Ollama
  model: llama3.1
  max_attempts: 5
  base_backoff: 500ms
pipeline:
  delay: 0s
  default_currency: usd
  output_dir: out
quality:
  min_description_length: 40
  boilerplate_phrases: ["read more"]
storage:
  gcs_bucket: grants-bucket
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ProviderOllama, cfg.LLM.Provider)
	assert.Equal(t, "llama3.1", cfg.LLM.Model)
	assert.Equal(t, 5, cfg.LLM.MaxAttempts)
	assert.Equal(t, 500*time.Millisecond, cfg.LLM.BaseBackoff)
	assert.Equal(t, time.Duration(0), cfg.Pipeline.Delay)
	assert.Equal(t, "USD", cfg.Pipeline.DefaultCurrency)
	assert.Equal(t, "out", cfg.Pipeline.OutputDir)
	assert.Equal(t, 40, cfg.Quality.MinDescriptionLength)
	assert.Equal(t, []string{"read more"}, cfg.Quality.BoilerplatePhrases)
	assert.Equal(t, "grants-bucket", cfg.Storage.Bucket)

	// Ollama runs locally and needs no key.
	assert.NoError(t, cfg.RequireCredential())
}

func TestLoadEnvironment(t *testing.T) {
	clearEnv(t)
	t.Setenv("GRANTS_PIPELINE_DELAY", "7s")
	t.Setenv("DATABASE_URL", "postgres://localhost/grants")
	t.Setenv("PORT", "9090")
	t.Setenv("ADMIN_SECRET", "s3cret")
	t.Setenv("GOOGLE_API_KEY", "google-key")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 7*time.Second, cfg.Pipeline.Delay)
	assert.Equal(t, "postgres://localhost/grants", cfg.Database.DSN)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "s3cret", cfg.Server.AdminSecret)
	assert.Equal(t, "google-key", cfg.LLM.APIKey)
	assert.NoError(t, cfg.RequireCredential())
}

func TestAPIKeyPrecedence(t *testing.T) {
	clearEnv(t)
	t.Setenv("GOOGLE_API_KEY", "google-key")
	t.Setenv("GEMINI_API_KEY", "gemini-key")
	t.Setenv("GRANTS_LLM_API_KEY", "grants-key")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "grants-key", cfg.LLM.APIKey)
}

func TestAPIKeyFromKeyring(t *testing.T) {
	clearEnv(t)
	require.NoError(t, keyring.Set(KeyringService, KeyringAccount, " from-keyring \n"))

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "from-keyring", cfg.LLM.APIKey)
}

func TestLoadValidation(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"unknown provider", "llm:\n  provider: openai\n"},
		{"zero attempts", "llm:\n  max_attempts: 0\n"},
		{"negative delay", "pipeline:\n  delay: -1s\n"},
		{"bad currency", "pipeline:\n  default_currency: dollars\n"},
		{"temperature", "llm:\n  temperature: 3\n"},
		{"port", "server:\n  port: 0\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			path := filepath.Join(t.TempDir(), "config.yaml")
			require.NoError(t, os.WriteFile(path, []byte(tt.yaml), 0o600))

			_, err := Load(path)
			assert.Error(t, err)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	clearEnv(t)
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
