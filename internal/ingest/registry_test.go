package ingest

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadRegistryEmbeddedDefault(t *testing.T) {
	reg, err := LoadRegistry("")
	require.NoError(t, err)
	require.Len(t, reg.Sources, 6)

	urls := reg.URLs()
	assert.Len(t, urls, 5)
	assert.NotContains(t, urls, "https://www.futurpreneur.ca/en/get-funded/")
}

func TestLoadRegistryMixedEntries(t *testing.T) {
	t.Setenv("PORTAL_HOST", "grants.example.org")
	path := writeFile(t, "sources.yaml", `
sources:
  - https://a.example/fund
  - url: https://${PORTAL_HOST}/green
    name: Green
  - url: https://c.example/old
    active: false
  - url: "  "
`)

	urls, err := LoadSources(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"https://a.example/fund", "https://grants.example.org/green"}, urls)
}

func TestLoadRegistryJSON(t *testing.T) {
	path := writeFile(t, "sources.json", `{"sources": ["https://a.example", {"url": "https://b.example", "active": true}]}`)

	urls, err := LoadSources(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, urls)
}

func TestLoadSourcesErrors(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		_, err := LoadSources(filepath.Join(t.TempDir(), "nope.yaml"))
		assert.Error(t, err)
		assert.NotErrorIs(t, err, ErrNoSources)
	})

	t.Run("all inactive", func(t *testing.T) {
		path := writeFile(t, "sources.yaml", "sources:\n  - url: https://a.example\n    active: false\n")
		_, err := LoadSources(path)
		assert.ErrorIs(t, err, ErrNoSources)
	})

	t.Run("empty list", func(t *testing.T) {
		path := writeFile(t, "sources.yaml", "sources: []\n")
		_, err := LoadSources(path)
		assert.ErrorIs(t, err, ErrNoSources)
	})

	t.Run("malformed", func(t *testing.T) {
		path := writeFile(t, "sources.yaml", "sources: [unclosed\n")
		_, err := LoadSources(path)
		assert.Error(t, err)
	})
}
