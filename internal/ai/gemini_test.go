package ai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGeminiGenerate(t *testing.T) {
	var got map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/models/gemini-2.5-flash:generateContent", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("x-goog-api-key"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"candidates":[{"content":{"parts":[{"text":"[{\"programName\":"},{"text":"\"X\"}]"}]}}]}`))
	}))
	defer server.Close()

	client := NewGeminiClient(server.URL, "test-key", "", time.Second)
	text, err := client.Generate(context.Background(), Request{
		Prompt:          "extract",
		Temperature:     0.3,
		MaxOutputTokens: 8096,
		Tools:           Tools{URLContext: true},
	})
	require.NoError(t, err)
	assert.Equal(t, `[{"programName":"X"}]`, text)
	assert.Equal(t, "gemini/gemini-2.5-flash", client.Name())

	cfg := got["generationConfig"].(map[string]any)
	assert.Equal(t, 0.3, cfg["temperature"])
	assert.Equal(t, float64(8096), cfg["maxOutputTokens"])
	tools := got["tools"].([]any)
	require.Len(t, tools, 1)
	assert.Contains(t, tools[0].(map[string]any), "urlContext")
}

func TestGeminiGenerateNoCandidates(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"candidates":[]}`))
	}))
	defer server.Close()

	text, err := NewGeminiClient(server.URL, "k", "m", time.Second).Generate(context.Background(), Request{Prompt: "p"})
	require.NoError(t, err)
	assert.Empty(t, text)
}

func TestGeminiGenerateHTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"code":429,"message":"quota"}}`))
	}))
	defer server.Close()

	_, err := NewGeminiClient(server.URL, "k", "m", time.Second).Generate(context.Background(), Request{Prompt: "p"})
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusTooManyRequests, apiErr.StatusCode)
	assert.True(t, apiErr.Retryable())
}

func TestOllamaGenerate(t *testing.T) {
	var got generateRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/generate", r.URL.Path)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"response":"[]","done":true}`))
	}))
	defer server.Close()

	client := NewOllamaClient(server.URL, "llama3", time.Second)
	text, err := client.Generate(context.Background(), Request{Prompt: "p", Temperature: 0.2, MaxOutputTokens: 100})
	require.NoError(t, err)
	assert.Equal(t, "[]", text)
	assert.Equal(t, "llama3", got.Model)
	assert.False(t, got.Stream)
	assert.Equal(t, 0.2, got.Options.Temperature)
	assert.Equal(t, 100, got.Options.NumPredict)
}

func TestOllamaGenerateServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "model not found", http.StatusNotFound)
	}))
	defer server.Close()

	_, err := NewOllamaClient(server.URL, "", time.Second).Generate(context.Background(), Request{Prompt: "p"})
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.False(t, apiErr.Retryable())
}

func TestBuildPromptIsDeterministic(t *testing.T) {
	a := BuildPrompt("https://example.org/a")
	b := BuildPrompt("https://example.org/a")
	assert.Equal(t, a, b)
	assert.Contains(t, a, "Extract grant information from: https://example.org/a")
	assert.Contains(t, a, "FEDERAL_GRANT, PROVINCIAL_TERRITORIAL_GRANT")
	assert.Contains(t, a, "LGBTQ_PLUS")
	assert.NotContains(t, a, "%!")
}
