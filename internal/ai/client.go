package ai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"unicode/utf8"
)

var (
	// ErrEmptyResponse is returned for a reply that contained no text.
	ErrEmptyResponse = errors.New("empty response from model")
	// ErrExtractionFailed wraps the last error once all attempts are used up.
	ErrExtractionFailed = errors.New("extraction failed")
)

// Tools toggles server-side capabilities of the model.
type Tools struct {
	URLContext   bool
	GoogleSearch bool
}

// Request is one generation call.
type Request struct {
	Prompt          string
	Temperature     float64
	MaxOutputTokens int
	Tools           Tools
}

// Generator is the LLM service boundary: prompt in, free text out. Nothing
// about the shape of the returned text is trusted.
type Generator interface {
	Generate(ctx context.Context, req Request) (string, error)
	Name() string
}

// APIError is a non-2xx reply from the model service.
type APIError struct {
	Provider   string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s API error (status %d): %s", e.Provider, e.StatusCode, TruncateText(e.Body, 300))
}

// Retryable reports whether another attempt could succeed.
func (e *APIError) Retryable() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode == http.StatusRequestTimeout || e.StatusCode >= 500
}

// TruncateText cuts a string to maxLen runes, appending ellipsis if truncated.
func TruncateText(text string, maxLen int) string {
	if utf8.RuneCountInString(text) <= maxLen {
		return text
	}
	r := []rune(text)
	if maxLen > 3 {
		return string(r[:maxLen-3]) + "..."
	}
	return string(r[:maxLen])
}
