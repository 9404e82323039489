package ingest

import (
	"encoding/json"
	"errors"
	"regexp"
	"strings"
)

// repairStrategy rewrites a candidate payload. ok is false when the strategy
// found nothing to change.
type repairStrategy struct {
	name string
	fn   func(string) (string, bool)
}

// repairStrategies run in order after a failed direct parse.
var repairStrategies = []repairStrategy{
	{name: "missing_commas", fn: insertMissingCommas},
	{name: "bare_newlines", fn: replaceBareNewlines},
	{name: "aggressive_newlines", fn: replaceAggressiveNewlines},
	{name: "balanced_span", fn: extractBalancedSpan},
	{name: "multiline_quoted", fn: joinMultilineQuoted},
}

const stageDirect = "direct"

// Patterns for the comma and multi-line string repairs.
var (
	commaAcrossLineRe = regexp.MustCompile(`("|\d|true|false|null|[\]}])(\s*\n\s*)(")`)
	commaSameLineRe   = regexp.MustCompile(`("|\d)([ \t]+)("[A-Za-z_][A-Za-z0-9_]*"\s*:)`)
	commaObjectsRe    = regexp.MustCompile(`}(\s*){`)
	multilineQuoteRe  = regexp.MustCompile(`"\s*\n\s*([^"{\[\]},]+)\s*"`)
)

// repairResult is the outcome of running the cascade over one payload.
type repairResult struct {
	value json.RawMessage
	stage string
}

// parseError is returned when every strategy fails. It keeps the original
// failure so the error artifact can point at the offending byte.
type parseError struct {
	err    error
	offset int64
}

func (e *parseError) Error() string { return e.err.Error() }
func (e *parseError) Unwrap() error { return e.err }

// repairJSON tries a strict parse and then each strategy, each applied to the
// original payload, until one yields valid JSON.
func repairJSON(payload string) (repairResult, error) {
	raw, err := strictParse(payload)
	if err == nil {
		return repairResult{value: raw, stage: stageDirect}, nil
	}
	firstErr := err

	for _, s := range repairStrategies {
		fixed, ok := s.fn(payload)
		if !ok || fixed == payload {
			continue
		}
		if raw, err := strictParse(fixed); err == nil {
			return repairResult{value: raw, stage: s.name}, nil
		}
	}

	return repairResult{}, &parseError{err: firstErr, offset: errorOffset(firstErr)}
}

func strictParse(s string) (json.RawMessage, error) {
	var raw json.RawMessage
	if err := json.Unmarshal([]byte(s), &raw); err != nil {
		return nil, err
	}
	return raw, nil
}

func errorOffset(err error) int64 {
	var syntaxErr *json.SyntaxError
	if errors.As(err, &syntaxErr) {
		return syntaxErr.Offset
	}
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		return typeErr.Offset
	}
	return 0
}

func insertMissingCommas(s string) (string, bool) {
	out := commaAcrossLineRe.ReplaceAllString(s, "$1,$2$3")
	out = commaSameLineRe.ReplaceAllString(out, "$1,$2$3")
	out = commaObjectsRe.ReplaceAllString(out, "},$1{")
	return out, out != s
}

// replaceBareNewlines turns a newline into a space unless it follows a
// backslash or precedes a structural character.
func replaceBareNewlines(s string) (string, bool) {
	if !strings.Contains(s, "\n") {
		return s, false
	}

	var b strings.Builder
	b.Grow(len(s))
	changed := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c != '\n' {
			b.WriteByte(c)
			continue
		}
		escaped := i > 0 && s[i-1] == '\\'
		last := i+1 == len(s)
		if escaped || last || strings.IndexByte(",[]{}:", s[i+1]) >= 0 {
			b.WriteByte(c)
			continue
		}
		b.WriteByte(' ')
		changed = true
	}
	return b.String(), changed
}

// replaceAggressiveNewlines turns a newline into a space unless the next
// non-blank character is structural or a quote.
func replaceAggressiveNewlines(s string) (string, bool) {
	if !strings.Contains(s, "\n") {
		return s, false
	}

	var b strings.Builder
	b.Grow(len(s))
	changed := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c != '\n' {
			b.WriteByte(c)
			continue
		}
		j := i + 1
		for j < len(s) && (s[j] == ' ' || s[j] == '\t' || s[j] == '\n' || s[j] == '\r') {
			j++
		}
		if j < len(s) && strings.IndexByte(",[]{}\"", s[j]) >= 0 {
			b.WriteByte(c)
			continue
		}
		b.WriteByte(' ')
		changed = true
	}
	return b.String(), changed
}

// extractBalancedSpan returns the first balanced array or object in s,
// honoring string and escape state.
func extractBalancedSpan(s string) (string, bool) {
	start := strings.IndexAny(s, "[{")
	if start == -1 {
		return s, false
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if escaped {
			escaped = false
			continue
		}
		if c == '\\' {
			escaped = true
			continue
		}
		if c == '"' {
			inString = !inString
			continue
		}
		if inString {
			continue
		}
		switch c {
		case '[', '{':
			depth++
		case ']', '}':
			depth--
			if depth == 0 {
				span := s[start : i+1]
				return span, span != s
			}
		}
	}
	return s, false
}

func joinMultilineQuoted(s string) (string, bool) {
	out := multilineQuoteRe.ReplaceAllString(s, `", "$1"`)
	return out, out != s
}
