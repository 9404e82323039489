package ai

import (
	"regexp"
	"strings"
)

var (
	fenceRe      = regexp.MustCompile("(?i)```(?:json)?\\s*")
	citeNestedRe = regexp.MustCompile(`(?s)\[cite:\s*\[.*?\]\]`)
	citeRe       = regexp.MustCompile(`\[cite(?:_start|_end)?(?::[^\]]*)?\]`)
	multiSpaceRe = regexp.MustCompile(` {2,}`)

	codePointReplacer = strings.NewReplacer(
		"\u00a0", " ",
		"\u200b", "",
		"\ufeff", "",
		"\u2028", " ",
		"\u2029", " ",
		"\r\n", " ",
		"\r", " ",
		"\t", " ",
	)
)

// Sanitize turns a raw model reply into the best candidate JSON text it can.
// It never fails; whatever comes out is handed to the strict parser, and the
// repair cascade deals with anything still broken.
func Sanitize(raw string) string {
	s := strings.TrimSpace(raw)
	s = fenceRe.ReplaceAllString(s, "")
	s = citeNestedRe.ReplaceAllString(s, "")
	s = citeRe.ReplaceAllString(s, "")
	s = trimToBrackets(s)
	s = codePointReplacer.Replace(s)
	s = stripControl(s)
	s = rejoinOpenStrings(s)
	s = multiSpaceRe.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// trimToBrackets drops prose before the first opening bracket and after the
// last closing one.
func trimToBrackets(s string) string {
	start := strings.IndexAny(s, "[{")
	if start == -1 {
		return s
	}
	s = s[start:]
	if end := strings.LastIndexAny(s, "]}"); end != -1 {
		s = s[:end+1]
	}
	return s
}

func stripControl(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r == '\n':
			return r
		case r < 0x20, r == 0x7f:
			return -1
		}
		return r
	}, s)
}

// rejoinOpenStrings joins a line onto the previous one with a single space
// when the previous line ended inside a string literal.
func rejoinOpenStrings(s string) string {
	lines := strings.Split(s, "\n")
	out := make([]string, 0, len(lines))
	inString := false
	for _, line := range lines {
		if inString && len(out) > 0 {
			last := len(out) - 1
			out[last] = strings.TrimRight(out[last], " ") + " " + strings.TrimLeft(line, " ")
		} else {
			out = append(out, line)
		}
		if unescapedQuotes(line)%2 == 1 {
			inString = !inString
		}
	}
	return strings.Join(out, "\n")
}

func unescapedQuotes(line string) int {
	n := 0
	escaped := false
	for i := 0; i < len(line); i++ {
		switch {
		case escaped:
			escaped = false
		case line[i] == '\\':
			escaped = true
		case line[i] == '"':
			n++
		}
	}
	return n
}
