package ingest

import (
	"regexp"
	"strconv"
	"strings"
)

// amountRe matches a number with optional thousands separators and an
// optional k/m/b multiplier suffix.
var amountRe = regexp.MustCompile(`(?i)(\d[\d,]*(?:\.\d+)?)\s*(k|m|b|thousand|million|billion)?\b`)

// yearRe matches a bare calendar year such as the 2030 in "until 2030".
var yearRe = regexp.MustCompile(`^(?:19|20)\d{2}$`)

var currencyHints = []struct {
	code  string
	hints []string
}{
	{"CAD", []string{"cad", "c$", "ca$", "canadian"}},
	{"USD", []string{"usd", "us$", "us dollar", "u.s. dollar"}},
	{"EUR", []string{"€", "eur", "euro"}},
	{"GBP", []string{"£", "gbp", "pound"}},
	{"AUD", []string{"aud", "a$", "australian"}},
}

// parseAmountRobust extracts the lowest and highest amounts in text, in whole
// currency units. ok is false when text holds no number.
func parseAmountRobust(text string) (minAmount, maxAmount float64, ok bool) {
	var amounts []float64
	for _, idx := range amountRe.FindAllStringSubmatchIndex(text, -1) {
		num := text[idx[2]:idx[3]]
		suffix := ""
		if idx[4] >= 0 {
			suffix = text[idx[4]:idx[5]]
		}
		if suffix == "" && yearRe.MatchString(num) && !hasCurrencyMarker(text[:idx[2]]) {
			continue
		}

		clean := strings.ReplaceAll(num, ",", "")
		val, err := strconv.ParseFloat(clean, 64)
		if err != nil {
			continue
		}
		switch strings.ToLower(suffix) {
		case "k", "thousand":
			val *= 1_000
		case "m", "million":
			val *= 1_000_000
		case "b", "billion":
			val *= 1_000_000_000
		}
		amounts = append(amounts, val)
	}

	if len(amounts) == 0 {
		return 0, 0, false
	}

	minAmount, maxAmount = amounts[0], amounts[0]
	for _, a := range amounts[1:] {
		if a < minAmount {
			minAmount = a
		}
		if a > maxAmount {
			maxAmount = a
		}
	}
	return minAmount, maxAmount, true
}

// detectCurrency returns the ISO 4217 code hinted at by text, or "".
func detectCurrency(text string) string {
	t := strings.ToLower(text)
	for _, c := range currencyHints {
		for _, h := range c.hints {
			if strings.Contains(t, h) {
				return c.code
			}
		}
	}
	return ""
}

// normalizeCurrency maps free-form currency text to a three-letter code.
// An empty result means the value is unusable.
func normalizeCurrency(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	if code := detectCurrency(raw); code != "" {
		return code
	}
	if raw == "$" {
		return "CAD"
	}

	letters := strings.Map(func(r rune) rune {
		if (r >= 'A' && r <= 'Z') || (r >= 'a' && r <= 'z') {
			return r
		}
		return -1
	}, raw)
	if len(letters) != 3 {
		return ""
	}
	return strings.ToUpper(letters)
}

// currencyMarkerRe matches a currency symbol or code at the end of the text
// preceding a number.
var currencyMarkerRe = regexp.MustCompile(`(?i)(?:[$€£]|\b(?:cad|usd|eur|gbp|aud))\s*$`)

func hasCurrencyMarker(prefix string) bool {
	return currencyMarkerRe.MatchString(prefix)
}
