package ingest

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

var (
	isoDateRe     = regexp.MustCompile(`\b(20\d{2})-(\d{2})-(\d{2})\b`)
	slashDateRe   = regexp.MustCompile(`\b(\d{1,2})/(\d{1,2})/(20\d{2})\b`)
	monthFirstRe  = regexp.MustCompile(`(?i)\b(January|February|March|April|May|June|July|August|September|October|November|December|Jan|Feb|Mar|Apr|Jun|Jul|Aug|Sept|Sep|Oct|Nov|Dec)\.?\s+(\d{1,2})(?:st|nd|rd|th)?,?\s+(20\d{2})\b`)
	dayFirstRe    = regexp.MustCompile(`(?i)\b(\d{1,2})(?:st|nd|rd|th)?\s+(January|February|March|April|May|June|July|August|September|October|November|December|Jan|Feb|Mar|Apr|Jun|Jul|Aug|Sept|Sep|Oct|Nov|Dec)\.?,?\s+(20\d{2})\b`)
	frenchMonthRe = regexp.MustCompile(`(?i)\b(1er|\d{1,2})\s+(janvier|février|fevrier|mars|avril|mai|juin|juillet|août|aout|septembre|octobre|novembre|décembre|decembre)\s+(20\d{2})\b`)
)

var frenchMonths = map[string]time.Month{
	"janvier":   time.January,
	"février":   time.February,
	"fevrier":   time.February,
	"mars":      time.March,
	"avril":     time.April,
	"mai":       time.May,
	"juin":      time.June,
	"juillet":   time.July,
	"août":      time.August,
	"aout":      time.August,
	"septembre": time.September,
	"octobre":   time.October,
	"novembre":  time.November,
	"décembre":  time.December,
	"decembre":  time.December,
}

// rollingHints mark programs that accept applications without a fixed close.
var rollingHints = []string{
	"rolling",
	"rolling basis",
	"ongoing",
	"open continuously",
	"continuous intake",
	"open until filled",
	"until funds are exhausted",
	"until funding is exhausted",
	"no deadline",
	"year-round",
	"en continu",
	"aucune date limite",
}

// isRollingPhrase reports whether text describes a rolling deadline.
func isRollingPhrase(text string) bool {
	t := strings.ToLower(normalizeSpace(text))
	if t == "" {
		return false
	}
	for _, h := range rollingHints {
		if strings.Contains(t, h) {
			return true
		}
	}
	return false
}

// parseDateRobust attempts to parse dates in ISO, English and French forms.
// Date-only values land on the end of that day in UTC.
func parseDateRobust(text string) (time.Time, error) {
	text = cleanDateString(text)
	if text == "" {
		return time.Time{}, fmt.Errorf("empty date")
	}

	if t, err := time.Parse(time.RFC3339, text); err == nil {
		return t.UTC(), nil
	}
	if t, err := time.Parse("2006-01-02T15:04:05", text); err == nil {
		return t.UTC(), nil
	}
	if t, err := time.Parse("2006-01-02", text); err == nil {
		return toEndOfDay(t), nil
	}

	englishFormats := []string{
		"January 2, 2006",
		"January 2 2006",
		"Jan 2, 2006",
		"Jan 2 2006",
		"2 January 2006",
		"02 January 2006",
		"2 Jan 2006",
		"2006/01/02",
	}
	for _, format := range englishFormats {
		if t, err := time.Parse(format, text); err == nil {
			return toEndOfDay(t), nil
		}
	}

	if t := parseDateWithRegex(text); !t.IsZero() {
		return toEndOfDay(t), nil
	}
	if t := parseFrenchDateWithRegex(text); !t.IsZero() {
		return toEndOfDay(t), nil
	}

	return time.Time{}, fmt.Errorf("unable to parse date: %s", text)
}

// toEndOfDay sets the time to 23:59:59.999999999 UTC
func toEndOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 23, 59, 59, 999999999, time.UTC)
}

// parseDateWithRegex finds the first recognizable date inside free text.
func parseDateWithRegex(text string) time.Time {
	if m := isoDateRe.FindString(text); m != "" {
		if t, err := time.Parse("2006-01-02", m); err == nil {
			return t
		}
	}

	// Slash dates are read month-first, falling back to day-first when the
	// first number cannot be a month.
	if m := slashDateRe.FindStringSubmatch(text); len(m) == 4 {
		if t, err := time.Parse("1/2/2006", m[1]+"/"+m[2]+"/"+m[3]); err == nil {
			return t
		}
		if t, err := time.Parse("1/2/2006", m[2]+"/"+m[1]+"/"+m[3]); err == nil {
			return t
		}
	}

	if m := monthFirstRe.FindStringSubmatch(text); len(m) == 4 {
		if t, ok := englishDate(m[2], m[1], m[3]); ok {
			return t
		}
	}
	if m := dayFirstRe.FindStringSubmatch(text); len(m) == 4 {
		if t, ok := englishDate(m[1], m[2], m[3]); ok {
			return t
		}
	}

	return time.Time{}
}

func englishDate(day, month, year string) (time.Time, bool) {
	month = strings.ToLower(month)
	if month == "sept" {
		month = "sep"
	}
	if len(month) > 3 {
		month = month[:3]
	}
	month = strings.ToUpper(month[:1]) + month[1:]
	t, err := time.Parse("2 Jan 2006", day+" "+month+" "+year)
	return t, err == nil
}

// parseFrenchDateWithRegex handles "15 mars 2026" and "1er avril 2026".
func parseFrenchDateWithRegex(text string) time.Time {
	m := frenchMonthRe.FindStringSubmatch(text)
	if len(m) != 4 {
		return time.Time{}
	}

	month, ok := frenchMonths[strings.ToLower(m[2])]
	if !ok {
		return time.Time{}
	}
	day := strings.TrimSuffix(strings.ToLower(m[1]), "er")

	t, err := time.Parse("2 1 2006", fmt.Sprintf("%s %d %s", day, int(month), m[3]))
	if err != nil {
		return time.Time{}
	}
	return t
}

// cleanDateString removes common prefixes and cleans up date strings
func cleanDateString(s string) string {
	prefixes := []string{
		"Closing date:", "Deadline:", "Open:", "Opens:", "Due date:",
		"Expires:", "Ends:", "Date limite:", "Date de clôture:",
	}
	s = normalizeSpace(s)
	sLower := strings.ToLower(s)
	for _, p := range prefixes {
		if idx := strings.Index(sLower, strings.ToLower(p)); idx != -1 {
			s = s[idx+len(p):]
			sLower = sLower[idx+len(p):]
		}
	}
	return strings.TrimSpace(s)
}
