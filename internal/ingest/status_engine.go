package ingest

import (
	"strings"
	"time"

	"github.com/david/grant-extractor/internal/models"
)

// StatusDecision is the inferred programStatus and the rule that produced it.
type StatusDecision struct {
	Status string
	Reason string
}

// resultsKeywords are phrases that indicate a page is announcing recipients
// rather than taking applications.
var resultsKeywords = []string{
	"final results",
	"winners announced",
	"awards announced",
	"recipients announced",
	"awarded to",
	"awardees selected",
	"intake is closed",
	"program is closed",
	"no longer accepting applications",
	"lauréats",
}

// InferStatus derives a programStatus for a grant the model left without one.
func InferStatus(g models.Grant, now time.Time) StatusDecision {
	now = now.UTC()
	d := g.Deadlines

	if detectResultsText(g) {
		return StatusDecision{Status: "CLOSED", Reason: "results_text"}
	}

	if d.ApplicationOpenDate != nil && d.ApplicationOpenDate.After(now) {
		return StatusDecision{Status: "UPCOMING", Reason: "open_date_in_future"}
	}

	if d.RollingDeadline {
		return StatusDecision{Status: "ACTIVE", Reason: "rolling_open"}
	}

	if d.ApplicationCloseDate != nil {
		if d.ApplicationCloseDate.After(now) {
			return StatusDecision{Status: "ACTIVE", Reason: "future_close_date"}
		}
		return StatusDecision{Status: "CLOSED", Reason: "close_date_passed"}
	}

	return StatusDecision{Status: "ACTIVE", Reason: "default"}
}

func detectResultsText(g models.Grant) bool {
	blob := strings.ToLower(g.ProgramName + " " + g.ProgramDescription)
	for _, kw := range resultsKeywords {
		if strings.Contains(blob, kw) {
			return true
		}
	}
	return false
}
