package ingest

import (
	"strings"
	"unicode/utf8"

	"github.com/david/grant-extractor/internal/models"
)

const DefaultMinDescriptionLength = 100

var DefaultBoilerplatePhrases = []string{"click here", "learn more"}

// QualityGate decides whether a valid grant is complete enough to publish.
// Grants that fail go to manual review.
type QualityGate struct {
	MinDescriptionLength int
	BoilerplatePhrases   []string
}

func NewQualityGate(minDescriptionLength int, phrases []string) QualityGate {
	if minDescriptionLength <= 0 {
		minDescriptionLength = DefaultMinDescriptionLength
	}
	if phrases == nil {
		phrases = DefaultBoilerplatePhrases
	}
	return QualityGate{MinDescriptionLength: minDescriptionLength, BoilerplatePhrases: phrases}
}

func (q QualityGate) Passes(g models.Grant) bool {
	return len(q.Reasons(g)) == 0
}

// Reasons lists every check g fails, in a stable order.
func (q QualityGate) Reasons(g models.Grant) []string {
	var reasons []string

	if strings.TrimSpace(g.ProgramName) == "" {
		reasons = append(reasons, "missing programName")
	}
	if strings.TrimSpace(g.FunderName) == "" {
		reasons = append(reasons, "missing funderName")
	}

	desc := strings.TrimSpace(g.ProgramDescription)
	if desc == "" {
		reasons = append(reasons, "missing programDescription")
	} else if utf8.RuneCountInString(desc) < q.MinDescriptionLength {
		reasons = append(reasons, "programDescription shorter than minimum length")
	}

	lower := strings.ToLower(desc)
	for _, phrase := range q.BoilerplatePhrases {
		if phrase != "" && strings.Contains(lower, strings.ToLower(phrase)) {
			reasons = append(reasons, "programDescription contains boilerplate: "+phrase)
		}
	}

	f := g.FundingStructure
	if !positive(f.AmountMax) && !positive(f.FixedAmount) {
		reasons = append(reasons, "missing amountMax and fixedAmount")
	}

	return reasons
}

// positive treats zero like an absent amount.
func positive(v *float64) bool {
	return v != nil && *v > 0
}
