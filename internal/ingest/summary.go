package ingest

import (
	"math"
	"strings"
	"time"

	"github.com/david/grant-extractor/internal/models"
)

const unspecified = "UNSPECIFIED"

// requiredFieldCount is the number of checks in populatedRequired.
const requiredFieldCount = 9

// runTally accumulates counts while a run progresses and produces the final
// RunMetrics once.
type runTally struct {
	m models.RunMetrics

	requiredPopulated int
	sectors           int
	geographies       int
	orgTypes          int
	equityFocus       int
	grantPurposes     int
}

func newRunTally(runID string, start time.Time, sourcesTotal int) *runTally {
	return &runTally{m: models.RunMetrics{
		RunID:                   runID,
		Timestamp:               start.UTC(),
		SourcesTotal:            sourcesTotal,
		CurrencyDistribution:    map[string]int{},
		FundingTypeDistribution: map[string]int{},
		FunderTypeDistribution:  map[string]int{},
		RepairStages:            map[string]int{},
	}}
}

func (t *runTally) skipped()   { t.m.SourcesSkipped++ }
func (t *runTally) failed()    { t.m.SourcesFailed++ }
func (t *runTally) processed() { t.m.SourcesProcessed++ }

func (t *runTally) stage(name string) {
	if name != "" {
		t.m.RepairStages[name]++
	}
}

func (t *runTally) invalid(n int) { t.m.InvalidRecords += n }

func (t *runTally) valid(g models.Grant, accepted bool) {
	t.m.ValidRecords++
	if accepted {
		t.m.HighQualityRecords++
	} else {
		t.m.ReviewRecords++
	}

	t.m.CurrencyDistribution[orUnspecified(g.Currency)]++
	t.m.FundingTypeDistribution[orUnspecified(g.FundingStructure.FundingType)]++
	t.m.FunderTypeDistribution[orUnspecified(g.FunderType)]++

	t.requiredPopulated += populatedRequired(g)
	t.sectors += len(g.Eligibility.EligibleSectors)
	t.geographies += len(g.Eligibility.EligibleGeographies)
	t.orgTypes += len(g.Eligibility.OrganizationType)
	t.equityFocus += len(g.Eligibility.EquityFocus)
	t.grantPurposes += len(g.Eligibility.GrantPurpose)
}

func (t *runTally) finish(duration time.Duration) models.RunMetrics {
	m := t.m
	m.TotalRecords = m.ValidRecords + m.InvalidRecords
	m.Duration = duration

	if n := m.ValidRecords; n > 0 {
		m.CompletenessScore = round2(float64(t.requiredPopulated) / float64(n*requiredFieldCount) * 100)
		m.AvgSectors = round2(float64(t.sectors) / float64(n))
		m.AvgGeographies = round2(float64(t.geographies) / float64(n))
		m.AvgOrgTypes = round2(float64(t.orgTypes) / float64(n))
		m.AvgEquityFocus = round2(float64(t.equityFocus) / float64(n))
		m.AvgGrantPurposes = round2(float64(t.grantPurposes) / float64(n))
	}
	return m
}

// populatedRequired counts the required fields g carries. A deadline is
// either a close date or the rolling flag; a link is either the program
// page or the application portal.
func populatedRequired(g models.Grant) int {
	checks := []bool{
		g.GrantID != "",
		strings.TrimSpace(g.ProgramName) != "",
		strings.TrimSpace(g.ProgramDescription) != "",
		strings.TrimSpace(g.FunderName) != "",
		g.FunderType != "",
		g.FundingStructure.FundingType != "",
		g.Currency != "",
		g.Deadlines.ApplicationCloseDate != nil || g.Deadlines.RollingDeadline,
		g.ProgramURL != "" || g.Contact.ApplicationPortalURL != "",
	}
	n := 0
	for _, ok := range checks {
		if ok {
			n++
		}
	}
	return n
}

func orUnspecified(s string) string {
	if s == "" {
		return unspecified
	}
	return s
}

func round2(f float64) float64 {
	return math.Round(f*100) / 100
}
