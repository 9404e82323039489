// Package taxonomy maps free-text category values produced by the model onto
// the closed vocabularies used by grant records.
package taxonomy

// Set is a closed vocabulary of canonical enum values.
type Set struct {
	name   string
	values []string
	index  map[string]struct{}
}

// NewSet builds a closed set. Values are expected in canonical upper-case form.
func NewSet(name string, values ...string) Set {
	idx := make(map[string]struct{}, len(values))
	for _, v := range values {
		idx[v] = struct{}{}
	}
	return Set{name: name, values: values, index: idx}
}

func (s Set) Name() string { return s.name }

// Values returns the canonical values in declaration order.
func (s Set) Values() []string {
	out := make([]string, len(s.values))
	copy(out, s.values)
	return out
}

func (s Set) Contains(v string) bool {
	_, ok := s.index[v]
	return ok
}

var (
	FunderTypes = NewSet("funderType",
		"FEDERAL_GRANT", "PROVINCIAL_TERRITORIAL_GRANT", "MUNICIPAL_GRANT", "FOUNDATION_GRANT",
		"CORPORATE_GRANT", "COMMUNITY_ASSOCIATION_GRANT", "UNIVERSITY_COLLEGE_GRANT",
		"ACCELERATOR_INCUBATOR_GRANT", "OTHER")

	FundingTypes = NewSet("fundingType",
		"GRANT", "LOAN", "EQUITY", "TAX_CREDIT", "PRIZE", "IN_KIND")

	ProgramStatuses = NewSet("programStatus",
		"ACTIVE", "CLOSED", "UPCOMING", "SUSPENDED")

	Sectors = NewSet("sector",
		"AGRICULTURE", "HEALTH", "EDUCATION", "ENERGY", "TECHNOLOGY", "MANUFACTURING",
		"ENVIRONMENT", "CREATIVE", "SOCIAL_SERVICES", "FINANCE", "LEGAL", "PROFESSIONAL_SERVICES",
		"TRANSPORTATION", "CONSTRUCTION", "HOSPITALITY", "RETAIL", "OPEN_TO_ALL", "N_A")

	OrganizationTypes = NewSet("organizationType",
		"INDIVIDUAL", "NON_PROFIT", "FOR_PROFIT", "RESEARCH_INSTITUTION", "PUBLIC_ENTITY",
		"OPEN_TO_ALL", "N_A")

	BusinessStages = NewSet("businessStage",
		"IDEA", "EARLY_STAGE", "GROWTH", "ESTABLISHED")

	RevenueRanges = NewSet("revenueRange",
		"NONE", "UNDER_50K", "BETWEEN_50K_250K", "BETWEEN_250K_1M", "BETWEEN_1M_5M", "ABOVE_5M")

	EmployeeRanges = NewSet("employeeRange",
		"SOLO", "BETWEEN_1_5", "BETWEEN_6_20", "BETWEEN_21_50", "ABOVE_50")

	EquityFocus = NewSet("equityFocus",
		"RURAL", "URBAN", "REMOTE", "INDIGENOUS", "WOMEN_LED", "BIPOC_LED", "MINORITY_LED",
		"YOUTH", "SENIOR", "LGBTQ_PLUS", "VETERAN", "DISABLED", "IMMIGRANT", "REFUGEE",
		"LOW_INCOME", "UNDERSERVED")

	GrantPurposes = NewSet("grantPurpose",
		"RESEARCH", "PRODUCT_DEVELOPMENT", "CAPACITY_BUILDING", "INFRASTRUCTURE",
		"PROGRAM_EXPANSION", "OPERATIONAL", "CAPITAL", "EQUIPMENT", "TRAINING",
		"COMMUNITY_ENGAGEMENT", "MARKETING", "TECHNOLOGY", "HIRING")
)
